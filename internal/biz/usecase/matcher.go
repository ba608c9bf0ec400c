package usecase

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dlclark/regexp2"

	"github.com/icecreamdb/chat-responder/internal/metrics"
)

// DefaultRegexTimeout bounds a single regex trigger evaluation
const DefaultRegexTimeout = 100 * time.Millisecond

// PhraseTrigger is a prefix trigger, stored lower-cased with a trailing space
type PhraseTrigger struct {
	RuleID int64
	Prefix string
}

// RegexTrigger is a compiled case-insensitive pattern trigger
type RegexTrigger struct {
	RuleID  int64
	Pattern string
	re      *regexp2.Regexp
}

// Candidates are rule ids that matched a message, in store order
type Candidates struct {
	Phrase []int64
	Regex  []int64
}

// Empty reports whether nothing matched
func (c Candidates) Empty() bool {
	return len(c.Phrase) == 0 && len(c.Regex) == 0
}

// NewPhraseTrigger normalizes a trigger phrase for prefix matching
func NewPhraseTrigger(ruleID int64, phrase string) PhraseTrigger {
	return PhraseTrigger{RuleID: ruleID, Prefix: strings.ToLower(phrase) + " "}
}

// NewRegexTrigger compiles a pattern with a match timeout
func NewRegexTrigger(ruleID int64, pattern string, timeout time.Duration) (RegexTrigger, error) {
	re, err := regexp2.Compile(pattern, regexp2.IgnoreCase)
	if err != nil {
		return RegexTrigger{}, fmt.Errorf("invalid trigger pattern %q: %w", pattern, err)
	}
	if timeout <= 0 {
		timeout = DefaultRegexTimeout
	}
	re.MatchTimeout = timeout
	return RegexTrigger{RuleID: ruleID, Pattern: pattern, re: re}, nil
}

// TriggerMatcher finds the rules whose triggers match a message
type TriggerMatcher struct {
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewTriggerMatcher creates a matcher
func NewTriggerMatcher(logger *slog.Logger, m *metrics.Metrics) *TriggerMatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &TriggerMatcher{
		logger:  logger.With("component", "matcher"),
		metrics: m,
	}
}

// Match returns phrase and regex candidates for the text.
// A phrase matches only on a word boundary: "!hello" does not match "!helloworld".
// A regex that times out or fails is skipped.
func (m *TriggerMatcher) Match(text string, snap *ChannelSnapshot) Candidates {
	var c Candidates
	if snap == nil {
		return c
	}

	normalized := strings.ToLower(text + " ")
	for _, t := range snap.PhraseTriggers {
		if strings.HasPrefix(normalized, t.Prefix) {
			c.Phrase = append(c.Phrase, t.RuleID)
		}
	}

	for _, t := range snap.RegexTriggers {
		ok, err := t.re.MatchString(text)
		if err != nil {
			m.metrics.RegexTimeout()
			m.logger.Warn("regex trigger skipped", "rule_id", t.RuleID, "pattern", t.Pattern, "error", err)
			continue
		}
		if ok {
			c.Regex = append(c.Regex, t.RuleID)
		}
	}

	m.metrics.Candidates("phrase", len(c.Phrase))
	m.metrics.Candidates("regex", len(c.Regex))
	return c
}
