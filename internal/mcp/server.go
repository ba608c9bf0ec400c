package mcp

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/icecreamdb/chat-responder/internal/biz"
	"github.com/icecreamdb/chat-responder/internal/biz/repo"
)

// Server exposes operator tools for inspecting the responder over MCP
type Server struct {
	server *mcp.Server
	uc     *biz.Usecases
	rules  repo.RuleRepo
	logger *slog.Logger
	now    func() time.Time
}

// NewServer creates the MCP server and registers its tools
func NewServer(uc *biz.Usecases, rules repo.RuleRepo, version string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if version == "" {
		version = "dev"
	}

	s := &Server{
		server: mcp.NewServer(&mcp.Implementation{
			Name:    "chat-responder",
			Version: version,
		}, nil),
		uc:     uc,
		rules:  rules,
		logger: logger.With("component", "mcp"),
		now:    time.Now,
	}
	s.registerTools()
	return s
}

// Handler serves the tools over streamable HTTP
func (s *Server) Handler() http.Handler {
	return mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return s.server
	}, nil)
}

func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "list_channels",
		Description: "List the channels in the current rule snapshot with their trigger counts.",
	}, s.handleListChannels)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "cache_status",
		Description: "Summarize the rule snapshot: channel, trigger, reply and notice counts and when it was loaded.",
	}, s.handleCacheStatus)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "refresh_cache",
		Description: "Reload all rules from the store now instead of waiting for the snapshot to go stale.",
	}, s.handleRefreshCache)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "dry_run_match",
		Description: "Run a message through trigger matching and permission checks and render the responses it would fire. Nothing is sent and no cooldown is recorded.",
	}, s.handleDryRunMatch)
}
