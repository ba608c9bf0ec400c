package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"github.com/icecreamdb/chat-responder/internal/biz"
	"github.com/icecreamdb/chat-responder/internal/conf"
	"github.com/icecreamdb/chat-responder/internal/data"
	"github.com/icecreamdb/chat-responder/internal/mcp"
)

func main() {
	_ = godotenv.Load()

	botID := flag.String("bot", "", "bot user id")
	roomID := flag.String("room", "", "room id")
	userID := flag.String("user-id", "", "sender user id")
	userName := flag.String("user", "tester", "sender login")
	badges := flag.String("badges", "", "comma separated sender badges")
	flag.Parse()

	if *botID == "" || *roomID == "" || flag.NArg() < 1 {
		fmt.Println("Usage: rule-check -bot <bot_id> -room <room_id> [-user-id id] [-user login] [-badges moderator,vip] <message>")
		os.Exit(1)
	}

	cfg, err := conf.Load()
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	repos, err := data.NewRepositories(ctx, cfg.DB.Driver, cfg.DB.DSN)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	defer repos.Close()

	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	uc := biz.NewUsecases(repos.Rules, nil, cfg.ToOptions(), quiet, nil)
	tools := mcp.NewServer(uc, repos.Rules, "", quiet)

	in := mcp.DryRunInput{
		BotID:    *botID,
		RoomID:   *roomID,
		UserID:   *userID,
		UserName: *userName,
		Text:     strings.Join(flag.Args(), " "),
	}
	if *badges != "" {
		in.Badges = strings.Split(*badges, ",")
	}

	out, err := tools.DryRun(ctx, in)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(out)
}
