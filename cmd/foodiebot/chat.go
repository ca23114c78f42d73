package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"foodiebot/internal/session"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Interactive chat session on stdin",
	Long: `Runs the full chat pipeline against a local session from the terminal.
Type a message per line; /quit exits, /score prints the current engagement
score, /new starts a fresh session.`,
	RunE: runChat,
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c, err := buildComponents(ctx, false)
	if err != nil {
		return err
	}
	defer c.close()

	if path := cfg.Storage.SeedPath; path != "" {
		if _, err := os.Stat(path); err == nil {
			if n, err := c.catalog.SeedFromFile(ctx, path); err == nil {
				fmt.Printf("Loaded %d products.\n", n)
			}
		}
	}

	sessionID := session.NewSessionID()
	fmt.Printf("FoodieBot ready (session %s). Type /quit to exit.\n", sessionID[:8])

	scanner := bufio.NewScanner(os.Stdin)
	score := 0
	for {
		fmt.Print("you> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		switch line {
		case "/quit", "/exit":
			return nil
		case "/score":
			fmt.Printf("engagement score: %d/100\n", score)
			continue
		case "/new":
			c.sessions.Clear(sessionID)
			sessionID = session.NewSessionID()
			score = 0
			fmt.Printf("new session %s\n", sessionID[:8])
			continue
		}

		res := c.pipeline.Chat(ctx, sessionID, line)
		score = res.InterestScore
		fmt.Printf("bot> %s\n", res.Reply)
		if len(res.Suggested) > 0 {
			fmt.Printf("     suggested: %s (score %d, +%d)\n",
				strings.Join(res.Suggested, ", "), res.InterestScore, res.ScoreDelta)
		}

		if ctx.Err() != nil {
			return nil
		}
	}
	return scanner.Err()
}
