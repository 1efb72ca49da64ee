package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/parleyhq/parley/internal/budget"
	"github.com/parleyhq/parley/internal/chat"
	"github.com/parleyhq/parley/internal/completion"
	"github.com/parleyhq/parley/internal/config"
	"github.com/parleyhq/parley/internal/models"
	"github.com/parleyhq/parley/internal/session"
	"github.com/parleyhq/parley/internal/timer"
	"github.com/parleyhq/parley/internal/tokens"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func newChatCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "chat <session-id>",
		Short: "Chat interactively within a session",
		Long: `Opens an interactive chat inside an interview session. The session is
started automatically if it has not been started yet. Type /status for the
clock and budget, /quit to leave (the session keeps running).`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd, configPath, args[0])
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "parley.yaml", "path to Parley config file")
	return cmd
}

// resolveAPIKey returns the configured key, prompting on the terminal when
// none is set.
func resolveAPIKey(cmd *cobra.Command, cfg *config.Config) (string, error) {
	if cfg.OpenAI.APIKey != "" {
		return cfg.OpenAI.APIKey, nil
	}
	if !term.IsTerminal(int(syscall.Stdin)) {
		return "", fmt.Errorf("OpenAI API key is required — set openai.api_key in the config or OPENAI_API_KEY")
	}
	fmt.Fprint(cmd.OutOrStdout(), "OpenAI API key: ")
	key, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(cmd.OutOrStdout())
	if err != nil {
		return "", fmt.Errorf("read api key: %w", err)
	}
	if len(key) == 0 {
		return "", fmt.Errorf("OpenAI API key is required")
	}
	return string(key), nil
}

func runChat(cmd *cobra.Command, configPath, sessionID string) error {
	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	apiKey, err := resolveAPIKey(cmd, cfg)
	if err != nil {
		return err
	}

	client, err := completion.NewOpenAI(apiKey, "")
	if err != nil {
		return err
	}
	chatSvc := chat.New(chat.Opts{
		Client:           client,
		Counter:          tokens.NewCounter(),
		MaxMessageLength: cfg.Session.MaxMessageLength,
		Temperature:      cfg.OpenAI.Temperature,
		MaxOutputTokens:  cfg.OpenAI.MaxTokens,
	})

	s, err := session.Get(gormDB, sessionID)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if s.Status == models.StatusCreated {
		if s, err = session.Start(gormDB, sessionID); err != nil {
			return err
		}
		fmt.Fprintln(out, "Session started.")
	}

	fmt.Fprintf(out, "Chatting as %s — %s remaining, %s tokens left. /status, /quit\n\n",
		s.CandidateName,
		timer.FormatClock(timer.Remaining(s, time.Now().UTC())),
		formatTokenCount(budget.Remaining(s)))

	scanner := bufio.NewScanner(cmd.InOrStdin())
	scanner.Buffer(make([]byte, 64*1024), cfg.Session.MaxMessageLength+1024)

	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "/quit", "/exit":
			fmt.Fprintln(out, "Leaving chat. The session is still running.")
			return nil
		case "/status":
			s, err := session.Get(gormDB, sessionID)
			if err != nil {
				return err
			}
			now := time.Now().UTC()
			fmt.Fprintf(out, "[%s] %s remaining, %s / %s tokens used\n",
				s.Status, timer.FormatClock(timer.Remaining(s, now)),
				formatTokenCount(s.TokensUsed), formatTokenCount(s.TokenBudget))
			continue
		}

		reply, err := chatSvc.SendMessage(context.Background(), gormDB, sessionID, line)
		if err != nil {
			var rej *chat.Rejection
			if errors.As(err, &rej) {
				fmt.Fprintf(out, "! %s\n", rej.Reason)
				continue
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "error: %v\n", err)
			continue
		}

		fmt.Fprintf(out, "\n%s\n\n", reply.Content)
		if reply.Usage != nil {
			fmt.Fprintf(out, "[%s tokens remaining]\n",
				formatTokenCount(reply.Usage.RemainingBudget))
		}
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, os.ErrClosed) {
		return fmt.Errorf("read input: %w", err)
	}
	return nil
}
