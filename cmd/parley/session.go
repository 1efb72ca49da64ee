package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/parleyhq/parley/internal/budget"
	"github.com/parleyhq/parley/internal/models"
	"github.com/parleyhq/parley/internal/session"
	"github.com/parleyhq/parley/internal/timer"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

func newSessionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Session management commands",
	}

	cmd.AddCommand(newSessionCreateCmd())
	cmd.AddCommand(newSessionListCmd())
	cmd.AddCommand(newSessionShowCmd())
	cmd.AddCommand(newSessionTransitionCmd("start", "Start a session", "Transitions a created session to active and starts the clock.", session.Start))
	cmd.AddCommand(newSessionTransitionCmd("pause", "Pause a session", "Pauses an active session; paused time does not count against the limit.", session.Pause))
	cmd.AddCommand(newSessionTransitionCmd("resume", "Resume a paused session", "Resumes a paused session and restarts the clock.", session.Resume))
	cmd.AddCommand(newSessionTransitionCmd("end", "End a session", "Completes a session and records the final summary.", session.End))
	cmd.AddCommand(newSessionExtendCmd())
	return cmd
}

func newSessionCreateCmd() *cobra.Command {
	var (
		configPath    string
		name          string
		email         string
		minutes       int
		budgetTokens  int
		model         string
		challengeID   string
		challengeText string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new interview session",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}

			timeLimit := cfg.Session.DefaultDuration
			if minutes > 0 {
				timeLimit = minutes * 60
			}
			if budgetTokens <= 0 {
				budgetTokens = cfg.Session.DefaultTokenBudget
			}
			if model == "" {
				model = cfg.OpenAI.Model
			}

			s, err := session.Create(gormDB, session.Config{
				CandidateName:  name,
				CandidateEmail: email,
				TimeLimit:      timeLimit,
				TokenBudget:    budgetTokens,
				ModelName:      model,
				ChallengeID:    challengeID,
				ChallengeText:  challengeText,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Created session %s\n", s.ID)
			fmt.Fprintf(out, "Candidate: %s\n", s.CandidateName)
			fmt.Fprintf(out, "Time limit: %s\n", timer.FormatClock(s.TimeLimit))
			fmt.Fprintf(out, "Token budget: %s\n", formatTokenCount(s.TokenBudget))
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "parley.yaml", "path to Parley config file")
	cmd.Flags().StringVar(&name, "name", "", "candidate name (required)")
	cmd.Flags().StringVar(&email, "email", "", "candidate email")
	cmd.Flags().IntVar(&minutes, "minutes", 0, "time limit in minutes (default from config)")
	cmd.Flags().IntVar(&budgetTokens, "budget", 0, "token budget (default from config)")
	cmd.Flags().StringVar(&model, "model", "", "completion model (default from config)")
	cmd.Flags().StringVar(&challengeID, "challenge", "", "challenge ID to attach")
	cmd.Flags().StringVar(&challengeText, "challenge-text", "", "inline challenge text")
	cmd.MarkFlagRequired("name")
	return cmd
}

func newSessionListCmd() *cobra.Command {
	var (
		configPath string
		status     string
		limit      int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}

			sessions, err := session.List(gormDB, models.SessionStatus(status), limit, 0)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(sessions) == 0 {
				fmt.Fprintln(out, "No sessions found.")
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tCANDIDATE\tSTATUS\tTOKENS\tBUDGET\tMESSAGES\tCREATED")
			for _, s := range sessions {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
					s.ID, s.CandidateName, s.Status,
					formatTokenCount(s.TokensUsed), formatTokenCount(s.TokenBudget),
					s.MessageCount, s.CreatedAt.Format("2006-01-02 15:04"))
			}
			w.Flush()
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "parley.yaml", "path to Parley config file")
	cmd.Flags().StringVar(&status, "status", "", "filter by status")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum sessions to list")
	return cmd
}

func newSessionShowCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show session details",
		Long:  "Displays full session details including the live clock and token usage.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}

			s, err := session.Get(gormDB, args[0])
			if err != nil {
				return err
			}

			now := time.Now().UTC()
			snap := timer.Snap(s, now)
			stats := budget.StatsFor(s)

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "ID:          %s\n", s.ID)
			fmt.Fprintf(out, "Candidate:   %s\n", s.CandidateName)
			if s.CandidateEmail != "" {
				fmt.Fprintf(out, "Email:       %s\n", s.CandidateEmail)
			}
			fmt.Fprintf(out, "Status:      %s\n", s.Status)
			fmt.Fprintf(out, "Model:       %s\n", s.ModelName)
			fmt.Fprintf(out, "Clock:       %s remaining of %s (%s)\n",
				snap.Formatted, timer.FormatClock(s.TimeLimit), snap.Warning)
			fmt.Fprintf(out, "Tokens:      %s / %s used (%.1f%%, %s)\n",
				formatTokenCount(s.TokensUsed), formatTokenCount(s.TokenBudget),
				stats.PercentUsed, stats.Warning)
			fmt.Fprintf(out, "Messages:    %d\n", s.MessageCount)
			if stats.RemainingExchanges != nil {
				fmt.Fprintf(out, "Est. remaining exchanges: %d\n", *stats.RemainingExchanges)
			}
			if s.ChallengeID != nil {
				fmt.Fprintf(out, "Challenge:   %s\n", *s.ChallengeID)
			}
			if s.StartTime != nil {
				fmt.Fprintf(out, "Started:     %s\n", s.StartTime.Format(time.RFC3339))
			}
			if s.EndTime != nil {
				fmt.Fprintf(out, "Ended:       %s\n", s.EndTime.Format(time.RFC3339))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "parley.yaml", "path to Parley config file")
	return cmd
}

func newSessionTransitionCmd(use, short, long string, op func(*gorm.DB, string) (*models.Session, error)) *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   use + " <id>",
		Short: short,
		Long:  long,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			s, err := op(gormDB, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Session %s is now %s\n", s.ID, s.Status)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "parley.yaml", "path to Parley config file")
	return cmd
}

func newSessionExtendCmd() *cobra.Command {
	var (
		configPath string
		minutes    int
		tokens     int
	)

	cmd := &cobra.Command{
		Use:   "extend <id>",
		Short: "Extend a session's time limit or token budget",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if minutes <= 0 && tokens <= 0 {
				return fmt.Errorf("at least one of --minutes or --tokens must be positive")
			}

			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			id := args[0]
			if minutes > 0 {
				s, err := session.ExtendTime(gormDB, id, minutes*60)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Time limit extended to %s\n", timer.FormatClock(s.TimeLimit))
			}
			if tokens > 0 {
				s, err := session.ExtendBudget(gormDB, id, tokens)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Token budget extended to %s\n", formatTokenCount(s.TokenBudget))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "parley.yaml", "path to Parley config file")
	cmd.Flags().IntVar(&minutes, "minutes", 0, "minutes to add to the time limit")
	cmd.Flags().IntVar(&tokens, "tokens", 0, "tokens to add to the budget")
	return cmd
}
