package main

import (
	"fmt"
	"strings"

	"github.com/parleyhq/parley/internal/completion"
	"github.com/parleyhq/parley/internal/config"
	"github.com/spf13/cobra"
)

func newAskCmd() *cobra.Command {
	var (
		configPath string
		model      string
	)

	cmd := &cobra.Command{
		Use:   "ask <question...>",
		Short: "Ask a one-off question outside any session",
		Long: `Sends a single question to the completion API and streams the answer.
No session, no budget — useful for smoke-testing the API key and model.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAsk(cmd, configPath, model, strings.Join(args, " "))
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "parley.yaml", "path to Parley config file")
	cmd.Flags().StringVar(&model, "model", "", "completion model (default from config)")
	return cmd
}

func runAsk(cmd *cobra.Command, configPath, model, question string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	apiKey, err := resolveAPIKey(cmd, cfg)
	if err != nil {
		return err
	}
	if model == "" {
		model = cfg.OpenAI.Model
	}

	client, err := completion.NewOpenAI(apiKey, "")
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	result, err := client.Stream(cmd.Context(), completion.Request{
		Model:       model,
		Messages:    []completion.Message{{Role: "user", Content: question}},
		Temperature: cfg.OpenAI.Temperature,
		MaxTokens:   cfg.OpenAI.MaxTokens,
	}, func(delta string) error {
		_, err := fmt.Fprint(out, delta)
		return err
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "\n\n[%s tokens: %d prompt + %d completion]\n",
		model, result.PromptTokens, result.CompletionTokens)
	return nil
}
