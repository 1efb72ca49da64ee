package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/parleyhq/parley/internal/chat"
	"github.com/parleyhq/parley/internal/completion"
	"github.com/parleyhq/parley/internal/sweep"
	"github.com/parleyhq/parley/internal/tokens"
	"github.com/parleyhq/parley/internal/web"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	var (
		configPath string
		port       int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the Parley API server",
		Long:  "Launches the REST API with the session monitor stream and the background expiry sweeper.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, configPath, port)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "parley.yaml", "path to Parley config file")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "port to listen on (overrides config)")
	return cmd
}

func runServe(cmd *cobra.Command, configPath string, port int) error {
	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	if cfg.OpenAI.APIKey == "" {
		return fmt.Errorf("OpenAI API key is required — set openai.api_key in %s or OPENAI_API_KEY", configPath)
	}
	if port <= 0 {
		port = cfg.Server.Port
	}

	client, err := completion.NewOpenAI(cfg.OpenAI.APIKey, "")
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

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		fmt.Fprintf(cmd.OutOrStdout(), "\nReceived %s, shutting down...\n", sig)
		cancel()
	}()

	sweeper := sweep.New(gormDB)
	if err := sweeper.Start(); err != nil {
		return err
	}
	defer sweeper.Stop()

	return web.Start(ctx, web.StartOpts{
		DB:       gormDB,
		Port:     port,
		Chat:     chatSvc,
		Defaults: *cfg,
		Out:      cmd.OutOrStdout(),
	})
}
