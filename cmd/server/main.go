package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ContentRemixTeam/logic-block-foundation-sub010/internal/config"
	"github.com/ContentRemixTeam/logic-block-foundation-sub010/internal/server"
	"github.com/ContentRemixTeam/logic-block-foundation-sub010/internal/server/jwt"
)

var (
	// Version information set via ldflags during build
	Version   = "dev"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "offlinekit-server",
		Short:         "Reference server for offline-first clients",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	config.RegisterServerFlags(root.PersistentFlags())

	load := func(cmd *cobra.Command) (config.Server, *slog.Logger, error) {
		v, err := config.NewViper(cmd.Flags(), config.ServerEnvPrefix)
		if err != nil {
			return config.Server{}, nil, fmt.Errorf("failed to bind flags: %w", err)
		}
		cfg, err := config.ServerFromViper(v)
		if err != nil {
			return config.Server{}, nil, err
		}
		logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
		return cfg, logger, nil
	}

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Accept mutations and relay tab messages",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := load(cmd)
			if err != nil {
				return err
			}

			srv, err := server.New(cmd.Context(), logger, cfg, Version)
			if err != nil {
				return err
			}
			defer srv.Close()

			return srv.Run(cmd.Context())
		},
	}

	var user string
	token := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := load(cmd)
			if err != nil {
				return err
			}

			tok, expires, err := jwt.NewService(cfg.JWTSecret, cfg.TokenTTL).Issue(user)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			fmt.Fprintf(cmd.ErrOrStderr(), "Expires: %s\n", expires.Format(time.RFC3339))
			return nil
		},
	}
	token.Flags().StringVar(&user, "user", "", "user id written into the token")
	_ = token.MarkFlagRequired("user")

	version := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "offlinekit-server\n")
			fmt.Fprintf(out, "Version:    %s\n", Version)
			fmt.Fprintf(out, "Build Date: %s\n", BuildDate)
			fmt.Fprintf(out, "Git Commit: %s\n", GitCommit)
		},
	}

	root.AddCommand(serve, token, version)
	return root
}
