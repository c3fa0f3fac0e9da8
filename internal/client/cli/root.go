package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ContentRemixTeam/logic-block-foundation-sub010/internal/client/iocli"
	"github.com/ContentRemixTeam/logic-block-foundation-sub010/internal/config"
)

// runner opens the App for one command and always closes it, so queued
// durable writes are flushed even when the command fails.
type runner struct {
	stdio       iocli.IO
	opts        Options
	passphrases Passphrases
}

func (r *runner) wrap(fn func(ctx context.Context, c *Cli, args []string) error) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) (err error) {
		v, err := config.NewViper(cmd.Flags(), config.EnvPrefix)
		if err != nil {
			return err
		}
		cfg, err := config.FromViper(v)
		if err != nil {
			return err
		}
		cfg.Passphrase, err = resolvePassphrase(r.stdio, cfg.Passphrase, r.passphrases)
		if err != nil {
			return err
		}

		logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))

		ctx := cmd.Context()
		app, err := Open(ctx, logger, cfg, r.opts)
		if err != nil {
			return fmt.Errorf("failed to open local storage: %w", err)
		}
		defer func() {
			err = errors.Join(err, app.Close(context.WithoutCancel(ctx)))
		}()

		return fn(ctx, New(r.stdio, app), args)
	}
}

// NewRootCommand builds the client command tree. Commands print and read
// through stdio; opts lets tests share a bus and a clock between tabs.
func NewRootCommand(stdio iocli.IO, version string, opts Options) *cobra.Command {
	r := &runner{stdio: stdio, opts: opts}

	root := &cobra.Command{
		Use:   "offlinekit",
		Short: "Offline-first client: drafts, queued changes and recovery",
		Long: fmt.Sprintf(`offlinekit (%s)

Keeps typed input and writes safe while the server is unreachable.
Every invocation is one tab; tabs share the data directory. Flags can be
set through OFFLINEKIT_<FLAG> variables or a .env file.`, version),
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdio)
	root.SetErr(stdio)

	config.RegisterFlags(root.PersistentFlags())
	root.PersistentFlags().StringVar(&r.passphrases.FromFile, "passphrase-file", "", "file containing the storage passphrase")
	root.PersistentFlags().BoolVar(&r.passphrases.Prompt, "encrypt", false, "ask for the storage passphrase when none is configured")

	root.AddCommand(
		statusCommand(r),
		queueCommand(r),
		draftsCommand(r),
		syncCommand(r),
		retryCommand(r),
		discardCommand(r),
		submitCommand(r),
		draftCommand(r),
		watchCommand(r),
	)
	return root
}

func statusCommand(r *runner) *cobra.Command {
	var verbose bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show unsaved and undelivered work",
		Args:  cobra.NoArgs,
		RunE: r.wrap(func(ctx context.Context, c *Cli, _ []string) error {
			return c.runStatus(ctx, verbose)
		}),
	}
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "also list queued changes and drafts")
	return cmd
}

func queueCommand(r *runner) *cobra.Command {
	return &cobra.Command{
		Use:   "queue",
		Short: "List queued changes",
		Args:  cobra.NoArgs,
		RunE: r.wrap(func(ctx context.Context, c *Cli, _ []string) error {
			return c.runQueue(ctx)
		}),
	}
}

func draftsCommand(r *runner) *cobra.Command {
	return &cobra.Command{
		Use:   "drafts",
		Short: "List unsent drafts",
		Args:  cobra.NoArgs,
		RunE: r.wrap(func(ctx context.Context, c *Cli, _ []string) error {
			return c.runDrafts(ctx)
		}),
	}
}

func syncCommand(r *runner) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Deliver queued changes now",
		Args:  cobra.NoArgs,
		RunE: r.wrap(func(ctx context.Context, c *Cli, _ []string) error {
			return c.runSync(ctx)
		}),
	}
}

func retryCommand(r *runner) *cobra.Command {
	var drafts bool
	cmd := &cobra.Command{
		Use:   "retry [id]",
		Short: "Retry a failed change, or submit every draft with --drafts",
		Args:  cobra.MaximumNArgs(1),
		RunE: r.wrap(func(ctx context.Context, c *Cli, args []string) error {
			if drafts {
				return c.runRetryDrafts(ctx)
			}
			return c.runRetry(ctx, firstArg(args))
		}),
	}
	cmd.Flags().BoolVar(&drafts, "drafts", false, "submit every unsent draft")
	return cmd
}

func discardCommand(r *runner) *cobra.Command {
	var all, yes bool
	cmd := &cobra.Command{
		Use:   "discard [id]",
		Short: "Drop a queued change, or everything with --all",
		Args:  cobra.MaximumNArgs(1),
		RunE: r.wrap(func(ctx context.Context, c *Cli, args []string) error {
			if all {
				return c.runDiscardAll(ctx, yes)
			}
			return c.runDiscard(ctx, firstArg(args))
		}),
	}
	cmd.Flags().BoolVar(&all, "all", false, "discard every draft and every change not being delivered")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")
	return cmd
}

func submitCommand(r *runner) *cobra.Command {
	var kind, entity, payload, draftKey string
	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Write a change: delivered now when online, queued otherwise",
		Args:  cobra.NoArgs,
		RunE: r.wrap(func(ctx context.Context, c *Cli, _ []string) error {
			return c.runSubmit(ctx, kind, entity, payload, draftKey)
		}),
	}
	cmd.Flags().StringVar(&kind, "kind", "create", "create, update or delete")
	cmd.Flags().StringVar(&entity, "entity", "", "target entity, e.g. task:42")
	cmd.Flags().StringVar(&payload, "payload", "", "JSON object, or plain text stored as {\"text\": ...}")
	cmd.Flags().StringVar(&draftKey, "draft", "", "draft promoted by this change")
	_ = cmd.MarkFlagRequired("entity")
	return cmd
}

func draftCommand(r *runner) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "draft",
		Short: "Save or delete a draft",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "save <key> <content>",
			Short: "Save typed input as a draft",
			Args:  cobra.MinimumNArgs(2),
			RunE: r.wrap(func(ctx context.Context, c *Cli, args []string) error {
				return c.runDraftSave(ctx, args[0], strings.Join(args[1:], " "))
			}),
		},
		&cobra.Command{
			Use:   "delete <key>",
			Short: "Delete a draft",
			Args:  cobra.ExactArgs(1),
			RunE: r.wrap(func(ctx context.Context, c *Cli, args []string) error {
				return c.runDraftDelete(ctx, args[0])
			}),
		},
	)
	return cmd
}

func watchCommand(r *runner) *cobra.Command {
	var (
		policy  string
		refresh time.Duration
	)
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Stay online as a tab: sync in the background and resolve conflicts",
		Args:  cobra.NoArgs,
		RunE: r.wrap(func(ctx context.Context, c *Cli, _ []string) error {
			return c.runWatch(ctx, policy, refresh)
		}),
	}
	cmd.Flags().StringVar(&policy, "on-conflict", OnConflictAsk, "ask, local, remote or ignore")
	cmd.Flags().DurationVar(&refresh, "refresh", defaultRefresh, "banner refresh and storage maintenance period")
	return cmd
}

func firstArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}
