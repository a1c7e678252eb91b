package main

import (
	"context"
	"slices"

	"github.com/spf13/cobra"

	"github.com/zhouzirui/aituber/backend/internal/model/live"
	"github.com/zhouzirui/aituber/backend/internal/store"
)

func newSessionCmd(opts *options) *cobra.Command {
	sessionCmd := &cobra.Command{
		Use:   "session",
		Short: "Manage stream sessions",
		Long: `Manage stream sessions.

Available subcommands:
  start   - Create a session
  end     - Mark a session as ended
  show    - Print one session
  viewers - List the viewers of a session
  history - Print recent conversations, oldest first`,
	}

	var title string
	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Create a session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if title == "" {
				title = opts.cfg.Stream.DefaultTitle
			}
			return opts.withStore(cmd, func(ctx context.Context, st store.Store) error {
				session, err := st.CreateSession(ctx, title)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), session)
			})
		},
	}
	startCmd.Flags().StringVar(&title, "title", "", "Stream title (default: DEFAULT_STREAM_TITLE)")

	endCmd := &cobra.Command{
		Use:   "end <session-id>",
		Short: "Mark a session as ended",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withStore(cmd, func(ctx context.Context, st store.Store) error {
				session, err := st.EndSession(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), session)
			})
		},
	}

	showCmd := &cobra.Command{
		Use:   "show <session-id>",
		Short: "Print one session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withStore(cmd, func(ctx context.Context, st store.Store) error {
				session, err := st.GetSession(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), session)
			})
		},
	}

	viewersCmd := &cobra.Command{
		Use:   "viewers <session-id>",
		Short: "List the viewers of a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withStore(cmd, func(ctx context.Context, st store.Store) error {
				viewers, err := st.ListViewers(ctx, args[0])
				if err != nil {
					return err
				}
				if viewers == nil {
					viewers = []live.Viewer{}
				}
				return printJSON(cmd.OutOrStdout(), viewers)
			})
		},
	}

	var limit int
	historyCmd := &cobra.Command{
		Use:   "history <session-id>",
		Short: "Print recent conversations, oldest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withStore(cmd, func(ctx context.Context, st store.Store) error {
				history, err := st.GetConversations(ctx, args[0], limit)
				if err != nil {
					return err
				}
				slices.Reverse(history)
				if history == nil {
					history = []live.Conversation{}
				}
				return printJSON(cmd.OutOrStdout(), history)
			})
		},
	}
	historyCmd.Flags().IntVar(&limit, "limit", store.RetentionLimit, "Maximum number of conversations")

	sessionCmd.AddCommand(startCmd, endCmd, showCmd, viewersCmd, historyCmd)
	return sessionCmd
}
