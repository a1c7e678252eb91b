package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zhouzirui/aituber/backend/internal/model/live"
	"github.com/zhouzirui/aituber/backend/internal/model/persona"
	"github.com/zhouzirui/aituber/backend/internal/service/pipeline"
	"github.com/zhouzirui/aituber/backend/internal/store"
)

func newCommentCmd(opts *options) *cobra.Command {
	var in live.CommentInput

	commentCmd := &cobra.Command{
		Use:   "comment",
		Short: "Run one comment through the pipeline and print the reply",
		Long: `Run one comment through the full pipeline: viewer resolution, filtering,
context building, reply generation and archiving. The reply is printed as JSON.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			active, ok := persona.Resolve(persona.NewMemoryStore(persona.Seed()), opts.cfg.Stream.PersonaID)
			if !ok {
				return fmt.Errorf("persona %q not found", opts.cfg.Stream.PersonaID)
			}
			return opts.withStore(cmd, func(ctx context.Context, st store.Store) error {
				proc, err := pipeline.NewFromConfig(ctx, opts.cfg.AI, st, active, opts.cfg.Stream.DefaultTitle)
				if err != nil {
					return err
				}
				out, err := proc.Process(ctx, in)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), out)
			})
		},
	}
	commentCmd.Flags().StringVarP(&in.SessionID, "session", "s", "", "Session id (created when absent)")
	commentCmd.Flags().StringVarP(&in.Username, "user", "u", "", "Viewer username")
	commentCmd.Flags().StringVarP(&in.Comment, "text", "t", "", "Comment text")
	_ = commentCmd.MarkFlagRequired("user")

	return commentCmd
}
