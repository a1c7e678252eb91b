// Command aituberctl inspects sessions and runs single comments through the pipeline from a terminal.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/zhouzirui/aituber/backend/internal/config"
	"github.com/zhouzirui/aituber/backend/internal/logging"
	"github.com/zhouzirui/aituber/backend/internal/store"
)

type options struct {
	timeout time.Duration
	cfg     *config.Config
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:   "aituberctl",
		Short: "Operate the AITuber comment backend",
		Long: `Operate the AITuber comment backend without the HTTP server.

Configuration is read from the environment (and .env), the same way the API server reads it.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			_ = godotenv.Load()
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load configuration: %w", err)
			}
			logging.Configure(cmd.ErrOrStderr(), cfg.Log)
			opts.cfg = cfg
			return nil
		},
	}
	rootCmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", 60*time.Second, "Operation timeout")

	rootCmd.AddCommand(newSessionCmd(opts))
	rootCmd.AddCommand(newCommentCmd(opts))
	return rootCmd
}

// withStore opens the configured store for the duration of fn.
func (o *options) withStore(cmd *cobra.Command, fn func(ctx context.Context, st store.Store) error) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), o.timeout)
	defer cancel()

	st, err := store.Open(ctx, o.cfg.Store.Driver, o.cfg.Store.DSN)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()
	return fn(ctx, st)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
