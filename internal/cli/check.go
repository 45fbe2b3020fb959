package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"redteam/internal/adapters/ai"
	"redteam/pkg/errors"
)

const probePrompt = "Hello! Please respond with 'Connection test successful' if you can read this."

func CheckCmd() *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Send a short prompt through the configured provider",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			c, err := setup(ctx)
			if err != nil {
				return err
			}
			defer c.Close()

			out := cmd.OutOrStdout()
			if c.Gateway != nil {
				fmt.Fprintf(out, "Provider: %s\nModel:    %s\n", c.Gateway.Provider(), c.Gateway.Model())
			}
			if c.Redis != nil {
				if err := c.Redis.Health(ctx); err != nil {
					fmt.Fprintf(out, "✗ Redis: %v\n", err)
				} else {
					fmt.Fprintln(out, "✓ Redis reachable")
				}
			}

			reply, err := c.Caller.Call(ctx, ai.CallRequest{
				Prompt:    probePrompt,
				MaxTokens: 100,
				Timeout:   timeout,
			})
			if err != nil {
				fmt.Fprintf(out, "✗ Provider check failed (%s): %v\n", ai.KindOf(err), err)
				return errors.Wrap(err, "provider check")
			}

			fmt.Fprintf(out, "✓ %s\n", strings.TrimSpace(reply))
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "probe timeout")
	return cmd
}
