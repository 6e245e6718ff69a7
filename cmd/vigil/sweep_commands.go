package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"vigil/internal/api"
)

type sweepAction func(*api.Client, context.Context) (*api.ActionResponse, error)

func newSweepCommands(ctx *commandContext) []*cobra.Command {
	return []*cobra.Command{
		newActionCommand(ctx, "activate", "Permit sweeping and start a continuation", (*api.Client).Activate),
		newActionCommand(ctx, "deactivate", "Forbid sweeping and cancel the running continuation", (*api.Client).Deactivate),
		newActionCommand(ctx, "start", "Start a continuation if the sweep is active and idle", (*api.Client).Start),
		newActionCommand(ctx, "stop", "Ask the running continuation to stop after its current step", (*api.Client).Stop),
	}
}

func newActionCommand(ctx *commandContext, use, short string, action sweepAction) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				resp, err := action(client, cmd.Context())
				if err != nil {
					return err
				}
				printAction(cmd, resp)
				return nil
			})
		},
	}
}

func newNotifyCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "notify <identifier>",
		Short: "Report that the content store finished preparing an object",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				resp, err := client.NotifyAvailable(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				printAction(cmd, resp)
				return nil
			})
		},
	}
}

func newTestNotifyCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "test-notify",
		Short: "Send a test notification",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				resp, err := client.TestNotification(cmd.Context())
				if err != nil {
					return err
				}
				if resp == nil {
					return errors.New("missing notification response")
				}
				fmt.Fprintln(cmd.OutOrStdout(), resp.Message)
				return nil
			})
		},
	}
}

func printAction(cmd *cobra.Command, resp *api.ActionResponse) {
	stdout := cmd.OutOrStdout()
	if resp.Message != "" {
		fmt.Fprintln(stdout, resp.Message)
	}
	fmt.Fprintf(stdout, "Sweep state: %s\n", resp.Sweep.State)
	if resp.Sweep.WaitingFor != "" {
		fmt.Fprintf(stdout, "Waiting for: %s\n", resp.Sweep.WaitingFor)
	}
}
