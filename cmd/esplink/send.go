package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/darkermage/esplink/internal/config"
	"github.com/darkermage/esplink/internal/device"
)

const defaultMessage = "Hello from esplink!"

func newSendCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "send [message]",
		Short: "Send a single message to the device's /send endpoint",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.load(cmd)
			if err != nil {
				return err
			}
			message := defaultMessage
			if len(args) > 0 {
				message = strings.Join(args, " ")
			}

			ctx, stop := signalContext()
			defer stop()
			return runSend(ctx, cfg, logger, message)
		},
	}
}

// runSend resolves the device once and posts message to it. Unlike the
// agent loop, a failed send is reported as an error.
func runSend(ctx context.Context, cfg *config.Config, logger *slog.Logger, message string) error {
	a, err := newAgent(cfg, logger)
	if err != nil {
		return err
	}
	defer a.close(logger)

	addr := resolveOnce(ctx, a, cfg)
	logger.Info("sending message", "addr", addr.String(), "message", message)

	reply, err := a.client.Send(ctx, addr, message)
	if err != nil {
		return err
	}
	fmt.Println(reply)
	return nil
}

// resolveOnce runs discovery and falls back to the degraded default
func resolveOnce(ctx context.Context, a *agent, cfg *config.Config) device.Address {
	outcome := a.discoverer.Discover(ctx)
	if outcome.Ok() {
		return outcome.Address
	}
	return cfg.FallbackAddress()
}

func newDiscoverCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "discover",
		Short: "Locate the device once and print its address",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.load(cmd)
			if err != nil {
				return err
			}
			a, err := newAgent(cfg, logger)
			if err != nil {
				return err
			}
			defer a.close(logger)

			ctx, stop := signalContext()
			defer stop()

			outcome := a.discoverer.Discover(ctx)
			if !outcome.Ok() {
				return errors.New("device not found")
			}
			fmt.Printf("%s\t%s\t%s\n", outcome.Address.String(), outcome.Address.URL("/"), outcome.Strategy)
			return nil
		},
	}
}

