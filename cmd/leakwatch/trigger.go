package main

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"
)

type triggerOptions struct {
	deviceID    string
	uploadBatch string
}

func newTriggerCmd(root *rootOptions) *cobra.Command {
	opts := &triggerOptions{}

	cmd := &cobra.Command{
		Use:   "trigger",
		Short: "Evaluate one ingested device and wait for its deliveries.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return trigger(cmd.Context(), root.configFile, *opts)
		},
	}

	cmd.Flags().StringVar(&opts.deviceID, "device", "", "device ID to evaluate (required)")
	cmd.Flags().StringVar(&opts.uploadBatch, "batch", "", "upload batch the device arrived in")
	_ = cmd.MarkFlagRequired("device")

	return cmd
}

func trigger(ctx context.Context, configFile string, opts triggerOptions) error {
	deviceID := strings.TrimSpace(opts.deviceID)
	if deviceID == "" {
		return errors.New("--device must not be empty")
	}

	a, err := newApp(ctx, configFile)
	if err != nil {
		return err
	}
	defer a.close()

	a.alertSvc.OnDeviceIngested(ctx, deviceID, opts.uploadBatch)
	a.pool.Wait()

	slog.Info("trigger complete", "device_id", deviceID, "upload_batch", opts.uploadBatch)
	return nil
}
