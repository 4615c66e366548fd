package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/ericfisherdev/leakwatch/internal/domain/model"
)

func newReplayCmd(root *rootOptions) *cobra.Command {
	var alertID int64

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Re-send a stored alert payload to its webhook as a new delivery.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return replay(cmd.Context(), cmd.OutOrStdout(), root.configFile, alertID)
		},
	}

	cmd.Flags().Int64Var(&alertID, "alert", 0, "alert ID to replay (required)")
	_ = cmd.MarkFlagRequired("alert")

	return cmd
}

func replay(ctx context.Context, out io.Writer, configFile string, alertID int64) error {
	if alertID <= 0 {
		return errors.New("--alert must be a positive alert ID")
	}

	a, err := newApp(ctx, configFile)
	if err != nil {
		return err
	}
	defer a.close()

	res, err := a.dispatch.Replay(ctx, alertID)
	if err != nil {
		return err
	}

	printOutcome(out, res)
	if res.Status != model.AlertStatusSuccess {
		return fmt.Errorf("replay of alert %d failed: %s", alertID, res.Error)
	}
	return nil
}

func printOutcome(w io.Writer, o model.DeliveryOutcome) {
	_, _ = fmt.Fprintf(w, "delivery:  %s\n", o.DeliveryID)
	_, _ = fmt.Fprintf(w, "alert:     %d\n", o.AlertID)
	_, _ = fmt.Fprintf(w, "status:    %s\n", o.Status)
	if o.HTTPStatus != 0 {
		_, _ = fmt.Fprintf(w, "http:      %d\n", o.HTTPStatus)
	}
	_, _ = fmt.Fprintf(w, "attempts:  %d\n", o.Attempts)
	_, _ = fmt.Fprintf(w, "duration:  %s\n", o.Duration.Round(time.Millisecond))
	if o.Error != "" {
		_, _ = fmt.Fprintf(w, "error:     %s\n", o.Error)
	}
}
