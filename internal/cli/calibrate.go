package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/agrisense-lab/npkcal/internal/calibration"
	"github.com/agrisense-lab/npkcal/internal/core/storage"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func newCalibrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "calibrate <doc-id>...",
		Short: "Calibrate specific raw readings once",
		Long: `Run the processor on each named raw reading, bypassing the reconciler.
The usual guards still apply, so readings that are already calibrated or
dead-lettered are reported as skipped.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()
			return runCalibrate(cmd.Context(), a, cmd.OutOrStdout(), args)
		},
	}
}

// runCalibrate returns an error when any reading failed or is invalid.
func runCalibrate(ctx context.Context, a *app, out io.Writer, ids []string) error {
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)
	red := color.New(color.FgRed)

	raw := a.cfg.Worker.RawCollection
	failed := 0
	for _, id := range ids {
		doc, err := a.store.Get(ctx, raw, id)
		if errors.Is(err, storage.ErrNotFound) {
			red.Fprintf(out, "%s: not found in %s\n", id, raw)
			failed++
			continue
		}
		if err != nil {
			red.Fprintf(out, "%s: %v\n", id, err)
			failed++
			continue
		}

		res := a.processor.Process(ctx, id, doc)
		switch res.Outcome {
		case calibration.OutcomeCalibrated:
			green.Fprintf(out, "%s: calibrated\n", id)
		case calibration.OutcomeInvalid, calibration.OutcomeFailed:
			red.Fprintf(out, "%s: %s: %v\n", id, res.Outcome, res.Err)
			failed++
		default:
			yellow.Fprintf(out, "%s: %s\n", id, res.Outcome)
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d readings not calibrated", failed, len(ids))
	}
	return nil
}

// setup loads config and logging for one-shot commands.
func setup(ctx context.Context) (*app, error) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, err
	}
	// Command output goes to stdout; keep logs on stderr.
	newLogger(os.Stderr, cfg.Log)
	return newApp(ctx, cfg)
}
