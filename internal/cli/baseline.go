package cli

import (
	"context"
	"fmt"
	"io"

	v1 "github.com/agrisense-lab/npkcal/internal/api/v1"
	"github.com/spf13/cobra"
)

func newBaselineCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "baseline",
		Short: "Print the reading a fresh worker would treat as already handled",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := setup(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()
			return runBaseline(cmd.Context(), a, cmd.OutOrStdout())
		},
	}
}

func runBaseline(ctx context.Context, a *app, out io.Writer) error {
	snap, err := a.newReconciler().Baseline(ctx)
	if err != nil {
		return err
	}
	if snap == nil {
		fmt.Fprintf(out, "%s is empty\n", a.cfg.Worker.RawCollection)
		return nil
	}

	field := a.cfg.Worker.TimestampField
	fmt.Fprintf(out, "latest:     %s\n", snap.ID)
	fmt.Fprintf(out, "%-11s %s\n", field+":", v1.Describe(snap.Data, field))
	fmt.Fprintf(out, "sensor:     %s\n", v1.Describe(snap.Data, v1.FieldSensorID))
	fmt.Fprintf(out, "processed:  %t\n", v1.IsProcessed(snap.Data))
	return nil
}
