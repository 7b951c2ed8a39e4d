package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"
)

// Show prints recent price adjustments.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot show adjustments")
	}
	defer closeStore()

	records, err := store.ListRecentAdjustments(ctx, opts.Limit)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Fprintln(os.Stdout, "no price adjustments found")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Time (UTC)\tSpend\tRevenue\tROI\tRaw\tMultiplier\tReason")

	for _, rec := range records {
		roi := "-"
		if !rec.ROI.IsZero() {
			roi = rec.ROI.StringFixed(4)
		}
		fmt.Fprintf(writer, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			rec.CreatedAt.UTC().Format(time.RFC3339),
			rec.WeightedSpend.StringFixed(2),
			rec.Revenue.StringFixed(2),
			roi,
			rec.RawMultiplier.StringFixed(3),
			rec.Multiplier.StringFixed(3),
			rec.Reason,
		)
	}

	return writer.Flush()
}
