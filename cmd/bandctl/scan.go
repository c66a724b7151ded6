package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/srg/bandctl/internal/broker"
)

func newScanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Scan for bands",
		Long: `Scan for bands advertising the band service and list them, strongest
signal first. Bands already paired are marked with their nickname.`,
		Args: cobra.NoArgs,
		RunE: runScan,
	}
	cmd.Flags().DurationP("duration", "d", 0, "Scan duration (default from config)")
	cmd.Flags().StringP("format", "f", "", "Output format: table or json (default from config)")
	cmd.Flags().Bool("allow-duplicates", false, "Report repeated advertisements")
	return cmd
}

type scanRow struct {
	broker.Candidate
	Paired string `json:"paired,omitempty"`
}

func runScan(cmd *cobra.Command, _ []string) error {
	e, err := loadEnv(cmd)
	if err != nil {
		return err
	}
	format, err := e.format()
	if err != nil {
		return err
	}
	central, err := e.Central()
	if err != nil {
		return err
	}

	duration, _ := cmd.Flags().GetDuration("duration")
	if duration == 0 {
		duration = e.cfg.ScanTimeout
	}
	allowDup, _ := cmd.Flags().GetBool("allow-duplicates")

	ctx, cancel := signalContext(cmd)
	defer cancel()

	b := broker.New(central, e.logger)
	progress := NewProgressPrinter(cmd.ErrOrStderr(), "Scanning for bands")
	progress.Start()
	go func() {
		n := 0
		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-b.Events():
				if ev.Type == broker.EventNew {
					n++
					progress.Set(fmt.Sprintf("%d found", n))
				}
			}
		}
	}()

	found, err := b.Scan(ctx, &broker.Options{Duration: duration, AllowDuplicates: allowDup})
	progress.Stop()
	if err != nil {
		return err
	}

	rows := make([]scanRow, 0, len(found))
	for _, c := range found {
		row := scanRow{Candidate: c}
		if p, err := e.store.BandByDeviceID(c.Handle.ID); err == nil {
			row.Paired = p.Nickname
		}
		rows = append(rows, row)
	}

	if format == "json" {
		return e.printJSON(rows)
	}
	if len(rows) == 0 {
		fmt.Fprintln(e.out(), "No bands found.")
		return nil
	}
	w := tabwriter.NewWriter(e.out(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ADDRESS\tNAME\tRSSI\tPAIRED")
	for _, r := range rows {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", r.Handle.Addr(), r.Handle.Name, r.RSSI, r.Paired)
	}
	return w.Flush()
}

