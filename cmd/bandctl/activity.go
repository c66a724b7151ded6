package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/srg/bandctl/internal/activity"
)

// defaultHistory is how far back a first fetch reaches
const defaultHistory = 7 * 24 * time.Hour

func newActivityCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "activity",
		Short: "Fetch and show activity history",
	}

	fetch := &cobra.Command{
		Use:   "fetch",
		Short: "Download activity from the band into the store",
		Long: `Download minute samples from the band and store them as hourly aggregates.
Without --since the fetch resumes where the previous one ended.`,
		Args: cobra.NoArgs,
		RunE: runActivityFetch,
	}
	fetch.Flags().String("since", "", "Start: 2006-01-02[T15:04], RFC3339 or a duration like 48h")
	fetch.Flags().String("until", "", "End (default now)")

	show := &cobra.Command{
		Use:   "show",
		Short: "Show stored activity",
		Args:  cobra.NoArgs,
		RunE:  runActivityShow,
	}
	show.Flags().String("since", "24h", "Start")
	show.Flags().String("until", "", "End (default now)")
	show.Flags().Bool("by-day", false, "One line per day")
	show.Flags().StringP("format", "f", "", "Output format: table or json (default from config)")

	cmd.AddCommand(fetch, show)
	return cmd
}

func timeRange(cmd *cobra.Command, e *env, since time.Time) (time.Time, time.Time, error) {
	t := now().In(e.loc)
	if s, _ := cmd.Flags().GetString("since"); s != "" {
		v, err := parseWhen(s, e.loc, t)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		since = v
	}
	until := t
	if s, _ := cmd.Flags().GetString("until"); s != "" {
		v, err := parseWhen(s, e.loc, t)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		until = v
	}
	return since, until, nil
}

// hourMerger folds the partial aggregates that batch boundaries produce back
// into whole hours before they reach the store.
type hourMerger struct {
	hours map[int64]activity.HourlyAggregate
}

func (m *hourMerger) merge(batch []activity.HourlyAggregate) []activity.HourlyAggregate {
	out := make([]activity.HourlyAggregate, 0, len(batch))
	for _, h := range batch {
		key := h.Time.Unix()
		if prev, ok := m.hours[key]; ok {
			h = activity.Combine(prev, h)
		}
		m.hours[key] = h
		out = append(out, h)
	}
	return out
}

func runActivityFetch(cmd *cobra.Command, _ []string) error {
	e, err := loadEnv(cmd)
	if err != nil {
		return err
	}
	p, err := e.selected()
	if err != nil {
		return err
	}

	since := p.LatestActivity
	if since.IsZero() {
		since = now().Add(-defaultHistory)
	}
	start, end, err := timeRange(cmd, e, since)
	if err != nil {
		return err
	}
	if !start.Before(end) {
		fmt.Fprintln(e.out(), "Activity is up to date.")
		return nil
	}

	b, err := e.open(p)
	if err != nil {
		return err
	}
	ctx, cancel := signalContext(cmd)
	defer cancel()

	progress := NewProgressPrinter(cmd.ErrOrStderr(), "Fetching activity")
	progress.Start()
	defer progress.Stop()

	merger := &hourMerger{hours: map[int64]activity.HourlyAggregate{}}
	samples := 0
	var fetchErr error
	for ev := range b.StreamActivity(ctx, start, end) {
		switch ev.Kind {
		case activity.EventSample:
			samples++
			progress.Set(ev.Sample.Time.In(e.loc).Format("2006-01-02 15:04"))
		case activity.EventBatch:
			if err := e.store.PutActivity(p.ID, merger.merge(ev.Batch)); err != nil {
				cancel()
				fetchErr = err
			}
		case activity.EventDone:
			if fetchErr == nil {
				fetchErr = ev.Err
			}
		}
	}
	progress.Stop()
	if fetchErr != nil {
		return fetchErr
	}

	fmt.Fprintf(e.out(), "Fetched %d samples (%d hourly records) from %s to %s\n",
		samples, len(merger.hours), start.In(e.loc).Format("2006-01-02 15:04"), end.In(e.loc).Format("2006-01-02 15:04"))
	return nil
}

func runActivityShow(cmd *cobra.Command, _ []string) error {
	e, err := loadEnv(cmd)
	if err != nil {
		return err
	}
	format, err := e.format()
	if err != nil {
		return err
	}
	p, err := e.selected()
	if err != nil {
		return err
	}
	start, end, err := timeRange(cmd, e, now().Add(-24*time.Hour))
	if err != nil {
		return err
	}
	byDay, _ := cmd.Flags().GetBool("by-day")

	rows, err := e.store.QueryActivity(p.ID, start, end, byDay)
	if err != nil {
		return err
	}
	return printActivity(e, rows, byDay, format)
}

func printActivity(e *env, rows []activity.HourlyAggregate, byDay bool, format string) error {
	if format == "json" {
		if rows == nil {
			rows = []activity.HourlyAggregate{}
		}
		return e.printJSON(rows)
	}
	if len(rows) == 0 {
		fmt.Fprintln(e.out(), "No activity in range.")
		return nil
	}

	layout := "2006-01-02 15:04"
	if byDay {
		layout = time.DateOnly
	}
	w := tabwriter.NewWriter(e.out(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tSTEPS\tHEART RATE")
	for _, r := range rows {
		hr := "-"
		if r.AverageHeartRate > 0 {
			hr = fmt.Sprintf("%.0f", r.AverageHeartRate)
		}
		fmt.Fprintf(w, "%s\t%d\t%s\n", r.Time.In(e.loc).Format(layout), r.TotalSteps, hr)
	}
	return w.Flush()
}

