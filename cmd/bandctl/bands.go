package main

import (
	"fmt"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/srg/bandctl/internal/auth"
	"github.com/srg/bandctl/internal/broker"
	"github.com/srg/bandctl/internal/device"
	"github.com/srg/bandctl/internal/store"
)

func newBandCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "band",
		Short: "Manage paired bands",
	}

	add := &cobra.Command{
		Use:   "add [address]",
		Short: "Pair a band",
		Long: `Authenticate against a band with its auth key and remember it.

Without an address the strongest band found by a scan is used.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runBandAdd,
	}
	add.Flags().StringP("key", "k", "", "Auth key, 32 hex characters (required)")
	add.Flags().StringP("nickname", "n", "", "Nickname (default: advertised name)")
	_ = add.MarkFlagRequired("key")

	list := &cobra.Command{
		Use:   "list",
		Short: "List paired bands",
		Args:  cobra.NoArgs,
		RunE:  runBandList,
	}
	list.Flags().StringP("format", "f", "", "Output format: table or json (default from config)")

	remove := &cobra.Command{
		Use:   "remove <band>",
		Short: "Forget a band and its activity history",
		Args:  cobra.ExactArgs(1),
		RunE:  runBandRemove,
	}

	cmd.AddCommand(add, list, remove)
	return cmd
}

func runBandAdd(cmd *cobra.Command, args []string) error {
	keyStr, _ := cmd.Flags().GetString("key")
	key, err := auth.ParseKey(keyStr)
	if err != nil {
		return err
	}
	e, err := loadEnv(cmd)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext(cmd)
	defer cancel()

	var h device.Handle
	if len(args) == 1 {
		h = device.Handle{ID: args[0]}
	} else {
		central, err := e.Central()
		if err != nil {
			return err
		}
		progress := NewProgressPrinter(cmd.ErrOrStderr(), "Looking for a band")
		progress.Start()
		h, err = broker.New(central, e.logger).Select(ctx, &broker.Options{Duration: e.cfg.ScanTimeout})
		progress.Stop()
		if err != nil {
			return err
		}
	}

	b, err := e.openHandle(h, &key)
	if err != nil {
		return err
	}
	if err := b.Open(ctx); err != nil {
		return err
	}
	defer b.Close()

	mac, err := b.MAC(ctx)
	if err != nil {
		return err
	}

	nickname, _ := cmd.Flags().GetString("nickname")
	if nickname == "" {
		nickname = h.Name
	}
	if nickname == "" {
		nickname = "band-" + strconv.Itoa(len(e.store.ListBands())+1)
	}

	p, err := e.store.AddBand(store.BandProfile{
		Nickname:  nickname,
		MAC:       mac,
		DeviceID:  h.ID,
		AuthKey:   key.String(),
		DateAdded: now().Truncate(time.Second),
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(e.out(), "Added band %d (%s) %s\n", p.ID, p.Nickname, p.MAC)
	return nil
}

func runBandList(cmd *cobra.Command, _ []string) error {
	e, err := loadEnv(cmd)
	if err != nil {
		return err
	}
	format, err := e.format()
	if err != nil {
		return err
	}

	bands := e.store.ListBands()
	if format == "json" {
		return e.printJSON(bands)
	}
	if len(bands) == 0 {
		fmt.Fprintln(e.out(), "No bands paired.")
		return nil
	}

	w := tabwriter.NewWriter(e.out(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNICKNAME\tMAC\tADDED\tACTIVITY UNTIL")
	for _, p := range bands {
		until := "-"
		if !p.LatestActivity.IsZero() {
			until = p.LatestActivity.In(e.loc).Format("2006-01-02 15:04")
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", p.ID, p.Nickname, p.MAC, p.DateAdded.In(e.loc).Format(time.DateOnly), until)
	}
	return w.Flush()
}

func runBandRemove(cmd *cobra.Command, args []string) error {
	e, err := loadEnv(cmd)
	if err != nil {
		return err
	}
	p, err := e.lookup(args[0])
	if err != nil {
		return err
	}
	if err := e.store.RemoveBand(p.ID); err != nil {
		return err
	}
	fmt.Fprintf(e.out(), "Removed band %d (%s)\n", p.ID, p.Nickname)
	return nil
}
