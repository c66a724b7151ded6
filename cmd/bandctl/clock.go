package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// now is replaced in tests
var now = time.Now

func newTimeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "time",
		Short: "Read or set the band clock",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "get",
		Short: "Show the band clock and its drift",
		Args:  cobra.NoArgs,
		RunE:  runTimeGet,
	}, &cobra.Command{
		Use:   "sync",
		Short: "Set the band clock to the local time",
		Args:  cobra.NoArgs,
		RunE:  runTimeSync,
	})
	return cmd
}

func runTimeGet(cmd *cobra.Command, _ []string) error {
	e, err := loadEnv(cmd)
	if err != nil {
		return err
	}
	ctx, cancel := signalContext(cmd)
	defer cancel()

	b, _, err := e.openSelected(ctx)
	if err != nil {
		return err
	}
	defer b.Close()

	t, err := b.CurrentTime(ctx)
	if err != nil {
		return err
	}
	drift := t.Sub(now()).Round(time.Second)
	fmt.Fprintf(e.out(), "%s (drift %s)\n", t.Format("2006-01-02 15:04:05"), drift)
	return nil
}

func runTimeSync(cmd *cobra.Command, _ []string) error {
	e, err := loadEnv(cmd)
	if err != nil {
		return err
	}
	ctx, cancel := signalContext(cmd)
	defer cancel()

	b, _, err := e.openSelected(ctx)
	if err != nil {
		return err
	}
	defer b.Close()

	t := now().In(e.loc)
	if err := b.SetTime(ctx, t); err != nil {
		return err
	}
	fmt.Fprintf(e.out(), "Band clock set to %s\n", t.Format("2006-01-02 15:04:05"))
	return nil
}
