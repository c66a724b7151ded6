package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"unicode"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// formatVersion adds 'v' prefix if version starts with a digit
func formatVersion(ver string) string {
	if len(ver) > 0 && unicode.IsDigit(rune(ver[0])) {
		return "v" + ver
	}
	return ver
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "bandctl",
		Short: "Fitness band command-line tool",
		Long: `Command-line tool for Mi Band style fitness bands:

- Discover and pair bands, keeping their auth keys in a local store
- Read battery, steps, device information and the band clock
- Configure goal, alarms, idle alerts and display behaviour
- Push a weather forecast looked up on Open-Meteo
- Fetch minute-level activity history and keep it as hourly aggregates`,
		Version:      fmt.Sprintf("%s (commit %s, built %s)", formatVersion(version), commit, date),
		SilenceUsage: true,
		// Silence Cobra's "Error:" prefix - main() prints clean errors
		SilenceErrors: true,
	}

	root.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")
	root.PersistentFlags().Bool("verbose", false, "Verbose output (same as --log-level debug)")
	root.PersistentFlags().String("config", "", "Config file (default ~/.bandctl/config.yaml)")
	root.PersistentFlags().StringP("band", "b", "", "Band to talk to: id, nickname or MAC (optional with a single band)")

	root.AddCommand(
		newScanCmd(),
		newBandCmd(),
		newInfoCmd(),
		newTimeCmd(),
		newGoalCmd(),
		newAlarmCmd(),
		newIdleCmd(),
		newDisplayCmd(),
		newWeatherCmd(),
		newActivityCmd(),
	)
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		// Ctrl+C is a normal exit, not an error - exit silently
		if errors.Is(err, context.Canceled) {
			return
		}
		fmt.Fprintf(os.Stderr, "ERROR: %s\n", FormatUserError(err))
		os.Exit(1)
	}
}
