/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// sweepCmd represents the sweep command
var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Expire stale pending friend requests and purge old terminal ones",
	Long: `Marks pending friend requests older than the expiry window as expired,
then deletes declined and expired rows past the same window. The server
never does this on its own; run sweep from cron or by hand.`,
	Run: func(cmd *cobra.Command, args []string) {
		days, _ := cmd.Flags().GetInt("days")
		if days <= 0 {
			days = viper.GetInt(expiryDaysKey)
		}
		purge, _ := cmd.Flags().GetBool("purge")

		expired, err := uc.ExpireStale(days)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error expiring requests: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("expired %d pending request(s) older than %d day(s)\n", expired, days)

		if !purge {
			return
		}
		purged, err := uc.PurgeTerminal(days)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error purging requests: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("purged %d declined/expired request(s)\n", purged)
	},
}

func init() {
	rootCmd.AddCommand(sweepCmd)

	sweepCmd.Flags().Int("days", 0, "Expiry window in days (default from config)")
	sweepCmd.Flags().Bool("purge", false, "Also delete declined and expired rows past the window")
}
