/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// statsCmd represents the stats command
var statsCmd = &cobra.Command{
	Use:   "stats <username>",
	Short: "Show a user's friend-graph counters",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		stats, err := uc.Stats(args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error fetching stats: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("friends:          %d\n", stats.FriendsCount)
		fmt.Printf("pending incoming: %d\n", stats.PendingIncoming)
		fmt.Printf("pending outgoing: %d\n", stats.PendingOutgoing)
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
}
