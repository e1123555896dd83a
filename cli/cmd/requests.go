/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/zmahdi/wasla/server/domain"
)

// requestsCmd represents the requests command
var requestsCmd = &cobra.Command{
	Use:   "requests <username>",
	Short: "List a user's pending friend requests",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		username := args[0]
		outgoing, _ := cmd.Flags().GetBool("outgoing")

		var (
			requests []domain.FriendRequest
			err      error
		)
		if outgoing {
			requests, err = uc.OutgoingRequests(username)
		} else {
			requests, err = uc.PendingRequests(username)
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error fetching requests: %v\n", err)
			os.Exit(1)
		}
		if len(requests) == 0 {
			fmt.Println("no pending requests")
			return
		}
		for _, r := range requests {
			counterpart := r.FromUser
			if outgoing {
				counterpart = r.ToUser
			}
			fmt.Printf("#%-6d %-24s %s\n", r.ID, counterpart, r.CreatedAt.Format("2006-01-02 15:04"))
		}
	},
}

func init() {
	rootCmd.AddCommand(requestsCmd)

	requestsCmd.Flags().Bool("outgoing", false, "Show requests the user sent instead of received")
}
