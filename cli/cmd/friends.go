/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// friendsCmd represents the friends command
var friendsCmd = &cobra.Command{
	Use:   "friends <username>",
	Short: "List a user's friends",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		onlineOnly, _ := cmd.Flags().GetBool("online")

		// Read the store's denormalized online flag directly: this process
		// has no live connections of its own.
		friends, err := repo.FriendsOf(args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error fetching friends: %v\n", err)
			os.Exit(1)
		}
		if onlineOnly {
			online := friends[:0]
			for _, f := range friends {
				if f.Online {
					online = append(online, f)
				}
			}
			friends = online
		}
		if len(friends) == 0 {
			fmt.Println("no friends to show")
			return
		}
		for _, f := range friends {
			marker := " "
			if f.Online {
				marker = "*"
			}
			fmt.Printf("%s %-24s %-20s since %s\n", marker, f.Username, f.Name, f.Since.Format("2006-01-02"))
		}
	},
}

func init() {
	rootCmd.AddCommand(friendsCmd)

	friendsCmd.Flags().Bool("online", false, "Only show friends with a live connection")
}
