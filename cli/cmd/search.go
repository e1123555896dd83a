/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// searchCmd represents the search command
var searchCmd = &cobra.Command{
	Use:   "search <term>",
	Short: "Search the user directory",
	Long: `Searches usernames and display names by substring. With --as, results
exclude that user along with their friends and anyone they have a
pending request with, the same view the server gives a client.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		asUser, _ := cmd.Flags().GetString("as")
		limit, _ := cmd.Flags().GetInt("limit")

		candidates, err := uc.SearchCandidates(args[0], asUser, limit)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error searching users: %v\n", err)
			os.Exit(1)
		}
		if len(candidates) == 0 {
			fmt.Println("no matches")
			return
		}
		for _, c := range candidates {
			marker := " "
			if c.Online {
				marker = "*"
			}
			fmt.Printf("%s %-24s %s\n", marker, c.Username, c.Name)
		}
	},
}

func init() {
	rootCmd.AddCommand(searchCmd)

	searchCmd.Flags().String("as", "", "Apply the exclusion rules of this username")
	searchCmd.Flags().Int("limit", 10, "Maximum number of results")
}
