package main

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/xhad/screener/internal/logger"
	"github.com/xhad/screener/internal/models"
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Find the résumés of a position most similar to a query",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSearch,
}

func init() {
	rootCmd.AddCommand(searchCmd)

	searchCmd.Flags().Int64P("position", "p", 0, "position id to search within")
	searchCmd.Flags().IntP("top-k", "k", 0, "number of passages to return (default from config)")
	searchCmd.Flags().Bool("all-positions", false, "search across every position")
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	positionID, _ := cmd.Flags().GetInt64("position")
	topK, _ := cmd.Flags().GetInt("top-k")
	global, _ := cmd.Flags().GetBool("all-positions")

	if positionID < 1 && !global {
		return errPositionRequired
	}

	a, err := newAppContext(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	query := strings.Join(args, " ")
	spinner := getSpinner(" Searching résumés...")
	var passages []models.RetrievedPassage
	if global {
		passages = a.retriever.RetrieveGlobal(ctx, query, topK)
	} else {
		passages = a.retriever.Retrieve(ctx, query, positionID, topK)
	}
	spinner.Finish()
	fmt.Print("\r")

	printPassages(passages)
	return nil
}

func printPassages(passages []models.RetrievedPassage) {
	if len(passages) == 0 {
		color.Yellow("No matching résumés.")
		return
	}

	name := color.New(color.FgGreen, color.Bold).PrintfFunc()
	for i, p := range passages {
		name("\n%d. %s", i+1, p.Metadata.CandidateName)
		color.Cyan("   score %.3f  position %d  %s", p.Score, p.Metadata.PositionID, p.Metadata.FileName)
		fmt.Printf("   %s\n", logger.Truncate(strings.Join(strings.Fields(p.Text), " "), 200))
	}
}
