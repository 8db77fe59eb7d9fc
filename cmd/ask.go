package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/xhad/screener/pkg/llm"
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask about a position's candidates; without a question starts an interactive session",
	RunE:  runAsk,
}

func init() {
	rootCmd.AddCommand(askCmd)

	askCmd.Flags().Int64P("position", "p", 0, "position id to ask about")
	askCmd.Flags().IntP("top-k", "k", 0, "number of résumés given to the assistant (default from config)")
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	positionID, _ := cmd.Flags().GetInt64("position")
	topK, _ := cmd.Flags().GetInt("top-k")
	if positionID < 1 {
		return errPositionRequired
	}

	a, err := newAppContext(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	assistant, err := a.assistant()
	if err != nil {
		return err
	}

	if len(args) > 0 {
		answer(ctx, a, assistant, strings.Join(args, " "), positionID, topK)
		return nil
	}

	// Interactive chat loop with colored output
	color.Cyan("\nAsk about the candidates for position %d (type 'exit' to quit)", positionID)

	scanner := bufio.NewScanner(os.Stdin)
	userPrompt := color.New(color.FgGreen).PrintfFunc()

	for {
		userPrompt("\nYou: ")
		if !scanner.Scan() {
			break
		}

		query := strings.TrimSpace(scanner.Text())
		if strings.ToLower(query) == "exit" {
			break
		}
		if query == "" {
			continue
		}
		answer(ctx, a, assistant, query, positionID, topK)
	}

	return scanner.Err()
}

func answer(ctx context.Context, a *appContext, assistant *llm.Assistant, query string, positionID int64, topK int) {
	assistantPrompt := color.New(color.FgCyan).PrintfFunc()

	querySpinner := getSpinner(" Searching résumés...")
	passages := a.retriever.Retrieve(ctx, query, positionID, topK)
	querySpinner.Finish()
	fmt.Print("\r")

	if len(passages) == 0 {
		color.Yellow("No résumés indexed for this position.")
		return
	}

	fmt.Print("\n")
	assistantPrompt("Assistant: ")

	responseSpinner := getSpinner(" Thinking...")
	firstChunk := true

	err := assistant.AskStream(ctx, query, passages, func(chunk string) error {
		// Clear spinner on first chunk
		if firstChunk {
			responseSpinner.Finish()
			firstChunk = false
			fmt.Print("\n")
		}
		fmt.Print(chunk)
		return nil
	})
	if firstChunk {
		responseSpinner.Finish()
	}
	if err != nil {
		color.Red("\nError: %v", err)
		return
	}
	fmt.Print("\n")

	sources := make([]string, 0, len(passages))
	for _, p := range passages {
		sources = append(sources, p.Metadata.CandidateName)
	}
	color.HiBlack("Sources: %s", strings.Join(sources, ", "))
}
