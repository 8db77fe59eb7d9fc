package main

import (
	"errors"
	"fmt"

	"github.com/fatih/color"
	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"github.com/xhad/screener/pkg/store"
)

const (
	PromptYes = "Yes"
	PromptNo  = "No"
)

var purgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Remove every indexed résumé of a position",
	RunE:  runPurge,
}

func init() {
	rootCmd.AddCommand(purgeCmd)

	purgeCmd.Flags().Int64P("position", "p", 0, "position id to purge")
	purgeCmd.Flags().BoolP("yes", "y", false, "do not ask for confirmation")
	purgeCmd.Flags().Bool("candidates", false, "also delete the position's candidate records and notes")
}

func runPurge(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	positionID, _ := cmd.Flags().GetInt64("position")
	yes, _ := cmd.Flags().GetBool("yes")
	withCandidates, _ := cmd.Flags().GetBool("candidates")
	if positionID < 1 {
		return errPositionRequired
	}

	if !yes {
		prompt := promptui.Select{
			Label: fmt.Sprintf("Purge all résumés of position %d?", positionID),
			Items: []string{PromptNo, PromptYes},
		}
		_, choice, err := prompt.Run()
		if err != nil {
			if errors.Is(err, promptui.ErrInterrupt) {
				return nil
			}
			return err
		}
		if choice != PromptYes {
			color.Yellow("Aborted.")
			return nil
		}
	}

	a, err := newAppContext(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	spinner := getSpinner(" Rebuilding index...")
	res, err := a.index.PurgePosition(ctx, positionID)
	spinner.Finish()
	fmt.Print("\r")
	if err != nil {
		return err
	}

	if res.Mode == store.PurgeDisabled {
		color.Yellow("Purge is disabled (index.purge_mode); nothing was removed.")
		return nil
	}
	color.Green("✓ Removed %d résumé(s), %d kept", res.Removed, res.Kept)

	if withCandidates {
		cs, err := a.candidateStore()
		if err != nil {
			return err
		}
		defer cs.Close()
		n, err := cs.DeleteByPosition(ctx, positionID)
		if err != nil {
			return err
		}
		color.Green("✓ Deleted %d candidate record(s)", n)
	}
	return nil
}
