package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/xhad/screener/pkg/candidates"
)

var positionCmd = &cobra.Command{
	Use:   "position",
	Short: "Manage open positions",
}

var positionAddCmd = &cobra.Command{
	Use:   "add [name]",
	Short: "Open a new position",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runPositionAdd,
}

var positionListCmd = &cobra.Command{
	Use:   "list",
	Short: "List positions",
	RunE:  runPositionList,
}

var positionStatusCmd = &cobra.Command{
	Use:   "status [id] [active|inactive|deleted]",
	Short: "Change the status of a position",
	Args:  cobra.ExactArgs(2),
	RunE:  runPositionStatus,
}

func init() {
	rootCmd.AddCommand(positionCmd)
	positionCmd.AddCommand(positionAddCmd, positionListCmd, positionStatusCmd)

	positionAddCmd.Flags().String("description", "", "position description")
	positionListCmd.Flags().String("status", "", "only list positions with this status")
}

func openCandidateStore() (*candidates.Store, error) {
	cfg, _, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return candidates.NewStore(cfg.Candidates.DBPath)
}

func runPositionAdd(cmd *cobra.Command, args []string) error {
	desc, _ := cmd.Flags().GetString("description")

	cs, err := openCandidateStore()
	if err != nil {
		return err
	}
	defer cs.Close()

	id, err := cs.CreatePosition(cmd.Context(), strings.Join(args, " "), desc)
	if err != nil {
		return err
	}
	color.Green("✓ Created position %d", id)
	return nil
}

func runPositionList(cmd *cobra.Command, _ []string) error {
	status, _ := cmd.Flags().GetString("status")

	cs, err := openCandidateStore()
	if err != nil {
		return err
	}
	defer cs.Close()

	positions, err := cs.ListPositions(cmd.Context(), status)
	if err != nil {
		return err
	}
	if len(positions) == 0 {
		color.Yellow("No positions.")
		return nil
	}

	for _, p := range positions {
		count, err := cs.ListByPosition(cmd.Context(), p.ID)
		if err != nil {
			return err
		}
		fmt.Printf("%s  %-30s %-9s %d candidate(s)\n",
			color.CyanString("%4d", p.ID), p.Name, p.Status, len(count))
	}
	return nil
}

func runPositionStatus(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid position id %q", args[0])
	}

	cs, err := openCandidateStore()
	if err != nil {
		return err
	}
	defer cs.Close()

	if err := cs.SetPositionStatus(cmd.Context(), id, args[1]); err != nil {
		return err
	}
	color.Green("✓ Position %d is now %s", id, args[1])
	return nil
}
