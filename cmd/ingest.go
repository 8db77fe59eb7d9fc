package main

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xhad/screener/pkg/inbox"
	"github.com/xhad/screener/pkg/screening"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [files or directories...]",
	Short: "Index résumé files under a position",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)

	ingestCmd.Flags().Int64P("position", "p", 0, "position id the résumés belong to")
	ingestCmd.Flags().StringP("name", "n", "", "candidate name (single file only; default is the file name)")
	ingestCmd.Flags().Bool("screen", false, "validate and record each candidate before indexing")
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	positionID, _ := cmd.Flags().GetInt64("position")
	name, _ := cmd.Flags().GetString("name")
	screen, _ := cmd.Flags().GetBool("screen")

	if positionID < 1 {
		return errPositionRequired
	}

	files, err := collectFiles(args)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no résumé files found")
	}
	if name != "" && len(files) > 1 {
		return fmt.Errorf("--name can only be used with a single file")
	}

	a, err := newAppContext(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	ingest := func(ctx context.Context, path string) bool {
		return a.pipeline.Ingest(ctx, path, positionID, name)
	}
	if screen {
		svc, closeStore, err := a.screeningService()
		if err != nil {
			return err
		}
		defer closeStore()
		ingest = func(ctx context.Context, path string) bool {
			out, err := svc.Submit(ctx, screening.Submission{PositionID: positionID, FilePath: path, CandidateName: name})
			if err != nil {
				a.logger.Error("submission failed", zap.String("file", path), zap.Error(err))
				return false
			}
			if !out.Indexed {
				color.Yellow("\n%s: %s", filepath.Base(path), out.Message)
			}
			return out.Indexed
		}
	}

	color.Blue("\nIndexing %d file(s) for position %d\n", len(files), positionID)
	bar := getProgressBar(len(files), "Indexing résumés...")

	var ok, failed int
	for _, path := range files {
		if ingest(ctx, path) {
			ok++
		} else {
			failed++
		}
		bar.Add(1)
	}
	bar.Finish()

	color.Green("\n✓ Indexed %d résumé(s)\n", ok)
	if failed > 0 {
		color.Red("✗ %d file(s) failed, see log for details\n", failed)
	}
	return nil
}

func (a *appContext) screeningService() (*screening.Service, func(), error) {
	cs, err := a.candidateStore()
	if err != nil {
		return nil, nil, err
	}
	svc, err := screening.NewService(screening.ServiceConfig{
		Store:     cs,
		Extractor: a.extractor,
		Validator: a.validator(),
		Pipeline:  a.pipeline,
		Logger:    a.logger,
	})
	if err != nil {
		cs.Close()
		return nil, nil, err
	}
	return svc, func() { cs.Close() }, nil
}

// collectFiles expands directories into the résumé files they contain.
func collectFiles(args []string) ([]string, error) {
	exts := make(map[string]bool)
	for _, e := range inbox.DefaultExtensions {
		exts[e] = true
	}

	var files []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			files = append(files, arg)
			continue
		}
		err = filepath.WalkDir(arg, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() || strings.HasPrefix(d.Name(), ".") {
				return nil
			}
			if exts[strings.ToLower(filepath.Ext(path))] {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return files, nil
}
