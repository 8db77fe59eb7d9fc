package main

import (
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xhad/screener/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve ingestion, retrieval and questions over a websocket",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", "", "listen address (default from config)")
	serveCmd.Flags().String("ingest-root", "", "directory ingest requests may read from (default from config; empty disables ingestion)")
	serveCmd.Flags().Bool("no-llm", false, "serve without the question answering endpoint")
}

func runServe(cmd *cobra.Command, _ []string) error {
	addr, _ := cmd.Flags().GetString("addr")
	noLLM, _ := cmd.Flags().GetBool("no-llm")
	ingestRoot, _ := cmd.Flags().GetString("ingest-root")

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newAppContext(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if addr == "" {
		addr = a.config.Server.Addr
	}
	if ingestRoot == "" {
		ingestRoot = a.config.Server.IngestRoot
	}
	if ingestRoot == "" {
		a.logger.Warn("no ingest root configured, websocket ingestion disabled")
	}

	config := server.Config{
		Ingester:       a.pipeline,
		Retriever:      a.retriever,
		IngestRoot:     ingestRoot,
		AllowedOrigins: a.config.Server.AllowedOrigins,
		Logger:         a.logger,
	}
	if !noLLM {
		assistant, err := a.assistant()
		if err != nil {
			a.logger.Warn("questions disabled", zap.Error(err))
		} else {
			config.Assistant = assistant
		}
	}

	srv, err := server.NewWSServer(config)
	if err != nil {
		return err
	}

	color.Cyan("Listening on %s (Ctrl+C to stop)", addr)
	return srv.ListenAndServe(ctx, addr)
}
