package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"

	"github.com/xhad/screener/internal/logger"
	"github.com/xhad/screener/pkg/candidates"
	cfgPkg "github.com/xhad/screener/pkg/config"
	"github.com/xhad/screener/pkg/extractor"
	"github.com/xhad/screener/pkg/llm"
	"github.com/xhad/screener/pkg/pipeline"
	"github.com/xhad/screener/pkg/store"
)

// appContext holds the components every command shares.
type appContext struct {
	config    *cfgPkg.Config
	logger    *zap.Logger
	index     *store.Index
	extractor *extractor.Extractor
	pipeline  *pipeline.Pipeline
	retriever *pipeline.Retriever
}

func loadConfig() (*cfgPkg.Config, *zap.Logger, error) {
	cfg, err := cfgPkg.LoadConfig(cfgFile)
	if err != nil {
		return nil, nil, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		msgs := make([]string, len(errs))
		for i, e := range errs {
			msgs[i] = e.Error()
		}
		return nil, nil, fmt.Errorf("invalid config:\n  %s", strings.Join(msgs, "\n  "))
	}

	log, err := logger.New(jsonLogs || cfg.Log.JSON, debug || cfg.Log.Debug)
	if err != nil {
		return nil, nil, fmt.Errorf("creating a logger: %w", err)
	}
	return cfg, log, nil
}

func newAppContext(ctx context.Context) (*appContext, error) {
	cfg, log, err := loadConfig()
	if err != nil {
		return nil, err
	}

	index, err := store.OpenOrCreate(ctx, store.IndexConfig{
		Backend:    cfg.Index.Backend,
		Path:       cfg.Index.Path,
		Tenant:     cfg.Index.Tenant,
		Database:   cfg.Index.Database,
		Collection: cfg.Index.Collection,
		ConnString: cfg.Index.URL,
		TableName:  cfg.Index.TableName,
		VectorDim:  cfg.Index.VectorDim,
		BatchSize:  cfg.Index.BatchSize,
		PurgeMode:  cfg.Index.PurgeMode,
		Logger:     log,
	})
	if err != nil {
		return nil, err
	}

	emb, err := llm.NewEmbedder(ctx, llm.EmbedderConfig{
		Provider:  cfg.Embedding.Provider,
		Model:     cfg.Embedding.Model,
		BaseURL:   cfg.Embedding.BaseURL,
		APIKey:    cfg.Embedding.APIKey,
		BatchSize: cfg.Embedding.BatchSize,
		RateLimit: cfg.Embedding.RateLimit,
	})
	if err != nil {
		index.Close()
		return nil, err
	}

	loader := extractor.NewLoader(log)
	ext := extractor.NewWithConfig(extractor.ExtractorConfig{
		MinChars: cfg.Extraction.MinChars,
		Loader:   loader,
		Logger:   log,
	})

	p, err := pipeline.NewWithConfig(pipeline.PipelineConfig{
		Loader:    loader,
		Extractor: ext,
		Embedder:  emb,
		Index:     index,
		Logger:    log,
	})
	if err != nil {
		index.Close()
		return nil, err
	}

	r, err := pipeline.NewRetriever(pipeline.RetrieverConfig{
		Embedder: emb,
		Index:    index,
		TopK:     cfg.Retrieval.TopK,
		Logger:   log,
	})
	if err != nil {
		index.Close()
		return nil, err
	}

	return &appContext{
		config:    cfg,
		logger:    log,
		index:     index,
		extractor: ext,
		pipeline:  p,
		retriever: r,
	}, nil
}

func (a *appContext) Close() {
	a.index.Close()
	a.logger.Sync()
}

func (a *appContext) candidateStore() (*candidates.Store, error) {
	return candidates.NewStore(a.config.Candidates.DBPath)
}

func (a *appContext) validator() *extractor.Validator {
	return extractor.NewValidator(extractor.ValidatorConfig{
		MinChars:    a.config.Extraction.MinChars,
		MinKeywords: a.config.Extraction.MinKeywords,
		Logger:      a.logger,
	})
}

func (a *appContext) assistant() (*llm.Assistant, error) {
	model, err := llm.NewChatModel(llm.ChatConfig{
		Provider:    a.config.LLM.Provider,
		Model:       a.config.LLM.Model,
		BaseURL:     a.config.LLM.BaseURL,
		APIKey:      a.config.LLM.APIKey,
		Temperature: a.config.LLM.Temperature,
		MaxTokens:   a.config.LLM.MaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize chat engine: %w", err)
	}
	return llm.NewAssistant(model, llm.ChatConfig{
		Temperature: a.config.LLM.Temperature,
		MaxTokens:   a.config.LLM.MaxTokens,
	})
}

var errPositionRequired = errors.New("--position is required")

func getProgressBar(total int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetDescription(color.BlueString(description)),
		progressbar.OptionSetItsString("files"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionFullWidth(),
		progressbar.OptionSetRenderBlankState(true),
	)
}

func getSpinner(description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(-1,
		progressbar.OptionSetDescription(color.CyanString(description)),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetWidth(20),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetRenderBlankState(true),
	)
}
