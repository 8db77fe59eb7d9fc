package extractor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/xhad/screener/internal/types"
)

// ErrTooShort marks a strategy that ran but produced too little text.
var ErrTooShort = errors.New("extracted text below minimum length")

// Strategy is one way of turning a file into text.
type Strategy struct {
	Name    string
	Applies func(ext string) bool
	Extract func(ctx context.Context, path string) (string, error)
}

type Attempt struct {
	Strategy string
	Chars    int
	Err      error
}

// Result is the tagged outcome of an extraction run. On failure Text is empty.
type Result struct {
	Text     string
	Success  bool
	Strategy string
	Attempts []Attempt
}

type ExtractorConfig struct {
	MinChars   int
	Loader     types.DocumentLoader
	Strategies []Strategy
	Logger     *zap.Logger
}

type Extractor struct {
	config ExtractorConfig
	logger *zap.Logger
}

func NewWithConfig(config ExtractorConfig) *Extractor {
	if config.MinChars == 0 {
		config.MinChars = DefaultMinChars
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}
	if config.Loader == nil {
		config.Loader = NewLoader(config.Logger)
	}
	if len(config.Strategies) == 0 {
		config.Strategies = DefaultStrategies(config.Loader, config.Logger)
	}

	return &Extractor{
		config: config,
		logger: config.Logger,
	}
}

// DefaultStrategies returns the general reader followed by the per-extension fallbacks.
func DefaultStrategies(loader types.DocumentLoader, logger *zap.Logger) []Strategy {
	return []Strategy{
		{
			Name:    "reader",
			Applies: func(string) bool { return true },
			Extract: func(ctx context.Context, path string) (string, error) {
				docs, err := loader.Load(ctx, path)
				if err != nil {
					return "", err
				}
				return JoinDocuments(docs), nil
			},
		},
		{
			Name:    "pdf-pages",
			Applies: hasExt(".pdf"),
			Extract: func(_ context.Context, path string) (string, error) {
				return extractPDFPages(path, logger)
			},
		},
		{
			Name:    "docx-convert",
			Applies: hasExt(".docx"),
			Extract: func(_ context.Context, path string) (string, error) {
				return convertDOCX(path)
			},
		},
		{
			Name:    "txt-read",
			Applies: hasExt(".txt"),
			Extract: func(_ context.Context, path string) (string, error) {
				data, err := os.ReadFile(path)
				if err != nil {
					return "", err
				}
				return string(data), nil
			},
		},
	}
}

func hasExt(want string) func(string) bool {
	return func(ext string) bool { return ext == want }
}

// Extract tries each applicable strategy in order and returns the first text
// that clears the minimum length. It never returns an error or panics; a file
// no strategy can read yields Result{Success: false}.
func (e *Extractor) Extract(ctx context.Context, path string) Result {
	ext := strings.ToLower(filepath.Ext(path))
	var result Result

	for _, s := range e.config.Strategies {
		if !s.Applies(ext) {
			continue
		}
		if err := ctx.Err(); err != nil {
			result.Attempts = append(result.Attempts, Attempt{Strategy: s.Name, Err: err})
			break
		}

		text, err := runStrategy(ctx, s, path)
		trimmed := strings.TrimSpace(text)
		chars := utf8.RuneCountInString(trimmed)

		if err == nil && chars < e.config.MinChars {
			err = fmt.Errorf("%w: %d < %d", ErrTooShort, chars, e.config.MinChars)
		}
		result.Attempts = append(result.Attempts, Attempt{Strategy: s.Name, Chars: chars, Err: err})

		if err != nil {
			e.logger.Warn("extraction strategy failed",
				zap.String("file", path),
				zap.String("strategy", s.Name),
				zap.Error(err),
			)
			continue
		}

		e.logger.Info("extraction succeeded",
			zap.String("file", path),
			zap.String("strategy", s.Name),
			zap.Int("chars", chars),
		)
		result.Text = trimmed
		result.Success = true
		result.Strategy = s.Name
		return result
	}

	e.logger.Error("extraction failed", zap.String("file", path), zap.Int("attempts", len(result.Attempts)))
	return result
}

func runStrategy(ctx context.Context, s Strategy, path string) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = fmt.Errorf("strategy %s panicked: %v", s.Name, r)
		}
	}()
	return s.Extract(ctx, path)
}
