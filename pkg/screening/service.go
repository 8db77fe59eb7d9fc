package screening

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/xhad/screener/internal/models"
	"github.com/xhad/screener/pkg/candidates"
	"github.com/xhad/screener/pkg/extractor"
	"github.com/xhad/screener/pkg/pipeline"
)

// ErrPositionClosed is returned when résumés are submitted to a position
// that is not active.
var ErrPositionClosed = errors.New("position is not accepting resumes")

type ServiceConfig struct {
	Store     *candidates.Store
	Extractor *extractor.Extractor
	Validator *extractor.Validator
	Pipeline  *pipeline.Pipeline
	Logger    *zap.Logger
}

// Service records submitted résumés against a position and indexes the
// ones that read as résumés.
type Service struct {
	config ServiceConfig
	logger *zap.Logger
}

type Submission struct {
	PositionID    int64
	FilePath      string
	CandidateName string
}

type Outcome struct {
	CandidateID  int64
	Name         string
	ParserStatus string
	Message      string
	Strategy     string
	Indexed      bool
}

func NewService(config ServiceConfig) (*Service, error) {
	if config.Store == nil || config.Pipeline == nil {
		return nil, errors.New("candidate store and pipeline are required")
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}
	if config.Extractor == nil {
		config.Extractor = extractor.NewWithConfig(extractor.ExtractorConfig{Logger: config.Logger})
	}
	if config.Validator == nil {
		config.Validator = extractor.NewValidator(extractor.ValidatorConfig{Logger: config.Logger})
	}
	return &Service{config: config, logger: config.Logger}, nil
}

// Submit extracts and validates one résumé file, records the candidate with
// its parser status, and indexes it when it passes. A résumé that fails
// extraction or validation is still recorded and is not an error.
func (s *Service) Submit(ctx context.Context, sub Submission) (*Outcome, error) {
	pos, err := s.config.Store.GetPosition(ctx, sub.PositionID)
	if err != nil {
		return nil, err
	}
	if pos.Status != candidates.StatusActive {
		return nil, fmt.Errorf("%w: %s is %s", ErrPositionClosed, pos.Name, pos.Status)
	}

	name := strings.TrimSpace(sub.CandidateName)
	if name == "" {
		base := filepath.Base(sub.FilePath)
		name = strings.TrimSuffix(base, filepath.Ext(base))
	}

	out := &Outcome{Name: name, ParserStatus: candidates.ParserSuccess}

	res := s.config.Extractor.Extract(ctx, sub.FilePath)
	out.Strategy = res.Strategy
	switch {
	case !res.Success:
		out.ParserStatus = candidates.ParserFailed
		out.Message = "text extraction failed"
	default:
		verdict := s.config.Validator.Validate(res.Text)
		if !verdict.Valid {
			out.ParserStatus = candidates.ParserFailed
			out.Message = verdict.Reason
			break
		}
		docs := []models.RawDocument{extractor.TextDocument(res.Text, sub.FilePath)}
		if _, err := s.config.Pipeline.IngestDocuments(ctx, docs, sub.PositionID, name); err != nil {
			out.ParserStatus = candidates.ParserFailed
			out.Message = "indexing failed: " + err.Error()
			break
		}
		out.Indexed = true
	}

	id, err := s.config.Store.SaveCandidate(ctx, &candidates.Candidate{
		Name:             name,
		PositionID:       sub.PositionID,
		FileName:         filepath.Base(sub.FilePath),
		OriginalFilePath: sub.FilePath,
		ParserStatus:     out.ParserStatus,
		ErrorMessage:     out.Message,
	})
	if err != nil {
		return nil, err
	}
	out.CandidateID = id

	s.logger.Info("resume submitted",
		zap.Int64("position_id", sub.PositionID),
		zap.String("candidate", name),
		zap.String("parser_status", out.ParserStatus),
		zap.String("strategy", out.Strategy),
		zap.Bool("indexed", out.Indexed),
	)
	return out, nil
}
