package extractor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/tmc/langchaingo/documentloaders"
	"github.com/tmc/langchaingo/schema"
	"go.uber.org/zap"

	"github.com/xhad/screener/internal/models"
)

// ErrUnsupportedFormat is returned by the reader for binary files it cannot interpret.
var ErrUnsupportedFormat = errors.New("unsupported document format")

// Loader is the general-purpose structured-document reader. It emits one
// RawDocument per page for paginated formats and one for everything else.
type Loader struct {
	logger *zap.Logger
}

func NewLoader(logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{logger: logger}
}

func (l *Loader) Load(ctx context.Context, path string) (docs []models.RawDocument, err error) {
	// Third-party parsers panic on some malformed inputs.
	defer func() {
		if r := recover(); r != nil {
			docs = nil
			err = fmt.Errorf("reader panicked on %s: %v", path, r)
		}
	}()

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".pdf":
		docs, err = l.loadPDF(ctx, path)
	case ".docx":
		docs, err = l.loadDOCX(path)
	case ".html", ".htm":
		docs, err = l.loadHTML(path)
	default:
		docs, err = l.loadText(ctx, path, ext)
	}
	if err != nil {
		return nil, err
	}

	l.logger.Debug("document loaded",
		zap.String("file", path),
		zap.Int("pages", len(docs)),
	)
	return docs, nil
}

func (l *Loader) loadPDF(ctx context.Context, path string) ([]models.RawDocument, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open pdf: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat pdf: %w", err)
	}

	pages, err := documentloaders.NewPDF(f, info.Size()).Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load pdf: %w", err)
	}

	docs := make([]models.RawDocument, 0, len(pages))
	for _, page := range pages {
		docs = append(docs, fromSchema(page, path, "pdf"))
	}
	return docs, nil
}

func (l *Loader) loadDOCX(path string) ([]models.RawDocument, error) {
	text, err := readDOCXParagraphs(path)
	if err != nil {
		return nil, err
	}
	return []models.RawDocument{newRawDocument(text, path, "docx")}, nil
}

func (l *Loader) loadHTML(path string) ([]models.RawDocument, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open html: %w", err)
	}
	defer f.Close()

	text, title, err := readHTML(f)
	if err != nil {
		return nil, err
	}

	doc := newRawDocument(text, path, "html")
	if title != "" {
		doc.Metadata["title"] = title
	}
	return []models.RawDocument{doc}, nil
}

func (l *Loader) loadText(ctx context.Context, path, ext string) ([]models.RawDocument, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	if !utf8.Valid(data) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}

	loaded, err := documentloaders.NewText(bytes.NewReader(data)).Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load text: %w", err)
	}

	fileType := strings.TrimPrefix(ext, ".")
	if fileType == "" {
		fileType = "text"
	}

	docs := make([]models.RawDocument, 0, len(loaded))
	for _, d := range loaded {
		docs = append(docs, fromSchema(d, path, fileType))
	}
	return docs, nil
}

func newRawDocument(content, path, fileType string) models.RawDocument {
	return models.RawDocument{
		Content:  content,
		FilePath: path,
		Metadata: map[string]interface{}{
			"file_path": path,
			"file_name": filepath.Base(path),
			"file_type": fileType,
		},
	}
}

func fromSchema(d schema.Document, path, fileType string) models.RawDocument {
	doc := newRawDocument(d.PageContent, path, fileType)
	for k, v := range d.Metadata {
		doc.Metadata[k] = v
	}
	if page, ok := d.Metadata["page"]; ok {
		doc.Page = fmt.Sprint(page)
	}
	return doc
}

// JoinDocuments concatenates page contents with a blank line between pages.
func JoinDocuments(docs []models.RawDocument) string {
	parts := make([]string, 0, len(docs))
	for _, d := range docs {
		parts = append(parts, d.Content)
	}
	return strings.Join(parts, "\n\n")
}

// TextDocument wraps already extracted text as a single-page document.
func TextDocument(text, path string) models.RawDocument {
	return newRawDocument(text, path, strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), "."))
}
