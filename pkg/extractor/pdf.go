package extractor

import (
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
	"go.uber.org/zap"
)

// pageSource is the slice of a PDF reader the page-by-page fallback needs.
type pageSource interface {
	NumPage() int
	PageText(i int) (string, error)
}

type pdfPages struct {
	r *pdf.Reader
}

func (p pdfPages) NumPage() int { return p.r.NumPage() }

func (p pdfPages) PageText(i int) (string, error) {
	page := p.r.Page(i)
	if page.V.IsNull() {
		return "", nil
	}
	return page.GetPlainText(nil)
}

// extractPDFPages reads a PDF one page at a time; a broken page is skipped
// instead of failing the file.
func extractPDFPages(path string, logger *zap.Logger) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		if f != nil {
			f.Close()
		}
		return "", fmt.Errorf("failed to open pdf: %w", err)
	}
	defer f.Close()

	return joinPages(pdfPages{r: r}, path, logger), nil
}

func joinPages(src pageSource, path string, logger *zap.Logger) string {
	var pages []string
	for i := 1; i <= src.NumPage(); i++ {
		text, err := safePageText(src, i)
		if err != nil {
			logger.Warn("skipping unreadable pdf page",
				zap.String("file", path),
				zap.Int("page", i),
				zap.Error(err),
			)
			continue
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		pages = append(pages, text)
	}
	return strings.Join(pages, "\n\n")
}

func safePageText(src pageSource, i int) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("page %d panicked: %v", i, r)
		}
	}()
	return src.PageText(i)
}
