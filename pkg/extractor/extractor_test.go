package extractor

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const resumeText = `Zhang Wei
Contact: zhang.wei@example.com, phone +86 138 0000 0000
Work experience: backend engineer at a logistics company, 2019-2024.
Skills: Go, PostgreSQL, Kubernetes.
Education: Bachelor of Computer Science.`

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0644))
	return path
}

func writeDOCX(t *testing.T, dir, name string, parts map[string]string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	for partName, body := range parts {
		w, err := zw.Create(partName)
		require.NoError(t, err)
		_, err = w.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
	return path
}

func wordDocument(paragraphs ...string) string {
	var sb strings.Builder
	sb.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>`)
	sb.WriteString(`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>`)
	for _, p := range paragraphs {
		fmt.Fprintf(&sb, `<w:p><w:r><w:t xml:space="preserve">%s</w:t></w:r></w:p>`, p)
	}
	sb.WriteString(`</w:body></w:document>`)
	return sb.String()
}

func newTestExtractor(t *testing.T) *Extractor {
	return NewWithConfig(ExtractorConfig{Logger: zaptest.NewLogger(t)})
}

func TestExtractTXT(t *testing.T) {
	path := writeFile(t, t.TempDir(), "zhang_wei.txt", []byte(resumeText))

	res := newTestExtractor(t).Extract(context.Background(), path)

	assert.True(t, res.Success)
	assert.Equal(t, "reader", res.Strategy)
	assert.Equal(t, strings.TrimSpace(resumeText), res.Text)
	assert.Len(t, res.Attempts, 1)
}

func TestExtractShortTextFailsClosed(t *testing.T) {
	path := writeFile(t, t.TempDir(), "short.txt", []byte("tiny resume"))

	res := newTestExtractor(t).Extract(context.Background(), path)

	assert.False(t, res.Success)
	assert.Empty(t, res.Text)
	require.Len(t, res.Attempts, 2)
	assert.Equal(t, "reader", res.Attempts[0].Strategy)
	assert.Equal(t, "txt-read", res.Attempts[1].Strategy)
	for _, a := range res.Attempts {
		assert.ErrorIs(t, a.Err, ErrTooShort)
	}
}

func TestExtractDOCX(t *testing.T) {
	path := writeDOCX(t, t.TempDir(), "li_jing.docx", map[string]string{
		docxBody: wordDocument(strings.Split(resumeText, "\n")...),
	})

	res := newTestExtractor(t).Extract(context.Background(), path)

	require.True(t, res.Success)
	assert.Equal(t, "reader", res.Strategy)
	assert.Contains(t, res.Text, "Skills: Go, PostgreSQL, Kubernetes.")
	assert.Contains(t, res.Text, "Zhang Wei\nContact:")
}

func TestExtractMalformedDOCXFallsBack(t *testing.T) {
	broken := strings.Replace(wordDocument(strings.Split(resumeText, "\n")...), "</w:body></w:document>", "<w:p><w:r>", 1)
	path := writeDOCX(t, t.TempDir(), "broken.docx", map[string]string{
		docxBody:          broken,
		"word/header1.xml": `<w:hdr><w:p><w:r><w:t>Curriculum Vitae</w:t></w:r></w:p></w:hdr>`,
	})

	res := newTestExtractor(t).Extract(context.Background(), path)

	require.True(t, res.Success)
	assert.Equal(t, "docx-convert", res.Strategy)
	assert.True(t, strings.HasPrefix(res.Text, "Curriculum Vitae"))
	assert.Contains(t, res.Text, "zhang.wei@example.com")
	require.Len(t, res.Attempts, 2)
	assert.Error(t, res.Attempts[0].Err)
}

func TestExtractCorruptPDFFailsClosed(t *testing.T) {
	path := writeFile(t, t.TempDir(), "scan.pdf", []byte("%PDF-1.4 this is not really a pdf"))

	res := newTestExtractor(t).Extract(context.Background(), path)

	assert.False(t, res.Success)
	assert.Empty(t, res.Text)
	require.Len(t, res.Attempts, 2)
	assert.Equal(t, "pdf-pages", res.Attempts[1].Strategy)
}

func TestExtractHTML(t *testing.T) {
	page := `<html><head><title>CV</title><style>p{}</style></head><body>
<nav>Home</nav>
<main><h1>Zhang Wei</h1><p>Work experience: backend engineer at a logistics company.</p>
<ul><li>Skills: Go, PostgreSQL</li><li>Education: Bachelor of Computer Science</li></ul></main>
</body></html>`
	path := writeFile(t, t.TempDir(), "zhang.html", []byte(page))

	res := newTestExtractor(t).Extract(context.Background(), path)

	require.True(t, res.Success)
	assert.Equal(t, "reader", res.Strategy)
	assert.NotContains(t, res.Text, "Home")
	assert.Contains(t, res.Text, "Zhang Wei\nWork experience")
}

func TestExtractUnknownBinaryFailsClosed(t *testing.T) {
	path := writeFile(t, t.TempDir(), "photo.jpg", []byte{0xff, 0xd8, 0xff, 0xe0, 0x00, 0x10, 0xfe, 0xfe})

	res := newTestExtractor(t).Extract(context.Background(), path)

	assert.False(t, res.Success)
	require.Len(t, res.Attempts, 1)
	assert.ErrorIs(t, res.Attempts[0].Err, ErrUnsupportedFormat)
}

func TestExtractMissingFile(t *testing.T) {
	res := newTestExtractor(t).Extract(context.Background(), filepath.Join(t.TempDir(), "gone.docx"))

	assert.False(t, res.Success)
	assert.Empty(t, res.Text)
	assert.Len(t, res.Attempts, 2)
}

func TestExtractStrategyOrder(t *testing.T) {
	long := strings.Repeat("experience ", 10)
	var calls []string
	strategy := func(name, text string, err error, panics bool) Strategy {
		return Strategy{
			Name:    name,
			Applies: func(string) bool { return true },
			Extract: func(context.Context, string) (string, error) {
				calls = append(calls, name)
				if panics {
					panic("corrupt input")
				}
				return text, err
			},
		}
	}

	e := NewWithConfig(ExtractorConfig{
		Logger: zaptest.NewLogger(t),
		Strategies: []Strategy{
			strategy("broken", "", errors.New("boom"), false),
			strategy("panics", "", nil, true),
			strategy("short", "too short", nil, false),
			strategy("good", long, nil, false),
			strategy("never", long, nil, false),
		},
	})

	res := e.Extract(context.Background(), "/resumes/x.pdf")

	assert.True(t, res.Success)
	assert.Equal(t, "good", res.Strategy)
	assert.Equal(t, strings.TrimSpace(long), res.Text)
	assert.Equal(t, []string{"broken", "panics", "short", "good"}, calls)
	assert.Contains(t, res.Attempts[1].Err.Error(), "panicked")
}

func TestExtractStopsOnCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	path := writeFile(t, t.TempDir(), "zhang_wei.txt", []byte(resumeText))

	res := newTestExtractor(t).Extract(ctx, path)

	assert.False(t, res.Success)
	require.Len(t, res.Attempts, 1)
	assert.ErrorIs(t, res.Attempts[0].Err, context.Canceled)
}

func TestExtractNeverReturnsShortSuccess(t *testing.T) {
	dir := t.TempDir()
	inputs := map[string][]byte{
		"a.txt":  []byte(strings.Repeat("x", 49)),
		"b.txt":  []byte(strings.Repeat("x", 50)),
		"c.md":   []byte("   " + strings.Repeat("y", 20) + "   "),
		"d.pdf":  []byte("garbage"),
		"e.docx": []byte("PK garbage"),
		"f.htm":  []byte("<p>" + strings.Repeat("项目经验", 20) + "</p>"),
	}

	e := newTestExtractor(t)
	for name, data := range inputs {
		t.Run(name, func(t *testing.T) {
			res := e.Extract(context.Background(), writeFile(t, dir, name, data))
			if res.Success {
				assert.GreaterOrEqual(t, utf8.RuneCountInString(res.Text), DefaultMinChars)
			} else {
				assert.Empty(t, res.Text)
			}
		})
	}
}
