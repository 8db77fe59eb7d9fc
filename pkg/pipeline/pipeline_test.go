package pipeline_test

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xhad/screener/internal/models"
	"github.com/xhad/screener/pkg/pipeline"
	"github.com/xhad/screener/pkg/store"
)

var vocab = []string{"go", "java", "python", "kubernetes", "react", "sales"}

// keywordEmbedder maps text onto keyword counts so similarity is predictable.
type keywordEmbedder struct {
	err error
}

func (k keywordEmbedder) vector(text string) []float32 {
	v := make([]float32, len(vocab)+1)
	for _, w := range strings.Fields(strings.ToLower(text)) {
		w = strings.Trim(w, ".,;:")
		for i, term := range vocab {
			if w == term {
				v[i]++
			}
		}
	}
	v[len(vocab)] = 0.01
	return v
}

func (k keywordEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	if k.err != nil {
		return nil, k.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = k.vector(t)
	}
	return out, nil
}

func (k keywordEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	if k.err != nil {
		return nil, k.err
	}
	return k.vector(text), nil
}

type fixture struct {
	dir       string
	index     *store.Index
	pipeline  *pipeline.Pipeline
	retriever *pipeline.Retriever
}

func newFixture(t *testing.T, emb keywordEmbedder) *fixture {
	t.Helper()
	log := zaptest.NewLogger(t)

	ix, err := store.OpenOrCreate(context.Background(), store.IndexConfig{
		Backend: store.BackendMemory,
		Logger:  log,
	})
	require.NoError(t, err)
	t.Cleanup(ix.Close)

	p, err := pipeline.NewWithConfig(pipeline.PipelineConfig{Embedder: emb, Index: ix, Logger: log})
	require.NoError(t, err)
	r, err := pipeline.NewRetriever(pipeline.RetrieverConfig{Embedder: emb, Index: ix, Logger: log})
	require.NoError(t, err)

	return &fixture{dir: t.TempDir(), index: ix, pipeline: p, retriever: r}
}

func (f *fixture) write(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(f.dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestIngestAndRetrieve(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, keywordEmbedder{})

	wang := f.write(t, "wang_lei.txt", "Wang Lei. Work experience: five years of Go and Kubernetes.")
	li := f.write(t, "li_jing.txt", "Li Jing. Skills: Java, Python, React.")

	assert.True(t, f.pipeline.Ingest(ctx, wang, 1, ""))
	assert.True(t, f.pipeline.Ingest(ctx, li, 1, ""))

	passages := f.retriever.Retrieve(ctx, "go kubernetes", 1, 5)
	require.Len(t, passages, 2)
	assert.Equal(t, "wang_lei", passages[0].Metadata.CandidateName)
	assert.Equal(t, models.ChunkTypeFullResume, passages[0].Metadata.ChunkType)
	assert.GreaterOrEqual(t, passages[0].Score, passages[1].Score)
	assert.Contains(t, passages[0].Text, "five years of Go")
}

func TestRetrieveTopK(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, keywordEmbedder{})

	for i := 0; i < 4; i++ {
		path := f.write(t, fmt.Sprintf("c%d.txt", i), strings.Repeat("go ", i+1))
		require.True(t, f.pipeline.Ingest(ctx, path, 1, ""))
	}

	assert.Len(t, f.retriever.Retrieve(ctx, "go", 1, 2), 2)
	all := f.retriever.Retrieve(ctx, "go go go go", 1, 0)
	require.Len(t, all, 4)

	// c3 repeats "go" four times, so its vector points the same way as the query
	top := f.retriever.Retrieve(ctx, "go go go go", 1, 1)
	require.Len(t, top, 1)
	assert.Equal(t, "c3", top[0].Metadata.CandidateName)
	assert.Equal(t, all[0].NodeID, top[0].NodeID)
	for _, p := range all[1:] {
		assert.Less(t, p.Score, top[0].Score)
	}
}

func TestRetrieveTenantIsolation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, keywordEmbedder{})

	backend := f.write(t, "backend.txt", "Go Go Kubernetes")
	sales := f.write(t, "sales.txt", "Sales Java")
	require.True(t, f.pipeline.Ingest(ctx, backend, 2, ""))
	require.True(t, f.pipeline.Ingest(ctx, sales, 1, ""))

	// the position-2 résumé is the closer match but must not leak
	passages := f.retriever.Retrieve(ctx, "go kubernetes", 1, 5)
	require.Len(t, passages, 1)
	assert.Equal(t, int64(1), passages[0].Metadata.PositionID)
	assert.Equal(t, "sales", passages[0].Metadata.CandidateName)

	global := f.retriever.RetrieveGlobal(ctx, "go kubernetes", 5)
	require.Len(t, global, 2)
	assert.Equal(t, "backend", global[0].Metadata.CandidateName)
}

func TestRetrieveRejectsMissingPosition(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, keywordEmbedder{})
	require.True(t, f.pipeline.Ingest(ctx, f.write(t, "a.txt", "go"), 1, ""))

	passages := f.retriever.Retrieve(ctx, "go", 0, 5)
	assert.NotNil(t, passages)
	assert.Empty(t, passages)
}

func TestIngestEmptyFile(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, keywordEmbedder{})
	path := f.write(t, "blank.txt", "   \n\t")

	assert.False(t, f.pipeline.Ingest(ctx, path, 1, ""))

	_, err := f.pipeline.IngestFile(ctx, path, 1, "")
	assert.ErrorIs(t, err, pipeline.ErrNoNodes)
	assert.Empty(t, f.retriever.RetrieveGlobal(ctx, "go", 5))
}

func TestIngestFallsBackToExtractor(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, keywordEmbedder{})

	// the body part is cut off mid-paragraph, so the structured reader rejects it
	body := `<?xml version="1.0" encoding="UTF-8"?>` +
		`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` +
		`<w:p><w:r><w:t>Zhao Min. Work experience: six years of Go services.</w:t></w:r></w:p>` +
		`<w:p><w:r><w:t>Skills: Go, Kubernetes, Python.</w:t></w:r></w:p><w:p><w:r>`
	path := filepath.Join(f.dir, "zhao_min.docx")
	out, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(out)
	w, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(body))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, out.Close())

	n, err := f.pipeline.IngestFile(ctx, path, 1, "")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	passages := f.retriever.Retrieve(ctx, "go kubernetes", 1, 5)
	require.Len(t, passages, 1)
	assert.Equal(t, "zhao_min", passages[0].Metadata.CandidateName)
	assert.Equal(t, "zhao_min.docx", passages[0].Metadata.FileName)
	assert.Contains(t, passages[0].Text, "six years of Go services")
	assert.NotContains(t, passages[0].Text, "<w:")
}

func TestIngestInvalidPosition(t *testing.T) {
	f := newFixture(t, keywordEmbedder{})
	_, err := f.pipeline.IngestFile(context.Background(), f.write(t, "a.txt", "go"), 0, "")
	assert.ErrorIs(t, err, pipeline.ErrInvalidPosition)
}

func TestIngestEmbedderFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, keywordEmbedder{err: errors.New("model not loaded")})

	assert.False(t, f.pipeline.Ingest(ctx, f.write(t, "a.txt", "go"), 1, ""))
	assert.Empty(t, f.retriever.Retrieve(ctx, "go", 1, 5))
}

func TestIngestIsAppendOnly(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, keywordEmbedder{})
	path := f.write(t, "wang_lei.txt", "Go developer")

	require.True(t, f.pipeline.Ingest(ctx, path, 1, ""))
	require.True(t, f.pipeline.Ingest(ctx, path, 1, ""))

	passages := f.retriever.Retrieve(ctx, "go", 1, 10)
	require.Len(t, passages, 2)
	assert.NotEqual(t, passages[0].NodeID, passages[1].NodeID)
}

func TestIngestExplicitName(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, keywordEmbedder{})

	n, err := f.pipeline.IngestFile(ctx, f.write(t, "upload-17.txt", "Python"), 3, "Li Jing")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	passages := f.retriever.Retrieve(ctx, "python", 3, 1)
	require.Len(t, passages, 1)
	assert.Equal(t, "Li Jing", passages[0].Metadata.CandidateName)
	assert.Equal(t, "upload-17.txt", passages[0].Metadata.FileName)
}

func TestConcurrentIngest(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, keywordEmbedder{})

	var paths []string
	for i := 0; i < 8; i++ {
		paths = append(paths, f.write(t, fmt.Sprintf("r%d.txt", i), "go python"))
	}

	var wg sync.WaitGroup
	for i, path := range paths {
		wg.Add(1)
		go func(pos int64, path string) {
			defer wg.Done()
			assert.True(t, f.pipeline.Ingest(ctx, path, pos, ""))
		}(int64(i%2+1), path)
	}
	wg.Wait()

	assert.Len(t, f.retriever.Retrieve(ctx, "go", 1, 10), 4)
	assert.Len(t, f.retriever.Retrieve(ctx, "go", 2, 10), 4)
}

func TestPurgeThenRetrieve(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, keywordEmbedder{})
	require.True(t, f.pipeline.Ingest(ctx, f.write(t, "a.txt", "go"), 1, ""))
	require.True(t, f.pipeline.Ingest(ctx, f.write(t, "b.txt", "go"), 2, ""))

	res, err := f.index.PurgePosition(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Removed)

	assert.Empty(t, f.retriever.Retrieve(ctx, "go", 1, 5))
	assert.Len(t, f.retriever.Retrieve(ctx, "go", 2, 5), 1)
}
