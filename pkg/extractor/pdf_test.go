package extractor

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type fakePages struct {
	pages []string
	bad   map[int]string
}

func (f fakePages) NumPage() int { return len(f.pages) }

func (f fakePages) PageText(i int) (string, error) {
	switch f.bad[i] {
	case "panic":
		panic("malformed content stream")
	case "error":
		return "", errors.New("missing font")
	}
	return f.pages[i-1], nil
}

func TestJoinPagesSkipsUnreadablePage(t *testing.T) {
	for _, mode := range []string{"panic", "error"} {
		t.Run(mode, func(t *testing.T) {
			src := fakePages{
				pages: []string{"page one", "page two", "page three", "page four", "page five"},
				bad:   map[int]string{3: mode},
			}
			core, logs := observer.New(zapcore.WarnLevel)

			text := joinPages(src, "cv.pdf", zap.New(core))

			assert.Equal(t, "page one\n\npage two\n\npage four\n\npage five", text)
			assert.Equal(t, 1, logs.FilterMessage("skipping unreadable pdf page").Len())
		})
	}
}

func TestJoinPagesDropsBlankPages(t *testing.T) {
	src := fakePages{pages: []string{"cover", "   \n", "body"}}

	assert.Equal(t, "cover\n\nbody", joinPages(src, "cv.pdf", zap.NewNop()))
}

func TestJoinPagesAllBroken(t *testing.T) {
	bad := map[int]string{}
	pages := make([]string, 4)
	for i := range pages {
		pages[i] = fmt.Sprintf("p%d", i+1)
		bad[i+1] = "error"
	}

	assert.Empty(t, joinPages(fakePages{pages: pages, bad: bad}, "cv.pdf", zap.NewNop()))
}
