package inbox

import (
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultExtensions are the résumé formats picked up from an inbox.
var DefaultExtensions = []string{".pdf", ".docx", ".txt", ".md", ".html", ".htm"}

// Handler receives a settled résumé file.
type Handler func(ctx context.Context, path string)

type WatcherConfig struct {
	Dir        string
	Extensions []string
	// Debounce is how long a file must go without events before it is handled.
	Debounce time.Duration
	Logger   *zap.Logger
}

// Watcher hands new or rewritten résumé files in a directory to a Handler.
type Watcher struct {
	config WatcherConfig
	exts   map[string]bool
	logger *zap.Logger
	// handled maps a path to the digest of the content last handed over.
	handled map[string][sha256.Size]byte
}

func NewWatcher(config WatcherConfig) (*Watcher, error) {
	info, err := os.Stat(config.Dir)
	if err != nil {
		return nil, fmt.Errorf("inbox: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("inbox: %s is not a directory", config.Dir)
	}
	if len(config.Extensions) == 0 {
		config.Extensions = DefaultExtensions
	}
	if config.Debounce <= 0 {
		config.Debounce = 500 * time.Millisecond
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}

	exts := make(map[string]bool, len(config.Extensions))
	for _, e := range config.Extensions {
		exts[strings.ToLower(e)] = true
	}
	return &Watcher{
		config:  config,
		exts:    exts,
		logger:  config.Logger,
		handled: make(map[string][sha256.Size]byte),
	}, nil
}

// accept reports whether ev is a create or write of a visible résumé file.
func (w *Watcher) accept(ev fsnotify.Event) bool {
	if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
		return false
	}
	base := filepath.Base(ev.Name)
	if strings.HasPrefix(base, ".") || strings.HasPrefix(base, "~$") {
		return false
	}
	if !w.exts[strings.ToLower(filepath.Ext(base))] {
		return false
	}
	info, err := os.Stat(ev.Name)
	return err == nil && info.Mode().IsRegular()
}

// Run watches until ctx is canceled. Files are handled one at a time.
func (w *Watcher) Run(ctx context.Context, handle Handler) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(w.config.Dir); err != nil {
		return fmt.Errorf("watching %s: %w", w.config.Dir, err)
	}
	w.logger.Info("watching inbox", zap.String("dir", w.config.Dir))

	pending := make(map[string]time.Time)
	ticker := time.NewTicker(tickInterval(w.config.Debounce))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if w.accept(ev) {
				pending[ev.Name] = time.Now()
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watcher error", zap.Error(err))
		case now := <-ticker.C:
			for _, path := range settled(pending, now, w.config.Debounce) {
				delete(pending, path)
				if !w.changed(path) {
					w.logger.Debug("content unchanged, skipping", zap.String("file", path))
					continue
				}
				handle(ctx, path)
			}
		}
	}
}

// changed reports whether path holds content not yet handed to the handler,
// and records it.
func (w *Watcher) changed(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		// let the handler report it
		return true
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return true
	}
	var sum [sha256.Size]byte
	copy(sum[:], h.Sum(nil))

	if prev, ok := w.handled[path]; ok && prev == sum {
		return false
	}
	w.handled[path] = sum
	return true
}

// tickInterval polls twice per debounce window, never faster than 1ms.
func tickInterval(debounce time.Duration) time.Duration {
	if d := debounce / 2; d >= time.Millisecond {
		return d
	}
	return time.Millisecond
}

// settled returns, in name order, the paths whose last event is older than quiet.
func settled(pending map[string]time.Time, now time.Time, quiet time.Duration) []string {
	var out []string
	for path, last := range pending {
		if now.Sub(last) >= quiet {
			out = append(out, path)
		}
	}
	sort.Strings(out)
	return out
}
