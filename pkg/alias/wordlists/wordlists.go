// Package wordlists embeds the default adjective/noun/verb/adverb pools
// used to generate human-readable IDs, and exposes a Loader that can
// substitute a local override directory, watched with fsnotify for
// development-time edits.
package wordlists

import (
	"bufio"
	"bytes"
	_ "embed"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

//go:embed adjectives.txt
var defaultAdjectives []byte

//go:embed nouns.txt
var defaultNouns []byte

//go:embed verbs.txt
var defaultVerbs []byte

//go:embed adverbs.txt
var defaultAdverbs []byte

// Pools holds one word list per HRID part.
type Pools struct {
	Adjectives []string
	Nouns      []string
	Verbs      []string
	Adverbs    []string
}

func parseLines(b []byte) []string {
	var out []string
	scanner := bufio.NewScanner(bytes.NewReader(b))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}

// Default returns the embedded word pools.
func Default() Pools {
	return Pools{
		Adjectives: parseLines(defaultAdjectives),
		Nouns:      parseLines(defaultNouns),
		Verbs:      parseLines(defaultVerbs),
		Adverbs:    parseLines(defaultAdverbs),
	}
}

// Loader serves the current word pools, optionally overridden by files
// in dir (adjectives.txt/nouns.txt/verbs.txt/adverbs.txt), hot-reloaded
// via fsnotify for local development.
type Loader struct {
	mu     sync.RWMutex
	pools  Pools
	dir    string
	logger *zap.Logger
}

// NewLoader starts from the embedded defaults, then loads dir's
// overrides if dir is non-empty and exists.
func NewLoader(dir string, logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	l := &Loader{pools: Default(), dir: dir, logger: logger}
	if dir != "" {
		l.reload()
	}
	return l
}

// Pools returns the current word pools.
func (l *Loader) Pools() Pools {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.pools
}

func (l *Loader) reload() {
	pools := Default()
	for _, f := range []struct {
		name string
		dst  *[]string
	}{
		{"adjectives.txt", &pools.Adjectives},
		{"nouns.txt", &pools.Nouns},
		{"verbs.txt", &pools.Verbs},
		{"adverbs.txt", &pools.Adverbs},
	} {
		path := filepath.Join(l.dir, f.name)
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		if lines := parseLines(data); len(lines) > 0 {
			*f.dst = lines
		}
	}

	l.mu.Lock()
	l.pools = pools
	l.mu.Unlock()
}

// Watch starts watching Loader's directory for changes and reloads the
// pools on every write event. The caller owns the returned watcher's
// lifetime and must Close it.
func (l *Loader) Watch() (*fsnotify.Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if l.dir != "" {
		if err := watcher.Add(l.dir); err != nil {
			watcher.Close()
			return nil, err
		}
	}

	go func() {
		for event := range watcher.Events {
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				l.reload()
				l.logger.Info("reloaded word lists", zap.String("path", event.Name))
			}
		}
	}()

	return watcher, nil
}
