// Package ocr recognizes text on rasterized page images. Engines register
// themselves by selector name, the way database drivers do, so the stage
// binary picks one purely from configuration.
package ocr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
)

// ErrUnsupportedEngine reports a selector with no registered engine. It is
// a configuration error, fatal at stage startup.
var ErrUnsupportedEngine = errors.New("unsupported ocr engine")

// Result is the normalized output of one recognition call. Confidence is
// 0..1 and stays 0 for engines that do not report one.
type Result struct {
	Text       string
	Confidence float64
}

// Engine recognizes the text on one page image.
type Engine interface {
	Name() string
	Recognize(ctx context.Context, image []byte) (Result, error)
}

// Rasterizer renders the first page of a PDF to a PNG image.
type Rasterizer interface {
	PageImage(data []byte, dpi float64) ([]byte, error)
}

// Config carries what engine constructors may need.
type Config struct {
	// Endpoints maps remote engine names to their HTTP URLs.
	Endpoints map[string]string
	// HTTPClient is used by remote engines. Nil means a default client
	// with a 60-second timeout.
	HTTPClient *http.Client
}

// Builder constructs an engine from configuration.
type Builder func(Config) (Engine, error)

var (
	registryMu sync.Mutex
	registry   = make(map[string]Builder)
)

// Register makes an engine available under a selector name. It is meant to
// be called from init.
func Register(name string, b Builder) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = b
}

// New builds the engine for a selector. Unknown selectors return
// ErrUnsupportedEngine.
func New(name string, cfg Config) (Engine, error) {
	registryMu.Lock()
	b, ok := registry[strings.ToLower(name)]
	registryMu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q (have %s)", ErrUnsupportedEngine, name, strings.Join(Engines(), ", "))
	}
	return b(cfg)
}

// Engines returns the registered selector names, sorted.
func Engines() []string {
	registryMu.Lock()
	defer registryMu.Unlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
