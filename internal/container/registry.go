// Package container defines the capability interface a container format
// implements to plug into the pipeline and CLI layers, plus a small
// registry keyed by format name, one interface per container format:
// Matroska is the only entry this repository registers, but a future MP4
// or Ogg demuxer registers itself the same way instead of every caller
// switching on a format-name string.
package container

import (
	"sync"

	"github.com/Azunyan1111/mkvengine/internal/mkv"
)

// Format is the capability set a container format exposes for
// auto-detection: scoring a probe window against its own structural
// signatures. Muxing and demuxing proper stay in format-specific packages
// (internal/mkv, internal/mux) and are wired directly by callers who
// already know which format they want; only the probing step benefits
// from going through a name-keyed registry instead of a hardcoded format
// list.
type Format interface {
	Name() string
	Probe(window []byte) (score float32, result mkv.ProbeResult)
}

var (
	mu       sync.RWMutex
	registry = make(map[string]Format)
)

// Register adds f to the registry under its own Name(), overwriting any
// earlier registration of the same name. Intended to be called from an
// init() in the package implementing the format, the same blank-import
// side-effect pattern database/sql drivers and image decoders use.
func Register(f Format) {
	mu.Lock()
	defer mu.Unlock()
	registry[f.Name()] = f
}

// Lookup returns the registered Format with the given name, if any.
func Lookup(name string) (Format, bool) {
	mu.RLock()
	defer mu.RUnlock()
	f, ok := registry[name]
	return f, ok
}

// Detect scores window against every registered format and returns the
// best-scoring match that isn't an outright ProbeNo, or ok=false if no
// registered format recognizes anything in window at all.
func Detect(window []byte) (format Format, ok bool) {
	mu.RLock()
	defer mu.RUnlock()
	var bestScore float32
	for _, f := range registry {
		score, result := f.Probe(window)
		if result == mkv.ProbeNo {
			continue
		}
		if format == nil || score > bestScore {
			format, bestScore = f, score
		}
	}
	return format, format != nil
}
