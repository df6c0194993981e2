package pipeline

import (
	"github.com/Azunyan1111/mkvengine/internal/container"
	"github.com/Azunyan1111/mkvengine/internal/mkv"
)

func init() {
	container.Register(matroskaFormat{})
}

// matroskaFormat is this repository's container.Format registration for
// Matroska/WebM, so Open can go through the registry's Detect instead of
// calling mkv.Probe directly — the same path a second registered format
// (MP4, Ogg) would take.
type matroskaFormat struct{}

func (matroskaFormat) Name() string { return "matroska" }

func (matroskaFormat) Probe(window []byte) (float32, mkv.ProbeResult) {
	return mkv.Probe(window)
}
