package mkv

import "bytes"

// probeMarkers are the byte sequences Probe looks for. Each occurrence of
// each marker contributes the same weight; a buffer is scored by counting
// how many times these structural byte strings appear in it, not by
// parsing it.
var probeMarkers = [][]byte{
	{0x1A, 0x45, 0xDF, 0xA3}, // EBML header ID
	[]byte("matroska"),
	{0x18, 0x53, 0x80, 0x67}, // Segment ID
	{0x1F, 0x43, 0xB6, 0x75}, // Cluster ID
}

const probeScorePerMarker = 0.25

// ProbeResult classifies a Score against a fixed threshold: a positive
// identification needs a score >= 1.0, i.e. four marker occurrences in
// total (repeats of one marker count too); a lower non-zero score is
// reported as Maybe so a caller can still try other formats first.
type ProbeResult int

const (
	ProbeNo ProbeResult = iota
	ProbeMaybe
	ProbeYes
)

// Probe scores data against the structural markers that identify a
// Matroska/WebM stream, returning both the raw score and its classification.
// It never looks past the bytes it's given; a caller with only a small
// prefix of the stream still gets a meaningful (if lower) score. Each
// marker contributes probeScorePerMarker per occurrence in data, not just
// once for its presence, so a probe window containing several Clusters
// scores higher than one holding a single truncated element.
func Probe(data []byte) (score float32, result ProbeResult) {
	for _, marker := range probeMarkers {
		if n := bytes.Count(data, marker); n > 0 {
			score += probeScorePerMarker * float32(n)
		}
	}
	switch {
	case score >= 1.0:
		return score, ProbeYes
	case score > 0:
		return score, ProbeMaybe
	default:
		return score, ProbeNo
	}
}
