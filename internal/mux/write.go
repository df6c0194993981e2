package mux

import (
	"encoding/binary"
	"fmt"

	"github.com/Azunyan1111/mkvengine/internal/ebml"
	"github.com/Azunyan1111/mkvengine/internal/mkv"
	"github.com/Azunyan1111/mkvengine/internal/pool"
)

// Write emits the next packet: a Cluster header (with Timestamp) followed
// by a SimpleBlock when this call opens a new cluster, or just the
// SimpleBlock otherwise. clusterByteOffset is the cumulative byte offset
// (relative to the Segment's first content byte) at which this call's
// output will begin; the caller (internal/pipeline) is the only component
// that knows absolute byte positions, so it supplies this on every call,
// and Write uses it only on the calls that actually open a cluster.
//
// The returned Span's final fragment aliases pkt.Data directly: the
// packet's body is never copied into scratch.
func (m *Muxer) Write(scratch *pool.Scratch, pkt mkv.Packet, clusterByteOffset uint64) (pool.Span, error) {
	if !m.started {
		return pool.Span{}, fmt.Errorf("mux: Write called before Start")
	}

	opensCluster := !m.clusterOpen
	var relTS int64
	if !opensCluster {
		relTS = int64(pkt.Time.PTS) - int64(m.clusterPTS)
		if relTS < -32768 || relTS > 32767 || m.clusterLen >= m.cfg.ClusterBlockLimit {
			opensCluster = true
		}
	}
	if opensCluster {
		m.clusterOpen = true
		m.clusterPTS = pkt.Time.PTS
		m.clusterLen = 0
		m.clusterOffset = clusterByteOffset
		relTS = 0
	}

	blockHeader := append(ebml.KnownLength(pkt.Track.ID).Encode(), 0, 0, flagsByte(pkt.Key))
	binary.BigEndian.PutUint16(blockHeader[len(blockHeader)-3:], uint16(int16(relTS)))

	bodyLen := len(blockHeader) + pkt.Data.Len()
	simpleBlockHeader := append(ebml.SimpleBlock.Encode(), ebml.KnownLength(uint64(bodyLen)).Encode()...)

	head, err := scratch.WriteSpan(func(w *pool.Scratch) error {
		if opensCluster {
			clusterHeader := append(ebml.Cluster.Encode(), ebml.UnknownLength(1).Encode()...)
			if _, err := w.Write(clusterHeader); err != nil {
				return err
			}
			timestamp := ebml.Leaf(ebml.Timestamp, ebml.EncodeUint(pkt.Time.PTS))
			if _, err := w.Write(timestamp.AppendTo(nil)); err != nil {
				return err
			}
		}
		if _, err := w.Write(simpleBlockHeader); err != nil {
			return err
		}
		_, err := w.Write(blockHeader)
		return err
	})
	if err != nil {
		return pool.Span{}, err
	}

	m.clusterLen++
	m.recordCue(pkt, opensCluster)

	return pool.Concat(head, pkt.Data), nil
}

func flagsByte(key bool) byte {
	if key {
		return 0x80
	}
	return 0
}

func (m *Muxer) recordCue(pkt mkv.Packet, opensCluster bool) {
	if !m.cfg.WriteCues || !m.hasCueTrack || pkt.Track.ID != m.cueTrack || !pkt.Key {
		return
	}
	_ = opensCluster // a keyframe can start a cue even mid-cluster; recorded regardless
	m.cues = append(m.cues, CuePoint{
		Time:            pkt.Time.PTS,
		Track:           pkt.Track.ID,
		ClusterPosition: m.clusterOffset,
	})
}

// Stop emits the trailing Cues master (when configured and any keyframes
// were tracked) and finalizes the muxer. The Segment's length is left
// Unknown, as the muxer never seeks back to patch it.
func (m *Muxer) Stop(scratch *pool.Scratch) (pool.Span, error) {
	if !m.started {
		return pool.Span{}, fmt.Errorf("mux: Stop called before Start")
	}
	if !m.cfg.WriteCues || len(m.cues) == 0 {
		return pool.Span{}, nil
	}

	points := make([]ebml.Element, 0, len(m.cues))
	for _, c := range m.cues {
		points = append(points, ebml.Master(ebml.CuePoint,
			ebml.Leaf(ebml.CueTime, ebml.EncodeUint(c.Time)),
			ebml.Master(ebml.CueTrackPositions,
				ebml.Leaf(ebml.CueTrack, ebml.EncodeUint(c.Track)),
				ebml.Leaf(ebml.CueClusterPosition, ebml.EncodeUint(c.ClusterPosition)),
			),
		))
	}
	cues := ebml.Master(ebml.Cues, points...)

	return scratch.WriteSpan(func(w *pool.Scratch) error {
		_, err := w.Write(cues.AppendTo(nil))
		return err
	})
}
