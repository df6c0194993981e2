package cmd

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/pion/rtp"
	"github.com/spf13/cobra"

	"github.com/Azunyan1111/mkvengine/internal/config"
	"github.com/Azunyan1111/mkvengine/internal/logging"
	"github.com/Azunyan1111/mkvengine/internal/mkv"
	"github.com/Azunyan1111/mkvengine/internal/mux"
	"github.com/Azunyan1111/mkvengine/internal/nal"
	"github.com/Azunyan1111/mkvengine/internal/pipeline"
	"github.com/Azunyan1111/mkvengine/internal/pool"
	"github.com/Azunyan1111/mkvengine/internal/rtpingest"
)

var (
	muxWidth       int
	muxHeight      int
	muxFPSNum      uint32
	muxFPSDen      uint32
	muxMaxAllocs   int
	muxDefaultCap  int
	muxScratchSize int
	muxRTPListen   string
)

var muxCmd = &cobra.Command{
	Use:   "mux <input.h264> <output.mkv>",
	Short: "Wrap an H.264 stream in a Matroska container",
	Long: `mux wraps an H.264 stream in a Matroska container, either from a flat
Annex-B elementary stream file or from a live RTP session.

  mkvengine mux input.h264 output.mkv
  mkvengine mux --rtp-listen :5004 output.mkv`,
	Args: muxArgs,
	RunE: runMux,
}

func muxArgs(cmd *cobra.Command, args []string) error {
	if muxRTPListen != "" {
		return cobra.ExactArgs(1)(cmd, args)
	}
	return cobra.ExactArgs(2)(cmd, args)
}

func init() {
	rootCmd.AddCommand(muxCmd)
	muxCmd.Flags().IntVar(&muxWidth, "width", 0, "video width (0 = parse from the stream's SPS)")
	muxCmd.Flags().IntVar(&muxHeight, "height", 0, "video height (0 = parse from the stream's SPS)")
	muxCmd.Flags().Uint32Var(&muxFPSNum, "fps-num", 30, "frame rate numerator (file input only; RTP input uses the 90kHz RTP clock)")
	muxCmd.Flags().Uint32Var(&muxFPSDen, "fps-den", 1, "frame rate denominator (file input only)")
	muxCmd.Flags().IntVar(&muxMaxAllocs, "pool-max-allocations", 0, "cap on distinct buffers the memory pool may allocate (0 = unbounded)")
	muxCmd.Flags().IntVar(&muxDefaultCap, "pool-default-capacity", 64*1024, "default buffer size the memory pool allocates")
	muxCmd.Flags().IntVar(&muxScratchSize, "scratch-initial-size", 4*1024, "initial scratch buffer size for each mux step")
	muxCmd.Flags().StringVar(&muxRTPListen, "rtp-listen", "", "listen for an H.264-over-RTP (RFC 6184) session on this UDP address instead of reading a file; when set, <input.h264> is omitted")
}

func runMux(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if muxRTPListen != "" {
		return runMuxRTP(ctx, cmd, muxRTPListen, args[0])
	}
	return runMuxFile(ctx, cmd, args[0], args[1])
}

func runMuxFile(ctx context.Context, cmd *cobra.Command, inputPath, outputPath string) error {
	if muxFPSNum == 0 {
		return fmt.Errorf("mux: --fps-num must be nonzero")
	}

	raw, err := os.ReadFile(inputPath)
	if err != nil {
		return err
	}

	units, err := nal.ParseBitstream(pool.Borrowed(raw), nal.FourByteStartCode)
	if err != nil {
		return fmt.Errorf("mux: parsing bitstream: %w", err)
	}
	if len(units) == 0 {
		return fmt.Errorf("mux: %s contains no NAL units", inputPath)
	}

	track, frames := buildTrackAndFrames(units)

	out, err := os.Create(outputPath)
	if err != nil {
		return err
	}
	defer out.Close()

	mc, err := newMuxContext(cmd, out)
	if err != nil {
		return err
	}

	movie := mkv.Movie{Tracks: []mkv.Track{track}}
	if err := mc.Start(ctx, movie); err != nil {
		return fmt.Errorf("mux: writing headers: %w", err)
	}

	frameDurationMs := uint64(1000) * uint64(muxFPSDen) / uint64(muxFPSNum)
	for i, frame := range frames {
		pkt := mkv.Packet{
			Time:  mkv.MediaTime{PTS: uint64(i) * frameDurationMs, Timebase: track.Timebase},
			Track: track,
			Key:   frame.key,
			Data:  frame.data,
		}
		if err := mc.Write(ctx, pkt); err != nil {
			return fmt.Errorf("mux: writing packet %d: %w", i, err)
		}
	}

	if err := mc.Stop(ctx); err != nil {
		return fmt.Errorf("mux: finalizing: %w", err)
	}

	fmt.Printf("%s: wrote %d packets to %s\n", inputPath, len(frames), outputPath)
	return nil
}

// runMuxRTP listens on a UDP socket for an H.264-over-RTP session (RFC
// 6184), reassembling access units via rtpingest.Session and muxing each
// one as it completes. It waits for an in-band SPS and PPS (ordinary
// single-NAL packets, not a fragmented FU-A) before writing the Matroska
// headers to the output file (which it creates up front), since CodecPrivate and the track's width/height come from them
// when --width/--height aren't given explicitly.
func runMuxRTP(ctx context.Context, cmd *cobra.Command, listenAddr, outputPath string) error {
	conn, err := net.ListenPacket("udp", listenAddr)
	if err != nil {
		return fmt.Errorf("mux: listening on %s: %w", listenAddr, err)
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	out, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("mux: creating %s: %w", outputPath, err)
	}
	defer out.Close()

	mc, err := newMuxContext(cmd, out)
	if err != nil {
		return err
	}

	fmt.Printf("mux: listening for RTP on %s\n", listenAddr)

	var (
		sps, pps []byte
		session  *rtpingest.Session
		started  bool
		buf      = make([]byte, 1500)
		packets  int
	)

	for {
		n, _, err := conn.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			return fmt.Errorf("mux: reading RTP packet: %w", err)
		}

		var packet rtp.Packet
		if err := packet.Unmarshal(buf[:n]); err != nil {
			logging.Logger().Warn("mux: dropping unparseable RTP packet", "error", err)
			continue
		}
		if len(packet.Payload) > 0 {
			switch packet.Payload[0] & 0x1F {
			case 7:
				if sps == nil {
					sps = append([]byte(nil), packet.Payload...)
				}
			case 8:
				if pps == nil {
					pps = append([]byte(nil), packet.Payload...)
				}
			}
		}

		if !started {
			if sps == nil || pps == nil {
				continue
			}
			width, height, codecPrivate := resolveVideoGeometry(sps, pps)
			track := rtpingest.Track(1, width, height, codecPrivate)
			session = rtpingest.NewSession(track)
			if err := mc.Start(ctx, mkv.Movie{Tracks: []mkv.Track{track}}); err != nil {
				return fmt.Errorf("mux: writing headers: %w", err)
			}
			started = true
		}

		pkt, ok, err := session.Push(&packet)
		if err != nil {
			logging.Logger().Warn("mux: dropping RTP packet", "error", err)
			continue
		}
		if !ok {
			continue
		}
		if err := mc.Write(ctx, pkt); err != nil {
			pkt.Data.Release()
			return fmt.Errorf("mux: writing packet %d: %w", packets, err)
		}
		pkt.Data.Release()
		packets++
	}

	if !started {
		return fmt.Errorf("mux: stopped listening before an SPS/PPS pair and any complete access unit arrived")
	}
	if err := mc.Stop(context.Background()); err != nil {
		return fmt.Errorf("mux: finalizing: %w", err)
	}

	fmt.Printf("%s: wrote %d packets to %s\n", listenAddr, packets, outputPath)
	return nil
}

// resolveVideoGeometry resolves the track's width/height from the
// --width/--height flags when given, falling back to parsing them out of
// sps, and concatenates sps/pps into a CodecPrivate blob.
func resolveVideoGeometry(sps, pps []byte) (width, height int, codecPrivate []byte) {
	width, height = muxWidth, muxHeight
	if width == 0 || height == 0 {
		if info, err := (nal.BaselineSPSParser{}).ParseSPS(sps); err == nil {
			width, height = info.Width, info.Height
		}
	}
	return width, height, append(append([]byte{}, sps...), pps...)
}

func newMuxContext(cmd *cobra.Command, out *os.File) (*pipeline.MuxContext, error) {
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return nil, err
	}

	p := pool.NewMemoryPool(pool.MemoryPoolConfig{
		MaxAllocations:  muxMaxAllocs,
		DefaultCapacity: muxDefaultCap,
	})

	muxCfg := mux.Config{
		ClusterBlockLimit: cfg.Mux.ClusterBlockLimit,
		WriteCues:         cfg.Mux.WriteCues,
		WritingApp:        cfg.Mux.WritingApp,
		MuxingApp:         cfg.Mux.MuxingApp,
	}
	return pipeline.NewMuxContextWithScratchSize(out, p, muxCfg, muxScratchSize), nil
}

type muxFrame struct {
	key  bool
	data pool.Span
}

// buildTrackAndFrames splits a parsed NAL-unit stream into a video track
// description (width/height/CodecPrivate drawn from the first SPS/PPS
// pair seen) and one muxFrame per VCL NAL unit, treating parameter sets as
// track metadata rather than packets of their own — the same split
// runMuxRTP makes for live H.264, just driven from a flat file instead of
// an RTP session.
func buildTrackAndFrames(units []pool.Span) (mkv.Track, []muxFrame) {
	var sps, pps []byte
	var frames []muxFrame

	for _, u := range units {
		b := u.ToContiguous()
		if len(b) == 0 {
			continue
		}
		switch b[0] & 0x1F {
		case 7: // SPS
			if sps == nil {
				sps = append([]byte(nil), b...)
			}
		case 8: // PPS
			if pps == nil {
				pps = append([]byte(nil), b...)
			}
		case 5: // IDR slice
			frames = append(frames, muxFrame{key: true, data: nal.FrameNALUnits([]pool.Span{u}, nal.FourByteLength)})
		case 1: // non-IDR slice
			frames = append(frames, muxFrame{key: false, data: nal.FrameNALUnits([]pool.Span{u}, nal.FourByteLength)})
		}
	}

	width, height, codecPrivate := resolveVideoGeometry(sps, pps)

	track := mkv.Track{
		ID: 1,
		Info: mkv.MediaInfo{
			Codec: mkv.CodecH264,
			Kind:  mkv.MediaKindVideo,
			Video: mkv.VideoInfo{
				Width:            width,
				Height:           height,
				CodecPrivate:     codecPrivate,
				BitstreamFraming: "length-prefixed",
			},
		},
		Timebase: mkv.NewFraction(1, 1000),
	}
	return track, frames
}
