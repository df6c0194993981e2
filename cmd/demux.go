package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Azunyan1111/mkvengine/internal/logging"
	"github.com/Azunyan1111/mkvengine/internal/mkv"
	"github.com/Azunyan1111/mkvengine/internal/nal"
	"github.com/Azunyan1111/mkvengine/internal/pipeline"
	"github.com/Azunyan1111/mkvengine/internal/pool"
)

var (
	demuxDumpDir    string
	demuxToAnnexB   bool
	demuxMaxAllocs  int
	demuxDefaultCap int
)

var demuxCmd = &cobra.Command{
	Use:   "demux <input.mkv>",
	Short: "Parse a Matroska/WebM file and report its tracks and packets",
	Args:  cobra.ExactArgs(1),
	RunE:  runDemux,
}

func init() {
	rootCmd.AddCommand(demuxCmd)
	demuxCmd.Flags().StringVar(&demuxDumpDir, "dump-dir", "", "directory to write each track's packets into, one file per track")
	demuxCmd.Flags().BoolVar(&demuxToAnnexB, "annex-b", false, "convert dumped H.264 payloads to Annex-B start-code framing")
	demuxCmd.Flags().IntVar(&demuxMaxAllocs, "pool-max-allocations", 0, "cap on distinct buffers the memory pool may allocate (0 = unbounded)")
	demuxCmd.Flags().IntVar(&demuxDefaultCap, "pool-default-capacity", 64*1024, "default buffer size the memory pool allocates")
}

func runDemux(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	p := pool.NewMemoryPool(pool.MemoryPoolConfig{
		MaxAllocations:  demuxMaxAllocs,
		DefaultCapacity: demuxDefaultCap,
	})

	dc, err := pipeline.Open(f, p)
	if err != nil {
		return fmt.Errorf("demux: %w", err)
	}

	movie, err := dc.ReadHeaders(ctx)
	if err != nil {
		return fmt.Errorf("demux: reading headers: %w", err)
	}
	printMovieSummary(movie)

	dumps, err := openDumpFiles(demuxDumpDir, movie)
	if err != nil {
		return err
	}
	defer closeDumpFiles(dumps)

	var packetCount int
	for {
		pkt, err := dc.ReadPacket(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("demux: reading packet: %w", err)
		}
		packetCount++
		logging.Periodic("demux.packet", 2*time.Second, "packet",
			"track", pkt.Track.ID, "pts", pkt.Time.PTS, "key", pkt.Key)

		if w, ok := dumps[pkt.Track.ID]; ok {
			if err := writePacketDump(w, pkt); err != nil {
				pkt.Data.Release()
				return err
			}
		}
		pkt.Data.Release()
	}

	fmt.Printf("%d packets\n", packetCount)
	return nil
}

func printMovieSummary(movie mkv.Movie) {
	fmt.Printf("%d track(s)\n", len(movie.Tracks))
	for _, t := range movie.Tracks {
		switch t.Info.Kind {
		case mkv.MediaKindVideo:
			fmt.Printf("  track %d: video %s %dx%d\n", t.ID, t.Info.Codec, t.Info.Video.Width, t.Info.Video.Height)
		case mkv.MediaKindAudio:
			fmt.Printf("  track %d: audio %s %dHz\n", t.ID, t.Info.Codec, t.Info.Audio.SampleRate)
		case mkv.MediaKindSubtitle:
			fmt.Printf("  track %d: subtitle %s\n", t.ID, t.Info.Codec)
		default:
			fmt.Printf("  track %d: %s\n", t.ID, t.Info.Codec)
		}
	}
	if movie.Duration != nil {
		fmt.Printf("duration: %d\n", movie.Duration.Duration)
	}
}

func openDumpFiles(dir string, movie mkv.Movie) (map[uint64]*os.File, error) {
	if dir == "" {
		return nil, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("demux: creating dump dir: %w", err)
	}
	files := make(map[uint64]*os.File, len(movie.Tracks))
	for _, t := range movie.Tracks {
		path := filepath.Join(dir, fmt.Sprintf("track-%d.bin", t.ID))
		f, err := os.Create(path)
		if err != nil {
			closeDumpFiles(files)
			return nil, fmt.Errorf("demux: creating %s: %w", path, err)
		}
		files[t.ID] = f
	}
	return files, nil
}

func closeDumpFiles(files map[uint64]*os.File) {
	for _, f := range files {
		f.Close()
	}
}

func writePacketDump(w io.Writer, pkt mkv.Packet) error {
	data := pkt.Data
	if demuxToAnnexB && pkt.Track.Info.Kind == mkv.MediaKindVideo && pkt.Track.Info.Codec == mkv.CodecH264 {
		converted, err := nal.ConvertBitstream(data, nal.FourByteLength, nal.FourByteStartCode)
		if err != nil {
			logging.Logger().Warn("demux: converting to Annex-B failed, writing raw", "error", err)
		} else {
			data = converted
		}
	}
	_, err := w.Write(data.ToContiguous())
	return err
}
