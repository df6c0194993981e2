package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/Azunyan1111/mkvengine/internal/container"
	_ "github.com/Azunyan1111/mkvengine/internal/pipeline" // registers the matroska container.Format
)

const probeWindowSize = 4 * 1024

var probeCmd = &cobra.Command{
	Use:   "probe <input>",
	Short: "Classify a file's container format without fully parsing it",
	Args:  cobra.ExactArgs(1),
	RunE:  runProbe,
}

func init() {
	rootCmd.AddCommand(probeCmd)
}

func runProbe(_ *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	window := make([]byte, probeWindowSize)
	n, err := io.ReadFull(f, window)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return err
	}
	window = window[:n]

	format, ok := container.Detect(window)
	if !ok {
		fmt.Printf("%s: no registered container format recognizes this input\n", args[0])
		return nil
	}
	fmt.Printf("%s: %s\n", args[0], format.Name())
	return nil
}
