package main

import (
	"fmt"
	"os"

	"github.com/Azunyan1111/mkvengine/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
