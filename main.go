package main

import (
	"os"

	"github.com/frewsxcv/template-tally/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
