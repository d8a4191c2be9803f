package main

import (
	"os"

	"github.com/hoopindex/ratings-pipeline/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
