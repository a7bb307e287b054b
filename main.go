package main

import (
	"os"

	"github.com/MarcinPiech/DHLAI/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
