package main

import (
	"os"

	"github.com/voxkey/voxkey/cmd/voxkey/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
