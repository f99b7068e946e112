package main

import (
	"fmt"
	"os"

	"github.com/lydakis/ubridge/internal/cli"
)

// set via -ldflags "-X main.version=..."
var version = "dev"

func main() {
	cli.SetVersion(version)
	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "ubridge: %v\n", err)
		os.Exit(1)
	}
}
