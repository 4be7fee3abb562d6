package main

import (
	"os"

	"github.com/giftstream/giftstream/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
