package main

import (
	"os"

	"github.com/kfrem/recapify/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
