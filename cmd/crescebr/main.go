package main

import (
	"os"

	"github.com/oguarni/crescebr-b2b-marketplace-sub000/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
