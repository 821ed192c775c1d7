package main

import (
	"os"

	"github.com/wozozo/smpit/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
