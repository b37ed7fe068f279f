package main

import (
	"os"

	"github.com/vovakirdan/boardcall/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
