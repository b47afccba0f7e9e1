package main

import (
	"os"

	"go.uber.org/automaxprocs/maxprocs"

	"github.com/harriteja/squeezejpg/internal/cmd"
)

func main() {
	// Match GOMAXPROCS to the container CPU quota
	_, _ = maxprocs.Set()

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
