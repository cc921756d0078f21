package main

import (
	"os"

	"github.com/nginfra/movici-simulation-core-sub002/cmd/movicictl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
