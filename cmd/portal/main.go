package main

import (
	"os"

	"github.com/marketsim/portal-auth/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
