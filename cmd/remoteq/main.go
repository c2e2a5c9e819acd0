package main

import (
	"os"

	"remoteq/cmd/remoteq/cmd"
)

func main() {
	if err := cmd.RootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
