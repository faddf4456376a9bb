package main

import (
	"fmt"
	"os"

	"github.com/FalconSN/booruchan/cmd/booruchan/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cmd.ExitCode())
	}
}
