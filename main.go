package main

import (
	"os"

	"github.com/smart-ev/chargectl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
