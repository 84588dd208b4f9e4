package main

import (
	"os"

	"github.com/mzurek/divtrack/cmd/divtrack/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
