package main

import (
	"fmt"
	"os"

	"github.com/bytebuggy/bytebuggy/cmd"
)

var version = "dev"

func main() {
	if err := cmd.Execute(version); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
