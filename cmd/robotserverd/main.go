package main

import (
	"fmt"
	"os"

	"github.com/sxccxs/robot-server/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "robotserverd: %v\n", err)
		os.Exit(1)
	}
}
