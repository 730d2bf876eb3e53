package main

import (
	"fmt"
	"os"

	"github.com/smallbiznis/collections/internal/cli"
	"github.com/smallbiznis/collections/internal/clock"
)

func main() {
	if err := cli.NewRootCmd(clock.NewSystemClock()).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
