// Command unstacked is the CLI front-end for the stacked-diff engine. It
// does nothing beyond flag parsing and dispatch into the Model's
// operations; all behaviour lives under internal/.
package main

import (
	"fmt"
	"os"

	"github.com/vapourismo/unstacked/cmd/unstacked/cmdutil"
)

func main() {
	if err := cmdutil.Root().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
