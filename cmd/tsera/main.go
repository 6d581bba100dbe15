// Command tsera keeps generated artifacts coherent with declared
// entities.
package main

import (
	"fmt"
	"os"

	"github.com/tsera-dev/tsera/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "tsera:", err)
		os.Exit(1)
	}
}
