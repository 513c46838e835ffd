// Command sparsego builds, inspects and queries sparse impact indexes.
package main

import (
	"os"

	"github.com/hupe1980/sparsego/cmd/sparsego/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
