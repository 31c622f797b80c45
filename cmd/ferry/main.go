// Command ferry uploads files to a file hosting service.
package main

import (
	"os"

	"github.com/meigma/ferry/cmd/ferry/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
