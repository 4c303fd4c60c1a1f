// WritePal - guided essay writing coach
package main

import (
	"os"

	"github.com/ashureev/writepal/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
