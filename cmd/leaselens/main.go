// Command leaselens analyzes a lease from the command line and manages API keys.
package main

import (
	"os"

	"github.com/kiranshivaraju/leaselens/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
