// Command asktable answers natural-language questions about CSV and SQL data.
package main

import (
	"os"

	"github.com/spektr-org/asktable/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
