// Command ancine ingests ANCINE box-office exports and serves the dashboard.
package main

import (
	"os"

	"ancine-dash/pkg/cli"
)

func main() {
	os.Exit(cli.Execute())
}
