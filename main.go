package main

import (
	"os"

	"resource-backup/src/cli"
)

func main() {
	os.Exit(cli.Execute())
}
