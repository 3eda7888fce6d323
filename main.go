package main

import (
	"os"

	"ms-autobook/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
