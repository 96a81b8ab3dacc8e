package main

import (
	"os"

	"github.com/timmy/transitdw/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
