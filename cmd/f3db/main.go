package main

import (
	"os"

	"github.com/f3-nation/db-tools/internal/commands"
)

func main() {
	os.Exit(commands.Execute())
}
