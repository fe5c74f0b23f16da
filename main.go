package main

import (
	"os"

	"github.com/conneroisu/kiln/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
