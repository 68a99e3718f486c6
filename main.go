package main

import (
	"os"

	"github.com/ftl/cwskim/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
