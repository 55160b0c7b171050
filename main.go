package main

import (
	"os"

	"github.com/meysamhadeli/scaffai/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
