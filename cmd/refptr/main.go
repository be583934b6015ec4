package main

import (
	"os"

	"github.com/refptr/refptr/cmd"
)

func main() {
	if err := cmd.CmdRefptr.Execute(); err != nil {
		os.Exit(1)
	}
}
