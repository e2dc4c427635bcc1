package main

import (
	"fmt"
	"os"

	workbench "github.com/thrawn01/tag-workbench"
)

func main() {
	if err := workbench.RunCmd(os.Args, nil); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
