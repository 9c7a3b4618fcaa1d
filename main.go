// Scry - structural query engine for versioned code graphs.
//
// Scry loads code-graph dumps, answers structural queries (SELECT,
// FIND, SHOW, PATH, ANALYZE) against them, and tracks how entities
// changed across graph versions (HISTORY, BLAME, AT, BETWEEN).
package main

import (
	"fmt"
	"os"

	"github.com/scrylang/scry/cmd"
)

func main() {
	cli := cmd.NewCLI()

	if err := cli.Execute(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
