// Command pluginctl inspects plugin manifest directories and runs a daemon
// keeping a plugin registry in sync with one.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/GoCodeAlone/pluggable/cmd/pluginctl/cmd"
)

func main() {
	if err := cmd.NewRootCommand().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}
