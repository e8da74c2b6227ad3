// deface serves MRI defacing tools over HTTP and MCP and runs them from the
// command line.
package main

import (
	"context"
	"io"
	"os"

	"github.com/basakesin/mri-defacing-platform/internal/cli"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, out, errOut io.Writer) int {
	return cli.Execute(context.Background(), args, out, errOut)
}
