// taskbed/tbgen generates route-table wiring for taskbed harnesses. Annotate
// a handler with a `// taskbed:route <pattern>` comment and add a
// `//go:generate tbgen` comment to the package; tbgen scans the package's Go
// files and writes a taskbed_routes.gen.go declaring TaskbedRoutes(), the
// ordered taskbed.RouteTable for every annotated handler.
package main

import (
	"fmt"
	"os"

	"github.com/taskbed/taskbed/tbgen/run"
)

func main() {
	err := run.Run(os.Args, run.OSFileSystem{}, os.Stdout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
