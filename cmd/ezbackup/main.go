// Command ezbackup is an incremental, compressed, optionally encrypted
// backup tool.
package main

import (
	"os"

	"github.com/jonathanrlemos/ezbackup/internal/cli"
)

const version = "v0.1.0"

func main() {
	os.Exit(cli.Execute(version))
}
