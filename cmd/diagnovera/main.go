// diagnovera is the command-line interface: offline diagnosis, library
// tooling, and schema migrations.
package main

import (
	"os"

	"github.com/diagnovera/diagnovera/internal/interfaces/cli"
)

func main() {
	os.Exit(cli.Execute())
}
