// cmd/envboot/main.go
package main

import (
	"os"

	"github.com/arc-language/envboot/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
