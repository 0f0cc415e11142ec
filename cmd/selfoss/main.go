package main

import (
	"os"

	"github.com/glabrego/selfoss-cli/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
