package main

import (
	"embed"
	"os"

	"github.com/msalah0e/ripple/cmd"
)

//go:embed scenes/*.yaml
var scenesFS embed.FS

func main() {
	cmd.SetScenesFS(scenesFS)
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
