package main

import (
	"os"

	"github.com/hellobirdie/hellobirdie/cmd"
	"github.com/hellobirdie/hellobirdie/internal/conf"
)

func main() {
	settings := &conf.Settings{}

	if err := cmd.RootCommand(settings).Execute(); err != nil {
		os.Exit(1)
	}
}
