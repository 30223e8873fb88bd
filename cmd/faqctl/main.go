package main

import (
	"os"

	"github.com/kirillkom/faq-assistant/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
