package main

import (
	"os"

	"github.com/jonwraymond/netguard/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
