package main

import (
	"os"

	"github.com/dukerupert/mailrelay/cmd/relay/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
