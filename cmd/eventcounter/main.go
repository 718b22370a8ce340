package main

import (
	"fmt"
	"os"

	"github.com/coder/serpent"
)

// version is set at build time.
var version = "dev"

func main() {
	cmd := rootCmd()
	if err := cmd.Invoke().WithOS().Run(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *serpent.Command {
	var client clientFlags
	return &serpent.Command{
		Use:   "eventcounter",
		Short: "Count tracked events and inspect the counts.",
		Handler: func(inv *serpent.Invocation) error {
			return inv.Command.HelpHandler(inv)
		},
		Children: []*serpent.Command{
			serveCmd(),
			listCmd(&client),
			getCmd(&client),
			resetCmd(&client),
		},
	}
}
