package main

import (
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	var root = &cobra.Command{Use: "researchbot", Short: "Company research assistant", SilenceUsage: true}

	root.AddCommand(serveCMD(), migrateCMD(), askCMD(), mcpCMD())
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
