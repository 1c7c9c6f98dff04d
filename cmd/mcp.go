package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/mohammad-safakhou/researchbot/internal/mcp"
	"github.com/mohammad-safakhou/researchbot/tools/web_search"
)

func mcpCMD() *cobra.Command {
	var cfgPath string
	var cmd = &cobra.Command{
		Use:   "mcp",
		Short: "Serve research tools over stdio JSON-RPC",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(cmd.Context(), cfgPath)
			if err != nil {
				return err
			}
			defer a.close()
			searcher, err := web_search.NewWebSearcher(a.cfg.Search)
			if err != nil {
				return err
			}
			return mcp.New(a.pipeline, a.docs, searcher).Serve(cmd.Context(), os.Stdin, os.Stdout)
		},
	}
	cmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default is .)")
	return cmd
}
