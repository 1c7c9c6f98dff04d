package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mohammad-safakhou/researchbot/internal/agent/core"
)

func askCMD() *cobra.Command {
	var cfgPath string
	var deep bool
	var session string
	var ask = &cobra.Command{
		Use:   "ask [question]",
		Short: "Answer one question and print it",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(cmd.Context(), cfgPath)
			if err != nil {
				return err
			}
			defer a.close()

			message := strings.Join(args, " ")
			if deep {
				message = "/dig-deeper " + message
			}
			resp, err := a.pipeline.HandleTurn(cmd.Context(), session, message)
			if err != nil && !errors.Is(err, core.ErrTurnFailed) && !errors.Is(err, core.ErrEmptyDeepQuery) {
				return err
			}
			out := cmd.OutOrStdout()
			switch {
			case resp.Answer != nil:
				fmt.Fprintln(out, resp.Answer.Answer)
				if len(resp.KeyPoints) > 0 {
					fmt.Fprintln(out, "\nKey points:")
					for _, kp := range resp.KeyPoints {
						fmt.Fprintln(out, "• "+kp)
					}
				}
				if len(resp.Sources) > 0 {
					fmt.Fprintln(out, "\nSources:")
					for _, s := range resp.Sources {
						fmt.Fprintf(out, "[%d] %s - %s\n", s.ID, s.Title, s.URL)
					}
				}
				fmt.Fprintf(out, "\nconfidence: %s  session: %s\n", resp.Confidence, resp.SessionID)
			case resp.Content != "":
				fmt.Fprintln(out, resp.Content)
			case resp.DownloadURL != "":
				fmt.Fprintln(out, resp.DownloadURL)
			default:
				fmt.Fprintln(out, resp.Message, resp.SessionID)
			}
			return err
		},
	}
	ask.Flags().BoolVar(&deep, "deep", false, "run a deep dive (more sub-queries and sources)")
	ask.Flags().StringVar(&session, "session", "", "continue an existing session")
	ask.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default is .)")
	return ask
}
