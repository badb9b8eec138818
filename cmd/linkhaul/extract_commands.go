package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"linkhaul/internal/daemonrun"
)

func newExtractCommand(ctx *commandContext) *cobra.Command {
	var password string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "extract <url>",
		Short: "Fetch a container page and print its links without submitting them",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withRuntime(func(rt *daemonrun.Runtime) error {
				result, err := rt.Extractor.Extract(cmd.Context(), args[0], password)
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, result)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Name:    %s\n", valueOrDash(result.Name))
				fmt.Fprintf(out, "Source:  %s\n", result.Source)
				switch {
				case result.RequiresPassword:
					fmt.Fprintln(out, "Password required; retry with --password")
					return nil
				case result.RequiresCaptcha:
					fmt.Fprintf(out, "Captcha required (%s)\n", valueOrDash(result.CaptchaType))
					return nil
				}
				if result.EncryptedPayload {
					fmt.Fprintln(out, "Page carries an encrypted link payload")
				}
				if result.LinkListURL != "" {
					fmt.Fprintf(out, "Link list: %s\n", result.LinkListURL)
				}
				if len(result.Links) == 0 {
					fmt.Fprintln(out, "No links found")
					return nil
				}
				rows := make([][]string, 0, len(result.Links))
				for i, link := range result.Links {
					rows = append(rows, []string{strconv.Itoa(i + 1), link})
				}
				printTable(cmd, []string{"#", "Link"}, rows, []columnAlignment{alignRight, alignLeft})
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&password, "password", "p", "", "Container password")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func newResolveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <url>",
		Short: "Follow a redirect link to its hoster URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withRuntime(func(rt *daemonrun.Runtime) error {
				final, ok, err := rt.Extractor.ResolveRedirect(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if !ok {
					fmt.Fprintln(out, "Unresolved: target is not a known hoster")
					return nil
				}
				fmt.Fprintln(out, final)
				return nil
			})
		},
	}
}
