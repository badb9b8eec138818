package main

import (
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"linkhaul/internal/api"
	"linkhaul/internal/containers"
	"linkhaul/internal/daemonrun"
)

func newContainerCommand(ctx *commandContext) *cobra.Command {
	containerCmd := &cobra.Command{
		Use:     "container",
		Aliases: []string{"containers"},
		Short:   "Extract and manage link containers",
	}

	containerCmd.AddCommand(newContainerAddCommand(ctx))
	containerCmd.AddCommand(newContainerManualCommand(ctx))
	containerCmd.AddCommand(newContainerListCommand(ctx))
	containerCmd.AddCommand(newContainerShowCommand(ctx))
	containerCmd.AddCommand(newContainerReconcileCommand(ctx))
	containerCmd.AddCommand(newContainerRemoveCommand(ctx))

	return containerCmd
}

func newContainerAddCommand(ctx *commandContext) *cobra.Command {
	var password, name, folder string
	var credential int64
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "add <url>",
		Short: "Extract a container page and submit its links",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withRuntime(func(rt *daemonrun.Runtime) error {
				c, err := rt.Containers.CreateFromURL(cmd.Context(), containers.CreateRequest{
					URL:          args[0],
					Password:     password,
					Name:         name,
					Folder:       folder,
					CredentialID: optionalID(credential),
				})
				if err != nil {
					return err
				}
				view := api.FromContainer(c)
				if jsonOutput {
					return writeJSON(cmd, view)
				}
				printContainerSummary(cmd, view)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&password, "password", "p", "", "Container password")
	cmd.Flags().StringVar(&name, "name", "", "Override the container name")
	cmd.Flags().StringVar(&folder, "folder", "", "Override the download folder name")
	cmd.Flags().Int64Var(&credential, "credential", 0, "Credential id passed through to downloads")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func newContainerManualCommand(ctx *commandContext) *cobra.Command {
	var password, folder string
	var credential int64
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "manual <name> <url>...",
		Short: "Group a list of links into a container without extraction",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withRuntime(func(rt *daemonrun.Runtime) error {
				c, err := rt.Containers.CreateManual(cmd.Context(), containers.ManualRequest{
					Name:         args[0],
					URLs:         args[1:],
					Folder:       folder,
					Password:     password,
					CredentialID: optionalID(credential),
				})
				if err != nil {
					return err
				}
				view := api.FromContainer(c)
				if jsonOutput {
					return writeJSON(cmd, view)
				}
				printContainerSummary(cmd, view)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&password, "password", "p", "", "Archive password to record")
	cmd.Flags().StringVar(&folder, "folder", "", "Override the download folder name")
	cmd.Flags().Int64Var(&credential, "credential", 0, "Credential id passed through to downloads")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func newContainerListCommand(ctx *commandContext) *cobra.Command {
	var statuses []string
	var limit, offset int
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List containers",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := api.ParseContainerStatuses(statuses)
			if err != nil {
				return err
			}
			return ctx.withRuntime(func(rt *daemonrun.Runtime) error {
				rows, err := rt.Containers.List(cmd.Context(), containers.ListOptions{
					Statuses: filter,
					Limit:    limit,
					Offset:   offset,
				})
				if err != nil {
					return err
				}
				views := api.FromContainers(rows)
				if jsonOutput {
					return writeJSON(cmd, api.ContainerListResponse{Containers: views})
				}
				if len(views) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No containers")
					return nil
				}
				table := make([][]string, 0, len(views))
				for _, c := range views {
					table = append(table, []string{
						strconv.FormatInt(c.ID, 10),
						c.Name,
						c.Status,
						api.ContainerProgress(c),
						c.Source,
						valueOrDash(c.UpdatedAt),
					})
				}
				printTable(cmd,
					[]string{"ID", "Name", "Status", "Links", "Source", "Updated"},
					table,
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
				)
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVar(&statuses, "status", nil, "Filter by status (comma separated)")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum rows to return")
	cmd.Flags().IntVar(&offset, "offset", 0, "Rows to skip")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func newContainerShowCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a container and its downloads",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return ctx.withRuntime(func(rt *daemonrun.Runtime) error {
				c, err := rt.Containers.Get(cmd.Context(), id)
				if err != nil {
					return err
				}
				members, err := rt.Containers.Members(cmd.Context(), id)
				if err != nil {
					return err
				}
				view := api.FromContainer(c)
				view.Downloads = api.FromDownloads(members)
				if jsonOutput {
					return writeJSON(cmd, api.ContainerResponse{Container: view})
				}
				printContainerDetail(cmd, view)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func newContainerReconcileCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile <id>",
		Short: "Refresh member downloads from the engine and recompute the container status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return ctx.withRuntime(func(rt *daemonrun.Runtime) error {
				c, err := rt.Containers.Refresh(cmd.Context(), id)
				if err != nil {
					return err
				}
				view := api.FromContainer(c)
				fmt.Fprintf(cmd.OutOrStdout(), "Container #%d is %s (%s)\n", view.ID, view.Status, api.ContainerProgress(view))
				return nil
			})
		},
	}
}

func newContainerRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:     "rm <id>",
		Aliases: []string{"remove"},
		Short:   "Delete a container and its downloads",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return ctx.withRuntime(func(rt *daemonrun.Runtime) error {
				if err := rt.Containers.Delete(cmd.Context(), id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Container #%d removed\n", id)
				return nil
			})
		},
	}
}

func printContainerSummary(cmd *cobra.Command, c api.Container) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Container #%d %q is %s (%s)\n", c.ID, c.Name, c.Status, api.ContainerProgress(c))
	if c.Gate != nil {
		printGate(cmd, *c.Gate)
	}
	if c.EncryptedPayload {
		fmt.Fprintln(out, "Note: page carries an encrypted link payload that was not decoded")
	}
}

func printGate(cmd *cobra.Command, gate api.Gate) {
	out := cmd.OutOrStdout()
	switch gate.Kind {
	case "password":
		fmt.Fprintln(out, "Password required; retry with --password")
	case "captcha":
		fmt.Fprintf(out, "Captcha required (%s); solve it in a browser", valueOrDash(gate.CaptchaType))
		if gate.URL != "" {
			fmt.Fprintf(out, " at %s", gate.URL)
		}
		fmt.Fprintln(out)
	}
}

func printContainerDetail(cmd *cobra.Command, c api.Container) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Container #%d\n", c.ID)
	fmt.Fprintf(out, "  Name:      %s\n", c.Name)
	fmt.Fprintf(out, "  Status:    %s\n", c.Status)
	fmt.Fprintf(out, "  Source:    %s\n", c.Source)
	fmt.Fprintf(out, "  URL:       %s\n", valueOrDash(c.URL))
	fmt.Fprintf(out, "  Folder:    %s\n", c.FolderName)
	fmt.Fprintf(out, "  Links:     %s\n", api.ContainerProgress(c))
	fmt.Fprintf(out, "  Password:  %s\n", yesNo(c.HasPassword))
	if c.Description != "" {
		fmt.Fprintf(out, "  Note:      %s\n", c.Description)
	}
	fmt.Fprintf(out, "  Created:   %s\n", valueOrDash(c.CreatedAt))
	fmt.Fprintf(out, "  Updated:   %s\n", valueOrDash(c.UpdatedAt))
	if c.Gate != nil {
		printGate(cmd, *c.Gate)
	}
	if len(c.Downloads) == 0 {
		return
	}
	fmt.Fprintln(out)
	printDownloadTable(cmd, c.Downloads)
}

func downloadLabel(d api.Download) string {
	switch {
	case d.Filename != "":
		return d.Filename
	case d.FilePath != "":
		return filepath.Base(d.FilePath)
	default:
		return d.URL
	}
}
