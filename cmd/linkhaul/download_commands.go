package main

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"linkhaul/internal/api"
	"linkhaul/internal/daemonrun"
	"linkhaul/internal/downloads"
)

func newDownloadCommand(ctx *commandContext) *cobra.Command {
	downloadCmd := &cobra.Command{
		Use:     "download",
		Aliases: []string{"downloads", "dl"},
		Short:   "Submit and control individual downloads",
	}

	downloadCmd.AddCommand(newDownloadAddCommand(ctx))
	downloadCmd.AddCommand(newDownloadListCommand(ctx))
	downloadCmd.AddCommand(newDownloadShowCommand(ctx))
	downloadCmd.AddCommand(newDownloadControlCommand(ctx, "pause", "Pause an active download", "paused", (*downloads.Service).Pause))
	downloadCmd.AddCommand(newDownloadControlCommand(ctx, "resume", "Resume a paused download", "resumed", (*downloads.Service).Resume))
	downloadCmd.AddCommand(newDownloadControlCommand(ctx, "cancel", "Cancel a download", "cancelled", (*downloads.Service).Cancel))
	downloadCmd.AddCommand(newDownloadRetryCommand(ctx))
	downloadCmd.AddCommand(newDownloadRemoveCommand(ctx))
	downloadCmd.AddCommand(newDownloadStatsCommand(ctx))

	return downloadCmd
}

func newDownloadAddCommand(ctx *commandContext) *cobra.Command {
	var filename string
	var container, credential int64
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "add <url>",
		Short: "Submit a single URL to the engine",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withRuntime(func(rt *daemonrun.Runtime) error {
				d, err := rt.Downloads.Submit(cmd.Context(), downloads.SubmitRequest{
					URL:          args[0],
					Filename:     filename,
					ContainerID:  optionalID(container),
					CredentialID: optionalID(credential),
				})
				if err != nil {
					return err
				}
				view := api.FromDownload(d)
				if jsonOutput {
					return writeJSON(cmd, api.DownloadResponse{Download: view})
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Download #%d is %s\n", view.ID, view.Status)
				if view.ErrorMessage != "" {
					fmt.Fprintf(out, "Error: %s\n", view.ErrorMessage)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&filename, "filename", "", "Output filename")
	cmd.Flags().Int64Var(&container, "container", 0, "Attach to an existing container")
	cmd.Flags().Int64Var(&credential, "credential", 0, "Credential id to record")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func newDownloadListCommand(ctx *commandContext) *cobra.Command {
	var statuses []string
	var container int64
	var limit, offset int
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List downloads",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := api.ParseDownloadStatuses(statuses)
			if err != nil {
				return err
			}
			return ctx.withRuntime(func(rt *daemonrun.Runtime) error {
				rows, err := rt.Downloads.List(cmd.Context(), downloads.ListOptions{
					Statuses:    filter,
					ContainerID: optionalID(container),
					Limit:       limit,
					Offset:      offset,
				})
				if err != nil {
					return err
				}
				views := api.FromDownloads(rows)
				if jsonOutput {
					return writeJSON(cmd, api.DownloadListResponse{Downloads: views})
				}
				if len(views) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No downloads")
					return nil
				}
				printDownloadTable(cmd, views)
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVar(&statuses, "status", nil, "Filter by status (comma separated)")
	cmd.Flags().Int64Var(&container, "container", 0, "Only downloads in this container")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum rows to return")
	cmd.Flags().IntVar(&offset, "offset", 0, "Rows to skip")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func printDownloadTable(cmd *cobra.Command, views []api.Download) {
	rows := make([][]string, 0, len(views))
	for _, d := range views {
		rows = append(rows, []string{
			strconv.FormatInt(d.ID, 10),
			d.Status,
			api.FormatProgress(d.Progress),
			api.FormatSpeed(d.Speed),
			api.FormatETA(d.ETASeconds),
			api.FormatBytes(d.TotalBytes),
			downloadLabel(d),
		})
	}
	printTable(cmd,
		[]string{"ID", "Status", "Progress", "Speed", "ETA", "Size", "File"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignRight, alignRight, alignRight, alignRight, alignLeft},
	)
}

func newDownloadShowCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Reconcile and show one download",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return ctx.withRuntime(func(rt *daemonrun.Runtime) error {
				d, err := rt.Downloads.Reconcile(cmd.Context(), id)
				if err != nil {
					return err
				}
				view := api.FromDownload(d)
				if jsonOutput {
					return writeJSON(cmd, api.DownloadResponse{Download: view})
				}
				printDownloadDetail(cmd, view)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func printDownloadDetail(cmd *cobra.Command, d api.Download) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Download #%d\n", d.ID)
	fmt.Fprintf(out, "  URL:       %s\n", d.URL)
	fmt.Fprintf(out, "  Status:    %s\n", d.Status)
	fmt.Fprintf(out, "  Progress:  %s (%s of %s)\n", api.FormatProgress(d.Progress), api.FormatBytes(d.DownloadedBytes), api.FormatBytes(d.TotalBytes))
	fmt.Fprintf(out, "  Speed:     %s\n", api.FormatSpeed(d.Speed))
	fmt.Fprintf(out, "  ETA:       %s\n", api.FormatETA(d.ETASeconds))
	fmt.Fprintf(out, "  File:      %s\n", valueOrDash(d.FilePath))
	fmt.Fprintf(out, "  Handle:    %s\n", valueOrDash(d.EngineHandle))
	if d.ContainerID != nil {
		fmt.Fprintf(out, "  Container: #%d\n", *d.ContainerID)
	}
	fmt.Fprintf(out, "  Retries:   %d\n", d.RetryCount)
	if d.ErrorMessage != "" {
		fmt.Fprintf(out, "  Error:     %s\n", d.ErrorMessage)
	}
	fmt.Fprintf(out, "  Created:   %s\n", valueOrDash(d.CreatedAt))
	fmt.Fprintf(out, "  Updated:   %s\n", valueOrDash(d.UpdatedAt))
	if d.CompletedAt != "" {
		fmt.Fprintf(out, "  Completed: %s\n", d.CompletedAt)
	}
}

type controlFunc func(*downloads.Service, context.Context, int64) (bool, error)

func newDownloadControlCommand(ctx *commandContext, verb, short, pastTense string, action controlFunc) *cobra.Command {
	return &cobra.Command{
		Use:   verb + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return ctx.withRuntime(func(rt *daemonrun.Runtime) error {
				applied, err := action(rt.Downloads, cmd.Context(), id)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if applied {
					fmt.Fprintf(out, "Download #%d %s\n", id, pastTense)
					return nil
				}
				d, err := rt.Downloads.Get(cmd.Context(), id)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Download #%d not %s (status %s)\n", id, pastTense, d.Status)
				return nil
			})
		},
	}
}

func newDownloadRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry <id>",
		Short: "Resubmit a failed download",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return ctx.withRuntime(func(rt *daemonrun.Runtime) error {
				d, err := rt.Downloads.Retry(cmd.Context(), id)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Download #%d resubmitted (retry %d, status %s)\n", d.ID, d.RetryCount, d.Status)
				return nil
			})
		},
	}
}

func newDownloadRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:     "rm <id>",
		Aliases: []string{"remove"},
		Short:   "Remove a download from the engine and the database",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return ctx.withRuntime(func(rt *daemonrun.Runtime) error {
				if err := rt.Downloads.Delete(cmd.Context(), id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Download #%d removed\n", id)
				return nil
			})
		},
	}
}

func newDownloadStatsCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show download counts and engine throughput",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withRuntime(func(rt *daemonrun.Runtime) error {
				stats, err := rt.Downloads.Stats(cmd.Context())
				if err != nil {
					return err
				}
				view := api.FromStats(stats)
				if jsonOutput {
					return writeJSON(cmd, view)
				}
				keys := make([]string, 0, len(view.Counts))
				for k := range view.Counts {
					keys = append(keys, k)
				}
				sort.Strings(keys)
				rows := make([][]string, 0, len(keys)+1)
				for _, k := range keys {
					rows = append(rows, []string{k, strconv.Itoa(view.Counts[k])})
				}
				rows = append(rows, []string{"total", strconv.Itoa(view.Total)})
				printTable(cmd, []string{"Status", "Count"}, rows, []columnAlignment{alignLeft, alignRight})

				out := cmd.OutOrStdout()
				if !view.EngineAvailable {
					fmt.Fprintln(out, "Engine:   unreachable")
					return nil
				}
				fmt.Fprintf(out, "Engine:   %d active, %d waiting\n", view.NumActive, view.NumWaiting)
				fmt.Fprintf(out, "Speed:    %s\n", api.FormatSpeed(view.DownloadSpeed))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}
