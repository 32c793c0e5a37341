package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"dubflow/internal/history"
)

const historyTimeLayout = "2006-01-02 15:04"

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent batches",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withHistory(func(store *history.Store) error {
				batches, err := store.ListBatches(cmd.Context(), limit)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, batches)
				}
				out := cmd.OutOrStdout()
				if len(batches) == 0 {
					fmt.Fprintln(out, "No batches recorded")
					return nil
				}
				rows := make([][]string, 0, len(batches))
				for _, b := range batches {
					rows = append(rows, []string{
						shortID(b.ID),
						b.StartedAt.Local().Format(historyTimeLayout),
						string(b.Status),
						strconv.Itoa(b.Succeeded),
						strconv.Itoa(b.Failed),
						formatDuration(b),
						firstLine(b.Input),
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"ID", "Started", "Status", "OK", "Failed", "Took", "Input"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignLeft},
				))
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "l", 20, "Maximum batches to list (0 for all)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	cmd.AddCommand(newHistoryShowCommand(ctx))
	return cmd
}

func newHistoryShowCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show <batch-id>",
		Short: "Show one batch and its videos",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withHistory(func(store *history.Store) error {
				batch, err := store.GetBatch(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if batch == nil {
					return fmt.Errorf("batch %q not found", args[0])
				}
				items, err := store.Items(cmd.Context(), batch.ID)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, struct {
						Batch history.Batch  `json:"batch"`
						Items []history.Item `json:"items"`
					}{*batch, items})
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Batch:    %s\n", batch.ID)
				fmt.Fprintf(out, "Status:   %s\n", batch.Status)
				fmt.Fprintf(out, "Root:     %s\n", batch.Root)
				fmt.Fprintf(out, "Started:  %s\n", batch.StartedAt.Local().Format(historyTimeLayout))
				fmt.Fprintf(out, "Took:     %s\n", formatDuration(*batch))
				fmt.Fprintf(out, "Input:    %s\n", strings.ReplaceAll(batch.Input, "\n", ", "))
				if batch.Summary != "" {
					fmt.Fprintf(out, "Summary:  %s\n", strings.ReplaceAll(batch.Summary, "\n", ", "))
				}
				if batch.Fatal != "" {
					fmt.Fprintf(out, "Fatal:    %s\n", batch.Fatal)
				}
				if batch.Video != "" {
					fmt.Fprintf(out, "Video:    %s\n", batch.Video)
				}
				if len(items) == 0 {
					return nil
				}
				rows := make([][]string, 0, len(items))
				for _, item := range items {
					detail := item.OutputVideo
					if item.Status != history.ItemSucceeded {
						detail = item.Message
					}
					rows = append(rows, []string{
						strconv.Itoa(item.Seq),
						item.Title,
						string(item.Status),
						strconv.Itoa(item.Attempts),
						item.FailedStage,
						detail,
					})
				}
				fmt.Fprintln(out)
				fmt.Fprintln(out, renderTable(
					[]string{"#", "Title", "Status", "Attempts", "Stage", "Output / Error"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	return cmd
}

func (c *commandContext) withHistory(fn func(*history.Store) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	store, err := history.Open(cfg)
	if err != nil {
		return fmt.Errorf("open history: %w", err)
	}
	defer store.Close()
	return fn(store)
}

func formatDuration(b history.Batch) string {
	if b.FinishedAt == nil {
		return "-"
	}
	return b.FinishedAt.Sub(b.StartedAt).Round(time.Second).String()
}

func firstLine(value string) string {
	lines := strings.Split(strings.TrimSpace(value), "\n")
	if len(lines) > 1 {
		return fmt.Sprintf("%s (+%d more)", lines[0], len(lines)-1)
	}
	return lines[0]
}

