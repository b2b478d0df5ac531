package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/fleveque/wyckoff-journal/internal/journal"
	"github.com/fleveque/wyckoff-journal/internal/model"
	"github.com/fleveque/wyckoff-journal/internal/render"
	"github.com/fleveque/wyckoff-journal/internal/storage"
)

func journalCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Inspect or archive the journal file",
	}
	cmd.AddCommand(journalShowCmd(opts), journalArchiveCmd(opts), journalRestoreCmd(opts))
	return cmd
}

func journalShowCmd(opts *options) *cobra.Command {
	var (
		limit int
		html  bool
	)

	cmd := &cobra.Command{
		Use:   "show",
		Short: "List journal entries, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv(opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer e.close()

			j, err := journal.LoadFile(e.cfg.Journal.Path)
			if err != nil {
				return err
			}

			var r *render.Renderer
			if html {
				r = render.New()
			}
			return printJournal(cmd.OutOrStdout(), j.Newest(), limit, r)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "Show at most N entries (0 = all)")
	cmd.Flags().BoolVar(&html, "html", false, "Print each analysis rendered as HTML")
	return cmd
}

func journalArchiveCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "archive",
		Short: "Copy the journal export to the configured export directory or bucket",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv(opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer e.close()

			j, err := journal.LoadFile(e.cfg.Journal.Path)
			if err != nil {
				return err
			}
			data, err := j.Marshal()
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			sink, err := e.exportSink(ctx)
			if err != nil {
				return err
			}

			location, err := sink.Put(ctx, journal.ExportFileName(time.Now()), data)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "archived %d entries to %s\n", j.Len(), location)
			return nil
		},
	}
}

// journalRestoreCmd reads an export by name from the configured sink (the
// export directory, or the MinIO bucket when enabled), or from a path, and
// writes it to the journal file. The journal file must not already hold
// records.
func journalRestoreCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "restore NAME|FILE",
		Short: "Restore an archived journal (by name) or an export file into an empty journal file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv(opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer e.close()

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			data, err := readExport(ctx, args[0], e.exportSink)
			if err != nil {
				return err
			}

			j, err := journal.LoadFile(e.cfg.Journal.Path)
			if err != nil {
				return err
			}
			if err := j.Import(bytes.NewReader(data)); err != nil {
				return fmt.Errorf("restoring %s: %w", args[0], err)
			}
			if err := j.SaveFile(e.cfg.Journal.Path); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "restored %d entries into %s\n", j.Len(), e.cfg.Journal.Path)
			return nil
		},
	}
}

// readExport reads arg as a file path when it has a directory part, and
// otherwise fetches it by name from the sink openSink returns.
func readExport(ctx context.Context, arg string, openSink func(context.Context) (storage.ExportSink, error)) ([]byte, error) {
	if filepath.Base(arg) != arg {
		return os.ReadFile(arg)
	}
	sink, err := openSink(ctx)
	if err != nil {
		return nil, err
	}
	data, err := sink.Get(ctx, arg)
	if err != nil {
		return nil, fmt.Errorf("reading %s from %s: %w", arg, sink.Name(), err)
	}
	return data, nil
}

// printJournal writes records in the order given. A non-nil renderer
// prints HTML instead of the raw text.
func printJournal(w io.Writer, records []model.AnalysisRecord, limit int, r *render.Renderer) error {
	if len(records) == 0 {
		fmt.Fprintln(w, "No analyses yet. Run `wyckoff analyze --chart FILE` to start.")
		return nil
	}
	if limit > 0 && limit < len(records) {
		records = records[:limit]
	}

	for i, rec := range records {
		if i > 0 {
			fmt.Fprintln(w)
		}
		header := rec.Timestamp.Local().Format("2006-01-02 15:04:05")
		if rec.Provider != "" {
			header += fmt.Sprintf("  %s/%s", rec.Provider, rec.Model)
		}
		if rec.Strategy != "" {
			header += "  " + rec.Strategy
		}
		fmt.Fprintf(w, "=== %s ===\n", header)

		body := rec.Analysis
		if r != nil {
			html, err := r.HTML(rec.Analysis)
			if err != nil {
				return err
			}
			body = html
		}
		fmt.Fprintln(w, body)
	}
	return nil
}
