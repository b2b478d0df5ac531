package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fleveque/wyckoff-journal/internal/provider"
)

func catalogCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "catalog",
		Short: "List providers, models and prompt strategies",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv(opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer e.close()

			creds := e.cfg.LLM.Credentials()
			out := cmd.OutOrStdout()

			fmt.Fprintln(out, "Providers:")
			for _, name := range e.catalogs.Providers.Names() {
				models, _ := e.catalogs.Providers.Models(name)
				var notes []string
				if !provider.Known(name) {
					notes = append(notes, "unsupported")
				}
				if creds[strings.ToLower(name)] != "" {
					notes = append(notes, "key configured")
				}
				line := fmt.Sprintf("  %s: %s", name, strings.Join(models, ", "))
				if len(notes) > 0 {
					line += " (" + strings.Join(notes, "; ") + ")"
				}
				fmt.Fprintln(out, line)
			}

			fmt.Fprintln(out, "Strategies:")
			for _, name := range e.catalogs.Prompts.Names() {
				fmt.Fprintf(out, "  %s\n", name)
			}
			return nil
		},
	}
}
