package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fleveque/wyckoff-journal/internal/catalog"
	"github.com/fleveque/wyckoff-journal/internal/journal"
	"github.com/fleveque/wyckoff-journal/internal/provider"
	"github.com/fleveque/wyckoff-journal/internal/service"
	"github.com/fleveque/wyckoff-journal/internal/storage"
)

type analyzeFlags struct {
	chart    string
	provider string
	model    string
	strategy string
	equity   float64
	apiKey   string
}

func analyzeCmd(opts *options) *cobra.Command {
	var f analyzeFlags

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Analyse a chart screenshot and append the result to the journal",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd, opts, f)
		},
	}

	cmd.Flags().StringVar(&f.chart, "chart", "", "Chart screenshot (PNG, JPEG or WebP)")
	cmd.Flags().StringVar(&f.provider, "provider", "gemini", "Provider: gemini, openai, deepseek, anthropic")
	cmd.Flags().StringVar(&f.model, "model", "", "Model name (default: first model listed for the provider)")
	cmd.Flags().StringVar(&f.strategy, "strategy", catalog.DefaultStrategy, "Prompt strategy")
	cmd.Flags().Float64Var(&f.equity, "equity", service.DefaultEquity, "Account equity substituted into the prompt")
	cmd.Flags().StringVar(&f.apiKey, "api-key", "", "API key for this run only (overrides the configured key)")
	_ = cmd.MarkFlagRequired("chart")
	return cmd
}

func runAnalyze(cmd *cobra.Command, opts *options, f analyzeFlags) error {
	e, err := loadEnv(opts, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer e.close()

	modelName, err := resolveModel(e.catalogs.Providers, f.provider, f.model)
	if err != nil {
		return err
	}

	j, err := journal.LoadFile(e.cfg.Journal.Path)
	if err != nil {
		return fmt.Errorf("restoring journal: %w", err)
	}

	db, err := e.openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	data, err := os.ReadFile(f.chart)
	if err != nil {
		return fmt.Errorf("reading chart: %w", err)
	}
	img, err := service.NewChartProcessor(e.cfg.Image.MaxDimension).Normalize(data)
	if err != nil {
		return fmt.Errorf("%s: %w", f.chart, err)
	}

	dispatcher := service.NewDispatcher(
		provider.NewRegistry(e.cfg.LLM),
		e.catalogs.Prompts,
		j,
		e.cfg.LLM.Credentials(),
		e.logger,
		service.WithRecorder(storage.NewGenerationCallRepository(db)),
		service.WithSentinel(e.cfg.Journal.Sentinel),
	)
	dispatcher.Begin()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rec, err := dispatcher.Generate(ctx, service.GenerateInput{
		Provider:   f.provider,
		Model:      modelName,
		Strategy:   f.strategy,
		Equity:     f.equity,
		Image:      img,
		Credential: f.apiKey,
	})
	if err != nil {
		return err
	}

	if err := j.SaveFile(e.cfg.Journal.Path); err != nil {
		return fmt.Errorf("saving journal: %w", err)
	}
	e.logger.Debug("journal saved",
		zap.String("path", e.cfg.Journal.Path),
		zap.Int("records", j.Len()),
	)

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s  %s/%s  %s\n\n", rec.Timestamp.Format("2006-01-02 15:04:05"), rec.Provider, rec.Model, rec.Strategy)
	fmt.Fprintln(out, rec.Analysis)
	return nil
}

// resolveModel returns the requested model, or the provider's first catalog
// model when none was given. Names outside the catalog are passed through.
func resolveModel(providers catalog.ProviderCatalog, providerName, requested string) (string, error) {
	if requested != "" {
		return requested, nil
	}
	models, ok := providers.Models(providerName)
	if !ok || len(models) == 0 {
		return "", fmt.Errorf("no models listed for provider %q; pass --model", providerName)
	}
	return models[0], nil
}
