package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/Delminho/ltv-models-sbg-bdw/internal/config"
	"github.com/Delminho/ltv-models-sbg-bdw/internal/fitter"
	"github.com/Delminho/ltv-models-sbg-bdw/internal/ingest"
	"github.com/Delminho/ltv-models-sbg-bdw/internal/logger"
	"github.com/Delminho/ltv-models-sbg-bdw/internal/storage"
	"github.com/Delminho/ltv-models-sbg-bdw/internal/survival"
	"github.com/Delminho/ltv-models-sbg-bdw/internal/telegram"
)

var (
	configPath = flag.String("config", "configs/config.yaml", "Path to configuration file")
	importPath = flag.String("import", "", "Cohort CSV file or directory to ingest before fitting")
	runOnce    = flag.Bool("once", false, "Run a single fit cycle and exit")
)

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	logger.Info("Configuration loaded from %s", *configPath)

	store, err := storage.New(
		cfg.Storage.MaxFits,
		cfg.Storage.DBPath,
	)
	if err != nil {
		logger.Fatal("Failed to initialize storage: %v", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("Failed to close storage: %v", err)
		}
	}()

	loader := ingest.New(store)
	if *importPath != "" {
		if err := runImport(loader, *importPath); err != nil {
			logger.Fatal("Import failed: %v", err)
		}
	}
	if cfg.Ingest.Dir != "" {
		n, err := loader.LoadDir(cfg.Ingest.Dir)
		if err != nil {
			logger.Fatal("Failed to ingest %s: %v", cfg.Ingest.Dir, err)
		}
		logger.Info("Ingested %d dataset(s) from %s", n, cfg.Ingest.Dir)
	}

	fitters, err := buildFitters(cfg.Fitting)
	if err != nil {
		logger.Fatal("Failed to configure fitting: %v", err)
	}

	var telegramClient *telegram.Client
	if cfg.Telegram.Enabled {
		telegramClient, err = telegram.NewClient(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Telegram.MaxRetries, cfg.Telegram.RetryDelayBase)
		if err != nil {
			logger.Fatal("Failed to initialize Telegram client: %v", err)
		}
		logger.Info("Telegram client initialized successfully")
	} else {
		logger.Debug("Telegram notifications disabled")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, cleaning up...")
		cancel()
	}()

	if cfg.Telegram.Enabled && telegramClient != nil {
		telegramClient.ListenForCommands(ctx)
	}

	logger.Info("Starting retention fitting service (interval: %v, horizon: %d, models: %v)",
		cfg.Service.FitInterval,
		cfg.Service.Horizon,
		cfg.Fitting.Models,
	)

	consecutiveFailures := 0

	handleCycleResult := func(err error) {
		if err != nil {
			consecutiveFailures++
			logger.Error("Fit cycle failed: %v", err)
			if consecutiveFailures == 1 && cfg.Telegram.Enabled && telegramClient != nil {
				if sendErr := telegramClient.SendError(err); sendErr != nil {
					logger.Warn("Failed to send error notification to Telegram: %v", sendErr)
				}
			}
		} else {
			if consecutiveFailures > 0 && cfg.Telegram.Enabled && telegramClient != nil {
				if sendErr := telegramClient.SendRecovery(consecutiveFailures); sendErr != nil {
					logger.Warn("Failed to send recovery notification to Telegram: %v", sendErr)
				}
			}
			consecutiveFailures = 0
		}
	}

	logger.Debug("Running initial fit cycle")
	handleCycleResult(runFitCycle(ctx, store, fitters, telegramClient, cfg))

	if *runOnce {
		logger.Info("Single fit cycle complete")
		return
	}

	ticker := time.NewTicker(cfg.Service.FitInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("Service stopped")
			return

		case <-ticker.C:
			logger.Debug("Starting scheduled fit cycle")
			handleCycleResult(runFitCycle(ctx, store, fitters, telegramClient, cfg))
		}
	}
}

// runImport ingests a single CSV file or every CSV file in a directory.
func runImport(loader *ingest.Loader, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.IsDir() {
		n, err := loader.LoadDir(path)
		if err != nil {
			return err
		}
		logger.Info("Ingested %d dataset(s) from %s", n, path)
		return nil
	}
	name, cohorts, err := loader.LoadFile(path)
	if err != nil {
		return err
	}
	logger.Info("Ingested dataset %s (%d cohort(s))", name, cohorts)
	return nil
}

type modelFitter struct {
	model  survival.Model
	fitter *fitter.Fitter
	method string
}

// buildFitters instantiates one fitter per configured model name.
func buildFitters(cfg config.FittingConfig) ([]modelFitter, error) {
	fitterCfg := fitter.Config{
		Method:        cfg.Method,
		MaxRetries:    cfg.MaxRetries,
		MaxIterations: cfg.MaxIterations,
		Seed:          cfg.Seed,
	}

	fitters := make([]modelFitter, 0, len(cfg.Models))
	for _, name := range cfg.Models {
		var model survival.Model
		switch name {
		case "sbg":
			model = survival.NewSBG()
		case "bdw":
			model = survival.NewBDW()
		default:
			return nil, fmt.Errorf("unknown model %q", name)
		}
		method := cfg.Method
		if method == "" {
			method = model.DefaultMethod()
		}
		fitters = append(fitters, modelFitter{
			model:  model,
			fitter: fitter.New(model, fitterCfg),
			method: method,
		})
	}
	return fitters, nil
}

// runFitCycle fits every configured model to every stored dataset, persists the
// results, and reports them.
func runFitCycle(
	ctx context.Context,
	store *storage.Storage,
	fitters []modelFitter,
	telegramClient *telegram.Client,
	cfg *config.Config,
) error {
	startTime := time.Now()
	logger.Info("Starting fit cycle")

	datasets, err := store.ListDatasets()
	if err != nil {
		return fmt.Errorf("failed to list datasets: %w", err)
	}
	if len(datasets) == 0 {
		logger.Info("No datasets stored, nothing to fit")
		return nil
	}
	logger.Info("Fitting %d model(s) to %d dataset(s)", len(fitters), len(datasets))

	bar := progressbar.NewOptions(len(datasets),
		progressbar.OptionSetDescription("fitting"),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionClearOnFinish(),
	)

	fitted := 0
	failed := 0
	for _, name := range datasets {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		report, err := fitDataset(store, fitters, name, cfg)
		if err != nil {
			logger.Warn("Skipping dataset %s: %v", name, err)
			bar.Add(1) //nolint:errcheck
			continue
		}
		fitted += len(report.Fits)
		failed += len(report.Failed)

		if cfg.Telegram.Enabled && telegramClient != nil {
			if err := telegramClient.Send(*report); err != nil {
				logger.Error("Failed to send Telegram report for %s: %v", name, err)
			}
		}
		bar.Add(1) //nolint:errcheck
	}
	bar.Finish() //nolint:errcheck

	logger.Info("Fit cycle completed in %v (%d fit(s), %d failure(s))", time.Since(startTime), fitted, failed)
	return nil
}

// fitDataset runs every configured model against one dataset and assembles its
// report. Individual model failures are recorded, not fatal.
func fitDataset(
	store *storage.Storage,
	fitters []modelFitter,
	name string,
	cfg *config.Config,
) (*telegram.Report, error) {
	data, err := store.GetDataset(name)
	if err != nil {
		return nil, fmt.Errorf("failed to load dataset: %w", err)
	}

	report := &telegram.Report{
		Dataset: name,
		Horizon: cfg.Service.Horizon,
	}

	for _, mf := range fitters {
		result, err := mf.fitter.Fit(data, cfg.Service.Horizon)
		if err != nil {
			logger.Warn("Model %s failed on dataset %s: %v", mf.model.Name(), name, err)
			report.Failed = append(report.Failed, mf.model.Name())
			continue
		}

		rec := &storage.FitRecord{
			Dataset: name,
			Model:   result.Model,
			Method:  mf.method,
			Params:  result.Params,
			Loss:    result.Loss,
			Curve:   result.RetentionCurve,
		}
		if err := store.SaveFit(rec); err != nil {
			logger.Error("Failed to persist fit %s/%s: %v", name, result.Model, err)
		}

		projected := result.RetentionCurve[len(result.RetentionCurve)-1]
		degraded := cfg.Service.AlertThreshold > 0 && projected < cfg.Service.AlertThreshold
		if degraded {
			logger.Warn("Dataset %s: %s projects %.1f%% retention at period %d (threshold %.1f%%)",
				name, result.Model, projected*100, cfg.Service.Horizon, cfg.Service.AlertThreshold*100)
		}

		report.Fits = append(report.Fits, telegram.FitLine{
			Model:     result.Model,
			Params:    result.Params,
			Loss:      result.Loss,
			Projected: projected,
			Degraded:  degraded,
		})
		logger.Info("Fitted %s to %s: loss %.4f", result.Model, name, result.Loss)
	}

	return report, nil
}
