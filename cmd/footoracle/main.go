package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mrenaud/footoracle/internal/apifootball"
	"github.com/mrenaud/footoracle/internal/clone"
	"github.com/mrenaud/footoracle/internal/config"
	"github.com/mrenaud/footoracle/internal/dashboard"
	"github.com/mrenaud/footoracle/internal/export"
	"github.com/mrenaud/footoracle/internal/ingest"
	"github.com/mrenaud/footoracle/internal/logger"
	"github.com/mrenaud/footoracle/internal/metrics"
	"github.com/mrenaud/footoracle/internal/models"
	"github.com/mrenaud/footoracle/internal/predict"
	"github.com/mrenaud/footoracle/internal/rating"
	"github.com/mrenaud/footoracle/internal/storage"
	"github.com/mrenaud/footoracle/internal/telegram"
)

var (
	configPath = flag.String("config", "configs/config.yaml", "Path to configuration file")
	mode       = flag.String("mode", "pipeline", "Run mode: pipeline, rebuild, serve or ingest")
	dateFlag   = flag.String("date", "", "Target day as YYYY-MM-DD (default: today, UTC)")
	ingestFile = flag.String("file", "", "Results CSV to ingest (mode=ingest)")
	season     = flag.String("season", "", "Season label for ingested results, e.g. 2025-2026 (mode=ingest)")
)

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}
	logger.Init(cfg.Logging.Level, cfg.Logging.Format)

	day := time.Now().UTC().Truncate(24 * time.Hour)
	if *dateFlag != "" {
		day, err = time.Parse("2006-01-02", *dateFlag)
		if err != nil {
			logger.Fatal("Invalid -date %q, want YYYY-MM-DD", *dateFlag)
		}
	}

	store, err := storage.New(cfg.Storage.DBPath)
	if err != nil {
		logger.Fatal("Failed to open storage: %v", err)
	}
	defer store.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, cleaning up...")
		cancel()
	}()

	switch *mode {
	case "pipeline":
		if err := runDailyPipeline(ctx, cfg, store, day); err != nil {
			logger.Fatal("Pipeline failed: %v", err)
		}
	case "rebuild":
		if err := rebuildRatings(cfg, store); err != nil {
			logger.Fatal("Rating rebuild failed: %v", err)
		}
	case "serve":
		if err := serveDashboard(ctx, cfg, store); err != nil {
			logger.Fatal("Dashboard failed: %v", err)
		}
	case "ingest":
		if err := runIngest(store); err != nil {
			logger.Fatal("Ingest failed: %v", err)
		}
	default:
		logger.Fatal("Unknown mode %q", *mode)
	}
}

// runDailyPipeline is one full run: refresh fixtures and odds, fold ratings,
// generate predictions, detect clones, export files and notify.
func runDailyPipeline(ctx context.Context, cfg *config.Config, store *storage.Storage, day time.Time) error {
	started := time.Now()
	logger.Info("Starting daily pipeline for %s", day.Format("2006-01-02"))

	apiClient := apifootball.NewClient(
		cfg.API.BaseURL, cfg.API.Key, cfg.API.Timeout,
		cfg.API.MaxRetries, cfg.API.RetryDelayBase,
	)

	if err := refreshFixtures(ctx, apiClient, store, day, cfg.API.LeagueIDs); err != nil {
		// Stored data may still be enough to predict from.
		logger.Warn("Fixture refresh failed, continuing with stored data: %v", err)
	}

	engine, err := foldRatings(cfg, store, true)
	if err != nil {
		return fmt.Errorf("folding ratings: %w", err)
	}

	fixtures, err := store.FixturesOn(day)
	if err != nil {
		return fmt.Errorf("loading fixtures: %w", err)
	}
	logger.Info("Generating predictions for %d fixtures", len(fixtures))

	eval := predict.NewEvaluator(cfg.Predictions.BookmakerPriority)
	params := predict.ModelParams{
		DrawCeiling:   cfg.Predictions.DrawCeiling,
		DrawFloor:     cfg.Predictions.DrawFloor,
		DrawSlope:     cfg.Predictions.DrawSlope,
		BaselineGoals: cfg.Predictions.BaselineGoals,
		GoalsPerPoint: cfg.Predictions.GoalsPerPoint,
	}
	orch := predict.NewOrchestrator(
		engine.Store(), store, eval, params,
		cfg.Rating.HomeAdvantage,
		cfg.Predictions.Markets,
		cfg.Predictions.EmitWithoutOdds,
	)

	preds, fixtureErrs := orch.Generate(fixtures, time.Now().UTC())
	for _, fe := range fixtureErrs {
		logger.Warn("Skipped item: %v", fe)
	}
	metrics.SkippedMarkets.Add(float64(len(fixtureErrs)))
	metrics.FixturesProcessed.WithLabelValues("predict").Add(float64(len(fixtures)))

	if err := store.SavePredictions(preds); err != nil {
		return fmt.Errorf("saving predictions: %w", err)
	}

	var valueBets []models.Prediction
	for _, p := range preds {
		metrics.PredictionsEmitted.WithLabelValues(p.Market).Inc()
		if p.IsValueBet(cfg.Predictions.ValueMin) {
			valueBets = append(valueBets, p)
		}
	}
	metrics.ValueBets.Add(float64(len(valueBets)))
	logger.Info("Generated %d predictions (%d value bets)", len(preds), len(valueBets))

	clones, err := detectClones(cfg, store, engine.Store(), eval, params, fixtures)
	if err != nil {
		return fmt.Errorf("detecting clones: %w", err)
	}
	if err := store.SaveClonePairs(clones); err != nil {
		return fmt.Errorf("saving clone pairs: %w", err)
	}
	metrics.ClonePairs.Add(float64(len(clones)))
	logger.Info("Detected %d clone pairs", len(clones))

	if cfg.Export.Enabled {
		writer, err := export.NewWriter(cfg.Export.Dir)
		if err != nil {
			return fmt.Errorf("preparing export: %w", err)
		}
		if _, _, err := writer.WriteDay(day, preds); err != nil {
			return fmt.Errorf("exporting predictions: %w", err)
		}
	}

	if cfg.Telegram.Enabled {
		tgClient, err := telegram.NewClient(
			cfg.Telegram.BotToken, cfg.Telegram.ChatID,
			cfg.Telegram.MaxRetries, cfg.Telegram.RetryDelayBase,
		)
		if err != nil {
			logger.Error("Failed to initialize Telegram client: %v", err)
		} else if err := tgClient.SendDigest(day, valueBets, clones); err != nil {
			logger.Error("Failed to send Telegram digest: %v", err)
		}
	}

	metrics.ObserveRun(started)
	logger.Info("Pipeline completed in %v", time.Since(started))
	return nil
}

// refreshFixtures pulls the day's fixtures and their odds from the API and
// persists them.
func refreshFixtures(ctx context.Context, client *apifootball.Client, store *storage.Storage, day time.Time, leagueIDs []int) error {
	matches, err := client.FetchFixtures(ctx, day, leagueIDs)
	if err != nil {
		return err
	}
	logger.Info("Fetched %d fixtures", len(matches))

	for _, m := range matches {
		for _, side := range []models.Team{
			{ID: m.HomeTeamID, Name: m.HomeTeam, League: m.League},
			{ID: m.AwayTeamID, Name: m.AwayTeam, League: m.League},
		} {
			if err := store.UpsertTeam(side); err != nil {
				return err
			}
		}
		if err := store.UpsertMatch(m); err != nil {
			return err
		}
		metrics.FixturesProcessed.WithLabelValues("ingest").Inc()

		if m.Status != models.StatusScheduled {
			continue
		}
		quotes, err := client.FetchOdds(ctx, m.FixtureID)
		if err != nil {
			logger.Warn("Odds fetch failed for fixture %s: %v", m.FixtureID, err)
			continue
		}
		if err := store.SaveOdds(quotes); err != nil {
			return err
		}
	}
	return nil
}

// foldRatings replays all finished matches through a fresh engine. With
// persist set, each applied update is written to the rating history table.
func foldRatings(cfg *config.Config, store *storage.Storage, persist bool) (*rating.Engine, error) {
	finished, err := store.FinishedMatchesAsc()
	if err != nil {
		return nil, err
	}

	engine := rating.NewEngine(rating.NewStore(cfg.Rating.Default), cfg.Rating.KFactor, cfg.Rating.HomeAdvantage)
	results := make([]rating.Result, 0, len(finished))
	for _, m := range finished {
		results = append(results, rating.Result{
			FixtureID:  m.FixtureID,
			HomeTeamID: m.HomeTeamID,
			AwayTeamID: m.AwayTeamID,
			HomeGoals:  *m.HomeGoals,
			AwayGoals:  *m.AwayGoals,
			Date:       m.Date,
		})
	}

	updates, err := engine.ApplyAll(results)
	if err != nil {
		return nil, err
	}
	logger.Info("Applied %d results, %d teams rated", len(updates), len(engine.Store().TeamIDs()))

	if persist {
		for i, u := range updates {
			r := results[i]
			if err := store.AppendRating(r.HomeTeamID, r.FixtureID, u.Date, u.HomePost); err != nil {
				return nil, err
			}
			if err := store.AppendRating(r.AwayTeamID, r.FixtureID, u.Date, u.AwayPost); err != nil {
				return nil, err
			}
		}
	}
	return engine, nil
}

// rebuildRatings wipes the persisted rating history and replays everything.
func rebuildRatings(cfg *config.Config, store *storage.Storage) error {
	logger.Info("Rebuilding rating history from scratch")
	if err := store.ClearRatingHistory(); err != nil {
		return err
	}
	_, err := foldRatings(cfg, store, true)
	return err
}

// detectClones assembles one candidate per fixture and runs pairwise
// detection.
func detectClones(
	cfg *config.Config,
	store *storage.Storage,
	ratings *rating.Store,
	eval *predict.Evaluator,
	params predict.ModelParams,
	fixtures []models.Match,
) ([]models.ClonePair, error) {
	weights := clone.Weights{
		RatingGap:  cfg.Clones.WeightRatingGap,
		OddsShape:  cfg.Clones.WeightOddsShape,
		RecentForm: cfg.Clones.WeightRecentForm,
		League:     cfg.Clones.WeightLeague,
		HeadToHead: cfg.Clones.WeightHeadToHead,
	}
	detector := clone.New(weights, cfg.Clones.Threshold, cfg.Clones.LeagueMismatch)

	candidates := make([]clone.Candidate, 0, len(fixtures))
	for _, fx := range fixtures {
		diff := (ratings.Current(fx.HomeTeamID) + cfg.Rating.HomeAdvantage) - ratings.Current(fx.AwayTeamID)

		quotes, err := store.QuotesForFixture(fx.FixtureID)
		if err != nil {
			return nil, err
		}
		vector, ok := impliedVector(eval, quotes)
		if !ok {
			vector = predict.Outcome1X2(diff, params).Vector()
		}

		homeForm, _, err := store.RecentForm(fx.HomeTeamID, cfg.Clones.FormWindow)
		if err != nil {
			return nil, err
		}
		awayForm, _, err := store.RecentForm(fx.AwayTeamID, cfg.Clones.FormWindow)
		if err != nil {
			return nil, err
		}

		h2h, meetings, err := store.HeadToHead(fx.HomeTeamID, fx.AwayTeamID, 10)
		if err != nil {
			return nil, err
		}

		candidates = append(candidates, clone.Candidate{
			FixtureID:   fx.FixtureID,
			Label:       fx.HomeTeam + " vs " + fx.AwayTeam,
			League:      fx.League,
			RatingDiff:  diff,
			OddsVector:  vector,
			HomeFormPPG: homeForm,
			AwayFormPPG: awayForm,
			H2H:         h2h,
			HasH2H:      meetings > 0,
		})
	}

	return detector.DetectPairs(candidates, time.Now().UTC()), nil
}

// impliedVector converts the best 1X2 prices into a normalized probability
// vector. Returns false unless all three selections are priced.
func impliedVector(eval *predict.Evaluator, quotes []models.OddsQuote) ([3]float64, bool) {
	selections := [3]string{models.SelectionHome, models.SelectionDraw, models.SelectionAway}
	var vector [3]float64
	var sum float64
	for i, sel := range selections {
		best, err := eval.BestQuote(quotes, models.Market1X2, sel)
		if err != nil {
			return [3]float64{}, false
		}
		vector[i] = 1.0 / best.Price
		sum += vector[i]
	}
	for i := range vector {
		vector[i] /= sum
	}
	return vector, true
}

// serveDashboard runs the read-only HTTP API until the context is cancelled.
func serveDashboard(ctx context.Context, cfg *config.Config, store *storage.Storage) error {
	server := dashboard.New(store, cfg.Dashboard.ListenAddr, cfg.Dashboard.TopRatings)

	errChan := make(chan error, 1)
	go func() {
		errChan <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return err
		}
		logger.Info("Dashboard stopped")
		return nil
	case err := <-errChan:
		return err
	}
}

// runIngest loads one results CSV into storage.
func runIngest(store *storage.Storage) error {
	if *ingestFile == "" || *season == "" {
		return fmt.Errorf("mode=ingest requires -file and -season")
	}
	f, err := os.Open(*ingestFile)
	if err != nil {
		return fmt.Errorf("opening %s: %w", *ingestFile, err)
	}
	defer f.Close()

	result, err := ingest.Load(f, *season, store)
	if err != nil {
		return err
	}
	logger.Info("Ingested %d matches, %d teams, %d quotes (%d rows skipped) from %s",
		len(result.Matches), len(result.Teams), len(result.Quotes), len(result.Errors), *ingestFile)
	return nil
}
