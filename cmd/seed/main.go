package main

import (
	"bytes"
	"context"
	"flag"
	"log/slog"
	"os"

	"rollcall/internal/config"
	"rollcall/internal/roster"
	"rollcall/internal/schedule"
	"rollcall/internal/store"
)

// Seed replaces the schedule rules with those in a YAML file and upserts the
// people listed in it.
func main() {
	file := flag.String("file", "seed.yaml", "seed file with rules and people")
	keepRules := flag.Bool("keep-rules", false, "only upsert people, leave schedule rules untouched")
	flag.Parse()

	cfg := config.Load()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))

	if err := run(context.Background(), cfg, *file, *keepRules, logger); err != nil {
		logger.Error("seed failed", "file", *file, "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.App, path string, keepRules bool, logger *slog.Logger) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	people, err := roster.LoadPeopleYAML(bytes.NewReader(raw))
	if err != nil {
		return err
	}
	var rules []schedule.Rule
	if !keepRules {
		if rules, err = schedule.LoadRulesYAML(bytes.NewReader(raw)); err != nil {
			return err
		}
	}

	db, err := store.OpenDB(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	if !keepRules {
		if err := schedule.NewPostgresSource(db.Client).ReplaceAll(ctx, rules); err != nil {
			return err
		}
		logger.Info("schedule rules replaced", "rules", len(rules))
	}

	repo := roster.NewRepository(db.Client)
	for _, p := range people {
		saved, err := repo.Upsert(ctx, p)
		if err != nil {
			return err
		}
		logger.Debug("person saved", "id", saved.ID, "name", saved.Name)
	}
	logger.Info("people upserted", "people", len(people))
	return nil
}
