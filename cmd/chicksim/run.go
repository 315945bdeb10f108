package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"time"

	"chickmaster/internal/config"
	"chickmaster/internal/content"
	"chickmaster/internal/engine"
	"chickmaster/internal/event"
	"chickmaster/internal/game"
	"chickmaster/internal/save"
	"chickmaster/internal/story"
	"chickmaster/internal/telemetry"
	"chickmaster/internal/tracker"
)

type options struct {
	configPath   string
	eventsDir    string
	patternsFile string
	modifiers    string
	lang         string
	slot         string
	load         string
	dbPath       string
	saveDir      string
	days         int
	seed         int64
}

func parseFlags(args []string) (options, error) {
	var o options
	fs := flag.NewFlagSet("chicksim", flag.ContinueOnError)
	fs.StringVar(&o.configPath, "config", "", "YAML config file (default: environment)")
	fs.StringVar(&o.eventsDir, "events", "", "event catalog directory (default: built-in)")
	fs.StringVar(&o.patternsFile, "patterns", "", "story pattern file, .json or .yaml (default: built-in)")
	fs.StringVar(&o.modifiers, "modifiers", "seesaw", "comma-separated turn modifiers: seesaw, tradeoff, fluctuation")
	fs.StringVar(&o.lang, "lang", "ko", "narrative language")
	fs.StringVar(&o.slot, "save", "", "save the final state into this slot")
	fs.StringVar(&o.load, "load", "", "resume from this slot")
	fs.StringVar(&o.dbPath, "db", "", "SQLite save database (default: zstd files under -save-dir)")
	fs.StringVar(&o.saveDir, "save-dir", "saves", "directory for file saves")
	fs.IntVar(&o.days, "days", 30, "number of days to simulate")
	fs.Int64Var(&o.seed, "seed", 0, "random seed (0: config or clock)")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	if o.days < 0 {
		return options{}, fmt.Errorf("-days must not be negative")
	}
	return o, nil
}

func loadConfig(o options) (*config.Config, error) {
	if o.configPath != "" {
		return config.Load(o.configPath)
	}
	cfg := &config.Config{Balance: config.FromEnv()}
	cfg.ApplyDefaults()
	if err := cfg.Balance.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func pickSeed(o options, cfg *config.Config) int64 {
	switch {
	case o.seed != 0:
		return o.seed
	case cfg.SeededRNG.Enabled:
		return cfg.SeededRNG.Seed
	}
	return time.Now().UnixNano()
}

func loadEvents(o options, cfg *config.Config) (event.Catalog, error) {
	l, err := event.NewLoader(cfg.Balance.EventCooldownDays)
	if err != nil {
		return event.Catalog{}, err
	}
	dir := o.eventsDir
	if dir == "" {
		dir = cfg.Content.EventsDir
	}
	if dir != "" {
		return l.LoadDir(dir)
	}
	return l.LoadFS(content.Events(), ".")
}

func loadPatterns(o options, cfg *config.Config) ([]story.Pattern, error) {
	path := o.patternsFile
	if path == "" {
		path = cfg.Content.PatternsFile
	}
	if path != "" {
		return story.LoadPatterns(path)
	}
	return story.DefaultPatterns()
}

func buildModifier(spec string, seed int64) (game.Modifier, error) {
	var chain game.Chain
	for _, name := range strings.Split(spec, ",") {
		switch strings.TrimSpace(name) {
		case "":
		case "seesaw":
			chain = append(chain, game.Seesaw{})
		case "tradeoff":
			chain = append(chain, game.PriceFatigue())
		case "fluctuation":
			chain = append(chain, game.NewFluctuation(seed, 0.02))
		default:
			return nil, fmt.Errorf("unknown modifier %q", name)
		}
	}
	switch len(chain) {
	case 0:
		return nil, nil
	case 1:
		return chain[0], nil
	}
	return chain, nil
}

func openStore(o options) (save.Store, func() error, error) {
	if o.dbPath != "" {
		db, err := save.OpenSQLite(o.dbPath)
		if err != nil {
			return nil, nil, err
		}
		return db, db.Close, nil
	}
	return save.NewFileStore(o.saveDir), func() error { return nil }, nil
}

func run(ctx context.Context, args []string) error {
	o, err := parseFlags(args)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(o)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	seed := pickSeed(o, cfg)
	rng := rand.New(rand.NewPCG(uint64(seed), uint64(seed)>>1))

	catalog, err := loadEvents(o, cfg)
	if err != nil {
		return fmt.Errorf("load events: %w", err)
	}
	patterns, err := loadPatterns(o, cfg)
	if err != nil {
		return fmt.Errorf("load patterns: %w", err)
	}
	mod, err := buildModifier(o.modifiers, seed)
	if err != nil {
		return err
	}
	slog.Info("content loaded",
		"events", len(catalog.Events),
		"patterns", len(patterns),
		"digest", catalog.Digest,
		"seed", seed,
	)

	rec := telemetry.NewMemoryRepository()
	eng := engine.New(engine.Options{
		Balance:   cfg.Balance,
		Rand:      rng,
		Modifier:  mod,
		Patterns:  patterns,
		Languages: []string{"ko", "en"},
		Telemetry: rec,
	})
	if err := eng.RegisterAll(catalog.Events); err != nil {
		return err
	}

	store, closeStore, err := openStore(o)
	if err != nil {
		return fmt.Errorf("open saves: %w", err)
	}
	defer closeStore()

	ini := game.NewInitializer(cfg.Balance, game.RealClock{})
	var state game.State
	if o.load != "" {
		r, err := store.Get(ctx, o.load)
		if err != nil {
			return err
		}
		if r.Digest != "" && r.Digest != catalog.Digest {
			slog.Warn("save was made with different content", "slot", o.load, "saved", r.Digest, "current", catalog.Digest)
		}
		state, err = ini.LoadSavedGame(r.Blob)
		if err != nil {
			return err
		}
		slog.Info("save loaded", "slot", o.load, "day", state.CurrentDay())
	} else {
		state, err = ini.InitializeWith(cfg.Settings)
		if err != nil {
			return err
		}
	}

	tr := tracker.New(eng, state, tracker.Options{Telemetry: rec})
	for i := 0; i < o.days; i++ {
		if err := ctx.Err(); err != nil {
			slog.Warn("interrupted", "day", tr.State().CurrentDay())
			break
		}
		res, err := tr.Advance(ctx)
		if errors.Is(err, engine.ErrRunComplete) {
			slog.Info("run complete", "day", tr.State().CurrentDay())
			break
		}
		if err != nil {
			return err
		}

		attrs := []any{
			"day", res.State.CurrentDay(),
			"fired", res.Fired,
			"level", res.Response.Level,
			"narrative", res.Response.Text(o.lang),
		}
		if p := res.Response.StoryPattern; p != nil {
			attrs = append(attrs, "pattern", p.ID)
		}
		if s := res.Response.SuggestedEvent; s != nil {
			attrs = append(attrs, "next", s.EventID)
		}
		slog.Info("turn", attrs...)
	}

	events, err := rec.GetEvents(time.Time{}, nil)
	if err != nil {
		return err
	}
	stats, err := telemetry.CalculateStats(events, time.Time{})
	if err != nil {
		return err
	}
	slog.Info("run stats",
		"turns", stats.Turns,
		"events_per_turn", fmt.Sprintf("%.2f", stats.EventsPerTurn),
		"cascade_fires", stats.CascadeFires,
		"cascade_trimmed", stats.CascadeTrimmed,
		"pattern_hits", len(stats.PatternHits),
		"effects_skipped", stats.EffectsSkipped,
	)
	for _, m := range tr.State().Warnings() {
		slog.Warn("metric in warning zone", "metric", m, "value", tr.State().Value(m))
	}

	if o.slot == "" {
		return nil
	}
	r := save.NewRecord(o.slot, tr.State(), catalog.Digest)
	if err := store.Put(ctx, r); err != nil {
		return fmt.Errorf("save: %w", err)
	}
	if db, ok := store.(*save.SQLiteStore); ok {
		if err := db.RecordSnapshots(ctx, r.RunID, tr.Snapshots()); err != nil {
			return fmt.Errorf("save snapshots: %w", err)
		}
	}
	slog.Info("saved", "slot", o.slot, "run", r.RunID, "day", r.Day)
	return nil
}
