// Package main implements the slot-report CLI, which prints the ranked
// publishing slots the scheduler would use right now.
//
// It is intended for operators tuning SCHEDULER_TIMEZONE or checking how the
// analytics history shifts slot scores before a campaign.
//
// Usage:
//
//	go run ./cmd/tools/slot-report
//	go run ./cmd/tools/slot-report --platform=youtube --count=10
//	go run ./cmd/tools/slot-report --history-days=30 --json
//	go run ./cmd/tools/slot-report --list
//
// Configuration is read the same way as the API server (environment plus an
// optional .env file). When DATABASE_URL is set, historical engagement from
// the last --history-days days is loaded; otherwise default scoring is shown.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"contentpilot/internal/config"
	"contentpilot/internal/db"
	"contentpilot/internal/scheduler"
	"contentpilot/internal/types"
)

// platformReport is the ranked slot list for one platform.
type platformReport struct {
	Platform types.Platform      `json:"platform"`
	NextSlot time.Time           `json:"next_slot"`
	Times    []types.OptimalTime `json:"times"`
}

// report is the full CLI output.
type report struct {
	Timezone       string           `json:"timezone"`
	GeneratedAt    time.Time        `json:"generated_at"`
	HistoryRecords int              `json:"history_records"`
	Platforms      []platformReport `json:"platforms"`
}

func main() {
	platformFlag := flag.String("platform", "", "Comma separated platforms (default: SCHEDULER_PLATFORMS)")
	countFlag := flag.Int("count", scheduler.DefaultOptimalCount, "Number of ranked slots per platform")
	tzFlag := flag.String("timezone", "", "Override SCHEDULER_TIMEZONE")
	historyFlag := flag.Int("history-days", 90, "Days of analytics history to score against")
	jsonFlag := flag.Bool("json", false, "Print JSON instead of a table")
	listFlag := flag.Bool("list", false, "List known platforms and exit")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: slot-report [flags]\n\n")
		fmt.Fprintf(os.Stderr, "Print the ranked publishing slots per platform.\n\n")
		fmt.Fprintf(os.Stderr, "Flags:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if *listFlag {
		printPlatforms(os.Stdout)
		return
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: loading configuration: %v\n", err)
		os.Exit(1)
	}

	platforms := cfg.Scheduler.Platforms
	if *platformFlag != "" {
		if platforms, err = parsePlatforms(*platformFlag); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n\n", err)
			printPlatforms(os.Stderr)
			os.Exit(1)
		}
	}
	if *countFlag < 1 || *countFlag > 168 {
		fmt.Fprintf(os.Stderr, "error: --count must be between 1 and 168\n")
		os.Exit(1)
	}
	tz := cfg.Scheduler.Timezone
	if *tzFlag != "" {
		tz = *tzFlag
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var history []types.HistoricalPerformance
	if cfg.Database.URL.IsSet() && *historyFlag > 0 {
		since := time.Now().UTC().AddDate(0, 0, -*historyFlag)
		history, err = loadHistory(ctx, cfg.Database.URL.Unmask(), since, tz)
		if err != nil {
			logger.Warn("historical performance unavailable, using default scoring", "error", err)
		}
	}

	sched, err := scheduler.NewSmartScheduler(scheduler.Config{
		Timezone:       tz,
		Platforms:      platforms,
		HistoricalData: history,
		Seed:           cfg.Scheduler.Seed,
		Logger:         logger,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	rep := buildReport(sched, platforms, *countFlag, len(history))
	if *jsonFlag {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(rep); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}
	printTable(os.Stdout, rep)
}

// parsePlatforms splits a comma separated list and rejects unknown or
// repeated platforms.
func parsePlatforms(raw string) ([]types.Platform, error) {
	var out []types.Platform
	seen := make(map[types.Platform]bool)
	for _, part := range strings.Split(raw, ",") {
		p := types.Platform(strings.ToLower(strings.TrimSpace(part)))
		if p == "" {
			continue
		}
		if !p.IsValid() {
			return nil, fmt.Errorf("unknown platform %q", part)
		}
		if seen[p] {
			return nil, fmt.Errorf("platform %q listed more than once", p)
		}
		seen[p] = true
		out = append(out, p)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no platforms given")
	}
	return out, nil
}

func loadHistory(ctx context.Context, url string, since time.Time, tz string) ([]types.HistoricalPerformance, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("creating database pool: %w", err)
	}
	defer pool.Close()

	return db.NewPerformanceRepository(pool).ListHistoricalPerformance(ctx, since, tz)
}

func buildReport(s *scheduler.Scheduler, platforms []types.Platform, count, historyRecords int) report {
	rep := report{
		Timezone:       s.Location().String(),
		GeneratedAt:    time.Now().UTC(),
		HistoryRecords: historyRecords,
	}
	for _, p := range platforms {
		rep.Platforms = append(rep.Platforms, platformReport{
			Platform: p,
			NextSlot: s.GetNextOptimalSlot(p),
			Times:    s.FindOptimalTimes(p, count),
		})
	}
	return rep
}

func printTable(w io.Writer, rep report) {
	fmt.Fprintf(w, "Timezone: %s   History records: %d\n\n", rep.Timezone, rep.HistoryRecords)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "PLATFORM\tRANK\tDAY\tHOUR\tSCORE\tREASON")
	for _, pr := range rep.Platforms {
		for i, ot := range pr.Times {
			fmt.Fprintf(tw, "%s\t%d\t%s\t%02d:00\t%.1f\t%s\n",
				pr.Platform.DisplayName(), i+1, ot.DayOfWeek, ot.Hour, ot.Score, ot.Reason)
		}
		fmt.Fprintf(tw, "%s\tnext\t%s\t\t\t\n", pr.Platform.DisplayName(), pr.NextSlot.Format(time.RFC1123))
	}
	tw.Flush()
}

func printPlatforms(w io.Writer) {
	fmt.Fprintln(w, "Known platforms:")
	for _, p := range types.AllPlatforms {
		fmt.Fprintf(w, "  %-10s %s\n", p, p.DisplayName())
	}
}
