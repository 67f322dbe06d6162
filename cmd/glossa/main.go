package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/glossa/internal"
	"github.com/starford/glossa/internal/export"
	pkgconfig "github.com/starford/glossa/pkg/config"
)

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	configPath := cmd.String("config")

	cfg := internal.NewDefaultConfig()
	found, err := pkgconfig.LoadOptional(configPath, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if !found {
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("invalid default config: %w", err)
		}
	}
	return cfg, nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	opts := []internal.Option{
		internal.WithConfig(cfg),
		internal.WithConfigPath(cmd.String("config")),
	}

	if err := internal.Run(ctx, opts...); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}

	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func search(ctx context.Context, cmd *cli.Command) error {
	query := strings.Join(cmd.Args().Slice(), " ")
	if query == "" {
		return errors.New("search: a query is required")
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	dict, err := internal.OpenDictionary(cfg, internal.NewLogger(cfg.App.LogLevel, nil))
	if err != nil {
		return err
	}
	views, err := dict.Search(ctx, query, cmd.String("user"))
	if err != nil {
		return err
	}
	if limit := int(cmd.Int("limit")); limit > 0 && len(views) > limit {
		views = views[:limit]
	}
	return printJSON(views)
}

func lookup(ctx context.Context, cmd *cli.Command) error {
	id := cmd.Args().First()
	if id == "" {
		return errors.New("lookup: an id is required")
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	dict, err := internal.OpenDictionary(cfg, internal.NewLogger(cfg.App.LogLevel, nil))
	if err != nil {
		return err
	}
	v, err := dict.Lookup(ctx, id, cmd.String("user"))
	if err != nil {
		return err
	}
	return printJSON(v)
}

func backup(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	dict, err := internal.OpenDictionary(cfg, internal.NewLogger(cfg.App.LogLevel, nil))
	if err != nil {
		return err
	}
	if !dict.Backup(ctx) {
		return errors.New("backup failed")
	}
	return nil
}

func exportSQLite(_ context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := internal.NewLogger(cfg.App.LogLevel, nil)
	dict, err := internal.OpenDictionary(cfg, logger)
	if err != nil {
		return err
	}
	out := cmd.String("out")
	stats, err := export.Write(out, dict.Snapshot())
	if err != nil {
		return err
	}
	logger.Info("export: done",
		slog.String("path", out),
		slog.Int("entries", stats.Entries),
		slog.Int("notes", stats.Notes),
		slog.Int("votes", stats.Votes))
	return nil
}

func main() {
	userFlag := &cli.StringFlag{
		Name:    "user",
		Aliases: []string{"u"},
		Usage:   "Show this user's own votes",
	}

	cmd := &cli.Command{
		Name:   "glossa",
		Usage:  "Community dictionary with crash-tolerant storage and ranked term search, served over MCP",
		Action: serve,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Serve the dictionary over MCP on stdin/stdout",
				Action: serve,
			},
			{
				Name:      "search",
				Usage:     "Search entries",
				ArgsUsage: "<query>",
				Action:    search,
				Flags: []cli.Flag{
					userFlag,
					&cli.IntFlag{Name: "limit", Aliases: []string{"n"}, Usage: "Maximum number of results (0 for all)"},
				},
			},
			{
				Name:      "lookup",
				Usage:     "Show a single entry",
				ArgsUsage: "<id>",
				Action:    lookup,
				Flags:     []cli.Flag{userFlag},
			},
			{
				Name:   "backup",
				Usage:  "Write a point-in-time snapshot now",
				Action: backup,
			},
			{
				Name:   "export",
				Usage:  "Export the dictionary to a SQLite file",
				Action: exportSQLite,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Value: "glossa-export.db", Usage: "Output file"},
				},
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
