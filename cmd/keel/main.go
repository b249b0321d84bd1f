package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/fairlie/keel/internal"
	"github.com/fairlie/keel/internal/apperr"
	"github.com/fairlie/keel/internal/classifier"
	"github.com/fairlie/keel/internal/contract"
	"github.com/fairlie/keel/internal/jobservice"
	"github.com/fairlie/keel/internal/mcpserver"
	"github.com/fairlie/keel/internal/scanner"
	pkgconfig "github.com/fairlie/keel/pkg/config"
	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"
)

func runServe(ctx context.Context, cmd *cli.Command) error {
	cfg := internal.NewDefaultConfig()

	// An explicitly named config file must exist; the default path is
	// optional and the built-in defaults apply when it is absent.
	configPath := cmd.String("config")
	if cmd.IsSet("config") {
		if err := pkgconfig.Load(configPath, cfg); err != nil {
			return fmt.Errorf("failed to parse config: %w", err)
		}
	} else if err := pkgconfig.LoadOptional(configPath, cfg); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}

	if err := internal.Run(ctx, internal.WithConfig(cfg)); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}

	return nil
}

func runScan(ctx context.Context, cmd *cli.Command) error {
	dir := cmd.Args().First()
	if dir == "" {
		return errors.New("usage: keel scan <source-dir>")
	}

	// Diagnostics go to stderr so stdout stays pipeable JSON.
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	sc, err := scanner.New(dir, scanner.WalkerConfig{Logger: logger})
	if err != nil {
		return err
	}

	emit := func() error {
		c, err := sc.Scan(cmd.String("repo-url"))
		if err != nil && !errors.Is(err, apperr.ErrNoFindings) {
			return err
		}
		if errors.Is(err, apperr.ErrNoFindings) {
			logger.Warn("No entities or endpoints found", slog.String("dir", dir))
		}
		return writeJSON(c, cmd.String("out"))
	}

	if err := emit(); err != nil {
		return err
	}
	if !cmd.Bool("watch") {
		return nil
	}

	watchCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("Watching for changes", slog.String("dir", dir))
	return sc.Watch(watchCtx, 0, func() {
		if err := emit(); err != nil {
			logger.Error("Rescan failed", slog.String("error", err.Error()))
		}
	})
}

func runPlan(_ context.Context, cmd *cli.Command) error {
	mode := cmd.String("mode")
	switch mode {
	case "", contract.ModePostgres, contract.ModeMongo, contract.ModeHybrid:
	default:
		return fmt.Errorf("unknown mode %q (postgres, mongo, or hybrid)", mode)
	}

	entities, err := planEntities(cmd)
	if err != nil {
		return err
	}

	plan, err := classifier.Classify(entities, classifier.Options{
		Mode:             mode,
		Strategy:         cmd.String("strategy"),
		MongoEntities:    cmd.StringSlice("mongo"),
		PostgresEntities: cmd.StringSlice("postgres"),
	})
	if err != nil {
		return err
	}

	return writeJSON(plan, "")
}

// planEntities resolves the entity list for the plan command from either a
// previously scanned contract file or a fresh scan of a source directory.
func planEntities(cmd *cli.Command) ([]contract.EntitySpec, error) {
	contractPath := cmd.String("contract")
	sourceDir := cmd.String("source")

	switch {
	case contractPath != "" && sourceDir != "":
		return nil, errors.New("--contract and --source are mutually exclusive")

	case contractPath != "":
		data, err := os.ReadFile(contractPath)
		if err != nil {
			return nil, err
		}
		var c contract.UIContract
		if err := json.Unmarshal(data, &c); err != nil {
			return nil, fmt.Errorf("failed to parse contract %s: %w", contractPath, err)
		}
		return c.Entities, nil

	case sourceDir != "":
		logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
		sc, err := scanner.New(sourceDir, scanner.WalkerConfig{Logger: logger})
		if err != nil {
			return nil, err
		}
		c, err := sc.Scan("")
		if err != nil && !errors.Is(err, apperr.ErrNoFindings) {
			return nil, err
		}
		return c.Entities, nil

	default:
		return nil, errors.New("either --contract or --source is required")
	}
}

func runMCP(_ context.Context, cmd *cli.Command) error {
	// Stdio carries the protocol, so diagnostics must stay on stderr.
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	// The MCP tools are stateless: scan and plan never touch the job
	// store or the workspace.
	svc := jobservice.NewService(nil, nil, nil, scanner.WalkerConfig{Logger: logger}, logger)
	return mcpserver.New(svc).ServeStdio()
}

// writeJSON renders v as indented JSON to the given file, or to stdout when
// the path is empty.
func writeJSON(v any, path string) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	out = append(out, '\n')

	if path != "" {
		return os.WriteFile(path, out, 0o644)
	}
	_, err = os.Stdout.Write(out)
	return err
}

func main() {
	cmd := &cli.Command{
		Name:  "keel",
		Usage: "Scan frontend source trees into UI contracts and plan their storage backends",
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API and job runner",
				Action: runServe,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:        "config",
						Aliases:     []string{"c"},
						Usage:       "Path to config file",
						DefaultText: "config/config.yaml",
						Value:       "config/config.yaml",
						Sources:     cli.EnvVars("KEEL_CONFIG_FILE"),
					},
				},
			},
			{
				Name:      "scan",
				Usage:     "Scan a frontend source tree and emit its UI contract as JSON",
				ArgsUsage: "<source-dir>",
				Action:    runScan,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "repo-url",
						Usage: "Repository URL recorded in the contract",
					},
					&cli.StringFlag{
						Name:    "out",
						Aliases: []string{"o"},
						Usage:   "Write the contract to a file instead of stdout",
					},
					&cli.BoolFlag{
						Name:    "watch",
						Aliases: []string{"w"},
						Usage:   "Keep running and re-emit the contract whenever the tree changes",
					},
				},
			},
			{
				Name:   "plan",
				Usage:  "Classify contract entities into PostgreSQL and MongoDB stores",
				Action: runPlan,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "contract",
						Usage: "Path to a previously scanned UI contract JSON file",
					},
					&cli.StringFlag{
						Name:  "source",
						Usage: "Source directory to scan for entities",
					},
					&cli.StringFlag{
						Name:        "mode",
						Usage:       "Storage mode: postgres, mongo, or hybrid",
						DefaultText: "hybrid",
					},
					&cli.StringFlag{
						Name:  "strategy",
						Usage: "Hybrid placement strategy hint",
					},
					&cli.StringSliceFlag{
						Name:  "mongo",
						Usage: "Entity names forced to the mongo store",
					},
					&cli.StringSliceFlag{
						Name:  "postgres",
						Usage: "Entity names forced to the postgres store",
					},
				},
			},
			{
				Name:   "mcp",
				Usage:  "Serve scan and plan tools over the Model Context Protocol on stdio",
				Action: runMCP,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
