package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/haowjy/meridian-claude-go/batch"
	"github.com/haowjy/meridian-claude-go/config"
	"github.com/haowjy/meridian-claude-go/providers/anthropic"
)

// version is set with -ldflags "-X main.version=1.2.3".
var version = "dev"

func newApp() *cli.Command {
	return &cli.Command{
		Name:    "claudectl",
		Usage:   "Talk to the Claude Messages API",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to config file",
				Value:   "claude.yaml",
			},
			&cli.StringFlag{
				Name:  "transport",
				Usage: "Transport: http, sdk or lorem (overrides config)",
			},
			&cli.StringFlag{
				Name:    "model",
				Aliases: []string{"m"},
				Usage:   "Model id (overrides config)",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Log level: debug, info, warn, error",
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "stream",
				Usage:     "Stream a reply to a prompt",
				ArgsUsage: "<prompt>",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "max-tokens", Usage: "Maximum output tokens (default from config)"},
					&cli.StringFlag{Name: "system", Aliases: []string{"s"}, Usage: "System prompt"},
					&cli.StringFlag{Name: "thinking", Usage: "Extended thinking effort: low, medium, high"},
					&cli.BoolFlag{Name: "show-thinking", Usage: "Print thinking as it streams"},
				},
				Action: cmdStream,
			},
			batchCommand(),
			{
				Name:   "models",
				Usage:  "List known models and their limits",
				Action: cmdModels,
			},
		},
	}
}

// session is the per-invocation state shared by commands.
type session struct {
	cfg    *config.Config
	logger *slog.Logger
	out    *printer
}

func newSession(cmd *cli.Command) (*session, error) {
	if _, err := config.LoadEnv(); err != nil {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return nil, err
	}
	if v := cmd.String("transport"); v != "" {
		cfg.Transport = v
	}
	if v := cmd.String("model"); v != "" {
		cfg.Model = v
	}
	if v := cmd.String("log-level"); v != "" {
		cfg.Log.Level = v
	}

	logger, err := config.NewLogger(cfg.Log.Level, cfg.Log.Format, errWriter(cmd))
	if err != nil {
		return nil, err
	}
	return &session{cfg: cfg, logger: logger, out: newPrinter(writer(cmd))}, nil
}

func (s *session) client(opts ...batch.Option) (*anthropic.Client, error) {
	return config.NewClient(s.cfg, s.logger, opts...)
}

func writer(cmd *cli.Command) io.Writer {
	if w := cmd.Root().Writer; w != nil {
		return w
	}
	return os.Stdout
}

func errWriter(cmd *cli.Command) io.Writer {
	if w := cmd.Root().ErrWriter; w != nil {
		return w
	}
	return os.Stderr
}

func requireArg(cmd *cli.Command, name string) (string, error) {
	if cmd.Args().Len() != 1 {
		return "", fmt.Errorf("expected exactly one argument: <%s>", name)
	}
	return cmd.Args().First(), nil
}
