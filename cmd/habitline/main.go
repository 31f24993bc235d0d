package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"

	"github.com/hray3182/HabitLine/internal/config"
	"github.com/hray3182/HabitLine/internal/logx"
)

var CLI struct {
	Version kong.VersionFlag
	Config  string `help:"Optional YAML config file; environment variables override it." type:"path" env:"HABITLINE_CONFIG"`

	Run     RunCmd     `cmd:"" help:"Run the Telegram bot and the reminder scheduler." default:"1"`
	Tick    TickCmd    `cmd:"" help:"Run a single scheduler tick now and exit."`
	Migrate MigrateCmd `cmd:"" help:"Create or upgrade the database schema."`
}

func main() {
	kctx := kong.Parse(&CLI,
		kong.Name("habitline"),
		kong.Description("Habit reminders over Telegram"),
		kong.UsageOnError(),
		kong.Vars{"version": "v0.1.0"},
	)

	cfg, err := config.Load(CLI.Config)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	logger := logx.New(logx.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, File: cfg.Log.File})
	if err := kctx.Run(&appContext{cfg: cfg, log: logger}); err != nil {
		logger.Fatal().Err(err).Str("command", kctx.Command()).Msg("command failed")
	}
}
