package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"

	"github.com/loadthegraphics/ltgbot/cmd/ltgbot/internal/commands"
)

var (
	version = "dev"
	cli     struct {
		Debug   bool `help:"Enable debug mode." env:"LTG_DEBUG"`
		Version kong.VersionFlag
		Bot     commands.BotCmd     `cmd:"" help:"Run the Telegram bot"`
		Sweep   commands.SweepCmd   `cmd:"" help:"Remove expired sessions from a persistent store once"`
		Migrate commands.MigrateCmd `cmd:"" help:"Apply PostgreSQL migrations"`
	}
)

func main() {
	// a missing .env is fine, settings may come from the environment or flags
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := kong.Parse(&cli,
		kong.Name("ltgbot"),
		kong.Description("Telegram bot that finds movie download links."),
		kong.Vars{
			"version": version,
		},
		kong.BindTo(ctx, (*context.Context)(nil)))
	err := cmd.Run(&commands.Globals{Debug: cli.Debug, Version: version})
	cmd.FatalIfErrorf(err)
}
