package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
	"github.com/mandelsoft/vfs/pkg/osfs"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"

	"github.com/khonsulabs/sqlx-simple-migrator/cli"
)

const version = "0.1.0"

func main() {
	stderr := colorable.NewColorable(os.Stderr)

	logLevel := &slog.LevelVar{}
	logLevel.Set(slog.LevelInfo)
	logger := slog.New(
		tint.NewHandler(stderr, &tint.Options{
			Level:      logLevel,
			NoColor:    !isatty.IsTerminal(os.Stderr.Fd()),
			TimeFormat: "2006-01-02 15:04:05.000",
		}),
	)
	slog.SetDefault(logger)

	c, err := cli.New(version)
	if err != nil {
		logger.Error(err.Error())
		os.Exit(1)
	}

	if err = c.Parse(os.Args[1:]); err != nil {
		logger.Error(err.Error())
		os.Exit(1)
	}
	logLevel.Set(c.Log.Level)

	appCtx := &cli.Context{
		Ctx:     context.Background(),
		FS:      osfs.New(),
		Logger:  logger,
		Stdout:  colorable.NewColorable(os.Stdout),
		Stderr:  stderr,
		TimeNow: time.Now,
	}
	if err = c.Execute(appCtx); err != nil {
		logger.Error(err.Error())
		os.Exit(1)
	}
}
