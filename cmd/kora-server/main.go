package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/koragame/kora/internal/server"
)

// version is set by ldflags during build
var version = "dev"

type CLI struct {
	Version kong.VersionFlag `short:"v" help:"Show version"`
	Config  string           `default:"kora-server.hcl" help:"Path to HCL config file"`
	Addr    string           `help:"Override listen address (host:port)"`
	Debug   bool             `short:"d" help:"Enable debug logging"`
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("kora-server"),
		kong.Description("Relay server hosting Kora game rooms and their event logs"),
		kong.UsageOnError(),
		kong.Vars{
			"version": version,
		},
	)
	ctx.FatalIfErrorf(run(&cli))
}

func run(cli *CLI) error {
	cfg, err := server.LoadConfig(cli.Config)
	if err != nil {
		return err
	}

	logger := log.NewWithOptions(os.Stderr, log.Options{ReportTimestamp: true})
	zlevel := zerolog.InfoLevel
	if cli.Debug || cfg.Server.LogLevel == "debug" {
		logger.SetLevel(log.DebugLevel)
		zlevel = zerolog.DebugLevel
	}
	zlog := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(zlevel).
		With().
		Timestamp().
		Logger()

	clock := quartz.NewReal()
	rooms := server.NewRoomManager(zlog)
	runners := make([]*server.Runner, 0, len(cfg.Rooms))
	for _, rc := range cfg.Rooms {
		room, err := server.NewRoom(rc, clock, zlog)
		if err != nil {
			return fmt.Errorf("room %q: %w", rc.Name, err)
		}
		rooms.Register(room)
		runners = append(runners, server.NewRunner(room, clock, zlog))
	}

	addr := cli.Addr
	if addr == "" {
		addr = fmt.Sprintf("%s:%d", cfg.Server.Address, cfg.Server.Port)
	}
	srv := server.NewServer(addr, rooms, logger)

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(sigCtx)
	g.Go(srv.Start)
	for _, runner := range runners {
		g.Go(func() error {
			return runner.Run(gctx)
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		return srv.Stop()
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
