package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/wfunc/connect4bot/command"
	"github.com/wfunc/connect4bot/config"
	"github.com/wfunc/connect4bot/discord"
	"github.com/wfunc/connect4bot/logger"
	"github.com/wfunc/connect4bot/monitor"
	"github.com/wfunc/connect4bot/persistence"
	"github.com/wfunc/connect4bot/registry"
	"github.com/wfunc/connect4bot/rpc"
	"github.com/wfunc/connect4bot/server"
	"github.com/wfunc/connect4bot/services"
	"github.com/wfunc/connect4bot/surface"
	"github.com/wfunc/connect4bot/timer"
)

var version = "dev"

type CLI struct {
	Version kong.VersionFlag `short:"v" help:"Show version"`
	Config  string           `short:"c" default:"." help:"Directory holding config.yaml"`

	Serve   ServeCmd   `cmd:"" default:"1" help:"Play in the built-in websocket chat"`
	Discord DiscordCmd `cmd:"" help:"Play in Discord channels"`
}

type ServeCmd struct {
	Addr string `help:"Websocket listen address (overrides server.http_address)"`
}

func (c *ServeCmd) Run(cli *CLI) error {
	cfg, err := loadConfig(cli.Config)
	if err != nil {
		return err
	}
	if c.Addr != "" {
		cfg.Server.HTTPAddress = c.Addr
	}
	return run(cfg, server.NewChatServer(cfg.Server.HTTPAddress))
}

type DiscordCmd struct {
	Token string `help:"Bot token (overrides CONNECT4_TOKEN)"`
}

func (c *DiscordCmd) Run(cli *CLI) error {
	cfg, err := loadConfig(cli.Config)
	if err != nil {
		return err
	}
	if c.Token != "" {
		cfg.Discord.Token = c.Token
	}
	bot, err := discord.New(cfg.Discord.Token)
	if err != nil {
		return err
	}
	return run(cfg, bot)
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("connect4bot"),
		kong.Description("Connect four for group chats"),
		kong.UsageOnError(),
		kong.Vars{
			"version": version,
		},
	)
	err := ctx.Run(&cli)
	ctx.FatalIfErrorf(err)
}

func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}
	logger.Init(cfg.Log.Level)
	return cfg, nil
}

// frontend is a chat surface that also feeds commands and reactions back in.
type frontend interface {
	surface.Surface
	SetHandler(h surface.Handler)
	Start(ctx context.Context) error
}

func run(cfg *config.Config, front frontend) error {
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := persistence.Open(cfg.Database)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	if db != nil {
		defer db.Close()
		logger.Log.Infof("Archiving finished games with the %s driver.", cfg.Database.Driver)
	}

	timers := timer.NewTimerManager(nil)
	defer timers.Stop()

	mon := monitor.NewMonitor("connect4", prometheus.NewRegistry())
	opts := []services.Option{
		services.WithMetrics(mon),
		services.WithSurfaceTimeout(cfg.Game.SurfaceTimeout),
	}
	if db != nil {
		opts = append(opts, services.WithDatabase(db))
	}
	svc := services.NewRoundService(registry.NewRegistry(timers, nil), front, opts...)
	front.SetHandler(command.NewDispatcher(cfg.Game.Prefix, svc))

	var rpcServer *rpc.Server
	if addr := cfg.Server.RPCAddress; addr != "" {
		if rpcServer, err = rpc.NewServer(addr, rpc.NewRoundsService(svc)); err != nil {
			return fmt.Errorf("start rpc server: %w", err)
		}
	}
	var health *rpc.HealthServer
	if addr := cfg.Server.HealthAddress; addr != "" {
		if health, err = rpc.NewHealthServer(addr); err != nil {
			if rpcServer != nil {
				rpcServer.Stop()
			}
			return fmt.Errorf("start health server: %w", err)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return front.Start(gctx) })
	if addr := cfg.Server.MetricsAddress; addr != "" {
		g.Go(func() error { return mon.Serve(gctx, addr) })
	}
	if rpcServer != nil {
		g.Go(func() error {
			go func() {
				<-gctx.Done()
				rpcServer.Stop()
			}()
			rpcServer.Start()
			return nil
		})
	}
	if health != nil {
		g.Go(func() error { return health.Serve(gctx) })
	}

	logger.Log.Infof("connect4bot %s started", version)
	err = g.Wait()
	logger.Log.Info("Shut down.")
	return err
}
