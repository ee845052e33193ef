package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"netpong/internal/config"
	"netpong/internal/netwrk"
	"netpong/internal/server"
)

var (
	configPath   = flag.String("config", "", "Path to the JSON config file, config.json by default")
	addr         = flag.String("addr", "", "Address to listen on in the format of host:port")
	transport    = flag.String("transport", "", "Transport to accept players on, tcp or ws")
	codec        = flag.String("codec", "", "Wire codec, json, msgpack or proto")
	winningScore = flag.Int("winning-score", -1, "Score that ends the match, 0 plays forever")
)

func realMain() error {
	flag.Parse()
	if err := config.LoadConfig(*configPath); err != nil {
		return err
	}
	cfg := config.Config

	// Apply overrides from flags
	if *addr != "" {
		cfg.Address = *addr
	}
	if *transport != "" {
		cfg.Transport = *transport
	}
	if *codec != "" {
		cfg.Codec = *codec
	}
	if *winningScore >= 0 {
		cfg.WinningScore = *winningScore
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	slog.SetLogLoggerLevel(slog.Level(cfg.LogLevel))

	opts, err := cfg.ServerOptions()
	if err != nil {
		return err
	}
	wire, err := cfg.WireCodec()
	if err != nil {
		return err
	}

	var onConnect func(netwrk.Conn)
	l, err := netwrk.Listen(cfg.Transport, cfg.Address, wire, func(c netwrk.Conn) { onConnect(c) })
	if err != nil {
		return err
	}
	srv := server.New(opts, func(fn func(netwrk.Conn)) netwrk.Listener {
		onConnect = fn
		return l
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := srv.Start(); err != nil {
		srv.Shutdown()
		return err
	}
	slog.Info("Server started",
		slog.String("address", cfg.Address),
		slog.String("transport", cfg.Transport),
		slog.String("codec", wire.Name()))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		select {
		case <-gctx.Done():
			slog.Info("Interrupted, shutting down")
		case <-srv.Done():
			slog.Info("Match over")
		}
		srv.Shutdown()
		return nil
	})
	return g.Wait()
}

func main() {
	err := realMain()
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
