package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"netpong/internal/ansii"
	"netpong/internal/client"
	"netpong/internal/config"
	"netpong/internal/engine"
	"netpong/internal/netwrk"
	"netpong/internal/protocol"
	"netpong/internal/renderer"
	"netpong/internal/server"
)

const keyHold = 150 * time.Millisecond

var (
	configPath = flag.String("config", "", "Path to the JSON config file, config.json by default")
	addr       = flag.String("addr", "", "Host address in the format of host:port")
	transport  = flag.String("transport", "", "Transport to reach the host with, tcp or ws")
	codec      = flag.String("codec", "", "Wire codec, json, msgpack or proto")
	name       = flag.String("name", "", "Player name")
	host       = flag.Bool("host", false, "Host the match on -addr and play it from this terminal")
	logFile    = flag.String("log", "netpong.log", "File to write logs to, the terminal is used for the game")
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
	if *name != "" {
		cfg.PlayerName = *name
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	lf, err := os.OpenFile(*logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer lf.Close()
	slog.SetDefault(slog.New(slog.NewTextHandler(lf, &slog.HandlerOptions{Level: slog.Level(cfg.LogLevel)})))

	w, err := cfg.World()
	if err != nil {
		return err
	}
	wire, err := cfg.WireCodec()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		conn netwrk.Conn
		srv  *server.Server
	)
	if *host {
		srv, conn, err = hostAndPlay(ctx, cfg, wire)
		if err != nil {
			return err
		}
		defer srv.Shutdown()
		fmt.Printf("Hosting on %s, waiting for an opponent...\n", cfg.Address)
	} else {
		conn, err = netwrk.Dial(ctx, cfg.Transport, cfg.Address, wire)
		if err != nil {
			return fmt.Errorf("Sorry, failed to connect to %s: %w", cfg.Address, err)
		}
		fmt.Println("Connected, waiting for an opponent...")
	}

	started, err := client.Join(ctx, conn, cfg.PlayerName)
	if err != nil {
		conn.Close()
		return err
	}

	cols, rows, err := ansii.GetTermSize()
	if err != nil {
		conn.Close()
		return err
	}
	prev, err := ansii.MakeTermRaw()
	if err != nil {
		conn.Close()
		return fmt.Errorf("raw terminal: %w", err)
	}
	defer func() {
		os.Stdout.WriteString(string(ansii.Screen.ClearScreen) + string(ansii.Screen.PlaceCursor(1, 1)) + string(ansii.Screen.ShowCursor))
		ansii.RestoreTerm(prev)
	}()

	loop, err := engine.NewLoop(cfg.TickRate, cfg.Fps)
	if err != nil {
		conn.Close()
		return err
	}
	playCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	kb := renderer.NewKeyboard(keyHold)
	session := client.NewSession(conn, started, client.Options{
		World:             w,
		MaxCollisionSteps: cfg.MaxCollisionSteps,
		Executor:          loop,
		Keyboard:          kb,
		Renderer:          renderer.NewTerminal(os.Stdout, cols, rows),
		OnDisconnect:      cancel,
	})
	session.Start()
	defer session.Stop()

	// Reading stdin cannot be interrupted, so the keyboard stays outside the
	// group and only cancels it.
	go func() {
		if err := kb.Listen(playCtx, os.Stdin); err != nil && !errors.Is(err, renderer.ErrQuit) {
			slog.Warn("keyboard stopped", slog.Any("error", err))
		}
		cancel()
	}()

	g, gctx := errgroup.WithContext(playCtx)
	g.Go(func() error {
		if err := loop.Run(gctx, session); !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	if srv != nil {
		g.Go(func() error {
			select {
			case <-srv.Done():
				cancel()
			case <-gctx.Done():
			}
			return nil
		})
	}
	return g.Wait()
}

// hostAndPlay starts a server listening on the configured transport and
// joins it through an in-memory pipe.
func hostAndPlay(ctx context.Context, cfg config.Configuration, wire protocol.Codec) (*server.Server, netwrk.Conn, error) {
	opts, err := cfg.ServerOptions()
	if err != nil {
		return nil, nil, err
	}

	var onConnect func(netwrk.Conn)
	forward := func(c netwrk.Conn) { onConnect(c) }
	remote, err := netwrk.Listen(cfg.Transport, cfg.Address, wire, forward)
	if err != nil {
		return nil, nil, err
	}
	local := netwrk.NewPipeListener(wire, forward)

	srv := server.New(opts, func(fn func(netwrk.Conn)) netwrk.Listener {
		onConnect = fn
		return netwrk.Group{local, remote}
	})
	if err := srv.Start(); err != nil {
		srv.Shutdown()
		return nil, nil, err
	}

	conn, err := local.Dial(ctx)
	if err != nil {
		srv.Shutdown()
		return nil, nil, err
	}
	return srv, conn, nil
}

func main() {
	err := realMain()
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
