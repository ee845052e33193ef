package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"netpong/internal/pong"
	"netpong/internal/protocol"
	"netpong/internal/server"
)

var Config = Default()

type Configuration struct {
	LogLevel  int    `json:"logLevel"`
	Address   string `json:"address"`
	Transport string `json:"transport"`
	Codec     string `json:"codec"`

	WorldWidth        int    `json:"worldWidth"`
	WorldHeight       int    `json:"worldHeight"`
	TickRate          int    `json:"tickRate"`
	Fps               int    `json:"fps"`
	PingIntervalMs    int    `json:"pingIntervalMs"`
	HandshakePings    int    `json:"handshakePings"`
	SnapshotInterval  int    `json:"snapshotInterval"`
	WinningScore      int    `json:"winningScore"`
	MaxCollisionSteps int    `json:"maxCollisionSteps"`
	Seed              uint64 `json:"seed"`

	PlayerName string `json:"playerName"`
}

func Default() Configuration {
	return Configuration{
		LogLevel:          int(slog.LevelInfo),
		Address:           "127.0.0.1:42069",
		Transport:         "tcp",
		Codec:             protocol.JSON.Name(),
		WorldWidth:        1024,
		WorldHeight:       768,
		TickRate:          60,
		Fps:               60,
		PingIntervalMs:    1000,
		HandshakePings:    10,
		SnapshotInterval:  0,
		WinningScore:      0,
		MaxCollisionSteps: 16,
		PlayerName:        "player",
	}
}

// LoadConfig reads the JSON file at path, config.json when empty, on top of
// the defaults. A missing or unreadable file leaves the defaults in place.
func LoadConfig(path string) error {
	if path == "" {
		path = "config.json"
	}
	c := Default()

	cf, err := os.ReadFile(path)
	if err != nil {
		slog.Info("failed to open config at path provided, using default config instead", slog.String("path", path))
		Config = c
		return nil
	}

	if err := json.Unmarshal(cf, &c); err != nil {
		slog.Info("failed to read configuration, using default config instead...", slog.Any("error", err))
		Config = Default()
		return nil
	}
	if err := c.Validate(); err != nil {
		return fmt.Errorf("config %s: %w", path, err)
	}

	Config = c
	return nil
}

func (c Configuration) Validate() error {
	var errs []error
	if _, err := pong.NewWorld(c.WorldWidth, c.WorldHeight); err != nil {
		errs = append(errs, err)
	}
	if _, err := protocol.CodecByName(c.Codec); err != nil {
		errs = append(errs, err)
	}
	switch c.Transport {
	case "tcp", "ws":
	default:
		errs = append(errs, fmt.Errorf("unknown transport %q", c.Transport))
	}
	if c.Address == "" {
		errs = append(errs, errors.New("address is empty"))
	}
	if c.TickRate <= 0 {
		errs = append(errs, fmt.Errorf("tickRate must be positive, got %d", c.TickRate))
	}
	if c.Fps <= 0 {
		errs = append(errs, fmt.Errorf("fps must be positive, got %d", c.Fps))
	}
	if c.PingIntervalMs <= 0 {
		errs = append(errs, fmt.Errorf("pingIntervalMs must be positive, got %d", c.PingIntervalMs))
	}
	if c.HandshakePings < 1 {
		errs = append(errs, fmt.Errorf("handshakePings must be at least 1, got %d", c.HandshakePings))
	}
	if c.SnapshotInterval < 0 || c.WinningScore < 0 || c.MaxCollisionSteps < 0 {
		errs = append(errs, errors.New("snapshotInterval, winningScore and maxCollisionSteps must not be negative"))
	}
	if c.PlayerName == "" {
		errs = append(errs, errors.New("playerName is empty"))
	}
	return errors.Join(errs...)
}

func (c Configuration) World() (pong.World, error) {
	return pong.NewWorld(c.WorldWidth, c.WorldHeight)
}

func (c Configuration) ServerOptions() (server.Options, error) {
	w, err := c.World()
	if err != nil {
		return server.Options{}, err
	}
	opts := server.DefaultOptions(w)
	opts.Seed = c.Seed
	opts.TickRate = c.TickRate
	opts.PingInterval = time.Duration(c.PingIntervalMs) * time.Millisecond
	opts.HandshakePings = c.HandshakePings
	opts.SnapshotInterval = c.SnapshotInterval
	opts.WinningScore = c.WinningScore
	opts.MaxCollisionSteps = c.MaxCollisionSteps
	return opts, nil
}

func (c Configuration) WireCodec() (protocol.Codec, error) {
	return protocol.CodecByName(c.Codec)
}
