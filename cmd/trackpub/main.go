// trackpub publishes position updates from a YAML file to the Tracelet
// real-time service and reports the batch outcome.
// Usage: go run ./cmd/trackpub --config configs/tracelet.yaml --positions positions.yaml
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	tracelet "github.com/tracelet/tracelet-go"
	"github.com/tracelet/tracelet-go/internal/config"
	"github.com/tracelet/tracelet-go/publish"
)

// positionFile is the on-disk layout of a positions file.
type positionFile struct {
	Positions []struct {
		Device string         `yaml:"device"`
		Lat    float64        `yaml:"lat"`
		Lon    float64        `yaml:"lon"`
		Name   string         `yaml:"name"`
		Color  string         `yaml:"color"`
		Model  string         `yaml:"model"`
		Data   map[string]any `yaml:"data"`
	} `yaml:"positions"`
}

func main() {
	configPath := flag.String("config", "configs/tracelet.yaml", "path to config file")
	positionsPath := flag.String("positions", "positions.yaml", "path to positions file")
	flag.Parse()

	fileCfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load config:", err)
		os.Exit(1)
	}

	level := slog.LevelInfo
	if fileCfg.Debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))

	clientCfg := fileCfg.ClientConfig()
	clientCfg.Logger = logger

	client, err := tracelet.NewClient(clientCfg)
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	inputs, err := loadPositions(*positionsPath)
	if err != nil {
		logger.Error("failed to load positions", "error", err)
		os.Exit(1)
	}
	if len(inputs) == 0 {
		logger.Error("no positions to publish", "file", *positionsPath)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	// SendBatch auto-connects the publisher side; no explicit Connect needed.
	res := client.SendBatch(ctx, inputs)
	defer client.Disconnect()

	logger.Info("batch complete", "sent", res.Sent, "failed", res.Failed)
	for _, e := range res.Errors {
		logger.Warn("publish failure", "detail", e)
	}
	if !res.Success {
		os.Exit(1)
	}
}

func loadPositions(path string) ([]publish.PositionInput, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read positions file: %w", err)
	}

	var file positionFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse positions yaml: %w", err)
	}

	inputs := make([]publish.PositionInput, 0, len(file.Positions))
	for _, p := range file.Positions {
		inputs = append(inputs, publish.PositionInput{
			DeviceID: p.Device,
			Lat:      p.Lat,
			Lon:      p.Lon,
			Name:     p.Name,
			Color:    p.Color,
			Model:    p.Model,
			Data:     p.Data,
		})
	}
	return inputs, nil
}
