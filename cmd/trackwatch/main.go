// trackwatch connects to the Tracelet real-time service and streams
// classified events to the console.
// Usage: go run ./cmd/trackwatch --config configs/tracelet.yaml
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	tracelet "github.com/tracelet/tracelet-go"
	"github.com/tracelet/tracelet-go/connection"
	"github.com/tracelet/tracelet-go/dispatch"
	"github.com/tracelet/tracelet-go/internal/config"
	"github.com/tracelet/tracelet-go/internal/version"
)

func main() {
	configPath := flag.String("config", "configs/tracelet.yaml", "path to config file")
	verbose := flag.Bool("verbose", false, "print full frame JSON")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("trackwatch", version.String())
		return
	}

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

	topics, err := fileCfg.TopicList()
	if err != nil {
		logger.Error("invalid topic list", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal")
		cancel()
	}()

	sub := client.Subscriber()
	sub.OnLifecycle(connection.EventReconnecting, func(e connection.EventInfo) {
		logger.Warn("reconnecting", "attempt", e.Attempt, "delay", e.Delay)
	})
	sub.OnError(func(err error) {
		logger.Warn("dispatch error", "error", err)
	})
	sub.OnAny(func(m dispatch.Message) {
		if *verbose {
			pretty, _ := json.MarshalIndent(m.Payload, "", "  ")
			fmt.Printf("[%s] %s\n%s\n", m.ReceivedAt.Format(time.RFC3339), m.Kind, pretty)
			return
		}
		fmt.Printf("[%s] %s\n", m.ReceivedAt.Format(time.RFC3339), m.Kind)
	})

	if err := client.Connect(ctx, tracelet.ConnectOptions{SubscriberOnly: true}); err != nil {
		logger.Error("connect failed", "error", err)
		os.Exit(1)
	}

	subCtx, subCancel := context.WithTimeout(ctx, 30*time.Second)
	err = sub.Subscribe(subCtx, topics...)
	subCancel()
	if err != nil {
		logger.Error("subscribe failed", "error", err)
		client.Disconnect()
		os.Exit(1)
	}
	logger.Info("subscribed", "topics", sub.ActiveSubscriptions())

	<-ctx.Done()

	if err := client.Disconnect(); err != nil {
		logger.Warn("disconnect error", "error", err)
	}
	logger.Info("shutdown complete")
}
