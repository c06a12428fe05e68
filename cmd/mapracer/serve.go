package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/marmat/mapracer/pkg/config"
	"github.com/marmat/mapracer/pkg/ingress"
	"github.com/marmat/mapracer/pkg/resolver"
	"github.com/marmat/mapracer/pkg/session"

	"github.com/rs/zerolog/log"
)

func serveCommand(configs []string) error {
	cfg, err := config.Process(configs)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	server := cfg.Server
	game := server.Game

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	locations := resolver.Passthrough{
		Delay: time.Duration(server.Resolver.DelayMillis) * time.Millisecond,
	}

	controller := session.NewController(locations, session.Options{
		MinPlayers:       game.MinPlayers,
		CountdownSeconds: game.CountdownSeconds,
		ScoresDuration:   time.Duration(game.ScoresSeconds) * time.Second,
		WinThreshold:     game.WinThresholdMeters,
		ElapsedInterval:  time.Duration(game.ElapsedTickMillis) * time.Millisecond,
	})
	transport := ingress.NewWSIngress(controller)
	controller.SetTransport(transport)

	go controller.Run(ctx)

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	go func() {
		<-interrupt
		log.Info().Msg("shutting down")
		cancel()
	}()

	addr := fmt.Sprintf("%s:%d", server.Ingress.Host, server.Ingress.Port)
	return transport.Serve(ctx, addr)
}
