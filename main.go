package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/harvi220/trading-platform/config"
	"github.com/harvi220/trading-platform/domain"
	promclient "github.com/harvi220/trading-platform/infrastructure/prometheus"
	"github.com/harvi220/trading-platform/snapshot"
	"github.com/harvi220/trading-platform/usecase"
)

func main() {
	cfg := config.Load()

	repo, err := snapshot.NewRepository(cfg.SQLitePath)
	if err != nil {
		log.Fatalf("failed to open snapshot storage: %s", err)
	}
	pipeline := snapshot.NewService(repo)
	registry := usecase.NewReconcilerRegistry(pipeline, cfg.DepthPercents, cfg.RecordInterval)

	for _, symbol := range cfg.Symbols {
		for _, name := range cfg.Markets {
			market, err := domain.ParseMarket(name)
			if err != nil {
				log.Fatalf("bad market in config: %s", err)
			}
			if err := registry.Start(symbol, market); err != nil {
				log.Printf("failed to start reconciler for %s %s: %s", symbol, market, err)
			}
		}
	}

	go promclient.StartPromClientServer(cfg.MetricsAddr)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down")
	registry.StopAll()
	pipeline.Shutdown()
}
