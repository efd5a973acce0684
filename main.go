package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"zkpepe_soft/blockchain"
	"zkpepe_soft/claimer"
	"zkpepe_soft/config"
	"zkpepe_soft/fails"
	"zkpepe_soft/logger"
	"zkpepe_soft/wallet"
)

const banner = `
=====================================
  zkSync Pepe airdrop claimer
=====================================`

func main() {
	fmt.Println(banner)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Error loading config: ", err)
	}

	logg, err := logger.New(cfg.LogLevel)
	if err != nil {
		log.Fatal("Error creating logger: ", err)
	}
	defer logg.Sync() //nolint:errcheck

	chain, err := blockchain.NewClient(cfg, logg)
	if err != nil {
		logg.Fatal("Error creating chain client", zap.Error(err))
	}

	wallets, err := wallet.Load(cfg, chain, logg)
	if err != nil {
		logg.Fatal("Error loading wallets", zap.Error(err))
	}

	sessions := make([]claimer.Session, 0, len(wallets))
	for _, w := range wallets {
		sessions = append(sessions, w)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		// a second signal kills the process
		stop()
	}()

	claimer.New(cfg, fails.NewRecorder(cfg.FailsDir), logg).Run(ctx, sessions)
}
