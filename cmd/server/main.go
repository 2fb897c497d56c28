package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/palemoky/sabotage-station/internal/config"
	"github.com/palemoky/sabotage-station/internal/logger"
	"github.com/palemoky/sabotage-station/internal/server"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "配置文件路径")
	flag.Parse()

	if err := config.LoadDotEnv(".env"); err != nil {
		log.Warn().Err(err).Msg("加载 .env 失败")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Warn().Err(err).Msg("加载配置文件失败，使用默认配置")
		cfg = config.Default()
	}
	logger.Init(cfg.Log.Level, cfg.Log.Pretty)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv, err := server.NewServer(ctx, cfg)
	if err != nil {
		log.Error().Err(err).Msg("创建服务器失败")
		os.Exit(1)
	}

	log.Info().Msg("🛰️ 空间站服务器启动中...")
	if err := srv.Run(ctx); err != nil {
		log.Error().Err(err).Msg("服务器异常退出")
		os.Exit(1)
	}
	log.Info().Msg("👋 再见")
}
