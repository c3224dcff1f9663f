package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"threadpool/internal/api"
	"threadpool/internal/config"
	"threadpool/internal/events"
	"threadpool/internal/metrics"
	"threadpool/internal/server"
	"threadpool/internal/worker"
)

// Serve はプールと接続サーバーを起動するコマンド
func Serve() *cobra.Command {
	v := newViper()
	c := &cobra.Command{
		Use:   "serve",
		Short: "Serve connections on a fixed-size pool",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(v)
			if err != nil {
				return err
			}
			applyServeOverrides(v, cfg)
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("設定検証エラー: %w", err)
			}
			return runServe(cfg)
		},
	}
	c.Flags().String("config", "", "設定ファイルパス (YAML/JSON)")
	c.Flags().Int("pool-size", 4, "プールのワーカー数")
	c.Flags().String("addr", "127.0.0.1:7878", "接続サーバーのアドレス")
	c.Flags().String("doc-root", "", "ページのディレクトリ（空で埋め込みページ）")
	c.Flags().Int("max-conns", 0, "受け付ける接続数の上限（0で無制限）")
	c.Flags().String("sleep", "5s", "/sleep の待機時間")
	c.Flags().Bool("api", true, "ステータスAPIを有効化")
	c.Flags().String("api-addr", "127.0.0.1:9000", "ステータスAPIのアドレス")
	c.Flags().String("log-level", "info", "ログレベル (debug, info, warn, error)")
	bindFlags(v, c, "config", "pool-size", "addr", "doc-root", "max-conns", "sleep", "api", "api-addr", "log-level")
	return c
}

// applyServeOverrides は明示されたフラグと環境変数で設定を上書きする
func applyServeOverrides(v *viper.Viper, cfg *config.FileConfig) {
	if v.IsSet("pool-size") {
		cfg.Pool.Size = v.GetInt("pool-size")
	}
	if v.IsSet("addr") {
		cfg.Server.Addr = v.GetString("addr")
	}
	if v.IsSet("doc-root") {
		cfg.Server.DocRoot = v.GetString("doc-root")
	}
	if v.IsSet("max-conns") {
		cfg.Server.MaxConns = v.GetInt("max-conns")
	}
	if v.IsSet("sleep") {
		cfg.Server.Sleep = v.GetString("sleep")
	}
	if v.IsSet("api") {
		cfg.API.Enabled = v.GetBool("api")
	}
	if v.IsSet("api-addr") {
		cfg.API.Addr = v.GetString("api-addr")
	}
	if v.IsSet("log-level") {
		cfg.Log.Level = v.GetString("log-level")
	}
}

// runServe はシグナルを受けるか接続数の上限に達するまで接続を処理する
func runServe(cfg *config.FileConfig) error {
	log, err := setupLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	serverConfig, err := cfg.ToServerConfig()
	if err != nil {
		return fmt.Errorf("設定変換エラー: %w", err)
	}
	apiConfig := cfg.ToAPIConfig()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New()
	if err := m.Register(reg); err != nil {
		return err
	}

	bus := events.NewBus()
	defer bus.Close()

	pool := worker.NewPoolWithConfig(worker.PoolConfig{
		Size:    cfg.Pool.Size,
		Logger:  log,
		Metrics: m,
		Events:  bus,
	})
	// 停止は投入済みの接続を処理し終えるまで待つ
	defer pool.Stop()

	srv, err := server.New(serverConfig, pool)
	if err != nil {
		return err
	}
	srv.SetLogger(log)
	srv.SetEventBus(bus)
	if err := srv.Listen(); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// シグナルハンドリング
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	go func() {
		select {
		case <-sigCh:
			log.Info("", "中断シグナルを受信、サーバーを終了中...")
			cancel()
		case <-ctx.Done():
		}
	}()

	apiDone := make(chan struct{})
	if apiConfig.Enabled {
		a := api.NewServer(apiConfig.Addr, pool)
		a.SetLogger(log)
		a.SetEventBus(bus)
		a.SetGatherer(reg)
		go func() {
			defer close(apiDone)
			if err := a.Start(ctx); err != nil {
				log.Error("api", "API server error: %v", err)
			}
		}()
	} else {
		close(apiDone)
	}

	log.Info("server", "Serving %s with %d workers", srv.Addr(), cfg.Pool.Size)

	err = srv.Serve(ctx)
	cancel()
	<-apiDone
	pool.Stop()

	log.Info("server", "Served %d of %d accepted connections before shutdown", srv.Served(), srv.Accepted())
	return err
}
