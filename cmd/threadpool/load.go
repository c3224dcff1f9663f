package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"threadpool/internal/client"
	"threadpool/internal/config"
)

// Load は接続サーバーへ負荷をかけるコマンド
func Load() *cobra.Command {
	v := newViper()
	c := &cobra.Command{
		Use:   "load",
		Short: "Send requests to a running connection server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(v)
			if err != nil {
				return err
			}
			applyLoadOverrides(v, cfg)
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("設定検証エラー: %w", err)
			}
			if _, err := setupLogger(cfg); err != nil {
				return err
			}
			clientConfig, err := cfg.ToClientConfig()
			if err != nil {
				return fmt.Errorf("設定変換エラー: %w", err)
			}
			return runLoad(cmd, clientConfig)
		},
	}
	c.Flags().String("config", "", "設定ファイルパス (YAML/JSON)")
	c.Flags().String("addr", "127.0.0.1:7878", "接続先アドレス")
	c.Flags().Uint64("requests", 1000, "リクエスト数")
	c.Flags().Int("workers", 4, "ワーカー数")
	c.Flags().Float64("sleep-ratio", 0, "/sleep の比率 (0.0-1.0)")
	c.Flags().Float64("not-found-ratio", 0, "存在しないパスの比率 (0.0-1.0)")
	c.Flags().String("timeout", "10s", "1リクエストのタイムアウト")
	c.Flags().String("log-level", "info", "ログレベル (debug, info, warn, error)")
	bindFlags(v, c, "config", "addr", "requests", "workers", "sleep-ratio", "not-found-ratio", "timeout", "log-level")
	return c
}

// applyLoadOverrides は明示されたフラグと環境変数で設定を上書きする
func applyLoadOverrides(v *viper.Viper, cfg *config.FileConfig) {
	if v.IsSet("addr") {
		cfg.Load.Addr = v.GetString("addr")
	}
	if v.IsSet("requests") {
		cfg.Load.Requests = v.GetUint64("requests")
	}
	if v.IsSet("workers") {
		cfg.Load.Workers = v.GetInt("workers")
	}
	if v.IsSet("sleep-ratio") {
		cfg.Load.SleepRatio = v.GetFloat64("sleep-ratio")
	}
	if v.IsSet("not-found-ratio") {
		cfg.Load.NotFoundRatio = v.GetFloat64("not-found-ratio")
	}
	if v.IsSet("timeout") {
		cfg.Load.Timeout = v.GetString("timeout")
	}
	if v.IsSet("log-level") {
		cfg.Log.Level = v.GetString("log-level")
	}
}

// runLoad は負荷生成を実行して結果を出力する
func runLoad(cmd *cobra.Command, cfg client.Config) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	go func() {
		select {
		case <-sigCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	c := client.New(cfg)
	snap := c.RunRequests(ctx, cfg.RequestsLimit)

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "====================================================")
	fmt.Fprintf(out, "Target:    %s\n", cfg.Addr)
	fmt.Fprintf(out, "Requests:  %d (success: %d, failed: %d)\n", snap.TotalJobs, snap.SuccessJobs, snap.FailedJobs)
	fmt.Fprintf(out, "RPS:       %.2f\n", snap.OverallJPS)
	fmt.Fprintf(out, "Latency:   avg %v, p99 %v\n",
		snap.AverageLatency.Round(time.Microsecond), snap.P99Latency.Round(time.Microsecond))
	fmt.Fprintln(out, "====================================================")
	return nil
}
