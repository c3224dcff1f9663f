package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"threadpool/internal/logger"
	"threadpool/internal/scenario"
)

// Bench はプリセットまたは設定ファイルのベンチマークを実行するコマンド
func Bench() *cobra.Command {
	v := newViper()
	c := &cobra.Command{
		Use:   "bench",
		Short: "Run a bench scenario against a fresh pool",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := buildBenchConfig(v)
			if err != nil {
				return err
			}
			return runBench(cmd, cfg, v.GetBool("json"))
		},
	}
	c.Flags().String("config", "", "設定ファイルパス (YAML/JSON)")
	c.Flags().String("preset", "counter", "プリセット名")
	c.Flags().Int("workers", 0, "ワーカー数")
	c.Flags().Int("jobs", 0, "ジョブ数")
	c.Flags().Int("submitters", 0, "投入ゴルーチン数")
	c.Flags().Bool("json", false, "結果をJSONで出力")
	c.Flags().String("log-level", "info", "ログレベル (debug, info, warn, error)")
	bindFlags(v, c, "config", "preset", "workers", "jobs", "submitters", "json", "log-level")
	return c
}

// buildBenchConfig はシナリオ設定を構築する
// 優先順位: 設定ファイル > プリセット、フラグは常に上書きする
func buildBenchConfig(v *viper.Viper) (scenario.Config, error) {
	var cfg scenario.Config

	if v.GetString("config") != "" {
		fileConfig, err := loadConfig(v)
		if err != nil {
			return cfg, err
		}
		if v.IsSet("log-level") {
			fileConfig.Log.Level = v.GetString("log-level")
		}
		if err := fileConfig.Validate(); err != nil {
			return cfg, fmt.Errorf("設定検証エラー: %w", err)
		}
		if _, err := setupLogger(fileConfig); err != nil {
			return cfg, err
		}
		cfg, err = fileConfig.ToScenarioConfig()
		if err != nil {
			return cfg, fmt.Errorf("設定変換エラー: %w", err)
		}
	} else {
		name := v.GetString("preset")
		preset, ok := scenario.GetPreset(name)
		if !ok {
			return cfg, fmt.Errorf("不明なプリセット: %s (利用可能: %v)", name, scenario.ListPresets())
		}
		cfg = preset

		level, err := logger.ParseLevel(v.GetString("log-level"))
		if err != nil {
			return cfg, err
		}
		logger.SetDefault(logger.New(os.Stdout, level))
	}

	// フラグでオーバーライド
	if n := v.GetInt("workers"); n > 0 {
		cfg.Workers = n
	}
	if v.IsSet("jobs") {
		cfg.Jobs = v.GetInt("jobs")
	}
	if n := v.GetInt("submitters"); n > 0 {
		cfg.Submitters = n
	}

	return cfg, cfg.Validate()
}

// runBench はシナリオを実行してレポートを出力する
func runBench(cmd *cobra.Command, cfg scenario.Config, asJSON bool) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// シグナルハンドリング
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	go func() {
		select {
		case <-sigCh:
			logger.Info("", "中断シグナルを受信、投入を打ち切ります...")
			cancel()
		case <-ctx.Done():
		}
	}()

	engine := scenario.New(cfg)
	result, err := engine.Run(ctx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}
	fmt.Fprintln(out, result.Report())
	return nil
}
