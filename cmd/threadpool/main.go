// Package main is the entry point for the threadpool command.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"threadpool/internal/config"
	"threadpool/internal/logger"
	"threadpool/internal/scenario"
)

var (
	version = "dev"
)

func main() {
	root := &cobra.Command{
		Use:           "threadpool",
		Short:         "Fixed-size worker pool with a demo connection server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(Serve())
	root.AddCommand(Bench())
	root.AddCommand(Load())
	root.AddCommand(Presets())
	root.AddCommand(Version())

	if err := root.Execute(); err != nil {
		logger.Error("", "%v", err)
		os.Exit(1)
	}
}

// newViper はTHREADPOOL_ 接頭辞の環境変数を読むviperを作成する
func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("THREADPOOL")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return v
}

// bindFlags はコマンドのフラグをviperへ結びつける
func bindFlags(v *viper.Viper, cmd *cobra.Command, names ...string) {
	for _, name := range names {
		if err := v.BindPFlag(name, cmd.Flags().Lookup(name)); err != nil {
			panic(fmt.Sprintf("bind flag %q: %v", name, err))
		}
	}
}

// loadConfig は設定ファイルを読み込む。指定がなければデフォルト値
func loadConfig(v *viper.Viper) (*config.FileConfig, error) {
	path := v.GetString("config")
	if path == "" {
		return config.DefaultFileConfig(), nil
	}

	cfg, err := config.LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("設定ファイル読み込みエラー: %w", err)
	}
	return cfg, nil
}

// setupLogger は設定のログレベルでデフォルトロガーを差し替える
func setupLogger(cfg *config.FileConfig) (*logger.Logger, error) {
	level, err := cfg.LogLevel()
	if err != nil {
		return nil, err
	}
	log := logger.New(os.Stdout, level)
	logger.SetDefault(log)
	return log, nil
}

// Presets はプリセット一覧コマンド
func Presets() *cobra.Command {
	return &cobra.Command{
		Use:   "presets",
		Short: "List bench presets",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "利用可能なプリセット:")
			fmt.Fprintln(out)
			for _, name := range scenario.ListPresets() {
				p, _ := scenario.GetPreset(name)
				fmt.Fprintf(out, "  %-10s %s\n", p.Name, p.Description)
			}
			fmt.Fprintln(out)
			fmt.Fprintln(out, "使用例: threadpool bench --preset burst")
		},
	}
}

// Version はバージョン表示コマンド
func Version() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "threadpool version %s\n", version)
		},
	}
}
