package scenario

import (
	"sort"
	"time"
)

// CounterScenario は4ワーカーで4ジョブを実行する
func CounterScenario() Config {
	return Config{
		Name:        "counter",
		Description: "Four workers, four counter increments",
		Workers:     4,
		Jobs:        4,
		Submitters:  1,
	}
}

// SerialScenario は1ワーカーで直列実行されることを確認する
func SerialScenario() Config {
	return Config{
		Name:        "serial",
		Description: "Single worker serializes two 50ms jobs",
		Workers:     1,
		Jobs:        2,
		Submitters:  1,
		JobDuration: 50 * time.Millisecond,
	}
}

// BurstScenario は2ワーカーに100ジョブを投入する
func BurstScenario() Config {
	return Config{
		Name:        "burst",
		Description: "Two workers drain a burst of 100 jobs",
		Workers:     2,
		Jobs:        100,
		Submitters:  1,
	}
}

// IdleScenario はジョブなしで即停止する
func IdleScenario() Config {
	return Config{
		Name:        "idle",
		Description: "Three workers stopped with nothing submitted",
		Workers:     3,
		Jobs:        0,
		Submitters:  1,
	}
}

// StressScenario は高負荷シナリオを返す
func StressScenario() Config {
	return Config{
		Name:        "stress",
		Description: "Eight workers, four concurrent submitters, 100k jobs",
		Workers:     8,
		Jobs:        100000,
		Submitters:  4,
	}
}

// FaultyScenario は10件に1件panicするジョブを混ぜる
func FaultyScenario() Config {
	return Config{
		Name:        "faulty",
		Description: "Every tenth job panics; workers must survive",
		Workers:     4,
		Jobs:        1000,
		Submitters:  2,
		JobDuration: 100 * time.Microsecond,
		PanicEvery:  10,
	}
}

var presets = map[string]func() Config{
	"counter": CounterScenario,
	"serial":  SerialScenario,
	"burst":   BurstScenario,
	"idle":    IdleScenario,
	"stress":  StressScenario,
	"faulty":  FaultyScenario,
}

// GetPreset は名前からプリセットシナリオを取得する
func GetPreset(name string) (Config, bool) {
	if fn, ok := presets[name]; ok {
		return fn(), true
	}
	return Config{}, false
}

// ListPresets は利用可能なプリセット名を返す
func ListPresets() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
