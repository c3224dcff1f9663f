// Package scenario は worker プールのベンチマークシナリオ実行機能を提供する。
//
// シナリオエンジンは新しいプールを作成し、設定された数のジョブを
// 複数の投入ゴルーチンから送り込み、プールを停止して結果を集計する。
//
// # 機能
//
// - シナリオ定義と実行
// - 定義済みプリセットシナリオ
// - 実行結果のレポート生成
//
// # プリセットシナリオ
//
// - counter: 4ワーカーで4ジョブ、全件実行の確認
// - serial: 1ワーカーで50msのジョブを2件、直列実行の確認
// - burst: 2ワーカーで100ジョブ
// - idle: 3ワーカー、ジョブなしで即停止
// - stress: 8ワーカー、4投入元から大量のジョブ
// - faulty: 一定間隔でpanicするジョブを混ぜる
//
// # 使用例
//
//	config := scenario.BurstScenario()
//	engine := scenario.New(config)
//	result, err := engine.Run(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(result.Report())
package scenario
