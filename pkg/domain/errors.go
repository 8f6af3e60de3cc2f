package domain

import "fmt"

// RecitationError は、類似性を理由とする拒否が試行予算を使い切った終端エラーです。
// Attempts には実際に行った試行回数が入ります。
type RecitationError struct {
	Attempts int
}

func (e *RecitationError) Error() string {
	return fmt.Sprintf("類似性によりモデルが生成を拒否しました（%d回試行）。入力画像を変えるか、指示をより具体的にしてください", e.Attempts)
}

// NoContentError は、通信は成功したが期待したパート（text / image）が
// 応答に含まれていなかったことを示します。オーケストレーター内では再試行しません。
type NoContentError struct {
	Kind string
}

func (e *NoContentError) Error() string {
	return fmt.Sprintf("応答に %s パートが含まれていませんでした", e.Kind)
}

// TransportError は、ネットワークまたはパース失敗が予算内で回復しなかった終端エラーです。
type TransportError struct {
	Attempts int
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("通信エラーが解消しませんでした（%d回試行）: %v", e.Attempts, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ConfigError は認証情報などの設定不備を示します。再試行せず即時に失敗します。
type ConfigError struct {
	Key string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("設定が不足しています: %s", e.Key)
}
