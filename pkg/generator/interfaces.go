package generator

import (
	"context"

	"github.com/shouni/go-gemini-client/pkg/gemini"
	"google.golang.org/genai"
)

// ModelClient はオーケストレーターが必要とする通信操作の部分集合です。
// go-gemini-client の gemini.GenerativeModel がこれを満たします。
type ModelClient interface {
	GenerateWithParts(ctx context.Context, model string, parts []*genai.Part, opts gemini.GenerateOptions) (*gemini.Response, error)
}

// RetryPolicy は拒否（recitation）分類時のリクエスト変異戦略です。
// プロンプトへの塩追加のみの実装と、ソースクロップを段階的に狭める実装の
// 2種類を呼び出し種別ごとに使い分けます。
type RetryPolicy interface {
	// MaxAttempts は有限の試行予算を返します。
	MaxAttempts() int
	// OnRejected は attempt 回目の拒否を受けて、変異後のリクエストを返します。
	OnRejected(attempt int, req Request) Request
}
