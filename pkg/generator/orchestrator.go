package generator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shouni/go-gemini-client/pkg/gemini"

	"github.com/shouni/gemini-material-kit/pkg/domain"
)

// 通信異常時の固定バックオフ。recitation 経路は変異済みリクエストで即時再送する。
const defaultTransportBackoff = time.Second

// Orchestrator は有限の試行予算の中でモデル呼び出しを駆動する状態機械です。
// Idle → Sending → {Succeeded, Rejected, TransportError} と遷移し、
// Rejected / TransportError は予算が尽きるまで Sending へ戻ります。
// 再試行はすべて内部で解決し、呼び出し元には最終結果だけを渡します。
type Orchestrator struct {
	client   ModelClient
	model    string
	backoff  time.Duration
	progress chan<- Progress
}

// Option は Orchestrator の構成オプションです。
type Option func(*Orchestrator)

// WithProgress は進捗通知の書き込み先チャネルを設定します。
// 受信側が追いついていない場合、通知は破棄されます（ブロックしません）。
func WithProgress(ch chan<- Progress) Option {
	return func(o *Orchestrator) { o.progress = ch }
}

// WithBackoff は通信異常時のバックオフ間隔を上書きします。
func WithBackoff(d time.Duration) Option {
	return func(o *Orchestrator) { o.backoff = d }
}

// New は依存関係を検証して Orchestrator を初期化します。
func New(client ModelClient, model string, opts ...Option) (*Orchestrator, error) {
	if client == nil {
		return nil, fmt.Errorf("client is required")
	}
	if model == "" {
		return nil, fmt.Errorf("model is required")
	}

	o := &Orchestrator{
		client:  client,
		model:   model,
		backoff: defaultTransportBackoff,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// GenerateImage は画像応答が得られるまで policy に従って試行を繰り返します。
// 戻り値は画像ペイロードと、成功した試行で実際に送信したプロンプト全文です。
func (o *Orchestrator) GenerateImage(ctx context.Context, req Request, policy RetryPolicy) (*domain.ImagePayload, string, error) {
	resp, prompt, err := o.run(ctx, req, policy)
	if err != nil {
		return nil, "", err
	}
	payload, err := ExtractImage(resp)
	if err != nil {
		// 内容欠落はオーケストレーター内では再試行しない
		return nil, "", err
	}
	return payload, prompt, nil
}

// GenerateText は解析系の呼び出しを行い、応答テキストを返します。
func (o *Orchestrator) GenerateText(ctx context.Context, req Request, policy RetryPolicy) (string, error) {
	resp, _, err := o.run(ctx, req, policy)
	if err != nil {
		return "", err
	}
	return ExtractText(resp)
}

// run が試行ループの本体です。各試行は直前の分類結果を見てから変異を決める
// ため、ループは逐次であり並行化しません。
func (o *Orchestrator) run(ctx context.Context, req Request, policy RetryPolicy) (*gemini.Response, string, error) {
	maxAttempts := policy.MaxAttempts()
	var lastTransportErr error

	// 試行記録は呼び出し1回ぶんの寿命しか持たない
	history := make([]domain.GenerationAttempt, 0, maxAttempts)

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		prompt := attachNonce(req.Prompt)
		parts := toParts(prompt, req.Images)

		opts := gemini.GenerateOptions{AspectRatio: req.AspectRatio}
		resp, err := o.client.GenerateWithParts(ctx, o.model, parts, opts)
		if err != nil {
			lastTransportErr = err
			history = append(history, domain.GenerationAttempt{Index: attempt, Prompt: prompt, Outcome: domain.ClassTransportError})
			slog.WarnContext(ctx, "モデル呼び出しが通信エラーになりました",
				"stage", req.Stage, "attempt", attempt, "error", err)
			o.emit(Progress{Stage: req.Stage, Attempt: attempt, Outcome: domain.ClassTransportError, Message: err.Error()})

			if attempt == maxAttempts {
				break
			}
			if err := sleepContext(ctx, o.backoff); err != nil {
				return nil, "", err
			}
			continue
		}

		class := Classify(resp)

		if class == domain.ClassTransportError {
			// 応答はあるが候補が空。パース異常として扱う
			lastTransportErr = fmt.Errorf("モデルから有効な候補が返りませんでした")
			history = append(history, domain.GenerationAttempt{Index: attempt, Prompt: prompt, Outcome: domain.ClassTransportError})
			o.emit(Progress{Stage: req.Stage, Attempt: attempt, Outcome: domain.ClassTransportError})

			if attempt == maxAttempts {
				break
			}
			if err := sleepContext(ctx, o.backoff); err != nil {
				return nil, "", err
			}
			continue
		}

		if class == domain.ClassRejected {
			slog.InfoContext(ctx, "類似性による拒否を検知、リクエストを変異して再送します",
				"stage", req.Stage, "attempt", attempt)
			history = append(history, domain.GenerationAttempt{Index: attempt, Prompt: prompt, Outcome: domain.ClassRejected})
			o.emit(Progress{Stage: req.Stage, Attempt: attempt, Outcome: domain.ClassRejected})

			if attempt == maxAttempts {
				return nil, "", &domain.RecitationError{Attempts: maxAttempts}
			}
			req = policy.OnRejected(attempt, req)
			continue
		}

		o.emit(Progress{Stage: req.Stage, Attempt: attempt, Outcome: domain.ClassSucceeded})
		if len(history) > 0 {
			slog.DebugContext(ctx, "リトライを経て生成に成功しました",
				"stage", req.Stage, "retries", len(history), "attempt", attempt)
		}
		return resp, prompt, nil
	}

	return nil, "", &domain.TransportError{Attempts: maxAttempts, Err: lastTransportErr}
}

func (o *Orchestrator) emit(p Progress) {
	if o.progress == nil {
		return
	}
	select {
	case o.progress <- p:
	default:
	}
}

// sleepContext はキャンセルに応答するバックオフ待機です。
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
