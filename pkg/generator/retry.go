package generator

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/shouni/gemini-material-kit/pkg/compositor"
	"github.com/shouni/gemini-material-kit/pkg/domain"
	"github.com/shouni/gemini-material-kit/pkg/imgutil"
)

// attachNonce は毎回の呼び出しに一意性トークン（ランダム値+タイムスタンプ）を
// 付けます。プロバイダ側の重複検知が誤発火するのを抑えるためです。
func attachNonce(prompt string) string {
	return fmt.Sprintf("%s [req:%s-%d]", prompt, uuid.NewString()[:8], time.Now().UnixNano())
}

// saltPrompt は拒否後の再送に向けて追加の塩トークンを足します。
func saltPrompt(prompt string, attempt int) string {
	return fmt.Sprintf("%s [alt%d:%s]", prompt, attempt, uuid.NewString()[:8])
}

// PromptSaltPolicy はプロンプトへの塩追加だけでリクエストを変異させます。
// 2画像合成呼び出しの既定戦略です。
type PromptSaltPolicy struct {
	Budget int
}

func (p *PromptSaltPolicy) MaxAttempts() int {
	if p.Budget <= 0 {
		return DefaultCompositeBudget
	}
	return p.Budget
}

func (p *PromptSaltPolicy) OnRejected(attempt int, req Request) Request {
	req.Prompt = saltPrompt(req.Prompt, attempt)
	return req
}

// NarrowingCropPolicy は塩追加に加えて、ソース画像のクロップ率を段階的に
// 狭めます（0.45 → 0.35 → 0.25、下限 0.20）。クロップが小さく判別しにくい
// ほど類似性拒否を踏みにくい、という観察に基づくテクスチャ生成段階の戦略です。
type NarrowingCropPolicy struct {
	source   *imgutil.ImageBuffer
	center   domain.Point
	budget   int
	fraction float64
	// imageIndex は Request.Images の中で差し替えるクロップ画像の位置です。
	imageIndex int
}

// NewNarrowingCropPolicy はソース画像とクロップ中心を束ねた戦略を作ります。
func NewNarrowingCropPolicy(source *imgutil.ImageBuffer, center domain.Point, budget int) (*NarrowingCropPolicy, error) {
	if source == nil {
		return nil, fmt.Errorf("source is required")
	}
	if budget <= 0 {
		budget = DefaultSingleImageBudget
	}
	return &NarrowingCropPolicy{
		source:   source,
		center:   center,
		budget:   budget,
		fraction: InitialCropFraction,
	}, nil
}

func (p *NarrowingCropPolicy) MaxAttempts() int {
	return p.budget
}

// Fraction は現在のクロップ率を返します。
func (p *NarrowingCropPolicy) Fraction() float64 {
	return p.fraction
}

// CropPayload は現在のクロップ率でソースを切り出した PNG ペイロードを返します。
// 初回リクエストの画像組み立てにも、拒否後の差し替えにも使います。
func (p *NarrowingCropPolicy) CropPayload() (*domain.ImagePayload, error) {
	cropped, err := compositor.CropSquareAroundPoint(p.source, p.center, p.fraction)
	if err != nil {
		return nil, fmt.Errorf("ソースクロップ失敗: %w", err)
	}
	data, err := imgutil.EncodePNG(cropped)
	if err != nil {
		return nil, err
	}
	return &domain.ImagePayload{Data: data, MimeType: "image/png"}, nil
}

func (p *NarrowingCropPolicy) OnRejected(attempt int, req Request) Request {
	req.Prompt = saltPrompt(req.Prompt, attempt)

	next := p.fraction - CropFractionStep
	if next < CropFractionFloor {
		next = CropFractionFloor
	}
	p.fraction = next

	payload, err := p.CropPayload()
	if err != nil || payload == nil {
		// クロップに失敗したら画像は前回のまま、塩だけで再送する
		return req
	}
	if p.imageIndex < len(req.Images) {
		images := make([]domain.ImagePayload, len(req.Images))
		copy(images, req.Images)
		images[p.imageIndex] = *payload
		req.Images = images
	}
	return req
}
