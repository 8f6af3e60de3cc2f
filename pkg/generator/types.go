package generator

import (
	"github.com/shouni/gemini-material-kit/pkg/domain"
)

const (
	// 呼び出し種別ごとの試行予算。単画像（解析・テクスチャ生成）と
	// 2画像合成でモデル側の拒否率が違うため別に持ちます。
	DefaultSingleImageBudget = 5
	DefaultCompositeBudget   = 3

	// recitation 再試行時のソースクロップ率: 0.45 から 0.10 ずつ狭め、下限 0.20
	InitialCropFraction = 0.45
	CropFractionStep    = 0.10
	CropFractionFloor   = 0.20
)

// Request は1回の論理的なモデル呼び出し要求です。再試行のたびに
// RetryPolicy がこの値を変異させたコピーを作ります。
type Request struct {
	// Stage は進捗通知に載せる論理段階名（"describe-material" など）です。
	Stage       string
	Prompt      string
	Images      []domain.ImagePayload
	AspectRatio string
}

// Progress は再試行中の進捗通知です。次の試行が始まる前に放出されることだけを
// 保証します（それ以上の順序保証はありません）。
type Progress struct {
	Stage   string
	Attempt int
	Outcome domain.Classification
	Message string
}
