package domain

// ImageAsset はアップロードまたは取得された不変の画像ペイロードです。
// 再アップロード時は編集ではなく新しいインスタンスで置き換えます。
type ImageAsset struct {
	Data     []byte
	MimeType string
	Width    int
	Height   int
}

// Point は自然画像ピクセル空間上の座標です。
// 表示スケールに依存しないよう、保存前に必ず自然座標へ正規化します。
type Point struct {
	X float64
	Y float64
}

// ImagePayload はモデル呼び出しで授受する画像バイナリとMIMEタイプの組です。
type ImagePayload struct {
	Data     []byte
	MimeType string
}

// Classification はモデル応答の分類結果です。
type Classification int

const (
	ClassSucceeded Classification = iota
	// ClassRejected は類似性（recitation）を理由にモデルが生成を拒否した状態です。
	ClassRejected
	ClassTransportError
)

// String は分類のログ表示用の名前を返します。
func (c Classification) String() string {
	switch c {
	case ClassSucceeded:
		return "succeeded"
	case ClassRejected:
		return "rejected"
	case ClassTransportError:
		return "transport_error"
	default:
		return "unknown"
	}
}

// GenerationAttempt は1回の試行の一時的な記録です。呼び出し完了後は保持されません。
type GenerationAttempt struct {
	Index   int
	Prompt  string
	Outcome Classification
}

// TransferRequest は素材転写パイプラインへの入力一式です。
// マスクは PNG データURL（アルファのみが「選択」を意味する）で受け渡します。
// マスクが空でポイントが指定されている場合、ポイントから円形マスクを合成します。
type TransferRequest struct {
	Material      ImageAsset
	MaterialMask  string
	MaterialPoint *Point
	Target        ImageAsset
	TargetMask    string
	TargetPoint   *Point
	Instruction   string
}

// DebugImage は途中生成物（境界トレース、塗りつぶし、分離画像など）です。
type DebugImage struct {
	Label   string
	DataURL string
}

// TransferResult は最終成果物の束です。返却後、ライブラリ側は参照を保持しません。
type TransferResult struct {
	FinalImageURL string
	DebugImages   []DebugImage
	FinalPrompt   string
	// MaterialDescription / TargetDescription はAIによる領域の説明文です。
	MaterialDescription string
	TargetDescription   string
}
