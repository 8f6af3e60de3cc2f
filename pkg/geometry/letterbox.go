package geometry

import "math"

// Letterbox は "contain" フィットの結果です。保存はせず、
// (naturalW, naturalH, 枠サイズ) から毎回純粋関数で導出します。
// パディング（正方形化）とその逆クロップの両方がこの一つの計算を共有します。
type Letterbox struct {
	Scale     float64
	OffsetX   float64
	OffsetY   float64
	FitWidth  float64
	FitHeight float64
}

// ContainFit はアスペクト比を保ったまま枠内に収める配置を計算します。
// 画像の方が横長なら幅に合わせ（上下に余白）、そうでなければ高さに合わせます。
// フィット後の矩形は枠の中央に配置されます。
func ContainFit(naturalW, naturalH, boxW, boxH float64) Letterbox {
	imgAspect := naturalW / naturalH
	boxAspect := boxW / boxH

	var lb Letterbox
	if imgAspect > boxAspect {
		lb.Scale = boxW / naturalW
	} else {
		lb.Scale = boxH / naturalH
	}
	// contain フィットでフィット寸法が枠を超えることはない。浮動小数点の丸めで
	// 1ULP だけはみ出してオフセットが負になることがあるため、枠へ切り詰める。
	lb.FitWidth = math.Min(naturalW*lb.Scale, boxW)
	lb.FitHeight = math.Min(naturalH*lb.Scale, boxH)
	lb.OffsetX = (boxW - lb.FitWidth) / 2
	lb.OffsetY = (boxH - lb.FitHeight) / 2
	return lb
}
