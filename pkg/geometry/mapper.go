package geometry

import (
	"github.com/shouni/gemini-material-kit/pkg/domain"
)

// ブラシ径の表示単位での可動域。マッピング前にこの範囲へ丸めます。
const (
	MinBrushSize = 5
	MaxBrushSize = 50
)

// Rect は表示要素のバウンディングボックス（クライアント座標系）です。
type Rect struct {
	X      float64
	Y      float64
	Width  float64
	Height float64
}

// DisplayToNatural はポインタイベントのクライアント座標を自然画像ピクセル座標へ
// 変換します。ポインタが要素の外にある場合は nil を返します。
// 画像は "contain" フィットで描画されている前提で、その描画と厳密な逆写像に
// なっていないとマスクやマーカーが指した位置からずれます。
func DisplayToNatural(rect Rect, naturalW, naturalH float64, clientX, clientY float64) *domain.Point {
	if naturalW <= 0 || naturalH <= 0 || rect.Width <= 0 || rect.Height <= 0 {
		return nil
	}

	localX := clientX - rect.X
	localY := clientY - rect.Y
	// 逆写像の丸め誤差（ULP 程度）で端の点が境界のわずか外に出ることがある。
	// その分だけ許容し、実質的に要素外のポインタだけを弾く。
	const edgeSlack = 1e-9
	if localX < -edgeSlack || localX > rect.Width+edgeSlack ||
		localY < -edgeSlack || localY > rect.Height+edgeSlack {
		return nil
	}

	lb := ContainFit(naturalW, naturalH, rect.Width, rect.Height)
	px := (localX - lb.OffsetX) / lb.Scale
	py := (localY - lb.OffsetY) / lb.Scale

	// 余白（レターボックス帯）上のポインタは画像端へ丸める
	px = clampFloat(px, 0, naturalW)
	py = clampFloat(py, 0, naturalH)

	return &domain.Point{X: px, Y: py}
}

// NaturalToDisplay は自然座標の点をオーバーレイ描画用のクライアント座標へ戻します。
// DisplayToNatural の逆写像です。
func NaturalToDisplay(rect Rect, naturalW, naturalH float64, p domain.Point) (float64, float64) {
	lb := ContainFit(naturalW, naturalH, rect.Width, rect.Height)
	x := rect.X + lb.OffsetX + p.X*lb.Scale
	y := rect.Y + lb.OffsetY + p.Y*lb.Scale
	return x, y
}

// BrushDiameter は表示単位のブラシ径をラスタ空間の径へ変換します。
// 表示径を 5〜50 に丸めたうえで naturalW / fitWidth 倍します。これにより
// ズームやコンテナサイズによらず、画面上の見た目と一致する太さで描けます。
func BrushDiameter(displayDiameter float64, rect Rect, naturalW, naturalH float64) float64 {
	d := clampFloat(displayDiameter, MinBrushSize, MaxBrushSize)
	lb := ContainFit(naturalW, naturalH, rect.Width, rect.Height)
	if lb.FitWidth <= 0 {
		return d
	}
	return d * naturalW / lb.FitWidth
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
