package mask

import (
	"fmt"
	"image/color"
	"math"

	"github.com/shouni/gemini-material-kit/pkg/domain"
	"github.com/shouni/gemini-material-kit/pkg/imgutil"
)

// マーカーから合成する円の半径: 短辺の3%、下限10px
const (
	markerRadiusFloor = 10.0
	markerRadiusScale = 0.03
)

// マスクのアルファ以外のチャンネルは下流で解釈されない。塗り色は白固定。
var maskInk = color.NRGBA{R: 255, G: 255, B: 255, A: 255}

// Raster は元画像と同一寸法のアルファラスタです。非ゼロアルファが「選択」を
// 意味します。ブラシストロークの蓄積、またはマーカー1点からの円合成で作ります。
// ベクタのストローク履歴は持たないため、部分的なやり直しはできず、
// リセット手段は Clear による全消去のみです。
type Raster struct {
	buf  *imgutil.ImageBuffer
	last *domain.Point
}

// NewRaster は対象画像と同じ寸法の空のマスクを生成します。
func NewRaster(width, height int) (*Raster, error) {
	buf, err := imgutil.NewBuffer(width, height)
	if err != nil {
		return nil, fmt.Errorf("マスク生成失敗: %w", err)
	}
	return &Raster{buf: buf}, nil
}

// FromMarker はマーカー1点から円形マスクを一括合成します。
// 半径は max(10, 0.03 * min(width, height)) です。
func FromMarker(p domain.Point, width, height int) (*Raster, error) {
	r, err := NewRaster(width, height)
	if err != nil {
		return nil, err
	}
	radius := math.Max(markerRadiusFloor, markerRadiusScale*math.Min(float64(width), float64(height)))
	r.stampDisc(p.X, p.Y, radius)
	return r, nil
}

func (r *Raster) Width() int  { return r.buf.Width }
func (r *Raster) Height() int { return r.buf.Height }

// Buffer はマスクのピクセルバッファを返します。
func (r *Raster) Buffer() *imgutil.ImageBuffer { return r.buf }

// BeginStroke はストロークを開始し、最初の1点を打ちます。
// タップだけでも見えるマスクが残るよう、長さゼロの線分＝単独の点を描きます。
// diameter はラスタ空間の径（geometry.BrushDiameter で変換済みの値）です。
func (r *Raster) BeginStroke(p domain.Point, diameter float64) {
	r.stampDisc(p.X, p.Y, diameter/2)
	r.last = &domain.Point{X: p.X, Y: p.Y}
}

// ExtendStroke は直前の記録点から p まで丸キャップ・丸ジョイントの線分を描きます。
// BeginStroke 前に呼ばれた場合はストローク開始として扱います。
func (r *Raster) ExtendStroke(p domain.Point, diameter float64) {
	if r.last == nil {
		r.BeginStroke(p, diameter)
		return
	}
	r.stampSegment(*r.last, p, diameter/2)
	r.last = &domain.Point{X: p.X, Y: p.Y}
}

// EndStroke はポインタアップでストロークを閉じます。
func (r *Raster) EndStroke() {
	r.last = nil
}

// Commit は現在のラスタ内容を PNG データURL に直列化します。
func (r *Raster) Commit() (string, error) {
	data, err := imgutil.EncodePNG(r.buf)
	if err != nil {
		return "", fmt.Errorf("マスク直列化失敗: %w", err)
	}
	return imgutil.EncodeDataURL("image/png", data), nil
}

// Clear はラスタを全消去します。呼び出し元はマスク無し（nil 相当）として扱います。
func (r *Raster) Clear() {
	clear(r.buf.Pix)
	r.last = nil
}

// Empty はマスクに選択ピクセルが1つもないかを返します。
func (r *Raster) Empty() bool {
	for i := 3; i < len(r.buf.Pix); i += 4 {
		if r.buf.Pix[i] != 0 {
			return false
		}
	}
	return true
}

// stampDisc は中心 (cx, cy)、半径 radius の塗りつぶし円を打ちます。
func (r *Raster) stampDisc(cx, cy, radius float64) {
	if radius < 0.5 {
		radius = 0.5
	}
	minX := int(math.Floor(cx - radius))
	maxX := int(math.Ceil(cx + radius))
	minY := int(math.Floor(cy - radius))
	maxY := int(math.Ceil(cy + radius))
	r2 := radius * radius

	for y := minY; y <= maxY; y++ {
		for x := minX; x <= maxX; x++ {
			dx := float64(x) - cx
			dy := float64(y) - cy
			if dx*dx+dy*dy <= r2 {
				r.buf.SetNRGBA(x, y, maskInk)
			}
		}
	}
}

// stampSegment は2点間を円スタンプの連なりで埋めます。スタンプ間隔を
// 半径の半分以下にすることで、丸キャップ・丸ジョイントの線と同じ見た目になります。
func (r *Raster) stampSegment(from, to domain.Point, radius float64) {
	dx := to.X - from.X
	dy := to.Y - from.Y
	dist := math.Hypot(dx, dy)

	step := radius / 2
	if step < 0.5 {
		step = 0.5
	}
	steps := int(math.Ceil(dist/step)) + 1

	for i := 0; i <= steps; i++ {
		t := float64(i) / float64(steps)
		r.stampDisc(from.X+dx*t, from.Y+dy*t, radius)
	}
}

// Parse はデータURL のマスクをデコードし、対象画像との寸法一致を検証します。
// マスクは必ず元画像と同一ピクセル寸法でなければなりません（不変条件）。
func Parse(maskDataURL string, wantWidth, wantHeight int) (*imgutil.ImageBuffer, error) {
	_, data, err := imgutil.DecodeDataURL(maskDataURL)
	if err != nil {
		return nil, fmt.Errorf("マスクのデータURLが不正です: %w", err)
	}
	buf, err := imgutil.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("マスクのデコードに失敗しました: %w", err)
	}
	if buf.Width != wantWidth || buf.Height != wantHeight {
		return nil, fmt.Errorf("マスク寸法 %dx%d が画像寸法 %dx%d と一致しません",
			buf.Width, buf.Height, wantWidth, wantHeight)
	}
	return buf, nil
}

// Centroid は選択ピクセルの重心を返します。空のマスクでは画像中心を返します。
func (r *Raster) Centroid() domain.Point {
	return BufferCentroid(r.buf)
}

// BufferCentroid はマスクバッファの選択領域の重心を計算します。
func BufferCentroid(buf *imgutil.ImageBuffer) domain.Point {
	var sumX, sumY, n float64
	for y := 0; y < buf.Height; y++ {
		for x := 0; x < buf.Width; x++ {
			if buf.AlphaAt(x, y) > 0 {
				sumX += float64(x)
				sumY += float64(y)
				n++
			}
		}
	}
	if n == 0 {
		return domain.Point{X: float64(buf.Width) / 2, Y: float64(buf.Height) / 2}
	}
	return domain.Point{X: sumX / n, Y: sumY / n}
}
