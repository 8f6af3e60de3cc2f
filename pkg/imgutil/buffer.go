package imgutil

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/gif"
	"image/jpeg"
	"image/png"
)

// ImageBuffer は幅・高さ・ピクセル列を明示的に保持する純粋な画像値です。
// ピクセルは NRGBA 順（R,G,B,A）で、ストライドは常に 4*Width です。
// すべての変換はこの値に対する純粋関数として実装します。
type ImageBuffer struct {
	Width  int
	Height int
	Pix    []uint8
}

// NewBuffer は完全に透明な ImageBuffer を生成します。
func NewBuffer(width, height int) (*ImageBuffer, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("不正な画像サイズです: %dx%d", width, height)
	}
	return &ImageBuffer{
		Width:  width,
		Height: height,
		Pix:    make([]uint8, 4*width*height),
	}, nil
}

// Decode は画像バイナリ（PNG, JPEG, GIF）を ImageBuffer にデコードします。
func Decode(data []byte) (*ImageBuffer, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("画像デコード失敗: %w", err)
	}
	return FromImage(img), nil
}

// FromImage は任意の image.Image を ImageBuffer に変換します。
func FromImage(img image.Image) *ImageBuffer {
	b := img.Bounds()
	nrgba := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(nrgba, nrgba.Bounds(), img, b.Min, draw.Src)
	return &ImageBuffer{Width: b.Dx(), Height: b.Dy(), Pix: nrgba.Pix}
}

// NRGBA は同じピクセル列を共有する *image.NRGBA ビューを返します。
// 返り値への描画はバッファ本体に反映されます。
func (b *ImageBuffer) NRGBA() *image.NRGBA {
	return &image.NRGBA{
		Pix:    b.Pix,
		Stride: 4 * b.Width,
		Rect:   image.Rect(0, 0, b.Width, b.Height),
	}
}

// Clone はピクセル列を複製した独立なコピーを返します。
func (b *ImageBuffer) Clone() *ImageBuffer {
	pix := make([]uint8, len(b.Pix))
	copy(pix, b.Pix)
	return &ImageBuffer{Width: b.Width, Height: b.Height, Pix: pix}
}

func (b *ImageBuffer) offset(x, y int) int {
	return 4 * (y*b.Width + x)
}

// AlphaAt は (x, y) のアルファ値を返します。範囲外は 0 です。
func (b *ImageBuffer) AlphaAt(x, y int) uint8 {
	if x < 0 || x >= b.Width || y < 0 || y >= b.Height {
		return 0
	}
	return b.Pix[b.offset(x, y)+3]
}

// SetNRGBA は (x, y) に色を書き込みます。範囲外は無視します。
func (b *ImageBuffer) SetNRGBA(x, y int, c color.NRGBA) {
	if x < 0 || x >= b.Width || y < 0 || y >= b.Height {
		return
	}
	i := b.offset(x, y)
	b.Pix[i] = c.R
	b.Pix[i+1] = c.G
	b.Pix[i+2] = c.B
	b.Pix[i+3] = c.A
}

// NRGBAAt は (x, y) の色を返します。範囲外はゼロ値です。
func (b *ImageBuffer) NRGBAAt(x, y int) color.NRGBA {
	if x < 0 || x >= b.Width || y < 0 || y >= b.Height {
		return color.NRGBA{}
	}
	i := b.offset(x, y)
	return color.NRGBA{R: b.Pix[i], G: b.Pix[i+1], B: b.Pix[i+2], A: b.Pix[i+3]}
}

// EncodePNG は ImageBuffer を PNG バイナリにエンコードします。
func EncodePNG(b *ImageBuffer) ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := png.Encode(buf, b.NRGBA()); err != nil {
		return nil, fmt.Errorf("PNGエンコード失敗: %w", err)
	}
	return buf.Bytes(), nil
}

// EncodeJPEG は ImageBuffer を指定品質の JPEG バイナリにエンコードします。
// アルファは破棄されます。
func EncodeJPEG(b *ImageBuffer, quality int) ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := jpeg.Encode(buf, b.NRGBA(), &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("JPEGエンコード失敗: %w", err)
	}
	return buf.Bytes(), nil
}
