package compositor

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"

	xdraw "golang.org/x/image/draw"

	"github.com/shouni/gemini-material-kit/pkg/domain"
	"github.com/shouni/gemini-material-kit/pkg/geometry"
	"github.com/shouni/gemini-material-kit/pkg/imgutil"
)

// CropSquareAroundPoint の切り出し率の可動域
const (
	MinCropFraction = 0.1
	MaxCropFraction = 1.0
)

// PadToSquare は画像をアスペクト比を保ったまま targetDim×targetDim に収め、
// 中央配置して余白を fill で塗ります。モデルが要求する正方形入力への正規化です。
// フィット方向の判定は geometry.ContainFit に一元化されています。
func PadToSquare(src *imgutil.ImageBuffer, targetDim int, fill color.NRGBA) (*imgutil.ImageBuffer, error) {
	if targetDim <= 0 {
		return nil, fmt.Errorf("不正なターゲット寸法です: %d", targetDim)
	}

	dst, err := imgutil.NewBuffer(targetDim, targetDim)
	if err != nil {
		return nil, err
	}
	draw.Draw(dst.NRGBA(), dst.NRGBA().Bounds(), image.NewUniform(fill), image.Point{}, draw.Src)

	lb := geometry.ContainFit(float64(src.Width), float64(src.Height), float64(targetDim), float64(targetDim))
	fitRect := image.Rect(
		int(math.Round(lb.OffsetX)),
		int(math.Round(lb.OffsetY)),
		int(math.Round(lb.OffsetX+lb.FitWidth)),
		int(math.Round(lb.OffsetY+lb.FitHeight)),
	)

	xdraw.CatmullRom.Scale(dst.NRGBA(), fitRect, src.NRGBA(), src.NRGBA().Bounds(), draw.Over, nil)
	return dst, nil
}

// CropToOriginalAspect は PadToSquare の厳密な逆変換です。同じフィット計算で
// コンテンツ矩形を再計算し、その矩形だけを抽出して余白を捨てます。
// フィット方向の判定が PadToSquare とずれるとクロップ位置がずれるため、
// 必ず geometry.ContainFit を共有します。
func CropToOriginalAspect(square *imgutil.ImageBuffer, originalW, originalH, targetDim int) (*imgutil.ImageBuffer, error) {
	if square.Width != targetDim || square.Height != targetDim {
		return nil, fmt.Errorf("正方形画像の寸法 %dx%d が targetDim %d と一致しません",
			square.Width, square.Height, targetDim)
	}

	lb := geometry.ContainFit(float64(originalW), float64(originalH), float64(targetDim), float64(targetDim))
	x0 := int(math.Round(lb.OffsetX))
	y0 := int(math.Round(lb.OffsetY))
	w := int(math.Round(lb.FitWidth))
	h := int(math.Round(lb.FitHeight))

	return crop(square, x0, y0, w, h)
}

// IsolateByMask は「素材だけ、他は何もなし」をモデルへ渡すための分離画像を
// 作ります。透明背景に対して、出力アルファ = 画像アルファ ∩ マスク不透明度。
func IsolateByMask(img *imgutil.ImageBuffer, maskBuf *imgutil.ImageBuffer) (*imgutil.ImageBuffer, error) {
	if img.Width != maskBuf.Width || img.Height != maskBuf.Height {
		return nil, fmt.Errorf("マスク寸法 %dx%d が画像寸法 %dx%d と一致しません",
			maskBuf.Width, maskBuf.Height, img.Width, img.Height)
	}

	out := img.Clone()
	for y := 0; y < img.Height; y++ {
		for x := 0; x < img.Width; x++ {
			c := out.NRGBAAt(x, y)
			ma := uint32(maskBuf.AlphaAt(x, y))
			c.A = uint8(uint32(c.A) * ma / 255)
			out.SetNRGBA(x, y, c)
		}
	}
	return out, nil
}

// CropSquareAroundPoint は p を中心とする一辺 clamp(frac, 0.1, 1.0)*min(W,H) の
// 正方形領域を抽出します。画像からはみ出す場合はパディングせず、
// 窓のほうをずらして画像内に収めます。recitation 再試行でコンテキストを
// 狭めるためのフォールバックとして使います。
func CropSquareAroundPoint(img *imgutil.ImageBuffer, p domain.Point, frac float64) (*imgutil.ImageBuffer, error) {
	frac = math.Min(MaxCropFraction, math.Max(MinCropFraction, frac))
	side := int(math.Round(frac * math.Min(float64(img.Width), float64(img.Height))))
	if side < 1 {
		side = 1
	}

	x0 := int(math.Round(p.X)) - side/2
	y0 := int(math.Round(p.Y)) - side/2
	x0 = clampInt(x0, 0, img.Width-side)
	y0 = clampInt(y0, 0, img.Height-side)

	return crop(img, x0, y0, side, side)
}

// crop は矩形を画像境界内へ丸めたうえでピクセルを複製して返します。
func crop(src *imgutil.ImageBuffer, x0, y0, w, h int) (*imgutil.ImageBuffer, error) {
	x0 = clampInt(x0, 0, src.Width)
	y0 = clampInt(y0, 0, src.Height)
	if x0+w > src.Width {
		w = src.Width - x0
	}
	if y0+h > src.Height {
		h = src.Height - y0
	}

	out, err := imgutil.NewBuffer(w, h)
	if err != nil {
		return nil, fmt.Errorf("クロップ矩形が不正です: %w", err)
	}
	draw.Draw(out.NRGBA(), out.NRGBA().Bounds(), src.NRGBA(), image.Pt(x0, y0), draw.Src)
	return out, nil
}

func clampInt(v, lo, hi int) int {
	if hi < lo {
		hi = lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
