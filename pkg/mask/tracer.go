package mask

import (
	"fmt"
	"image/color"

	"github.com/shouni/gemini-material-kit/pkg/imgutil"
)

// 境界ハイライトの色と太さは固定。デバッグ・モデル誘導用の表示であって、
// 下流でプログラム的に解析される輪郭ではない。
var traceInk = color.NRGBA{R: 255, G: 0, B: 0, A: 255}

const traceWidth = 3

// 8近傍のオフセット
var neighbors8 = [8][2]int{
	{-1, -1}, {0, -1}, {1, -1},
	{-1, 0}, {1, 0},
	{-1, 1}, {0, 1}, {1, 1},
}

// Trace はベース画像の上にマスク境界の赤いアウトラインを描いたデバッグ画像を
// 返します。境界ピクセルは「不透明で、8近傍に完全透明が1つ以上あるマスク
// ピクセル」です。外周の行・列は範囲外参照を避けるため走査から除外します。
func Trace(base *imgutil.ImageBuffer, maskDataURL string) (*imgutil.ImageBuffer, error) {
	m, err := Parse(maskDataURL, base.Width, base.Height)
	if err != nil {
		return nil, err
	}

	out := base.Clone()
	edges := edgePixels(m)
	for _, chain := range chainEdges(edges, m.Width) {
		strokeChain(out, chain)
	}
	return out, nil
}

// FillOverlay はマスクの不透明ピクセルを平坦な半透明色で塗った画像を返します。
// 「この領域そのもの」をモデルに示す視覚ヒントとして使います。
func FillOverlay(base *imgutil.ImageBuffer, maskDataURL string, fill color.NRGBA, alpha uint8) (*imgutil.ImageBuffer, error) {
	m, err := Parse(maskDataURL, base.Width, base.Height)
	if err != nil {
		return nil, err
	}

	out := base.Clone()
	a := uint32(alpha)
	for y := 0; y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			if m.AlphaAt(x, y) == 0 {
				continue
			}
			c := out.NRGBAAt(x, y)
			blended := color.NRGBA{
				R: uint8((uint32(fill.R)*a + uint32(c.R)*(255-a)) / 255),
				G: uint8((uint32(fill.G)*a + uint32(c.G)*(255-a)) / 255),
				B: uint8((uint32(fill.B)*a + uint32(c.B)*(255-a)) / 255),
				A: 255,
			}
			out.SetNRGBA(x, y, blended)
		}
	}
	return out, nil
}

type pixel struct{ x, y int }

// edgePixels はマスクの境界ピクセル集合を走査順で返します。
func edgePixels(m *imgutil.ImageBuffer) []pixel {
	var edges []pixel
	for y := 1; y < m.Height-1; y++ {
		for x := 1; x < m.Width-1; x++ {
			if m.AlphaAt(x, y) == 0 {
				continue
			}
			for _, d := range neighbors8 {
				if m.AlphaAt(x+d[0], y+d[1]) == 0 {
					edges = append(edges, pixel{x, y})
					break
				}
			}
		}
	}
	return edges
}

// chainEdges は境界ピクセルを貪欲に連結チェーンへ縫い合わせます。
// 未訪問の境界ピクセルから始め、未訪問の8連結近傍をたどれる限り伸ばし、
// 行き止まりで次の未訪問ピクセルから新しいチェーンを始めます。
// 分岐や厚い境界では複数の不連続なチェーンに分解されることがありますが、
// 表示用途なので許容します。
func chainEdges(edges []pixel, width int) [][]pixel {
	edgeSet := make(map[int]bool, len(edges))
	for _, p := range edges {
		edgeSet[p.y*width+p.x] = true
	}
	visited := make(map[int]bool, len(edges))

	var chains [][]pixel
	for _, start := range edges {
		key := start.y*width + start.x
		if visited[key] {
			continue
		}
		visited[key] = true
		chain := []pixel{start}

		cur := start
		for {
			next, ok := nextUnvisited(cur, edgeSet, visited, width)
			if !ok {
				break
			}
			visited[next.y*width+next.x] = true
			chain = append(chain, next)
			cur = next
		}
		chains = append(chains, chain)
	}
	return chains
}

func nextUnvisited(p pixel, edgeSet, visited map[int]bool, width int) (pixel, bool) {
	for _, d := range neighbors8 {
		n := pixel{p.x + d[0], p.y + d[1]}
		key := n.y*width + n.x
		if edgeSet[key] && !visited[key] {
			return n, true
		}
	}
	return pixel{}, false
}

// strokeChain はチェーンの連続ピクセル間を固定色・固定太さで結びます。
func strokeChain(out *imgutil.ImageBuffer, chain []pixel) {
	if len(chain) == 1 {
		stampSquare(out, chain[0].x, chain[0].y, traceWidth)
		return
	}
	for i := 1; i < len(chain); i++ {
		drawThickLine(out, chain[i-1].x, chain[i-1].y, chain[i].x, chain[i].y, traceWidth)
	}
}

// drawThickLine は Bresenham 走査で太さ thickness の線分を描きます。
func drawThickLine(out *imgutil.ImageBuffer, x1, y1, x2, y2, thickness int) {
	dx := abs(x2 - x1)
	dy := abs(y2 - y1)

	sx := 1
	if x1 > x2 {
		sx = -1
	}
	sy := 1
	if y1 > y2 {
		sy = -1
	}

	e := dx - dy
	for {
		stampSquare(out, x1, y1, thickness)

		if x1 == x2 && y1 == y2 {
			break
		}
		e2 := 2 * e
		if e2 > -dy {
			e -= dy
			x1 += sx
		}
		if e2 < dx {
			e += dx
			y1 += sy
		}
	}
}

func stampSquare(out *imgutil.ImageBuffer, cx, cy, size int) {
	half := size / 2
	for ty := -half; ty <= half; ty++ {
		for tx := -half; tx <= half; tx++ {
			out.SetNRGBA(cx+tx, cy+ty, traceInk)
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// TraceJPEG は Trace の結果を JPEG に再エンコードして返す補助関数です。
func TraceJPEG(base *imgutil.ImageBuffer, maskDataURL string, quality int) ([]byte, error) {
	out, err := Trace(base, maskDataURL)
	if err != nil {
		return nil, err
	}
	data, err := imgutil.EncodeJPEG(out, quality)
	if err != nil {
		return nil, fmt.Errorf("トレース画像のエンコード失敗: %w", err)
	}
	return data, nil
}
