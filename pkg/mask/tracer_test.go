package mask

import (
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shouni/gemini-material-kit/pkg/imgutil"
)

// 指定矩形だけ不透明なマスクのデータURLを作るヘルパー
func rectMaskURL(t *testing.T, w, h, x0, y0, x1, y1 int) string {
	t.Helper()
	buf, err := imgutil.NewBuffer(w, h)
	require.NoError(t, err)
	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			buf.SetNRGBA(x, y, color.NRGBA{R: 255, G: 255, B: 255, A: 255})
		}
	}
	data, err := imgutil.EncodePNG(buf)
	require.NoError(t, err)
	return imgutil.EncodeDataURL("image/png", data)
}

func whiteBase(t *testing.T, w, h int) *imgutil.ImageBuffer {
	t.Helper()
	buf, err := imgutil.NewBuffer(w, h)
	require.NoError(t, err)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			buf.SetNRGBA(x, y, color.NRGBA{R: 255, G: 255, B: 255, A: 255})
		}
	}
	return buf
}

func TestEdgePixels_CenteredSquare(t *testing.T) {
	// 400x400 の透明キャンバス中央に 100x100 の不透明正方形:
	// 境界ピクセルは正方形の外周（4辺）と厳密に一致するはずなのだ
	url := rectMaskURL(t, 400, 400, 150, 150, 250, 250)
	m, err := Parse(url, 400, 400)
	require.NoError(t, err)

	edges := edgePixels(m)

	want := make(map[pixel]bool)
	for x := 150; x < 250; x++ {
		want[pixel{x, 150}] = true
		want[pixel{x, 249}] = true
	}
	for y := 150; y < 250; y++ {
		want[pixel{150, y}] = true
		want[pixel{249, y}] = true
	}

	got := make(map[pixel]bool, len(edges))
	for _, p := range edges {
		got[p] = true
	}

	assert.Equal(t, len(want), len(got), "境界ピクセル数が外周と一致しない")
	for p := range want {
		if !got[p] {
			t.Fatalf("外周ピクセル %+v が境界として検出されていない", p)
		}
	}
}

func TestEdgePixels_NeverOnTransparent(t *testing.T) {
	url := rectMaskURL(t, 100, 100, 20, 20, 60, 60)
	m, err := Parse(url, 100, 100)
	require.NoError(t, err)

	for _, p := range edgePixels(m) {
		if m.AlphaAt(p.x, p.y) == 0 {
			t.Fatalf("透明ピクセル %+v が境界として報告された", p)
		}
	}
}

func TestChainEdges_CoversAllEdges(t *testing.T) {
	// 貪欲なチェーン分解はすべての境界ピクセルをちょうど1回ずつ訪問する
	url := rectMaskURL(t, 200, 200, 50, 50, 150, 150)
	m, err := Parse(url, 200, 200)
	require.NoError(t, err)

	edges := edgePixels(m)
	chains := chainEdges(edges, m.Width)

	total := 0
	seen := make(map[pixel]bool)
	for _, chain := range chains {
		total += len(chain)
		for _, p := range chain {
			if seen[p] {
				t.Fatalf("ピクセル %+v が複数のチェーンに含まれている", p)
			}
			seen[p] = true
		}
	}
	assert.Equal(t, len(edges), total)
}

func TestTrace(t *testing.T) {
	base := whiteBase(t, 400, 400)
	url := rectMaskURL(t, 400, 400, 150, 150, 250, 250)

	out, err := Trace(base, url)
	require.NoError(t, err)

	t.Run("境界上がハイライト色で塗られること", func(t *testing.T) {
		assert.Equal(t, traceInk, out.NRGBAAt(150, 200))
		assert.Equal(t, traceInk, out.NRGBAAt(200, 249))
	})

	t.Run("境界から離れた場所は元画像のままであること", func(t *testing.T) {
		white := color.NRGBA{R: 255, G: 255, B: 255, A: 255}
		assert.Equal(t, white, out.NRGBAAt(10, 10))
		assert.Equal(t, white, out.NRGBAAt(200, 200))
	})

	t.Run("元画像は変更されないこと", func(t *testing.T) {
		white := color.NRGBA{R: 255, G: 255, B: 255, A: 255}
		assert.Equal(t, white, base.NRGBAAt(150, 200))
	})

	t.Run("寸法不一致はエラー", func(t *testing.T) {
		small := whiteBase(t, 100, 100)
		_, err := Trace(small, url)
		assert.Error(t, err)
	})
}

func TestFillOverlay(t *testing.T) {
	base := whiteBase(t, 100, 100)
	url := rectMaskURL(t, 100, 100, 10, 10, 50, 50)

	out, err := FillOverlay(base, url, color.NRGBA{R: 0, G: 255, B: 0}, 128)
	require.NoError(t, err)

	t.Run("マスク内は塗り色と元色のブレンドになること", func(t *testing.T) {
		c := out.NRGBAAt(30, 30)
		assert.Less(t, c.R, uint8(255), "Rは塗りで下がるはず")
		assert.Equal(t, uint8(255), c.G)
	})

	t.Run("マスク外は元のままであること", func(t *testing.T) {
		assert.Equal(t, color.NRGBA{R: 255, G: 255, B: 255, A: 255}, out.NRGBAAt(80, 80))
	})
}

func TestTraceJPEG(t *testing.T) {
	base := whiteBase(t, 64, 64)
	url := rectMaskURL(t, 64, 64, 16, 16, 48, 48)

	data, err := TraceJPEG(base, url, 85)
	require.NoError(t, err)
	require.NotEmpty(t, data)

	buf, err := imgutil.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, 64, buf.Width)
}
