package generator

import (
	"image/color"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shouni/gemini-material-kit/pkg/domain"
	"github.com/shouni/gemini-material-kit/pkg/imgutil"
)

func TestAttachNonce(t *testing.T) {
	t.Run("毎回異なるトークンが付くのだ", func(t *testing.T) {
		a := attachNonce("same prompt")
		b := attachNonce("same prompt")
		assert.NotEqual(t, a, b)
		assert.True(t, strings.HasPrefix(a, "same prompt "))
	})
}

func TestPromptSaltPolicy(t *testing.T) {
	policy := &PromptSaltPolicy{Budget: 3}

	t.Run("予算をそのまま返すこと", func(t *testing.T) {
		assert.Equal(t, 3, policy.MaxAttempts())
	})

	t.Run("予算未指定なら合成呼び出しの既定値になること", func(t *testing.T) {
		assert.Equal(t, DefaultCompositeBudget, (&PromptSaltPolicy{}).MaxAttempts())
	})

	t.Run("OnRejectedは塩を足すだけで画像は変えないこと", func(t *testing.T) {
		req := Request{Prompt: "base", Images: []domain.ImagePayload{{Data: []byte("img"), MimeType: "image/png"}}}
		mutated := policy.OnRejected(1, req)

		assert.NotEqual(t, req.Prompt, mutated.Prompt)
		assert.True(t, strings.HasPrefix(mutated.Prompt, "base "))
		assert.Equal(t, req.Images, mutated.Images)
	})
}

func sourceBuffer(t *testing.T, w, h int) *imgutil.ImageBuffer {
	t.Helper()
	buf, err := imgutil.NewBuffer(w, h)
	require.NoError(t, err)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			buf.SetNRGBA(x, y, color.NRGBA{R: uint8(x), G: uint8(y), A: 255})
		}
	}
	return buf
}

func TestNarrowingCropPolicy(t *testing.T) {
	src := sourceBuffer(t, 200, 200)
	center := domain.Point{X: 100, Y: 100}

	t.Run("クロップ率は0.45から0.10刻みで下限0.20まで狭まるのだ", func(t *testing.T) {
		policy, err := NewNarrowingCropPolicy(src, center, 5)
		require.NoError(t, err)
		assert.InDelta(t, 0.45, policy.Fraction(), 1e-9)

		req := Request{Prompt: "texture"}
		want := []float64{0.35, 0.25, 0.20, 0.20}
		for i, w := range want {
			req = policy.OnRejected(i+1, req)
			assert.InDelta(t, w, policy.Fraction(), 1e-9, "attempt %d", i+1)
		}
	})

	t.Run("OnRejectedは対象画像を狭いクロップで差し替えること", func(t *testing.T) {
		policy, err := NewNarrowingCropPolicy(src, center, 5)
		require.NoError(t, err)

		initial, err := policy.CropPayload()
		require.NoError(t, err)

		req := Request{Prompt: "texture", Images: []domain.ImagePayload{*initial}}
		mutated := policy.OnRejected(1, req)

		require.Len(t, mutated.Images, 1)
		assert.NotEqual(t, initial.Data, mutated.Images[0].Data)

		// 0.35 * 200 = 70px 四方になっているはず
		cropped, err := imgutil.Decode(mutated.Images[0].Data)
		require.NoError(t, err)
		assert.Equal(t, 70, cropped.Width)
		assert.Equal(t, 70, cropped.Height)
	})

	t.Run("元のリクエストの画像列は破壊されないこと", func(t *testing.T) {
		policy, _ := NewNarrowingCropPolicy(src, center, 5)
		initial, _ := policy.CropPayload()
		req := Request{Prompt: "texture", Images: []domain.ImagePayload{*initial}}

		_ = policy.OnRejected(1, req)
		assert.Equal(t, initial.Data, req.Images[0].Data)
	})

	t.Run("nilソースはエラー", func(t *testing.T) {
		_, err := NewNarrowingCropPolicy(nil, center, 5)
		assert.Error(t, err)
	})
}
