package transfer

import (
	"context"
	"errors"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoader(t *testing.T) {
	t.Run("nilチェック: 依存関係が足りない場合はエラーを返すのだ", func(t *testing.T) {
		if _, err := NewLoader(nil, &mockReader{}); err == nil {
			t.Error("expected error for nil httpClient")
		}
		if _, err := NewLoader(&mockHTTPClient{}, nil); err == nil {
			t.Error("expected error for nil reader")
		}
	})
}

func TestLoader_Fetch(t *testing.T) {
	ctx := context.Background()
	pngData := makePNG(t, 32, 24, color.NRGBA{R: 9, G: 9, B: 9, A: 255})

	t.Run("httpsのURLは寸法付きアセットになること", func(t *testing.T) {
		httpMock := &mockHTTPClient{data: pngData}
		loader, err := NewLoader(httpMock, &mockReader{})
		require.NoError(t, err)

		asset, err := loader.Fetch(ctx, "https://example.com/sample.png")
		require.NoError(t, err)
		assert.Equal(t, 32, asset.Width)
		assert.Equal(t, 24, asset.Height)
		// 取得時に JPEG 圧縮されるため MIME は image/jpeg になる
		assert.Equal(t, "image/jpeg", asset.MimeType)
		assert.Equal(t, "https://example.com/sample.png", httpMock.last)
	})

	t.Run("gs://スキームはremoteio経由で読むこと", func(t *testing.T) {
		loader, _ := NewLoader(&mockHTTPClient{err: errors.New("must not be called")}, &mockReader{data: pngData})

		asset, err := loader.Fetch(ctx, "gs://bucket/sample.png")
		require.NoError(t, err)
		assert.Equal(t, 32, asset.Width)
	})

	t.Run("画像でない応答はエラーになること", func(t *testing.T) {
		loader, _ := NewLoader(&mockHTTPClient{data: []byte("<html>not found</html>")}, &mockReader{})
		_, err := loader.Fetch(ctx, "https://example.com/oops")
		assert.Error(t, err)
	})

	t.Run("取得エラーはそのまま伝播すること", func(t *testing.T) {
		loader, _ := NewLoader(&mockHTTPClient{err: errors.New("boom")}, &mockReader{})
		_, err := loader.Fetch(ctx, "https://example.com/x.png")
		assert.ErrorContains(t, err, "boom")
	})
}

func TestIsSafeURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{"不正なスキーム", "gopher://example.com/x", true},
		{"file スキーム", "file:///etc/passwd", true},
		{"ループバックIP直指定", "http://127.0.0.1/evil.png", true},
		{"プライベートIP直指定", "http://10.0.0.5/metadata", true},
		{"リンクローカルIP直指定", "http://169.254.169.254/latest", true},
		{"パース不能", "::::", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			safe, err := isSafeURL(tt.url)
			if (err != nil) != tt.wantErr {
				t.Errorf("isSafeURL() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && safe {
				t.Errorf("%s: unsafe URL was flagged as safe", tt.url)
			}
		})
	}
}
