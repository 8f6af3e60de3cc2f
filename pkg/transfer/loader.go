package transfer

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/shouni/go-http-kit/pkg/httpkit"
	"github.com/shouni/go-remote-io/pkg/remoteio"

	"github.com/shouni/gemini-material-kit/pkg/domain"
	"github.com/shouni/gemini-material-kit/pkg/imgutil"
)

const (
	// モデルへ送る前の圧縮設定。アルファ付きマスクには適用しません。
	UseImageCompression     = true
	ImageCompressionQuality = 75
)

// Loader はサンプル画像や素材画像の取得を担当します。
// http/https は httpkit、gs:// は remoteio で読みます。
type Loader struct {
	httpClient httpkit.ClientInterface
	reader     remoteio.InputReader
}

// NewLoader は依存関係を検証して Loader を初期化します。
func NewLoader(httpClient httpkit.ClientInterface, reader remoteio.InputReader) (*Loader, error) {
	if httpClient == nil {
		return nil, fmt.Errorf("httpClient is required")
	}
	if reader == nil {
		return nil, fmt.Errorf("reader is required")
	}
	return &Loader{httpClient: httpClient, reader: reader}, nil
}

// Fetch は URL から画像を取得し、自然寸法付きの不変アセットとして返します。
func (l *Loader) Fetch(ctx context.Context, rawURL string) (*domain.ImageAsset, error) {
	fetched, err := l.fetchBytes(ctx, rawURL)
	if err != nil {
		return nil, err
	}

	// 取得画像はモデル入力直行なので圧縮を試み、失敗したら元データのまま使う
	data := fetched
	if UseImageCompression {
		if compressed, err := imgutil.CompressToJPEG(fetched, ImageCompressionQuality); err == nil {
			data = compressed
		}
	}

	buf, err := imgutil.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("取得データが画像としてデコードできません: %w", err)
	}

	mimeType := http.DetectContentType(data)
	if !strings.HasPrefix(mimeType, "image/") {
		return nil, fmt.Errorf("画像ではないデータが返されました: %s", mimeType)
	}

	return &domain.ImageAsset{
		Data:     data,
		MimeType: mimeType,
		Width:    buf.Width,
		Height:   buf.Height,
	}, nil
}

func (l *Loader) fetchBytes(ctx context.Context, rawURL string) ([]byte, error) {
	if strings.HasPrefix(rawURL, "gs://") {
		rc, err := l.reader.Open(ctx, rawURL)
		if err != nil {
			return nil, err
		}
		defer rc.Close()
		return io.ReadAll(rc)
	}

	if safe, err := isSafeURL(rawURL); err != nil || !safe {
		return nil, fmt.Errorf("安全ではないURLが指定されました: %w", err)
	}
	return l.httpClient.FetchBytes(ctx, rawURL)
}

// isSafeURL は SSRF 対策として URL を検証します。許可されたスキーム
// (http, https) かつ、プライベートIPやループバックアドレスを
// ターゲットにしていないことを確認します。
func isSafeURL(rawURL string) (bool, error) {
	parsedURL, err := url.ParseRequestURI(rawURL)
	if err != nil {
		return false, fmt.Errorf("URLパース失敗: %w", err)
	}

	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return false, fmt.Errorf("不許可スキーム: %s", parsedURL.Scheme)
	}

	host := parsedURL.Hostname()
	var ips []net.IP
	if ip := net.ParseIP(host); ip != nil {
		ips = []net.IP{ip}
	} else {
		resolved, err := net.LookupIP(host)
		if err != nil {
			return false, fmt.Errorf("ホスト '%s' の名前解決に失敗しました: %w", host, err)
		}
		ips = resolved
	}

	for _, ip := range ips {
		if ip.IsPrivate() || ip.IsLoopback() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() {
			return false, fmt.Errorf("制限されたネットワークへのアクセスを検知: %s", ip.String())
		}
	}
	return true, nil
}
