package imgutil

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// EncodeDataURL はバイナリを data:<mime>;base64,<payload> 形式に変換します。
func EncodeDataURL(mimeType string, data []byte) string {
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// DecodeDataURL は data URL から MIME タイプとバイナリを取り出します。
func DecodeDataURL(dataURL string) (string, []byte, error) {
	rest, ok := strings.CutPrefix(dataURL, "data:")
	if !ok {
		return "", nil, fmt.Errorf("data URL ではありません")
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, fmt.Errorf("data URL の区切りが見つかりません")
	}
	mimeType, isBase64 := strings.CutSuffix(meta, ";base64")
	if !isBase64 {
		return "", nil, fmt.Errorf("base64 エンコードのみ対応しています: %s", meta)
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("base64 デコード失敗: %w", err)
	}
	return mimeType, data, nil
}
