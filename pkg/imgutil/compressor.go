package imgutil

// CompressToJPEG は画像データ（PNG, GIF, JPEG等）をJPEG形式に圧縮します。
// モデルへ送る前のペイロード削減に使います。アルファは破棄されます。
func CompressToJPEG(data []byte, quality int) ([]byte, error) {
	buf, err := Decode(data)
	if err != nil {
		return nil, err
	}
	return EncodeJPEG(buf, quality)
}
