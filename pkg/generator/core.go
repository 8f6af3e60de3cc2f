package generator

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/shouni/go-gemini-client/pkg/gemini"
	"google.golang.org/genai"

	"github.com/shouni/gemini-material-kit/pkg/domain"
)

// Classify は応答を success / モデル拒否 / 通信異常 に分類します。
// recitation だけでなく、候補レベルのブロック（safety / blocklist 等）も
// 拒否として扱い、リクエストを変異しての再送対象になります。
// ペイロードの有無を信用する前に、呼び出し側は必ずこの分類で分岐します。
func Classify(resp *gemini.Response) domain.Classification {
	if resp == nil || resp.RawResponse == nil || len(resp.RawResponse.Candidates) == 0 {
		return domain.ClassTransportError
	}
	switch resp.RawResponse.Candidates[0].FinishReason {
	case genai.FinishReasonRecitation,
		genai.FinishReasonSafety,
		genai.FinishReasonBlocklist,
		genai.FinishReasonProhibitedContent,
		genai.FinishReasonImageSafety:
		return domain.ClassRejected
	}
	return domain.ClassSucceeded
}

// ExtractImage は応答から最初のインライン画像を取り出します。
// 画像パートが無い場合は domain.NoContentError、finish reason が正常終了
// 以外を示す場合はその理由を含むエラーを返します。黙って空を返すことはしません。
func ExtractImage(resp *gemini.Response) (*domain.ImagePayload, error) {
	if resp == nil || resp.RawResponse == nil || len(resp.RawResponse.Candidates) == 0 {
		return nil, fmt.Errorf("モデルから有効な応答がありませんでした")
	}
	candidate := resp.RawResponse.Candidates[0]

	if candidate.Content != nil {
		for _, part := range candidate.Content.Parts {
			if part.InlineData != nil && len(part.InlineData.Data) > 0 {
				return &domain.ImagePayload{
					Data:     part.InlineData.Data,
					MimeType: part.InlineData.MIMEType,
				}, nil
			}
		}
	}

	if candidate.FinishReason != genai.FinishReasonUnspecified && candidate.FinishReason != genai.FinishReasonStop {
		return nil, fmt.Errorf("画像生成が異常終了しました (FinishReason: %s)", candidate.FinishReason)
	}
	return nil, &domain.NoContentError{Kind: "image"}
}

// ExtractText は応答のテキストパートを連結して返します。
// テキストパートが1つも無い場合は domain.NoContentError を返します。
func ExtractText(resp *gemini.Response) (string, error) {
	if resp == nil || resp.RawResponse == nil || len(resp.RawResponse.Candidates) == 0 {
		return "", fmt.Errorf("モデルから有効な応答がありませんでした")
	}
	candidate := resp.RawResponse.Candidates[0]

	var sb strings.Builder
	if candidate.Content != nil {
		for _, part := range candidate.Content.Parts {
			if part.Text != "" {
				sb.WriteString(part.Text)
			}
		}
	}
	if sb.Len() == 0 {
		return "", &domain.NoContentError{Kind: "text"}
	}
	return sb.String(), nil
}

// ToPayload はバイト列を MIME 判定付きの ImagePayload に変換します。
// 画像でないデータは nil を返します。
func ToPayload(data []byte) *domain.ImagePayload {
	mimeType := http.DetectContentType(data)
	if !strings.HasPrefix(mimeType, "image/") {
		return nil
	}
	return &domain.ImagePayload{Data: data, MimeType: mimeType}
}

// toParts はプロンプトと画像群を genai のパート列に組み立てます。
func toParts(prompt string, images []domain.ImagePayload) []*genai.Part {
	parts := []*genai.Part{{Text: prompt}}
	for _, img := range images {
		parts = append(parts, &genai.Part{
			InlineData: &genai.Blob{MIMEType: img.MimeType, Data: img.Data},
		})
	}
	return parts
}
