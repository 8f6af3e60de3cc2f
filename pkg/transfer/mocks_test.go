package transfer

import (
	"bytes"
	"context"
	"image/color"
	"io"
	"net/http"
	"sync"
	"testing"

	"github.com/shouni/go-gemini-client/pkg/gemini"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/shouni/gemini-material-kit/pkg/imgutil"
)

// --- Mocks ---

// routedClient はプロンプト内容で応答を振り分けるスタブです。
// 解析呼び出しは並行に飛んでくるためロックで保護します。
type routedClient struct {
	mu      sync.Mutex
	prompts []string
	route   func(prompt string, imageCount int) (*gemini.Response, error)
}

func (m *routedClient) GenerateWithParts(ctx context.Context, model string, parts []*genai.Part, opts gemini.GenerateOptions) (*gemini.Response, error) {
	prompt := ""
	if len(parts) > 0 {
		prompt = parts[0].Text
	}
	images := 0
	for _, p := range parts {
		if p.InlineData != nil {
			images++
		}
	}

	m.mu.Lock()
	m.prompts = append(m.prompts, prompt)
	m.mu.Unlock()

	return m.route(prompt, images)
}

type mockHTTPClient struct {
	data []byte
	err  error
	last string
}

func (m *mockHTTPClient) FetchBytes(ctx context.Context, url string) ([]byte, error) {
	m.last = url
	return m.data, m.err
}

func (m *mockHTTPClient) PostJSONAndFetchBytes(ctx context.Context, url string, data any) ([]byte, error) {
	return nil, nil
}

func (m *mockHTTPClient) PostRawBodyAndFetchBytes(ctx context.Context, url string, body []byte, contentType string) ([]byte, error) {
	return nil, nil
}

func (m *mockHTTPClient) Do(req *http.Request) (*http.Response, error) {
	return nil, nil
}

func (m *mockHTTPClient) DoRequest(req *http.Request) ([]byte, error) {
	return nil, nil
}

func (m *mockHTTPClient) FetchAndDecodeJSON(ctx context.Context, url string, v any) error {
	return nil
}

func (m *mockHTTPClient) IsSafeURL(urlStr string) (bool, error) {
	return true, nil
}

func (m *mockHTTPClient) IsSecureServiceURL(serviceURL string) bool {
	return true
}

type mockReader struct {
	data []byte
	err  error
}

func (m *mockReader) Open(ctx context.Context, uri string) (io.ReadCloser, error) {
	if m.err != nil {
		return nil, m.err
	}
	return io.NopCloser(bytes.NewReader(m.data)), nil
}

func (m *mockReader) List(ctx context.Context, uri string, fn func(string) error) error {
	return nil
}

// --- 応答ビルダー ---

func textResponse(text string) *gemini.Response {
	return &gemini.Response{
		RawResponse: &genai.GenerateContentResponse{
			Candidates: []*genai.Candidate{{
				FinishReason: genai.FinishReasonStop,
				Content:      &genai.Content{Parts: []*genai.Part{{Text: text}}},
			}},
		},
	}
}

func imageResponse(data []byte) *gemini.Response {
	return &gemini.Response{
		RawResponse: &genai.GenerateContentResponse{
			Candidates: []*genai.Candidate{{
				FinishReason: genai.FinishReasonStop,
				Content: &genai.Content{
					Parts: []*genai.Part{{InlineData: &genai.Blob{MIMEType: "image/png", Data: data}}},
				},
			}},
		},
	}
}

func recitationResponse() *gemini.Response {
	return &gemini.Response{
		RawResponse: &genai.GenerateContentResponse{
			Candidates: []*genai.Candidate{{FinishReason: genai.FinishReasonRecitation}},
		},
	}
}

// --- 画像フィクスチャ ---

func makePNG(t *testing.T, w, h int, c color.NRGBA) []byte {
	t.Helper()
	buf, err := imgutil.NewBuffer(w, h)
	require.NoError(t, err)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			buf.SetNRGBA(x, y, c)
		}
	}
	data, err := imgutil.EncodePNG(buf)
	require.NoError(t, err)
	return data
}
