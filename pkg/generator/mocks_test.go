package generator

import (
	"context"

	"github.com/shouni/go-gemini-client/pkg/gemini"
	"google.golang.org/genai"
)

// --- Mocks ---

type mockReply struct {
	resp *gemini.Response
	err  error
}

// mockClient は試行ごとに台本どおりの応答を返すスタブです。
// 送信されたプロンプト全文と画像パート数を試行順に記録します。
type mockClient struct {
	script      []mockReply
	calls       int
	prompts     []string
	imageCounts []int
}

func (m *mockClient) GenerateWithParts(ctx context.Context, model string, parts []*genai.Part, opts gemini.GenerateOptions) (*gemini.Response, error) {
	idx := m.calls
	m.calls++

	if len(parts) > 0 {
		m.prompts = append(m.prompts, parts[0].Text)
	}
	images := 0
	for _, p := range parts {
		if p.InlineData != nil {
			images++
		}
	}
	m.imageCounts = append(m.imageCounts, images)

	if idx >= len(m.script) {
		idx = len(m.script) - 1
	}
	reply := m.script[idx]
	return reply.resp, reply.err
}

// --- 応答ビルダー ---

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

func textResponse(text string) *gemini.Response {
	return &gemini.Response{
		RawResponse: &genai.GenerateContentResponse{
			Candidates: []*genai.Candidate{{
				FinishReason: genai.FinishReasonStop,
				Content: &genai.Content{
					Parts: []*genai.Part{{Text: text}},
				},
			}},
		},
	}
}

func recitationResponse() *gemini.Response {
	return &gemini.Response{
		RawResponse: &genai.GenerateContentResponse{
			Candidates: []*genai.Candidate{{
				FinishReason: genai.FinishReasonRecitation,
			}},
		},
	}
}

func emptyResponse() *gemini.Response {
	return &gemini.Response{
		RawResponse: &genai.GenerateContentResponse{
			Candidates: []*genai.Candidate{{
				FinishReason: genai.FinishReasonStop,
				Content:      &genai.Content{Parts: []*genai.Part{}},
			}},
		},
	}
}
