package transfer

import (
	"context"
	"fmt"
	"image/color"
	"log/slog"
	"sync"

	"github.com/shouni/gemini-material-kit/pkg/compositor"
	"github.com/shouni/gemini-material-kit/pkg/domain"
	"github.com/shouni/gemini-material-kit/pkg/generator"
	"github.com/shouni/gemini-material-kit/pkg/imgutil"
	"github.com/shouni/gemini-material-kit/pkg/mask"
)

// モデル入力の正方形寸法の既定値
const DefaultTargetDim = 1024

// 転写先領域の視覚キューに使う塗り色
var overlayFill = color.NRGBA{R: 0, G: 255, B: 0}

const overlayAlpha = 128

const (
	describeMaterialPrompt = "Describe the material shown in this image in one short phrase: surface type, color, and texture. Reply with the description only."
	describeTargetPrompt   = "The area outlined in red is about to be restyled. Briefly describe the object inside the outline and its surroundings."
	texturePromptFormat    = "Generate a flat, seamless texture swatch of the following material: %s. Fill the entire frame with the material surface only, no objects or borders."
	compositePromptFormat  = "Apply the material from the second image (%s) onto the region highlighted in green in the first image (%s). Preserve the original lighting, perspective and geometry. %s"
)

// Service は素材転写パイプライン全体を統括します。領域の説明、デバッグ用
// 画像の導出、テクスチャ生成、最終合成までを一括で行い、結果の束を返します。
// 返却後は内部に状態を保持しません（セッション内インメモリのみ）。
type Service struct {
	orch      *generator.Orchestrator
	analysis  *generator.Orchestrator
	targetDim int
}

// ServiceOption は Service の構成オプションです。
type ServiceOption func(*serviceConfig)

type serviceConfig struct {
	targetDim int
	progress  chan<- generator.Progress
	backoff   []generator.Option
}

// WithTargetDim はモデル入力の正方形寸法を上書きします。
func WithTargetDim(dim int) ServiceOption {
	return func(c *serviceConfig) { c.targetDim = dim }
}

// WithProgress は全段階の進捗通知の書き込み先を設定します。
func WithProgress(ch chan<- generator.Progress) ServiceOption {
	return func(c *serviceConfig) { c.progress = ch }
}

// WithOrchestratorOptions はオーケストレーターへの追加オプション
// （テスト用のバックオフ短縮など）を渡します。
func WithOrchestratorOptions(opts ...generator.Option) ServiceOption {
	return func(c *serviceConfig) { c.backoff = opts }
}

// NewService は通信クライアントとモデル名を束ねてパイプラインを初期化します。
// analysisModel はテキスト解析用、imageModel は画像生成用のモデル名です。
func NewService(client generator.ModelClient, analysisModel, imageModel string, opts ...ServiceOption) (*Service, error) {
	cfg := serviceConfig{targetDim: DefaultTargetDim}
	for _, opt := range opts {
		opt(&cfg)
	}

	orchOpts := cfg.backoff
	if cfg.progress != nil {
		orchOpts = append(orchOpts, generator.WithProgress(cfg.progress))
	}

	analysis, err := generator.New(client, analysisModel, orchOpts...)
	if err != nil {
		return nil, fmt.Errorf("解析オーケストレーター初期化失敗: %w", err)
	}
	orch, err := generator.New(client, imageModel, orchOpts...)
	if err != nil {
		return nil, fmt.Errorf("生成オーケストレーター初期化失敗: %w", err)
	}

	return &Service{orch: orch, analysis: analysis, targetDim: cfg.targetDim}, nil
}

// TransferMaterial は素材領域を転写先領域へ写すパイプラインを実行します。
// 再試行はすべて内部で解決され、呼び出し元には最終結果か終端エラーだけが
// 渡ります。途中生成物（境界トレース、塗りつぶし、分離画像、テクスチャ）も
// 結果に同梱します。
func (s *Service) TransferMaterial(ctx context.Context, req domain.TransferRequest) (*domain.TransferResult, error) {
	materialBuf, targetBuf, err := decodeInputs(req)
	if err != nil {
		return nil, err
	}

	materialMaskURL, err := resolveMask(req.MaterialMask, req.MaterialPoint, materialBuf)
	if err != nil {
		return nil, fmt.Errorf("素材マスクの解決失敗: %w", err)
	}
	targetMaskURL, err := resolveMask(req.TargetMask, req.TargetPoint, targetBuf)
	if err != nil {
		return nil, fmt.Errorf("転写先マスクの解決失敗: %w", err)
	}

	// デバッグ・モデル入力画像の導出
	traced, err := mask.Trace(targetBuf, targetMaskURL)
	if err != nil {
		return nil, err
	}
	overlay, err := mask.FillOverlay(targetBuf, targetMaskURL, overlayFill, overlayAlpha)
	if err != nil {
		return nil, err
	}
	materialMaskBuf, err := mask.Parse(materialMaskURL, materialBuf.Width, materialBuf.Height)
	if err != nil {
		return nil, err
	}
	isolated, err := compositor.IsolateByMask(materialBuf, materialMaskBuf)
	if err != nil {
		return nil, err
	}

	// 素材と転写先の説明は独立なので並行に発行し、両方の完了を待つ
	materialDesc, targetDesc, err := s.describeRegions(ctx, isolated, traced)
	if err != nil {
		return nil, err
	}
	slog.InfoContext(ctx, "領域の解析が完了しました",
		"material", materialDesc, "target", targetDesc)

	// テクスチャ生成段階: 拒否のたびにクロップを狭める
	center := cropCenter(req.MaterialPoint, materialMaskBuf)
	texture, err := s.generateTexture(ctx, materialBuf, center, materialDesc)
	if err != nil {
		return nil, err
	}

	// 合成段階: 塗りつぶし済み転写先 + テクスチャの2画像呼び出し
	final, finalPrompt, err := s.composite(ctx, overlay, texture, materialDesc, targetDesc, req.Instruction)
	if err != nil {
		return nil, err
	}

	output, err := s.restoreAspect(final, targetBuf)
	if err != nil {
		return nil, err
	}

	debug, err := buildDebugImages(traced, overlay, isolated, texture)
	if err != nil {
		return nil, err
	}

	finalPNG, err := imgutil.EncodePNG(output)
	if err != nil {
		return nil, err
	}

	return &domain.TransferResult{
		FinalImageURL:       imgutil.EncodeDataURL("image/png", finalPNG),
		DebugImages:         debug,
		FinalPrompt:         finalPrompt,
		MaterialDescription: materialDesc,
		TargetDescription:   targetDesc,
	}, nil
}

func decodeInputs(req domain.TransferRequest) (*imgutil.ImageBuffer, *imgutil.ImageBuffer, error) {
	if len(req.Material.Data) == 0 || len(req.Target.Data) == 0 {
		return nil, nil, fmt.Errorf("素材画像と転写先画像の両方が必要です")
	}
	materialBuf, err := imgutil.Decode(req.Material.Data)
	if err != nil {
		return nil, nil, fmt.Errorf("素材画像のデコード失敗: %w", err)
	}
	targetBuf, err := imgutil.Decode(req.Target.Data)
	if err != nil {
		return nil, nil, fmt.Errorf("転写先画像のデコード失敗: %w", err)
	}
	return materialBuf, targetBuf, nil
}

// resolveMask はマスクのデータURL、無ければマーカー点からの円合成で
// マスクを用意します。どちらも無い場合はエラーです。
func resolveMask(maskURL string, point *domain.Point, img *imgutil.ImageBuffer) (string, error) {
	if maskURL != "" {
		return maskURL, nil
	}
	if point == nil {
		return "", fmt.Errorf("マスクまたはマーカー点のどちらかが必要です")
	}
	r, err := mask.FromMarker(*point, img.Width, img.Height)
	if err != nil {
		return "", err
	}
	return r.Commit()
}

// describeRegions は素材領域と転写先領域の説明を並行に取得します。
// それぞれ独立なバッファ上で動くため共有状態はありません。
func (s *Service) describeRegions(ctx context.Context, isolated, traced *imgutil.ImageBuffer) (string, string, error) {
	isolatedPNG, err := imgutil.EncodePNG(isolated)
	if err != nil {
		return "", "", err
	}
	tracedPNG, err := imgutil.EncodePNG(traced)
	if err != nil {
		return "", "", err
	}

	var wg sync.WaitGroup
	var materialDesc, targetDesc string
	var materialErr, targetErr error

	wg.Add(2)
	go func() {
		defer wg.Done()
		materialDesc, materialErr = s.analysis.GenerateText(ctx, generator.Request{
			Stage:  "describe-material",
			Prompt: describeMaterialPrompt,
			Images: []domain.ImagePayload{{Data: isolatedPNG, MimeType: "image/png"}},
		}, &generator.PromptSaltPolicy{Budget: generator.DefaultSingleImageBudget})
	}()
	go func() {
		defer wg.Done()
		targetDesc, targetErr = s.analysis.GenerateText(ctx, generator.Request{
			Stage:  "describe-target",
			Prompt: describeTargetPrompt,
			Images: []domain.ImagePayload{{Data: tracedPNG, MimeType: "image/png"}},
		}, &generator.PromptSaltPolicy{Budget: generator.DefaultSingleImageBudget})
	}()
	wg.Wait()

	if materialErr != nil {
		return "", "", fmt.Errorf("素材領域の解析失敗: %w", materialErr)
	}
	if targetErr != nil {
		return "", "", fmt.Errorf("転写先領域の解析失敗: %w", targetErr)
	}
	return materialDesc, targetDesc, nil
}

func cropCenter(point *domain.Point, maskBuf *imgutil.ImageBuffer) domain.Point {
	if point != nil {
		return *point
	}
	return mask.BufferCentroid(maskBuf)
}

// generateTexture は素材クロップからテクスチャ見本を生成します。
// recitation 拒否のたびに NarrowingCropPolicy がクロップを狭めて再送します。
func (s *Service) generateTexture(ctx context.Context, materialBuf *imgutil.ImageBuffer, center domain.Point, materialDesc string) (*domain.ImagePayload, error) {
	policy, err := generator.NewNarrowingCropPolicy(materialBuf, center, generator.DefaultSingleImageBudget)
	if err != nil {
		return nil, err
	}
	initial, err := policy.CropPayload()
	if err != nil {
		return nil, err
	}

	texture, _, err := s.orch.GenerateImage(ctx, generator.Request{
		Stage:       "texture",
		Prompt:      fmt.Sprintf(texturePromptFormat, materialDesc),
		Images:      []domain.ImagePayload{*initial},
		AspectRatio: "1:1",
	}, policy)
	if err != nil {
		return nil, fmt.Errorf("テクスチャ生成失敗: %w", err)
	}
	return texture, nil
}

// composite は塗りつぶし済み転写先とテクスチャの2画像で最終画像を生成します。
func (s *Service) composite(ctx context.Context, overlay *imgutil.ImageBuffer, texture *domain.ImagePayload, materialDesc, targetDesc, instruction string) (*domain.ImagePayload, string, error) {
	padded, err := compositor.PadToSquare(overlay, s.targetDim, color.NRGBA{R: 255, G: 255, B: 255, A: 255})
	if err != nil {
		return nil, "", err
	}
	paddedPNG, err := imgutil.EncodePNG(padded)
	if err != nil {
		return nil, "", err
	}

	final, prompt, err := s.orch.GenerateImage(ctx, generator.Request{
		Stage:  "composite",
		Prompt: fmt.Sprintf(compositePromptFormat, materialDesc, targetDesc, instruction),
		Images: []domain.ImagePayload{
			{Data: paddedPNG, MimeType: "image/png"},
			*texture,
		},
		AspectRatio: "1:1",
	}, &generator.PromptSaltPolicy{Budget: generator.DefaultCompositeBudget})
	if err != nil {
		return nil, "", fmt.Errorf("合成失敗: %w", err)
	}
	return final, prompt, nil
}

// restoreAspect はモデルの正方形出力を転写先本来のアスペクト比へ戻します。
// 正方形でない出力が返った場合はそのまま使います。
func (s *Service) restoreAspect(final *domain.ImagePayload, targetBuf *imgutil.ImageBuffer) (*imgutil.ImageBuffer, error) {
	buf, err := imgutil.Decode(final.Data)
	if err != nil {
		return nil, fmt.Errorf("生成画像のデコード失敗: %w", err)
	}
	if buf.Width != buf.Height {
		return buf, nil
	}
	return compositor.CropToOriginalAspect(buf, targetBuf.Width, targetBuf.Height, buf.Width)
}

func buildDebugImages(traced, overlay, isolated *imgutil.ImageBuffer, texture *domain.ImagePayload) ([]domain.DebugImage, error) {
	tracedJPEG, err := imgutil.EncodeJPEG(traced, ImageCompressionQuality)
	if err != nil {
		return nil, err
	}
	overlayPNG, err := imgutil.EncodePNG(overlay)
	if err != nil {
		return nil, err
	}
	isolatedPNG, err := imgutil.EncodePNG(isolated)
	if err != nil {
		return nil, err
	}

	return []domain.DebugImage{
		{Label: "boundary", DataURL: imgutil.EncodeDataURL("image/jpeg", tracedJPEG)},
		{Label: "overlay", DataURL: imgutil.EncodeDataURL("image/png", overlayPNG)},
		{Label: "isolated", DataURL: imgutil.EncodeDataURL("image/png", isolatedPNG)},
		{Label: "texture", DataURL: imgutil.EncodeDataURL(texture.MimeType, texture.Data)},
	}, nil
}
