package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"

	"github.com/shouni/gemini-material-kit/pkg/domain"
)

// 環境変数のキー
const (
	envAPIKey        = "GEMINI_API_KEY"
	envAnalysisModel = "MATERIALKIT_ANALYSIS_MODEL"
	envImageModel    = "MATERIALKIT_IMAGE_MODEL"
	envTargetDim     = "MATERIALKIT_TARGET_DIM"
)

const (
	defaultAnalysisModel = "gemini-2.5-flash"
	defaultImageModel    = "gemini-2.5-flash-image"
	defaultTargetDim     = 1024
)

// Config はライブラリを組み込むアプリが必要とする設定一式です。
type Config struct {
	APIKey        string
	AnalysisModel string
	ImageModel    string
	TargetDim     int
}

// Load は .env（あれば）と環境変数から設定を読み込みます。
// API キーが無い場合は domain.ConfigError を返し、再試行はしません。
func Load() (*Config, error) {
	// .env が無くてもエラーにしない
	_ = godotenv.Load()

	apiKey := os.Getenv(envAPIKey)
	if apiKey == "" {
		return nil, &domain.ConfigError{Key: envAPIKey}
	}

	cfg := &Config{
		APIKey:        apiKey,
		AnalysisModel: getEnvOr(envAnalysisModel, defaultAnalysisModel),
		ImageModel:    getEnvOr(envImageModel, defaultImageModel),
		TargetDim:     defaultTargetDim,
	}

	if raw := os.Getenv(envTargetDim); raw != "" {
		dim, err := strconv.Atoi(raw)
		if err != nil || dim <= 0 {
			return nil, &domain.ConfigError{Key: envTargetDim}
		}
		cfg.TargetDim = dim
	}

	return cfg, nil
}

func getEnvOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
