package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config はアプリケーション全体の設定を保持します
type Config struct {
	// GitHub API設定
	GitHub GitHubConfig

	// ログ設定
	Log LogConfig

	// キャッシュ設定
	Cache CacheConfig

	// チューニングファイルのパス（空の場合は既定値を使用）
	TuningFile string
}

// GitHubConfig はGitHub REST API接続設定
type GitHubConfig struct {
	// Token は認証用のPersonal Access Token
	// 未設定でも動作しますがレート制限が厳しくなります
	Token string

	// BaseURL はAPIのベースURL（GitHub Enterprise向けに変更可能）
	BaseURL string

	// TimeoutSeconds はHTTPリクエストのタイムアウト秒数
	TimeoutSeconds int
}

// LogConfig はロガー設定
type LogConfig struct {
	Level  string // "debug", "info", "warn", "error"
	Format string // "json" or "text"
}

// CacheConfig はノートブック圧縮結果キャッシュの設定
type CacheConfig struct {
	// Path はbboltデータベースファイルのパス（空の場合はキャッシュ無効）
	Path string

	// ContentCacheSize はプロセス内コンテンツLRUのエントリ上限
	ContentCacheSize int
}

// Load は環境変数または.envファイルから設定を読み込みます
func Load(envFilePath string) (*Config, error) {
	// .envファイルが存在する場合は読み込む
	if envFilePath != "" {
		if err := godotenv.Load(envFilePath); err != nil {
			// ファイルが存在しない場合はエラーとしない（環境変数のみで動作可能）
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf(".envファイルの読み込みに失敗: %w", err)
			}
		}
	}

	cfg := &Config{
		GitHub: GitHubConfig{
			Token:          getEnv("GITHUB_TOKEN", ""),
			BaseURL:        getEnv("GITHUB_API_BASE_URL", "https://api.github.com"),
			TimeoutSeconds: getEnvAsInt("GITHUB_TIMEOUT_SECONDS", 30),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Cache: CacheConfig{
			Path:             getEnv("CACHE_PATH", ""),
			ContentCacheSize: getEnvAsInt("CONTENT_CACHE_SIZE", 128),
		},
		TuningFile: getEnv("TUNING_FILE", ""),
	}

	return cfg, nil
}

// getEnv は環境変数を取得し、存在しない場合はデフォルト値を返します
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt は環境変数を整数として取得します
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
