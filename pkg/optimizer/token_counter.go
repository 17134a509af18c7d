package optimizer

import (
	"log/slog"

	"github.com/pkoukk/tiktoken-go"
)

// EstimateTokens は文字数/4 の概算トークン数を返します
// 予算判断はすべてこの概算で行います。各閾値はこの概算に対して調整されているため、
// 正確なトークナイザへ置き換える場合は予算の再調整が必要です
func EstimateTokens(text string) int {
	return len(text) / 4
}

// TokenCounter は成果物メタデータ向けの正確なトークン数を提供します
// エンコーディングが読み込めない環境では概算へ静かに縮退します
type TokenCounter struct {
	encoding *tiktoken.Tiktoken
}

// NewTokenCounter は cl100k_base エンコーディングのカウンタを作成します
func NewTokenCounter(logger *slog.Logger) *TokenCounter {
	encoding, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		if logger != nil {
			logger.Warn("tiktokenエンコーディングを読み込めないため概算トークン数を使用します", "error", err)
		}
		return &TokenCounter{}
	}
	return &TokenCounter{encoding: encoding}
}

// Count はテキストのトークン数を返します
func (tc *TokenCounter) Count(text string) int {
	if tc.encoding == nil {
		return EstimateTokens(text)
	}
	return len(tc.encoding.Encode(text, nil, nil))
}
