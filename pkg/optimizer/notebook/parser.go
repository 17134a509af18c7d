package notebook

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/jinford/repo-optimizer/pkg/models"
)

// truncationMarkers はプロバイダがコンテンツを切り詰めた際に埋め込む目印
var truncationMarkers = []string{
	"[content truncated",
	"[truncated by provider",
	"...(truncated)",
}

// outputTruncationMarker は出力を天井で切り詰めたことを示す明示的な目印
const outputTruncationMarker = "... [出力は上限で切り詰め]"

// Parse はノートブックのJSONテキストをパースします
func Parse(raw string) (*models.NotebookContent, error) {
	var nb models.NotebookContent
	if err := json.Unmarshal([]byte(raw), &nb); err != nil {
		return nil, fmt.Errorf("ノートブックJSONのパースに失敗: %w", err)
	}
	return &nb, nil
}

// HasTruncationMarker は外部切り詰めの痕跡があるかを返します
func HasTruncationMarker(raw string) bool {
	lower := strings.ToLower(raw)
	for _, m := range truncationMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}

// Clean は出力をフィルタしたクリーニング済みの複製を返します
// 元のノートブックは変更しません
// 残すのはエラー出力（そのまま）と天井以下のストリーム出力のみで、
// 画像や大きなデータフレームなどテキスト評価器が解釈できない出力は捨てます
func Clean(nb *models.NotebookContent, outputTokenCeiling int) *models.NotebookContent {
	cleaned := &models.NotebookContent{
		NBFormat:      nb.NBFormat,
		NBFormatMinor: nb.NBFormatMinor,
		Cells:         make([]models.NotebookCell, 0, len(nb.Cells)),
	}

	for _, cell := range nb.Cells {
		copied := models.NotebookCell{
			CellType:       cell.CellType,
			Source:         append([]string(nil), cell.Source...),
			ExecutionCount: cell.ExecutionCount,
		}
		if cell.CellType == models.CellTypeCode {
			copied.Outputs = cleanOutputs(cell.Outputs, outputTokenCeiling)
		}
		cleaned.Cells = append(cleaned.Cells, copied)
	}
	return cleaned
}

func cleanOutputs(outputs []models.NotebookOutput, ceiling int) []models.NotebookOutput {
	var kept []models.NotebookOutput
	for _, out := range outputs {
		switch out.OutputType {
		case "error":
			// エラー出力は評価に直結するためそのまま残す
			kept = append(kept, out)
		case "stream":
			if estimateTokens(out.Text) <= ceiling {
				kept = append(kept, out)
				continue
			}
			truncated := out
			truncated.Text = truncateToTokens(out.Text, ceiling) + "\n" + outputTruncationMarker
			kept = append(kept, truncated)
		}
	}
	return kept
}

// estimateTokens は文字数/4 の概算トークン数を返します
// 正確さは不要で、予算判断に使える安定した順序だけが必要です
func estimateTokens(s string) int {
	return len(s) / 4
}

// truncateToTokens は概算トークン数が上限以下になるよう末尾を切り詰めます
// マルチバイト文字の途中では切りません
func truncateToTokens(s string, tokens int) string {
	limit := tokens * 4
	if len(s) <= limit {
		return s
	}
	return trimToRuneBoundary(s, limit)
}

// trimToRuneBoundary は limit バイト以下で直近のルーン境界まで切り詰めます
func trimToRuneBoundary(s string, limit int) string {
	if limit >= len(s) {
		return s
	}
	for limit > 0 && !utf8.RuneStart(s[limit]) {
		limit--
	}
	return s[:limit]
}
