package notebook

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/jinford/repo-optimizer/pkg/models"
	"github.com/jinford/repo-optimizer/pkg/optimizer/tuning"
)

// Compressor はノートブックをトークン予算内のテキスト形式へ圧縮します
type Compressor struct {
	cfg      tuning.NotebookConfig
	keywords map[string][]string
	logger   *slog.Logger
}

// NewCompressor は新しいCompressorを作成します
func NewCompressor(cfg tuning.Config, logger *slog.Logger) *Compressor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Compressor{
		cfg:      cfg.Notebook,
		keywords: cfg.CourseKeywords,
		logger:   logger,
	}
}

// Compress はノートブックの生JSONテキストを圧縮します
// パース不能・切り詰め済みの入力は劣化パスで要約に変換され、決して失わません
// 入力が空の場合のみ nil を返します
func (c *Compressor) Compress(raw string, course models.CourseContext) *models.OptimizedNotebook {
	if strings.TrimSpace(raw) == "" {
		return nil
	}

	if HasTruncationMarker(raw) {
		return c.degradedSummary(raw, "切り詰め済みコンテンツ")
	}
	nb, err := Parse(raw)
	if err != nil {
		c.logger.Warn("ノートブックのパースに失敗したため劣化パスへ切り替えます", "error", err)
		return c.degradedSummary(raw, "JSONパース失敗")
	}

	cleaned := Clean(nb, c.cfg.OutputTokenCeiling)
	keywords := c.courseKeywords(course)

	scores := make([]float64, len(cleaned.Cells))
	for i, cell := range cleaned.Cells {
		scores[i] = c.scoreCell(cell, keywords)
	}

	components := c.buildComponents(cleaned, scores)
	content := c.assemble(components, course)

	originalSize := estimateTokens(raw)
	optimizedSize := estimateTokens(content)
	ratio := 0.0
	if originalSize > 0 {
		ratio = 1.0 - float64(optimizedSize)/float64(originalSize)
		if ratio < 0 {
			ratio = 0
		}
	}

	return &models.OptimizedNotebook{
		OriginalSize:     originalSize,
		OptimizedSize:    optimizedSize,
		CompressionRatio: ratio,
		Content:          content,
		Metadata: map[string]string{
			"cells":    fmt.Sprintf("%d", len(cleaned.Cells)),
			"course":   course.CourseID,
			"degraded": "false",
		},
	}
}

// degradedSummary は生テキストの先頭から取れる情報だけで短い要約を合成します
// 圧縮はファイルを落とすのではなく劣化して生き残らせます
func (c *Compressor) degradedSummary(raw string, reason string) *models.OptimizedNotebook {
	prefix := raw
	if len(prefix) > 2000 {
		prefix = prefix[:2000]
	}

	var fragments []string
	for _, marker := range []string{`"nbformat"`, `"kernelspec"`, `"language_info"`} {
		if strings.Contains(prefix, marker) {
			fragments = append(fragments, strings.Trim(marker, `"`))
		}
	}
	cellCount := strings.Count(raw, `"cell_type"`)

	var b strings.Builder
	b.WriteString("## ノートブック要約（劣化モード）\n")
	fmt.Fprintf(&b, "- 理由: %s\n", reason)
	fmt.Fprintf(&b, "- 生テキスト長: %d 文字\n", len(raw))
	if cellCount > 0 {
		fmt.Fprintf(&b, "- 検出セル数（推定）: %d\n", cellCount)
	}
	if len(fragments) > 0 {
		fmt.Fprintf(&b, "- 検出メタデータ: %s\n", strings.Join(fragments, ", "))
	}

	content := b.String()
	originalSize := estimateTokens(raw)
	ratio := 0.0
	if originalSize > 0 {
		ratio = 1.0 - float64(estimateTokens(content))/float64(originalSize)
		if ratio < 0 {
			ratio = 0
		}
	}

	return &models.OptimizedNotebook{
		OriginalSize:     originalSize,
		OptimizedSize:    estimateTokens(content),
		CompressionRatio: ratio,
		Content:          content,
		Metadata: map[string]string{
			"truncated": "true",
			"degraded":  "true",
			"reason":    reason,
		},
	}
}

// courseKeywords はコースIDの既定キーワードにルーブリック由来の語を加えます
func (c *Compressor) courseKeywords(course models.CourseContext) []string {
	keywords := append([]string(nil), c.keywords[course.CourseID]...)

	// コースIDそのものの構成語もキーワードとして扱う
	for _, part := range strings.FieldsFunc(strings.ToLower(course.CourseID), func(r rune) bool {
		return r == '-' || r == '_' || r == ' '
	}) {
		if len(part) >= 3 {
			keywords = append(keywords, part)
		}
	}

	if course.Rubric != "" {
		keywords = append(keywords, rubricKeywords(course.Rubric, 10)...)
	}
	return keywords
}

// rubricKeywords はルーブリック本文から頻出の長い語を拾います
func rubricKeywords(rubric string, limit int) []string {
	counts := make(map[string]int)
	for _, w := range strings.Fields(strings.ToLower(rubric)) {
		w = strings.Trim(w, ".,:;()[]\"'")
		if len(w) >= 5 {
			counts[w]++
		}
	}
	words := make([]string, 0, len(counts))
	for w := range counts {
		words = append(words, w)
	}
	sort.SliceStable(words, func(i, j int) bool {
		if counts[words[i]] != counts[words[j]] {
			return counts[words[i]] > counts[words[j]]
		}
		return words[i] < words[j]
	})
	if len(words) > limit {
		words = words[:limit]
	}
	return words
}

// scoreCell はセルの優先度を [0,1] で算出します
func (c *Compressor) scoreCell(cell models.NotebookCell, keywords []string) float64 {
	if cell.CellType != models.CellTypeCode {
		// マークダウン・rawは一律の低め固定値
		return 0.3
	}

	source := cell.SourceText()
	lower := strings.ToLower(source)
	score := 0.5

	hasDefinition := false
	hasImport := false
	sawStatement := false
	assignmentOnly := true
	for _, line := range splitLines(source) {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		sawStatement = true
		if definitionRe.MatchString(line) {
			hasDefinition = true
		}
		if importRe.MatchString(line) {
			hasImport = true
		}
		if !assignOnlyRe.MatchString(line) {
			assignmentOnly = false
		}
	}
	assignmentOnly = assignmentOnly && sawStatement

	if hasDefinition {
		score += 0.3
	}
	if hasImport {
		score += 0.2
	}
	for _, kw := range keywords {
		if kw != "" && strings.Contains(lower, strings.ToLower(kw)) {
			score += 0.1
		}
	}
	if controlFlowRe.MatchString(source) {
		score += 0.1
	}
	if assignmentOnly {
		score -= 0.1
	}
	if estimateTokens(source) > c.cfg.LargeCellTokens {
		// 巨大なセルは大抵焦点が定まっていない
		score -= 0.2
	}

	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

// buildComponents はクリーニング済みセルから中間集約を構築します
func (c *Compressor) buildComponents(nb *models.NotebookContent, scores []float64) models.NotebookComponents {
	selected, summaries := c.selectMainLogic(nb.Cells, scores)

	var selectedCells []models.NotebookCell
	var snippets []string
	for _, idx := range selected {
		selectedCells = append(selectedCells, nb.Cells[idx])
		// 予算を消費したセルは種別を問わず本文を残す
		// マークダウンは選択されたコードの間の説明文として機能する
		if text := strings.TrimRight(nb.Cells[idx].SourceText(), "\n"); text != "" {
			snippets = append(snippets, text)
		}
	}

	stats := make(map[models.CellType]int)
	for _, cell := range nb.Cells {
		stats[cell.CellType]++
	}

	return models.NotebookComponents{
		Summary:      fmt.Sprintf("%d セル (code=%d, markdown=%d, raw=%d)", len(nb.Cells), stats[models.CellTypeCode], stats[models.CellTypeMarkdown], stats[models.CellTypeRaw]),
		Imports:      extractImports(nb.Cells),
		Definitions:  extractDefinitions(nb.Cells),
		LogicGroups:  groupLogicSnippets(snippets, c.cfg.MaxLogicGroups),
		Errors:       extractErrors(nb.Cells),
		KeyOutputs:   extractKeyOutputs(selectedCells, 5),
		CellStats:    stats,
		SummaryLines: summaries,
	}
}

// selectMainLogic は優先度降順でトークン予算までセルを選択します
// 高優先度（閾値超）のセルは予算を超えても必ず含めます。確度の高い信号は落とせません
// 予算に入らなかった中優先度セルは1行要約で代替します
func (c *Compressor) selectMainLogic(cells []models.NotebookCell, scores []float64) (selected []int, summaries []string) {
	order := make([]int, len(cells))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return scores[order[a]] > scores[order[b]]
	})

	used := 0
	chosen := make(map[int]bool)
	for _, idx := range order {
		cost := estimateTokens(cells[idx].SourceText())
		switch {
		case scores[idx] > c.cfg.AlwaysIncludeScore:
			chosen[idx] = true
			used += cost
		case used+cost <= c.cfg.MainLogicBudgetTokens:
			chosen[idx] = true
			used += cost
		case scores[idx] >= c.cfg.MediumScoreFloor:
			if line := firstMeaningfulLine(cells[idx].SourceText(), c.cfg.SummaryLineMaxChars); line != "" {
				summaries = append(summaries, line)
			}
		}
	}

	// 出力はセルの出現順を保つ
	for i := range cells {
		if chosen[i] {
			selected = append(selected, i)
		}
	}
	return selected, summaries
}

// assemble は固定のセクション順で最終テキストを組み立てます
func (c *Compressor) assemble(components models.NotebookComponents, course models.CourseContext) string {
	var b strings.Builder

	b.WriteString("## 概要\n")
	b.WriteString(components.Summary)
	if course.CourseID != "" {
		fmt.Fprintf(&b, " / コース: %s", course.CourseID)
	}
	b.WriteString("\n")

	if len(components.Imports) > 0 {
		b.WriteString("\n## インポート\n")
		b.WriteString(strings.Join(components.Imports, "\n"))
		b.WriteString("\n")
	}

	if len(components.Definitions) > 0 {
		b.WriteString("\n## 関数・クラス定義\n")
		for _, def := range components.Definitions {
			fmt.Fprintf(&b, "# cell %d: %s %s\n%s\n\n", def.CellIndex, def.Kind, def.Name, def.Body)
		}
	}

	if len(components.LogicGroups) > 0 {
		b.WriteString("\n## 主要ロジック\n")
		for i, group := range components.LogicGroups {
			fmt.Fprintf(&b, "--- グループ %d ---\n", i+1)
			b.WriteString(strings.Join(group, "\n"))
			b.WriteString("\n")
		}
	}

	if len(components.SummaryLines) > 0 {
		b.WriteString("\n## 省略セル（1行要約）\n")
		for _, line := range components.SummaryLines {
			fmt.Fprintf(&b, "- %s\n", line)
		}
	}

	if len(components.Errors) > 0 {
		b.WriteString("\n## エラー\n")
		b.WriteString(strings.Join(components.Errors, "\n\n"))
		b.WriteString("\n")
	}

	if len(components.KeyOutputs) > 0 {
		b.WriteString("\n## 主要出力\n")
		b.WriteString(strings.Join(components.KeyOutputs, "\n"))
		b.WriteString("\n")
	}

	b.WriteString("\n## 構造統計\n")
	fmt.Fprintf(&b, "code=%d markdown=%d raw=%d\n",
		components.CellStats[models.CellTypeCode],
		components.CellStats[models.CellTypeMarkdown],
		components.CellStats[models.CellTypeRaw],
	)

	return b.String()
}
