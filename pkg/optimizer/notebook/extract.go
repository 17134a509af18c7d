package notebook

import (
	"regexp"
	"strings"

	"github.com/jinford/repo-optimizer/pkg/models"
)

var (
	definitionRe  = regexp.MustCompile(`^(\s*)(def|class)\s+(\w+)`)
	importRe      = regexp.MustCompile(`^\s*(import\s+\S+|from\s+\S+\s+import\s+)`)
	controlFlowRe = regexp.MustCompile(`(^|\s)(for|while|if|elif|try|with)\s`)
	assignOnlyRe  = regexp.MustCompile(`^\s*\w+(\s*,\s*\w+)*\s*=[^=]`)
	commentRe     = regexp.MustCompile(`^\s*#`)
	identifierRe  = regexp.MustCompile(`^[A-Za-z_]\w*`)
)

// extractDefinitions はセル群から関数・クラス定義を抽出します
// 本文はインデント追跡で切り出します: def/class 行から前進し、
// 定義行以下のインデントを持つ最初の非空行で本文が終わります
func extractDefinitions(cells []models.NotebookCell) []models.ExtractedDefinition {
	var defs []models.ExtractedDefinition
	for i, cell := range cells {
		if cell.CellType != models.CellTypeCode {
			continue
		}
		lines := splitLines(cell.SourceText())
		for ln := 0; ln < len(lines); ln++ {
			m := definitionRe.FindStringSubmatch(lines[ln])
			if m == nil {
				continue
			}
			kind := "function"
			if m[2] == "class" {
				kind = "class"
			}
			body, consumed := extractBody(lines, ln, len(m[1]))
			defs = append(defs, models.ExtractedDefinition{
				Name:      m[3],
				Kind:      kind,
				Body:      body,
				CellIndex: i,
			})
			ln += consumed - 1
		}
	}
	return defs
}

// extractBody は定義行から本文末尾までを切り出し、消費した行数を返します
func extractBody(lines []string, start, defIndent int) (string, int) {
	end := start + 1
	for ; end < len(lines); end++ {
		line := lines[end]
		if strings.TrimSpace(line) == "" {
			continue
		}
		if indentWidth(line) <= defIndent {
			break
		}
	}
	// 末尾の空行は本文に含めない
	last := end
	for last > start+1 && strings.TrimSpace(lines[last-1]) == "" {
		last--
	}
	return strings.Join(lines[start:last], "\n"), last - start
}

func indentWidth(line string) int {
	width := 0
	for _, r := range line {
		switch r {
		case ' ':
			width++
		case '\t':
			width += 4
		default:
			return width
		}
	}
	return width
}

// extractImports はimport文を出現順・重複なしで集めます
func extractImports(cells []models.NotebookCell) []string {
	var imports []string
	seen := make(map[string]bool)
	for _, cell := range cells {
		if cell.CellType != models.CellTypeCode {
			continue
		}
		for _, line := range splitLines(cell.SourceText()) {
			trimmed := strings.TrimRight(line, "\n")
			if importRe.MatchString(trimmed) {
				key := strings.TrimSpace(trimmed)
				if !seen[key] {
					seen[key] = true
					imports = append(imports, key)
				}
			}
		}
	}
	return imports
}

// extractErrors はエラー出力を「種別: 値」とトレースバックの形で集めます
func extractErrors(cells []models.NotebookCell) []string {
	var errors []string
	for _, cell := range cells {
		for _, out := range cell.Outputs {
			if out.OutputType != "error" {
				continue
			}
			msg := out.EName + ": " + out.EValue
			if out.Traceback != "" {
				msg += "\n" + out.Traceback
			}
			errors = append(errors, msg)
		}
	}
	return errors
}

// extractKeyOutputs は選択済みセルの小さなテキスト出力を集めます
func extractKeyOutputs(cells []models.NotebookCell, limit int) []string {
	var outputs []string
	for _, cell := range cells {
		for _, out := range cell.Outputs {
			if out.OutputType != "stream" || out.Text == "" {
				continue
			}
			outputs = append(outputs, strings.TrimRight(out.Text, "\n"))
			if len(outputs) >= limit {
				return outputs
			}
		}
	}
	return outputs
}

// groupLogicSnippets は選択済みスニペットを物語の流れを保つ塊へまとめます
// 直前スニペット末尾の代入変数が次の先頭で参照されている場合、
// または行継続・インデントで始まる場合に同じ塊として扱います
func groupLogicSnippets(snippets []string, maxGroups int) [][]string {
	if len(snippets) == 0 {
		return nil
	}

	groups := [][]string{{snippets[0]}}
	for i := 1; i < len(snippets); i++ {
		prev := snippets[i-1]
		curr := snippets[i]
		if isAdjacent(prev, curr) {
			last := len(groups) - 1
			groups[last] = append(groups[last], curr)
			continue
		}
		groups = append(groups, []string{curr})
	}

	// 塊の数が上限を超える場合は末尾へ併合する
	for len(groups) > maxGroups {
		last := len(groups) - 1
		groups[last-1] = append(groups[last-1], groups[last]...)
		groups = groups[:last]
	}
	return groups
}

// isAdjacent は2つのスニペットが連続した処理の一部かを判定する軽量ヒューリスティックです
func isAdjacent(prev, curr string) bool {
	currLines := splitLines(curr)
	if len(currLines) == 0 {
		return false
	}
	first := currLines[0]

	// 行継続・インデント開始は直前の続き
	if strings.HasPrefix(first, " ") || strings.HasPrefix(first, "\t") || strings.HasPrefix(strings.TrimSpace(first), ")") {
		return true
	}

	// 直前末尾の代入変数が先頭で参照されているか
	prevLines := splitLines(prev)
	for i := len(prevLines) - 1; i >= 0; i-- {
		line := prevLines[i]
		if strings.TrimSpace(line) == "" || commentRe.MatchString(line) {
			continue
		}
		if m := assignOnlyRe.FindString(line); m != "" {
			name := identifierRe.FindString(strings.TrimSpace(line))
			if name != "" && strings.Contains(first, name) {
				return true
			}
		}
		break
	}
	return false
}

// splitLines は改行を保持せずに行へ分割します
func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n")
}

// firstMeaningfulLine はコメントでも空行でもない最初の行を返します
func firstMeaningfulLine(source string, maxChars int) string {
	for _, line := range splitLines(source) {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		if len(trimmed) > maxChars {
			return trimToRuneBoundary(trimmed, maxChars)
		}
		return trimmed
	}
	return ""
}
