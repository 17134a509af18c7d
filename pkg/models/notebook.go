package models

// NotebookContent はパース済みのJupyterノートブックを表します
// パースは1ファイルにつき1回だけ行い、クリーニングは複製に対して行います
type NotebookContent struct {
	Cells         []NotebookCell `json:"cells"`
	NBFormat      int            `json:"nbformat"`
	NBFormatMinor int            `json:"nbformat_minor"`
}

// CellType はノートブックセルの種別を表します
type CellType string

const (
	CellTypeCode     CellType = "code"
	CellTypeMarkdown CellType = "markdown"
	CellTypeRaw      CellType = "raw"
)

// NotebookCell はノートブックの1セルを表します
type NotebookCell struct {
	CellType       CellType         `json:"cell_type"`
	Source         []string         `json:"source"`
	Outputs        []NotebookOutput `json:"outputs,omitempty"`
	ExecutionCount *int             `json:"execution_count,omitempty"`
}

// SourceText はセルのソース行を連結したテキストを返します
func (c NotebookCell) SourceText() string {
	text := ""
	for _, line := range c.Source {
		text += line
	}
	return text
}

// NotebookOutput はコードセルの1出力を表します
// 出力はフィルタリングされることはあっても捏造されることはありません
type NotebookOutput struct {
	OutputType string `json:"output_type"`
	Name       string `json:"name,omitempty"`
	Text       string `json:"text,omitempty"`
	EName      string `json:"ename,omitempty"`
	EValue     string `json:"evalue,omitempty"`
	Traceback  string `json:"traceback,omitempty"`
}

// ExtractedDefinition はセルから抽出した関数・クラス定義を表します
type ExtractedDefinition struct {
	Name      string `json:"name"`
	Kind      string `json:"kind"` // "function" または "class"
	Body      string `json:"body"`
	CellIndex int    `json:"cellIndex"`
}

// NotebookComponents は最適化1回分の中間集約です
// 呼び出しごとに新規に構築され、キャッシュされません
type NotebookComponents struct {
	Summary      string                `json:"summary"`
	Imports      []string              `json:"imports"`
	Definitions  []ExtractedDefinition `json:"definitions"`
	LogicGroups  [][]string            `json:"logicGroups"`
	Errors       []string              `json:"errors"`
	KeyOutputs   []string              `json:"keyOutputs"`
	CellStats    map[CellType]int      `json:"cellStats"`
	SummaryLines []string              `json:"summaryLines"`
}

// OptimizedNotebook はノートブック圧縮の最終結果を表します
// OriginalSize と OptimizedSize は推定トークン数です
type OptimizedNotebook struct {
	OriginalSize     int               `json:"originalSize"`
	OptimizedSize    int               `json:"optimizedSize"`
	CompressionRatio float64           `json:"compressionRatio"`
	Content          string            `json:"content"`
	Metadata         map[string]string `json:"metadata"`
}
