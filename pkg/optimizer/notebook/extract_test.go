package notebook

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jinford/repo-optimizer/pkg/models"
)

func codeCellModel(source string) models.NotebookCell {
	return models.NotebookCell{CellType: models.CellTypeCode, Source: []string{source}}
}

func TestExtractDefinitions_IndentTracking(t *testing.T) {
	source := `def load(path):
    with open(path) as f:
        data = f.read()

    return data

x = load("a.csv")

class Trainer:
    def fit(self, df):
        return self
`
	defs := extractDefinitions([]models.NotebookCell{codeCellModel(source)})

	require.Len(t, defs, 2)

	assert.Equal(t, "load", defs[0].Name)
	assert.Equal(t, "function", defs[0].Kind)
	// 本文はインデントが定義行以下になる最初の非空行の手前まで
	assert.Contains(t, defs[0].Body, "return data")
	assert.NotContains(t, defs[0].Body, "x = load")

	assert.Equal(t, "Trainer", defs[1].Name)
	assert.Equal(t, "class", defs[1].Kind)
	assert.Contains(t, defs[1].Body, "def fit")
}

func TestExtractDefinitions_CellProvenance(t *testing.T) {
	cells := []models.NotebookCell{
		{CellType: models.CellTypeMarkdown, Source: []string{"# intro"}},
		codeCellModel("def a():\n    return 1\n"),
		codeCellModel("def b():\n    return 2\n"),
	}

	defs := extractDefinitions(cells)
	require.Len(t, defs, 2)
	assert.Equal(t, 1, defs[0].CellIndex)
	assert.Equal(t, 2, defs[1].CellIndex)
}

func TestExtractImports_DedupedInOrder(t *testing.T) {
	cells := []models.NotebookCell{
		codeCellModel("import pandas as pd\nfrom sklearn import metrics\n"),
		codeCellModel("import pandas as pd\nimport numpy as np\n"),
	}

	imports := extractImports(cells)
	assert.Equal(t, []string{
		"import pandas as pd",
		"from sklearn import metrics",
		"import numpy as np",
	}, imports)
}

func TestGroupLogicSnippets_Adjacency(t *testing.T) {
	snippets := []string{
		"df = load_data()",
		"result = df.groupby('id').mean()", // df を参照 → 直前と同じ塊
		"print('done')",                    // 独立
	}

	groups := groupLogicSnippets(snippets, 5)

	require.Len(t, groups, 2)
	assert.Len(t, groups[0], 2)
	assert.Len(t, groups[1], 1)
}

func TestGroupLogicSnippets_MaxGroups(t *testing.T) {
	snippets := []string{"a()", "b()", "c()", "d()", "e()", "f()", "g()"}
	groups := groupLogicSnippets(snippets, 5)
	assert.Len(t, groups, 5)

	total := 0
	for _, g := range groups {
		total += len(g)
	}
	assert.Equal(t, len(snippets), total)
}

func TestClean_DoesNotMutateOriginal(t *testing.T) {
	nb := &models.NotebookContent{
		Cells: []models.NotebookCell{
			{
				CellType: models.CellTypeCode,
				Source:   []string{"print(x)\n"},
				Outputs: []models.NotebookOutput{
					{OutputType: "display_data"},
					{OutputType: "stream", Name: "stdout", Text: "ok\n"},
				},
			},
		},
	}

	cleaned := Clean(nb, 250)

	// 元は2出力のまま、複製は stream のみ
	assert.Len(t, nb.Cells[0].Outputs, 2)
	require.Len(t, cleaned.Cells[0].Outputs, 1)
	assert.Equal(t, "stream", cleaned.Cells[0].Outputs[0].OutputType)
}

func TestFirstMeaningfulLine(t *testing.T) {
	assert.Equal(t, "x = 1", firstMeaningfulLine("# comment\n\nx = 1\ny = 2\n", 50))
	assert.Equal(t, "", firstMeaningfulLine("# only comments\n", 50))
}

func TestFirstMeaningfulLine_RuneBoundary(t *testing.T) {
	// 50バイト目が3バイト文字の途中に落ちるケース
	line := strings.Repeat("検", 30) + " = compute()"

	got := firstMeaningfulLine(line+"\n", 50)
	assert.True(t, utf8.ValidString(got))
	assert.LessOrEqual(t, len(got), 50)
	assert.NotEmpty(t, got)
}
