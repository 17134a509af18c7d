package notebook

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jinford/repo-optimizer/pkg/models"
	"github.com/jinford/repo-optimizer/pkg/optimizer/tuning"
)

var testCourse = models.CourseContext{CourseID: "ml-engineering"}

func newTestCompressor() *Compressor {
	return NewCompressor(tuning.Default(), nil)
}

// notebookJSON はセル定義からipynb形式のJSONを生成します
func notebookJSON(t *testing.T, cells []map[string]any) string {
	t.Helper()
	data, err := json.Marshal(map[string]any{
		"nbformat":       4,
		"nbformat_minor": 5,
		"cells":          cells,
	})
	require.NoError(t, err)
	return string(data)
}

func codeCell(source string, outputs ...map[string]any) map[string]any {
	cell := map[string]any{
		"cell_type": "code",
		"source":    source,
		"outputs":   outputs,
	}
	return cell
}

func TestCompress_BasicNotebook(t *testing.T) {
	raw := notebookJSON(t, []map[string]any{
		{"cell_type": "markdown", "source": "# 実験ノート"},
		codeCell("import pandas as pd\nimport numpy as np\n"),
		codeCell("def train_model(df):\n    model = fit(df)\n    return model\n"),
		codeCell("x = 1\n"),
	})

	result := newTestCompressor().Compress(raw, testCourse)
	require.NotNil(t, result)

	assert.Contains(t, result.Content, "## 概要")
	assert.Contains(t, result.Content, "import pandas as pd")
	assert.Contains(t, result.Content, "def train_model")
	assert.Contains(t, result.Content, "## 構造統計")
	assert.Equal(t, "false", result.Metadata["degraded"])
	assert.GreaterOrEqual(t, result.CompressionRatio, 0.0)
	assert.LessOrEqual(t, result.CompressionRatio, 1.0)
}

func TestCompress_ErrorKeptStreamTruncated(t *testing.T) {
	longStream := strings.Repeat("epoch log line\n", 134) // 約2000文字
	require.GreaterOrEqual(t, len(longStream), 2000)

	raw := notebookJSON(t, []map[string]any{
		codeCell("result = run()\nprint(result)\n",
			map[string]any{
				"output_type": "error",
				"ename":       "ValueError",
				"evalue":      "numeric column expected",
				"traceback":   []string{"Traceback (most recent call last):", "  line 2, in run"},
			},
			map[string]any{
				"output_type": "stream",
				"name":        "stdout",
				"text":        longStream,
			},
		),
	})

	result := newTestCompressor().Compress(raw, testCourse)
	require.NotNil(t, result)

	// エラー出力はそのまま残る
	assert.Contains(t, result.Content, "ValueError: numeric column expected")
	assert.Contains(t, result.Content, "Traceback (most recent call last):")

	// 長いストリーム出力は可視の目印付きで切り詰められる
	assert.Contains(t, result.Content, outputTruncationMarker)
	assert.NotContains(t, result.Content, longStream)
}

func TestCompress_DiscardsNonTextOutputs(t *testing.T) {
	raw := notebookJSON(t, []map[string]any{
		codeCell("plt.plot(data)\n",
			map[string]any{
				"output_type": "display_data",
				"data":        map[string]string{"image/png": strings.Repeat("iVBOR", 1000)},
			},
		),
	})

	result := newTestCompressor().Compress(raw, testCourse)
	require.NotNil(t, result)
	assert.NotContains(t, result.Content, "iVBOR")
}

func TestCompress_DegradedPath_InvalidJSON(t *testing.T) {
	raw := `{"nbformat": 4, "cells": [{"cell_type": "code", "source": "x =` // 途中で切れたJSON

	result := newTestCompressor().Compress(raw, testCourse)
	require.NotNil(t, result)

	assert.Equal(t, "true", result.Metadata["truncated"])
	assert.Equal(t, "true", result.Metadata["degraded"])
	assert.Contains(t, result.Content, "劣化モード")
	assert.Contains(t, result.Content, "nbformat")
}

func TestCompress_DegradedPath_TruncationMarker(t *testing.T) {
	raw := `{"nbformat": 4} [Content truncated by provider]`

	result := newTestCompressor().Compress(raw, testCourse)
	require.NotNil(t, result)
	assert.Equal(t, "true", result.Metadata["truncated"])
}

func TestCompress_EmptyInput(t *testing.T) {
	assert.Nil(t, newTestCompressor().Compress("", testCourse))
	assert.Nil(t, newTestCompressor().Compress("   \n", testCourse))
}

func TestCompress_RatioBounds(t *testing.T) {
	// 極小ノートブックでも ratio は [0,1] に収まり、サイズ超過は小さな定数倍まで
	raw := notebookJSON(t, []map[string]any{codeCell("x = 1\n")})

	result := newTestCompressor().Compress(raw, testCourse)
	require.NotNil(t, result)

	assert.GreaterOrEqual(t, result.CompressionRatio, 0.0)
	assert.LessOrEqual(t, result.CompressionRatio, 1.0)
	assert.LessOrEqual(t, result.OptimizedSize, result.OriginalSize*3+64)
}

func TestScoreCell_Weights(t *testing.T) {
	c := newTestCompressor()
	kws := []string{"train"}

	defCell := models.NotebookCell{CellType: models.CellTypeCode, Source: []string{"def f():\n", "    return 1\n"}}
	importCell := models.NotebookCell{CellType: models.CellTypeCode, Source: []string{"import os\n"}}
	assignCell := models.NotebookCell{CellType: models.CellTypeCode, Source: []string{"x = 1\n"}}
	mdCell := models.NotebookCell{CellType: models.CellTypeMarkdown, Source: []string{"# title\n"}}

	assert.InDelta(t, 0.8, c.scoreCell(defCell, nil), 0.001)
	assert.InDelta(t, 0.7, c.scoreCell(importCell, nil), 0.001)
	assert.InDelta(t, 0.4, c.scoreCell(assignCell, nil), 0.001)
	assert.InDelta(t, 0.3, c.scoreCell(mdCell, nil), 0.001)

	trainCell := models.NotebookCell{CellType: models.CellTypeCode, Source: []string{"model.train(data)\n"}}
	assert.InDelta(t, 0.6, c.scoreCell(trainCell, kws), 0.001)
}

func TestScoreCell_LargeCellPenalized(t *testing.T) {
	c := newTestCompressor()

	big := strings.Repeat("do_something(value)\n", 300) // 6000文字 ≈ 1500トークン
	cell := models.NotebookCell{CellType: models.CellTypeCode, Source: []string{big}}

	assert.InDelta(t, 0.3, c.scoreCell(cell, nil), 0.001)
}

func TestScoreCell_Clamped(t *testing.T) {
	c := newTestCompressor()

	// def + import + 制御フロー + キーワード多数 → 1.0 で頭打ち
	source := "import torch\nfrom torch import nn\n\ndef train(model, dataset):\n    for batch in dataset:\n        metric = step(model, batch)\n    return metric\n"
	cell := models.NotebookCell{CellType: models.CellTypeCode, Source: []string{source}}
	score := c.scoreCell(cell, []string{"train", "model", "dataset", "metric", "feature"})

	assert.LessOrEqual(t, score, 1.0)
	assert.GreaterOrEqual(t, score, 0.9)
}

func TestSelectMainLogic_BudgetAndAlwaysInclude(t *testing.T) {
	c := newTestCompressor()
	c.cfg.MainLogicBudgetTokens = 10 // わざと極小の予算

	cells := []models.NotebookCell{
		{CellType: models.CellTypeCode, Source: []string{"def train(df):\n    for x in df:\n        model = fit(x)\n    return model\n"}},
		{CellType: models.CellTypeCode, Source: []string{"# 前処理\nresult = preprocess(data, strategy)\nprint(result)\n"}},
	}
	scores := []float64{0.95, 0.6}

	selected, summaries := c.selectMainLogic(cells, scores)

	// 高優先度セルは予算超過でも必ず含まれる
	assert.Equal(t, []int{0}, selected)
	// 中優先度セルは1行要約で代替される（コメントはスキップ）
	require.Len(t, summaries, 1)
	assert.Equal(t, "result = preprocess(data, strategy)", summaries[0])
}

func TestSelectMainLogic_SummaryLineTruncated(t *testing.T) {
	c := newTestCompressor()
	c.cfg.MainLogicBudgetTokens = 1

	long := strings.Repeat("a", 80) + " = compute()"
	cells := []models.NotebookCell{
		{CellType: models.CellTypeCode, Source: []string{"def f():\n    return 1\n"}},
		{CellType: models.CellTypeCode, Source: []string{long + "\n"}},
	}
	// 2番目は中優先度で予算に入らない
	_, summaries := c.selectMainLogic(cells, []float64{0.9, 0.5})

	require.Len(t, summaries, 1)
	assert.Len(t, summaries[0], 50)
}

func TestCompress_SelectedMarkdownRetained(t *testing.T) {
	narrative := "正則化パラメータの感度を系統的に比較する"
	raw := notebookJSON(t, []map[string]any{
		{"cell_type": "markdown", "source": "## 実験方針\n" + narrative},
		codeCell("import numpy as np\n"),
		codeCell("x = 1\n"),
	})

	result := newTestCompressor().Compress(raw, testCourse)
	require.NotNil(t, result)

	// 予算に選択されたマークダウンの本文は最終テキストに現れる
	assert.Contains(t, result.Content, narrative)
}

func TestBuildComponents_AllSelectedCellsEmitted(t *testing.T) {
	c := newTestCompressor()
	nb := &models.NotebookContent{Cells: []models.NotebookCell{
		{CellType: models.CellTypeMarkdown, Source: []string{"## データ読み込みの方針\n"}},
		{CellType: models.CellTypeCode, Source: []string{"df = load(path)\n"}},
	}}

	comps := c.buildComponents(nb, []float64{0.3, 0.4})

	var all []string
	for _, group := range comps.LogicGroups {
		all = append(all, group...)
	}
	joined := strings.Join(all, "\n")

	// 予算を消費したセルは種別を問わず本文が残る
	assert.Contains(t, joined, "データ読み込みの方針")
	assert.Contains(t, joined, "df = load(path)")
}

func TestCompress_GroupCountBounded(t *testing.T) {
	var cells []map[string]any
	for i := 0; i < 12; i++ {
		cells = append(cells, codeCell("def step_"+strings.Repeat("x", i)+"():\n    return run()\n"))
	}
	raw := notebookJSON(t, cells)

	result := newTestCompressor().Compress(raw, testCourse)
	require.NotNil(t, result)

	assert.LessOrEqual(t, strings.Count(result.Content, "--- グループ"), 5)
}
