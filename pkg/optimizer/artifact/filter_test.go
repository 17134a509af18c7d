package artifact

import (
	"fmt"
	"path"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jinford/repo-optimizer/pkg/optimizer/tuning"
)

func newTestFilter() *Filter {
	return New(tuning.Default().Detection, nil)
}

// mlRepoFiles は mlruns/ 配下にUUIDランを持つ実験リポジトリの一覧を生成します
func mlRepoFiles(runs int) []string {
	files := []string{
		"README.md",
		"requirements.txt",
		"MLproject",
		"src/train.py",
		"src/evaluate.py",
	}
	for i := 0; i < runs; i++ {
		run := fmt.Sprintf("mlruns/0/%08x-ab12-cd34-ef56-%012x", i, i)
		files = append(files,
			run+"/meta.yaml",
			run+"/metrics/accuracy",
			run+"/artifacts/model/MLmodel",
			run+"/artifacts/model/requirements.txt",
		)
	}
	return files
}

func TestApply_NotMLRepo_PassThrough(t *testing.T) {
	f := newTestFilter()

	// artifacts/ フォルダが少量あるだけでは除去しない
	files := []string{
		"README.md",
		"artifacts/report.pdf",
		"artifacts/summary.md",
		"src/main.py",
	}

	result := f.Apply(files)

	assert.False(t, result.WasFiltered)
	assert.Empty(t, result.FilterReason)
	assert.Equal(t, files, result.Files)
	assert.Equal(t, len(files), result.OriginalCount)
	assert.Equal(t, len(files), result.FilteredCount)
}

func TestApply_VolumeWithoutToolingConfig_PassThrough(t *testing.T) {
	f := newTestFilter()

	// 物量閾値は超えるがツール設定の痕跡がない → 連言が成立しない
	files := make([]string, 0, 200)
	for i := 0; i < 200; i++ {
		files = append(files, fmt.Sprintf("artifacts/output_%d.bin", i))
	}

	result := f.Apply(files)
	assert.False(t, result.WasFiltered)
}

func TestApply_MLRepo_EndToEnd(t *testing.T) {
	f := newTestFilter()

	// 1200ファイル規模、UUIDラン80本、MLproject あり
	files := mlRepoFiles(80)
	for i := len(files); i < 1200; i++ {
		files = append(files, fmt.Sprintf("data/raw/part_%04d.csv", i))
	}
	require.GreaterOrEqual(t, len(files), 1200)

	sig := f.DetectSignals(files)
	assert.True(t, f.IsMLRepo(sig))

	result := f.Apply(files)
	assert.True(t, result.WasFiltered)
	// ラン由来の約320ファイルが消える
	assert.Less(t, result.FilteredCount, result.OriginalCount-300)
	assert.Contains(t, result.Files, "MLproject")
	assert.Contains(t, result.Files, "src/train.py")
	assert.LessOrEqual(t, result.FilteredCount, result.OriginalCount)
}

func TestApply_CountInvariant(t *testing.T) {
	f := newTestFilter()

	for _, files := range [][]string{
		nil,
		{"README.md"},
		mlRepoFiles(100),
	} {
		result := f.Apply(files)
		assert.LessOrEqual(t, result.FilteredCount, result.OriginalCount)
		assert.Equal(t, len(result.Files), result.FilteredCount)
	}
}

func TestApply_DuplicateBasenameCap(t *testing.T) {
	f := newTestFilter()
	result := f.Apply(mlRepoFiles(100))
	require.True(t, result.WasFiltered)

	counts := map[string]int{}
	for _, p := range result.Files {
		counts[path.Base(p)]++
	}

	// 上限は2件、かつ1件は必ず残る
	assert.LessOrEqual(t, counts["requirements.txt"], 2)
	assert.GreaterOrEqual(t, counts["requirements.txt"], 1)
	assert.LessOrEqual(t, counts["MLmodel"], 2)
	assert.GreaterOrEqual(t, counts["MLmodel"], 1)
}

func TestApply_RequirementsRootPreference(t *testing.T) {
	f := newTestFilter()
	result := f.Apply(mlRepoFiles(100))
	require.True(t, result.WasFiltered)

	// ルート直下の requirements.txt は残り、深い実験フォルダ内の複製は消える
	assert.Contains(t, result.Files, "requirements.txt")
	for _, p := range result.Files {
		if path.Base(p) == "requirements.txt" {
			assert.LessOrEqual(t, strings.Count(p, "/"), 2)
		}
	}
}

func TestDetectSignals_Counts(t *testing.T) {
	f := newTestFilter()

	sig := f.DetectSignals([]string{
		"artifacts/model.bin",
		"mlruns/0/abcdef12-3456-7890-abcd-ef1234567890/meta.yaml",
		"wandb/run-20240101/log.txt",
		"dvc.yaml",
		".dvc/config",
	})

	assert.Equal(t, 1, sig.ArtifactCount)
	assert.Equal(t, 1, sig.MLRunCount)
	assert.Equal(t, 1, sig.UUIDPathCount)
	assert.True(t, sig.HasWandb)
	assert.True(t, sig.HasDVC)
	assert.False(t, sig.HasMLProject)
	assert.True(t, sig.HasToolingConfig())
}

func TestDetectSignals_DateStampedOutputs(t *testing.T) {
	assert.True(t, isRunArtifactPath("outputs/2024-03-01/predictions.csv"))
	assert.True(t, isRunArtifactPath("runs/2024-03-01_model/weights.bin"))
	assert.True(t, isRunArtifactPath("exp/20240301_121500/log.txt"))
	assert.False(t, isRunArtifactPath("src/train.py"))
}
