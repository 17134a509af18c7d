package artifact

import (
	"fmt"
	"log/slog"
	"path"
	"regexp"
	"strings"

	"github.com/jinford/repo-optimizer/pkg/models"
	"github.com/jinford/repo-optimizer/pkg/optimizer/tuning"
)

var (
	// 8hex-4hex で始まるUUID様のパスセグメント
	uuidSegmentRe = regexp.MustCompile(`(?i)(^|/)[0-9a-f]{8}-[0-9a-f]{4}`)

	// 実験ランの成果物ディレクトリの形
	runDirRes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(^|/)mlruns/`),
		regexp.MustCompile(`(?i)(^|/)artifacts/`),
		regexp.MustCompile(`(?i)(^|/)wandb/`),
		// UUIDランディレクトリ
		regexp.MustCompile(`(?i)(^|/)[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}/`),
		// タイムスタンプ付きランディレクトリ (20240131_123456 等)
		regexp.MustCompile(`(^|/)\d{8}[_-]\d{6}/`),
		// 日付スタンプ付き出力ディレクトリ (outputs/2024-01-31 等)
		regexp.MustCompile(`(^|/)(outputs?|runs)/\d{4}-\d{2}-\d{2}`),
	}

	// 削除対象のパスに含まれていても残す設定・モデル・レポート類
	importantBasenameRes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)^mlproject$`),
		regexp.MustCompile(`(?i)^mlmodel$`),
		regexp.MustCompile(`(?i)^conda\.ya?ml$`),
		regexp.MustCompile(`(?i)^requirements\.txt$`),
		regexp.MustCompile(`(?i)^classification_report\.(json|txt)$`),
		regexp.MustCompile(`(?i)^(metrics|params)\.(json|ya?ml)$`),
		regexp.MustCompile(`(?i)^model\.(pkl|joblib|h5|pt|onnx)$`),
	}

	// 最終パスで基底名の重複を上限化する対象
	cappedBasenames = []string{"requirements.txt", "MLmodel", "classification_report.json"}
)

// Filter はML実験リポジトリの検出とアーティファクトの除去を行います
// 状態を持たず、入力リスト以外に副作用はありません
type Filter struct {
	cfg    tuning.DetectionConfig
	logger *slog.Logger
}

// New は新しいFilterを作成します
func New(cfg tuning.DetectionConfig, logger *slog.Logger) *Filter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Filter{cfg: cfg, logger: logger}
}

// DetectSignals はファイル一覧から実験管理ツールの痕跡を集計します
func (f *Filter) DetectSignals(files []string) models.MLExperimentSignals {
	var sig models.MLExperimentSignals
	for _, p := range files {
		lower := strings.ToLower(p)
		if strings.Contains(lower, "artifacts/") {
			sig.ArtifactCount++
		}
		if strings.Contains(lower, "mlruns/") {
			sig.MLRunCount++
		}
		if uuidSegmentRe.MatchString(p) {
			sig.UUIDPathCount++
		}

		base := strings.ToLower(path.Base(p))
		switch {
		case base == "mlproject":
			sig.HasMLProject = true
		case base == "mlflow.yml" || base == "mlflow.yaml":
			sig.HasMLFlowConfig = true
		case base == "dvc.yaml":
			sig.HasDVC = true
		}
		if strings.Contains(lower, "wandb/") {
			sig.HasWandb = true
		}
		if strings.HasPrefix(lower, ".dvc/") || strings.Contains(lower, "/.dvc/") {
			sig.HasDVC = true
		}
	}
	return sig
}

// IsMLRepo は一覧が実験管理ツール由来のノイズを大量に含むかを判定します
// 物量閾値とツール設定の痕跡の両方が揃ったときのみ真になります
// 小さな artifacts/ フォルダしか持たないリポジトリの誤検出を避けるための連言です
func (f *Filter) IsMLRepo(sig models.MLExperimentSignals) bool {
	volume := sig.ArtifactCount > f.cfg.ArtifactThreshold ||
		sig.MLRunCount > f.cfg.MLRunThreshold ||
		sig.UUIDPathCount > f.cfg.UUIDPathThreshold
	return volume && sig.HasToolingConfig()
}

// Apply はML実験リポジトリと判定された場合にアーティファクトを除去した一覧を返します
// 判定されなかった場合は入力をそのまま返します
func (f *Filter) Apply(files []string) models.RepositoryOptimizationResult {
	sig := f.DetectSignals(files)
	if !f.IsMLRepo(sig) {
		return models.RepositoryOptimizationResult{
			Files:         files,
			WasFiltered:   false,
			OriginalCount: len(files),
			FilteredCount: len(files),
		}
	}

	kept := make([]string, 0, len(files))
	for _, p := range files {
		if !isRunArtifactPath(p) {
			kept = append(kept, p)
			continue
		}
		if f.isImportantArtifact(p) {
			kept = append(kept, p)
		}
	}

	kept = capDuplicateBasenames(kept, f.cfg.DuplicateBasenameCap)

	reason := fmt.Sprintf(
		"ML実験アーティファクトを検出 (artifacts=%d, mlruns=%d, uuid=%d)",
		sig.ArtifactCount, sig.MLRunCount, sig.UUIDPathCount,
	)
	f.logger.Info("artifact filter applied",
		"originalCount", len(files),
		"filteredCount", len(kept),
		"reason", reason,
	)

	return models.RepositoryOptimizationResult{
		Files:         kept,
		WasFiltered:   true,
		FilterReason:  reason,
		OriginalCount: len(files),
		FilteredCount: len(kept),
	}
}

// isRunArtifactPath は既知の実験ラン成果物のパス形状に該当するかを返します
func isRunArtifactPath(p string) bool {
	for _, re := range runDirRes {
		if re.MatchString(p) {
			return true
		}
	}
	return false
}

// isImportantArtifact はアーティファクトパス内でも残すべきファイルかを判定します
// requirements.txt はルートから2階層以内にある場合のみ重複を許します
func (f *Filter) isImportantArtifact(p string) bool {
	base := path.Base(p)
	for _, re := range importantBasenameRes {
		if !re.MatchString(base) {
			continue
		}
		if strings.EqualFold(base, "requirements.txt") {
			// ルート近傍の優先: 深い実験フォルダ内の複製は捨てる
			return strings.Count(p, "/") <= 2
		}
		return true
	}
	return false
}

// capDuplicateBasenames は兄弟実験フォルダ由来の同名ファイルを上限数まで間引きます
// 対象の基底名が1つでも存在した場合、全滅させることはありません
func capDuplicateBasenames(files []string, limit int) []string {
	counts := make(map[string]int, len(cappedBasenames))
	result := make([]string, 0, len(files))
	for _, p := range files {
		target := cappedBasename(path.Base(p))
		if target == "" {
			result = append(result, p)
			continue
		}
		if counts[target] >= limit {
			continue
		}
		counts[target]++
		result = append(result, p)
	}
	return result
}

// cappedBasename は上限化対象の正規化済み基底名を返します（対象外は空文字）
func cappedBasename(base string) string {
	for _, target := range cappedBasenames {
		if strings.EqualFold(base, target) {
			return target
		}
	}
	return ""
}
