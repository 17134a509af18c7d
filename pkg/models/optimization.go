package models

import (
	"time"

	"github.com/google/uuid"
)

// MLExperimentSignals はファイル一覧から導出した実験管理ツールの痕跡を表します
// 各カウントは常に0以上です
type MLExperimentSignals struct {
	ArtifactCount   int  `json:"artifactCount"`
	MLRunCount      int  `json:"mlrunCount"`
	UUIDPathCount   int  `json:"uuidPathCount"`
	HasMLProject    bool `json:"hasMLProject"`
	HasMLFlowConfig bool `json:"hasMLFlowConfig"`
	HasWandb        bool `json:"hasWandb"`
	HasDVC          bool `json:"hasDVC"`
}

// HasToolingConfig は実験管理ツールの設定ファイルが1つでも存在するかを返します
func (s MLExperimentSignals) HasToolingConfig() bool {
	return s.HasMLProject || s.HasMLFlowConfig || s.HasWandb || s.HasDVC
}

// RepositoryOptimizationResult はアーティファクトフィルタの結果を表します
// 不変条件: FilteredCount <= OriginalCount
type RepositoryOptimizationResult struct {
	Files         []string `json:"files"`
	WasFiltered   bool     `json:"wasFiltered"`
	FilterReason  string   `json:"filterReason,omitempty"`
	OriginalCount int      `json:"originalCount"`
	FilteredCount int      `json:"filteredCount"`
}

// OptimizedFileType は最終パッケージ内のエントリ種別を表します
type OptimizedFileType string

const (
	OptimizedFileTypeNotebook OptimizedFileType = "notebook"
	OptimizedFileTypeRegular  OptimizedFileType = "regular"
)

// OptimizedFile は圧縮済みノートブックまたは素通しの通常ファイルを表します
type OptimizedFile struct {
	Path          string            `json:"path"`
	Content       string            `json:"content"`
	Type          OptimizedFileType `json:"type"`
	Language      string            `json:"language,omitempty"`
	OriginalSize  int               `json:"originalSize"`
	OptimizedSize int               `json:"optimizedSize"`
	Truncated     bool              `json:"truncated,omitempty"`
	FetchFailed   bool              `json:"fetchFailed,omitempty"`
}

// PhaseTimings は最適化パイプラインのフェーズ別処理時間を表します
type PhaseTimings struct {
	Discovery    time.Duration `json:"discovery"`
	Selection    time.Duration `json:"selection"`
	ContentFetch time.Duration `json:"contentFetch"`
	Optimization time.Duration `json:"optimization"`
}

// SelectionPackage は評価器へ渡す最終成果物を表します
// Files は要求されたパスごとにちょうど1件含まれます
type SelectionPackage struct {
	RunID             uuid.UUID       `json:"runID"`
	Repo              RepoRef         `json:"repo"`
	Files             []OptimizedFile `json:"files"`
	Timings           PhaseTimings    `json:"timings"`
	TotalTokenSavings int             `json:"totalTokenSavings"`
	TotalFiles        int             `json:"totalFiles"`
	ExactTokenCount   int             `json:"exactTokenCount,omitempty"`
}

// CourseContext はノートブック優先度付けに使うコース情報を表します
type CourseContext struct {
	CourseID string `json:"courseID"`
	Rubric   string `json:"rubric,omitempty"`
}
