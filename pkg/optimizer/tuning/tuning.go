package tuning

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config はエンジン全体の調整値を表します
// 各既定値は手調整された定数であり、導出根拠を持たないため
// 固定値ではなく設定可能なデフォルトとして公開します
type Config struct {
	Detection DetectionConfig `yaml:"detection"`
	Recovery  RecoveryConfig  `yaml:"recovery"`
	Notebook  NotebookConfig  `yaml:"notebook"`

	// DirectoryPriorities は欠損ディレクトリ復旧時の取得順を決めるスコア表
	DirectoryPriorities map[string]int `yaml:"directory_priorities"`

	// CourseKeywords はコースIDごとのセル優先度キーワード
	CourseKeywords map[string][]string `yaml:"course_keywords"`
}

// DetectionConfig はML実験リポジトリ検出の閾値を表します
type DetectionConfig struct {
	ArtifactThreshold    int `yaml:"artifact_threshold"`
	MLRunThreshold       int `yaml:"mlrun_threshold"`
	UUIDPathThreshold    int `yaml:"uuid_path_threshold"`
	DuplicateBasenameCap int `yaml:"duplicate_basename_cap"`
}

// RecoveryConfig はツリー復旧の予算とスロットリングを表します
type RecoveryConfig struct {
	EntryThreshold int `yaml:"entry_threshold"`
	MaxCalls       int `yaml:"max_calls"`
	MaxRootProbes  int `yaml:"max_root_probes"`
	InitialDelayMS int `yaml:"initial_delay_ms"`
	MaxDelayMS     int `yaml:"max_delay_ms"`
}

// InitialDelay は復旧呼び出し間の初期待機時間を返します
func (r RecoveryConfig) InitialDelay() time.Duration {
	return time.Duration(r.InitialDelayMS) * time.Millisecond
}

// MaxDelay は復旧呼び出し間の最大待機時間を返します
func (r RecoveryConfig) MaxDelay() time.Duration {
	return time.Duration(r.MaxDelayMS) * time.Millisecond
}

// NotebookConfig はノートブック圧縮の予算を表します
// トークン数は文字数/4 の概算で、閾値はこの概算に対して調整済みです
type NotebookConfig struct {
	MainLogicBudgetTokens int     `yaml:"main_logic_budget_tokens"`
	OutputTokenCeiling    int     `yaml:"output_token_ceiling"`
	LargeCellTokens       int     `yaml:"large_cell_tokens"`
	AlwaysIncludeScore    float64 `yaml:"always_include_score"`
	MediumScoreFloor      float64 `yaml:"medium_score_floor"`
	MaxLogicGroups        int     `yaml:"max_logic_groups"`
	SummaryLineMaxChars   int     `yaml:"summary_line_max_chars"`
}

// Default は既定の調整値を返します
func Default() Config {
	return Config{
		Detection: DetectionConfig{
			ArtifactThreshold:    100,
			MLRunThreshold:       50,
			UUIDPathThreshold:    50,
			DuplicateBasenameCap: 2,
		},
		Recovery: RecoveryConfig{
			EntryThreshold: 1000,
			MaxCalls:       15,
			MaxRootProbes:  10,
			InitialDelayMS: 300,
			MaxDelayMS:     1000,
		},
		Notebook: NotebookConfig{
			MainLogicBudgetTokens: 8000,
			OutputTokenCeiling:    250,
			LargeCellTokens:       1000,
			AlwaysIncludeScore:    0.8,
			MediumScoreFloor:      0.5,
			MaxLogicGroups:        5,
			SummaryLineMaxChars:   50,
		},
		DirectoryPriorities: map[string]int{
			"src":       100,
			"lib":       95,
			"app":       90,
			"infra":     70,
			"tests":     65,
			"test":      65,
			"pipelines": 60,
			"web":       40,
			"data":      35,
			"docs":      30,
			"config":    25,
			"tools":     20,
		},
		CourseKeywords: map[string][]string{
			"ml-engineering": {"train", "model", "pipeline", "metric", "dataset", "feature"},
			"data-analysis":  {"dataframe", "plot", "aggregate", "groupby", "correlation"},
			"mlops":          {"deploy", "docker", "mlflow", "monitor", "registry", "serving"},
		},
	}
}

// Load はyamlファイルの内容を既定値へ上書きして返します
// path が空の場合は既定値をそのまま返します
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("調整ファイルの読み込みに失敗: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("調整ファイルのパースに失敗: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate は調整値の整合性を検証します
func (c Config) Validate() error {
	if c.Recovery.MaxCalls <= 0 {
		return fmt.Errorf("recovery.max_calls は正の値が必要です: %d", c.Recovery.MaxCalls)
	}
	if c.Recovery.EntryThreshold <= 0 {
		return fmt.Errorf("recovery.entry_threshold は正の値が必要です: %d", c.Recovery.EntryThreshold)
	}
	if c.Recovery.InitialDelayMS > c.Recovery.MaxDelayMS {
		return fmt.Errorf("recovery.initial_delay_ms が max_delay_ms を超えています")
	}
	if c.Notebook.MainLogicBudgetTokens <= 0 {
		return fmt.Errorf("notebook.main_logic_budget_tokens は正の値が必要です: %d", c.Notebook.MainLogicBudgetTokens)
	}
	if c.Notebook.AlwaysIncludeScore < 0 || c.Notebook.AlwaysIncludeScore > 1 {
		return fmt.Errorf("notebook.always_include_score は0〜1の範囲が必要です: %f", c.Notebook.AlwaysIncludeScore)
	}
	if c.Detection.DuplicateBasenameCap < 1 {
		return fmt.Errorf("detection.duplicate_basename_cap は1以上が必要です: %d", c.Detection.DuplicateBasenameCap)
	}
	return nil
}

// DirectoryPriority はトップレベルディレクトリの復旧優先度を返します
// 表にないディレクトリは中間の既定値になります
func (c Config) DirectoryPriority(dir string) int {
	if p, ok := c.DirectoryPriorities[dir]; ok {
		return p
	}
	return 50
}

// KeywordsFor はコースIDに対応するキーワード集合を返します
func (c Config) KeywordsFor(courseID string) []string {
	if kws, ok := c.CourseKeywords[courseID]; ok {
		return kws
	}
	return nil
}
