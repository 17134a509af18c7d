package resolver

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/jinford/repo-optimizer/pkg/models"
	"github.com/jinford/repo-optimizer/pkg/optimizer/classifier"
	"github.com/jinford/repo-optimizer/pkg/optimizer/tuning"
)

// Source はリゾルバが消費するツリー・存在確認エンドポイントを抽象化します
// pkg/github のAPIクライアントと pkg/gitsource のローカル実装が満たします
type Source interface {
	GetRecursiveTree(ctx context.Context, ref models.RepoRef) (models.TreeListing, error)
	GetRootTree(ctx context.Context, ref models.RepoRef) (models.TreeListing, error)
	GetSubtree(ctx context.Context, ref models.RepoRef, dir string) (models.TreeListing, error)
	FileExists(ctx context.Context, ref models.RepoRef, path string) (bool, error)
}

// Stats は1回の解決で行った復旧処理の観測値を表します
type Stats struct {
	TotalEntries    int  `json:"totalEntries"`
	Truncated       bool `json:"truncated"`
	RecoveryCalls   int  `json:"recoveryCalls"`
	RecoveredPaths  int  `json:"recoveredPaths"`
	BudgetExhausted bool `json:"budgetExhausted"`
}

// Resolver はAPIの切り詰めから復旧しつつ完全なblobパス集合を解決します
type Resolver struct {
	source     Source
	classifier *classifier.Classifier
	cfg        tuning.Config
	logger     *slog.Logger

	// レートリミット対応の待機。テストで差し替えます
	sleep func(ctx context.Context, d time.Duration)
}

// New は新しいResolverを作成します
func New(source Source, cls *classifier.Classifier, cfg tuning.Config, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		source:     source,
		classifier: cls,
		cfg:        cfg,
		logger:     logger,
		sleep:      sleepWithContext,
	}
}

func sleepWithContext(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// Resolve はコミットの全blobパスを重複なしで返します
// 初回の再帰ツリー取得の失敗のみがエラーになり、復旧の部分失敗は結果の劣化に留まります
func (r *Resolver) Resolve(ctx context.Context, ref models.RepoRef) ([]string, Stats, error) {
	listing, err := r.source.GetRecursiveTree(ctx, ref)
	if err != nil {
		// 構造が一切得られない唯一の致命的ケース
		return nil, Stats{}, fmt.Errorf("再帰ツリーの取得に失敗: %w", err)
	}

	stats := Stats{
		TotalEntries: len(listing.Files),
		Truncated:    listing.Truncated,
	}

	paths := dedupe(listing.BlobPaths())
	if len(paths) == 0 {
		return nil, stats, fmt.Errorf("リポジトリ %s のツリーが空です", ref)
	}

	if !listing.Truncated {
		return paths, stats, nil
	}

	if len(listing.Files) < r.cfg.Recovery.EntryThreshold {
		// この規模ではプロバイダの安全マージンが実コンテンツを落とすことは稀
		// 復旧コストを払わずそのまま返す
		r.logger.Warn("ツリーが切り詰められていますが小規模のため復旧をスキップします",
			"repo", ref.String(),
			"entries", len(listing.Files),
		)
		return paths, stats, nil
	}

	recovered := r.recover(ctx, ref, listing, &stats)
	merged := dedupe(append(paths, recovered...))
	stats.RecoveredPaths = len(merged) - len(paths)

	r.logger.Info("切り詰められたツリーを復旧しました",
		"repo", ref.String(),
		"recoveryCalls", stats.RecoveryCalls,
		"recoveredPaths", stats.RecoveredPaths,
		"budgetExhausted", stats.BudgetExhausted,
	)
	return merged, stats, nil
}

// recover は予算内で欠損ルートファイルと欠損ディレクトリを取得します
// 個々の失敗は想定内として黙ってスキップし、決して全体を失敗させません
func (r *Resolver) recover(ctx context.Context, ref models.RepoRef, listing models.TreeListing, stats *Stats) []string {
	budget := newCallBudget(r, stats)
	var recovered []string

	// (1) 分類器が期待する既定ルートファイルの存在確認
	recovered = append(recovered, r.probeCanonicalRootFiles(ctx, ref, listing, budget)...)

	// (2) 非再帰ルートツリーとの構造差分で欠損トップレベルディレクトリを発見
	missing := r.discoverMissingDirs(ctx, ref, listing, budget)

	// (3) 優先度順に欠損ディレクトリを取得
	sort.SliceStable(missing, func(i, j int) bool {
		return r.cfg.DirectoryPriority(missing[i]) > r.cfg.DirectoryPriority(missing[j])
	})
	for _, dir := range missing {
		if !budget.spend(ctx) {
			break
		}
		sub, err := r.source.GetSubtree(ctx, ref, dir)
		if err != nil {
			r.logger.Debug("サブツリーの取得をスキップします", "dir", dir, "error", err)
			continue
		}
		recovered = append(recovered, sub.BlobPaths()...)
	}

	return recovered
}

// probeCanonicalRootFiles は一覧に無い既定ルートファイルを直接確認します
func (r *Resolver) probeCanonicalRootFiles(ctx context.Context, ref models.RepoRef, listing models.TreeListing, budget *callBudget) []string {
	present := make(map[string]bool)
	for _, f := range listing.Files {
		if f.IsRootLevel() {
			present[strings.ToLower(f.Path)] = true
		}
	}

	var found []string
	probes := 0
	for _, name := range r.classifier.CanonicalFiles() {
		if probes >= r.cfg.Recovery.MaxRootProbes {
			break
		}
		if present[strings.ToLower(name)] {
			continue
		}
		if !budget.spend(ctx) {
			break
		}
		probes++
		exists, err := r.source.FileExists(ctx, ref, name)
		if err != nil {
			r.logger.Debug("ルートファイルの確認をスキップします", "path", name, "error", err)
			continue
		}
		if exists {
			found = append(found, name)
		}
	}
	return found
}

// discoverMissingDirs はルートツリーとの集合差分で欠損トップレベルディレクトリを求めます
// ハードコードされたディレクトリ一覧ではなく実際の構造差分です
func (r *Resolver) discoverMissingDirs(ctx context.Context, ref models.RepoRef, listing models.TreeListing, budget *callBudget) []string {
	if !budget.spend(ctx) {
		return nil
	}
	root, err := r.source.GetRootTree(ctx, ref)
	if err != nil {
		r.logger.Debug("ルートツリーの取得をスキップします", "error", err)
		return nil
	}

	observed := listing.TopLevelDirs()
	var missing []string
	for _, f := range root.Files {
		if f.Type == models.FileTypeTree && !observed[f.Path] {
			missing = append(missing, f.Path)
		}
	}
	return missing
}

// callBudget は復旧呼び出しの上限とスロットリングを管理します
type callBudget struct {
	r       *Resolver
	stats   *Stats
	used    int
	delay   time.Duration
	maxUsed int
}

func newCallBudget(r *Resolver, stats *Stats) *callBudget {
	return &callBudget{
		r:       r,
		stats:   stats,
		delay:   r.cfg.Recovery.InitialDelay(),
		maxUsed: r.cfg.Recovery.MaxCalls,
	}
}

// spend は1回分の呼び出し枠を確保し、レート制限のための待機を行います
// 予算が尽きている場合は false を返します
func (b *callBudget) spend(ctx context.Context) bool {
	if ctx.Err() != nil {
		return false
	}
	if b.used >= b.maxUsed {
		if !b.stats.BudgetExhausted {
			b.stats.BudgetExhausted = true
			b.r.logger.Warn("復旧呼び出しの予算を使い切りました", "maxCalls", b.maxUsed)
		}
		return false
	}
	b.r.sleep(ctx, b.delay)
	// 呼び出しを重ねるごとに待機を延ばし上限で頭打ちにする
	b.delay += b.delay / 2
	if limit := b.r.cfg.Recovery.MaxDelay(); b.delay > limit {
		b.delay = limit
	}
	b.used++
	b.stats.RecoveryCalls++
	return true
}

// dedupe は順序を保ちながら重複を取り除きます
func dedupe(paths []string) []string {
	seen := make(map[string]bool, len(paths))
	result := make([]string, 0, len(paths))
	for _, p := range paths {
		if !seen[p] {
			seen[p] = true
			result = append(result, p)
		}
	}
	return result
}
