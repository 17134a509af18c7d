package optimizer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/go-enry/go-enry/v2"
	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/jinford/repo-optimizer/pkg/cache"
	"github.com/jinford/repo-optimizer/pkg/models"
	"github.com/jinford/repo-optimizer/pkg/optimizer/artifact"
	"github.com/jinford/repo-optimizer/pkg/optimizer/notebook"
	"github.com/jinford/repo-optimizer/pkg/optimizer/pathfilter"
	"github.com/jinford/repo-optimizer/pkg/optimizer/resolver"
	"github.com/jinford/repo-optimizer/pkg/optimizer/tuning"
)

// ContentSource はパス単位のコンテンツ取得を抽象化します
type ContentSource interface {
	FetchContent(ctx context.Context, ref models.RepoRef, path string) (string, error)
}

// SelectFunc は外部のファイル選定ステージを表します
// 候補一覧を受け取り、評価対象へ絞り込んだパス一覧を返します
type SelectFunc func(ctx context.Context, candidates []string) ([]string, error)

// Orchestrator は探索→選定→取得→最適化のパイプラインを構成します
type Orchestrator struct {
	resolver       *resolver.Resolver
	contents       ContentSource
	artifactFilter *artifact.Filter
	pathFilter     *pathfilter.Filter
	compressor     *notebook.Compressor
	tokenCounter   *TokenCounter
	contentCache   *lru.Cache[string, string]
	resultCache    cache.Store
	logger         *slog.Logger
}

// Options はOrchestratorの任意依存を表します
type Options struct {
	// ResultCache は圧縮済みノートブックの注入可能なキャッシュ（省略可）
	ResultCache cache.Store

	// ContentCacheSize はプロセス内コンテンツLRUの上限（省略時128）
	ContentCacheSize int
}

// NewOrchestrator は新しいOrchestratorを作成します
func NewOrchestrator(
	res *resolver.Resolver,
	contents ContentSource,
	cfg tuning.Config,
	logger *slog.Logger,
	opts Options,
) (*Orchestrator, error) {
	if logger == nil {
		logger = slog.Default()
	}
	size := opts.ContentCacheSize
	if size <= 0 {
		size = 128
	}
	contentCache, err := lru.New[string, string](size)
	if err != nil {
		return nil, fmt.Errorf("コンテンツキャッシュの作成に失敗: %w", err)
	}

	return &Orchestrator{
		resolver:       res,
		contents:       contents,
		artifactFilter: artifact.New(cfg.Detection, logger),
		pathFilter:     pathfilter.New(),
		compressor:     notebook.NewCompressor(cfg, logger),
		tokenCounter:   NewTokenCounter(logger),
		contentCache:   contentCache,
		resultCache:    opts.ResultCache,
		logger:         logger,
	}, nil
}

// DiscoveryResult は探索フェーズの成果を表します
type DiscoveryResult struct {
	Candidates []string                            `json:"candidates"`
	Resolver   resolver.Stats                      `json:"resolver"`
	Artifact   models.RepositoryOptimizationResult `json:"artifact"`
}

// Discover は完全なファイル一覧を解決し、アーティファクトとノイズを除去した候補を返します
// アーティファクト検出は全量の一覧に対して走ります。ノイズ除去を先に行うと
// バイナリ系の実験成果物が数えられず検出閾値を下回ってしまいます
func (o *Orchestrator) Discover(ctx context.Context, ref models.RepoRef) (*DiscoveryResult, error) {
	paths, stats, err := o.resolver.Resolve(ctx, ref)
	if err != nil {
		return nil, err
	}

	artifactResult := o.artifactFilter.Apply(paths)
	candidates := o.pathFilter.Apply(artifactResult.Files)

	return &DiscoveryResult{
		Candidates: candidates,
		Resolver:   stats,
		Artifact:   artifactResult,
	}, nil
}

// Run はパイプライン全体を実行し、評価器へ渡す最終パッケージを返します
// selectFn が nil の場合は候補全件を選定結果とみなします
func (o *Orchestrator) Run(ctx context.Context, ref models.RepoRef, course models.CourseContext, selectFn SelectFunc) (*models.SelectionPackage, error) {
	var timings models.PhaseTimings

	discoveryStart := time.Now()
	discovery, err := o.Discover(ctx, ref)
	if err != nil {
		return nil, err
	}
	timings.Discovery = time.Since(discoveryStart)

	selectionStart := time.Now()
	selected := discovery.Candidates
	if selectFn != nil {
		selected, err = selectFn(ctx, discovery.Candidates)
		if err != nil {
			return nil, fmt.Errorf("ファイル選定ステージに失敗: %w", err)
		}
	}
	timings.Selection = time.Since(selectionStart)

	pkg, err := o.OptimizeSelected(ctx, ref, course, selected)
	if err != nil {
		return nil, err
	}
	pkg.Timings.Discovery = timings.Discovery
	pkg.Timings.Selection = timings.Selection
	return pkg, nil
}

// OptimizeSelected は選定済みパスのコンテンツを取得し最適化します
// 要求されたパスごとにちょうど1件の OptimizedFile を保証します
// 個別の取得失敗はバッチを中断せず、空コンテンツのプレースホルダになります
func (o *Orchestrator) OptimizeSelected(ctx context.Context, ref models.RepoRef, course models.CourseContext, selected []string) (*models.SelectionPackage, error) {
	var timings models.PhaseTimings

	fetchStart := time.Now()
	contents := make(map[string]string, len(selected))
	failed := make(map[string]bool)
	for _, p := range selected {
		content, err := o.fetchContent(ctx, ref, p)
		if err != nil {
			o.logger.Debug("コンテンツ取得に失敗したためプレースホルダを使用します", "path", p, "error", err)
			failed[p] = true
			continue
		}
		contents[p] = content
	}
	timings.ContentFetch = time.Since(fetchStart)

	optimizeStart := time.Now()
	files := make([]models.OptimizedFile, 0, len(selected))
	savings := 0
	exactTokens := 0
	for _, p := range selected {
		if failed[p] {
			files = append(files, models.OptimizedFile{
				Path:        p,
				Type:        models.OptimizedFileTypeRegular,
				FetchFailed: true,
			})
			continue
		}

		content := contents[p]
		file := o.optimizeFile(ref, p, content, course)
		if file.Type == models.OptimizedFileTypeNotebook {
			savings += file.OriginalSize - file.OptimizedSize
		}
		exactTokens += o.tokenCounter.Count(file.Content)
		files = append(files, file)
	}
	timings.Optimization = time.Since(optimizeStart)

	return &models.SelectionPackage{
		RunID:             uuid.New(),
		Repo:              ref,
		Files:             files,
		Timings:           timings,
		TotalTokenSavings: savings,
		TotalFiles:        len(files),
		ExactTokenCount:   exactTokens,
	}, nil
}

// optimizeFile は1ファイルをノートブック圧縮または素通しで最適化します
func (o *Orchestrator) optimizeFile(ref models.RepoRef, p, content string, course models.CourseContext) models.OptimizedFile {
	if strings.EqualFold(path.Ext(p), ".ipynb") {
		if optimized := o.compressNotebook(ref, p, content, course); optimized != nil {
			return models.OptimizedFile{
				Path:          p,
				Content:       optimized.Content,
				Type:          models.OptimizedFileTypeNotebook,
				Language:      "Jupyter Notebook",
				OriginalSize:  optimized.OriginalSize,
				OptimizedSize: optimized.OptimizedSize,
				Truncated:     optimized.Metadata["truncated"] == "true",
			}
		}
	}

	size := EstimateTokens(content)
	return models.OptimizedFile{
		Path:          p,
		Content:       content,
		Type:          models.OptimizedFileTypeRegular,
		Language:      enry.GetLanguage(path.Base(p), []byte(content)),
		OriginalSize:  size,
		OptimizedSize: size,
	}
}

// compressNotebook は結果キャッシュを経由してノートブックを圧縮します
func (o *Orchestrator) compressNotebook(ref models.RepoRef, p, content string, course models.CourseContext) *models.OptimizedNotebook {
	key := ref.Commit + ":" + p

	if o.resultCache != nil {
		if data, ok, err := o.resultCache.Get(key); err == nil && ok {
			var cached models.OptimizedNotebook
			if json.Unmarshal(data, &cached) == nil {
				return &cached
			}
		}
	}

	optimized := o.compressor.Compress(content, course)
	if optimized == nil {
		return nil
	}

	if o.resultCache != nil {
		if data, err := json.Marshal(optimized); err == nil {
			if err := o.resultCache.Put(key, data); err != nil {
				o.logger.Debug("結果キャッシュへの保存に失敗しました", "key", key, "error", err)
			}
		}
	}
	return optimized
}

// fetchContent はLRUを経由してコンテンツを取得します
// 復旧フェーズで触れたパスを選定後に再取得するケースの二重呼び出しを抑えます
func (o *Orchestrator) fetchContent(ctx context.Context, ref models.RepoRef, p string) (string, error) {
	key := ref.String() + ":" + p
	if content, ok := o.contentCache.Get(key); ok {
		return content, nil
	}

	content, err := o.contents.FetchContent(ctx, ref, p)
	if err != nil {
		return "", err
	}
	o.contentCache.Add(key, content)
	return content, nil
}
