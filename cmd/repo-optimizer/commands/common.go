package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/jinford/repo-optimizer/internal/platform/config"
	"github.com/jinford/repo-optimizer/internal/platform/logger"
	"github.com/jinford/repo-optimizer/pkg/cache"
	"github.com/jinford/repo-optimizer/pkg/github"
	"github.com/jinford/repo-optimizer/pkg/gitsource"
	"github.com/jinford/repo-optimizer/pkg/models"
	"github.com/jinford/repo-optimizer/pkg/optimizer"
	"github.com/jinford/repo-optimizer/pkg/optimizer/classifier"
	"github.com/jinford/repo-optimizer/pkg/optimizer/resolver"
	"github.com/jinford/repo-optimizer/pkg/optimizer/tuning"
)

// RepoSource はツリー解決とコンテンツ取得の両方を提供するソースを表す
type RepoSource interface {
	resolver.Source
	optimizer.ContentSource
}

// AppContext はコマンド実行に必要な共通コンテキストを保持する
type AppContext struct {
	Config *config.Config
	Tuning tuning.Config
	Logger *slog.Logger

	store cache.Store
}

// NewAppContext は設定ファイルを読み込み、AppContext を作成する
func NewAppContext(ctx context.Context, envFile string) (*AppContext, error) {
	cfg, err := config.Load(envFile)
	if err != nil {
		return nil, fmt.Errorf("設定の読み込みに失敗: %w", err)
	}

	appLogger := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})

	tuningCfg, err := tuning.Load(cfg.TuningFile)
	if err != nil {
		return nil, fmt.Errorf("チューニング設定の読み込みに失敗: %w", err)
	}

	return &AppContext{
		Config: cfg,
		Tuning: tuningCfg,
		Logger: appLogger,
	}, nil
}

// Close はAppContextが保持するリソースをクリーンアップする
func (ac *AppContext) Close() {
	if ac.store != nil {
		if err := ac.store.Close(); err != nil {
			ac.Logger.Warn("キャッシュのクローズに失敗しました", "error", err)
		}
	}
}

// ResultCache は設定済みのbboltキャッシュを開いて返す
// CACHE_PATH が未設定の場合は nil を返し、キャッシュは無効になる
func (ac *AppContext) ResultCache() (cache.Store, error) {
	if ac.Config.Cache.Path == "" {
		return nil, nil
	}
	if ac.store != nil {
		return ac.store, nil
	}
	store, err := cache.NewBoltStore(ac.Config.Cache.Path)
	if err != nil {
		return nil, fmt.Errorf("結果キャッシュのオープンに失敗: %w", err)
	}
	ac.store = store
	return store, nil
}

// ResolveTarget は --repo / --local / --commit から対象リポジトリとソースを決定する
func (ac *AppContext) ResolveTarget(repoURL, localPath, commit string) (models.RepoRef, RepoSource, error) {
	ref, err := buildRepoRef(repoURL, localPath, commit)
	if err != nil {
		return models.RepoRef{}, nil, err
	}

	if localPath != "" {
		return ref, gitsource.NewLocal(localPath, ac.Logger), nil
	}
	client := github.NewClient(ac.Config.GitHub.BaseURL, ac.Config.GitHub.Token, ac.Logger)
	return ref, client, nil
}

// NewOrchestrator は依存を組み立てて最適化パイプラインを作成する
func (ac *AppContext) NewOrchestrator(source RepoSource) (*optimizer.Orchestrator, error) {
	cls, err := classifier.New()
	if err != nil {
		return nil, fmt.Errorf("分類器の初期化に失敗: %w", err)
	}

	resultCache, err := ac.ResultCache()
	if err != nil {
		return nil, err
	}

	res := resolver.New(source, cls, ac.Tuning, ac.Logger)
	return optimizer.NewOrchestrator(res, source, ac.Tuning, ac.Logger, optimizer.Options{
		ResultCache:      resultCache,
		ContentCacheSize: ac.Config.Cache.ContentCacheSize,
	})
}

// buildRepoRef はコマンドフラグから RepoRef を構築する
// --repo と --local はちょうど片方の指定が必要
func buildRepoRef(repoURL, localPath, commit string) (models.RepoRef, error) {
	if commit == "" {
		return models.RepoRef{}, errors.New("--commit の指定が必要です")
	}

	switch {
	case repoURL != "" && localPath != "":
		return models.RepoRef{}, errors.New("--repo と --local は同時に指定できません")
	case repoURL != "":
		owner, name, err := gitsource.ParseRepoURL(repoURL)
		if err != nil {
			return models.RepoRef{}, fmt.Errorf("リポジトリURLの解析に失敗: %w", err)
		}
		return models.RepoRef{Owner: owner, Name: name, Commit: commit}, nil
	case localPath != "":
		name := filepath.Base(filepath.Clean(localPath))
		return models.RepoRef{Owner: "local", Name: name, Commit: commit}, nil
	default:
		return models.RepoRef{}, errors.New("--repo または --local の指定が必要です")
	}
}
