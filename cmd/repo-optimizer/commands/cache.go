package commands

import (
	"context"
	"errors"
	"log/slog"

	"github.com/urfave/cli/v3"

	"github.com/jinford/repo-optimizer/pkg/cache"
)

// CacheStatsAction はキャッシュのエントリ数を表示するコマンドのアクション
func CacheStatsAction(ctx context.Context, cmd *cli.Command) error {
	envFile := cmd.String("env")

	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	if path := cmd.String("path"); path != "" {
		appCtx.Config.Cache.Path = path
	}

	store, err := openBoltCache(appCtx)
	if err != nil {
		return err
	}

	count, err := store.Len()
	if err != nil {
		return err
	}

	return writeJSON("", struct {
		Path    string `json:"path"`
		Entries int    `json:"entries"`
	}{Path: appCtx.Config.Cache.Path, Entries: count})
}

// CacheClearAction はキャッシュを全消去するコマンドのアクション
func CacheClearAction(ctx context.Context, cmd *cli.Command) error {
	envFile := cmd.String("env")

	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	if path := cmd.String("path"); path != "" {
		appCtx.Config.Cache.Path = path
	}

	store, err := openBoltCache(appCtx)
	if err != nil {
		return err
	}

	if err := store.Clear(); err != nil {
		return err
	}
	slog.Info("キャッシュを消去しました", "path", appCtx.Config.Cache.Path)
	return nil
}

// openBoltCache は統計・消去操作向けにbboltキャッシュを開く
func openBoltCache(appCtx *AppContext) (*cache.BoltStore, error) {
	store, err := appCtx.ResultCache()
	if err != nil {
		return nil, err
	}
	if store == nil {
		return nil, errors.New("CACHE_PATH が未設定のためキャッシュは無効です")
	}
	bolt, ok := store.(*cache.BoltStore)
	if !ok {
		return nil, errors.New("このキャッシュ実装は統計に対応していません")
	}
	return bolt, nil
}
