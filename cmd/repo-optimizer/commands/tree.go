package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/urfave/cli/v3"

	"github.com/jinford/repo-optimizer/pkg/optimizer/classifier"
	"github.com/jinford/repo-optimizer/pkg/optimizer/resolver"
)

// TreeResolveAction は完全なファイル一覧を解決するコマンドのアクション
func TreeResolveAction(ctx context.Context, cmd *cli.Command) error {
	repoURL := cmd.String("repo")
	localPath := cmd.String("local")
	commit := cmd.String("commit")
	showStats := cmd.Bool("stats")
	envFile := cmd.String("env")

	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	ref, source, err := appCtx.ResolveTarget(repoURL, localPath, commit)
	if err != nil {
		return err
	}

	cls, err := classifier.New()
	if err != nil {
		return fmt.Errorf("分類器の初期化に失敗: %w", err)
	}

	res := resolver.New(source, cls, appCtx.Tuning, appCtx.Logger)
	paths, stats, err := res.Resolve(ctx, ref)
	if err != nil {
		slog.Error("ツリー解決に失敗しました", "error", err)
		return err
	}

	for _, p := range paths {
		fmt.Println(p)
	}

	if showStats {
		return writeJSON("", struct {
			Repo  string         `json:"repo"`
			Stats resolver.Stats `json:"stats"`
		}{Repo: ref.String(), Stats: stats})
	}

	slog.Info("ツリー解決が完了しました",
		"repo", ref.String(),
		"entries", stats.TotalEntries,
		"truncated", stats.Truncated,
		"recoveryCalls", stats.RecoveryCalls,
	)
	return nil
}
