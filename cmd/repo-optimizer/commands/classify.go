package commands

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/urfave/cli/v3"

	"github.com/jinford/repo-optimizer/pkg/optimizer/classifier"
	"github.com/jinford/repo-optimizer/pkg/optimizer/resolver"
)

// classifyReport は分類結果の出力形式を表す
type classifyReport struct {
	Repo             string              `json:"repo"`
	Categories       map[string][]string `json:"categories"`
	MissingCanonical map[string][]string `json:"missingCanonical,omitempty"`
}

// ClassifyRunAction はリポジトリのファイルを目的別に分類するコマンドのアクション
func ClassifyRunAction(ctx context.Context, cmd *cli.Command) error {
	repoURL := cmd.String("repo")
	localPath := cmd.String("local")
	commit := cmd.String("commit")
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
	paths, _, err := res.Resolve(ctx, ref)
	if err != nil {
		slog.Error("ツリー解決に失敗しました", "error", err)
		return err
	}

	result := cls.Classify(paths)
	report := buildClassifyReport(ref.String(), result)

	slog.Info("ファイル分類が完了しました",
		"repo", ref.String(),
		"categories", len(report.Categories),
		"missingCanonical", len(report.MissingCanonical),
	)
	return writeJSON("", report)
}

// buildClassifyReport は分類結果をカテゴリ別に整形する
func buildClassifyReport(repo string, result classifier.Result) classifyReport {
	categories := make(map[string][]string)
	for category, paths := range result.Matches {
		sorted := append([]string(nil), paths...)
		sort.Strings(sorted)
		categories[string(category)] = sorted
	}

	missing := make(map[string][]string)
	for category, candidates := range result.MissingCanonical {
		missing[string(category)] = append([]string(nil), candidates...)
	}

	return classifyReport{
		Repo:             repo,
		Categories:       categories,
		MissingCanonical: missing,
	}
}
