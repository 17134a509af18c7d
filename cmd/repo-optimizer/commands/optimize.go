package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/jinford/repo-optimizer/pkg/models"
	"github.com/jinford/repo-optimizer/pkg/optimizer"
)

// OptimizeRunAction は最適化パイプライン全体を実行するコマンドのアクション
func OptimizeRunAction(ctx context.Context, cmd *cli.Command) error {
	repoURL := cmd.String("repo")
	localPath := cmd.String("local")
	commit := cmd.String("commit")
	courseID := cmd.String("course")
	rubricFile := cmd.String("rubric-file")
	selectArg := cmd.String("select")
	output := cmd.String("output")
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

	slog.Info("最適化パイプラインを開始",
		"repo", ref.String(),
		"course", courseID,
	)

	orch, err := appCtx.NewOrchestrator(source)
	if err != nil {
		return err
	}

	course := models.CourseContext{CourseID: courseID}
	if rubricFile != "" {
		rubric, err := os.ReadFile(rubricFile)
		if err != nil {
			return fmt.Errorf("ルーブリックの読み込みに失敗: %w", err)
		}
		course.Rubric = string(rubric)
	}

	pkg, err := orch.Run(ctx, ref, course, buildSelectFunc(selectArg))
	if err != nil {
		slog.Error("最適化パイプラインに失敗しました", "error", err)
		return err
	}

	slog.Info("最適化パイプラインが完了しました",
		"runID", pkg.RunID.String(),
		"files", pkg.TotalFiles,
		"tokenSavings", pkg.TotalTokenSavings,
		"discovery", pkg.Timings.Discovery.String(),
		"contentFetch", pkg.Timings.ContentFetch.String(),
		"optimization", pkg.Timings.Optimization.String(),
	)

	return writeJSON(output, pkg)
}

// buildSelectFunc は --select のカンマ区切り指定を選定関数へ変換する
// 未指定のときは nil を返し、候補全件がそのまま選定される
func buildSelectFunc(selectArg string) optimizer.SelectFunc {
	if selectArg == "" {
		return nil
	}
	var requested []string
	for _, p := range strings.Split(selectArg, ",") {
		if p = strings.TrimSpace(p); p != "" {
			requested = append(requested, p)
		}
	}
	return func(ctx context.Context, candidates []string) ([]string, error) {
		return requested, nil
	}
}

// writeJSON は結果をファイルまたは標準出力へJSONとして書き出す
func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("結果のJSON変換に失敗: %w", err)
	}

	if path == "" {
		fmt.Println(string(data))
		return nil
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("結果の書き込みに失敗: %w", err)
	}
	slog.Info("結果を書き込みました", "path", path)
	return nil
}
