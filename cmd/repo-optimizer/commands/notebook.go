package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/jinford/repo-optimizer/pkg/models"
	"github.com/jinford/repo-optimizer/pkg/optimizer/notebook"
)

// NotebookCompressAction はローカルの.ipynbファイルを圧縮するコマンドのアクション
func NotebookCompressAction(ctx context.Context, cmd *cli.Command) error {
	file := cmd.String("file")
	courseID := cmd.String("course")
	output := cmd.String("output")
	envFile := cmd.String("env")

	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	data, err := os.ReadFile(file)
	if err != nil {
		return fmt.Errorf("ノートブックの読み込みに失敗: %w", err)
	}

	compressor := notebook.NewCompressor(appCtx.Tuning, appCtx.Logger)
	course := models.CourseContext{CourseID: courseID}

	optimized := compressor.Compress(string(data), course)
	if optimized == nil {
		return errors.New("空のノートブックは圧縮できません")
	}

	slog.Info("ノートブック圧縮が完了しました",
		"file", file,
		"originalTokens", optimized.OriginalSize,
		"optimizedTokens", optimized.OptimizedSize,
		"compressionRatio", fmt.Sprintf("%.2f", optimized.CompressionRatio),
		"degraded", optimized.Metadata["degraded"] == "true",
	)

	if output == "" {
		fmt.Println(optimized.Content)
		return nil
	}
	if err := os.WriteFile(output, []byte(optimized.Content), 0644); err != nil {
		return fmt.Errorf("圧縮結果の書き込みに失敗: %w", err)
	}
	slog.Info("圧縮結果を書き込みました", "path", output)
	return nil
}
