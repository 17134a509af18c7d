package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jinford/repo-optimizer/cmd/repo-optimizer/commands"
	"github.com/urfave/cli/v3"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 構造化ログの設定（コマンド側で設定読み込み後に再初期化される）
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	app := &cli.Command{
		Name:  "repo-optimizer",
		Usage: "リポジトリコンテンツの選定・最適化エンジン",
		Commands: []*cli.Command{
			{
				Name:  "optimize",
				Usage: "最適化パイプラインコマンド",
				Commands: []*cli.Command{
					{
						Name:  "run",
						Usage: "探索から最適化までのパイプラインを実行",
						Flags: []cli.Flag{
							&cli.StringFlag{
								Name:  "env",
								Usage: "環境変数ファイルパス",
								Value: ".env",
							},
							&cli.StringFlag{
								Name:  "repo",
								Usage: "GitHubリポジトリURL（例: https://github.com/acme/demo）",
							},
							&cli.StringFlag{
								Name:  "local",
								Usage: "ローカルGitリポジトリのパス（--repoの代わりに使用）",
							},
							&cli.StringFlag{
								Name:     "commit",
								Usage:    "対象コミットSHAまたは参照",
								Required: true,
							},
							&cli.StringFlag{
								Name:  "course",
								Usage: "コースID（ノートブック優先度付けに使用）",
							},
							&cli.StringFlag{
								Name:  "rubric-file",
								Usage: "ルーブリック本文のファイルパス（キーワード抽出に使用）",
							},
							&cli.StringFlag{
								Name:  "select",
								Usage: "評価対象パスのカンマ区切り指定（省略時は候補全件）",
							},
							&cli.StringFlag{
								Name:  "output",
								Usage: "結果JSONの出力ファイルパス（省略時は標準出力）",
							},
						},
						Action: commands.OptimizeRunAction,
					},
				},
			},
			{
				Name:  "tree",
				Usage: "ツリー解決コマンド",
				Commands: []*cli.Command{
					{
						Name:  "resolve",
						Usage: "完全なファイル一覧を解決（切り詰め復旧込み）",
						Flags: []cli.Flag{
							&cli.StringFlag{
								Name:  "env",
								Usage: "環境変数ファイルパス",
								Value: ".env",
							},
							&cli.StringFlag{
								Name:  "repo",
								Usage: "GitHubリポジトリURL",
							},
							&cli.StringFlag{
								Name:  "local",
								Usage: "ローカルGitリポジトリのパス（--repoの代わりに使用）",
							},
							&cli.StringFlag{
								Name:     "commit",
								Usage:    "対象コミットSHAまたは参照",
								Required: true,
							},
							&cli.BoolFlag{
								Name:  "stats",
								Usage: "復旧統計も出力する",
							},
						},
						Action: commands.TreeResolveAction,
					},
				},
			},
			{
				Name:  "notebook",
				Usage: "ノートブック圧縮コマンド",
				Commands: []*cli.Command{
					{
						Name:  "compress",
						Usage: "Jupyterノートブックを構造化Markdownに圧縮",
						Flags: []cli.Flag{
							&cli.StringFlag{
								Name:  "env",
								Usage: "環境変数ファイルパス",
								Value: ".env",
							},
							&cli.StringFlag{
								Name:     "file",
								Usage:    ".ipynbファイルのパス",
								Required: true,
							},
							&cli.StringFlag{
								Name:  "course",
								Usage: "コースID（キーワード重み付けに使用）",
							},
							&cli.StringFlag{
								Name:  "output",
								Usage: "出力ファイルパス（省略時は標準出力）",
							},
						},
						Action: commands.NotebookCompressAction,
					},
				},
			},
			{
				Name:  "classify",
				Usage: "ファイル分類コマンド",
				Commands: []*cli.Command{
					{
						Name:  "run",
						Usage: "リポジトリのファイルを目的別に分類",
						Flags: []cli.Flag{
							&cli.StringFlag{
								Name:  "env",
								Usage: "環境変数ファイルパス",
								Value: ".env",
							},
							&cli.StringFlag{
								Name:  "repo",
								Usage: "GitHubリポジトリURL",
							},
							&cli.StringFlag{
								Name:  "local",
								Usage: "ローカルGitリポジトリのパス（--repoの代わりに使用）",
							},
							&cli.StringFlag{
								Name:     "commit",
								Usage:    "対象コミットSHAまたは参照",
								Required: true,
							},
						},
						Action: commands.ClassifyRunAction,
					},
				},
			},
			{
				Name:  "cache",
				Usage: "結果キャッシュ管理コマンド",
				Commands: []*cli.Command{
					{
						Name:  "stats",
						Usage: "キャッシュのエントリ数を表示",
						Flags: []cli.Flag{
							&cli.StringFlag{
								Name:  "env",
								Usage: "環境変数ファイルパス",
								Value: ".env",
							},
							&cli.StringFlag{
								Name:  "path",
								Usage: "キャッシュファイルのパス（省略時はCACHE_PATH）",
							},
						},
						Action: commands.CacheStatsAction,
					},
					{
						Name:  "clear",
						Usage: "キャッシュを全消去",
						Flags: []cli.Flag{
							&cli.StringFlag{
								Name:  "env",
								Usage: "環境変数ファイルパス",
								Value: ".env",
							},
							&cli.StringFlag{
								Name:  "path",
								Usage: "キャッシュファイルのパス（省略時はCACHE_PATH）",
							},
						},
						Action: commands.CacheClearAction,
					},
				},
			},
		},
	}

	if err := app.Run(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}
