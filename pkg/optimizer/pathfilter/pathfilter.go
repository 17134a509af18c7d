package pathfilter

import (
	gitignore "github.com/sabhiram/go-gitignore"
)

// Filter は候補ファイル一覧からテキスト評価に不要なノイズを除外します
// ローカルFSではなくAPIから取得したパス一覧に対して適用します
type Filter struct {
	matcher *gitignore.GitIgnore
}

// New は既定パターンに追加パターンを加えたFilterを作成します
func New(extraPatterns ...string) *Filter {
	patterns := append(defaultExcludePatterns(), extraPatterns...)
	return &Filter{
		matcher: gitignore.CompileIgnoreLines(patterns...),
	}
}

// ShouldExclude はパスが除外対象かどうかを判定します
func (f *Filter) ShouldExclude(path string) bool {
	if f.matcher == nil {
		return false
	}
	return f.matcher.MatchesPath(path)
}

// Apply は除外対象を取り除いた一覧を返します
func (f *Filter) Apply(paths []string) []string {
	kept := make([]string, 0, len(paths))
	for _, p := range paths {
		if !f.ShouldExclude(p) {
			kept = append(kept, p)
		}
	}
	return kept
}

// defaultExcludePatterns はテキスト評価器が解釈できないファイルの既定パターンを返します
func defaultExcludePatterns() []string {
	return []string{
		// Git管理ファイル
		".git/",
		".gitattributes",
		".gitmodules",

		// 依存関係・ビルド成果物
		"node_modules/",
		"vendor/",
		"dist/",
		"build/",
		"*.egg-info/",

		// IDE/エディタ
		".vscode/",
		".idea/",
		".DS_Store",
		"*.swp",

		// バイナリ・アーカイブ
		"*.exe",
		"*.dll",
		"*.so",
		"*.dylib",
		"*.zip",
		"*.tar",
		"*.gz",
		"*.7z",

		// 画像・メディア（テキスト評価不能でサイズ支配的）
		"*.png",
		"*.jpg",
		"*.jpeg",
		"*.gif",
		"*.bmp",
		"*.ico",
		"*.mp4",
		"*.mp3",
		"*.wav",

		// フォント
		"*.ttf",
		"*.otf",
		"*.woff",
		"*.woff2",

		// モデル・データのバイナリ
		"*.pkl",
		"*.joblib",
		"*.h5",
		"*.pt",
		"*.pth",
		"*.onnx",
		"*.npy",
		"*.npz",
		"*.parquet",
		"*.db",
		"*.sqlite",

		// キャッシュ
		"__pycache__/",
		"*.pyc",
		".pytest_cache/",
		".cache/",
		".ipynb_checkpoints/",

		// ログ・一時ファイル
		"*.log",
		"*.tmp",
	}
}
