package classifier

// DefaultMatchers は既定のカテゴリ→パターンテーブルを返します
// クラス階層ではなく宣言的なテーブルとして保持します
func DefaultMatchers() []Matcher {
	return []Matcher{
		{
			Category:    CategoryDocumentation,
			Priority:    90,
			Description: "README・実行手順などのドキュメント",
			Patterns: []string{
				`^readme(\.(md|rst|txt))?$`,
				`^how_to_run\.md$`,
				`^howto(\.(md|txt))?$`,
				`^changelog(\.(md|rst|txt))?$`,
				`^contributing\.md$`,
				`^docs?\.md$`,
			},
			CanonicalFiles: []string{"README.md", "how_to_run.md"},
		},
		{
			Category:    CategoryEnvironment,
			Priority:    88,
			Description: "依存関係・実行環境の定義",
			Patterns: []string{
				`^requirements(-\w+)?\.txt$`,
				`^environment\.ya?ml$`,
				`^pipfile(\.lock)?$`,
				`^pyproject\.toml$`,
				`^poetry\.lock$`,
				`^setup\.(py|cfg)$`,
				`^package(-lock)?\.json$`,
				`^conda\.ya?ml$`,
			},
			CanonicalFiles: []string{"requirements.txt", "environment.yml", "pyproject.toml"},
		},
		{
			Category:    CategoryBuild,
			Priority:    70,
			Description: "ビルド定義",
			Patterns: []string{
				`^makefile$`,
				`^build\.(sh|gradle)$`,
				`^cmakelists\.txt$`,
				`^justfile$`,
				`^tox\.ini$`,
			},
			CanonicalFiles: []string{"Makefile"},
		},
		{
			Category:    CategoryWorkflow,
			Priority:    65,
			Description: "実行・学習パイプラインのエントリポイント",
			Patterns: []string{
				`^(run|main|train|pipeline|workflow)\.(py|sh|ipynb)$`,
				`^dvc\.ya?ml$`,
				`^snakefile$`,
				`^params\.ya?ml$`,
			},
			CanonicalFiles: []string{"main.py", "run.sh"},
		},
		{
			Category:    CategoryCICD,
			Priority:    75,
			Description: "CI/CD 定義（周知のサブディレクトリを含むフルパス照合）",
			Patterns: []string{
				`(^|/)\.github/workflows/[^/]+\.ya?ml$`,
				`(^|/)\.gitlab-ci\.ya?ml$`,
				`(^|/)jenkinsfile$`,
				`(^|/)\.circleci/config\.ya?ml$`,
				`(^|/)azure-pipelines\.ya?ml$`,
				`(^|/)\.travis\.ya?ml$`,
			},
			CanonicalFiles: []string{".github/workflows/ci.yml"},
			MatchFullPath:  true,
		},
		{
			Category:    CategoryInfrastructure,
			Priority:    68,
			Description: "コンテナ・IaC 定義（フルパス照合）",
			Patterns: []string{
				`(^|/)dockerfile([.\-][\w.\-]+)?$`,
				`(^|/)docker-compose([.\-][\w.\-]+)?\.ya?ml$`,
				`(^|/)(k8s|kubernetes|manifests)/[^/]+\.ya?ml$`,
				`(^|/)[^/]+\.tf$`,
				`(^|/)helm/.*\.ya?ml$`,
				`(^|/)ansible/.*\.ya?ml$`,
			},
			CanonicalFiles: []string{"Dockerfile", "docker-compose.yml"},
			MatchFullPath:  true,
		},
	}
}
