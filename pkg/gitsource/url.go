package gitsource

import (
	"fmt"
	"strings"

	giturls "github.com/whilp/git-urls"
)

// ParseRepoURL はGitリポジトリURLから owner と name を抽出します
// 例: https://github.com/user/repo.git -> ("user", "repo")
// 例: git@github.com:user/repo.git -> ("user", "repo")
func ParseRepoURL(rawURL string) (owner, name string, err error) {
	u, err := giturls.Parse(rawURL)
	if err != nil {
		return "", "", fmt.Errorf("リポジトリURLのパースに失敗: %w", err)
	}

	path := strings.TrimSuffix(strings.Trim(u.Path, "/"), ".git")
	parts := strings.Split(path, "/")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("owner/name を特定できないURLです: %s", rawURL)
	}
	return parts[len(parts)-2], parts[len(parts)-1], nil
}
