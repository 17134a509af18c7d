package models

import "strings"

// RepoRef は最適化対象のリポジトリのコミット参照を表します
type RepoRef struct {
	Owner  string `json:"owner"`
	Name   string `json:"name"`
	Commit string `json:"commit"`
}

// String は owner/name@commit 形式の識別子を返します
func (r RepoRef) String() string {
	return r.Owner + "/" + r.Name + "@" + r.Commit
}

// FileType はツリーエントリの種別を表します
type FileType string

const (
	FileTypeBlob FileType = "blob"
	FileTypeTree FileType = "tree"
)

// RepositoryFile はリポジトリ内の1エントリを表します
// Path はリポジトリルートからのPOSIX形式の相対パスです
type RepositoryFile struct {
	Path string   `json:"path"`
	Type FileType `json:"type"`
}

// IsRootLevel はパスがルート直下（ディレクトリ区切りなし）かどうかを返します
func (f RepositoryFile) IsRootLevel() bool {
	return !strings.Contains(f.Path, "/")
}

// TreeListing はツリー取得APIのレスポンスを正規化したものです
type TreeListing struct {
	Files     []RepositoryFile `json:"files"`
	Truncated bool             `json:"truncated"`
}

// BlobPaths は blob エントリのパスのみを返します
func (l TreeListing) BlobPaths() []string {
	paths := make([]string, 0, len(l.Files))
	for _, f := range l.Files {
		if f.Type == FileTypeBlob {
			paths = append(paths, f.Path)
		}
	}
	return paths
}

// TopLevelDirs は一覧から観測できたトップレベルディレクトリの集合を返します
// blob のパスに含まれる親ディレクトリも観測対象に含めます
func (l TreeListing) TopLevelDirs() map[string]bool {
	dirs := make(map[string]bool)
	for _, f := range l.Files {
		if idx := strings.Index(f.Path, "/"); idx > 0 {
			dirs[f.Path[:idx]] = true
		} else if f.Type == FileTypeTree {
			dirs[f.Path] = true
		}
	}
	return dirs
}
