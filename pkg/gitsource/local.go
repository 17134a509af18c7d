package gitsource

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/jinford/repo-optimizer/pkg/models"
)

// Local はクローン済みリポジトリからツリーとコンテンツを提供します
// GitHub APIと同じ契約を満たすため、オフライン採点やテストで差し替えられます
// ローカルツリーに切り詰めは発生しないため Truncated は常に false です
type Local struct {
	repoPath string
	logger   *slog.Logger
}

// NewLocal は新しいLocalソースを作成します
func NewLocal(repoPath string, logger *slog.Logger) *Local {
	if logger == nil {
		logger = slog.Default()
	}
	return &Local{repoPath: repoPath, logger: logger}
}

// GetRecursiveTree はコミットの全エントリを列挙します
func (l *Local) GetRecursiveTree(ctx context.Context, ref models.RepoRef) (models.TreeListing, error) {
	tree, err := l.commitTree(ref.Commit)
	if err != nil {
		return models.TreeListing{}, err
	}
	return walkTree(tree, "", true)
}

// GetRootTree はルート直下のエントリのみを列挙します
func (l *Local) GetRootTree(ctx context.Context, ref models.RepoRef) (models.TreeListing, error) {
	tree, err := l.commitTree(ref.Commit)
	if err != nil {
		return models.TreeListing{}, err
	}
	return walkTree(tree, "", false)
}

// GetSubtree は指定ディレクトリ配下を列挙します
func (l *Local) GetSubtree(ctx context.Context, ref models.RepoRef, dir string) (models.TreeListing, error) {
	tree, err := l.commitTree(ref.Commit)
	if err != nil {
		return models.TreeListing{}, err
	}
	sub, err := tree.Tree(dir)
	if err != nil {
		return models.TreeListing{}, fmt.Errorf("サブツリー %s の解決に失敗: %w", dir, err)
	}
	return walkTree(sub, strings.TrimSuffix(dir, "/")+"/", true)
}

// FileExists はパスがコミットに存在するかを返します
func (l *Local) FileExists(ctx context.Context, ref models.RepoRef, path string) (bool, error) {
	tree, err := l.commitTree(ref.Commit)
	if err != nil {
		return false, err
	}
	if _, err := tree.File(path); err != nil {
		if errors.Is(err, object.ErrFileNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// FetchContent はパスのファイル内容を取得します
func (l *Local) FetchContent(ctx context.Context, ref models.RepoRef, path string) (string, error) {
	tree, err := l.commitTree(ref.Commit)
	if err != nil {
		return "", err
	}
	file, err := tree.File(path)
	if err != nil {
		return "", fmt.Errorf("ファイル %s の解決に失敗: %w", path, err)
	}
	content, err := file.Contents()
	if err != nil {
		return "", fmt.Errorf("ファイル %s の読み込みに失敗: %w", path, err)
	}
	return content, nil
}

// commitTree はrefを解決してコミットのツリーを取得します
func (l *Local) commitTree(ref string) (*object.Tree, error) {
	repo, err := git.PlainOpen(l.repoPath)
	if err != nil {
		return nil, fmt.Errorf("リポジトリを開けません: %w", err)
	}

	hash, err := repo.ResolveRevision(plumbing.Revision(ref))
	if err != nil {
		return nil, fmt.Errorf("ref %s の解決に失敗: %w", ref, err)
	}

	commit, err := repo.CommitObject(*hash)
	if err != nil {
		return nil, fmt.Errorf("コミットオブジェクトの取得に失敗: %w", err)
	}

	tree, err := commit.Tree()
	if err != nil {
		return nil, fmt.Errorf("コミットツリーの取得に失敗: %w", err)
	}
	return tree, nil
}

// walkTree はツリーを走査して一覧へ正規化します
func walkTree(tree *object.Tree, pathPrefix string, recursive bool) (models.TreeListing, error) {
	var listing models.TreeListing
	if pathPrefix == "/" {
		pathPrefix = ""
	}

	if !recursive {
		for _, entry := range tree.Entries {
			listing.Files = append(listing.Files, models.RepositoryFile{
				Path: pathPrefix + entry.Name,
				Type: entryType(entry.Mode),
			})
		}
		return listing, nil
	}

	walker := object.NewTreeWalker(tree, true, nil)
	defer walker.Close()
	for {
		name, entry, err := walker.Next()
		if err != nil {
			break
		}
		listing.Files = append(listing.Files, models.RepositoryFile{
			Path: pathPrefix + name,
			Type: entryType(entry.Mode),
		})
	}
	return listing, nil
}

func entryType(mode filemode.FileMode) models.FileType {
	if mode == filemode.Dir {
		return models.FileTypeTree
	}
	return models.FileTypeBlob
}
