package resolver

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jinford/repo-optimizer/pkg/models"
	"github.com/jinford/repo-optimizer/pkg/optimizer/classifier"
	"github.com/jinford/repo-optimizer/pkg/optimizer/tuning"
)

var testRef = models.RepoRef{Owner: "acme", Name: "ml-course", Commit: "abc123"}

// fakeSource は呼び出し回数を記録するテスト用Source実装です
type fakeSource struct {
	recursive     models.TreeListing
	recursiveErr  error
	root          models.TreeListing
	rootErr       error
	subtrees      map[string]models.TreeListing
	existingFiles map[string]bool

	recursiveCalls int
	rootCalls      int
	subtreeCalls   int
	probeCalls     int
}

func (f *fakeSource) GetRecursiveTree(ctx context.Context, ref models.RepoRef) (models.TreeListing, error) {
	f.recursiveCalls++
	return f.recursive, f.recursiveErr
}

func (f *fakeSource) GetRootTree(ctx context.Context, ref models.RepoRef) (models.TreeListing, error) {
	f.rootCalls++
	return f.root, f.rootErr
}

func (f *fakeSource) GetSubtree(ctx context.Context, ref models.RepoRef, dir string) (models.TreeListing, error) {
	f.subtreeCalls++
	if sub, ok := f.subtrees[dir]; ok {
		return sub, nil
	}
	return models.TreeListing{}, errors.New("subtree not found")
}

func (f *fakeSource) FileExists(ctx context.Context, ref models.RepoRef, path string) (bool, error) {
	f.probeCalls++
	return f.existingFiles[path], nil
}

func (f *fakeSource) recoveryCalls() int {
	return f.rootCalls + f.subtreeCalls + f.probeCalls
}

func newTestResolver(t *testing.T, src *fakeSource) *Resolver {
	t.Helper()
	cls, err := classifier.New()
	require.NoError(t, err)
	r := New(src, cls, tuning.Default(), nil)
	// テストでは実際に待機しない
	r.sleep = func(ctx context.Context, d time.Duration) {}
	return r
}

// blobs は n 個のblobエントリを持つ一覧を生成します
func blobs(prefix string, n int) []models.RepositoryFile {
	files := make([]models.RepositoryFile, 0, n)
	for i := 0; i < n; i++ {
		files = append(files, models.RepositoryFile{
			Path: fmt.Sprintf("%s/file_%04d.py", prefix, i),
			Type: models.FileTypeBlob,
		})
	}
	return files
}

func TestResolve_NotTruncated(t *testing.T) {
	src := &fakeSource{
		recursive: models.TreeListing{Files: blobs("pkg", 30)},
	}

	paths, stats, err := newTestResolver(t, src).Resolve(context.Background(), testRef)
	require.NoError(t, err)

	assert.Len(t, paths, 30)
	assert.Zero(t, src.recoveryCalls())
	assert.False(t, stats.Truncated)
}

func TestResolve_SmallTruncatedTree_NoRecovery(t *testing.T) {
	// 閾値未満（500件）は truncated でも復旧コストを払わない
	src := &fakeSource{
		recursive: models.TreeListing{Files: blobs("pkg", 500), Truncated: true},
	}

	paths, stats, err := newTestResolver(t, src).Resolve(context.Background(), testRef)
	require.NoError(t, err)

	assert.Len(t, paths, 500)
	assert.Zero(t, src.recoveryCalls())
	assert.True(t, stats.Truncated)
	assert.Zero(t, stats.RecoveryCalls)
}

func TestResolve_LargeTruncatedTree_RecoversMissingDir(t *testing.T) {
	// 1500件の切り詰め済み一覧。src/ は再帰一覧に無いがルートツリーには居る
	recursive := models.TreeListing{
		Files:     append(blobs("data", 800), blobs("notebooks", 700)...),
		Truncated: true,
	}
	src := &fakeSource{
		recursive: recursive,
		root: models.TreeListing{Files: []models.RepositoryFile{
			{Path: "data", Type: models.FileTypeTree},
			{Path: "notebooks", Type: models.FileTypeTree},
			{Path: "src", Type: models.FileTypeTree},
		}},
		subtrees: map[string]models.TreeListing{
			"src": {Files: []models.RepositoryFile{
				{Path: "src/train.py", Type: models.FileTypeBlob},
				{Path: "src/model.py", Type: models.FileTypeBlob},
			}},
		},
	}

	paths, stats, err := newTestResolver(t, src).Resolve(context.Background(), testRef)
	require.NoError(t, err)

	var srcPaths []string
	for _, p := range paths {
		if strings.HasPrefix(p, "src/") {
			srcPaths = append(srcPaths, p)
		}
	}
	assert.NotEmpty(t, srcPaths, "src/ 配下のパスが復旧されること")
	assert.Equal(t, 1, src.rootCalls)
	assert.Equal(t, 1, src.subtreeCalls)
	assert.Greater(t, stats.RecoveredPaths, 0)
}

func TestResolve_ProbesCanonicalRootFiles(t *testing.T) {
	src := &fakeSource{
		recursive: models.TreeListing{Files: blobs("src", 1200), Truncated: true},
		root: models.TreeListing{Files: []models.RepositoryFile{
			{Path: "src", Type: models.FileTypeTree},
		}},
		existingFiles: map[string]bool{"README.md": true},
	}

	paths, _, err := newTestResolver(t, src).Resolve(context.Background(), testRef)
	require.NoError(t, err)

	assert.Contains(t, paths, "README.md")
	assert.Greater(t, src.probeCalls, 0)
	assert.LessOrEqual(t, src.probeCalls, 10)
}

func TestResolve_BudgetBound(t *testing.T) {
	// 欠損ディレクトリが大量にあっても総呼び出しは予算以下
	rootFiles := []models.RepositoryFile{}
	for i := 0; i < 40; i++ {
		rootFiles = append(rootFiles, models.RepositoryFile{
			Path: fmt.Sprintf("dir%02d", i),
			Type: models.FileTypeTree,
		})
	}
	src := &fakeSource{
		recursive: models.TreeListing{Files: blobs("observed", 1100), Truncated: true},
		root:      models.TreeListing{Files: rootFiles},
		subtrees:  map[string]models.TreeListing{},
	}

	_, stats, err := newTestResolver(t, src).Resolve(context.Background(), testRef)
	require.NoError(t, err)

	assert.LessOrEqual(t, stats.RecoveryCalls, tuning.Default().Recovery.MaxCalls)
	assert.LessOrEqual(t, src.recoveryCalls(), tuning.Default().Recovery.MaxCalls)
	assert.True(t, stats.BudgetExhausted)
}

func TestResolve_PriorityOrdering(t *testing.T) {
	// src は docs より先に取得される
	// 既定ルートファイルを揃えてプローブを不要にし、予算をサブツリー取得に回す
	observed := append(blobs("observed", 1100),
		models.RepositoryFile{Path: "README.md", Type: models.FileTypeBlob},
		models.RepositoryFile{Path: "how_to_run.md", Type: models.FileTypeBlob},
		models.RepositoryFile{Path: "requirements.txt", Type: models.FileTypeBlob},
		models.RepositoryFile{Path: "environment.yml", Type: models.FileTypeBlob},
		models.RepositoryFile{Path: "pyproject.toml", Type: models.FileTypeBlob},
	)
	src := &fakeSource{
		recursive: models.TreeListing{Files: observed, Truncated: true},
		root: models.TreeListing{Files: []models.RepositoryFile{
			{Path: "docs", Type: models.FileTypeTree},
			{Path: "src", Type: models.FileTypeTree},
		}},
		subtrees: map[string]models.TreeListing{
			"src":  {Files: []models.RepositoryFile{{Path: "src/a.py", Type: models.FileTypeBlob}}},
			"docs": {Files: []models.RepositoryFile{{Path: "docs/a.md", Type: models.FileTypeBlob}}},
		},
	}

	r := newTestResolver(t, src)
	// 予算をルートツリー+プローブ+サブツリー1件分に絞る
	r.cfg.Recovery.MaxCalls = 2

	paths, _, err := r.Resolve(context.Background(), testRef)
	require.NoError(t, err)

	assert.Contains(t, paths, "src/a.py")
	assert.NotContains(t, paths, "docs/a.md")
}

func TestResolve_InitialFetchFailure(t *testing.T) {
	src := &fakeSource{recursiveErr: errors.New("connection refused")}

	_, _, err := newTestResolver(t, src).Resolve(context.Background(), testRef)
	assert.Error(t, err)
}

func TestResolve_PartialRecoveryFailureIsSilent(t *testing.T) {
	// ルートツリー取得が失敗しても結果は初回一覧へフォールバック
	src := &fakeSource{
		recursive: models.TreeListing{Files: blobs("src", 1200), Truncated: true},
		rootErr:   errors.New("rate limited"),
	}

	paths, _, err := newTestResolver(t, src).Resolve(context.Background(), testRef)
	require.NoError(t, err)
	assert.Len(t, paths, 1200)
}

func TestResolve_Dedupes(t *testing.T) {
	files := append(blobs("src", 10), blobs("src", 10)...)
	src := &fakeSource{recursive: models.TreeListing{Files: files}}

	paths, _, err := newTestResolver(t, src).Resolve(context.Background(), testRef)
	require.NoError(t, err)
	assert.Len(t, paths, 10)
}
