package github

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jinford/repo-optimizer/pkg/models"
)

const (
	// DefaultBaseURL はGitHub REST APIの既定ベースURL
	DefaultBaseURL = "https://api.github.com"

	acceptHeader     = "application/vnd.github+json"
	apiVersionHeader = "2022-11-28"
)

// ErrNotFound はパスやツリーが存在しないことを表します
// リゾルバにとって欠損は想定内の結果であり、致命的エラーではありません
var ErrNotFound = errors.New("github: resource not found")

// Client はツリー取得・コンテンツ取得エンドポイントの薄いクライアントです
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient は新しいClientを作成します
// token が空の場合もエラーにはせず、レートリミット面のリスクとして警告します
func NewClient(baseURL, token string, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if logger == nil {
		logger = slog.Default()
	}
	if token == "" {
		logger.Warn("GitHubトークンが未設定のため公開アクセスで実行します (60 req/hr 制限の可能性)")
	}
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
	}
}

// treeResponse は git/trees エンドポイントのレスポンス
type treeResponse struct {
	Tree []struct {
		Path string `json:"path"`
		Type string `json:"type"`
	} `json:"tree"`
	Truncated bool `json:"truncated"`
}

// contentResponse は contents エンドポイントのレスポンス
type contentResponse struct {
	Type     string `json:"type"`
	Encoding string `json:"encoding"`
	Content  string `json:"content"`
}

// GetRecursiveTree はコミットの再帰ツリー一覧を取得します
func (c *Client) GetRecursiveTree(ctx context.Context, ref models.RepoRef) (models.TreeListing, error) {
	endpoint := fmt.Sprintf("%s/repos/%s/%s/git/trees/%s?recursive=1",
		c.baseURL, ref.Owner, ref.Name, url.PathEscape(ref.Commit))
	return c.getTree(ctx, endpoint, "")
}

// GetRootTree はコミットの非再帰ルートツリーを取得します
// 切り詰められた再帰一覧に対する構造差分の基準として使います
func (c *Client) GetRootTree(ctx context.Context, ref models.RepoRef) (models.TreeListing, error) {
	endpoint := fmt.Sprintf("%s/repos/%s/%s/git/trees/%s",
		c.baseURL, ref.Owner, ref.Name, url.PathEscape(ref.Commit))
	return c.getTree(ctx, endpoint, "")
}

// GetSubtree は指定サブディレクトリ配下の再帰ツリーを取得します
// 返却されるパスは dir を前置したリポジトリルート相対に正規化されます
func (c *Client) GetSubtree(ctx context.Context, ref models.RepoRef, dir string) (models.TreeListing, error) {
	// tree_sha には "commit:path" 形式の参照を使える
	treeRef := ref.Commit + ":" + dir
	endpoint := fmt.Sprintf("%s/repos/%s/%s/git/trees/%s?recursive=1",
		c.baseURL, ref.Owner, ref.Name, url.PathEscape(treeRef))
	return c.getTree(ctx, endpoint, strings.TrimSuffix(dir, "/")+"/")
}

// FileExists はパスがコミットに存在するかを確認します
// 404は false を返し、エラーにはしません
func (c *Client) FileExists(ctx context.Context, ref models.RepoRef, path string) (bool, error) {
	resp, err := c.doGet(ctx, c.contentsURL(ref, path))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	return true, nil
}

// FetchContent はパスのファイル内容をUTF-8テキストとして取得します
func (c *Client) FetchContent(ctx context.Context, ref models.RepoRef, path string) (string, error) {
	resp, err := c.doGet(ctx, c.contentsURL(ref, path))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var content contentResponse
	if err := json.NewDecoder(resp.Body).Decode(&content); err != nil {
		return "", fmt.Errorf("contentsレスポンスのパースに失敗: %w", err)
	}

	if content.Encoding == "base64" {
		decoded, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(content.Content, "\n", ""))
		if err != nil {
			return "", fmt.Errorf("contentのbase64デコードに失敗: %w", err)
		}
		return string(decoded), nil
	}
	return content.Content, nil
}

func (c *Client) contentsURL(ref models.RepoRef, path string) string {
	escaped := strings.Split(path, "/")
	for i, seg := range escaped {
		escaped[i] = url.PathEscape(seg)
	}
	return fmt.Sprintf("%s/repos/%s/%s/contents/%s?ref=%s",
		c.baseURL, ref.Owner, ref.Name, strings.Join(escaped, "/"), url.QueryEscape(ref.Commit))
}

func (c *Client) getTree(ctx context.Context, endpoint, pathPrefix string) (models.TreeListing, error) {
	resp, err := c.doGet(ctx, endpoint)
	if err != nil {
		return models.TreeListing{}, err
	}
	defer resp.Body.Close()

	var tree treeResponse
	if err := json.NewDecoder(resp.Body).Decode(&tree); err != nil {
		return models.TreeListing{}, fmt.Errorf("ツリーレスポンスのパースに失敗: %w", err)
	}

	listing := models.TreeListing{
		Files:     make([]models.RepositoryFile, 0, len(tree.Tree)),
		Truncated: tree.Truncated,
	}
	for _, entry := range tree.Tree {
		listing.Files = append(listing.Files, models.RepositoryFile{
			Path: pathPrefix + entry.Path,
			Type: models.FileType(entry.Type),
		})
	}
	return listing, nil
}

func (c *Client) doGet(ctx context.Context, endpoint string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("リクエストの作成に失敗: %w", err)
	}
	req.Header.Set("Accept", acceptHeader)
	req.Header.Set("X-GitHub-Api-Version", apiVersionHeader)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GitHub APIへのリクエストに失敗: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return resp, nil
	case resp.StatusCode == http.StatusNotFound:
		resp.Body.Close()
		return nil, ErrNotFound
	default:
		resp.Body.Close()
		return nil, fmt.Errorf("GitHub APIがステータス %d を返しました: %s", resp.StatusCode, endpoint)
	}
}
