package classifier

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Category はファイルの目的分類を表します
type Category string

const (
	CategoryDocumentation  Category = "documentation"
	CategoryEnvironment    Category = "environment"
	CategoryBuild          Category = "build"
	CategoryWorkflow       Category = "workflow"
	CategoryCICD           Category = "cicd"
	CategoryInfrastructure Category = "infrastructure"
)

// canonicalProposalPriority 以上のカテゴリは、マッチ0件のとき
// 既定ファイル名の探索候補を提案します
const canonicalProposalPriority = 85

// Matcher は1カテゴリ分のマッチルールを表します
// Patterns は順序付きの正規表現候補で、いずれか1つにマッチすれば所属とみなします
type Matcher struct {
	Category       Category
	Priority       int // 0-100。複数カテゴリに該当した場合の優先判断に使います
	Description    string
	Patterns       []string
	CanonicalFiles []string // マッチ0件時に提案する既定ファイル名
	MatchFullPath  bool     // true: フルパス照合 / false: ルート直下のみ照合
}

// Classifier はパスをカテゴリへ分類する純粋な分類器です
// 構築後に状態を変更しないため、同一入力に対して常に同一の結果を返します
type Classifier struct {
	matchers []Matcher
	compiled map[Category][]*regexp.Regexp
}

// Result は分類結果を表します
type Result struct {
	// Matches はカテゴリごとのマッチしたパス一覧（入力順を保持）
	Matches map[Category][]string

	// MissingCanonical は高優先度カテゴリでマッチが0件だったときの
	// 探索候補ファイル名一覧
	MissingCanonical map[Category][]string
}

// New は既定のルールテーブルを使う分類器を作成します
func New() (*Classifier, error) {
	return NewWithMatchers(DefaultMatchers())
}

// NewWithMatchers は指定のルールテーブルで分類器を作成します
func NewWithMatchers(matchers []Matcher) (*Classifier, error) {
	compiled := make(map[Category][]*regexp.Regexp, len(matchers))
	for _, m := range matchers {
		for _, p := range m.Patterns {
			// 大文字小文字を区別しない
			re, err := regexp.Compile("(?i)" + p)
			if err != nil {
				return nil, fmt.Errorf("カテゴリ %s のパターンのコンパイルに失敗: %w", m.Category, err)
			}
			compiled[m.Category] = append(compiled[m.Category], re)
		}
	}
	return &Classifier{matchers: matchers, compiled: compiled}, nil
}

// Classify はパス一覧をカテゴリごとに分類します
// 副作用はなく、入力のみから結果が決まります
func (c *Classifier) Classify(paths []string) Result {
	result := Result{
		Matches:          make(map[Category][]string),
		MissingCanonical: make(map[Category][]string),
	}

	for _, m := range c.matchers {
		regexps := c.compiled[m.Category]
		var matched []string
		for _, path := range paths {
			candidate := path
			if !m.MatchFullPath {
				// 設定・ドキュメント類の慣習はルート直下であるため、
				// ネストしたパスは照合対象外
				if strings.Contains(path, "/") {
					continue
				}
			}
			for _, re := range regexps {
				if re.MatchString(candidate) {
					matched = append(matched, path)
					break
				}
			}
		}
		if len(matched) > 0 {
			result.Matches[m.Category] = matched
			continue
		}
		if m.Priority >= canonicalProposalPriority && len(m.CanonicalFiles) > 0 {
			result.MissingCanonical[m.Category] = append([]string(nil), m.CanonicalFiles...)
		}
	}

	return result
}

// CanonicalFiles は高優先度カテゴリの既定ファイル名を優先度降順で返します
// リゾルバのルートファイル探索で使います
func (c *Classifier) CanonicalFiles() []string {
	matchers := append([]Matcher(nil), c.matchers...)
	sort.SliceStable(matchers, func(i, j int) bool {
		return matchers[i].Priority > matchers[j].Priority
	})

	var files []string
	seen := make(map[string]bool)
	for _, m := range matchers {
		if m.Priority < canonicalProposalPriority {
			continue
		}
		for _, f := range m.CanonicalFiles {
			if !seen[f] {
				seen[f] = true
				files = append(files, f)
			}
		}
	}
	return files
}
