package ingestion

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/jonathan/property-analyzer/internal/types"
)

var (
	innerSpace      = regexp.MustCompile(`\s+`)
	excessiveBlanks = regexp.MustCompile(`\n\n\n+`)
	cookieNotice    = regexp.MustCompile(`(?i)cookie.{0,40}?設定`)
)

// noisePhrases are page-chrome strings that survive HTML extraction.
var noisePhrases = []string{
	"プライバシーポリシー", "利用規約", "サイトマップ", "ページトップ", "ページの先頭へ",
	"メニュー", "ナビゲーション", "フッター", "ヘッダー", "広告", "PR", "スポンサー",
	"関連記事", "おすすめ", "人気記事", "ランキング", "シェア", "ツイート", "いいね",
	"コメント", "購読", "会員登録", "ログイン", "ログアウト", "マイページ", "お気に入り",
	"お気に入りに追加", "ブックマーク", "印刷する", "閉じる", "もっと見る",
	"Privacy Policy", "Terms of Service", "Sitemap", "Share", "Tweet", "Log in", "Sign up",
}

var noiseSet = func() map[string]struct{} {
	m := make(map[string]struct{}, len(noisePhrases))
	for _, p := range noisePhrases {
		m[strings.ToLower(p)] = struct{}{}
	}
	return m
}()

// noiseLinePrefixes mark post metadata lines ("タグ: 賃貸").
var noiseLinePrefixes = []string{"タグ:", "タグ：", "カテゴリ:", "カテゴリ：", "投稿日:", "投稿日：", "更新日:", "更新日：", "作成者:", "作成者："}

// CleanText cleans and normalizes text content while preserving structure
func CleanText(content string) string {
	if content == "" {
		return ""
	}

	content = strings.ReplaceAll(content, "\r\n", "\n")
	content = strings.ReplaceAll(content, "\r", "\n")

	lines := strings.Split(content, "\n")
	cleanedLines := make([]string, 0, len(lines))
	for _, line := range lines {
		cleanedLines = append(cleanedLines, cleanLine(line))
	}

	result := strings.Join(cleanedLines, "\n")
	result = excessiveBlanks.ReplaceAllString(result, "\n\n")
	return strings.TrimSpace(result)
}

// cleanLine cleans a single line while preserving bullets and indentation
func cleanLine(line string) string {
	line = strings.TrimRight(line, " \t　")
	if strings.TrimSpace(line) == "" {
		return ""
	}

	trimmed := strings.TrimLeft(line, " \t")
	if isBulletLine(trimmed) {
		indent := len(line) - len(trimmed)
		return strings.Repeat(" ", indent) + trimmed
	}

	leadingSpace := len(line) - len(trimmed)
	content := innerSpace.ReplaceAllString(strings.TrimSpace(line), " ")
	if leadingSpace > 0 {
		return strings.Repeat(" ", leadingSpace) + content
	}
	return content
}

// isBulletLine checks if a line is a bullet list item
func isBulletLine(line string) bool {
	trimmed := strings.TrimLeft(line, " \t")
	for _, bullet := range []string{"- ", "* ", "• ", "· ", "・"} {
		if strings.HasPrefix(trimmed, bullet) {
			return true
		}
	}
	return false
}

// RemoveNoise drops lines that are pure page chrome: navigation labels,
// share buttons, post metadata and cookie notices. Lines mixing noise words
// with listing content are kept unchanged.
func RemoveNoise(text string) string {
	lines := strings.Split(text, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if !isNoiseLine(line) {
			kept = append(kept, line)
		}
	}
	return strings.TrimSpace(excessiveBlanks.ReplaceAllString(strings.Join(kept, "\n"), "\n\n"))
}

func isNoiseLine(line string) bool {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return false
	}
	for _, prefix := range noiseLinePrefixes {
		if strings.HasPrefix(trimmed, prefix) {
			return true
		}
	}
	if rest := cookieNotice.ReplaceAllString(trimmed, ""); strings.TrimSpace(rest) == "" {
		return true
	}

	// A line of noise words separated by spaces or pipes is a nav bar
	parts := strings.FieldsFunc(trimmed, func(r rune) bool {
		return r == ' ' || r == '|' || r == '｜' || r == '/' || r == '　'
	})
	for _, part := range parts {
		if _, ok := noiseSet[strings.ToLower(part)]; !ok {
			return false
		}
	}
	return true
}

// IngestFromFile reads a listing text file and returns it as a document.
func IngestFromFile(path string) (*types.ListingDocument, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("file not found: %w", err)
		}
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	return IngestFromText(string(content), ""), nil
}

// IngestFromText builds a document from pasted listing text. Labeled field
// lines become structured fields; the rest is kept as the description.
func IngestFromText(text string, sourceURL string) *types.ListingDocument {
	cleaned := RemoveNoise(CleanText(text))
	fields, rest := SplitFields(cleaned)
	return &types.ListingDocument{
		Text:   rest,
		Fields: fields,
		Source: NewSource(cleaned, sourceURL, ""),
	}
}
