package ingestion

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/jonathan/property-analyzer/internal/types"
)

// maxLabelRunes bounds how long a label may be; longer prefixes are prose.
const maxLabelRunes = 16

// bareField recovers a field from an unlabeled value such as "8.5万円".
type bareField struct {
	kind    types.FieldKind
	label   string
	pattern *regexp.Regexp
}

var bareFields = []bareField{
	{types.KindPrice, "価格", regexp.MustCompile(`\d[\d,]*(?:\.\d+)?\s?万円`)},
	{types.KindArea, "面積", regexp.MustCompile(`\d+(?:\.\d+)?\s?(?:㎡|m²|m2|平米)`)},
	{types.KindLayout, "間取り", regexp.MustCompile(`(?:^|[^A-Za-z0-9])(\d(?:S?LDK|DK|K|R))(?:[^A-Za-z0-9]|$)`)},
	{types.KindBuildingAge, "築年数", regexp.MustCompile(`築\d+年`)},
	{types.KindStation, "交通", regexp.MustCompile(`[^\s、。]{1,20}駅\s?徒歩\d+分|徒歩\d+分`)},
}

// SplitFields separates labeled field lines from description text.
//
// Two shapes are recognized: "Label: value" on one line (separators ':',
// '：', tab or a space after a known label) and a label line immediately
// followed by its value line, which is how table cells come out of HTML
// extraction. Values are kept verbatim. When the text has no price, area,
// layout, age or station field, the first bare match ("8.5万円", "25.3㎡")
// becomes one, and the sentence stays in the description.
func SplitFields(text string) ([]types.Field, string) {
	lines := strings.Split(text, "\n")
	var fields []types.Field
	var rest []string
	seen := map[types.FieldKind]bool{}

	for i := 0; i < len(lines); i++ {
		line := strings.TrimSpace(lines[i])
		if line == "" {
			rest = append(rest, lines[i])
			continue
		}

		if label, value, kind, ok := splitLabeledLine(line); ok {
			fields = append(fields, types.Field{Kind: kind, Label: label, Value: value})
			seen[kind] = true
			continue
		}

		if kind, ok := types.KindForLabel(line); ok && utf8.RuneCountInString(line) <= maxLabelRunes && i+1 < len(lines) {
			next := strings.TrimSpace(lines[i+1])
			if _, nextIsLabel := types.KindForLabel(next); next != "" && !nextIsLabel {
				fields = append(fields, types.Field{Kind: kind, Label: line, Value: next})
				seen[kind] = true
				i++
				continue
			}
		}

		rest = append(rest, lines[i])
	}

	description := strings.TrimSpace(strings.Join(rest, "\n"))
	for _, bf := range bareFields {
		if seen[bf.kind] || (bf.kind == types.KindPrice && seen[types.KindRent]) {
			continue
		}
		if value := bf.find(description); value != "" {
			fields = append(fields, types.Field{Kind: bf.kind, Label: bf.label, Value: value})
		}
	}

	return fields, description
}

func (bf bareField) find(text string) string {
	m := bf.pattern.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	if len(m) > 1 {
		return m[1]
	}
	return strings.TrimSpace(m[0])
}

// splitLabeledLine splits "Label: value" when Label is a known field label.
func splitLabeledLine(line string) (label, value string, kind types.FieldKind, ok bool) {
	idx := strings.IndexAny(line, ":：\t")
	spaced := false
	if idx < 0 {
		// "価格 8.5万円": space-separated, only for known Japanese labels
		idx = strings.IndexAny(line, " 　")
		if idx < 0 {
			return "", "", "", false
		}
		spaced = true
	}

	label = strings.TrimSpace(line[:idx])
	_, sepSize := utf8.DecodeRuneInString(line[idx:])
	value = strings.TrimSpace(line[idx+sepSize:])
	if label == "" || value == "" || utf8.RuneCountInString(label) > maxLabelRunes {
		return "", "", "", false
	}
	if spaced && isASCII(label) {
		return "", "", "", false
	}

	kind, ok = types.KindForLabel(label)
	if !ok {
		return "", "", "", false
	}
	return label, value, kind, true
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}
