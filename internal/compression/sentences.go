package compression

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

var repeatedPunct = regexp.MustCompile(`([。、！？!?])[。、！？!?]*`)

// NormalizeText collapses whitespace and repeated punctuation.
func NormalizeText(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	return repeatedPunct.ReplaceAllStringFunc(text, func(m string) string {
		for _, r := range m {
			return string(r)
		}
		return m
	})
}

func isASCIITerminator(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

func isCJKTerminator(r rune) bool {
	return r == '。' || r == '！' || r == '？'
}

func isCloser(r rune) bool {
	switch r {
	case '」', '』', '）', ')', '"', '\'', '”', '’':
		return true
	}
	return false
}

// SplitSentences splits normalized text into sentences. ASCII terminators end a
// sentence only when followed by whitespace or the end of the text, so decimals
// and abbreviations such as "3.5" stay intact. CJK terminators always end one.
func SplitSentences(text string) []string {
	runes := []rune(text)
	var sentences []string
	start := 0
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if !isASCIITerminator(r) && !isCJKTerminator(r) {
			continue
		}
		cjk := false
		j := i
		for j < len(runes) && (isASCIITerminator(runes[j]) || isCJKTerminator(runes[j]) || isCloser(runes[j])) {
			if isCJKTerminator(runes[j]) {
				cjk = true
			}
			j++
		}
		if cjk || j == len(runes) || unicode.IsSpace(runes[j]) {
			if s := strings.TrimSpace(string(runes[start:j])); s != "" {
				sentences = append(sentences, s)
			}
			start = j
		}
		i = j - 1
	}
	if start < len(runes) {
		if s := strings.TrimSpace(string(runes[start:])); s != "" {
			sentences = append(sentences, s)
		}
	}
	return sentences
}

// JoinSentences is the inverse of SplitSentences on normalized text. Sentences
// ending in a CJK terminator are joined without a space.
func JoinSentences(sentences []string) string {
	var sb strings.Builder
	for i, s := range sentences {
		if i > 0 && !endsWithCJKTerminator(sentences[i-1]) {
			sb.WriteByte(' ')
		}
		sb.WriteString(s)
	}
	return sb.String()
}

func endsWithCJKTerminator(s string) bool {
	r, _ := utf8.DecodeLastRuneInString(strings.TrimRightFunc(s, isCloser))
	return isCJKTerminator(r)
}

// Deduplicate drops sentences that repeat an earlier sentence. Exact repeats are
// always dropped; near repeats are dropped when their character-bigram Dice
// similarity reaches threshold. Sentences shorter than minSimilarityLength
// normalized characters are only compared exactly.
func Deduplicate(sentences []string, threshold float64) []string {
	type seen struct {
		key     string
		bigrams map[string]int
	}
	var kept []string
	var keys []seen
	for _, s := range sentences {
		key := sentenceKey(s)
		dup := false
		var grams map[string]int
		if len([]rune(key)) >= minSimilarityLength {
			grams = bigrams(key)
		}
		for _, k := range keys {
			if key == k.key {
				dup = true
				break
			}
			if grams != nil && k.bigrams != nil && dice(grams, k.bigrams) >= threshold {
				dup = true
				break
			}
		}
		if dup {
			continue
		}
		kept = append(kept, s)
		keys = append(keys, seen{key: key, bigrams: grams})
	}
	return kept
}

const minSimilarityLength = 10

func sentenceKey(s string) string {
	var sb strings.Builder
	for _, r := range strings.ToLower(s) {
		if unicode.IsSpace(r) || unicode.IsPunct(r) {
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

func bigrams(key string) map[string]int {
	runes := []rune(key)
	grams := make(map[string]int, len(runes))
	for i := 0; i+1 < len(runes); i++ {
		grams[string(runes[i:i+2])]++
	}
	return grams
}

func dice(a, b map[string]int) float64 {
	total, shared := 0, 0
	for g, n := range a {
		total += n
		if m, ok := b[g]; ok {
			shared += min(n, m)
		}
	}
	for _, m := range b {
		total += m
	}
	if total == 0 {
		return 0
	}
	return 2 * float64(shared) / float64(total)
}
