// Package compression reduces scraped listing text to a size budget while
// keeping structured fields verbatim and trimming free-text description
// at sentence boundaries.
//
// Compress is a pure function: it performs no I/O and keeps no state, so it
// is safe to call from any number of goroutines.
package compression

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/jonathan/property-analyzer/internal/types"
)

// DefaultDuplicateThreshold is the bigram similarity above which a sentence is
// treated as a repeat.
const DefaultDuplicateThreshold = 0.8

// DefaultPolicy returns a character policy with deduplication enabled.
func DefaultPolicy(budget int) types.CompressionPolicy {
	return types.CompressionPolicy{
		Budget:             budget,
		Unit:               types.UnitChars,
		Priority:           types.DefaultPriority(),
		Strategy:           types.StrategyLeading,
		Deduplicate:        true,
		DuplicateThreshold: DefaultDuplicateThreshold,
	}
}

// ValidatePolicy checks a policy. Zero-valued Unit and Strategy are accepted
// and mean chars and leading.
func ValidatePolicy(p types.CompressionPolicy) error {
	if p.Budget <= 0 {
		return &PolicyError{Field: "budget", Message: "must be greater than zero"}
	}
	switch p.Unit {
	case "", types.UnitChars, types.UnitTokens:
	default:
		return &PolicyError{Field: "unit", Message: "unknown unit " + string(p.Unit)}
	}
	switch p.Strategy {
	case "", types.StrategyLeading, types.StrategyKeyword:
	default:
		return &PolicyError{Field: "strategy", Message: "unknown strategy " + string(p.Strategy)}
	}
	if p.Deduplicate && (p.DuplicateThreshold < 0 || p.DuplicateThreshold > 1) {
		return &PolicyError{Field: "duplicate_threshold", Message: "must be between 0 and 1"}
	}
	seen := make(map[types.Category]bool, len(p.Priority))
	for _, c := range p.Priority {
		if !c.IsValid() {
			return &PolicyError{Field: "priority", Message: "unknown category " + string(c)}
		}
		if seen[c] {
			return &PolicyError{Field: "priority", Message: "duplicate category " + string(c)}
		}
		seen[c] = true
	}
	return nil
}

// Compress reduces doc to fit policy.Budget.
//
// Structured fields are always kept verbatim. If they alone exceed the budget
// an *OverBudgetError is returned. The description keeps whole sentences while
// they fit; when not even one sentence fits, the first candidate is cut at the
// budget limit, preferring a word boundary.
func Compress(doc types.ListingDocument, policy types.CompressionPolicy) (*types.CompressedDocument, error) {
	if err := ValidatePolicy(policy); err != nil {
		return nil, err
	}
	if strings.TrimSpace(doc.Text) == "" && len(doc.Fields) == 0 {
		return nil, &EmptyInputError{SourceURL: doc.Source.URL}
	}
	for _, f := range doc.Fields {
		if !f.Kind.IsValid() {
			return nil, &FieldKindError{Kind: f.Kind, Value: f.Value}
		}
	}

	unit := policy.Unit
	if unit == "" {
		unit = types.UnitChars
	}
	fields, description := Partition(doc, policy.Priority)

	required := Tier1Size(fields, unit)
	if required > policy.Budget {
		return nil, &OverBudgetError{Required: required, Budget: policy.Budget, Unit: unit}
	}

	sentences := SplitSentences(NormalizeText(description))
	if policy.Deduplicate {
		threshold := policy.DuplicateThreshold
		if threshold == 0 {
			threshold = DefaultDuplicateThreshold
		}
		sentences = Deduplicate(sentences, threshold)
	}

	// A description that parses as a field line is never emitted.
	fits := func(desc string) bool {
		if _, ok := parseFieldLine(desc); ok {
			return false
		}
		return MeasureSize(types.RenderListing(fields, desc), unit) <= policy.Budget
	}

	full := JoinSentences(sentences)
	out := &types.CompressedDocument{
		Source:       doc.Source,
		Fields:       fields,
		OriginalSize: MeasureSize(types.RenderListing(fields, full), unit),
		Budget:       policy.Budget,
		Unit:         unit,
	}

	if fits(full) {
		out.Description = full
	} else {
		out.Truncated = true
		if policy.Strategy == types.StrategyKeyword {
			out.Description = selectByKeyword(sentences, fits)
		} else {
			out.Description = selectLeading(sentences, fits)
		}
	}
	out.Size = MeasureSize(out.Text(), unit)
	return out, nil
}

// Tier1Size is the size of the rendered field block alone.
func Tier1Size(fields []types.Field, unit types.SizeUnit) int {
	return MeasureSize(types.RenderListing(fields, ""), unit)
}

func selectLeading(sentences []string, fits func(string) bool) string {
	k := 0
	for k < len(sentences) && fits(JoinSentences(sentences[:k+1])) {
		k++
	}
	if k > 0 {
		return JoinSentences(sentences[:k])
	}
	if len(sentences) == 0 {
		return ""
	}
	return cutSentence(sentences[0], fits)
}

func selectByKeyword(sentences []string, fits func(string) bool) string {
	if len(sentences) == 0 {
		return ""
	}
	order := make([]int, len(sentences))
	scores := make([]int, len(sentences))
	for i, s := range sentences {
		order[i] = i
		scores[i] = ScoreSentence(s)
	}
	sort.SliceStable(order, func(a, b int) bool {
		return scores[order[a]] > scores[order[b]]
	})

	chosen := make([]bool, len(sentences))
	kept := false
	for _, idx := range order {
		chosen[idx] = true
		if fits(JoinSentences(pick(sentences, chosen))) {
			kept = true
			continue
		}
		chosen[idx] = false
	}
	if kept {
		return JoinSentences(pick(sentences, chosen))
	}
	return cutSentence(sentences[order[0]], fits)
}

func pick(sentences []string, chosen []bool) []string {
	var out []string
	for i, s := range sentences {
		if chosen[i] {
			out = append(out, s)
		}
	}
	return out
}

// cutSentence returns the longest prefix of s that fits, backed off to the last
// word boundary when the cut would split a word.
func cutSentence(s string, fits func(string) bool) string {
	runes := []rune(s)
	lo, hi := 0, len(runes)
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if fits(strings.TrimRightFunc(string(runes[:mid]), unicode.IsSpace)) {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	n := lo
	if n == 0 {
		return ""
	}
	if n < len(runes) && !unicode.IsSpace(runes[n]) && !unicode.IsSpace(runes[n-1]) {
		for i := n - 1; i > 0; i-- {
			if unicode.IsSpace(runes[i]) {
				n = i
				break
			}
		}
	}
	return strings.TrimRightFunc(string(runes[:n]), unicode.IsSpace)
}

// Partition separates structured fields from description text. Fields come
// from doc.Fields and from lines of doc.Text shaped like "価格: 8万円" whose
// label is a known field label. A label or value wrapped onto the next line is
// joined with it. Fields are ordered by priority category, then by appearance;
// repeated kind and value pairs are kept once. Fields with an empty value or
// unknown kind are skipped.
func Partition(doc types.ListingDocument, priority []types.Category) ([]types.Field, string) {
	var fields []types.Field
	seen := make(map[string]bool)
	add := func(f types.Field) {
		f.Value = strings.TrimSpace(lineBreaks.Replace(f.Value))
		if f.Value == "" || !f.Kind.IsValid() {
			return
		}
		if kind, ok := types.KindForLabel(f.Label); ok && kind == f.Kind {
			f.Label = types.TrimLabel(f.Label)
		} else {
			f.Label = f.Kind.DefaultLabel()
		}
		key := string(f.Kind) + "\x00" + f.Value
		if seen[key] {
			return
		}
		seen[key] = true
		fields = append(fields, f)
	}

	for _, f := range doc.Fields {
		add(f)
	}

	var rest []string
	afterRest := false
	for _, line := range strings.Split(doc.Text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if f, ok := parseFieldLine(line); ok {
			add(f)
			afterRest = false
			continue
		}
		if n := len(rest); afterRest {
			if f, ok := parseFieldLine(rest[n-1] + " " + line); ok {
				rest = rest[:n-1]
				add(f)
				afterRest = false
				continue
			}
		}
		rest = append(rest, line)
		afterRest = true
	}

	rank := categoryRank(priority)
	sort.SliceStable(fields, func(i, j int) bool {
		return rank[fields[i].Category()] < rank[fields[j].Category()]
	})
	return fields, strings.Join(rest, " ")
}

var lineBreaks = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ", "\t", " ")

func parseFieldLine(line string) (types.Field, bool) {
	idx := strings.IndexAny(line, ":：\t")
	if idx <= 0 {
		return types.Field{}, false
	}
	label := strings.TrimSpace(line[:idx])
	kind, ok := types.KindForLabel(label)
	if !ok {
		return types.Field{}, false
	}
	_, size := utf8.DecodeRuneInString(line[idx:])
	value := strings.TrimSpace(line[idx+size:])
	if value == "" {
		return types.Field{}, false
	}
	return types.Field{Kind: kind, Label: label, Value: value}, true
}

func categoryRank(priority []types.Category) map[types.Category]int {
	rank := make(map[types.Category]int)
	for _, c := range priority {
		if _, ok := rank[c]; !ok {
			rank[c] = len(rank)
		}
	}
	for _, c := range types.DefaultPriority() {
		if _, ok := rank[c]; !ok {
			rank[c] = len(rank)
		}
	}
	return rank
}
