package compression

import (
	"strings"
	"sync"
	"testing"

	"github.com/jonathan/property-analyzer/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func shibuyaListing() types.ListingDocument {
	return types.ListingDocument{
		Text: "Sunny room near station. Quiet area. Renovated 2023.",
		Fields: []types.Field{
			{Kind: types.KindPrice, Value: "¥120,000"},
			{Kind: types.KindAddress, Value: "Shibuya"},
		},
		Source: types.Source{URL: "https://example.com/listing/1"},
	}
}

func japaneseListing() types.ListingDocument {
	return types.ListingDocument{
		Text: "価格：8.5万円\n所在地：東京都渋谷区神南1-2-3\n間取り：1LDK\n" +
			"南向きで日当たり良好。駅まで徒歩5分。\n2023年にリフォーム済み。周辺は静かな住宅街です。",
	}
}

func TestCompress_CutsDescriptionAtBudget(t *testing.T) {
	doc := shibuyaListing()
	fields, _ := Partition(doc, nil)
	budget := Tier1Size(fields, types.UnitChars) + 20

	got, err := Compress(doc, DefaultPolicy(budget))
	require.NoError(t, err)

	assert.Equal(t, "Price: ¥120,000\nAddress: Shibuya\nSunny room near", got.Text())
	assert.Equal(t, "Sunny room near", got.Description)
	assert.True(t, got.Truncated)
	assert.LessOrEqual(t, got.Size, budget)
}

func TestCompress_PrefersSentenceBoundary(t *testing.T) {
	doc := shibuyaListing()
	fields, _ := Partition(doc, nil)
	budget := Tier1Size(fields, types.UnitChars) + 30

	got, err := Compress(doc, DefaultPolicy(budget))
	require.NoError(t, err)

	assert.Equal(t, "Sunny room near station.", got.Description)
	assert.True(t, got.Truncated)
	assert.LessOrEqual(t, got.Size, budget)
}

func TestCompress_FitsUnchanged(t *testing.T) {
	got, err := Compress(shibuyaListing(), DefaultPolicy(1000))
	require.NoError(t, err)

	assert.Equal(t, "Sunny room near station. Quiet area. Renovated 2023.", got.Description)
	assert.False(t, got.Truncated)
	assert.Equal(t, got.OriginalSize, got.Size)
}

func TestCompress_SizeNeverExceedsBudget(t *testing.T) {
	for _, unit := range []types.SizeUnit{types.UnitChars, types.UnitTokens} {
		for _, doc := range []types.ListingDocument{shibuyaListing(), japaneseListing()} {
			fields, _ := Partition(doc, nil)
			floor := Tier1Size(fields, unit)
			for budget := floor; budget < floor+120; budget++ {
				policy := DefaultPolicy(budget)
				policy.Unit = unit

				got, err := Compress(doc, policy)
				require.NoError(t, err)
				assert.LessOrEqual(t, got.Size, budget, "unit=%s budget=%d", unit, budget)
				assert.Equal(t, MeasureSize(got.Text(), unit), got.Size)
			}
		}
	}
}

func TestCompress_Idempotent(t *testing.T) {
	for _, strategy := range []types.Strategy{types.StrategyLeading, types.StrategyKeyword} {
		for _, doc := range []types.ListingDocument{shibuyaListing(), japaneseListing()} {
			fields, _ := Partition(doc, nil)
			floor := Tier1Size(fields, types.UnitChars)
			for budget := floor; budget < floor+100; budget += 3 {
				policy := DefaultPolicy(budget)
				policy.Strategy = strategy

				first, err := Compress(doc, policy)
				require.NoError(t, err)

				for _, next := range []int{budget, budget + 50} {
					again := policy
					again.Budget = next
					second, err := Compress(first.Listing(), again)
					require.NoError(t, err)

					assert.Equal(t, first.Fields, second.Fields)
					assert.Equal(t, first.Description, second.Description)
					assert.Equal(t, first.Text(), second.Text())
					assert.False(t, second.Truncated)
				}
			}
		}
	}
}

func TestCompress_FieldsKeptVerbatim(t *testing.T) {
	doc := japaneseListing()
	fields, _ := Partition(doc, nil)
	budget := Tier1Size(fields, types.UnitChars) + 5

	got, err := Compress(doc, DefaultPolicy(budget))
	require.NoError(t, err)

	text := got.Text()
	for _, value := range []string{"8.5万円", "東京都渋谷区神南1-2-3", "1LDK"} {
		assert.Contains(t, text, value)
	}
}

func TestCompress_BudgetEqualsFieldSize(t *testing.T) {
	doc := shibuyaListing()
	fields, _ := Partition(doc, nil)
	budget := Tier1Size(fields, types.UnitChars)

	got, err := Compress(doc, DefaultPolicy(budget))
	require.NoError(t, err)

	assert.Empty(t, got.Description)
	assert.Equal(t, "Price: ¥120,000\nAddress: Shibuya", got.Text())
	assert.Equal(t, budget, got.Size)
	assert.True(t, got.Truncated)
}

func TestCompress_OverBudget(t *testing.T) {
	doc := shibuyaListing()
	fields, _ := Partition(doc, nil)
	required := Tier1Size(fields, types.UnitChars)

	_, err := Compress(doc, DefaultPolicy(required-1))
	require.Error(t, err)

	var overErr *OverBudgetError
	require.ErrorAs(t, err, &overErr)
	assert.Equal(t, required, overErr.Required)
	assert.Equal(t, required-1, overErr.Budget)
	assert.Contains(t, err.Error(), "budget")
}

func TestCompress_EmptyInput(t *testing.T) {
	tests := []struct {
		name string
		doc  types.ListingDocument
	}{
		{"empty", types.ListingDocument{}},
		{"whitespace", types.ListingDocument{Text: " \n\t "}},
		{"with source", types.ListingDocument{Source: types.Source{URL: "https://suumo.jp/x"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compress(tt.doc, DefaultPolicy(100))
			var emptyErr *EmptyInputError
			assert.ErrorAs(t, err, &emptyErr)
		})
	}
}

func TestCompress_EmptyDescription(t *testing.T) {
	doc := types.ListingDocument{Text: "賃料: 8万円\n面積: 25.5㎡"}

	got, err := Compress(doc, DefaultPolicy(100))
	require.NoError(t, err)

	assert.Empty(t, got.Description)
	assert.False(t, got.Truncated)
	assert.Equal(t, "賃料: 8万円\n面積: 25.5㎡", got.Text())
}

func TestCompress_InvalidPolicy(t *testing.T) {
	tests := []struct {
		name   string
		policy types.CompressionPolicy
		field  string
	}{
		{"zero budget", types.CompressionPolicy{}, "budget"},
		{"negative budget", types.CompressionPolicy{Budget: -5}, "budget"},
		{"bad unit", types.CompressionPolicy{Budget: 10, Unit: "bytes"}, "unit"},
		{"bad strategy", types.CompressionPolicy{Budget: 10, Strategy: "random"}, "strategy"},
		{"bad threshold", types.CompressionPolicy{Budget: 10, Deduplicate: true, DuplicateThreshold: 1.5}, "duplicate_threshold"},
		{"bad category", types.CompressionPolicy{Budget: 10, Priority: []types.Category{"photos"}}, "priority"},
		{"repeated category", types.CompressionPolicy{Budget: 10, Priority: []types.Category{types.CategoryPrice, types.CategoryPrice}}, "priority"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compress(shibuyaListing(), tt.policy)
			var policyErr *PolicyError
			require.ErrorAs(t, err, &policyErr)
			assert.Equal(t, tt.field, policyErr.Field)
		})
	}
}

func TestCompress_PriorityOrdersFields(t *testing.T) {
	doc := types.ListingDocument{
		Fields: []types.Field{
			{Kind: types.KindPrice, Label: "価格", Value: "3,980万円"},
			{Kind: types.KindArea, Label: "専有面積", Value: "65.2㎡"},
			{Kind: types.KindAddress, Label: "所在地", Value: "横浜市西区"},
		},
	}
	policy := DefaultPolicy(200)
	policy.Priority = []types.Category{types.CategorySpecs, types.CategoryAddress}

	got, err := Compress(doc, policy)
	require.NoError(t, err)

	require.Len(t, got.Fields, 3)
	assert.Equal(t, types.KindArea, got.Fields[0].Kind)
	assert.Equal(t, types.KindAddress, got.Fields[1].Kind)
	assert.Equal(t, types.KindPrice, got.Fields[2].Kind)
}

func TestCompress_KeywordStrategy(t *testing.T) {
	rent := "Rent is 85000 yen per month with 2 months deposit."
	doc := types.ListingDocument{
		Text: "Lovely garden views all year. " + rent + " Friendly neighbours.",
	}
	budget := MeasureSize(rent, types.UnitChars) + 2

	leading, err := Compress(doc, DefaultPolicy(budget))
	require.NoError(t, err)
	assert.Equal(t, "Lovely garden views all year.", leading.Description)

	policy := DefaultPolicy(budget)
	policy.Strategy = types.StrategyKeyword
	keyword, err := Compress(doc, policy)
	require.NoError(t, err)
	assert.Equal(t, rent, keyword.Description)
}

func TestCompress_Deduplicates(t *testing.T) {
	doc := types.ListingDocument{
		Text: "Bright corner unit with balcony. Bright corner unit with a balcony. Close to schools.",
	}

	got, err := Compress(doc, DefaultPolicy(500))
	require.NoError(t, err)
	assert.Equal(t, "Bright corner unit with balcony. Close to schools.", got.Description)

	policy := DefaultPolicy(500)
	policy.Deduplicate = false
	kept, err := Compress(doc, policy)
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(kept.Description, "Bright corner"))
}

func TestCompress_UnknownLabelFallsBackToDefault(t *testing.T) {
	doc := types.ListingDocument{
		Fields: []types.Field{{Kind: types.KindRent, Label: "Monthly", Value: "¥90,000"}},
		Text:   "Pets allowed.",
	}

	got, err := Compress(doc, DefaultPolicy(100))
	require.NoError(t, err)
	assert.Equal(t, "Rent: ¥90,000\nPets allowed.", got.Text())
}

func TestCompress_UnknownFieldKind(t *testing.T) {
	doc := types.ListingDocument{
		Fields: []types.Field{
			{Kind: "balcony", Value: "南向き"},
			{Kind: types.KindPrice, Value: "¥1"},
		},
		Text: "Quiet area.",
	}

	_, err := Compress(doc, DefaultPolicy(200))
	var kindErr *FieldKindError
	require.ErrorAs(t, err, &kindErr)
	assert.Equal(t, types.FieldKind("balcony"), kindErr.Kind)
	assert.Equal(t, "南向き", kindErr.Value)
}

func TestCompress_WalkField(t *testing.T) {
	doc := types.ListingDocument{
		Fields: []types.Field{
			{Kind: types.KindWalk, Value: "徒歩5分"},
			{Kind: types.KindPrice, Value: "¥1"},
		},
		Text: "Quiet area.",
	}

	got, err := Compress(doc, DefaultPolicy(200))
	require.NoError(t, err)
	assert.Equal(t, "Price: ¥1\nWalk: 徒歩5分\nQuiet area.", got.Text())

	again, err := Compress(got.Listing(), DefaultPolicy(200))
	require.NoError(t, err)
	assert.Equal(t, got.Fields, again.Fields)
}

func TestCompress_IdempotentWithUntidyLabels(t *testing.T) {
	labels := []string{"価格 ", "価格\t", " 【価格】", "価格　"}

	for _, label := range labels {
		t.Run(label, func(t *testing.T) {
			doc := types.ListingDocument{
				Fields: []types.Field{{Kind: types.KindPrice, Label: label, Value: "8万円"}},
				Text:   "眺望の良い住戸です。",
			}

			first, err := Compress(doc, DefaultPolicy(100))
			require.NoError(t, err)
			assert.Equal(t, "価格: 8万円\n眺望の良い住戸です。", first.Text())

			second, err := Compress(first.Listing(), DefaultPolicy(100))
			require.NoError(t, err)
			assert.Equal(t, first.Fields, second.Fields)
			assert.Equal(t, first.Description, second.Description)
			assert.Equal(t, "8万円", second.Fields[0].Value)
		})
	}
}

func TestCompress_WrappedFieldLines(t *testing.T) {
	tests := []struct {
		name       string
		text       string
		wantFields []types.Field
		wantDesc   string
	}{
		{
			name: "label split across lines",
			text: "Key\nmoney: none.\nQuiet area.",
			wantFields: []types.Field{
				{Kind: types.KindKeyMoney, Label: "Key money", Value: "none."},
			},
			wantDesc: "Quiet area.",
		},
		{
			name: "value on the next line",
			text: "礼金：\nなし\n静かな住宅街です。",
			wantFields: []types.Field{
				{Kind: types.KindKeyMoney, Label: "礼金", Value: "なし"},
			},
			wantDesc: "静かな住宅街です。",
		},
		{
			name: "description that reads as a field line",
			text: "Key\nPrice: ¥1\nmoney: none.",
			wantFields: []types.Field{
				{Kind: types.KindPrice, Label: "Price", Value: "¥1"},
			},
			wantDesc: "Key money:",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			first, err := Compress(types.ListingDocument{Text: tt.text}, DefaultPolicy(200))
			require.NoError(t, err)
			assert.Equal(t, tt.wantFields, first.Fields)
			assert.Equal(t, tt.wantDesc, first.Description)

			second, err := Compress(first.Listing(), DefaultPolicy(200))
			require.NoError(t, err)
			assert.Equal(t, first.Fields, second.Fields)
			assert.Equal(t, first.Description, second.Description)
			assert.Equal(t, first.Text(), second.Text())
			assert.False(t, second.Truncated)
		})
	}
}

func TestCompress_ConcurrentUse(t *testing.T) {
	doc := japaneseListing()
	want, err := Compress(doc, DefaultPolicy(60))
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([]string, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got, err := Compress(doc, DefaultPolicy(60))
			if err == nil {
				results[i] = got.Text()
			}
		}(i)
	}
	wg.Wait()

	for _, r := range results {
		assert.Equal(t, want.Text(), r)
	}
}

func TestPartition(t *testing.T) {
	doc := types.ListingDocument{
		Text: "【物件名】: サンハイツ\n賃料\t7.2万円\nNotes: bring ID\n礼金：なし\n賃料: 7.2万円",
	}

	fields, desc := Partition(doc, nil)

	require.Len(t, fields, 3)
	assert.Equal(t, types.KindRent, fields[0].Kind)
	assert.Equal(t, "7.2万円", fields[0].Value)
	assert.Equal(t, types.KindKeyMoney, fields[1].Kind)
	assert.Equal(t, "なし", fields[1].Value)
	assert.Equal(t, types.KindName, fields[2].Kind)
	assert.Equal(t, "Notes: bring ID", desc)
}
