package search

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBackend struct {
	answer    *Answer
	answerErr error
	search    *SearchResponse
	searchErr error

	answerQueries []string
	preambles     []string
	summarized    []bool
}

func (f *fakeBackend) Answer(_ context.Context, query, preamble string, _ int) (*Answer, error) {
	f.answerQueries = append(f.answerQueries, query)
	f.preambles = append(f.preambles, preamble)
	return f.answer, f.answerErr
}

func (f *fakeBackend) Search(_ context.Context, _ string, _ int, summarize bool) (*SearchResponse, error) {
	f.summarized = append(f.summarized, summarize)
	return f.search, f.searchErr
}

func newTestService(t *testing.T, backend Backend) *Service {
	t.Helper()
	svc, err := NewService(backend, Config{ProjectID: "proj", DataStoreID: "store"})
	require.NoError(t, err)
	return svc
}

func TestNewService_RequiresIDs(t *testing.T) {
	_, err := NewService(&fakeBackend{}, Config{DataStoreID: "store"})
	assert.ErrorContains(t, err, "project ID")

	_, err = NewService(&fakeBackend{}, Config{ProjectID: "proj"})
	assert.ErrorContains(t, err, "data store ID")
}

func TestFinancialInfo_ParsesFencedJSON(t *testing.T) {
	backend := &fakeBackend{answer: &Answer{
		Text: "回答です。\n```json\n{\"positive_factors\":[\"財政力指数が高い\"],\"negative_factors\":[\"人口減少\"]," +
			"\"financial_indicators\":{\"debt_ratio\":\"5.2%\"},\"overall_assessment\":\"良好\",\"summary\":\"健全\"}\n```",
		Results:   []Result{{DocumentID: "doc-1", Title: "決算書"}},
		Citations: []Citation{{StartIndex: 0, EndIndex: 4, Sources: []string{"0"}}},
	}}
	svc := newTestService(t, backend)

	info, err := svc.FinancialInfo(context.Background(), "東京都港区", 5)
	require.NoError(t, err)

	assert.Equal(t, "東京都港区の財務状況について、良い悪いと根拠を含めて教えてください", backend.answerQueries[0])
	assert.Contains(t, backend.preambles[0], "財務アナリスト")
	require.NotNil(t, info.Structured)
	assert.Equal(t, []string{"財政力指数が高い"}, info.Structured.PositiveFactors)
	assert.Equal(t, "5.2%", info.Structured.FinancialIndicators["debt_ratio"])
	assert.Equal(t, "良好", info.Structured.OverallAssessment)
	assert.Empty(t, info.Structured.RawResponse)
	assert.Equal(t, APIAnswer, info.Metadata.APIType)
	assert.True(t, info.Metadata.JSONParsed)
	assert.Equal(t, 1, info.TotalSize)
	assert.Len(t, info.Citations, 1)
}

func TestFinancialInfo_BareJSON(t *testing.T) {
	backend := &fakeBackend{answer: &Answer{
		Text: `分析結果: {"positive_factors":[],"negative_factors":[],"overall_assessment":"普通","summary":"データ不足"}`,
	}}
	svc := newTestService(t, backend)

	info, err := svc.FinancialInfo(context.Background(), "大阪府大阪市", 5)
	require.NoError(t, err)
	assert.Equal(t, "普通", info.Structured.OverallAssessment)
	assert.True(t, info.Metadata.JSONParsed)
}

func TestFinancialInfo_UnparseableAnswerKeepsText(t *testing.T) {
	text := "港区の財政は概ね健全です。"
	svc := newTestService(t, &fakeBackend{answer: &Answer{Text: text}})

	info, err := svc.FinancialInfo(context.Background(), "東京都港区", 5)
	require.NoError(t, err)

	require.NotNil(t, info.Structured)
	assert.Equal(t, Unparsed, info.Structured.OverallAssessment)
	assert.Equal(t, text, info.Structured.Summary)
	assert.Equal(t, text, info.Structured.RawResponse)
	assert.Empty(t, info.Structured.PositiveFactors)
	assert.False(t, info.Metadata.JSONParsed)
	assert.Equal(t, text, info.Summary)
}

func TestFinancialInfo_FallsBackToSearch(t *testing.T) {
	backend := &fakeBackend{
		answerErr: errors.New("answer unavailable"),
		search: &SearchResponse{
			Results: []Result{{DocumentID: "a"}, {DocumentID: "b"}},
			Summary: "要約",
		},
	}
	svc := newTestService(t, backend)

	info, err := svc.FinancialInfo(context.Background(), "東京都港区", 5)
	require.NoError(t, err)

	assert.Equal(t, []bool{true}, backend.summarized, "fallback search should request a summary")
	assert.Equal(t, APISearchFallback, info.Metadata.APIType)
	assert.Equal(t, "要約", info.Summary)
	assert.Equal(t, 2, info.TotalSize)
	assert.Nil(t, info.Structured)
}

func TestFinancialInfo_BothAPIsFail(t *testing.T) {
	answerErr := errors.New("answer unavailable")
	searchErr := errors.New("search unavailable")
	svc := newTestService(t, &fakeBackend{answerErr: answerErr, searchErr: searchErr})

	_, err := svc.FinancialInfo(context.Background(), "東京都港区", 5)
	require.Error(t, err)
	assert.ErrorIs(t, err, answerErr)
	assert.ErrorIs(t, err, searchErr)
}

func TestGeneral(t *testing.T) {
	backend := &fakeBackend{search: &SearchResponse{Results: []Result{{Title: "病院一覧"}}, TotalSize: 12}}
	svc := newTestService(t, backend)

	res, err := svc.General(context.Background(), "港区 病院", 5)
	require.NoError(t, err)
	assert.Equal(t, "港区 病院", res.Query)
	assert.Equal(t, 12, res.TotalSize)
	assert.Equal(t, []bool{false}, backend.summarized)

	_, err = newTestService(t, &fakeBackend{searchErr: errors.New("down")}).General(context.Background(), "q", 5)
	assert.ErrorContains(t, err, "search failed")
}

func TestAvailable(t *testing.T) {
	assert.True(t, newTestService(t, &fakeBackend{search: &SearchResponse{}}).Available(context.Background()))
	assert.False(t, newTestService(t, &fakeBackend{searchErr: errors.New("down")}).Available(context.Background()))
}

func TestDebugInfo(t *testing.T) {
	info := newTestService(t, &fakeBackend{}).DebugInfo()

	assert.Equal(t, "global", info.Location)
	assert.Equal(t, "default_search", info.ServingConfigID)
	assert.Equal(t, "projects/proj/locations/global/dataStores/store/servingConfigs/default_search", info.ServingConfigPath)
	assert.True(t, info.ClientInitialized)
}

func TestApplyDerivedData(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want Result
	}{
		{
			name: "title link and snippets",
			raw:  `{"title":"港区の財政","link":"gs://b/doc.pdf","snippets":[{"snippet":"歳入"},{"snippet":""},{"snippet":"歳出"}]}`,
			want: Result{Title: "港区の財政", URI: "gs://b/doc.pdf", Snippet: "歳入 | 歳出"},
		},
		{
			name: "no snippets keeps placeholder",
			raw:  `{"uri":"https://example.com"}`,
			want: Result{Title: untitled, URI: "https://example.com", Snippet: noSnippet},
		},
		{
			name: "invalid JSON keeps placeholders",
			raw:  `not json`,
			want: Result{Title: untitled, Snippet: noSnippet},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := Result{Title: untitled, Snippet: noSnippet}
			applyDerivedData(&r, []byte(tt.raw))
			assert.Equal(t, tt.want, r)
		})
	}
}
