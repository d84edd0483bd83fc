package storage

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeIndex struct {
	sessions map[string]Session
	putErr   error
	deleted  []string
}

func newFakeIndex() *fakeIndex {
	return &fakeIndex{sessions: map[string]Session{}}
}

func (f *fakeIndex) Put(_ context.Context, s Session) error {
	if f.putErr != nil {
		return f.putErr
	}
	f.sessions[s.UUID] = s
	return nil
}

func (f *fakeIndex) List(_ context.Context, limit int) ([]Session, error) {
	var out []Session
	for _, s := range f.sessions {
		out = append(out, s)
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeIndex) Delete(_ context.Context, id string) error {
	f.deleted = append(f.deleted, id)
	delete(f.sessions, id)
	return nil
}

type testResult struct {
	Query string `json:"query"`
	IsURL bool   `json:"is_url"`
	Note  string `json:"note"`
}

func newTestStore(index SessionIndex) (*Store, *MemoryBucket) {
	bucket := NewMemoryBucket("test-bucket")
	store := NewStore(bucket, index)
	return store, bucket
}

func fixedClock(ts time.Time) func() time.Time {
	return func() time.Time { return ts }
}

func TestStore_SaveAndGetAnalysisResult(t *testing.T) {
	ctx := context.Background()
	store, bucket := newTestStore(nil)
	ts := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	store.now = fixedClock(ts)
	id := uuid.NewString()

	require.NoError(t, store.SaveAnalysisResult(ctx, id, testResult{Query: "渋谷 1LDK", Note: "ok"}))

	record, err := store.GetAnalysisResult(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, id, record.UUID)
	assert.Equal(t, RecordVersion, record.Version)
	assert.True(t, ts.Equal(record.Timestamp))

	var got testResult
	require.NoError(t, json.Unmarshal(record.AnalysisData, &got))
	assert.Equal(t, "ok", got.Note)
	assert.Equal(t, contentTypeJSON, bucket.ContentType(id+"/"+AnalysisResultFile))
}

func TestStore_GetAnalysisResult_Missing(t *testing.T) {
	store, _ := newTestStore(nil)

	record, err := store.GetAnalysisResult(context.Background(), uuid.NewString())
	require.NoError(t, err)
	assert.Nil(t, record)
}

func TestStore_InvalidSessionID(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(nil)

	_, err := store.GetAnalysisResult(ctx, "../etc")
	assert.ErrorIs(t, err, ErrInvalidSessionID)

	err = store.SaveCompressedText(ctx, "not-a-uuid", "text")
	assert.ErrorIs(t, err, ErrInvalidSessionID)

	_, err = store.DeleteSession(ctx, "")
	assert.ErrorIs(t, err, ErrInvalidSessionID)
}

func TestStore_SaveTexts(t *testing.T) {
	ctx := context.Background()
	store, bucket := newTestStore(nil)
	id := uuid.NewString()

	require.NoError(t, store.SaveExtractedText(ctx, id, ""))
	_, err := bucket.Read(ctx, id+"/"+ExtractedTextFile)
	assert.ErrorIs(t, err, ErrObjectNotExist, "empty extracted text should not be stored")

	require.NoError(t, store.SaveExtractedText(ctx, id, "抽出テキスト"))
	require.NoError(t, store.SaveCompressedText(ctx, id, "圧縮テキスト"))

	data, err := bucket.Read(ctx, id+"/"+CompressedTextFile)
	require.NoError(t, err)
	assert.Equal(t, "圧縮テキスト", string(data))
	assert.Equal(t, contentTypeText, bucket.ContentType(id+"/"+ExtractedTextFile))
}

func TestStore_WriteSkipsExistingObject(t *testing.T) {
	ctx := context.Background()
	store, bucket := newTestStore(nil)
	id := uuid.NewString()

	require.NoError(t, store.SaveCompressedText(ctx, id, "first"))
	require.NoError(t, store.SaveCompressedText(ctx, id, "second"))

	data, err := bucket.Read(ctx, id+"/"+CompressedTextFile)
	require.NoError(t, err)
	assert.Equal(t, "first", string(data))
}

func TestStore_SaveRequestInfo(t *testing.T) {
	ctx := context.Background()
	store, bucket := newTestStore(nil)
	id := uuid.NewString()

	require.NoError(t, store.SaveRequestInfo(ctx, id, map[string]any{"query": "https://suumo.jp/x", "use_browser": true}))

	data, err := bucket.Read(ctx, id+"/"+RequestInfoFile)
	require.NoError(t, err)
	var info RequestInfo
	require.NoError(t, json.Unmarshal(data, &info))
	assert.Equal(t, id, info.UUID)
	assert.JSONEq(t, `{"query":"https://suumo.jp/x","use_browser":true}`, string(info.RequestData))
}

func TestStore_ListSessions_ScansBucketNewestFirst(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(nil)
	base := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)

	ids := []string{uuid.NewString(), uuid.NewString(), uuid.NewString()}
	for i, id := range ids {
		store.now = fixedClock(base.Add(time.Duration(i) * time.Hour))
		require.NoError(t, store.SaveAnalysisResult(ctx, id, testResult{Query: "q" + id[:4], IsURL: i%2 == 0}))
	}
	// A session without a result is skipped
	require.NoError(t, store.SaveCompressedText(ctx, uuid.NewString(), "orphan"))

	sessions, err := store.ListSessions(ctx, 10)
	require.NoError(t, err)
	require.Len(t, sessions, 3)
	assert.Equal(t, ids[2], sessions[0].UUID)
	assert.Equal(t, ids[0], sessions[2].UUID)
	assert.Equal(t, "q"+ids[2][:4], sessions[0].Query)
	assert.True(t, sessions[0].IsURL)
	assert.False(t, sessions[1].IsURL)
}

func TestStore_ListSessions_LimitKeepsNewest(t *testing.T) {
	ctx := context.Background()
	store, bucket := newTestStore(nil)
	base := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)

	var newest string
	for i := 0; i < 5; i++ {
		id := uuid.NewString()
		store.now = fixedClock(base.Add(time.Duration(i) * time.Hour))
		require.NoError(t, store.SaveAnalysisResult(ctx, id, testResult{Query: "q"}))
		newest = id
	}
	require.NoError(t, bucket.Write(ctx, "compressed/listing.txt", []byte("x"), "text/plain"))

	sessions, err := store.ListSessions(ctx, 1)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, newest, sessions[0].UUID)
}

func TestStore_IndexIsUsedWhenConfigured(t *testing.T) {
	ctx := context.Background()
	index := newFakeIndex()
	store, _ := newTestStore(index)
	id := uuid.NewString()

	require.NoError(t, store.SaveAnalysisResult(ctx, id, testResult{Query: "港区", IsURL: false}))
	require.Contains(t, index.sessions, id)
	assert.Equal(t, "港区", index.sessions[id].Query)

	sessions, err := store.ListSessions(ctx, 0)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, id, sessions[0].UUID)
}

func TestStore_IndexFailureDoesNotFailSave(t *testing.T) {
	ctx := context.Background()
	index := newFakeIndex()
	index.putErr = errors.New("firestore unavailable")
	store, _ := newTestStore(index)
	id := uuid.NewString()

	require.NoError(t, store.SaveAnalysisResult(ctx, id, testResult{Query: "q"}))
	record, err := store.GetAnalysisResult(ctx, id)
	require.NoError(t, err)
	assert.NotNil(t, record)
}

func TestStore_DeleteSession(t *testing.T) {
	ctx := context.Background()
	index := newFakeIndex()
	store, bucket := newTestStore(index)
	id := uuid.NewString()
	other := uuid.NewString()

	require.NoError(t, store.SaveExtractedText(ctx, id, "a"))
	require.NoError(t, store.SaveCompressedText(ctx, id, "b"))
	require.NoError(t, store.SaveAnalysisResult(ctx, id, testResult{}))
	require.NoError(t, store.SaveCompressedText(ctx, other, "keep"))

	deleted, err := store.DeleteSession(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 3, deleted)
	assert.Equal(t, []string{id}, index.deleted)

	objects, _, err := bucket.List(ctx, "", "")
	require.NoError(t, err)
	require.Len(t, objects, 1)
	assert.Equal(t, other+"/"+CompressedTextFile, objects[0].Name)

	deleted, err = store.DeleteSession(ctx, id)
	require.NoError(t, err)
	assert.Zero(t, deleted)
}

func TestStore_Stats(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(nil)
	a, b := uuid.NewString(), uuid.NewString()

	require.NoError(t, store.SaveExtractedText(ctx, a, "12345"))
	require.NoError(t, store.SaveCompressedText(ctx, a, "123"))
	require.NoError(t, store.SaveCompressedText(ctx, b, "12"))

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalFiles)
	assert.Equal(t, 2, stats.TotalSessions)
	assert.Equal(t, int64(10), stats.TotalSizeBytes)
	assert.Equal(t, 0.0, stats.TotalSizeMB)
	assert.Equal(t, "test-bucket", stats.BucketName)
}
