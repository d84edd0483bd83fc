package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Object names within a session prefix.
const (
	RequestInfoFile    = "request_info.json"
	ExtractedTextFile  = "extracted_text.txt"
	CompressedTextFile = "compressed_text.txt"
	AnalysisResultFile = "analysis_result.json"
)

// RecordVersion is written into every analysis record.
const RecordVersion = "1.0"

const (
	contentTypeJSON = "application/json"
	contentTypeText = "text/plain; charset=utf-8"
)

// ErrInvalidSessionID is returned for IDs that are not UUIDs.
var ErrInvalidSessionID = errors.New("invalid session ID")

// RequestInfo is the stored copy of the incoming request.
type RequestInfo struct {
	UUID        string          `json:"uuid"`
	Timestamp   time.Time       `json:"timestamp"`
	RequestData json.RawMessage `json:"request_data"`
}

// AnalysisRecord wraps an analysis result with session metadata.
type AnalysisRecord struct {
	UUID         string          `json:"uuid"`
	Timestamp    time.Time       `json:"timestamp"`
	Version      string          `json:"version"`
	AnalysisData json.RawMessage `json:"analysis_data"`
}

// sessionFields are read from analysis data to build a Session.
type sessionFields struct {
	Query string `json:"query"`
	IsURL bool   `json:"is_url"`
}

// Stats summarizes bucket usage.
type Stats struct {
	TotalFiles     int     `json:"total_files"`
	TotalSessions  int     `json:"total_sessions"`
	TotalSizeBytes int64   `json:"total_size_bytes"`
	TotalSizeMB    float64 `json:"total_size_mb"`
	BucketName     string  `json:"bucket_name"`
}

// Store reads and writes session artifacts under "{uuid}/".
type Store struct {
	bucket Bucket
	index  SessionIndex
	now    func() time.Time
}

// NewStore creates a store. index may be nil, in which case sessions are
// listed by scanning the bucket.
func NewStore(bucket Bucket, index SessionIndex) *Store {
	return &Store{bucket: bucket, index: index, now: func() time.Time { return time.Now().UTC() }}
}

// BucketName returns the underlying bucket's name.
func (s *Store) BucketName() string { return s.bucket.Name() }

func objectName(id, file string) (string, error) {
	if _, err := uuid.Parse(id); err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidSessionID, id)
	}
	return id + "/" + file, nil
}

// write stores data; an existing object is left untouched.
func (s *Store) write(ctx context.Context, id, file string, data []byte, contentType string) error {
	name, err := objectName(id, file)
	if err != nil {
		return err
	}
	err = s.bucket.Write(ctx, name, data, contentType)
	if errors.Is(err, ErrObjectExists) {
		slog.WarnContext(ctx, "object already exists, skipping write", "object", name)
		return nil
	}
	if err != nil {
		return err
	}
	slog.DebugContext(ctx, "stored object", "object", name, "bytes", len(data))
	return nil
}

// SaveRequestInfo stores the request that started a session.
func (s *Store) SaveRequestInfo(ctx context.Context, id string, request any) error {
	raw, err := json.Marshal(request)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}
	data, err := json.MarshalIndent(RequestInfo{UUID: id, Timestamp: s.now(), RequestData: raw}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode request info: %w", err)
	}
	return s.write(ctx, id, RequestInfoFile, data, contentTypeJSON)
}

// SaveExtractedText stores the text extracted from the listing. Empty text
// is not stored.
func (s *Store) SaveExtractedText(ctx context.Context, id, text string) error {
	if text == "" {
		return nil
	}
	return s.write(ctx, id, ExtractedTextFile, []byte(text), contentTypeText)
}

// SaveCompressedText stores the compressed listing text.
func (s *Store) SaveCompressedText(ctx context.Context, id, text string) error {
	return s.write(ctx, id, CompressedTextFile, []byte(text), contentTypeText)
}

// SaveAnalysisResult stores result in an AnalysisRecord envelope and, when
// an index is configured, records the session there.
func (s *Store) SaveAnalysisResult(ctx context.Context, id string, result any) error {
	raw, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to encode analysis result: %w", err)
	}
	record := AnalysisRecord{UUID: id, Timestamp: s.now(), Version: RecordVersion, AnalysisData: raw}
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode analysis record: %w", err)
	}
	if err := s.write(ctx, id, AnalysisResultFile, data, contentTypeJSON); err != nil {
		return err
	}

	if s.index != nil {
		if err := s.index.Put(ctx, sessionFromRecord(&record)); err != nil {
			// The bucket scan still finds the session
			slog.WarnContext(ctx, "failed to index session", "uuid", id, "error", err)
		}
	}
	return nil
}

// GetAnalysisResult returns the stored record, or nil when the session has
// no result.
func (s *Store) GetAnalysisResult(ctx context.Context, id string) (*AnalysisRecord, error) {
	name, err := objectName(id, AnalysisResultFile)
	if err != nil {
		return nil, err
	}
	data, err := s.bucket.Read(ctx, name)
	if errors.Is(err, ErrObjectNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var record AnalysisRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", name, err)
	}
	return &record, nil
}

// ListSessions returns up to limit sessions, newest first.
func (s *Store) ListSessions(ctx context.Context, limit int) ([]Session, error) {
	if limit <= 0 {
		limit = 100
	}
	if s.index != nil {
		return s.index.List(ctx, limit)
	}

	_, prefixes, err := s.bucket.List(ctx, "", "/")
	if err != nil {
		return nil, err
	}
	sessions := make([]Session, 0, len(prefixes))
	for _, prefix := range prefixes {
		id := strings.TrimSuffix(prefix, "/")
		if _, err := uuid.Parse(id); err != nil {
			continue
		}
		record, err := s.GetAnalysisResult(ctx, id)
		if err != nil {
			slog.WarnContext(ctx, "failed to read session", "uuid", id, "error", err)
			continue
		}
		if record == nil {
			continue
		}
		sessions = append(sessions, sessionFromRecord(record))
	}

	sort.SliceStable(sessions, func(i, j int) bool {
		return sessions[i].Timestamp.After(sessions[j].Timestamp)
	})
	if len(sessions) > limit {
		sessions = sessions[:limit]
	}
	return sessions, nil
}

func sessionFromRecord(record *AnalysisRecord) Session {
	var fields sessionFields
	_ = json.Unmarshal(record.AnalysisData, &fields)
	return Session{UUID: record.UUID, Timestamp: record.Timestamp, Query: fields.Query, IsURL: fields.IsURL}
}

// DeleteSession removes every object of the session and returns how many
// were deleted.
func (s *Store) DeleteSession(ctx context.Context, id string) (int, error) {
	if _, err := uuid.Parse(id); err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidSessionID, id)
	}

	objects, _, err := s.bucket.List(ctx, id+"/", "")
	if err != nil {
		return 0, err
	}
	deleted := 0
	for _, obj := range objects {
		if err := s.bucket.Delete(ctx, obj.Name); err != nil && !errors.Is(err, ErrObjectNotExist) {
			return deleted, err
		}
		deleted++
	}

	if s.index != nil {
		if err := s.index.Delete(ctx, id); err != nil {
			return deleted, err
		}
	}
	slog.InfoContext(ctx, "deleted session", "uuid", id, "objects", deleted)
	return deleted, nil
}

// Stats counts objects, sessions and bytes in the bucket.
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	objects, _, err := s.bucket.List(ctx, "", "")
	if err != nil {
		return nil, err
	}

	stats := &Stats{BucketName: s.bucket.Name()}
	sessions := map[string]struct{}{}
	for _, obj := range objects {
		stats.TotalFiles++
		stats.TotalSizeBytes += obj.Size
		if head, _, ok := strings.Cut(obj.Name, "/"); ok {
			sessions[head] = struct{}{}
		}
	}
	stats.TotalSessions = len(sessions)
	stats.TotalSizeMB = math.Round(float64(stats.TotalSizeBytes)/(1024*1024)*100) / 100
	return stats, nil
}
