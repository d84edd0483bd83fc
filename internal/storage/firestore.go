package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
)

// DefaultSessionCollection is the Firestore collection for the session index.
const DefaultSessionCollection = "sessions"

// Session summarizes a stored analysis.
type Session struct {
	UUID      string    `json:"uuid" firestore:"uuid"`
	Timestamp time.Time `json:"timestamp" firestore:"timestamp"`
	Query     string    `json:"query" firestore:"query"`
	IsURL     bool      `json:"is_url" firestore:"is_url"`
}

// SessionIndex lists sessions without scanning the bucket.
type SessionIndex interface {
	Put(ctx context.Context, s Session) error
	List(ctx context.Context, limit int) ([]Session, error)
	Delete(ctx context.Context, id string) error
}

// FirestoreIndex keeps one document per session, keyed by UUID.
type FirestoreIndex struct {
	sessions *firestore.CollectionRef
}

// NewFirestoreIndex uses the given collection, or DefaultSessionCollection.
func NewFirestoreIndex(client *firestore.Client, collection string) *FirestoreIndex {
	if collection == "" {
		collection = DefaultSessionCollection
	}
	return &FirestoreIndex{sessions: client.Collection(collection)}
}

// Put writes the session document.
func (f *FirestoreIndex) Put(ctx context.Context, s Session) error {
	if _, err := f.sessions.Doc(s.UUID).Set(ctx, s); err != nil {
		return fmt.Errorf("failed to index session %s: %w", s.UUID, err)
	}
	return nil
}

// List returns up to limit sessions, newest first.
func (f *FirestoreIndex) List(ctx context.Context, limit int) ([]Session, error) {
	iter := f.sessions.OrderBy("timestamp", firestore.Desc).Limit(limit).Documents(ctx)
	defer iter.Stop()

	var sessions []Session
	for {
		doc, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list sessions: %w", err)
		}
		var s Session
		if err := doc.DataTo(&s); err != nil {
			return nil, fmt.Errorf("failed to decode session %s: %w", doc.Ref.ID, err)
		}
		sessions = append(sessions, s)
	}
	return sessions, nil
}

// Delete removes the session document. Deleting a missing document succeeds.
func (f *FirestoreIndex) Delete(ctx context.Context, id string) error {
	if _, err := f.sessions.Doc(id).Delete(ctx); err != nil {
		return fmt.Errorf("failed to remove session %s from index: %w", id, err)
	}
	return nil
}
