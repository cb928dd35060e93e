package services

import (
	"context"
	"fmt"
	"log"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"slidehub/internal/database"
	"slidehub/internal/models"
	"slidehub/internal/presence"
)

// listCacheTTL coalesces back-to-back list reads: when a burst of change
// events triggers reloads from many local subscribers, only the first one
// hits MongoDB.
const listCacheTTL = 1 * time.Second

// ChangePublisher broadcasts a session-table change to subscribers
type ChangePublisher interface {
	Publish(ctx context.Context, ev presence.ChangeEvent) error
}

// SessionStore handles MongoDB CRUD for collaboration sessions. Every
// successful mutation publishes a change event for the affected document;
// publish failures are logged and swallowed — presence stays best-effort.
type SessionStore struct {
	collection *mongo.Collection
	publisher  ChangePublisher
	listCache  *gocache.Cache
}

// NewSessionStore creates a session store. publisher may be nil (no
// broadcasting, e.g. single-process dev mode).
func NewSessionStore(mongodb *database.MongoDB, publisher ChangePublisher) *SessionStore {
	return &SessionStore{
		collection: mongodb.Collection(database.CollectionSessions),
		publisher:  publisher,
		listCache:  gocache.New(listCacheTTL, 5*time.Minute),
	}
}

// Upsert creates or refreshes the session row for (documentId, userId,
// tabId). A concurrent create for the same triple resolves to an update
// rather than a duplicate, so re-joining is a race-tolerant no-op.
// Fields assigned once at creation (color, createdAt) survive re-joins.
func (s *SessionStore) Upsert(ctx context.Context, session *models.CollaborationSession) (*models.CollaborationSession, error) {
	now := time.Now()
	filter := bson.M{
		"documentId": session.DocumentID,
		"userId":     session.UserID,
		"tabId":      session.TabID,
	}
	update := bson.M{
		"$set": bson.M{
			"userEmail":  session.UserEmail,
			"userName":   session.UserName,
			"lastActive": now,
		},
		"$setOnInsert": bson.M{
			"documentId":        session.DocumentID,
			"userId":            session.UserID,
			"tabId":             session.TabID,
			"color":             session.Color,
			"currentSlideIndex": 0,
			"createdAt":         now,
		},
	}

	result, err := s.collection.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err != nil {
		return nil, fmt.Errorf("failed to upsert session: %w", err)
	}

	var stored models.CollaborationSession
	if err := s.collection.FindOne(ctx, filter).Decode(&stored); err != nil {
		return nil, fmt.Errorf("failed to load upserted session: %w", err)
	}

	s.publishChange(ctx, upsertKind(result), stored.DocumentID, stored.ID.Hex())
	return &stored, nil
}

// upsertKind maps an upsert outcome to the change-event kind: a fresh row
// is an insert, a matched row refreshed in place (a re-join) is an update.
func upsertKind(result *mongo.UpdateResult) string {
	if result != nil && result.UpsertedCount > 0 {
		return "insert"
	}
	return "update"
}

// UpdateCursor writes the last known pointer position and refreshes
// lastActive
func (s *SessionStore) UpdateCursor(ctx context.Context, documentID, userID, tabID string, pos models.CursorPosition) error {
	return s.touch(ctx, documentID, userID, tabID, bson.M{"cursorPosition": pos})
}

// UpdateFocusedSlide writes the focused slide index and refreshes
// lastActive
func (s *SessionStore) UpdateFocusedSlide(ctx context.Context, documentID, userID, tabID string, index int) error {
	return s.touch(ctx, documentID, userID, tabID, bson.M{"currentSlideIndex": index})
}

// Heartbeat refreshes lastActive without touching cursor or focus fields
func (s *SessionStore) Heartbeat(ctx context.Context, documentID, userID, tabID string) error {
	return s.touch(ctx, documentID, userID, tabID, nil)
}

// touch applies extra $set fields plus the lastActive refresh shared by
// every session mutation
func (s *SessionStore) touch(ctx context.Context, documentID, userID, tabID string, extra bson.M) error {
	set := bson.M{"lastActive": time.Now()}
	for k, v := range extra {
		set[k] = v
	}

	result, err := s.collection.UpdateOne(ctx, bson.M{
		"documentId": documentID,
		"userId":     userID,
		"tabId":      tabID,
	}, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("no session for document %s user %s tab %s", documentID, userID, tabID)
	}

	s.publishChange(ctx, "update", documentID, "")
	return nil
}

// Delete removes the session row. Deleting an already-removed row is a
// no-op, so Leave stays idempotent.
func (s *SessionStore) Delete(ctx context.Context, documentID, userID, tabID string) error {
	result, err := s.collection.DeleteOne(ctx, bson.M{
		"documentId": documentID,
		"userId":     userID,
		"tabId":      tabID,
	})
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	if result.DeletedCount > 0 {
		s.publishChange(ctx, "delete", documentID, "")
	}
	return nil
}

// ListByDocument returns the document's session rows with lastActive inside
// the staleness window. The query narrows the read via the
// (documentId, lastActive) index; the presence manager re-applies the
// filter canonically together with self-exclusion.
func (s *SessionStore) ListByDocument(ctx context.Context, documentID string) ([]models.CollaborationSession, error) {
	if cached, ok := s.listCache.Get(documentID); ok {
		return cached.([]models.CollaborationSession), nil
	}

	cursor, err := s.collection.Find(ctx, bson.M{
		"documentId": documentID,
		"lastActive": bson.M{"$gte": time.Now().Add(-presence.StaleAfter)},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer cursor.Close(ctx)

	var sessions []models.CollaborationSession
	if err := cursor.All(ctx, &sessions); err != nil {
		return nil, fmt.Errorf("failed to decode sessions: %w", err)
	}

	s.listCache.Set(documentID, sessions, listCacheTTL)
	return sessions, nil
}

// publishChange invalidates the read cache and broadcasts the change.
// Broadcast failure never fails the write that caused it.
func (s *SessionStore) publishChange(ctx context.Context, kind, documentID, sessionID string) {
	s.listCache.Delete(documentID)

	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, presence.ChangeEvent{
		Kind:       kind,
		DocumentID: documentID,
		SessionID:  sessionID,
	}); err != nil {
		log.Printf("⚠️ [SESSION-STORE] Failed to publish %s event for document %s: %v", kind, documentID, err)
	}
}
