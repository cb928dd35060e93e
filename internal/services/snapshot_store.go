package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"slidehub/internal/database"
	"slidehub/internal/editor"
	"slidehub/internal/models"
)

// SnapshotStore persists the latest auto-saved document state per
// (documentId, userId). It satisfies the editor's Persister interface.
type SnapshotStore struct {
	collection *mongo.Collection
}

func NewSnapshotStore(mongodb *database.MongoDB) *SnapshotStore {
	return &SnapshotStore{
		collection: mongodb.Collection(database.CollectionSnapshots),
	}
}

// SaveSnapshot upserts the latest snapshot for the pair. Each save
// replaces the previous one; history lives in the editor's undo stack,
// not here.
func (s *SnapshotStore) SaveSnapshot(ctx context.Context, documentID, userID string, doc models.Document) error {
	start := time.Now()
	_, err := s.collection.UpdateOne(ctx,
		bson.M{"documentId": documentID, "userId": userID},
		bson.M{"$set": bson.M{
			"document": doc,
			"savedAt":  time.Now(),
		}},
		options.Update().SetUpsert(true),
	)
	if m := GetMetrics(); m != nil {
		if err != nil {
			m.RecordAutoSave("failed")
		} else {
			m.RecordAutoSave("saved")
			m.RecordAutoSaveDuration(time.Since(start).Seconds())
		}
	}
	if err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}

// Get returns the stored snapshot, or (nil, nil) when none exists —
// a first-time join starts from a fresh document.
func (s *SnapshotStore) Get(ctx context.Context, documentID, userID string) (*models.DocumentSnapshot, error) {
	var snapshot models.DocumentSnapshot
	err := s.collection.FindOne(ctx, bson.M{
		"documentId": documentID,
		"userId":     userID,
	}).Decode(&snapshot)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}
	return &snapshot, nil
}

// DeleteOlderThan prunes snapshots not saved since the cutoff and returns
// how many were removed. Session rows are never touched here.
func (s *SnapshotStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.collection.DeleteMany(ctx, bson.M{
		"savedAt": bson.M{"$lt": cutoff},
	})
	if err != nil {
		return 0, fmt.Errorf("failed to prune snapshots: %w", err)
	}
	return result.DeletedCount, nil
}

var _ editor.Persister = (*SnapshotStore)(nil)
