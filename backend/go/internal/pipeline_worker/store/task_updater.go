package store

import (
	"JobPilot/backend/go/pkg/models"
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// TaskUpdater defines the interface the worker uses to move task records
// through their lifecycle.
type TaskUpdater interface {
	Create(ctx context.Context, task *models.TaskRecord) error
	MarkRunning(ctx context.Context, taskID string) error
	MarkCompleted(ctx context.Context, taskID string, result interface{}) error
	MarkFailed(ctx context.Context, taskID string, errMsg string) error
}

// MongoTaskUpdater is an implementation of TaskUpdater using MongoDB.
type MongoTaskUpdater struct {
	collection *mongo.Collection
}

// NewMongoTaskUpdater creates a new MongoTaskUpdater.
func NewMongoTaskUpdater(db *mongo.Database, collectionName string) *MongoTaskUpdater {
	return &MongoTaskUpdater{
		collection: db.Collection(collectionName),
	}
}

// Create inserts a new task record. The worker only does this for research
// tasks it spawns out of an inbox scan.
func (s *MongoTaskUpdater) Create(ctx context.Context, task *models.TaskRecord) error {
	_, err := s.collection.InsertOne(ctx, task)
	return err
}

// MarkRunning flips a pending task to running. Polling clients see this state
// on their next request.
func (s *MongoTaskUpdater) MarkRunning(ctx context.Context, taskID string) error {
	update := bson.M{"$set": bson.M{"status": models.TaskStatusRunning}}
	_, err := s.collection.UpdateOne(ctx, bson.M{"_id": taskID}, update)
	return err
}

// MarkCompleted records the task result and completion time.
func (s *MongoTaskUpdater) MarkCompleted(ctx context.Context, taskID string, result interface{}) error {
	update := bson.M{
		"$set": bson.M{
			"status":       models.TaskStatusCompleted,
			"result":       result,
			"completed_at": time.Now(),
		},
	}
	_, err := s.collection.UpdateOne(ctx, bson.M{"_id": taskID}, update)
	return err
}

// MarkFailed records the task error and completion time.
func (s *MongoTaskUpdater) MarkFailed(ctx context.Context, taskID string, errMsg string) error {
	update := bson.M{
		"$set": bson.M{
			"status":       models.TaskStatusFailed,
			"error":        errMsg,
			"completed_at": time.Now(),
		},
	}
	_, err := s.collection.UpdateOne(ctx, bson.M{"_id": taskID}, update)
	return err
}
