package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/satriahrh/acrbridge/domain/entities"
	"github.com/satriahrh/acrbridge/domain/repositories"
)

const recognitionsCollection = "recognitions"

// RecognitionRepository stores recognition history in MongoDB
type RecognitionRepository struct {
	collection *mongo.Collection
	logger     *zap.Logger
}

// NewRecognitionRepository creates a new MongoDB recognition repository
func NewRecognitionRepository(db *mongo.Database, logger *zap.Logger) repositories.RecognitionRepository {
	collection := db.Collection(recognitionsCollection)

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		indexes := []mongo.IndexModel{
			{
				// History listing per device, newest first
				Keys: bson.D{{Key: "device_id", Value: 1}, {Key: "created_at", Value: -1}},
			},
			{
				// Retention sweeps
				Keys: bson.D{{Key: "created_at", Value: 1}},
			},
		}
		if _, err := collection.Indexes().CreateMany(ctx, indexes); err != nil {
			logger.Warn("Failed to create recognition indexes", zap.Error(err))
		}
	}()

	return &RecognitionRepository{
		collection: collection,
		logger:     logger,
	}
}

// Save implements repositories.RecognitionRepository
func (r *RecognitionRepository) Save(ctx context.Context, recognition *entities.Recognition) error {
	if recognition == nil {
		return errors.New("recognition cannot be nil")
	}
	if err := recognition.Validate(); err != nil {
		return err
	}
	if recognition.CreatedAt.IsZero() {
		recognition.CreatedAt = time.Now()
	}

	if _, err := r.collection.InsertOne(ctx, recognition); err != nil {
		return fmt.Errorf("failed to save recognition: %w", err)
	}
	return nil
}

// ListByDeviceID implements repositories.RecognitionRepository
func (r *RecognitionRepository) ListByDeviceID(ctx context.Context, deviceID string, limit int) ([]*entities.Recognition, error) {
	if deviceID == "" {
		return nil, errors.New("device ID cannot be empty")
	}

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cursor, err := r.collection.Find(ctx, bson.M{"device_id": deviceID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list recognitions for device %s: %w", deviceID, err)
	}
	defer cursor.Close(ctx)

	recognitions := []*entities.Recognition{}
	if err := cursor.All(ctx, &recognitions); err != nil {
		return nil, fmt.Errorf("failed to decode recognitions: %w", err)
	}
	return recognitions, nil
}

// DeleteOlderThan implements repositories.RecognitionRepository
func (r *RecognitionRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.collection.DeleteMany(ctx, bson.M{"created_at": bson.M{"$lt": cutoff}})
	if err != nil {
		return 0, fmt.Errorf("failed to delete old recognitions: %w", err)
	}
	if result.DeletedCount > 0 {
		r.logger.Info("Deleted old recognitions", zap.Int64("count", result.DeletedCount))
	}
	return result.DeletedCount, nil
}
