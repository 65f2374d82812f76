package mongo

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/satriahrh/acrbridge/domain/entities"
)

// TestRecognitionRepository_Integration requires a running MongoDB instance
// (skipped if MONGODB_URI is not set)
func TestRecognitionRepository_Integration(t *testing.T) {
	mongoURI := os.Getenv("MONGODB_URI")
	if mongoURI == "" {
		t.Skip("Skipping MongoDB integration test - MONGODB_URI not set")
	}

	ctx := context.Background()
	logger := zaptest.NewLogger(t)

	client, err := NewClient(ctx, mongoURI, "acrbridge_test", logger)
	require.NoError(t, err)
	defer func() {
		client.Database.Drop(ctx)
		client.Close(ctx)
	}()

	repo := NewRecognitionRepository(client.Database, logger)

	t.Run("SaveAndList", func(t *testing.T) {
		base := time.Now().UTC().Truncate(time.Millisecond)
		for i := 0; i < 3; i++ {
			recognition := entities.NewRecognition("device-it", "session-it", entities.RecognitionSourceListen, `{"status":{"code":0}}`)
			recognition.CreatedAt = base.Add(time.Duration(i) * time.Second)
			recognition.Summary.Title = "Track"
			require.NoError(t, repo.Save(ctx, recognition))
		}

		list, err := repo.ListByDeviceID(ctx, "device-it", 2)
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.True(t, list[0].CreatedAt.After(list[1].CreatedAt))
		assert.Equal(t, "Track", list[0].Summary.Title)
		assert.Equal(t, entities.RecognitionSourceListen, list[0].Source)
	})

	t.Run("DeleteOlderThan", func(t *testing.T) {
		old := entities.NewRecognition("device-old", "s", entities.RecognitionSourceFingerprint, "{}")
		old.CreatedAt = time.Now().Add(-72 * time.Hour)
		require.NoError(t, repo.Save(ctx, old))

		deleted, err := repo.DeleteOlderThan(ctx, time.Now().Add(-24*time.Hour))
		require.NoError(t, err)
		assert.GreaterOrEqual(t, deleted, int64(1))

		list, err := repo.ListByDeviceID(ctx, "device-old", 10)
		require.NoError(t, err)
		assert.Empty(t, list)
	})
}
