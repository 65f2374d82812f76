package adapters

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satriahrh/acrbridge/domain/entities"
)

func TestMemoryDeviceRepository_RegisterAndValidate(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryDeviceRepository()

	device, err := repo.Register(ctx, "SN-001", "s3cret", "speaker")
	require.NoError(t, err)
	assert.NotEmpty(t, device.ID)

	validated, err := repo.ValidateDevice("SN-001", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, device.ID, validated.ID)

	_, err = repo.ValidateDevice("SN-001", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = repo.ValidateDevice("SN-404", "s3cret")
	assert.ErrorIs(t, err, ErrDeviceNotFound)

	_, err = repo.Register(ctx, "SN-001", "other", "speaker")
	assert.ErrorIs(t, err, ErrDuplicateSerial)

	bySerial, err := repo.GetBySerialNumber(ctx, "SN-001")
	require.NoError(t, err)
	assert.Equal(t, "speaker", bySerial.Model)

	byID, err := repo.GetByID(ctx, device.ID)
	require.NoError(t, err)
	assert.Equal(t, "SN-001", byID.SerialNumber)
}

func TestMemoryRecognitionRepository_ListNewestFirst(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRecognitionRepository()
	base := time.Now()

	for i := 0; i < 3; i++ {
		recognition := entities.NewRecognition("device-1", "session-1", entities.RecognitionSourceListen, "{}")
		recognition.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, repo.Save(ctx, recognition))
	}
	require.NoError(t, repo.Save(ctx, entities.NewRecognition("device-2", "session-2", entities.RecognitionSourceFingerprint, "{}")))

	list, err := repo.ListByDeviceID(ctx, "device-1", 2)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, base.Add(2*time.Minute), list[0].CreatedAt)
	assert.Equal(t, base.Add(time.Minute), list[1].CreatedAt)

	all, err := repo.ListByDeviceID(ctx, "device-1", 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	assert.Error(t, repo.Save(ctx, &entities.Recognition{}))
}

func TestMemoryRecognitionRepository_DeleteOlderThan(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRecognitionRepository()

	old := entities.NewRecognition("device-1", "s", entities.RecognitionSourceListen, "{}")
	old.CreatedAt = time.Now().Add(-48 * time.Hour)
	fresh := entities.NewRecognition("device-1", "s", entities.RecognitionSourceListen, "{}")
	require.NoError(t, repo.Save(ctx, old))
	require.NoError(t, repo.Save(ctx, fresh))

	deleted, err := repo.DeleteOlderThan(ctx, time.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	list, err := repo.ListByDeviceID(ctx, "device-1", 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, fresh.ID, list[0].ID)
}
