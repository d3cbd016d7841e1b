package repository

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/ims-console-api/internal/models"
	appErrors "github.com/noah-isme/ims-console-api/pkg/errors"
)

func newStagingRepo(t *testing.T) (*StagingRepository, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewStagingRepository(client), mr
}

func pendingFor(owner, token, enquiryID string) models.PendingConversion {
	return models.PendingConversion{
		Token:     token,
		OwnerID:   owner,
		EnquiryID: enquiryID,
		EnquiryNo: "ENQ-" + enquiryID,
		Fields:    models.StagedFields{FullName: "Ravi Kumar", EnquiryID: enquiryID},
		StagedAt:  time.Date(2025, 7, 14, 10, 0, 0, 0, time.UTC),
	}
}

func TestStagingRepositorySaveAndLoad(t *testing.T) {
	repo, mr := newStagingRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, pendingFor("user-1", "tok-1", "e1"), 2*time.Hour))

	got, err := repo.Load(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "tok-1", got.Token)
	assert.Equal(t, "e1", got.EnquiryID)
	assert.Equal(t, "Ravi Kumar", got.Fields.FullName)
	assert.Equal(t, "tok-1", mr.HGet(StagingKey("user-1"), "token"))
	assert.Equal(t, 2*time.Hour, mr.TTL(StagingKey("user-1")))
}

func TestStagingRepositoryLastStageWins(t *testing.T) {
	repo, _ := newStagingRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, pendingFor("user-1", "tok-1", "e1"), time.Hour))
	require.NoError(t, repo.Save(ctx, pendingFor("user-1", "tok-2", "e2"), time.Hour))

	got, err := repo.Load(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "tok-2", got.Token)
	assert.Equal(t, "e2", got.EnquiryID)
}

func TestStagingRepositoryExpires(t *testing.T) {
	repo, mr := newStagingRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, pendingFor("user-1", "tok-1", "e1"), time.Hour))
	mr.FastForward(61 * time.Minute)

	_, err := repo.Load(ctx, "user-1")
	assert.True(t, appErrors.Is(err, appErrors.ErrCacheMiss))
}

func TestStagingRepositoryDeleteIfToken(t *testing.T) {
	repo, mr := newStagingRepo(t)
	ctx := context.Background()
	require.NoError(t, repo.Save(ctx, pendingFor("user-1", "tok-2", "e2"), time.Hour))

	deleted, err := repo.DeleteIfToken(ctx, "user-1", "tok-1")
	require.NoError(t, err)
	assert.False(t, deleted)
	assert.True(t, mr.Exists(StagingKey("user-1")))

	deleted, err = repo.DeleteIfToken(ctx, "user-1", "tok-2")
	require.NoError(t, err)
	assert.True(t, deleted)

	_, err = repo.Load(ctx, "user-1")
	assert.True(t, appErrors.Is(err, appErrors.ErrCacheMiss))

	deleted, err = repo.DeleteIfToken(ctx, "user-1", "tok-2")
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestStagingRepositoryDeleteAndOwnership(t *testing.T) {
	repo, _ := newStagingRepo(t)
	ctx := context.Background()
	require.NoError(t, repo.Save(ctx, pendingFor("user-1", "tok-1", "e1"), time.Hour))
	require.NoError(t, repo.Save(ctx, pendingFor("user-2", "tok-9", "e9"), time.Hour))

	require.NoError(t, repo.Delete(ctx, "user-1"))

	_, err := repo.Load(ctx, "user-1")
	assert.True(t, appErrors.Is(err, appErrors.ErrCacheMiss))
	other, err := repo.Load(ctx, "user-2")
	require.NoError(t, err)
	assert.Equal(t, "tok-9", other.Token)
}

func TestStagingRepositoryCorruptPayload(t *testing.T) {
	repo, mr := newStagingRepo(t)
	mr.HSet(StagingKey("user-1"), "token", "tok-1", "payload", "{not json")

	_, err := repo.Load(context.Background(), "user-1")
	require.Error(t, err)
	assert.False(t, appErrors.Is(err, appErrors.ErrCacheMiss))
}
