package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/ims-console-api/pkg/errors"
)

func TestCacheRepositoryWithoutClient(t *testing.T) {
	repo := NewCacheRepository(nil, nil)
	var dest map[string]string

	err := repo.Get(context.Background(), "setup:all", &dest)
	assert.True(t, appErrors.Is(err, appErrors.ErrCacheMiss))
	require.NoError(t, repo.Set(context.Background(), "setup:all", map[string]string{"a": "b"}, time.Minute))
	require.NoError(t, repo.DeleteByPattern(context.Background(), "setup:*"))
	assert.Error(t, repo.Ping(context.Background()))
}

func TestStagingKey(t *testing.T) {
	assert.Equal(t, "conversion:pending:user-7", StagingKey("user-7"))
}
