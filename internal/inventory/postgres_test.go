package inventory

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresRepository(t *testing.T) {
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	repo, err := NewPostgresRepository(ctx, url)
	require.NoError(t, err)
	defer repo.Close()

	require.NoError(t, repo.Replace(ctx, catalogue))
	svc := NewService(repo)

	got, err := svc.FindMedication(ctx, "1002")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 4, got[0].Stock)

	got, err = svc.FindMedication(ctx, "amoxicilina")
	require.NoError(t, err)
	assert.Len(t, got, 2)

	got, err = svc.FindMedication(ctx, "gotas")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Dipirona Gotas", got[0].Description)

	got, err = svc.FindMedication(ctx, "100%")
	require.NoError(t, err)
	assert.Empty(t, got)
}
