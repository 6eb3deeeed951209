//go:build integration
// +build integration

package store

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/bubblegrade/internal/scan"
)

// Requires a reachable database. Run with:
//
//	BUBBLEGRADE_TEST_DATABASE_URL=postgres://... go test -tags=integration ./internal/store

func newTestPostgres(t *testing.T) *Postgres {
	t.Helper()
	url := os.Getenv("BUBBLEGRADE_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("BUBBLEGRADE_TEST_DATABASE_URL not set")
	}
	p, err := NewPostgres(context.Background(), PostgresConfig{URL: url, MaxConns: 2})
	require.NoError(t, err)
	t.Cleanup(p.Close)
	require.NoError(t, p.EnsureSchema(context.Background()))
	return p
}

func TestPostgresRoundTrip(t *testing.T) {
	p := newTestPostgres(t)
	ctx := context.Background()
	r := sampleResult()

	require.NoError(t, p.Create(ctx, r))

	got, err := p.Get(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, r.ID, got.ID)
	assert.Equal(t, r.Filename, got.Filename)
	assert.Equal(t, r.Status, got.Status)
	assert.Equal(t, r.OMR, got.OMR)
	assert.Equal(t, r.Nombre, got.Nombre)
	assert.Equal(t, r.CURP, got.CURP)

	got.Status = scan.StatusProcessing
	require.NoError(t, p.Update(ctx, got))

	again, err := p.Get(ctx, got.ID)
	require.NoError(t, err)
	assert.Equal(t, scan.StatusProcessing, again.Status)
}

func TestPostgresGetNotFound(t *testing.T) {
	p := newTestPostgres(t)
	_, err := p.Get(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPostgresUpdateMissing(t *testing.T) {
	p := newTestPostgres(t)
	err := p.Update(context.Background(), sampleResult())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPostgresPing(t *testing.T) {
	p := newTestPostgres(t)
	assert.NoError(t, p.Ping(context.Background()))
}
