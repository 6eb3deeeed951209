package store

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/bubblegrade/internal/scan"
)

func sampleResult() *scan.Result {
	r := scan.NewResult("sheet.jpg")
	r.OMR = &scan.OMRResult{Score: 5, Answers: []bool{true, true, true, true, true}, Total: 5}
	r.Nombre = &scan.FieldResult{Text: "ANA TORRES", Confidence: 0.92}
	r.CURP = &scan.FieldResult{Text: "PEGJ850315HJCRRN09", Confidence: 0.97}
	return r
}

func TestMemoryCreateAndGet(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	r := sampleResult()

	require.NoError(t, m.Create(ctx, r))
	got, err := m.Get(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, r, got)
	assert.Equal(t, 1, m.Len())
}

func TestMemoryCreateDuplicate(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	r := sampleResult()

	require.NoError(t, m.Create(ctx, r))
	err := m.Create(ctx, r)
	var perr *PersistenceError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "create", perr.Op)
}

func TestMemoryGetNotFound(t *testing.T) {
	m := NewMemory()
	_, err := m.Get(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryUpdate(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	r := sampleResult()
	require.NoError(t, m.Create(ctx, r))

	r.Status = scan.StatusProcessing
	require.NoError(t, m.Update(ctx, r))

	got, err := m.Get(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, scan.StatusProcessing, got.Status)
}

func TestMemoryUpdateMissing(t *testing.T) {
	m := NewMemory()
	err := m.Update(context.Background(), sampleResult())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryNilRecord(t *testing.T) {
	m := NewMemory()
	assert.Error(t, m.Create(context.Background(), nil))
	assert.Error(t, m.Update(context.Background(), nil))
}

func TestMemoryIsolatesStoredState(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	r := sampleResult()
	require.NoError(t, m.Create(ctx, r))

	// Mutating the caller's record after Create must not leak in.
	r.Nombre.Text = "CHANGED"
	r.OMR.Answers[0] = false

	got, err := m.Get(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, "ANA TORRES", got.Nombre.Text)
	assert.True(t, got.OMR.Answers[0])

	// Mutating a fetched record must not leak back either.
	got.CURP.Text = "XXXX"
	again, err := m.Get(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, "PEGJ850315HJCRRN09", again.CURP.Text)
}

func TestMemoryConcurrentAccess(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	var wg sync.WaitGroup
	ids := make([]uuid.UUID, 20)
	for i := range ids {
		r := sampleResult()
		ids[i] = r.ID
		require.NoError(t, m.Create(ctx, r))
	}

	for _, id := range ids {
		wg.Add(2)
		go func() {
			defer wg.Done()
			got, err := m.Get(ctx, id)
			assert.NoError(t, err)
			got.Status = scan.StatusProcessing
			assert.NoError(t, m.Update(ctx, got))
		}()
		go func() {
			defer wg.Done()
			_, err := m.Get(ctx, id)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, 20, m.Len())
}
