package embedding

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAPI returns deterministic embeddings and records calls. A mutex guards
// the call log because sub-batches run concurrently.
type fakeAPI struct {
	mu         sync.Mutex
	calls      [][]string
	dimensions int
	failOn     string
}

func newFakeAPI(dimensions int) *fakeAPI {
	return &fakeAPI{dimensions: dimensions}
}

func (f *fakeAPI) CreateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	f.calls = append(f.calls, texts)
	f.mu.Unlock()

	out := make([][]float32, len(texts))
	for i, text := range texts {
		if f.failOn != "" && text == f.failOn {
			return nil, errors.New("upstream failure")
		}
		e := make([]float32, f.dimensions)
		// Encode the text length so order can be asserted.
		e[0] = float32(len(text))
		out[i] = e
	}
	return out, nil
}

func (f *fakeAPI) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func TestGateway_EmbedQuery_Success(t *testing.T) {
	api := newFakeAPI(8)
	gw := NewGatewayWithAPI(api, 8, 100)

	embedding, err := gw.EmbedQuery(context.Background(), "how do refunds work")

	require.NoError(t, err)
	assert.Len(t, embedding, 8)
}

func TestGateway_EmbedQuery_EmptyText(t *testing.T) {
	gw := NewGatewayWithAPI(newFakeAPI(8), 8, 100)

	embedding, err := gw.EmbedQuery(context.Background(), "")

	assert.Nil(t, embedding)
	assert.Equal(t, ErrEmptyText, err)
}

func TestGateway_EmbedQuery_WrongDimensions(t *testing.T) {
	api := newFakeAPI(4)
	gw := NewGatewayWithAPI(api, 8, 100)

	embedding, err := gw.EmbedQuery(context.Background(), "hello")

	assert.Nil(t, embedding)
	assert.ErrorIs(t, err, ErrWrongDimensions)
}

func TestGateway_EmbedBatch_PreservesOrder(t *testing.T) {
	api := newFakeAPI(8)
	gw := NewGatewayWithAPI(api, 8, 2)

	texts := []string{"a", "bb", "ccc", "dddd", "eeeee"}
	embeddings, err := gw.EmbedBatch(context.Background(), texts)

	require.NoError(t, err)
	require.Len(t, embeddings, len(texts))
	for i, text := range texts {
		assert.Equal(t, float32(len(text)), embeddings[i][0], "embedding %d out of order", i)
	}
	// 5 texts at batch size 2 means 3 upstream calls.
	assert.Equal(t, 3, api.callCount())
}

func TestGateway_EmbedBatch_SingleBatch(t *testing.T) {
	api := newFakeAPI(8)
	gw := NewGatewayWithAPI(api, 8, 100)

	texts := make([]string, 40)
	for i := range texts {
		texts[i] = fmt.Sprintf("chunk %d", i)
	}

	embeddings, err := gw.EmbedBatch(context.Background(), texts)

	require.NoError(t, err)
	assert.Len(t, embeddings, 40)
	assert.Equal(t, 1, api.callCount())
}

func TestGateway_EmbedBatch_FailureAbortsAll(t *testing.T) {
	api := newFakeAPI(8)
	api.failOn = "poison"
	gw := NewGatewayWithAPI(api, 8, 2)

	texts := []string{"a", "b", "poison", "d", "e"}
	embeddings, err := gw.EmbedBatch(context.Background(), texts)

	assert.Error(t, err)
	assert.Nil(t, embeddings)
}

func TestGateway_EmbedBatch_EmptyInput(t *testing.T) {
	gw := NewGatewayWithAPI(newFakeAPI(8), 8, 100)

	embeddings, err := gw.EmbedBatch(context.Background(), nil)

	assert.NoError(t, err)
	assert.Nil(t, embeddings)
}

func TestGateway_EmbedBatch_RejectsEmptyText(t *testing.T) {
	api := newFakeAPI(8)
	gw := NewGatewayWithAPI(api, 8, 100)

	_, err := gw.EmbedBatch(context.Background(), []string{"ok", ""})

	assert.ErrorIs(t, err, ErrEmptyText)
	assert.Equal(t, 0, api.callCount())
}
