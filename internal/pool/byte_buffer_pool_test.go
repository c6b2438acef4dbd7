package pool

import (
	"bytes"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewByteBuffer(t *testing.T) {
	bb := NewByteBuffer(1024)

	require.NotNil(t, bb)
	assert.Equal(t, 0, bb.Len())
	assert.Equal(t, 1024, bb.Cap())
}

func TestByteBuffer_MustWriteAndBytes(t *testing.T) {
	bb := NewByteBuffer(ChunkBufferDefaultSize)
	bb.MustWrite([]byte("hello"))

	assert.Equal(t, []byte("hello"), bb.Bytes())
	assert.Equal(t, 5, bb.Len())
}

func TestByteBuffer_Reset(t *testing.T) {
	bb := NewByteBuffer(ChunkBufferDefaultSize)
	bb.MustWrite([]byte("some data"))
	bb.Reset()

	assert.Equal(t, 0, bb.Len())
	assert.GreaterOrEqual(t, bb.Cap(), ChunkBufferDefaultSize)
}

func TestByteBuffer_SliceAndSetLength(t *testing.T) {
	bb := NewByteBuffer(16)
	bb.ExtendOrGrow(8)
	s := bb.Slice(0, 8)
	copy(s, []byte("01234567"))

	assert.Equal(t, []byte("01234567"), bb.Bytes())

	bb.SetLength(4)
	assert.Equal(t, 4, bb.Len())
}

func TestByteBuffer_Grow(t *testing.T) {
	bb := NewByteBuffer(4)
	bb.Grow(1024)

	assert.GreaterOrEqual(t, bb.Cap(), 1024)
	assert.Equal(t, 0, bb.Len(), "Grow must not change length")
}

func TestByteBuffer_WriteTo(t *testing.T) {
	bb := NewByteBuffer(ChunkBufferDefaultSize)
	bb.MustWrite([]byte("payload"))

	var out bytes.Buffer
	n, err := bb.WriteTo(&out)

	require.NoError(t, err)
	assert.EqualValues(t, 7, n)
	assert.Equal(t, "payload", out.String())
}

func TestByteBufferPool_GetPutReuse(t *testing.T) {
	pool := NewByteBufferPool(64, 1024)

	bb := pool.Get()
	bb.MustWrite([]byte("data"))
	pool.Put(bb)

	bb2 := pool.Get()
	require.NotNil(t, bb2)
	assert.Equal(t, 0, bb2.Len(), "pooled buffer must come back reset")
}

func TestByteBufferPool_DiscardsOversizedBuffers(t *testing.T) {
	pool := NewByteBufferPool(64, 128)

	bb := pool.Get()
	bb.Grow(256)
	pool.Put(bb)

	// The oversized buffer was discarded; Get() must still work and
	// return a usable (possibly brand-new) buffer.
	bb2 := pool.Get()
	require.NotNil(t, bb2)
}

func TestByteBufferPool_ConcurrentAccess(t *testing.T) {
	pool := NewByteBufferPool(64, 1024)

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			bb := pool.Get()
			bb.MustWrite([]byte("x"))
			pool.Put(bb)
		}()
	}
	wg.Wait()
}

func TestGetPutChunkBuffer(t *testing.T) {
	bb := GetChunkBuffer()
	require.NotNil(t, bb)
	bb.MustWrite([]byte("chunk payload"))
	PutChunkBuffer(bb)
}
