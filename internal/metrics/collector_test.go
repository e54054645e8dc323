package metrics

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector_RecordTiming(t *testing.T) {
	c := NewCollector()
	c.RecordTiming(OpSearch, 10*time.Millisecond)
	c.RecordTiming(OpSearch, 30*time.Millisecond)

	snap := c.Snapshot()
	require.NotNil(t, snap.Search)
	assert.Equal(t, int64(2), snap.Search.Count)
	assert.Equal(t, int64(10), snap.Search.MinTimeMs)
	assert.Equal(t, int64(30), snap.Search.MaxTimeMs)
	assert.Equal(t, float64(20), snap.Search.AvgTimeMs)
}

func TestCollector_EmptyOperationsAreNil(t *testing.T) {
	c := NewCollector()
	c.RecordTiming(OpEmbedding, time.Millisecond)

	snap := c.Snapshot()
	assert.NotNil(t, snap.Embedding)
	assert.Nil(t, snap.Extraction)
	assert.Nil(t, snap.Synthesis)
	assert.Nil(t, snap.Search)
}

func TestCollector_RecordLLMUsage(t *testing.T) {
	c := NewCollector()
	c.RecordLLMUsage(OpSynthesis, 100*time.Millisecond, 500, 120)
	c.RecordLLMUsage(OpSynthesis, 200*time.Millisecond, 300, 80)

	snap := c.Snapshot()
	s := snap.Synthesis
	require.NotNil(t, s)
	require.NotNil(t, s.TotalInputTokens)
	assert.Equal(t, int64(800), *s.TotalInputTokens)
	require.NotNil(t, s.MinInputTokens)
	assert.Equal(t, int64(300), *s.MinInputTokens)
	require.NotNil(t, s.MaxOutputTokens)
	assert.Equal(t, int64(120), *s.MaxOutputTokens)
	require.NotNil(t, s.AvgOutputTokens)
	assert.Equal(t, float64(100), *s.AvgOutputTokens)
}

func TestCollector_TimingOnlyOpsOmitTokens(t *testing.T) {
	c := NewCollector()
	c.RecordTiming(OpVectorWrite, time.Millisecond)

	snap := c.Snapshot()
	require.NotNil(t, snap.VectorWrite)
	assert.Nil(t, snap.VectorWrite.TotalInputTokens)
}

func TestCollector_ConcurrentRecording(t *testing.T) {
	c := NewCollector()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				c.RecordTiming(OpExtraction, time.Millisecond)
			}
		}()
	}
	wg.Wait()

	snap := c.Snapshot()
	require.NotNil(t, snap.Extraction)
	assert.Equal(t, int64(1000), snap.Extraction.Count)
}
