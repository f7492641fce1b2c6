package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenUniqueID(t *testing.T) {
	id, err := GenUniqueID("123", 0x1, 0x2)
	require.NoError(t, err)
	assert.Equal(t, int64(0x1230000000001002), id)

	// the top bit is always cleared
	id, err = GenUniqueID("fff", 0xffffffffff, 0xfff)
	require.NoError(t, err)
	assert.True(t, id > 0)
}

func TestRequestIDs_UniqueWithinMillisecond(t *testing.T) {
	ids := NewRequestIDs("001")
	clock := time.UnixMilli(CUSTOM_EPOCH + 5000)
	ids.now = func() time.Time { return clock }

	seen := map[int64]bool{}
	for i := 0; i < 100; i++ {
		id, err := ids.Next()
		require.NoError(t, err)
		assert.False(t, seen[id])
		seen[id] = true
	}

	clock = clock.Add(time.Millisecond)
	later, err := ids.Next()
	require.NoError(t, err)
	for id := range seen {
		assert.Greater(t, later, id)
	}
}

func TestRequestIDs_ClockGoingBackwards(t *testing.T) {
	ids := NewRequestIDs("001")
	clock := time.UnixMilli(CUSTOM_EPOCH + 5000)
	ids.now = func() time.Time { return clock }
	_, err := ids.Next()
	require.NoError(t, err)

	clock = clock.Add(-time.Second)
	_, err = ids.Next()
	assert.Error(t, err)
}

func TestRegionFromZone(t *testing.T) {
	region, err := regionFromZone("projects/123456/zones/europe-west3-a")
	require.NoError(t, err)
	assert.Equal(t, "europe-west3", region)

	_, err = regionFromZone("garbage")
	assert.Error(t, err)
}

func TestRegionOrDefault(t *testing.T) {
	region, err := RegionOrDefault("us-east1")
	require.NoError(t, err)
	assert.Equal(t, "us-east1", region)
}
