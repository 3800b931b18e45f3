package snapshot_test

import (
	"testing"

	"github.com/gtixt/integrity-beacon/models/snapshot"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pointerJSON = `{
  "object": "v1/2026-02-14.json",
  "sha256": "ABCDEF0123456789ABCDEF0123456789ABCDEF0123456789ABCDEF0123451234",
  "created_at": "2026-02-14T04:03:16Z",
  "count": 230,
  "schema": "universe_v0.1",
  "extra": {"ignored": true}
}`

func TestPointerFromJSON(t *testing.T) {
	pointer, err := snapshot.PointerFromJSON([]byte(pointerJSON))
	require.Nil(t, err)
	require.NotNil(t, pointer)
	assert.Equal(t, "v1/2026-02-14.json", pointer.Object)
	assert.Equal(t, "ABCDEF0123456789ABCDEF0123456789ABCDEF0123456789ABCDEF0123451234", pointer.Sha256)
	assert.Equal(t, "2026-02-14T04:03:16Z", pointer.CreatedAt)
	assert.Equal(t, 230, pointer.Count)
	assert.True(t, pointer.IsComplete())
	assert.Empty(t, pointer.MissingFields())
	assert.Equal(t, "abcdef0123456789abcdef0123456789abcdef0123456789abcdef0123451234", pointer.ExpectedDigest())
}

func TestPointerFromJSONBadBody(t *testing.T) {
	_, err := snapshot.PointerFromJSON([]byte("<html>502 Bad Gateway</html>"))
	assert.NotNil(t, err)

	_, err = snapshot.PointerFromJSON([]byte(`["object"]`))
	assert.NotNil(t, err)

	_, err = snapshot.PointerFromJSON([]byte(`{"object": 12}`))
	assert.NotNil(t, err)

	_, err = snapshot.PointerFromJSON([]byte(`{"object": "x.json",`))
	assert.NotNil(t, err)
}

func TestPointerIncomplete(t *testing.T) {
	pointer, err := snapshot.PointerFromJSON([]byte(`{"object": "v1/x.json", "count": 3}`))
	require.Nil(t, err)
	assert.False(t, pointer.IsComplete())
	assert.Equal(t, []string{"sha256"}, pointer.MissingFields())

	pointer, err = snapshot.PointerFromJSON([]byte(`{"object": "  ", "sha256": ""}`))
	require.Nil(t, err)
	assert.False(t, pointer.IsComplete())
	assert.Equal(t, []string{"object", "sha256"}, pointer.MissingFields())

	var nilPointer *snapshot.Pointer
	assert.False(t, nilPointer.IsComplete())
}

func TestPointerWithSource(t *testing.T) {
	pointer, err := snapshot.PointerFromJSON([]byte(pointerJSON))
	require.Nil(t, err)
	stamped := pointer.WithSource("fallback", "http://proxy.internal/latest.json")
	assert.Equal(t, "fallback", stamped.Source)
	assert.Equal(t, "http://proxy.internal/latest.json", stamped.SourceURL)
	assert.Empty(t, pointer.Source)
	assert.Equal(t, pointer.Object, stamped.Object)
}

func TestPointerPublishedAt(t *testing.T) {
	pointer, err := snapshot.PointerFromJSON([]byte(pointerJSON))
	require.Nil(t, err)
	ts, err := pointer.PublishedAt()
	require.Nil(t, err)
	assert.Equal(t, 2026, ts.Year())
	assert.Equal(t, 4, ts.Hour())

	pointer.CreatedAt = "yesterday"
	_, err = pointer.PublishedAt()
	assert.NotNil(t, err)
}

func TestPointerShortDigest(t *testing.T) {
	pointer, err := snapshot.PointerFromJSON([]byte(pointerJSON))
	require.Nil(t, err)
	assert.Equal(t, "abcdef…451234", pointer.ShortDigest(6))
}
