package artifact

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtension(t *testing.T) {
	assert.Equal(t, ".png", extension("image/png"))
	assert.Equal(t, ".wav", extension("audio/wav"))
	assert.Equal(t, ".bin", extension("audio/L16;codec=pcm;rate=24000"))
	assert.Equal(t, ".bin", extension(""))
}

func TestSanitize(t *testing.T) {
	assert.Equal(t, "s1", sanitize("s1"))
	assert.Equal(t, "___etc", sanitize("../etc"))
	assert.Equal(t, "_", sanitize(""))
}

func TestValidRef(t *testing.T) {
	assert.True(t, validRef("s1/abc.png"))
	assert.False(t, validRef("../x.png"))
	assert.False(t, validRef("/abs/x.png"))
	assert.False(t, validRef("s1/../../x"))
	assert.False(t, validRef("x.png"))
	assert.False(t, validRef(""))
}

func TestDirStore(t *testing.T) {
	ctx := context.Background()
	s, err := NewDirStore(t.TempDir())
	require.NoError(t, err)

	ref, err := s.Put(ctx, "s1", []byte("png-bytes"), "image/png")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(ref, "s1/"))
	assert.True(t, strings.HasSuffix(ref, ".png"))

	data, mimeType, err := s.Get(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, []byte("png-bytes"), data)
	assert.Equal(t, "image/png", mimeType)

	path, err := s.Path(ref)
	require.NoError(t, err)
	_, err = os.Stat(path)
	assert.NoError(t, err)

	_, _, err = s.Get(ctx, "s1/missing.png")
	assert.ErrorIs(t, err, ErrNotFound)
	_, _, err = s.Get(ctx, "../../etc/passwd")
	assert.ErrorIs(t, err, ErrInvalidRef)
	_, err = s.Put(ctx, "s1", nil, "image/png")
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	ref, err := s.Put(ctx, "s1", []byte("audio"), "audio/wav")
	require.NoError(t, err)
	assert.Equal(t, 1, s.Len())

	data, mimeType, err := s.Get(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, []byte("audio"), data)
	assert.Equal(t, "audio/wav", mimeType)

	_, _, err = s.Get(ctx, "s1/none.wav")
	assert.ErrorIs(t, err, ErrNotFound)
}
