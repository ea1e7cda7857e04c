package filetree

import (
	"context"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileTreeDB_RejectsTraversal(t *testing.T) {
	store, err := New(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	for _, name := range []string{"", ".", "..", "../escape.jpeg", "sub/dir.jpeg", `win\dir.jpeg`} {
		_, err := store.WriteBlob(ctx, name, []byte("x"))
		assert.Error(t, err, "name %q", name)

		_, err = store.ReadBlob(ctx, name)
		assert.Error(t, err, "name %q", name)

		assert.Error(t, store.DeleteBlob(ctx, name), "name %q", name)
	}
}

func TestFileTreeDB_WritesIntoDataFs(t *testing.T) {
	data := afero.NewMemMapFs()
	store, err := NewWithFs(t.TempDir(), data)
	require.NoError(t, err)
	defer store.Close()

	_, err = store.WriteBlob(context.Background(), "1730000000001.jpeg", []byte("jpeg"))
	require.NoError(t, err)

	got, err := afero.ReadFile(data, "1730000000001.jpeg")
	require.NoError(t, err)
	assert.Equal(t, []byte("jpeg"), got)
}
