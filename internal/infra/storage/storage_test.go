package storage

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemoryStorage_PutGetDelete(t *testing.T) {
	store := NewMemoryStorage()
	data := []byte("\xff\xd8jpeg")

	obj, err := store.Put(context.Background(), "meal-images/a.jpg", data, "image/jpeg")
	require.NoError(t, err)
	require.Equal(t, int64(len(data)), obj.Size)
	require.NotEmpty(t, obj.ETag)

	data[0] = 0
	rc, err := store.Get(context.Background(), "meal-images/a.jpg")
	require.NoError(t, err)
	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.Equal(t, []byte("\xff\xd8jpeg"), got)

	require.NoError(t, store.Delete(context.Background(), "meal-images/a.jpg"))
	_, err = store.Get(context.Background(), "meal-images/a.jpg")
	require.ErrorIs(t, err, ErrNotFound)
	require.Zero(t, store.Len())
}

func TestHostOnly(t *testing.T) {
	require.Equal(t, "acct.r2.cloudflarestorage.com", hostOnly("https://acct.r2.cloudflarestorage.com/bucket"))
	require.Equal(t, "localhost:9000", hostOnly(" http://localhost:9000 "))
	require.Equal(t, "minio:9000", hostOnly("minio:9000"))
}
