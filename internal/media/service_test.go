package media

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wabridgehq/wabridge/internal/whatsapp"
)

type fakeStore struct {
	objects map[string][]byte
	puts    int
}

func newFakeStore() *fakeStore {
	return &fakeStore{objects: map[string][]byte{}}
}

func (f *fakeStore) Put(_ context.Context, key string, reader io.Reader, _ int64, _ string, _ map[string]string) error {
	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}
	f.objects[key] = data
	f.puts++
	return nil
}

func (f *fakeStore) SignedURL(_ context.Context, key string, _ time.Duration) (string, error) {
	return "https://storage.example/" + key + "?sig=abc", nil
}

func (f *fakeStore) Exists(_ context.Context, key string) (bool, error) {
	_, ok := f.objects[key]
	return ok, nil
}

func (f *fakeStore) Delete(_ context.Context, key string) error {
	delete(f.objects, key)
	return nil
}

type fakeFetcher struct {
	data []byte
	mime string
	err  error
}

func (f *fakeFetcher) ResolveMediaURL(_ context.Context, _ whatsapp.Credentials, mediaID string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return "https://cdn.example/" + mediaID, nil
}

func (f *fakeFetcher) DownloadMedia(_ context.Context, _ whatsapp.Credentials, _ string) ([]byte, string, error) {
	if f.err != nil {
		return nil, "", f.err
	}
	return f.data, f.mime, nil
}

func TestStorageKeyDeterministic(t *testing.T) {
	t.Parallel()

	key1 := StorageKey("918097296453", "media-1", "image/jpeg")
	key2 := StorageKey("918097296453", "media-1", "image/jpeg")
	assert.Equal(t, key1, key2)
	assert.Equal(t, "918097296453/media-1.jpg", key1)

	assert.Equal(t, "918097296453/media-1.bin", StorageKey("918097296453", "media-1", "application/x-unknown"))
	assert.Equal(t, "918097296453/media-1.ogg", StorageKey("918097296453", "media-1", "audio/ogg; codecs=opus"))
}

func TestOffloadIdempotentKeying(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	svc := NewService(nil, store, &fakeFetcher{data: []byte("bytes"), mime: "image/jpeg"})

	input := OffloadInput{MediaID: "media-1", CounterpartID: "918097296453", MimeType: "image/jpeg"}
	url1, err := svc.Offload(context.Background(), input)
	require.NoError(t, err)
	url2, err := svc.Offload(context.Background(), input)
	require.NoError(t, err)

	assert.Equal(t, url1, url2)
	// Second offload overwrites the same key instead of duplicating.
	assert.Len(t, store.objects, 1)
	assert.Equal(t, 2, store.puts)
}

func TestOffloadFetchFailure(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	svc := NewService(nil, store, &fakeFetcher{err: assert.AnError})

	_, err := svc.Offload(context.Background(), OffloadInput{MediaID: "media-1", CounterpartID: "918097296453"})
	require.Error(t, err)
	assert.Empty(t, store.objects)
}

func TestRegenerateURL(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	svc := NewService(nil, store, &fakeFetcher{data: []byte("x"), mime: "image/png"})

	_, err := svc.Offload(context.Background(), OffloadInput{MediaID: "m2", CounterpartID: "918097296453", MimeType: "image/png"})
	require.NoError(t, err)

	url, err := svc.RegenerateURL(context.Background(), "918097296453", "m2", "image/png")
	require.NoError(t, err)
	assert.Contains(t, url, "918097296453/m2.png")

	_, err = svc.RegenerateURL(context.Background(), "918097296453", "missing", "image/png")
	assert.ErrorIs(t, err, ErrObjectNotFound)
}

func TestRemove(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	svc := NewService(nil, store, &fakeFetcher{data: []byte("x"), mime: "application/pdf"})

	_, err := svc.Offload(context.Background(), OffloadInput{MediaID: "m3", CounterpartID: "918097296453", MimeType: "application/pdf"})
	require.NoError(t, err)
	require.NoError(t, svc.Remove(context.Background(), "918097296453", "m3", "application/pdf"))
	assert.Empty(t, store.objects)
}
