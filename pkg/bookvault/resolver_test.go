package bookvault_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bookvault/bookvault/pkg/bookvault"
	memorystorage "github.com/bookvault/bookvault/pkg/bookvault/storage/memory"
)

// recordingStore wraps a BlobStore and counts adapter calls, so tests can
// prove which resolution paths touch storage at all.
type recordingStore struct {
	inner bookvault.BlobStore
	calls int
}

func (r *recordingStore) Put(ctx context.Context, key string, reader io.Reader, contentType string) error {
	r.calls++
	return r.inner.Put(ctx, key, reader, contentType)
}

func (r *recordingStore) GetAccessURL(ctx context.Context, key string, ttl time.Duration) (*bookvault.AccessURL, error) {
	r.calls++
	return r.inner.GetAccessURL(ctx, key, ttl)
}

func (r *recordingStore) PublicURL(key string) (string, bool) {
	r.calls++
	return r.inner.PublicURL(key)
}

func (r *recordingStore) Stat(ctx context.Context, key string) (*bookvault.ObjectInfo, error) {
	r.calls++
	return r.inner.Stat(ctx, key)
}

func (r *recordingStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	r.calls++
	return r.inner.Get(ctx, key)
}

func (r *recordingStore) Remove(ctx context.Context, key string) error {
	r.calls++
	return r.inner.Remove(ctx, key)
}

func (r *recordingStore) List(ctx context.Context, prefix string) ([]string, error) {
	r.calls++
	return r.inner.List(ctx, prefix)
}

// failingSigner always fails GetAccessURL with a generic error. PublicURL
// is configurable so tests can exercise both fallback branches.
type failingSigner struct {
	*memorystorage.Backend
	publicURL string
}

func (f *failingSigner) GetAccessURL(ctx context.Context, key string, ttl time.Duration) (*bookvault.AccessURL, error) {
	return nil, fmt.Errorf("presign: credential chain exhausted")
}

func (f *failingSigner) PublicURL(key string) (string, bool) {
	if f.publicURL == "" {
		return "", false
	}
	return f.publicURL + "/" + key, true
}

func bookWithRef(ref *bookvault.ArtifactRef) *bookvault.Book {
	return &bookvault.Book{
		ID:          uuid.New(),
		OwnerID:     uuid.New(),
		Name:        "Dune",
		Genre:       "Science Fiction",
		ArtifactRef: ref,
		CreatedAt:   time.Now().UTC(),
		UpdatedAt:   time.Now().UTC(),
	}
}

func TestResolveNoArtifact(t *testing.T) {
	store := memorystorage.New()
	resolver := bookvault.NewResolver(store, bookvault.WithProbeClient(nil))

	res, err := resolver.Resolve(context.Background(), bookWithRef(nil), bookvault.UseDetailView)
	require.NoError(t, err)
	assert.Equal(t, bookvault.ResolutionNoArtifact, res.Status)
	assert.Nil(t, res.URL)
	assert.False(t, res.Resolved())
}

func TestResolveExternalLinkNeverTouchesStorage(t *testing.T) {
	rec := &recordingStore{inner: memorystorage.New()}
	resolver := bookvault.NewResolver(rec, bookvault.WithProbeClient(nil))

	book := bookWithRef(&bookvault.ArtifactRef{
		Kind:    bookvault.RefKindExternalLink,
		Locator: "https://example.com/readme.html",
	})

	res, err := resolver.Resolve(context.Background(), book, bookvault.UseDetailView)
	require.NoError(t, err)
	assert.True(t, res.Resolved())
	require.NotNil(t, res.URL)
	assert.Equal(t, "https://example.com/readme.html", res.URL.URL)
	assert.Equal(t, bookvault.AccessKindEmbeddableExternal, res.URL.Kind)
	assert.Nil(t, res.URL.ExpiresAt)
	assert.Zero(t, rec.calls, "external links must resolve without any storage adapter call")
}

func TestResolveExternalLinkProbe(t *testing.T) {
	reachable := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer reachable.Close()

	dead := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer dead.Close()

	resolver := bookvault.NewResolver(memorystorage.New(),
		bookvault.WithProbeClient(reachable.Client()))

	t.Run("reachable link resolves", func(t *testing.T) {
		book := bookWithRef(&bookvault.ArtifactRef{
			Kind:    bookvault.RefKindExternalLink,
			Locator: reachable.URL,
		})
		res, err := resolver.Resolve(context.Background(), book, bookvault.UseDetailView)
		require.NoError(t, err)
		assert.Equal(t, bookvault.ResolutionResolved, res.Status)
	})

	t.Run("unreachable link keeps URL", func(t *testing.T) {
		book := bookWithRef(&bookvault.ArtifactRef{
			Kind:    bookvault.RefKindExternalLink,
			Locator: dead.URL,
		})
		res, err := resolver.Resolve(context.Background(), book, bookvault.UseDetailView)
		require.NoError(t, err)
		assert.Equal(t, bookvault.ResolutionLinkUnreachable, res.Status)
		require.NotNil(t, res.URL, "an advisory probe failure must still hand back the link")
		assert.Equal(t, dead.URL, res.URL.URL)
	})
}

func TestResolveObjectStorage(t *testing.T) {
	ctx := context.Background()
	store := memorystorage.New()
	key := "owner/book/book.epub"
	require.NoError(t, store.Put(ctx, key, strings.NewReader("epub bytes"), "application/epub+zip"))

	resolver := bookvault.NewResolver(store, bookvault.WithProbeClient(nil))
	book := bookWithRef(&bookvault.ArtifactRef{Kind: bookvault.RefKindObjectStorage, Locator: key})

	res, err := resolver.Resolve(ctx, book, bookvault.UseDetailView)
	require.NoError(t, err)
	assert.True(t, res.Resolved())
	require.NotNil(t, res.URL)
	assert.Equal(t, bookvault.AccessKindDownloadable, res.URL.Kind)
	require.NotNil(t, res.URL.ExpiresAt)
	assert.True(t, res.URL.ExpiresAt.After(time.Now()))
}

func TestResolveSignedURLsRotate(t *testing.T) {
	ctx := context.Background()
	store := memorystorage.New()
	key := "owner/book/book.pdf"
	require.NoError(t, store.Put(ctx, key, strings.NewReader("pdf bytes"), "application/pdf"))

	resolver := bookvault.NewResolver(store, bookvault.WithProbeClient(nil))
	book := bookWithRef(&bookvault.ArtifactRef{Kind: bookvault.RefKindObjectStorage, Locator: key})

	first, err := resolver.Resolve(ctx, book, bookvault.UseDetailView)
	require.NoError(t, err)
	time.Sleep(time.Millisecond)
	second, err := resolver.Resolve(ctx, book, bookvault.UseDetailView)
	require.NoError(t, err)

	// Each resolution signs afresh; the URLs differ but the underlying
	// object bytes are identical.
	assert.NotEqual(t, first.URL.URL, second.URL.URL)

	reader, err := store.Get(ctx, key)
	require.NoError(t, err)
	defer reader.Close()
	data, err := io.ReadAll(reader)
	require.NoError(t, err)
	assert.Equal(t, "pdf bytes", string(data))
}

func TestResolveTTLByUse(t *testing.T) {
	ctx := context.Background()
	store := memorystorage.New()
	key := "owner/book/book.epub"
	require.NoError(t, store.Put(ctx, key, strings.NewReader("x"), "application/epub+zip"))

	resolver := bookvault.NewResolver(store, bookvault.WithProbeClient(nil))
	book := bookWithRef(&bookvault.ArtifactRef{Kind: bookvault.RefKindObjectStorage, Locator: key})

	detail, err := resolver.Resolve(ctx, book, bookvault.UseDetailView)
	require.NoError(t, err)
	fresh, err := resolver.Resolve(ctx, book, bookvault.UseFreshUpload)
	require.NoError(t, err)

	require.NotNil(t, detail.URL.ExpiresAt)
	require.NotNil(t, fresh.URL.ExpiresAt)
	assert.True(t, fresh.URL.ExpiresAt.After(*detail.URL.ExpiresAt),
		"fresh-upload URLs must outlive detail-view URLs")
}

func TestResolveBackendUnavailable(t *testing.T) {
	ctx := context.Background()
	store := memorystorage.New()
	key := "owner/book/book.epub"
	require.NoError(t, store.Put(ctx, key, strings.NewReader("x"), "application/epub+zip"))

	// Container vanishes out of band after the record was written.
	store.SetUnavailable(true)

	resolver := bookvault.NewResolver(store, bookvault.WithProbeClient(nil))
	book := bookWithRef(&bookvault.ArtifactRef{Kind: bookvault.RefKindObjectStorage, Locator: key})

	res, err := resolver.Resolve(ctx, book, bookvault.UseDetailView)
	require.NoError(t, err)
	assert.Equal(t, bookvault.ResolutionBackendMisconfigured, res.Status,
		"a missing container must not be reported as a missing object")
	assert.Nil(t, res.URL)
}

func TestResolveObjectMissing(t *testing.T) {
	resolver := bookvault.NewResolver(memorystorage.New(), bookvault.WithProbeClient(nil))
	book := bookWithRef(&bookvault.ArtifactRef{
		Kind:    bookvault.RefKindObjectStorage,
		Locator: "owner/book/book.epub",
	})

	res, err := resolver.Resolve(context.Background(), book, bookvault.UseDetailView)
	require.NoError(t, err)
	assert.Equal(t, bookvault.ResolutionObjectMissing, res.Status)
}

func TestResolveSigningFailureFallback(t *testing.T) {
	ctx := context.Background()
	book := bookWithRef(&bookvault.ArtifactRef{
		Kind:    bookvault.RefKindObjectStorage,
		Locator: "owner/book/book.epub",
	})

	t.Run("public URL available", func(t *testing.T) {
		store := &failingSigner{Backend: memorystorage.New(), publicURL: "https://cdn.example.com"}
		resolver := bookvault.NewResolver(store, bookvault.WithProbeClient(nil))

		res, err := resolver.Resolve(ctx, book, bookvault.UseDetailView)
		require.NoError(t, err)
		assert.True(t, res.Resolved())
		require.NotNil(t, res.URL)
		assert.Equal(t, "https://cdn.example.com/owner/book/book.epub", res.URL.URL)
		assert.Nil(t, res.URL.ExpiresAt)
	})

	t.Run("no public form", func(t *testing.T) {
		store := &failingSigner{Backend: memorystorage.New()}
		resolver := bookvault.NewResolver(store, bookvault.WithProbeClient(nil))

		res, err := resolver.Resolve(ctx, book, bookvault.UseDetailView)
		require.NoError(t, err)
		assert.Equal(t, bookvault.ResolutionObjectMissing, res.Status)
	})
}

func TestResolveLocalFile(t *testing.T) {
	resolver := bookvault.NewResolver(memorystorage.New(), bookvault.WithProbeClient(nil))
	book := bookWithRef(&bookvault.ArtifactRef{
		Kind:    bookvault.RefKindLocalFile,
		Locator: "files/owner/book/book.pdf",
	})

	res, err := resolver.Resolve(context.Background(), book, bookvault.UseDetailView)
	require.NoError(t, err)
	assert.True(t, res.Resolved())
	require.NotNil(t, res.URL)
	assert.Equal(t, "/files/owner/book/book.pdf", res.URL.URL)
	assert.Nil(t, res.URL.ExpiresAt, "same-origin paths carry no expiry")
	assert.Equal(t, bookvault.AccessKindDownloadable, res.URL.Kind)
}

func TestResolveUnknownRefKind(t *testing.T) {
	resolver := bookvault.NewResolver(memorystorage.New(), bookvault.WithProbeClient(nil))
	book := bookWithRef(&bookvault.ArtifactRef{Kind: "torrent", Locator: "magnet:?xt=whatever"})

	res, err := resolver.Resolve(context.Background(), book, bookvault.UseDetailView)
	require.NoError(t, err)
	assert.Equal(t, bookvault.ResolutionNoArtifact, res.Status)
}

func TestResolveCancelledContext(t *testing.T) {
	resolver := bookvault.NewResolver(memorystorage.New(), bookvault.WithProbeClient(nil))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := resolver.Resolve(ctx, bookWithRef(nil), bookvault.UseDetailView)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestResolveProbeFailureRechecksAdapter(t *testing.T) {
	ctx := context.Background()
	store := memorystorage.New()
	key := "owner/book/book.epub"
	require.NoError(t, store.Put(ctx, key, strings.NewReader("x"), "application/epub+zip"))

	// The memory backend's synthetic URLs are not fetchable, so every
	// probe fails. The resolver must re-ask the adapter and trust its
	// answer over the probe.
	resolver := bookvault.NewResolver(store,
		bookvault.WithProbeClient(&http.Client{Timeout: time.Second}))
	book := bookWithRef(&bookvault.ArtifactRef{Kind: bookvault.RefKindObjectStorage, Locator: key})

	res, err := resolver.Resolve(ctx, book, bookvault.UseDetailView)
	require.NoError(t, err)
	assert.Equal(t, bookvault.ResolutionResolved, res.Status,
		"a transient probe failure with the object present must still resolve")

	// Once the object is actually gone the re-check downgrades the result.
	require.NoError(t, store.Remove(ctx, key))
	res, err = resolver.Resolve(ctx, book, bookvault.UseDetailView)
	require.NoError(t, err)
	assert.Equal(t, bookvault.ResolutionObjectMissing, res.Status)
}
