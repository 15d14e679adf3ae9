package bookvault

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"path"
	"time"
)

// Resolution TTL defaults. Detail-view URLs are short-lived because they are
// regenerated on every visit; fresh-upload URLs live longer because the
// client may cache them immediately after the upload completes.
const (
	DefaultDetailTTL      = 24 * time.Hour
	DefaultFreshUploadTTL = 7 * 24 * time.Hour
	DefaultProbeTimeout   = 8 * time.Second
)

// ResolveUse selects the TTL policy for a resolution.
type ResolveUse int

const (
	// UseDetailView is an ephemeral detail-page access.
	UseDetailView ResolveUse = iota
	// UseFreshUpload is the URL handed back right after an upload.
	UseFreshUpload
)

// Resolver turns a book record into a usable AccessURL, applying
// backend-specific strategies, verification and fallback.
//
// Precedence is strict: an external link always wins over a storage
// reference, because links are author-supplied and must never be shadowed by
// a stale object left over from a prior edit. Object storage is resolved
// through signed indirection before anything treats the locator as a bare
// path; using the raw stored path would either fail or leak an unintended
// public URL.
type Resolver struct {
	store     BlobStore
	probe     *http.Client
	detailTTL time.Duration
	uploadTTL time.Duration
	logger    *slog.Logger
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithProbeClient sets the HTTP client used for liveness probes. Pass nil to
// disable probing entirely.
func WithProbeClient(c *http.Client) ResolverOption {
	return func(r *Resolver) {
		r.probe = c
	}
}

// WithTTLs overrides the detail-view and fresh-upload TTLs.
func WithTTLs(detail, freshUpload time.Duration) ResolverOption {
	return func(r *Resolver) {
		r.detailTTL = detail
		r.uploadTTL = freshUpload
	}
}

// WithResolverLogger sets the logger for advisory resolution events.
func WithResolverLogger(l *slog.Logger) ResolverOption {
	return func(r *Resolver) {
		r.logger = l
	}
}

// NewResolver creates a Resolver over the given storage backend. Probing is
// enabled by default with a bounded timeout so a hung network call cannot
// block resolution indefinitely.
func NewResolver(store BlobStore, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		store:     store,
		probe:     &http.Client{Timeout: DefaultProbeTimeout},
		detailTTL: DefaultDetailTTL,
		uploadTTL: DefaultFreshUploadTTL,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve produces a Resolution for the book record. Failure modes are
// returned as typed statuses, never as errors; the error return is reserved
// for context cancellation.
//
// Callers must pass the latest persisted record: an edit can change the
// backend kind out from under a cached copy.
func (r *Resolver) Resolve(ctx context.Context, book *Book, use ResolveUse) (Resolution, error) {
	if err := ctx.Err(); err != nil {
		return Resolution{}, err
	}

	ref := book.ArtifactRef
	if ref == nil {
		return Resolution{Status: ResolutionNoArtifact}, nil
	}

	switch ref.Kind {
	case RefKindExternalLink:
		return r.resolveExternal(ctx, ref), nil
	case RefKindObjectStorage:
		return r.resolveObjectStorage(ctx, book, ref, use), nil
	case RefKindLocalFile:
		return Resolution{
			Status: ResolutionResolved,
			URL: &AccessURL{
				URL:  path.Join("/", ref.Locator),
				Kind: AccessKindDownloadable,
			},
		}, nil
	default:
		// Unknown kinds behave like an absent artifact rather than an
		// error, keeping forward compatibility with new backends.
		r.logger.Warn("unknown artifact ref kind", "kind", ref.Kind)
		return Resolution{Status: ResolutionNoArtifact}, nil
	}
}

// resolveExternal wraps the link verbatim. The reachability probe is
// advisory: on failure the status flips to link-unreachable but the URL is
// still included so the caller can decide whether to navigate anyway.
func (r *Resolver) resolveExternal(ctx context.Context, ref *ArtifactRef) Resolution {
	url := &AccessURL{
		URL:  ref.Locator,
		Kind: AccessKindEmbeddableExternal,
	}

	if r.probe != nil && !r.probeURL(ctx, ref.Locator) {
		return Resolution{Status: ResolutionLinkUnreachable, URL: url}
	}

	return Resolution{Status: ResolutionResolved, URL: url}
}

func (r *Resolver) resolveObjectStorage(ctx context.Context, book *Book, ref *ArtifactRef, use ResolveUse) Resolution {
	ttl := r.detailTTL
	if use == UseFreshUpload {
		ttl = r.uploadTTL
	}

	access, err := r.store.GetAccessURL(ctx, ref.Locator, ttl)
	if err != nil {
		return r.classifyStorageFailure(book, ref, err)
	}

	if r.probe != nil && !r.probeURL(ctx, access.URL) {
		// A failed probe of a signed URL is not trusted on its own:
		// transient network errors and genuine absence must not share a
		// user message. Re-ask the adapter and believe only its own
		// NotFound signal.
		if _, err := r.store.GetAccessURL(ctx, ref.Locator, ttl); err != nil {
			return r.classifyStorageFailure(book, ref, err)
		}
		r.logger.Warn("signed URL probe failed but object present, treating as transient",
			"book_id", book.ID, "key", ref.Locator)
	}

	return Resolution{Status: ResolutionResolved, URL: access}
}

// classifyStorageFailure maps adapter errors onto the resolution taxonomy.
// A missing container surfaces as backend-misconfigured so the UI can steer
// the user toward the administrator instead of a futile retry. Unexpected
// signing failures get one fallback to the unsigned public form before the
// object is declared missing.
func (r *Resolver) classifyStorageFailure(book *Book, ref *ArtifactRef, err error) Resolution {
	switch {
	case errors.Is(err, ErrBackendUnavailable):
		r.logger.Error("storage backend unavailable", "book_id", book.ID, "error", err)
		return Resolution{Status: ResolutionBackendMisconfigured}
	case errors.Is(err, ErrObjectNotFound):
		return Resolution{Status: ResolutionObjectMissing}
	default:
		if public, ok := r.store.PublicURL(ref.Locator); ok {
			r.logger.Warn("signing failed, falling back to public URL",
				"book_id", book.ID, "key", ref.Locator, "error", err)
			return Resolution{
				Status: ResolutionResolved,
				URL:    &AccessURL{URL: public, Kind: AccessKindDownloadable},
			}
		}
		return Resolution{Status: ResolutionObjectMissing}
	}
}

// probeURL issues a best-effort HEAD request. Any non-5xx/4xx response
// counts as reachable.
func (r *Resolver) probeURL(ctx context.Context, url string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return false
	}

	resp, err := r.probe.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode < http.StatusBadRequest
}
