package bookvault

import (
	"time"

	"github.com/google/uuid"
)

// RefKind identifies which storage backend holds a referenced artifact.
type RefKind string

// Artifact reference kinds (typed).
const (
	RefKindObjectStorage RefKind = "object-storage"
	RefKindExternalLink  RefKind = "external-link"
	RefKindLocalFile     RefKind = "local-file"
)

// ArtifactRef points at stored book content. Kind selects the backend and
// Locator is backend-specific: an object key, an absolute URL, or a
// server-relative path.
type ArtifactRef struct {
	Kind    RefKind `json:"kind"`
	Locator string  `json:"locator"`
}

// Book is a catalogued library entry. ArtifactRef and CoverRef are optional;
// a book with neither is content-less, which is a valid state rather than an
// error.
type Book struct {
	ID          uuid.UUID    `json:"id"`
	OwnerID     uuid.UUID    `json:"owner_id"`
	Name        string       `json:"name"`
	Genre       string       `json:"genre"`
	Description string       `json:"description,omitempty"`
	ArtifactRef *ArtifactRef `json:"artifact_ref,omitempty"`
	CoverRef    *ArtifactRef `json:"cover_ref,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// HasContent reports whether the book has any readable artifact attached.
func (b *Book) HasContent() bool {
	return b.ArtifactRef != nil
}

// ObjectInfo describes a stored object without reading its bytes.
type ObjectInfo struct {
	Key         string `json:"key"`
	Size        int64  `json:"size"`
	ContentType string `json:"content_type"`
}

// AccessKind tells the consumer how to use a resolved URL.
type AccessKind string

// Access URL kinds (typed).
const (
	// AccessKindDownloadable URLs serve raw bytes to stream or save.
	AccessKindDownloadable AccessKind = "downloadable"
	// AccessKindEmbeddableExternal URLs should be navigated to or embedded,
	// not fetched for bytes.
	AccessKindEmbeddableExternal AccessKind = "embeddable-external"
)

// AccessURL is a ready-to-use content URL. It is derived on demand and never
// persisted: signed URLs rotate underneath the record, so a stored copy
// would silently expire.
type AccessURL struct {
	URL       string     `json:"url"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	Kind      AccessKind `json:"kind"`
}

// ResolutionStatus classifies the outcome of resolving a book's content.
type ResolutionStatus string

// Resolution outcomes (typed). Only ResolutionResolved carries a URL that is
// expected to work; the failure statuses are content states, not errors, and
// each maps to a distinct user-facing remediation.
const (
	ResolutionResolved ResolutionStatus = "resolved"
	// ResolutionNoArtifact: the record legitimately has nothing to read.
	ResolutionNoArtifact ResolutionStatus = "no-artifact"
	// ResolutionBackendMisconfigured: the storage container itself is
	// missing or unreachable. Administrator-actionable.
	ResolutionBackendMisconfigured ResolutionStatus = "backend-misconfigured"
	// ResolutionObjectMissing: the record references a key that no longer
	// resolves to stored bytes.
	ResolutionObjectMissing ResolutionStatus = "object-missing"
	// ResolutionLinkUnreachable: an external link failed its liveness probe.
	// The URL is still included so the caller may attempt navigation anyway.
	ResolutionLinkUnreachable ResolutionStatus = "link-unreachable"
)

// Resolution is the resolver's typed result. URL is non-nil when Status is
// ResolutionResolved, and also for ResolutionLinkUnreachable where the probe
// is advisory only.
type Resolution struct {
	Status ResolutionStatus `json:"status"`
	URL    *AccessURL       `json:"access_url,omitempty"`
}

// Resolved reports whether the resolution yielded a usable URL.
func (r Resolution) Resolved() bool {
	return r.Status == ResolutionResolved
}
