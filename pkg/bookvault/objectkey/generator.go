// Package objectkey derives storage keys for book artifacts.
//
// Keys are namespaced by owner and book: {owner}/{bookID}/book.{ext} for the
// readable artifact and {owner}/{bookID}/cover.{ext} for the cover image.
// The book ID must therefore exist before any artifact byte is written,
// which is why record creation precedes upload in the service.
package objectkey

import (
	"fmt"
	"path"
	"strings"

	"github.com/google/uuid"
)

// Artifact kinds within a book's key namespace.
const (
	KindBook  = "book"
	KindCover = "cover"
)

// Generator builds object keys for book artifacts.
type Generator interface {
	// GenerateKey returns the storage key for the given artifact kind,
	// taking the extension from fileName.
	GenerateKey(ownerID, bookID uuid.UUID, kind, fileName string) string

	// Prefix returns the key prefix shared by all of a book's objects,
	// used to enumerate siblings for bulk deletion.
	Prefix(ownerID, bookID uuid.UUID) string
}

// OwnerScopedGenerator is the default key layout: owner/book/kind.ext.
type OwnerScopedGenerator struct{}

func NewOwnerScopedGenerator() *OwnerScopedGenerator {
	return &OwnerScopedGenerator{}
}

func (g *OwnerScopedGenerator) GenerateKey(ownerID, bookID uuid.UUID, kind, fileName string) string {
	ext := sanitizeExt(path.Ext(fileName))
	if ext == "" {
		return fmt.Sprintf("%s/%s/%s", ownerID, bookID, kind)
	}
	return fmt.Sprintf("%s/%s/%s%s", ownerID, bookID, kind, ext)
}

func (g *OwnerScopedGenerator) Prefix(ownerID, bookID uuid.UUID) string {
	return fmt.Sprintf("%s/%s/", ownerID, bookID)
}

// sanitizeExt keeps only a safe lowercase extension. Anything with path
// separators or control characters collapses to empty.
func sanitizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext == "" || ext == "." {
		return ""
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	for _, r := range ext[1:] {
		if !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9') {
			return ""
		}
	}
	return ext
}
