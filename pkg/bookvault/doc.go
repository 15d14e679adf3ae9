// Package bookvault provides a library for managing a personal book
// collection with pluggable repository and blob storage backends.
//
// It exposes a single Service interface that orchestrates book creation,
// artifact and cover upload, deletion, and resolution of book records into
// servable access URLs. Implementations of repositories (e.g., memory,
// Postgres) and blob stores (e.g., memory, filesystem, S3) are provided
// under subpackages.
//
// Content Resolution
//
// A book may reference its content as an uploaded object, an external link,
// or a server-local file. Resolution turns that reference into a typed
// Resolution value carrying an access URL and a status; failures such as a
// misconfigured backend or a missing object are reported through the status
// rather than through an error return.
package bookvault
