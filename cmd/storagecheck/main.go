// Command storagecheck exercises a storage backend end to end: upload,
// access URL signing, direct read, listing and removal. Useful for verifying
// S3 or MinIO credentials and bucket configuration before pointing the
// server at them.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/bookvault/bookvault/pkg/bookvault"
	fsstorage "github.com/bookvault/bookvault/pkg/bookvault/storage/fs"
	memorystorage "github.com/bookvault/bookvault/pkg/bookvault/storage/memory"
	s3storage "github.com/bookvault/bookvault/pkg/bookvault/storage/s3"
)

func main() {
	backendType := flag.String("backend", "s3", "Backend to check: s3, fs, memory")

	// S3 options
	region := flag.String("region", "us-east-1", "AWS region")
	bucket := flag.String("bucket", "", "S3 bucket name")
	accessKey := flag.String("access-key", "", "AWS access key ID")
	secretKey := flag.String("secret-key", "", "AWS secret access key")
	endpoint := flag.String("endpoint", "", "Custom S3 endpoint (for MinIO, etc.)")
	usePathStyle := flag.Bool("use-path-style", false, "Use path-style addressing")
	createBucket := flag.Bool("create-bucket", false, "Create bucket if it doesn't exist")

	// MinIO shortcut
	useMinio := flag.Bool("use-minio", false, "Use MinIO defaults (endpoint, path-style, default credentials)")
	minioEndpoint := flag.String("minio-endpoint", "http://localhost:9000", "MinIO server endpoint")

	// Filesystem options
	baseDir := flag.String("base-dir", "./data/storage", "Base directory for the fs backend")

	ttl := flag.Duration("ttl", time.Hour, "TTL for the signed access URL")
	key := flag.String("key", "storagecheck/check.txt", "Object key to use for the check")

	flag.Parse()

	if *useMinio {
		*endpoint = *minioEndpoint
		*usePathStyle = true
		*createBucket = true
		if *accessKey == "" {
			*accessKey = "minioadmin"
		}
		if *secretKey == "" {
			*secretKey = "minioadmin"
		}
	}

	store, err := buildStore(*backendType, s3storage.Config{
		Region:                 *region,
		Bucket:                 *bucket,
		AccessKeyID:            *accessKey,
		SecretAccessKey:        *secretKey,
		Endpoint:               *endpoint,
		UsePathStyle:           *usePathStyle,
		CreateBucketIfNotExist: *createBucket,
	}, *baseDir)
	if err != nil {
		log.Fatalf("Failed to build %s backend: %v", *backendType, err)
	}

	if err := runCheck(context.Background(), store, *key, *ttl); err != nil {
		log.Fatalf("Storage check FAILED: %v", err)
	}
	fmt.Println("Storage check passed.")
}

func buildStore(backendType string, s3cfg s3storage.Config, baseDir string) (bookvault.BlobStore, error) {
	switch backendType {
	case "s3":
		if s3cfg.Bucket == "" {
			return nil, errors.New("-bucket is required for the s3 backend")
		}
		return s3storage.New(s3cfg)
	case "fs":
		return fsstorage.New(fsstorage.Config{BaseDir: baseDir, URLPrefix: "/files"})
	case "memory":
		return memorystorage.New(), nil
	default:
		return nil, fmt.Errorf("unknown backend type: %s", backendType)
	}
}

func runCheck(ctx context.Context, store bookvault.BlobStore, key string, ttl time.Duration) error {
	payload := fmt.Sprintf("storagecheck %s pid=%d", time.Now().UTC().Format(time.RFC3339), os.Getpid())

	fmt.Printf("1. Put %s (%d bytes)\n", key, len(payload))
	if err := store.Put(ctx, key, strings.NewReader(payload), "text/plain"); err != nil {
		return fmt.Errorf("put: %w", err)
	}

	fmt.Println("2. Stat")
	info, err := store.Stat(ctx, key)
	if err != nil {
		return fmt.Errorf("stat: %w", err)
	}
	fmt.Printf("   %d bytes, %s\n", info.Size, info.ContentType)

	fmt.Println("3. GetAccessURL")
	access, err := store.GetAccessURL(ctx, key, ttl)
	if err != nil {
		return fmt.Errorf("access url: %w", err)
	}
	fmt.Printf("   %s\n", access.URL)
	if access.ExpiresAt != nil {
		fmt.Printf("   expires at %s\n", access.ExpiresAt.Format(time.RFC3339))
	}

	if public, ok := store.PublicURL(key); ok {
		fmt.Printf("4. PublicURL: %s\n", public)
	} else {
		fmt.Println("4. PublicURL: backend has no public URL form")
	}

	fmt.Println("5. Get")
	reader, err := store.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("get: %w", err)
	}
	data, err := io.ReadAll(reader)
	_ = reader.Close()
	if err != nil {
		return fmt.Errorf("read: %w", err)
	}
	if string(data) != payload {
		return fmt.Errorf("read mismatch: got %d bytes", len(data))
	}

	fmt.Println("6. List")
	prefix := key
	if i := strings.LastIndexByte(key, '/'); i >= 0 {
		prefix = key[:i+1]
	}
	keys, err := store.List(ctx, prefix)
	if err != nil {
		return fmt.Errorf("list: %w", err)
	}
	fmt.Printf("   %d object(s) under %s\n", len(keys), prefix)

	fmt.Println("7. Remove")
	if err := store.Remove(ctx, key); err != nil {
		return fmt.Errorf("remove: %w", err)
	}

	// Post-condition: the object is gone and the adapter says so.
	if _, err := store.GetAccessURL(ctx, key, ttl); !errors.Is(err, bookvault.ErrObjectNotFound) {
		return fmt.Errorf("expected object-not-found after remove, got %v", err)
	}

	return nil
}
