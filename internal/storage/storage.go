package storage

import (
	"context"
	"fmt"
	"strings"

	"genstudio/internal/config"
)

const (
	// TypeLocal is the local filesystem backend.
	TypeLocal = "local"
	// TypeS3 is Amazon S3 or an S3-compatible backend.
	TypeS3 = "s3"
	// TypeOSS is Aliyun OSS.
	TypeOSS = "oss"
	// TypeCOS is Tencent COS.
	TypeCOS = "cos"
	// TypeR2 is Cloudflare R2.
	TypeR2 = "r2"
)

// SaveOptions controls how a backend persists a payload.
//
// Category organizes objects on disk (generated images vs uploads), Extension
// hints the preferred file extension without the leading dot. Backends guess
// an extension when it is empty.
type SaveOptions struct {
	Category     string
	Extension    string
	BaseName     string
	SkipIfExists bool
}

// Storage persists binary payloads and returns a backend-specific identifier
// (a relative path for local storage, an object key for remote backends).
// Load reads a previously saved payload back by that identifier; the router
// uses it for document attachments.
type Storage interface {
	Save(ctx context.Context, data []byte, opts SaveOptions) (string, error)
	Load(ctx context.Context, path string) ([]byte, error)
}

// LocalBaseDirProvider is implemented by backends whose objects can be served
// directly over HTTP from a local directory.
type LocalBaseDirProvider interface {
	LocalBaseDir() string
}

// NewStorage instantiates the backend selected by configuration.
func NewStorage(cfg config.Config) (Storage, error) {
	typeName := strings.ToLower(strings.TrimSpace(cfg.StorageType))
	switch typeName {
	case "", TypeLocal:
		return NewLocalStorage(cfg.StorageLocalDir)
	case TypeS3:
		return NewS3Storage(cfg)
	case TypeOSS:
		return NewOSSStorage(cfg)
	case TypeCOS:
		return NewCOSStorage(cfg)
	case TypeR2:
		return NewR2Storage(cfg)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.StorageType)
	}
}
