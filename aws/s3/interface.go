package s3

import (
	"context"
	"errors"
)

var ErrKeyNotFound = errors.New("key not found")

type BasicClient interface {
	Lister
	Getter
	Putter
	Deleter
}

type Client interface {
	BasicClient
	Mover
}

type Lister interface {
	List(ctx context.Context, key string) (keys []string, err error)
}

type Getter interface {
	// Get returns ErrKeyNotFound if the given key doesn't exist.
	Get(ctx context.Context, key string) (data []byte, err error)
}

type Putter interface {
	// Put writes an object with its metadata in one call.
	Put(ctx context.Context, key string, data []byte, contentType string, metadata map[string]string) (err error)
}

type Deleter interface {
	Delete(ctx context.Context, key string) error
}

type Mover interface {
	// Move renames src to dst via server-side copy, preserving metadata.
	// It returns ErrKeyNotFound if the src key doesn't exist.
	Move(ctx context.Context, src, dst string) error
}
