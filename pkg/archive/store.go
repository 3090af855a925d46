package archive

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"strings"
)

// Archive errors.
var (
	ErrUnsupportedScheme = errors.New("archive: unsupported URL scheme")
	ErrNotFound          = errors.New("archive: document not found")
	ErrInvalidKey        = errors.New("archive: invalid key")
)

// Store persists snapshot documents under slash-separated keys.
type Store interface {
	// Save writes doc under key, replacing any previous document.
	Save(ctx context.Context, key string, doc *Document) error

	// Load reads the document under key. It returns ErrNotFound when the
	// key does not exist.
	Load(ctx context.Context, key string) (*Document, error)

	// List returns the keys under prefix in lexical order.
	List(ctx context.Context, prefix string) ([]string, error)
}

// Open returns the store addressed by rawURL.
func Open(ctx context.Context, rawURL string, opts ...Option) (Store, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("archive: parse %q: %w", rawURL, err)
	}
	switch u.Scheme {
	case "":
		return NewFileStore(rawURL)
	case "file":
		return NewFileStore(u.Path)
	case "s3":
		if u.Host == "" {
			return nil, fmt.Errorf("archive: %q has no bucket", rawURL)
		}
		client := o.s3Client
		if client == nil {
			client = newS3Client(o)
		}
		return NewS3Store(client, u.Host, strings.TrimPrefix(u.Path, "/")), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme)
	}
}

// ReadURL loads the single document addressed by rawURL, whose last path
// element is the key.
func ReadURL(ctx context.Context, rawURL string, opts ...Option) (*Document, error) {
	dir, key := splitURL(rawURL)
	store, err := Open(ctx, dir, opts...)
	if err != nil {
		return nil, err
	}
	return store.Load(ctx, key)
}

// WriteURL saves doc to the document addressed by rawURL.
func WriteURL(ctx context.Context, rawURL string, doc *Document, opts ...Option) error {
	dir, key := splitURL(rawURL)
	store, err := Open(ctx, dir, opts...)
	if err != nil {
		return err
	}
	return store.Save(ctx, key, doc)
}

func splitURL(rawURL string) (dir, key string) {
	if i := strings.LastIndex(rawURL, "/"); i >= 0 {
		dir, key = rawURL[:i], rawURL[i+1:]
		if strings.HasSuffix(dir, ":/") {
			// s3://bucket/key or file:///key
			dir += "/"
		}
		if dir == "" {
			dir = "/"
		}
		return dir, key
	}
	return ".", rawURL
}

// cleanKey validates a key and adds the .json extension.
func cleanKey(key string) (string, error) {
	key = strings.TrimPrefix(key, "/")
	if key == "" || !filepath.IsLocal(filepath.FromSlash(key)) {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	key = path.Clean(key)
	if !strings.HasSuffix(key, ".json") {
		key += ".json"
	}
	return key, nil
}

// Option configures Open.
type Option func(*options)

type options struct {
	region   string
	endpoint string
	s3Client S3API
}

func defaultOptions() options {
	return options{region: "us-east-1"}
}

// WithRegion sets the S3 region.
func WithRegion(region string) Option {
	return func(o *options) { o.region = region }
}

// WithEndpoint sets a custom S3 endpoint and enables path-style addressing.
func WithEndpoint(endpoint string) Option {
	return func(o *options) { o.endpoint = endpoint }
}

// WithS3Client sets the S3 client used for s3:// URLs.
func WithS3Client(c S3API) Option {
	return func(o *options) { o.s3Client = c }
}
