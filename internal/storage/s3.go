package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ErrNotFound is returned when a requested object does not exist.
var ErrNotFound = errors.New("object not found")

const (
	listLimit     = 100
	presignExpiry = time.Hour
)

// shardRegions is the fixed set of regions the workload can run in; one
// client per region plus the default.
var shardRegions = []string{"us-east-1", "us-east-2", "us-west-1", "us-west-2"}

// IdentityResolver resolves the caller's federated identity id, substituted
// for the literal "self" path segment at call time.
type IdentityResolver interface {
	IdentityID() string
}

// Gateway is the object-storage collaborator: region-sharded clients over the
// userdata and dictionary buckets.
type Gateway struct {
	log           *slog.Logger
	resolver      IdentityResolver
	defaultRegion string
	clients       map[string]*minio.Client
}

func NewGateway(log *slog.Logger, resolver IdentityResolver, source CredentialSource, defaultRegion string) (*Gateway, error) {
	if log == nil {
		log = slog.Default()
	}
	defaultRegion = strings.TrimSpace(defaultRegion)
	if defaultRegion == "" {
		defaultRegion = "us-west-2"
	}
	creds := credentials.New(&federatedProvider{source: source})

	g := &Gateway{
		log:           log,
		resolver:      resolver,
		defaultRegion: defaultRegion,
		clients:       make(map[string]*minio.Client, len(shardRegions)),
	}
	for _, region := range shardRegions {
		client, err := minio.New(fmt.Sprintf("s3.%s.amazonaws.com", region), &minio.Options{
			Creds:  creds,
			Secure: true,
			Region: region,
		})
		if err != nil {
			return nil, fmt.Errorf("init storage client for %s: %w", region, err)
		}
		g.clients[region] = client
	}
	return g, nil
}

// clientForRegion returns the client for a region, defaulting when the region
// is empty or unknown.
func (g *Gateway) clientForRegion(region string) *minio.Client {
	region = strings.TrimSpace(region)
	if c, ok := g.clients[region]; ok {
		return c
	}
	return g.clients[g.defaultRegion]
}

// resolveSelf substitutes the literal "self" path segment with the caller's
// identity id.
func (g *Gateway) resolveSelf(key string) string {
	if g.resolver == nil {
		return key
	}
	id := g.resolver.IdentityID()
	if id == "" {
		return key
	}
	return replaceSelfSegment(key, id)
}

func replaceSelfSegment(key, identityID string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		if p == "self" {
			parts[i] = identityID
			break
		}
	}
	return strings.Join(parts, "/")
}

// ListFiles lists object base names under a prefix, first page only.
func (g *Gateway) ListFiles(ctx context.Context, bucket, prefix, region string) ([]string, error) {
	prefix = g.resolveSelf(prefix)
	files := make([]string, 0, listLimit)
	for obj := range g.clientForRegion(region).ListObjects(ctx, bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
		MaxKeys:   listLimit,
	}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("list %s/%s: %w", bucket, prefix, obj.Err)
		}
		if obj.Key == "" || strings.HasSuffix(obj.Key, "/") {
			continue
		}
		files = append(files, path.Base(obj.Key))
		if len(files) >= listLimit {
			break
		}
	}
	return files, nil
}

// GetObject reads an object fully into memory.
func (g *Gateway) GetObject(ctx context.Context, bucket, key, region string) ([]byte, error) {
	key = g.resolveSelf(key)
	obj, err := g.clientForRegion(region).GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", bucket, key, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		resp := minio.ToErrorResponse(err)
		if resp.Code == "NoSuchKey" || resp.Code == "NoSuchBucket" {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read %s/%s: %w", bucket, key, err)
	}
	return data, nil
}

// PutObject writes an object.
func (g *Gateway) PutObject(ctx context.Context, bucket, key string, data []byte, region string) error {
	key = g.resolveSelf(key)
	_, err := g.clientForRegion(region).PutObject(ctx, bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "text/plain",
	})
	if err != nil {
		return fmt.Errorf("put %s/%s: %w", bucket, key, err)
	}
	return nil
}

// DeleteObject removes an object.
func (g *Gateway) DeleteObject(ctx context.Context, bucket, key, region string) error {
	key = g.resolveSelf(key)
	if err := g.clientForRegion(region).RemoveObject(ctx, bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("delete %s/%s: %w", bucket, key, err)
	}
	return nil
}

// PresignedGetURL returns a time-limited download URL for an object, used to
// hand the backend a readable reference to the hash file.
func (g *Gateway) PresignedGetURL(ctx context.Context, bucket, key, region string) (string, error) {
	key = g.resolveSelf(key)
	u, err := g.clientForRegion(region).PresignedGetObject(ctx, bucket, key, presignExpiry, url.Values{})
	if err != nil {
		return "", fmt.Errorf("presign %s/%s: %w", bucket, key, err)
	}
	return u.String(), nil
}
