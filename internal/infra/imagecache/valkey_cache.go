package imagecache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/valkey-io/valkey-go"

	"github.com/yanqian/mealplanner/internal/domain/export"
	"github.com/yanqian/mealplanner/internal/infra/images"
)

// ValkeyCache shares fetched images across instances through Valkey.
type ValkeyCache struct {
	client valkey.Client
	prefix string
}

// NewValkeyCache constructs a cache backed by Valkey.
func NewValkeyCache(client valkey.Client, prefix string) *ValkeyCache {
	if prefix == "" {
		prefix = "mealplanner:img"
	}
	return &ValkeyCache{client: client, prefix: prefix}
}

type cachedImage struct {
	MimeType string `json:"mimeType"`
	Data     []byte `json:"data"`
}

// Get implements images.Cache.
func (c *ValkeyCache) Get(ctx context.Context, uri string) (export.Image, bool, error) {
	payload, err := c.client.Do(ctx, c.client.B().Get().Key(c.key(uri)).Build()).AsBytes()
	if err != nil {
		if valkey.IsValkeyNil(err) {
			return export.Image{}, false, nil
		}
		return export.Image{}, false, err
	}
	var cached cachedImage
	if err := json.Unmarshal(payload, &cached); err != nil {
		return export.Image{}, false, err
	}
	return export.Image{Data: cached.Data, MimeType: cached.MimeType}, true, nil
}

// Set implements images.Cache.
func (c *ValkeyCache) Set(ctx context.Context, uri string, img export.Image, ttl time.Duration) error {
	payload, err := json.Marshal(cachedImage{MimeType: img.MimeType, Data: img.Data})
	if err != nil {
		return err
	}
	builder := c.client.B().Set().Key(c.key(uri)).Value(valkey.BinaryString(payload))
	var cmd valkey.Completed
	if ttl > 0 {
		if ttl < time.Second {
			ttl = time.Second
		}
		cmd = builder.Ex(ttl).Build()
	} else {
		cmd = builder.Build()
	}
	return c.client.Do(ctx, cmd).Error()
}

// key hashes the uri; data URIs and signed URLs make poor raw keys.
func (c *ValkeyCache) key(uri string) string {
	sum := sha256.Sum256([]byte(uri))
	return c.prefix + ":" + hex.EncodeToString(sum[:])
}

var _ images.Cache = (*ValkeyCache)(nil)
