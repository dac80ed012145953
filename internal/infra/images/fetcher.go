package images

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/netip"
	"net/url"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/yanqian/mealplanner/internal/domain/blob"
	"github.com/yanqian/mealplanner/internal/domain/export"
	"github.com/yanqian/mealplanner/pkg/util"
)

// ErrTooLarge is returned when an image exceeds the configured size cap.
var ErrTooLarge = errors.New("images: image exceeds size limit")

// ErrBlockedAddress is returned when a remote image resolves to a loopback,
// private, link-local or otherwise internal address.
var ErrBlockedAddress = errors.New("images: address not allowed")

// Cache stores fetched remote images.
type Cache interface {
	Get(ctx context.Context, uri string) (export.Image, bool, error)
	Set(ctx context.Context, uri string, img export.Image, ttl time.Duration) error
}

// Config bounds image retrieval.
type Config struct {
	Timeout  time.Duration
	MaxBytes int64
	CacheTTL time.Duration

	// AllowPrivateNetworks lets remote images resolve to internal addresses.
	AllowPrivateNetworks bool
}

// Fetcher resolves recipe image URIs for the PDF export.
type Fetcher struct {
	cfg        Config
	httpClient *http.Client
	storage    blob.ObjectStorage
	cache      Cache
	logger     *slog.Logger
	group      singleflight.Group
}

// NewFetcher constructs the fetcher. storage and cache may be nil.
func NewFetcher(cfg Config, storage blob.ObjectStorage, cache Cache, logger *slog.Logger) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = 5 << 20
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 24 * time.Hour
	}
	return &Fetcher{
		cfg:        cfg,
		httpClient: newHTTPClient(cfg),
		storage:    storage,
		cache:      cache,
		logger:     logger.With("component", "images.fetcher"),
	}
}

func newHTTPClient(cfg Config) *http.Client {
	dialer := &net.Dialer{Timeout: cfg.Timeout}
	if !cfg.AllowPrivateNetworks {
		dialer.Control = rejectInternal
	}
	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		TLSHandshakeTimeout:   cfg.Timeout,
		ResponseHeaderTimeout: cfg.Timeout,
		MaxIdleConns:          16,
		IdleConnTimeout:       90 * time.Second,
	}
	return &http.Client{
		Timeout:   cfg.Timeout,
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 5 {
				return errors.New("images: too many redirects")
			}
			if req.URL.Scheme != "http" && req.URL.Scheme != "https" {
				return fmt.Errorf("images: redirect to %s scheme", req.URL.Scheme)
			}
			return nil
		},
	}
}

// rejectInternal runs after DNS resolution, so every redirect hop and every
// resolved address is checked.
func rejectInternal(_, address string, _ syscall.RawConn) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return err
	}
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrBlockedAddress, host)
	}
	if blockedAddr(addr) {
		return fmt.Errorf("%w: %s", ErrBlockedAddress, addr)
	}
	return nil
}

var sharedAddressSpace = netip.MustParsePrefix("100.64.0.0/10")

func blockedAddr(addr netip.Addr) bool {
	addr = addr.Unmap()
	return !addr.IsValid() ||
		addr.IsLoopback() ||
		addr.IsPrivate() ||
		addr.IsLinkLocalUnicast() ||
		addr.IsLinkLocalMulticast() ||
		addr.IsInterfaceLocalMulticast() ||
		addr.IsMulticast() ||
		addr.IsUnspecified() ||
		sharedAddressSpace.Contains(addr)
}

// Fetch implements export.ImageSource.
func (f *Fetcher) Fetch(ctx context.Context, uri string) (export.Image, error) {
	uri = strings.TrimSpace(uri)
	switch {
	case uri == "":
		return export.Image{}, errors.New("images: empty uri")
	case strings.HasPrefix(uri, "data:"):
		return decodeDataURI(uri, f.cfg.MaxBytes)
	case strings.HasPrefix(uri, blob.RefScheme):
		return f.fetchBlob(ctx, uri)
	case strings.HasPrefix(uri, "http://"), strings.HasPrefix(uri, "https://"):
		return f.fetchRemote(ctx, uri)
	default:
		return export.Image{}, fmt.Errorf("images: unsupported uri scheme in %q", util.Abbrev(uri, 64))
	}
}

func (f *Fetcher) fetchBlob(ctx context.Context, ref string) (export.Image, error) {
	key, ok := blob.KeyFromRef(ref)
	if !ok || f.storage == nil {
		return export.Image{}, fmt.Errorf("images: cannot resolve %q", ref)
	}
	ctx, cancel := context.WithTimeout(ctx, f.cfg.Timeout)
	defer cancel()
	rc, err := f.storage.Get(ctx, key)
	if err != nil {
		return export.Image{}, fmt.Errorf("images: read %s: %w", key, err)
	}
	defer rc.Close()
	data, err := readLimited(rc, f.cfg.MaxBytes)
	if err != nil {
		return export.Image{}, err
	}
	return imageFrom(data, "")
}

func (f *Fetcher) fetchRemote(ctx context.Context, uri string) (export.Image, error) {
	if f.cache != nil {
		img, ok, err := f.cache.Get(ctx, uri)
		if err != nil {
			f.logger.Warn("image cache read failed", "error", err)
		} else if ok {
			return img, nil
		}
	}

	v, err, _ := f.group.Do(uri, func() (any, error) {
		img, err := f.download(ctx, uri)
		if err != nil {
			return export.Image{}, err
		}
		if f.cache != nil {
			if err := f.cache.Set(ctx, uri, img, f.cfg.CacheTTL); err != nil {
				f.logger.Warn("image cache write failed", "error", err)
			}
		}
		return img, nil
	})
	if err != nil {
		return export.Image{}, err
	}
	return v.(export.Image), nil
}

func (f *Fetcher) download(ctx context.Context, uri string) (export.Image, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return export.Image{}, fmt.Errorf("build image request: %w", err)
	}
	req.Header.Set("Accept", "image/*")
	resp, err := f.httpClient.Do(req)
	if err != nil {
		return export.Image{}, fmt.Errorf("image request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return export.Image{}, fmt.Errorf("image request error: status=%d", resp.StatusCode)
	}
	if resp.ContentLength > f.cfg.MaxBytes {
		return export.Image{}, ErrTooLarge
	}
	data, err := readLimited(resp.Body, f.cfg.MaxBytes)
	if err != nil {
		return export.Image{}, err
	}
	return imageFrom(data, resp.Header.Get("Content-Type"))
}

func readLimited(r io.Reader, limit int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	if int64(len(data)) > limit {
		return nil, ErrTooLarge
	}
	return data, nil
}

// imageFrom trusts the sniffed type over a declared one; servers often send
// application/octet-stream.
func imageFrom(data []byte, declared string) (export.Image, error) {
	if len(data) == 0 {
		return export.Image{}, errors.New("images: empty body")
	}
	mimeType := http.DetectContentType(data)
	if !strings.HasPrefix(mimeType, "image/") {
		mimeType, _, _ = strings.Cut(declared, ";")
		mimeType = strings.TrimSpace(strings.ToLower(mimeType))
	}
	if !strings.HasPrefix(mimeType, "image/") {
		return export.Image{}, fmt.Errorf("images: not an image (%s)", mimeType)
	}
	return export.Image{Data: data, MimeType: mimeType}, nil
}

// decodeDataURI handles data:[<mime>][;base64],<payload>.
func decodeDataURI(uri string, limit int64) (export.Image, error) {
	meta, payload, ok := strings.Cut(strings.TrimPrefix(uri, "data:"), ",")
	if !ok {
		return export.Image{}, errors.New("images: malformed data uri")
	}
	var data []byte
	if strings.HasSuffix(meta, ";base64") {
		decoded, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return export.Image{}, fmt.Errorf("images: decode data uri: %w", err)
		}
		data = decoded
	} else {
		unescaped, err := url.PathUnescape(payload)
		if err != nil {
			return export.Image{}, fmt.Errorf("images: decode data uri: %w", err)
		}
		data = []byte(unescaped)
	}
	if int64(len(data)) > limit {
		return export.Image{}, ErrTooLarge
	}
	declared, _, _ := strings.Cut(meta, ";")
	return imageFrom(data, declared)
}

var _ export.ImageSource = (*Fetcher)(nil)
