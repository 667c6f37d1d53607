package city

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/goccy/go-json"

	"skycast/internal/errorutil"
	"skycast/internal/logger"
)

const (
	// BundledPath is the location of the catalog inside the embedded FS.
	BundledPath = "data/cities.json"

	// DefaultFallbackURL serves the same JSON shape as the bundled catalog.
	DefaultFallbackURL = "https://raw.githubusercontent.com/isaric/weather-app/main/city_search/cities.json"

	DefaultConnectTimeout = 10 * time.Second
	DefaultRequestTimeout = 20 * time.Second

	userAgent = "Skycast/1.0"
)

//go:embed data/cities.json
var bundled embed.FS

var (
	// ErrSourceMissing is returned when a source has nothing to read.
	ErrSourceMissing = errors.New("catalog source not found")

	// ErrEmptyPayload is returned when a source yields zero bytes.
	ErrEmptyPayload = errors.New("catalog payload is empty")
)

// Source produces the full list of cities. An error means "no data from
// this source"; the catalog moves on to the next one.
type Source interface {
	Name() string
	Load(ctx context.Context) ([]City, error)
}

// BundledSource reads a JSON array of cities from a filesystem.
type BundledSource struct {
	fsys fs.FS
	path string
}

// NewBundledSource reads path from fsys.
func NewBundledSource(fsys fs.FS, path string) *BundledSource {
	return &BundledSource{fsys: fsys, path: path}
}

// DefaultBundledSource reads the catalog compiled into the binary.
func DefaultBundledSource() *BundledSource {
	return NewBundledSource(bundled, BundledPath)
}

// NewFileSource reads the catalog from a file on disk.
func NewFileSource(path string) *BundledSource {
	clean := filepath.Clean(path)
	return NewBundledSource(os.DirFS(filepath.Dir(clean)), filepath.ToSlash(filepath.Base(clean)))
}

func (b *BundledSource) Name() string {
	return "bundled:" + b.path
}

func (b *BundledSource) Load(ctx context.Context) ([]City, error) {
	data, err := fs.ReadFile(b.fsys, b.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrSourceMissing, b.path)
		}
		return nil, fmt.Errorf("failed to read %s: %w", b.path, err)
	}
	return decodeCities(data)
}

// RemoteSource fetches the catalog over HTTP. It never retries.
type RemoteSource struct {
	url     string
	timeout time.Duration
	client  *resty.Client
}

// RemoteOptions tunes the fallback fetch.
type RemoteOptions struct {
	ConnectTimeout time.Duration
	RequestTimeout time.Duration
}

// NewRemoteSource creates a fallback source for url. Zero timeouts fall back
// to 10s connect and 20s total.
func NewRemoteSource(url string, opts RemoteOptions) *RemoteSource {
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = DefaultConnectTimeout
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = DefaultRequestTimeout
	}

	dialer := &net.Dialer{Timeout: opts.ConnectTimeout}
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		DialContext:         dialer.DialContext,
		TLSHandshakeTimeout: opts.ConnectTimeout,
	}

	client := resty.New().
		SetTransport(transport).
		SetTimeout(opts.RequestTimeout).
		SetHeader("User-Agent", userAgent).
		SetHeader("Accept", "application/json").
		SetRetryCount(0).
		SetJSONMarshaler(json.Marshal).
		SetJSONUnmarshaler(json.Unmarshal)

	client.OnAfterResponse(func(c *resty.Client, resp *resty.Response) error {
		logger.LogAPIResponse(resp.Request.Method, resp.Request.URL, resp.StatusCode(),
			resp.Time().String(), len(resp.Body()))
		return nil
	})

	return &RemoteSource{url: url, timeout: opts.RequestTimeout, client: client}
}

func (r *RemoteSource) Name() string {
	return "remote:" + r.url
}

func (r *RemoteSource) Load(ctx context.Context) ([]City, error) {
	if r.url == "" {
		return nil, fmt.Errorf("%w: no fallback URL configured", ErrSourceMissing)
	}

	resp, err := r.client.R().SetContext(ctx).Get(r.url)
	if err != nil {
		return nil, errorutil.NewNetworkError("city catalog fetch", r.url, err).WithTimeout(r.timeout)
	}
	if !resp.IsSuccess() {
		return nil, errorutil.NewStatusError("city catalog fetch", r.url, resp.StatusCode(), nil)
	}
	if len(resp.Body()) == 0 {
		return nil, ErrEmptyPayload
	}
	return decodeCities(resp.Body())
}

func decodeCities(data []byte) ([]City, error) {
	if len(data) == 0 {
		return nil, ErrEmptyPayload
	}
	var cities []City
	if err := json.Unmarshal(data, &cities); err != nil {
		return nil, fmt.Errorf("failed to parse city catalog: %w", err)
	}
	return cities, nil
}
