package resolve

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/prawnloader/prawnloader/loader"
	"github.com/prawnloader/prawnloader/loader/platform"
	"github.com/prawnloader/prawnloader/loader/platform/registry"
)

// DefaultShorteners are hosts whose links are expanded with one redirect step.
var DefaultShorteners = []string{"deezer.page.link", "link.deezer.com"}

// DefaultHostAliases rewrites provider host variants to their canonical host.
var DefaultHostAliases = map[string]string{
	"music.youtube.com": "www.youtube.com",
	"m.youtube.com":     "www.youtube.com",
	"youtube.com":       "www.youtube.com",
	"deezer.com":        "www.deezer.com",
	"m.deezer.com":      "www.deezer.com",
}

// Options configures a Resolver.
type Options struct {
	Timeout     time.Duration
	RetryMax    int
	Shorteners  []string
	HostAliases map[string]string
	Logger      loader.Logger
}

// Resolver turns raw URLs into collection refs.
type Resolver struct {
	grammars   *registry.Registry
	client     *retryablehttp.Client
	shorteners map[string]struct{}
	aliases    map[string]string
	logger     loader.Logger
}

// New creates a resolver over the given grammars.
func New(grammars *registry.Registry, opts Options) *Resolver {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.RetryMax <= 0 {
		opts.RetryMax = 2
	}
	if opts.Shorteners == nil {
		opts.Shorteners = DefaultShorteners
	}
	if opts.HostAliases == nil {
		opts.HostAliases = DefaultHostAliases
	}

	client := retryablehttp.NewClient()
	client.RetryMax = opts.RetryMax
	client.RetryWaitMin = 200 * time.Millisecond
	client.RetryWaitMax = 2 * time.Second
	client.Logger = nil
	client.HTTPClient.Timeout = opts.Timeout
	client.HTTPClient.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}

	shorteners := make(map[string]struct{}, len(opts.Shorteners))
	for _, host := range opts.Shorteners {
		shorteners[strings.ToLower(host)] = struct{}{}
	}

	return &Resolver{
		grammars:   grammars,
		client:     client,
		shorteners: shorteners,
		aliases:    opts.HostAliases,
		logger:     opts.Logger,
	}
}

// Resolve parses rawURL into a CollectionRef. Shortened links cost one HTTP request.
func (r *Resolver) Resolve(ctx context.Context, rawURL string) (platform.CollectionRef, error) {
	u, err := parse(rawURL)
	if err != nil {
		return platform.CollectionRef{}, platform.NewResolveError(rawURL, err)
	}

	if r.isShortener(u) {
		target, err := r.expand(ctx, u)
		if err != nil {
			return platform.CollectionRef{}, platform.NewResolveError(rawURL, err)
		}
		if r.logger != nil {
			r.logger.Debug("expanded short link", "from", rawURL, "to", target.String())
		}
		if r.isShortener(target) {
			return platform.CollectionRef{}, platform.NewResolveError(rawURL, platform.ErrNoMatchingProvider)
		}
		u = target
	}

	r.normalize(u)

	ref, ok, err := r.grammars.Match(u)
	if err != nil {
		return platform.CollectionRef{}, platform.NewResolveError(rawURL, err)
	}
	if !ok {
		return platform.CollectionRef{}, platform.NewResolveError(rawURL, platform.ErrNoMatchingProvider)
	}
	return ref, nil
}

func parse(rawURL string) (*url.URL, error) {
	trimmed := strings.TrimSpace(rawURL)
	if trimmed == "" {
		return nil, platform.ErrMalformedURL
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", platform.ErrMalformedURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: unsupported scheme %q", platform.ErrMalformedURL, u.Scheme)
	}
	if u.Hostname() == "" {
		return nil, fmt.Errorf("%w: missing host", platform.ErrMalformedURL)
	}
	return u, nil
}

func (r *Resolver) isShortener(u *url.URL) bool {
	_, ok := r.shorteners[strings.ToLower(u.Hostname())]
	return ok
}

func (r *Resolver) normalize(u *url.URL) {
	host := strings.ToLower(u.Hostname())
	if canonical, ok := r.aliases[host]; ok {
		host = canonical
	}
	u.Host = host
}

// expand performs a single request and returns the redirect target.
func (r *Resolver) expand(ctx context.Context, u *url.URL) (*url.URL, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", platform.ErrMalformedURL, err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: follow short link: %w", platform.ErrTransport, err)
	}
	defer resp.Body.Close()

	location := resp.Header.Get("Location")
	if resp.StatusCode < 300 || resp.StatusCode >= 400 || location == "" {
		return nil, fmt.Errorf("%w: short link did not redirect (status %d)", platform.ErrNoMatchingProvider, resp.StatusCode)
	}

	target, err := u.Parse(location)
	if err != nil {
		return nil, fmt.Errorf("%w: redirect target: %w", platform.ErrMalformedURL, err)
	}
	if target.Scheme != "http" && target.Scheme != "https" || target.Hostname() == "" {
		return nil, fmt.Errorf("%w: redirect target %q", platform.ErrMalformedURL, location)
	}
	return target, nil
}
