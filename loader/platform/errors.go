package platform

import (
	"errors"
	"fmt"
)

// Errors that can be checked with errors.Is.
var (
	// ErrMalformedURL is returned when the input is not a well-formed http(s) URL.
	ErrMalformedURL = errors.New("malformed url")

	// ErrNoMatchingProvider is returned when no provider grammar claims a URL.
	ErrNoMatchingProvider = errors.New("no matching provider")

	// ErrInvalidID is returned when a matched grammar extracts an invalid id.
	ErrInvalidID = errors.New("invalid id")

	// ErrNotFound is returned when an item does not exist at the provider.
	ErrNotFound = errors.New("platform: resource not found")

	// ErrUnavailable is returned when an item exists but cannot be read.
	ErrUnavailable = errors.New("platform: content unavailable")

	// ErrTransport is returned for network or process failures.
	ErrTransport = errors.New("transport failure")

	// ErrWrite is returned for filesystem failures while writing output.
	ErrWrite = errors.New("write failure")

	// ErrRateLimited is returned when the provider API rate limit is hit.
	ErrRateLimited = errors.New("platform: rate limit exceeded")

	// ErrUnsupported is returned when a feature is not supported by the provider.
	ErrUnsupported = errors.New("platform: feature not supported")
)

// ResolveError reports why a URL could not be resolved.
type ResolveError struct {
	URL string
	Err error
}

func (e *ResolveError) Error() string {
	return fmt.Sprintf("resolve %q: %v", e.URL, e.Err)
}

func (e *ResolveError) Unwrap() error {
	return e.Err
}

// NewResolveError wraps err for rawURL.
func NewResolveError(rawURL string, err error) error {
	return &ResolveError{URL: rawURL, Err: err}
}

// PlatformError wraps an error with the provider and resource that caused it.
type PlatformError struct {
	Platform string
	Resource string
	ID       string
	Err      error
}

func (e *PlatformError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s: %s %s: %v", e.Platform, e.Resource, e.ID, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Platform, e.Resource, e.Err)
}

func (e *PlatformError) Unwrap() error {
	return e.Err
}

// NewNotFoundError creates a PlatformError for a resource that was not found.
func NewNotFoundError(platform, resource, id string) error {
	return &PlatformError{Platform: platform, Resource: resource, ID: id, Err: ErrNotFound}
}

// NewUnavailableError creates a PlatformError for unreadable content.
func NewUnavailableError(platform, resource, id string) error {
	return &PlatformError{Platform: platform, Resource: resource, ID: id, Err: ErrUnavailable}
}

// NewRateLimitedError creates a PlatformError for rate limit errors.
func NewRateLimitedError(platform string) error {
	return &PlatformError{Platform: platform, Resource: "api", Err: ErrRateLimited}
}

// NewUnsupportedError creates a PlatformError for unsupported features.
func NewUnsupportedError(platform, feature string) error {
	return &PlatformError{Platform: platform, Resource: feature, Err: ErrUnsupported}
}

// NewTransportError marks err as a transport failure while keeping it inspectable.
func NewTransportError(platform, resource, id string, err error) error {
	if err == nil || errors.Is(err, ErrTransport) {
		return err
	}
	return &PlatformError{Platform: platform, Resource: resource, ID: id, Err: fmt.Errorf("%w: %w", ErrTransport, err)}
}

// NewWriteError marks a filesystem failure on path.
func NewWriteError(path string, err error) error {
	if err == nil || errors.Is(err, ErrWrite) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", ErrWrite, path, err)
}

// IsMissing reports whether err means the item is absent or unreadable.
func IsMissing(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrUnavailable)
}
