package platform

import (
	"fmt"
	"strings"
	"time"
)

// Provider identifies a content provider.
type Provider string

const (
	ProviderDeezer  Provider = "deezer"
	ProviderYouTube Provider = "youtube"
)

// Kind is the kind of item a URL refers to.
type Kind int

const (
	KindTrack Kind = iota
	KindAlbum
	KindPlaylist
	KindVideo
)

func (k Kind) String() string {
	switch k {
	case KindTrack:
		return "track"
	case KindAlbum:
		return "album"
	case KindPlaylist:
		return "playlist"
	case KindVideo:
		return "video"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// IsCollection reports whether the kind has members.
func (k Kind) IsCollection() bool {
	return k == KindAlbum || k == KindPlaylist
}

// ParseKind parses the string form of a Kind.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "track":
		return KindTrack, nil
	case "album":
		return KindAlbum, nil
	case "playlist":
		return KindPlaylist, nil
	case "video":
		return KindVideo, nil
	default:
		return 0, fmt.Errorf("unknown kind %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(text []byte) error {
	parsed, err := ParseKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// CollectionRef is the canonical identity of a resolved URL.
type CollectionRef struct {
	Provider Provider `json:"provider"`
	Kind     Kind     `json:"kind"`
	ID       string   `json:"id"`
}

func (r CollectionRef) String() string {
	return fmt.Sprintf("%s:%s:%s", r.Provider, r.Kind, r.ID)
}

// Chapter marks the start of a named section within a long item.
type Chapter struct {
	Title string        `json:"title"`
	Start time.Duration `json:"start"`
}

// Song is the canonical track or video metadata.
type Song struct {
	ID          string        `json:"id"`
	Title       string        `json:"title"`
	Artist      string        `json:"artist"`
	AlbumTitle  string        `json:"albumTitle,omitempty"`
	CoverURL    string        `json:"coverUrl,omitempty"`
	ReleaseDate string        `json:"releaseDate,omitempty"`
	TrackNumber int           `json:"trackNumber,omitempty"`
	Duration    time.Duration `json:"duration,omitempty"`
	Chapters    []Chapter     `json:"chapters,omitempty"`
}

// Album is an ordered collection of songs, used for albums and playlists.
type Album struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Artist   string `json:"artist"`
	CoverURL string `json:"coverUrl,omitempty"`
	Songs    []Song `json:"songs"`
}

// Listing is a collection header plus its member ids, as returned by a provider.
type Listing struct {
	ID        string
	Title     string
	Artist    string
	CoverURL  string
	MemberIDs []string
}

// Media describes bytes fetched to disk by a provider client.
type Media struct {
	Path string
	// Ext is the container extension without the dot, e.g. "mp3" or "webm".
	Ext  string
	Size int64
}

// StreamInfo describes a remote byte stream.
type StreamInfo struct {
	URL     string
	Headers map[string]string
	Size    int64
	MD5     string
	Format  string
}
