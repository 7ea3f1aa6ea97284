package deezer

import (
	"errors"
	"net/url"
	"testing"

	"github.com/prawnloader/prawnloader/loader/platform"
)

func TestURLMatcher(t *testing.T) {
	m := NewURLMatcher()

	tests := []struct {
		name      string
		url       string
		wantKind  platform.Kind
		wantID    string
		wantMatch bool
		wantErr   error
	}{
		{name: "track", url: "https://www.deezer.com/track/3135556", wantKind: platform.KindTrack, wantID: "3135556", wantMatch: true},
		{name: "album with locale", url: "https://www.deezer.com/en/album/302127", wantKind: platform.KindAlbum, wantID: "302127", wantMatch: true},
		{name: "playlist with query", url: "https://www.deezer.com/fr/playlist/908622995?utm_source=share", wantKind: platform.KindPlaylist, wantID: "908622995", wantMatch: true},
		{name: "trailing slash", url: "https://www.deezer.com/track/12345/", wantKind: platform.KindTrack, wantID: "12345", wantMatch: true},
		{name: "non numeric id", url: "https://www.deezer.com/track/abc", wantMatch: true, wantErr: platform.ErrInvalidID},
		{name: "negative id", url: "https://www.deezer.com/album/-1", wantMatch: true, wantErr: platform.ErrInvalidID},
		{name: "artist page", url: "https://www.deezer.com/artist/27"},
		{name: "root", url: "https://www.deezer.com/"},
		{name: "other host", url: "https://www.example.com/track/1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, err := url.Parse(tt.url)
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			ref, matched, err := m.Match(u)
			if matched != tt.wantMatch {
				t.Fatalf("matched = %v, want %v", matched, tt.wantMatch)
			}
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !matched {
				return
			}
			want := platform.CollectionRef{Provider: platform.ProviderDeezer, Kind: tt.wantKind, ID: tt.wantID}
			if ref != want {
				t.Errorf("ref = %+v, want %+v", ref, want)
			}
		})
	}
}
