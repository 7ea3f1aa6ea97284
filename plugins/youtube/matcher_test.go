package youtube

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
		wantErr   bool
	}{
		{name: "watch", url: "https://www.youtube.com/watch?v=ORofRTMg-iY", wantKind: platform.KindVideo, wantID: "ORofRTMg-iY", wantMatch: true},
		{name: "watch with playlist", url: "https://www.youtube.com/watch?v=gAy5WZo9kts&list=PL123", wantKind: platform.KindVideo, wantID: "gAy5WZo9kts", wantMatch: true},
		{name: "watch list only", url: "https://www.youtube.com/watch?list=PLevurNKwl9HE", wantKind: platform.KindPlaylist, wantID: "PLevurNKwl9HE", wantMatch: true},
		{name: "playlist", url: "https://www.youtube.com/playlist?list=PLevurNKwl9HEcxa6K3dUoQ1jSBUUC2UxI", wantKind: platform.KindPlaylist, wantID: "PLevurNKwl9HEcxa6K3dUoQ1jSBUUC2UxI", wantMatch: true},
		{name: "short link", url: "https://youtu.be/ORofRTMg-iY", wantKind: platform.KindVideo, wantID: "ORofRTMg-iY", wantMatch: true},
		{name: "shorts", url: "https://www.youtube.com/shorts/ORofRTMg-iY/", wantKind: platform.KindVideo, wantID: "ORofRTMg-iY", wantMatch: true},
		{name: "short video id", url: "https://www.youtube.com/watch?v=abc", wantMatch: true, wantErr: true},
		{name: "empty playlist id", url: "https://www.youtube.com/playlist", wantMatch: true, wantErr: true},
		{name: "bad playlist id", url: "https://www.youtube.com/playlist?list=a%20b", wantMatch: true, wantErr: true},
		{name: "watch without id", url: "https://www.youtube.com/watch", wantMatch: true, wantErr: true},
		{name: "channel", url: "https://www.youtube.com/@daftpunk"},
		{name: "other host", url: "https://vimeo.com/123"},
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
			if tt.wantErr {
				if !errors.Is(err, platform.ErrInvalidID) {
					t.Fatalf("err = %v, want ErrInvalidID", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !matched {
				return
			}
			want := platform.CollectionRef{Provider: platform.ProviderYouTube, Kind: tt.wantKind, ID: tt.wantID}
			if ref != want {
				t.Errorf("ref = %+v, want %+v", ref, want)
			}
		})
	}
}
