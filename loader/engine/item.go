package engine

import (
	"github.com/google/uuid"

	"github.com/prawnloader/prawnloader/loader/config"
	"github.com/prawnloader/prawnloader/loader/platform"
)

// Item is a downloadable unit. Kind selects which of Song or Album is set.
type Item struct {
	Kind            platform.Kind     `json:"kind"`
	Provider        platform.Provider `json:"provider"`
	Song            *platform.Song    `json:"song,omitempty"`
	Album           *platform.Album   `json:"album,omitempty"`
	MergeTracks     bool              `json:"mergeTracks,omitempty"`
	SplitByChapters bool              `json:"splitByChapters,omitempty"`
}

func NewTrackItem(provider platform.Provider, song platform.Song) Item {
	return Item{Kind: platform.KindTrack, Provider: provider, Song: &song}
}

func NewVideoItem(provider platform.Provider, song platform.Song, splitByChapters bool) Item {
	return Item{Kind: platform.KindVideo, Provider: provider, Song: &song, SplitByChapters: splitByChapters}
}

func NewAlbumItem(provider platform.Provider, album platform.Album, mergeTracks bool) Item {
	return Item{Kind: platform.KindAlbum, Provider: provider, Album: &album, MergeTracks: mergeTracks}
}

func NewPlaylistItem(provider platform.Provider, album platform.Album) Item {
	return Item{Kind: platform.KindPlaylist, Provider: provider, Album: &album}
}

// Title returns the song or collection title.
func (i Item) Title() string {
	switch {
	case i.Song != nil:
		return i.Song.Title
	case i.Album != nil:
		return i.Album.Title
	}
	return ""
}

// Artist returns the song or collection artist.
func (i Item) Artist() string {
	switch {
	case i.Song != nil:
		return i.Song.Artist
	case i.Album != nil:
		return i.Album.Artist
	}
	return ""
}

// Tracks returns the number of members for collections and 1 otherwise.
func (i Item) Tracks() int {
	if i.Album != nil {
		return len(i.Album.Songs)
	}
	return 1
}

// DownloadRequest pairs an item with the id used in every event about it.
type DownloadRequest struct {
	ID   uuid.UUID `json:"id"`
	Item Item      `json:"item"`
}

// NewRequest assigns a fresh id to item.
func NewRequest(item Item) DownloadRequest {
	return DownloadRequest{ID: uuid.New(), Item: item}
}

// Options are the output settings a request is processed with.
type Options struct {
	OutputDir        string
	Format           string
	CollectionFolder bool
	MergeTracks      bool
}

// OptionsFromSettings snapshots the output-related settings.
func OptionsFromSettings(s config.Settings) Options {
	return Options{
		OutputDir:        s.OutputDir,
		Format:           s.AudioFormat,
		CollectionFolder: s.CollectionFolder,
		MergeTracks:      s.MergeTracks,
	}
}
