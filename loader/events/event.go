package events

import (
	"fmt"

	"github.com/google/uuid"
)

// Kind identifies a progress event.
type Kind int

const (
	KindWaiting Kind = iota
	KindStart
	KindFinish
	KindDownloadError
	KindAlbumTrackComplete
	KindAlbumTrackError
)

var kindNames = map[Kind]string{
	KindWaiting:            "waiting",
	KindStart:              "start",
	KindFinish:             "finish",
	KindDownloadError:      "download_error",
	KindAlbumTrackComplete: "album_track_complete",
	KindAlbumTrackError:    "album_track_error",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Terminal reports whether the kind ends a request.
func (k Kind) Terminal() bool {
	return k == KindFinish || k == KindDownloadError
}

// ProgressEvent is published by workers. TrackIndex is the 0-based member
// position and is only meaningful for album track events.
type ProgressEvent struct {
	Kind       Kind
	RequestID  uuid.UUID
	TrackIndex int
	Message    string
}

func Waiting(id uuid.UUID) ProgressEvent { return ProgressEvent{Kind: KindWaiting, RequestID: id} }
func Start(id uuid.UUID) ProgressEvent   { return ProgressEvent{Kind: KindStart, RequestID: id} }
func Finish(id uuid.UUID) ProgressEvent  { return ProgressEvent{Kind: KindFinish, RequestID: id} }

func DownloadError(id uuid.UUID, msg string) ProgressEvent {
	return ProgressEvent{Kind: KindDownloadError, RequestID: id, Message: msg}
}

func AlbumTrackComplete(id uuid.UUID, index int) ProgressEvent {
	return ProgressEvent{Kind: KindAlbumTrackComplete, RequestID: id, TrackIndex: index}
}

func AlbumTrackError(id uuid.UUID, index int, msg string) ProgressEvent {
	return ProgressEvent{Kind: KindAlbumTrackError, RequestID: id, TrackIndex: index, Message: msg}
}

// Event is the consumer-facing form of a ProgressEvent.
type Event struct {
	Name       string `json:"name"`
	RequestID  string `json:"requestId"`
	TrackIndex *int   `json:"trackIndex,omitempty"`
	Message    string `json:"message,omitempty"`

	kind Kind
}

// Kind returns the kind the event was converted from.
func (e Event) Kind() Kind {
	return e.kind
}

// ToEvent converts a ProgressEvent for consumers.
func (p ProgressEvent) ToEvent() Event {
	ev := Event{
		Name:      p.Kind.String(),
		RequestID: p.RequestID.String(),
		Message:   p.Message,
		kind:      p.Kind,
	}
	if p.Kind == KindAlbumTrackComplete || p.Kind == KindAlbumTrackError {
		index := p.TrackIndex
		ev.TrackIndex = &index
	}
	return ev
}
