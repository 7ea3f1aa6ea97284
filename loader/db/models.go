package db

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/prawnloader/prawnloader/loader/engine"
	"github.com/prawnloader/prawnloader/loader/platform"
)

const (
	statusFinished = "finished"
	statusFailed   = "failed"
)

// DownloadRecordModel stores the outcome of one download request.
type DownloadRecordModel struct {
	gorm.Model
	RequestID    string `gorm:"uniqueIndex;not null"`
	Provider     string `gorm:"index;not null"`
	Kind         string `gorm:"not null"`
	Title        string
	Artist       string
	Status       string `gorm:"index;not null"`
	Message      string
	TracksTotal  int
	TracksFailed int
	FinishedAt   time.Time `gorm:"index"`
}

func (DownloadRecordModel) TableName() string {
	return "download_records"
}

func toModel(o engine.Outcome) *DownloadRecordModel {
	status := statusFailed
	if o.Succeeded {
		status = statusFinished
	}
	finished := o.FinishedAt
	if finished.IsZero() {
		finished = time.Now()
	}
	return &DownloadRecordModel{
		RequestID:    o.RequestID.String(),
		Provider:     string(o.Provider),
		Kind:         o.Kind.String(),
		Title:        o.Title,
		Artist:       o.Artist,
		Status:       status,
		Message:      o.Message,
		TracksTotal:  o.TracksTotal,
		TracksFailed: o.TracksFailed,
		FinishedAt:   finished,
	}
}

func toOutcome(m DownloadRecordModel) engine.Outcome {
	kind, _ := platform.ParseKind(m.Kind)
	id, _ := uuid.Parse(m.RequestID)
	return engine.Outcome{
		RequestID:    id,
		Provider:     platform.Provider(m.Provider),
		Kind:         kind,
		Title:        m.Title,
		Artist:       m.Artist,
		Succeeded:    m.Status == statusFinished,
		Message:      m.Message,
		TracksTotal:  m.TracksTotal,
		TracksFailed: m.TracksFailed,
		FinishedAt:   m.FinishedAt,
	}
}
