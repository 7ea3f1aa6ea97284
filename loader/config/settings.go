package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// Supported output formats.
const (
	FormatMP3  = "mp3"
	FormatWebM = "webm"
	FormatWAV  = "wav"
	FormatOGG  = "ogg"
	FormatFLAC = "flac"
)

var supportedFormats = []string{FormatMP3, FormatWebM, FormatWAV, FormatOGG, FormatFLAC}

// ErrInvalidSettings is returned when a settings update fails validation.
var ErrInvalidSettings = errors.New("invalid settings")

// Settings holds the user-facing download options. A copy is taken at
// submit time, so later updates do not affect queued requests.
type Settings struct {
	OutputDir        string `json:"outputDir"`
	AudioFormat      string `json:"audioFormat"`
	MergeTracks      bool   `json:"mergeTracks"`
	SplitByChapters  bool   `json:"splitByChapters"`
	CollectionFolder bool   `json:"collectionFolder"`
}

// Validate checks the settings.
func (s Settings) Validate() error {
	if strings.TrimSpace(s.OutputDir) == "" {
		return fmt.Errorf("%w: output directory required", ErrInvalidSettings)
	}
	if !slices.Contains(supportedFormats, s.AudioFormat) {
		return fmt.Errorf("%w: unsupported audio format %q", ErrInvalidSettings, s.AudioFormat)
	}
	return nil
}

// SupportedFormats returns the accepted AudioFormat values.
func SupportedFormats() []string {
	return slices.Clone(supportedFormats)
}

// Settings returns a snapshot of the current settings.
func (c *Config) Settings() Settings {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.settings
}

// UpdateSettings replaces the current settings after validation.
func (c *Config) UpdateSettings(s Settings) error {
	s.AudioFormat = strings.ToLower(strings.TrimSpace(s.AudioFormat))
	if err := s.Validate(); err != nil {
		return err
	}
	c.mu.Lock()
	c.settings = s
	c.mu.Unlock()
	return nil
}
