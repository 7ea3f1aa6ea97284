package engine

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/quick"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prawnloader/prawnloader/loader/platform"
)

func TestSanitize(t *testing.T) {
	tests := map[string]string{
		"AC/DC":                 "ACDC",
		`What? <Live> "Edit"`:   "What Live Edit",
		`a\b|c*d:e`:             "abcde",
		"  spaced  ":            "spaced",
		"..":                    "untitled",
		"???":                   "untitled",
		"Daft Punk - Discovery": "Daft Punk - Discovery",
	}
	for in, want := range tests {
		assert.Equal(t, want, Sanitize(in), in)
	}
}

func TestSanitizeIdempotent(t *testing.T) {
	f := func(s string) bool {
		once := Sanitize(s)
		return Sanitize(once) == once && !strings.ContainsAny(once, `<>:"/\|?*`)
	}
	require.NoError(t, quick.Check(f, nil))
}

func TestFileNames(t *testing.T) {
	assert.Equal(t, "Daft Punk - One More Time.mp3", TrackFileName("Daft Punk", "One More Time", "mp3"))
	assert.Equal(t, "Daft Punk - Discovery", FolderName("Daft Punk", "Discovery"))
	assert.Equal(t, "Daft Punk - 07 Robot Rock.flac", ChapterFileName("Daft Punk", 7, "Robot Rock", "flac"))
	assert.Equal(t, filepath.Join("out", ".a - b.part.mp3"), partPath(filepath.Join("out", "a - b.mp3")))
}

func TestMoveFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	dst := filepath.Join(dir, "dst")
	require.NoError(t, os.WriteFile(src, []byte("data"), 0o644))

	require.NoError(t, moveFile(src, dst))
	assert.NoFileExists(t, src)
	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "data", string(data))
}

func TestUniqueTrackNames(t *testing.T) {
	songs := []platform.Song{
		{Title: "Intro", Artist: "x"},
		{Title: "Outro", Artist: "x"},
		{Title: "intro", Artist: "X"},
		{Title: "Intro", Artist: "x"},
	}
	assert.Equal(t, []string{
		"x - Intro.mp3",
		"x - Outro.mp3",
		"X - intro (3).mp3",
		"x - Intro (4).mp3",
	}, uniqueTrackNames(songs, "mp3"))
}
