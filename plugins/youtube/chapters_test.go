package youtube

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prawnloader/prawnloader/loader/platform"
)

func TestParseChapters(t *testing.T) {
	desc := `Full live set.

Tracklist:
00:00 Intro
(03:15) Around the World
- 7:02 - One More Time
1:02:03 | Outro
Thanks for watching`

	got := ParseChapters(desc)
	require.Len(t, got, 4)
	assert.Equal(t, platform.Chapter{Title: "Intro", Start: 0}, got[0])
	assert.Equal(t, platform.Chapter{Title: "Around the World", Start: 3*time.Minute + 15*time.Second}, got[1])
	assert.Equal(t, platform.Chapter{Title: "One More Time", Start: 7*time.Minute + 2*time.Second}, got[2])
	assert.Equal(t, platform.Chapter{Title: "Outro", Start: time.Hour + 2*time.Minute + 3*time.Second}, got[3])
}

func TestParseChaptersRejectsInvalidLists(t *testing.T) {
	tests := map[string]string{
		"no timestamps":       "just a description",
		"single entry":        "0:00 Only",
		"not starting at 0":   "0:10 A\n1:00 B",
		"not increasing":      "0:00 A\n2:00 B\n1:00 C",
		"out of range second": "0:00 A\n1:75 B",
	}
	for name, desc := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Nil(t, ParseChapters(desc))
		})
	}
}

func TestParseChaptersUntitled(t *testing.T) {
	got := ParseChapters("0:00\n1:00 Second")
	require.Len(t, got, 2)
	assert.Equal(t, "Chapter 1", got[0].Title)
}
