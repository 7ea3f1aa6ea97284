package youtube

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/prawnloader/prawnloader/loader/platform"
)

var chapterLine = regexp.MustCompile(`^\s*(?:[-*•]\s*)?\(?((?:\d{1,2}:)?\d{1,2}:\d{2})\)?\s*(?:[-–—:|]\s*)?(.*?)\s*$`)

// ParseChapters extracts chapter markers from a video description. A valid
// list starts at 0:00, has at least two entries and strictly increasing starts.
func ParseChapters(description string) []platform.Chapter {
	var chapters []platform.Chapter
	for _, line := range strings.Split(description, "\n") {
		m := chapterLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		start, ok := parseTimestamp(m[1])
		if !ok {
			continue
		}
		if len(chapters) > 0 && start <= chapters[len(chapters)-1].Start {
			return nil
		}
		title := m[2]
		if title == "" {
			title = "Chapter " + strconv.Itoa(len(chapters)+1)
		}
		chapters = append(chapters, platform.Chapter{Title: title, Start: start})
	}

	if len(chapters) < 2 || chapters[0].Start != 0 {
		return nil
	}
	return chapters
}

func parseTimestamp(s string) (time.Duration, bool) {
	parts := strings.Split(s, ":")
	var total int
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return 0, false
		}
		if i > 0 && n >= 60 {
			return 0, false
		}
		total = total*60 + n
	}
	return time.Duration(total) * time.Second, true
}
