package engine

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/prawnloader/prawnloader/loader/platform"
)

var forbiddenChars = strings.NewReplacer(
	"<", "", ">", "", ":", "", `"`, "",
	"/", "", `\`, "", "|", "", "?", "", "*", "",
)

// Sanitize strips characters that are not allowed in file names. Applying
// it twice gives the same result as applying it once.
func Sanitize(name string) string {
	name = strings.TrimSpace(forbiddenChars.Replace(name))
	if strings.Trim(name, ".") == "" {
		return "untitled"
	}
	return name
}

// TrackFileName returns "{artist} - {title}.{ext}".
func TrackFileName(artist, title, ext string) string {
	return Sanitize(artist+" - "+title) + "." + ext
}

// FolderName returns the directory used for a collection.
func FolderName(artist, title string) string {
	return Sanitize(artist + " - " + title)
}

// ChapterFileName returns "{artist} - {NN} {chapter title}.{ext}".
func ChapterFileName(artist string, number int, title, ext string) string {
	return Sanitize(fmt.Sprintf("%s - %02d %s", artist, number, title)) + "." + ext
}

// uniqueTrackNames returns one file name per song. A name already taken by
// an earlier member gets the 1-based member position appended.
func uniqueTrackNames(songs []platform.Song, ext string) []string {
	names := make([]string, len(songs))
	taken := make(map[string]bool, len(songs))
	for i, song := range songs {
		name := TrackFileName(song.Artist, song.Title, ext)
		for n := i + 1; taken[strings.ToLower(name)]; n++ {
			name = TrackFileName(song.Artist, fmt.Sprintf("%s (%d)", song.Title, n), ext)
		}
		taken[strings.ToLower(name)] = true
		names[i] = name
	}
	return names
}

// partPath returns the hidden in-progress name for final. The extension is
// kept so taggers can detect the container.
func partPath(final string) string {
	dir, base := filepath.Split(final)
	ext := filepath.Ext(base)
	return filepath.Join(dir, "."+strings.TrimSuffix(base, ext)+".part"+ext)
}

// moveFile renames src to dst, copying when they are on different devices.
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		_ = os.Remove(dst)
		return err
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(dst)
		return err
	}
	return os.Remove(src)
}
