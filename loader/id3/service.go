package id3

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/bogem/id3v2"
	"github.com/go-flac/flacpicture"
	"github.com/go-flac/flacvorbis"
	"github.com/go-flac/go-flac"
	"github.com/hashicorp/go-retryablehttp"

	"github.com/prawnloader/prawnloader/loader"
	"github.com/prawnloader/prawnloader/loader/platform"
)

// Options configures the tag writer.
type Options struct {
	// CoverMaxSize bounds the longer cover edge in pixels; 0 keeps the original.
	CoverMaxSize int
	// HTTPClient fetches covers. A retrying client is used when nil.
	HTTPClient *retryablehttp.Client
	Logger     loader.Logger
}

// Service writes song metadata and cover art into mp3 and flac files.
type Service struct {
	client       *retryablehttp.Client
	coverMaxSize int
	logger       loader.Logger
}

// NewService creates a tag writer.
func NewService(opts Options) *Service {
	client := opts.HTTPClient
	if client == nil {
		client = retryablehttp.NewClient()
		client.RetryMax = 2
		client.Logger = nil
	}
	return &Service{client: client, coverMaxSize: opts.CoverMaxSize, logger: opts.Logger}
}

// Tag embeds song metadata into the file at path. Containers without tag
// support are left untouched.
func (s *Service) Tag(ctx context.Context, path string, song platform.Song) error {
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".mp3" && ext != ".flac" {
		if s.logger != nil {
			s.logger.Debug("skipping tags for unsupported container", "ext", ext)
		}
		return nil
	}

	var cover []byte
	if song.CoverURL != "" {
		data, err := s.fetchCover(ctx, song.CoverURL)
		if err != nil {
			if s.logger != nil {
				s.logger.Warn("failed to fetch cover", "url", song.CoverURL, "error", err)
			}
		} else {
			cover = data
		}
	}

	if ext == ".mp3" {
		return embedMp3(path, song, cover)
	}
	return embedFlac(path, song, cover)
}

func embedMp3(path string, song platform.Song, cover []byte) error {
	meta, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		return fmt.Errorf("open mp3 tags: %w", err)
	}
	defer meta.Close()

	meta.SetDefaultEncoding(id3v2.EncodingUTF8)
	if song.Title != "" {
		meta.SetTitle(song.Title)
	}
	if song.Artist != "" {
		meta.SetArtist(song.Artist)
	}
	if song.AlbumTitle != "" {
		meta.SetAlbum(song.AlbumTitle)
	}
	if song.ReleaseDate != "" {
		meta.AddTextFrame("TDRC", id3v2.EncodingUTF8, song.ReleaseDate)
	}
	if song.TrackNumber > 0 {
		meta.AddTextFrame("TRCK", id3v2.EncodingUTF8, strconv.Itoa(song.TrackNumber))
	}
	if len(cover) > 0 {
		meta.AddAttachedPicture(id3v2.PictureFrame{
			Encoding:    id3v2.EncodingISO,
			MimeType:    "image/jpeg",
			PictureType: id3v2.PTFrontCover,
			Description: "Front cover",
			Picture:     cover,
		})
	}
	return meta.Save()
}

func embedFlac(path string, song platform.Song, cover []byte) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	parsed, err := flac.ParseMetadata(file)
	file.Close()
	if err != nil {
		return fmt.Errorf("parse flac metadata: %w", err)
	}

	vorbis := flacvorbis.New()
	add := func(key, val string) {
		if val != "" {
			_ = vorbis.Add(key, val)
		}
	}
	add(flacvorbis.FIELD_TITLE, song.Title)
	add(flacvorbis.FIELD_ARTIST, song.Artist)
	add(flacvorbis.FIELD_ALBUM, song.AlbumTitle)
	add(flacvorbis.FIELD_DATE, song.ReleaseDate)
	if song.TrackNumber > 0 {
		add(flacvorbis.FIELD_TRACKNUMBER, strconv.Itoa(song.TrackNumber))
	}

	block := vorbis.Marshal()
	replaced := false
	for i, m := range parsed.Meta {
		if m.Type == flac.VorbisComment {
			parsed.Meta[i] = &block
			replaced = true
			break
		}
	}
	if !replaced {
		parsed.Meta = append(parsed.Meta, &block)
	}

	if len(cover) > 0 {
		picture, err := flacpicture.NewFromImageData(flacpicture.PictureTypeFrontCover, "Front cover", cover, "image/jpeg")
		if err != nil {
			return fmt.Errorf("build flac picture: %w", err)
		}
		pic := picture.Marshal()
		parsed.Meta = append(parsed.Meta, &pic)
	}

	return saveFlacWithMeta(path, parsed)
}

// saveFlacWithMeta rewrites the metadata blocks and copies the audio frames
// of the original file behind them.
func saveFlacWithMeta(path string, file *flac.File) error {
	original, err := os.Open(path)
	if err != nil {
		return err
	}
	defer original.Close()

	stat, err := original.Stat()
	if err != nil {
		return err
	}

	// skip the original metadata blocks
	if _, err := flac.ParseMetadata(original); err != nil {
		return err
	}

	tmpPath := path + ".tagging"
	out, err := os.OpenFile(tmpPath, os.O_RDWR|os.O_CREATE|os.O_TRUNC, stat.Mode())
	if err != nil {
		return err
	}
	fail := func(err error) error {
		_ = out.Close()
		_ = os.Remove(tmpPath)
		return err
	}

	if _, err := out.Write([]byte("fLaC")); err != nil {
		return fail(err)
	}
	for i, meta := range file.Meta {
		if _, err := out.Write(meta.Marshal(i == len(file.Meta)-1)); err != nil {
			return fail(err)
		}
	}
	if _, err := io.Copy(out, original); err != nil {
		return fail(err)
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	return os.Rename(tmpPath, path)
}
