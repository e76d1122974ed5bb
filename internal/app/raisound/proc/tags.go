package proc

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/bogem/id3v2/v2"
	"github.com/tcolgate/mp3"
	"raisound/internal/app/raisound/podcast"
)

// Tagger writes id3 frames to downloaded mp3 files
type Tagger struct {
	Album  string
	Artist string
}

// Tag mp3 file with episode title, album and track number. Other files are left untouched.
func (t *Tagger) Tag(filePath string, episode podcast.Episode) error {
	if !strings.EqualFold(filepath.Ext(filePath), ".mp3") {
		return nil
	}

	fh, err := os.Open(filePath) // nolint
	if err != nil {
		return err
	}
	tag, err := id3v2.ParseReader(fh, id3v2.Options{Parse: true})
	if err != nil {
		_ = fh.Close()
		return fmt.Errorf("read tag %s: %w", filePath, err)
	}
	defer tag.Close() // nolint

	tag.SetDefaultEncoding(id3v2.EncodingUTF8)
	tag.SetTitle(episode.Title)
	if t.Album != "" {
		tag.SetAlbum(t.Album)
	}
	if t.Artist != "" {
		tag.SetArtist(t.Artist)
	}
	if episode.Ordinal > 0 {
		tag.AddTextFrame(tag.CommonID("Track number/Position in set"), id3v2.EncodingUTF8, strconv.Itoa(episode.Ordinal))
	}

	if err = tag.Save(); err != nil {
		return fmt.Errorf("save tag %s: %w", filePath, err)
	}
	return nil
}

// Duration sums mp3 frame durations of the file
func (t *Tagger) Duration(filePath string) (time.Duration, error) {
	if !strings.EqualFold(filepath.Ext(filePath), ".mp3") {
		return 0, nil
	}

	fh, err := os.Open(filePath) // nolint
	if err != nil {
		return 0, err
	}
	defer fh.Close() // nolint

	var (
		total   time.Duration
		frame   mp3.Frame
		skipped int
	)
	d := mp3.NewDecoder(fh)
	for {
		if err = d.Decode(&frame, &skipped); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				break
			}
			return total, fmt.Errorf("decode %s: %w", filePath, err)
		}
		total += frame.Duration()
	}
	return total, nil
}
