package proc

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	log "github.com/go-pkgz/lgr"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"raisound/internal/app/raisound/podcast"
)

// DefaultExt is used when audio url has no known audio extension
const DefaultExt = ".mp3"

const maxNameLen = 120

var audioExts = map[string]bool{
	".mp3": true, ".m4a": true, ".aac": true, ".ogg": true, ".oga": true, ".opus": true, ".wav": true, ".flac": true,
}

var (
	unsafeChars = regexp.MustCompile(`[^\p{L}\p{N}_\s-]`)
	spaces      = regexp.MustCompile(`\s+`)
)

// Files for work with destination files of episodes
type Files struct {
	FallbackExt string
	// Numbered prefixes names with zero padded episode ordinal
	Numbered bool
}

// Target derives destination path for episode in folder
func (f *Files) Target(folder string, episode podcast.Episode) podcast.Target {
	name := SanitizeTitle(episode.Title)
	if f.Numbered {
		name = fmt.Sprintf("%03d - %s", episode.Ordinal, name)
	}
	return podcast.Target{Path: filepath.Join(folder, name+f.ext(episode.AudioURL)), Episode: episode}
}

// DistinctTarget derives destination path which always carries episode ordinal,
// used when Target of another episode in the same run has the same path
func (f *Files) DistinctTarget(folder string, episode podcast.Episode) podcast.Target {
	name := fmt.Sprintf("%s (%03d)", SanitizeTitle(episode.Title), episode.Ordinal)
	if f.Numbered {
		name = fmt.Sprintf("%03d - %s", episode.Ordinal, name)
	}
	return podcast.Target{Path: filepath.Join(folder, name+f.ext(episode.AudioURL)), Episode: episode}
}

// Exists checks if destination file is already there
func (f *Files) Exists(filePath string) (bool, error) {
	info, err := os.Stat(filePath)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if info.IsDir() {
		return false, fmt.Errorf("%s is a directory", filePath)
	}
	return true, nil
}

// Write data to file atomically, creating parent folder
func (f *Files) Write(filePath string, data []byte) error {
	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create folder %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".raisound-*.part")
	if err != nil {
		return fmt.Errorf("create temp file in %s: %w", dir, err)
	}
	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write %s: %w", filePath, err)
	}
	if err = tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("close %s: %w", filePath, err)
	}
	if err = os.Chmod(tmp.Name(), 0o644); err != nil {
		log.Printf("[WARN] can't chmod %s, %v", tmp.Name(), err)
	}
	if err = os.Rename(tmp.Name(), filePath); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("rename to %s: %w", filePath, err)
	}
	return nil
}

func (f *Files) ext(audioURL string) string {
	if u, err := url.Parse(audioURL); err == nil {
		ext := strings.ToLower(path.Ext(u.Path))
		if audioExts[ext] {
			return ext
		}
	}
	if f.FallbackExt != "" {
		if !strings.HasPrefix(f.FallbackExt, ".") {
			return "." + f.FallbackExt
		}
		return f.FallbackExt
	}
	return DefaultExt
}

var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// stripAccents drops diacritics of latin letters, other scripts are kept as is
func stripAccents(title string) string {
	var b strings.Builder
	for _, r := range norm.NFC.String(title) {
		if r < utf8.RuneSelf || !unicode.Is(unicode.Latin, r) {
			b.WriteRune(r)
			continue
		}
		plain, _, err := transform.String(stripMarks, string(r))
		if err != nil {
			plain = string(r)
		}
		b.WriteString(plain)
	}
	return b.String()
}

// SanitizeTitle makes lowercase file name from episode title.
// Accents of latin letters are dropped, anything but letters, digits, spaces, "_" and "-" becomes "_".
func SanitizeTitle(title string) string {
	s := cases.Lower(language.Und).String(stripAccents(title))
	s = unsafeChars.ReplaceAllString(s, "_")
	s = strings.TrimSpace(spaces.ReplaceAllString(s, " "))
	if r := []rune(s); len(r) > maxNameLen {
		s = strings.TrimSpace(string(r[:maxNameLen]))
	}
	if s == "" {
		return "episode"
	}
	return s
}
