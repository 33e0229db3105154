package download

import (
	"errors"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/spf13/afero"
)

// maxNameBytes caps a sanitized file or directory name.
const maxNameBytes = 200

const invalidNameChars = `<>:"/\|?*`

// SanitizeName makes s safe as a single path element: characters invalid
// on common filesystems and control characters are removed, whitespace
// runs collapse to one space and the result is capped at 200 bytes.
// fallback is returned when nothing usable remains.
func SanitizeName(s, fallback string) string {
	var b strings.Builder
	space := false
	for _, r := range s {
		switch {
		case strings.ContainsRune(invalidNameChars, r), r == utf8.RuneError:
			continue
		case unicode.IsSpace(r):
			space = true
			continue
		case unicode.IsControl(r):
			continue
		}
		if space && b.Len() > 0 {
			b.WriteByte(' ')
		}
		space = false
		b.WriteRune(r)
	}

	out := b.String()
	if len(out) > maxNameBytes {
		cut := maxNameBytes
		for cut > 0 && !utf8.RuneStart(out[cut]) {
			cut--
		}
		out = out[:cut]
	}
	out = strings.TrimRight(out, ". ")
	if out == "" {
		return fallback
	}
	return out
}

// OutputPath returns where a video is written:
// <root>/<channel>/<title> [<id>].<format>. The ID keeps videos that share
// a title apart. An unknown channel writes directly under root, and an
// empty title leaves only the ID.
func OutputPath(root, channel, title, videoID string, format Format) string {
	id := SanitizeName(videoID, "video")
	name := id
	if t := SanitizeName(title, ""); t != "" && t != id {
		name = t + " [" + id + "]"
	}
	name += "." + string(format)
	dir := root
	if c := SanitizeName(channel, ""); c != "" {
		dir = filepath.Join(root, c)
	}
	return filepath.Join(dir, name)
}

// File is one finished output file.
type File struct {
	// Path is relative to the output root, with forward slashes.
	Path     string    `json:"path"`
	Channel  string    `json:"channel,omitempty"`
	Size     int64     `json:"size"`
	Modified time.Time `json:"modified"`
}

// ListFiles returns every mp3 and mp4 file under root, newest first. A
// missing root yields no files.
func ListFiles(fsys afero.Fs, root string) ([]File, error) {
	var files []File
	err := afero.Walk(fsys, root, func(path string, info fs.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if ext != "."+string(FormatMP3) && ext != "."+string(FormatMP4) {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		f := File{Path: rel, Size: info.Size(), Modified: info.ModTime()}
		if i := strings.IndexByte(rel, '/'); i > 0 {
			f.Channel = rel[:i]
		}
		files = append(files, f)
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	sort.SliceStable(files, func(i, j int) bool {
		if !files[i].Modified.Equal(files[j].Modified) {
			return files[i].Modified.After(files[j].Modified)
		}
		return files[i].Path < files[j].Path
	})
	return files, nil
}
