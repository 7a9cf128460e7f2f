package uploads

import (
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"
)

// MaxUploadBytes caps attachment uploads at 16 MiB.
const MaxUploadBytes = 16 << 20

var allowedExtensions = map[string]struct{}{
	"png": {}, "jpg": {}, "jpeg": {}, "gif": {},
	"mp4": {}, "mov": {}, "avi": {},
	"wav": {}, "mp3": {}, "ogg": {}, "webm": {},
}

// mimeExtensions maps content types to extensions for files uploaded
// without one in their name.
var mimeExtensions = map[string]string{
	"image/png":       "png",
	"image/jpeg":      "jpg",
	"image/gif":       "gif",
	"video/mp4":       "mp4",
	"video/quicktime": "mov",
	"video/x-msvideo": "avi",
	"audio/mpeg":      "mp3",
	"audio/wav":       "wav",
	"audio/ogg":       "ogg",
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// SanitizeFilename strips path components and unsafe characters from a
// client-supplied filename. The result is safe to join under the upload
// directory.
func SanitizeFilename(name string) string {
	// Client may be on any OS; strip both separator styles.
	name = path.Base(strings.ReplaceAll(name, `\`, `/`))
	name = unsafeChars.ReplaceAllString(name, "_")
	name = strings.Trim(name, "._-")
	if name == "" {
		return "file"
	}
	return name
}

// Extension derives a lowercase extension from the sanitized filename,
// falling back to the content type when the name carries none.
func Extension(filename, contentType string) string {
	if idx := strings.LastIndex(filename, "."); idx >= 0 && idx < len(filename)-1 {
		return strings.ToLower(filename[idx+1:])
	}
	return mimeExtensions[contentType]
}

// ExtensionAllowed reports whether the extension is in the permitted media
// set.
func ExtensionAllowed(ext string) bool {
	_, ok := allowedExtensions[ext]
	return ok
}

// AllowedList renders the permitted extensions for error messages.
func AllowedList() string {
	exts := make([]string, 0, len(allowedExtensions))
	for ext := range allowedExtensions {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return strings.Join(exts, ", ")
}

// Store saves validated uploads under a single directory.
type Store struct {
	dir string
}

// NewStore builds a Store rooted at dir.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Save writes the upload to disk under a collision-resistant name
// combining the sender id, a timestamp and the sanitized filename. It
// returns the public path clients use to fetch the file.
func (s *Store) Save(header *multipart.FileHeader, userID int) (string, error) {
	name := fmt.Sprintf("%d_%d_%s", userID, time.Now().Unix(), SanitizeFilename(header.Filename))

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}

	src, err := header.Open()
	if err != nil {
		return "", fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()

	dst, err := os.Create(filepath.Join(s.dir, name))
	if err != nil {
		return "", fmt.Errorf("create upload file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return "", fmt.Errorf("write upload: %w", err)
	}

	return "/static/uploads/" + name, nil
}
