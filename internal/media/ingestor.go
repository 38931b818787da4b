package media

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// ErrInvalidInput marks submissions that can be rejected before any engine
// work: missing paths, unreadable files, empty uploads.
var ErrInvalidInput = errors.New("invalid media input")

// Input describes one job's submitted media: either a server-visible path
// or an uploaded byte stream, never both.
type Input struct {
	Path string

	Upload     io.Reader
	UploadName string
}

// Source is a resolved, byte-addressable media reference. Owned temp files
// are deleted by Release; caller-owned paths are left untouched.
type Source struct {
	Path     string
	Name     string
	FileType string

	owned       bool
	releaseOnce sync.Once
}

// Release deletes the backing temp file if this source owns one. It runs at
// most once and is safe on every job exit path.
func (s *Source) Release() {
	s.releaseOnce.Do(func() {
		if s.owned {
			_ = os.Remove(s.Path)
		}
	})
}

// Owned reports whether the source's file is managed by the ingestor.
func (s *Source) Owned() bool { return s.owned }

// Ingestor resolves job inputs into media sources. TempDir is shared
// process-wide; file names embed a uuid so concurrent jobs never collide.
type Ingestor struct {
	tempDir string
}

// NewIngestor creates an ingestor writing uploads under tempDir
// (os.TempDir() if empty).
func NewIngestor(tempDir string) *Ingestor {
	if tempDir == "" {
		tempDir = os.TempDir()
	}
	return &Ingestor{tempDir: tempDir}
}

// Resolve validates a path input or persists an upload input.
func (i *Ingestor) Resolve(in Input) (*Source, error) {
	if in.Upload != nil {
		return i.saveUpload(in)
	}
	return i.resolvePath(in.Path)
}

func (i *Ingestor) resolvePath(path string) (*Source, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: empty media path", ErrInvalidInput)
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: media file not found: %s", ErrInvalidInput, path)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: media path is a directory: %s", ErrInvalidInput, path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: media file not readable: %s", ErrInvalidInput, path)
	}
	f.Close()

	return &Source{
		Path:     path,
		Name:     filepath.Base(path),
		FileType: FileType(path),
	}, nil
}

func (i *Ingestor) saveUpload(in Input) (*Source, error) {
	name := in.UploadName
	if name == "" {
		return nil, fmt.Errorf("%w: upload missing file name", ErrInvalidInput)
	}

	tmpName := fmt.Sprintf("asr-upload-%s%s", uuid.New().String(), filepath.Ext(name))
	tmpPath := filepath.Join(i.tempDir, tmpName)

	f, err := os.Create(tmpPath)
	if err != nil {
		return nil, fmt.Errorf("create upload file: %w", err)
	}

	written, err := io.Copy(f, in.Upload)
	closeErr := f.Close()
	if err != nil {
		_ = os.Remove(tmpPath)
		return nil, fmt.Errorf("%w: truncated upload: %v", ErrInvalidInput, err)
	}
	if closeErr != nil {
		_ = os.Remove(tmpPath)
		return nil, fmt.Errorf("persist upload: %w", closeErr)
	}
	if written == 0 {
		_ = os.Remove(tmpPath)
		return nil, fmt.Errorf("%w: empty upload", ErrInvalidInput)
	}

	return &Source{
		Path:     tmpPath,
		Name:     filepath.Base(name),
		FileType: FileType(name),
		owned:    true,
	}, nil
}

var (
	audioExtensions = map[string]bool{
		".mp3": true, ".wav": true, ".m4a": true, ".aac": true,
		".ogg": true, ".flac": true, ".wma": true,
	}
	videoExtensions = map[string]bool{
		".mp4": true, ".avi": true, ".mov": true, ".mkv": true, ".wmv": true,
		".flv": true, ".webm": true, ".m4v": true, ".3gp": true,
	}
)

// FileType classifies a media file as audio, video, or unknown by extension.
func FileType(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	switch {
	case audioExtensions[ext]:
		return "audio"
	case videoExtensions[ext]:
		return "video"
	default:
		return "unknown"
	}
}
