package capture

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/nova/internal/logging"
)

const (
	capturePrefix = "nova_"
	captureExt    = ".jpg"
	// maxNameAttempts bounds the numeric suffixes tried for one timestamp.
	maxNameAttempts = 1000

	DefaultJPEGQuality = 90
)

// Saver writes captured frames as JPEG files into one directory. Files are
// named nova_YYYYMMDD_HHMMSS.mmm.jpg; a later save in the same millisecond
// gets a _1, _2, ... suffix instead of overwriting.
type Saver struct {
	dir     string
	quality int
}

// NewSaver creates the directory if needed.
func NewSaver(dir string) (*Saver, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create capture dir: %w", err)
	}
	return &Saver{dir: dir, quality: DefaultJPEGQuality}, nil
}

// Dir returns the capture directory.
func (s *Saver) Dir() string { return s.dir }

// Save encodes frame as JPEG and stores it under a name derived from at.
func (s *Saver) Save(frame *gocv.Mat, at time.Time) (string, error) {
	if frame == nil || frame.Empty() {
		return "", ErrNoFrame
	}
	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, *frame, []int{int(gocv.IMWriteJpegQuality), s.quality})
	if err != nil {
		return "", fmt.Errorf("encode frame: %w", err)
	}
	defer buf.Close()
	return s.SaveBytes(buf.GetBytes(), at)
}

// SaveBytes stores already-encoded image data. The data is written to a
// temporary file, synced, and renamed onto the reserved name.
func (s *Saver) SaveBytes(data []byte, at time.Time) (string, error) {
	path, err := s.reserve(at)
	if err != nil {
		return "", err
	}
	if err := writeOver(path, data); err != nil {
		os.Remove(path)
		return "", err
	}
	logging.Infow("capture saved", "path", path, "bytes", len(data))
	return path, nil
}

// CaptureName returns the file name for a capture taken at at, before any
// collision suffix.
func CaptureName(at time.Time) string {
	return capturePrefix + at.Format("20060102_150405.000") + captureExt
}

// reserve creates an empty file under the first free name for at.
func (s *Saver) reserve(at time.Time) (string, error) {
	base := capturePrefix + at.Format("20060102_150405.000")
	for i := 0; i < maxNameAttempts; i++ {
		name := base + captureExt
		if i > 0 {
			name = fmt.Sprintf("%s_%d%s", base, i, captureExt)
		}
		path := filepath.Join(s.dir, name)

		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
		if errors.Is(err, os.ErrExist) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("reserve capture name: %w", err)
		}
		f.Close()
		return path, nil
	}
	return "", fmt.Errorf("no free capture name for %s", base)
}

func writeOver(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	cleanup := true
	defer func() {
		if cleanup {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Chmod(0644); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		if runtime.GOOS != "windows" {
			return fmt.Errorf("rename temp file: %w", err)
		}
		// Windows refuses to rename onto the reserved placeholder.
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove placeholder: %w", err)
		}
		if err := os.Rename(tmpPath, path); err != nil {
			return fmt.Errorf("rename temp file: %w", err)
		}
	}
	cleanup = false

	if d, err := os.Open(dir); err == nil {
		d.Sync()
		d.Close()
	}
	return nil
}
