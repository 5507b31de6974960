// Package capture reads camera frames with GoCV and persists captured
// frames to disk.
package capture

import (
	"errors"
	"fmt"
	"sync"

	"gocv.io/x/gocv"

	"github.com/ayusman/nova/internal/logging"
)

const (
	DefaultFPS    = 15
	IdleFPS       = 5
	DefaultWidth  = 640
	DefaultHeight = 480

	// DefaultMaxReadFailures is the number of consecutive empty reads after
	// which the device is released and reopened.
	DefaultMaxReadFailures = 30
)

var (
	// ErrCameraNotOpen is returned when trying to read from a camera that is not open.
	ErrCameraNotOpen = errors.New("camera is not open")
	// ErrNoFrame is returned when the device produced no usable frame.
	ErrNoFrame = errors.New("no frame available")
)

// Camera is a frame source. ReadFrame returns a Mat the caller must Close.
type Camera interface {
	Open() error
	Close() error
	ReadFrame() (*gocv.Mat, error)
	SetFPS(fps int)
	FPS() int
	IsOpen() bool
}

// CameraOption configures a device camera.
type CameraOption func(*deviceCamera)

// WithFrameSize requests a capture resolution. Devices may ignore it.
func WithFrameSize(width, height int) CameraOption {
	return func(c *deviceCamera) {
		if width > 0 && height > 0 {
			c.width, c.height = width, height
		}
	}
}

// WithMaxReadFailures sets how many consecutive empty reads trigger a
// reopen. Zero or less disables reopening.
func WithMaxReadFailures(n int) CameraOption {
	return func(c *deviceCamera) { c.maxFailures = n }
}

// deviceCamera reads from a local video device through gocv.VideoCapture.
type deviceCamera struct {
	deviceID    int
	width       int
	height      int
	maxFailures int

	mu       sync.Mutex
	capture  *gocv.VideoCapture
	running  bool
	fps      int
	failures int
}

// NewCamera creates a closed camera for the given device at DefaultFPS.
func NewCamera(deviceID int, opts ...CameraOption) Camera {
	c := &deviceCamera{
		deviceID:    deviceID,
		width:       DefaultWidth,
		height:      DefaultHeight,
		maxFailures: DefaultMaxReadFailures,
		fps:         DefaultFPS,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *deviceCamera) Open() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return nil
	}
	if err := c.openLocked(); err != nil {
		return err
	}
	c.running = true
	return nil
}

func (c *deviceCamera) openLocked() error {
	vc, err := gocv.OpenVideoCapture(c.deviceID)
	if err != nil {
		return fmt.Errorf("open camera %d: %w", c.deviceID, err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return fmt.Errorf("camera %d could not be opened", c.deviceID)
	}

	vc.Set(gocv.VideoCaptureFrameWidth, float64(c.width))
	vc.Set(gocv.VideoCaptureFrameHeight, float64(c.height))
	vc.Set(gocv.VideoCaptureFPS, float64(c.fps))

	c.capture = vc
	c.failures = 0
	return nil
}

func (c *deviceCamera) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.running = false
	if c.capture == nil {
		return nil
	}
	err := c.capture.Close()
	c.capture = nil
	return err
}

// ReadFrame grabs one frame. After maxFailures empty reads in a row the
// device is reopened; the read that triggers it still returns ErrNoFrame.
func (c *deviceCamera) ReadFrame() (*gocv.Mat, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running {
		return nil, ErrCameraNotOpen
	}
	if c.capture == nil {
		// A previous reopen failed; try again.
		if err := c.openLocked(); err != nil {
			return nil, err
		}
	}

	mat := gocv.NewMat()
	if ok := c.capture.Read(&mat); !ok || mat.Empty() {
		mat.Close()
		c.failures++
		if c.maxFailures > 0 && c.failures >= c.maxFailures {
			c.reopenLocked()
		}
		return nil, ErrNoFrame
	}

	c.failures = 0
	return &mat, nil
}

func (c *deviceCamera) reopenLocked() {
	logging.Warnw("camera stopped delivering frames, reopening", "device", c.deviceID, "failures", c.failures)
	c.capture.Close()
	c.capture = nil
	if err := c.openLocked(); err != nil {
		logging.Warnw("camera reopen failed", "device", c.deviceID, "err", err)
	}
}

// SetFPS changes the requested rate. Non-positive values are ignored.
func (c *deviceCamera) SetFPS(fps int) {
	if fps <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.fps = fps
	if c.capture != nil {
		c.capture.Set(gocv.VideoCaptureFPS, float64(fps))
	}
}

func (c *deviceCamera) FPS() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fps
}

func (c *deviceCamera) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}
