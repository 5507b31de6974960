package capture

import (
	"image"
	"sync"
	"time"

	"gocv.io/x/gocv"
)

const (
	motionBlurSize      = 21
	motionDiffThreshold = 25

	// DefaultMotionThreshold is the percentage of changed pixels that counts
	// as motion.
	DefaultMotionThreshold = 1.0
	// DefaultIdleAfter is how long a still scene keeps the producer active.
	DefaultIdleAfter = 2 * time.Second
)

// MotionDetector reports whether consecutive frames differ by more than a
// percentage of pixels. Frames are grayscaled and blurred before differencing.
type MotionDetector struct {
	mu        sync.Mutex
	threshold float64
	prev      gocv.Mat
	primed    bool
}

// NewMotionDetector creates a detector. A non-positive threshold selects
// DefaultMotionThreshold.
func NewMotionDetector(threshold float64) *MotionDetector {
	if threshold <= 0 {
		threshold = DefaultMotionThreshold
	}
	return &MotionDetector{threshold: threshold, prev: gocv.NewMat()}
}

// Threshold returns the changed-pixel percentage that counts as motion.
func (m *MotionDetector) Threshold() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.threshold
}

// Detect compares frame with the previous one. The first frame after
// construction or Reset only primes the baseline and reports no motion.
func (m *MotionDetector) Detect(frame *gocv.Mat) (bool, float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if frame == nil || frame.Empty() {
		return false, 0
	}

	gray := gocv.NewMat()
	defer gray.Close()
	if frame.Channels() > 1 {
		gocv.CvtColor(*frame, &gray, gocv.ColorBGRToGray)
	} else {
		frame.CopyTo(&gray)
	}

	blurred := gocv.NewMat()
	gocv.GaussianBlur(gray, &blurred, image.Pt(motionBlurSize, motionBlurSize), 0, 0, gocv.BorderDefault)

	if !m.primed || m.prev.Rows() != blurred.Rows() || m.prev.Cols() != blurred.Cols() {
		m.swap(blurred)
		return false, 0
	}

	diff := gocv.NewMat()
	defer diff.Close()
	gocv.AbsDiff(blurred, m.prev, &diff)
	gocv.Threshold(diff, &diff, motionDiffThreshold, 255, gocv.ThresholdBinary)

	changed := float64(gocv.CountNonZero(diff)) / float64(diff.Rows()*diff.Cols()) * 100
	m.swap(blurred)
	return changed > m.threshold, changed
}

func (m *MotionDetector) swap(next gocv.Mat) {
	m.prev.Close()
	m.prev = next
	m.primed = true
}

// Reset drops the baseline frame.
func (m *MotionDetector) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prev.Close()
	m.prev = gocv.NewMat()
	m.primed = false
}

// Close releases the baseline frame. The detector may be used again and
// re-primes on the next frame.
func (m *MotionDetector) Close() {
	m.Reset()
}

// ActivityGate switches the producer between idle and active. Motion
// activates it immediately; it falls idle once no motion has been seen for
// IdleAfter.
type ActivityGate struct {
	idleAfter  time.Duration
	active     bool
	lastMotion time.Time
}

// NewActivityGate creates an idle gate. A non-positive idleAfter selects
// DefaultIdleAfter.
func NewActivityGate(idleAfter time.Duration) *ActivityGate {
	if idleAfter <= 0 {
		idleAfter = DefaultIdleAfter
	}
	return &ActivityGate{idleAfter: idleAfter}
}

// Update records whether the frame at now showed motion. It returns the new
// state and whether the state changed.
func (g *ActivityGate) Update(motion bool, now time.Time) (active, switched bool) {
	if motion {
		g.lastMotion = now
		if !g.active {
			g.active = true
			return true, true
		}
		return true, false
	}
	if g.active && now.Sub(g.lastMotion) > g.idleAfter {
		g.active = false
		return false, true
	}
	return g.active, false
}

// Active reports the current state.
func (g *ActivityGate) Active() bool { return g.active }
