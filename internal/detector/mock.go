package detector

import (
	"sync"

	"gocv.io/x/gocv"
)

// MockDetector is a test implementation of the Detector interface.
// It allows tests to control the detection results.
type MockDetector struct {
	mu    sync.Mutex
	hands []HandLandmarks
	err   error
	calls int
}

// NewMockDetector creates a new MockDetector instance.
func NewMockDetector() *MockDetector {
	return &MockDetector{}
}

// SetHands sets the hands that will be returned by Detect.
func (m *MockDetector) SetHands(hands ...HandLandmarks) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hands = hands
}

// SetError sets the error that will be returned by Detect.
func (m *MockDetector) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls reports how many times Detect has been invoked.
func (m *MockDetector) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Detect returns the pre-configured hands or error.
func (m *MockDetector) Detect(frame *gocv.Mat) ([]HandLandmarks, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	out := make([]HandLandmarks, len(m.hands))
	copy(out, m.hands)
	return out, nil
}

// Close is a no-op for the mock detector.
func (m *MockDetector) Close() error {
	return nil
}

// Fixture geometry. The wrist sits at (0.5, 0.8); a raised finger ends well
// above the palm, a curled one ends just above the knuckle line.
const (
	fixtureMCPY    = 0.68
	fixtureUpTipY  = 0.35
	fixtureDownTip = 0.72
)

var fixtureMCPX = [4]float64{0.56, 0.52, 0.48, 0.44}

// PoseLandmarks builds a right hand with the given non-thumb fingers raised
// (ordered index, middle, ring, pinky) and the thumb tip at thumbTip.
func PoseLandmarks(up [4]bool, thumbTip Point3D) HandLandmarks {
	h := HandLandmarks{
		Handedness: "Right",
		Score:      0.95,
	}

	wrist := Point3D{X: 0.5, Y: 0.8}
	h.Points[Wrist] = wrist

	thumbBase := Point3D{X: 0.55, Y: 0.75}
	h.Points[ThumbCMC] = thumbBase
	h.Points[ThumbMCP] = lerp(thumbBase, thumbTip, 1.0/3)
	h.Points[ThumbIP] = lerp(thumbBase, thumbTip, 2.0/3)
	h.Points[ThumbTip] = thumbTip

	for i, tipIdx := range FingerTips {
		mcp := Point3D{X: fixtureMCPX[i], Y: fixtureMCPY}
		tip := Point3D{X: fixtureMCPX[i], Y: fixtureDownTip, Z: -0.02}
		if up[i] {
			tip = Point3D{X: fixtureMCPX[i], Y: fixtureUpTipY}
		}
		// MCP, PIP, DIP, TIP are consecutive indices for each finger.
		h.Points[tipIdx-3] = mcp
		h.Points[tipIdx-2] = lerp(mcp, tip, 1.0/3)
		h.Points[tipIdx-1] = lerp(mcp, tip, 2.0/3)
		h.Points[tipIdx] = tip
	}

	return h
}

func lerp(a, b Point3D, t float64) Point3D {
	return Point3D{
		X: a.X + (b.X-a.X)*t,
		Y: a.Y + (b.Y-a.Y)*t,
		Z: a.Z + (b.Z-a.Z)*t,
	}
}

// OpenPalmLandmarks returns a hand with all four fingers raised and the thumb out.
func OpenPalmLandmarks() HandLandmarks {
	return PoseLandmarks([4]bool{true, true, true, true}, Point3D{X: 0.70, Y: 0.60})
}

// FistLandmarks returns a closed hand with the thumb resting across the fingers.
func FistLandmarks() HandLandmarks {
	return PoseLandmarks([4]bool{}, Point3D{X: 0.60, Y: 0.66})
}

// PinchLandmarks returns a closed hand with thumb and index tips nearly touching.
func PinchLandmarks() HandLandmarks {
	return PoseLandmarks([4]bool{}, Point3D{X: 0.58, Y: 0.72})
}

// PointIndexLandmarks returns a hand with only the index raised, thumb held wide.
func PointIndexLandmarks() HandLandmarks {
	return PoseLandmarks([4]bool{true, false, false, false}, Point3D{X: 0.70, Y: 0.65})
}

// PinkyUpLandmarks returns a hand with only the pinky raised.
func PinkyUpLandmarks() HandLandmarks {
	return PoseLandmarks([4]bool{false, false, false, true}, Point3D{X: 0.62, Y: 0.62})
}

// TwoFingerLandmarks returns a hand with index and middle raised.
func TwoFingerLandmarks() HandLandmarks {
	return PoseLandmarks([4]bool{true, true, false, false}, Point3D{X: 0.62, Y: 0.62})
}

// ThumbsUpLandmarks returns a closed hand with the thumb extended upward.
func ThumbsUpLandmarks() HandLandmarks {
	return PoseLandmarks([4]bool{}, Point3D{X: 0.58, Y: 0.35})
}
