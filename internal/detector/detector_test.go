package detector

import (
	"errors"
	"math"
	"testing"

	"gocv.io/x/gocv"
)

const epsilon = 1e-9

func TestDistance(t *testing.T) {
	tests := []struct {
		name string
		a, b Point3D
		want float64
	}{
		{"same point", Point3D{X: 0.3, Y: 0.3}, Point3D{X: 0.3, Y: 0.3}, 0},
		{"3-4-5", Point3D{}, Point3D{X: 0.3, Y: 0.4}, 0.5},
		{"depth counts", Point3D{}, Point3D{Z: 0.2}, 0.2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Distance(tt.a, tt.b); math.Abs(got-tt.want) > epsilon {
				t.Errorf("Distance() = %f, want %f", got, tt.want)
			}
			if got := Distance(tt.b, tt.a); math.Abs(got-tt.want) > epsilon {
				t.Errorf("Distance() not symmetric: %f", got)
			}
		})
	}
}

func TestHandLandmarks_Translate(t *testing.T) {
	hand := OpenPalmLandmarks()
	moved := hand.Translate(0.1, -0.05, 0)

	for i := 0; i < NumLandmarks; i++ {
		if math.Abs(moved.Points[i].X-hand.Points[i].X-0.1) > epsilon {
			t.Fatalf("point %d X not shifted: %f -> %f", i, hand.Points[i].X, moved.Points[i].X)
		}
		if math.Abs(moved.Points[i].Y-hand.Points[i].Y+0.05) > epsilon {
			t.Fatalf("point %d Y not shifted: %f -> %f", i, hand.Points[i].Y, moved.Points[i].Y)
		}
	}

	if hand.Points[Wrist].X != 0.5 {
		t.Error("Translate must not modify the receiver")
	}
	if moved.Handedness != hand.Handedness || moved.Score != hand.Score {
		t.Error("Translate should keep handedness and score")
	}
	if math.Abs(moved.PinchDistance()-hand.PinchDistance()) > epsilon {
		t.Error("translation should not change pinch distance")
	}
}

func TestFixtures_FingerGeometry(t *testing.T) {
	const open = 0.17 // tip-to-wrist distance separating raised from curled

	tests := []struct {
		name  string
		hand  HandLandmarks
		up    [4]bool
		pinch func(float64) bool
	}{
		{"open palm", OpenPalmLandmarks(), [4]bool{true, true, true, true}, func(d float64) bool { return d > 0.04 }},
		{"fist", FistLandmarks(), [4]bool{}, func(d float64) bool { return d > 0.04 }},
		{"pinch", PinchLandmarks(), [4]bool{}, func(d float64) bool { return d < 0.04 }},
		{"point index", PointIndexLandmarks(), [4]bool{true, false, false, false}, func(d float64) bool { return d > 0.10 }},
		{"pinky up", PinkyUpLandmarks(), [4]bool{false, false, false, true}, func(d float64) bool { return d > 0.04 }},
		{"two finger", TwoFingerLandmarks(), [4]bool{true, true, false, false}, func(d float64) bool { return d > 0.04 }},
		{"thumbs up", ThumbsUpLandmarks(), [4]bool{}, func(d float64) bool { return d > 0.04 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrist := tt.hand.Points[Wrist]
			for i, tip := range FingerTips {
				raised := Distance(tt.hand.Points[tip], wrist) > open
				if raised != tt.up[i] {
					t.Errorf("finger %d raised = %v, want %v", i, raised, tt.up[i])
				}
			}
			if d := tt.hand.PinchDistance(); !tt.pinch(d) {
				t.Errorf("unexpected pinch distance %f", d)
			}
		})
	}
}

func TestMockDetector(t *testing.T) {
	mock := NewMockDetector()
	frame := gocv.NewMat()
	defer frame.Close()

	hands, err := mock.Detect(&frame)
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if len(hands) != 0 {
		t.Errorf("expected no hands, got %d", len(hands))
	}

	mock.SetHands(OpenPalmLandmarks(), FistLandmarks())
	hands, _ = mock.Detect(&frame)
	if len(hands) != 2 {
		t.Fatalf("expected 2 hands, got %d", len(hands))
	}

	wantErr := errors.New("camera unplugged")
	mock.SetError(wantErr)
	if _, err := mock.Detect(&frame); !errors.Is(err, wantErr) {
		t.Errorf("Detect() error = %v, want %v", err, wantErr)
	}

	if mock.Calls() != 3 {
		t.Errorf("Calls() = %d, want 3", mock.Calls())
	}
}

func TestConfig_Filter(t *testing.T) {
	low := OpenPalmLandmarks()
	low.Score = 0.2
	left := FistLandmarks()
	left.Handedness = "Left"

	cfg := Config{MaxHands: 1, MinConfidence: 0.5}
	got := cfg.filter([]HandLandmarks{low, left, OpenPalmLandmarks()})

	if len(got) != 1 {
		t.Fatalf("expected 1 hand, got %d", len(got))
	}
	if got[0].Handedness != "Left" {
		t.Errorf("expected the first confident hand, got %s", got[0].Handedness)
	}
}

func TestDecodeResponse(t *testing.T) {
	t.Run("hands", func(t *testing.T) {
		pts := `[` + repeatPoint(NumLandmarks) + `]`
		line := []byte(`{"hands":[{"points":` + pts + `,"handedness":"Left","score":0.9}]}` + "\n")

		hands, err := decodeResponse(line)
		if err != nil {
			t.Fatalf("decodeResponse() error = %v", err)
		}
		if len(hands) != 1 || hands[0].Handedness != "Left" {
			t.Fatalf("unexpected hands: %+v", hands)
		}
		if hands[0].Points[PinkyTip].X != 0.25 {
			t.Errorf("PinkyTip.X = %f, want 0.25", hands[0].Points[PinkyTip].X)
		}
	})

	t.Run("short hand dropped", func(t *testing.T) {
		line := []byte(`{"hands":[{"points":[` + repeatPoint(5) + `]}]}`)
		hands, err := decodeResponse(line)
		if err != nil {
			t.Fatalf("decodeResponse() error = %v", err)
		}
		if len(hands) != 0 {
			t.Errorf("expected incomplete hand to be dropped, got %d", len(hands))
		}
	})

	t.Run("service error", func(t *testing.T) {
		if _, err := decodeResponse([]byte(`{"error":"model missing"}`)); err == nil {
			t.Error("expected error")
		}
	})

	t.Run("garbage", func(t *testing.T) {
		if _, err := decodeResponse([]byte("not json")); err == nil {
			t.Error("expected parse error")
		}
	})
}

func repeatPoint(n int) string {
	s := ""
	for i := 0; i < n; i++ {
		if i > 0 {
			s += ","
		}
		s += `{"x":0.25,"y":0.5,"z":0}`
	}
	return s
}
