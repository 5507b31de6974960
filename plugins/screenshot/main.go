// Package main provides a hook plugin that grabs the screen when a CAPTURE
// command is committed to the hub.
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"time"
)

// Request is the hook request written to stdin by the hub.
type Request struct {
	Action    string    `json:"action"`
	Source    string    `json:"source"`
	Text      string    `json:"text,omitempty"`
	Seq       uint64    `json:"seq"`
	Timestamp time.Time `json:"timestamp"`
}

// Response is written to stdout.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

var errUnsupported = errors.New("screen capture is not supported on this platform")

func main() {
	var req Request
	if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
		writeErrorResponse(fmt.Sprintf("failed to decode request: %v", err))
		return
	}
	if req.Action != "CAPTURE" {
		writeErrorResponse(fmt.Sprintf("unknown action: %s", req.Action))
		return
	}

	dir := outputDir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		writeErrorResponse(fmt.Sprintf("create output dir: %v", err))
		return
	}

	at := req.Timestamp
	if at.IsZero() {
		at = time.Now()
	}
	path := filepath.Join(dir, screenshotName(at, req.Seq))

	name, args, err := captureCommand(runtime.GOOS, path)
	if err != nil {
		writeErrorResponse(err.Error())
		return
	}
	if out, err := exec.Command(name, args...).CombinedOutput(); err != nil {
		writeErrorResponse(fmt.Sprintf("%s failed: %v: %s", name, err, out))
		return
	}

	data, _ := json.Marshal(map[string]string{"path": path})
	json.NewEncoder(os.Stdout).Encode(Response{Success: true, Data: data})
}

// outputDir is $NOVA_SCREENSHOT_DIR, or ~/Pictures/Nova.
func outputDir() string {
	if dir := os.Getenv("NOVA_SCREENSHOT_DIR"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, "Pictures", "Nova")
}

// screenshotName includes the command seq so two captures in the same
// millisecond land in different files.
func screenshotName(at time.Time, seq uint64) string {
	return fmt.Sprintf("nova_screen_%s_%d.png", at.Format("20060102_150405.000"), seq)
}

func captureCommand(goos, path string) (string, []string, error) {
	switch goos {
	case "darwin":
		return "screencapture", []string{"-x", path}, nil
	case "linux":
		return "import", []string{"-window", "root", path}, nil
	}
	return "", nil, errUnsupported
}

func writeErrorResponse(errMsg string) {
	json.NewEncoder(os.Stdout).Encode(Response{Success: false, Error: errMsg})
}
