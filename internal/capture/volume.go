// ============================================================================
// voxkey - Push-to-Talk Dictation
// ============================================================================
//
// Package:     capture
// Description: Best-effort system output volume ducking during capture
// License:     MIT
// ============================================================================

package capture

import (
	"fmt"
	"os/exec"
	"regexp"
	"runtime"
	"strconv"
	"strings"

	"github.com/voxkey/voxkey/pkg/core/logging"
)

// duckedVolumePercent is the output level while recording
const duckedVolumePercent = 20

var amixerVolumeRe = regexp.MustCompile(`\[(\d+)%\]`)

// duckOutputVolume lowers the system output volume and returns a restore
// function. Every failure degrades to a no-op: ducking is an echo
// reduction aid, never a reason to fail a capture. The returned function
// is safe to call exactly once on any exit path.
func duckOutputVolume(logger *logging.Logger) func() {
	current, err := readOutputVolume()
	if err != nil {
		logger.Debug("Output volume unavailable, skipping duck", "error", err)
		return func() {}
	}
	if current <= duckedVolumePercent {
		return func() {}
	}

	if err := setOutputVolume(duckedVolumePercent); err != nil {
		logger.Debug("Failed to duck output volume", "error", err)
		return func() {}
	}

	logger.Debug("Output volume ducked", "from", current, "to", duckedVolumePercent)
	return func() {
		if err := setOutputVolume(current); err != nil {
			logger.Warn("Failed to restore output volume", "volume", current, "error", err)
		}
	}
}

func readOutputVolume() (int, error) {
	switch runtime.GOOS {
	case "darwin":
		out, err := exec.Command("osascript", "-e", "output volume of (get volume settings)").Output()
		if err != nil {
			return 0, err
		}
		return strconv.Atoi(strings.TrimSpace(string(out)))
	case "linux":
		out, err := exec.Command("amixer", "get", "Master").Output()
		if err != nil {
			return 0, err
		}
		m := amixerVolumeRe.FindSubmatch(out)
		if m == nil {
			return 0, fmt.Errorf("no volume in amixer output")
		}
		return strconv.Atoi(string(m[1]))
	default:
		return 0, fmt.Errorf("volume control unsupported on %s", runtime.GOOS)
	}
}

func setOutputVolume(percent int) error {
	switch runtime.GOOS {
	case "darwin":
		return exec.Command("osascript", "-e",
			fmt.Sprintf("set volume output volume %d", percent)).Run()
	case "linux":
		return exec.Command("amixer", "-q", "sset", "Master",
			fmt.Sprintf("%d%%", percent)).Run()
	default:
		return fmt.Errorf("volume control unsupported on %s", runtime.GOOS)
	}
}
