// Package deps verifies the external binaries cliptube shells out to.
package deps

import (
	"fmt"
	"os/exec"
	"strings"

	"cliptube/internal/config"
)

// Requirement defines an external dependency cliptube relies on.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports the availability of a dependency.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Detail      string
}

// Default returns the binaries a working installation needs. yt-dlp does the
// downloading; ffmpeg merges streams and extracts audio.
func Default(cfg *config.Config) []Requirement {
	ytdlp := "yt-dlp"
	ffmpeg := "ffmpeg"
	if cfg != nil {
		ytdlp = cfg.YtdlpBinary()
		ffmpeg = cfg.FFmpegBinary()
	}
	return []Requirement{
		{Name: "yt-dlp", Command: ytdlp, Description: "Downloads video and audio from YouTube"},
		{Name: "FFmpeg", Command: ffmpeg, Description: "Merges streams and extracts audio"},
	}
}

// CheckBinaries evaluates the provided requirements and reports availability.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		cmd := strings.TrimSpace(req.Command)
		status := Status{
			Name:        req.Name,
			Command:     cmd,
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		if cmd == "" {
			status.Available = false
			status.Detail = "command not configured"
			results = append(results, status)
			continue
		}
		if _, err := exec.LookPath(cmd); err != nil {
			status.Available = false
			status.Detail = fmt.Sprintf("binary %q not found", cmd)
			results = append(results, status)
			continue
		}
		status.Available = true
		results = append(results, status)
	}
	return results
}
