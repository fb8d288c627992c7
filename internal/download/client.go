// Package download wraps yt-dlp for probing and fetching YouTube media.
package download

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"cliptube/internal/config"
	"cliptube/internal/queue"
	"cliptube/internal/services"
)

// Metadata holds the subset of yt-dlp's video JSON cliptube cares about.
type Metadata struct {
	ID       string  `json:"id"`
	Title    string  `json:"title"`
	Channel  string  `json:"channel"`
	Duration float64 `json:"duration"`
}

// Request describes a single download invocation.
type Request struct {
	URL             string
	Kind            queue.Kind
	Quality         string
	DestinationPath string
	// Progress receives parsed percent/status updates as yt-dlp emits them.
	// It is invoked from a single goroutine, never concurrently.
	Progress func(percent float64, message string)
}

// Result reports where the finished file landed.
type Result struct {
	DestinationPath string
	Command         []string
}

// Client is the yt-dlp surface the download stage depends on. The workflow
// tests substitute a fake.
type Client interface {
	Probe(ctx context.Context, url string) (*Metadata, error)
	Download(ctx context.Context, req Request) (*Result, error)
	Version(ctx context.Context) (string, error)
}

type ytdlpClient struct {
	binary string
	ffmpeg string
}

// NewClient builds a yt-dlp client from config. Binaries default to PATH
// lookups of yt-dlp and ffmpeg.
func NewClient(cfg *config.Config) Client {
	client := &ytdlpClient{binary: "yt-dlp", ffmpeg: "ffmpeg"}
	if cfg != nil {
		client.binary = cfg.YtdlpBinary()
		client.ffmpeg = cfg.FFmpegBinary()
	}
	return client
}

// Probe fetches video metadata without downloading anything.
func (c *ytdlpClient) Probe(ctx context.Context, url string) (*Metadata, error) {
	if strings.TrimSpace(url) == "" {
		return nil, services.Wrap(services.ErrValidation, "download", "probe", "url is required", nil)
	}

	args := []string{"--dump-json", "--no-playlist", "--skip-download", url}
	cmd := exec.CommandContext(ctx, c.binary, args...)
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, services.Wrap(services.ErrTimeout, "download", "probe", "probe interrupted", ctx.Err())
		}
		return nil, classify("probe", stderr.String(), err)
	}
	if stdout.Len() == 0 {
		return nil, services.Wrap(services.ErrExternalTool, "download", "probe", "yt-dlp returned empty output", nil)
	}

	var meta Metadata
	if err := json.Unmarshal(stdout.Bytes(), &meta); err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "download", "probe", "parse video metadata", err)
	}
	return &meta, nil
}

// Download runs yt-dlp and streams progress until the file is complete.
// Cancelling the context kills the subprocess and removes partial files.
func (c *ytdlpClient) Download(ctx context.Context, req Request) (*Result, error) {
	if strings.TrimSpace(req.URL) == "" {
		return nil, services.Wrap(services.ErrValidation, "download", "run yt-dlp", "url is required", nil)
	}
	if strings.TrimSpace(req.DestinationPath) == "" {
		return nil, services.Wrap(services.ErrValidation, "download", "run yt-dlp", "destination path is required", nil)
	}

	args := c.buildArgs(req)
	result := &Result{
		DestinationPath: req.DestinationPath,
		Command:         append([]string{c.binary}, args...),
	}

	if err := c.run(ctx, args, req); err != nil {
		if ctx.Err() != nil {
			removePartialFiles(req.DestinationPath)
			return result, services.Wrap(services.ErrTimeout, "download", "run yt-dlp", "download interrupted", ctx.Err())
		}
		return result, err
	}
	return result, nil
}

// Version reports the installed yt-dlp version string.
func (c *ytdlpClient) Version(ctx context.Context) (string, error) {
	cmd := exec.CommandContext(ctx, c.binary, "--version")
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", classify("version", stderr.String(), err)
	}
	return strings.TrimSpace(stdout.String()), nil
}

func (c *ytdlpClient) buildArgs(req Request) []string {
	// yt-dlp fills in the extension after merge/extract.
	template := strings.TrimSuffix(req.DestinationPath, filepath.Ext(req.DestinationPath)) + ".%(ext)s"

	args := []string{
		"--no-playlist",
		"--newline",
		"--restrict-filenames",
		"--ffmpeg-location", c.ffmpeg,
		"-o", template,
	}

	switch req.Kind {
	case queue.KindAudio:
		args = append(args,
			"-f", "bestaudio/best",
			"--extract-audio",
			"--audio-format", "mp3",
			"--audio-quality", audioQualityFlag(req.Quality),
			"--embed-metadata",
			"--embed-thumbnail",
		)
	default:
		args = append(args,
			"-f", selectVideoFormat(req.Quality),
			"--merge-output-format", "mp4",
		)
	}

	return append(args, req.URL)
}

// selectVideoFormat builds the yt-dlp format chain for a height cap. High
// resolutions (1440p and up) prefer AV1+Opus since AVC rarely exists there;
// below that AVC+AAC keeps files playable everywhere.
func selectVideoFormat(rawQuality string) string {
	quality := strings.TrimSpace(rawQuality)
	if quality == "" {
		quality = "1080"
	}
	height, err := strconv.Atoi(quality)
	if err != nil {
		height = 1080
		quality = "1080"
	}

	if height >= 1440 {
		return fmt.Sprintf(
			"bestvideo[height<=%[1]s][vcodec^=av01]+bestaudio[acodec^=opus]/bestvideo[height<=%[1]s][vcodec^=av01]+bestaudio/bestvideo[height<=%[1]s]+bestaudio/best[height<=%[1]s]",
			quality,
		)
	}
	return fmt.Sprintf(
		"bestvideo[height<=%[1]s][vcodec^=avc]+bestaudio[acodec^=mp4a]/bestvideo[height<=%[1]s]+bestaudio/best[height<=%[1]s]",
		quality,
	)
}

func audioQualityFlag(rawQuality string) string {
	if strings.EqualFold(strings.TrimSpace(rawQuality), "good") {
		return "1"
	}
	return "0"
}

// progressPattern matches yt-dlp's "[download]  42.3% of ..." lines.
var progressPattern = regexp.MustCompile(`\[download\]\s+([\d.]+)%`)

// ParseProgressLine extracts a completion percentage from a yt-dlp output
// line. The bool reports whether the line carried progress at all.
func ParseProgressLine(line string) (float64, bool) {
	matches := progressPattern.FindStringSubmatch(line)
	if len(matches) < 2 {
		return 0, false
	}
	percent, err := strconv.ParseFloat(matches[1], 64)
	if err != nil {
		return 0, false
	}
	return percent, true
}

func (c *ytdlpClient) run(ctx context.Context, args []string, req Request) error {
	cmd := exec.CommandContext(ctx, c.binary, args...)

	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return services.Wrap(services.ErrExternalTool, "download", "run yt-dlp", "setup stdout pipe", err)
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return services.Wrap(services.ErrExternalTool, "download", "run yt-dlp", "setup stderr pipe", err)
	}

	if err := cmd.Start(); err != nil {
		return services.Wrap(services.ErrExternalTool, "download", "run yt-dlp", "start yt-dlp", err)
	}

	var errBuf strings.Builder
	var mu sync.Mutex
	var wg sync.WaitGroup

	// Progress lines only come from stdout (--newline). Keeping the callback
	// on the stdout goroutine means callers never see concurrent invocations.
	read := func(r io.Reader, isStderr bool) {
		defer wg.Done()
		scanner := bufio.NewScanner(r)
		buf := make([]byte, 0, 64*1024)
		scanner.Buffer(buf, 1024*1024)
		scanner.Split(splitByNewlineOrCR)
		for scanner.Scan() {
			line := scanner.Text()
			if isStderr {
				mu.Lock()
				if errBuf.Len() < 8192 {
					errBuf.WriteString(line)
					errBuf.WriteByte('\n')
				}
				mu.Unlock()
				continue
			}
			if req.Progress != nil {
				if percent, ok := ParseProgressLine(line); ok {
					req.Progress(percent, strings.TrimSpace(line))
				}
			}
		}
	}

	wg.Add(2)
	go read(stdoutPipe, false)
	go read(stderrPipe, true)
	wg.Wait()

	if err := cmd.Wait(); err != nil {
		mu.Lock()
		stderr := errBuf.String()
		mu.Unlock()
		return classify("run yt-dlp", stderr, err)
	}
	return nil
}

// splitByNewlineOrCR treats carriage returns as line breaks so yt-dlp's
// in-place progress updates arrive as individual lines.
func splitByNewlineOrCR(data []byte, atEOF bool) (advance int, token []byte, err error) {
	for i := 0; i < len(data); i++ {
		if data[i] == '\n' || data[i] == '\r' {
			if i == 0 {
				return 1, nil, nil
			}
			return i + 1, data[:i], nil
		}
	}
	if atEOF && len(data) > 0 {
		return len(data), data, nil
	}
	return 0, nil, nil
}

var terminalMarkers = []struct {
	fragment string
	marker   error
}{
	{"unsupported url", services.ErrValidation},
	{"is not a valid url", services.ErrValidation},
	{"video unavailable", services.ErrNotFound},
	{"private video", services.ErrNotFound},
	{"this video is not available", services.ErrNotFound},
	{"sign in to confirm", services.ErrNotFound},
	{"account associated with this video has been terminated", services.ErrNotFound},
}

// classify maps yt-dlp failure output to an error marker so the workflow can
// decide between retrying and giving up.
func classify(operation, stderr string, err error) error {
	lowered := strings.ToLower(stderr)
	for _, candidate := range terminalMarkers {
		if strings.Contains(lowered, candidate.fragment) {
			return services.Wrap(candidate.marker, "download", operation, firstLine(stderr), err)
		}
	}
	return services.Wrap(services.ErrExternalTool, "download", operation, firstLine(stderr), err)
}

func firstLine(output string) string {
	trimmed := strings.TrimSpace(output)
	if trimmed == "" {
		return "yt-dlp failed"
	}
	// Prefer the last ERROR: line; yt-dlp prints warnings first.
	lines := strings.Split(trimmed, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if strings.HasPrefix(strings.TrimSpace(lines[i]), "ERROR:") {
			return strings.TrimSpace(lines[i])
		}
	}
	return strings.TrimSpace(lines[0])
}

// removePartialFiles deletes the destination and any yt-dlp leftovers
// (.part, .ytdl, bare-stem variants) after an aborted download.
func removePartialFiles(destination string) {
	stem := strings.TrimSuffix(destination, filepath.Ext(destination))
	candidates, err := filepath.Glob(stem + ".*")
	if err != nil {
		return
	}
	for _, candidate := range candidates {
		_ = os.Remove(candidate)
	}
}
