package download

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"cliptube/internal/config"
	"cliptube/internal/deps"
	"cliptube/internal/logging"
	"cliptube/internal/queue"
	"cliptube/internal/services"
	"cliptube/internal/stage"
	"cliptube/internal/youtube"
)

// Stage downloads a single queue job via yt-dlp.
type Stage struct {
	cfg    *config.Config
	store  *queue.Store
	client Client
	logger *slog.Logger
}

// NewStage wires the download stage. A nil client falls back to the real
// yt-dlp binary from config.
func NewStage(cfg *config.Config, store *queue.Store, logger *slog.Logger, client Client) *Stage {
	if client == nil {
		client = NewClient(cfg)
	}
	return &Stage{
		cfg:    cfg,
		store:  store,
		client: client,
		logger: logging.NewComponentLogger(logger, "download"),
	}
}

// Prepare probes the video, fills in the title, and computes the destination
// path before any bytes are fetched.
func (s *Stage) Prepare(ctx context.Context, job *queue.Job) error {
	logger := logging.WithContext(ctx, s.logger)

	if !youtube.IsWatchURL(job.URL) {
		return services.Wrap(services.ErrValidation, "download", "prepare", fmt.Sprintf("not a YouTube video link: %s", job.URL), nil)
	}

	meta, err := s.client.Probe(ctx, job.URL)
	if err != nil {
		return err
	}

	title := youtube.SanitizeTitle(meta.Title)
	job.Title = title
	job.DestinationPath = s.destinationFor(job.Kind, title)
	job.SetProgress(0, "Probed "+title)

	logger.Info("video probed",
		logging.String("title", title),
		logging.String(logging.FieldKind, string(job.Kind)),
		logging.String("destination", job.DestinationPath),
	)
	return nil
}

// Execute runs the actual download, streaming progress into the queue row.
func (s *Stage) Execute(ctx context.Context, job *queue.Job) error {
	logger := logging.WithContext(ctx, s.logger)

	outputDir := filepath.Dir(job.DestinationPath)
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return services.Wrap(services.ErrConfiguration, "download", "execute", "create output directory", err)
	}

	req := Request{
		URL:             job.URL,
		Kind:            job.Kind,
		Quality:         job.RequestedQuality,
		DestinationPath: job.DestinationPath,
		Progress: func(percent float64, message string) {
			job.SetProgress(percent, message)
			if err := s.store.Update(ctx, job); err != nil {
				logger.Debug("progress update skipped", logging.Error(err))
			}
		},
	}

	result, err := s.client.Download(ctx, req)
	if err != nil {
		return err
	}

	job.DestinationPath = result.DestinationPath
	job.SetProgress(100, "Download complete")

	logger.Info("download complete",
		logging.String("destination", result.DestinationPath),
		logging.String(logging.FieldKind, string(job.Kind)),
	)
	return nil
}

// HealthCheck verifies the external binaries are present.
func (s *Stage) HealthCheck(ctx context.Context) stage.Health {
	statuses := deps.CheckBinaries(deps.Default(s.cfg))
	var missing []string
	for _, status := range statuses {
		if !status.Available && !status.Optional {
			missing = append(missing, status.Name)
		}
	}
	if len(missing) > 0 {
		return stage.Unhealthy("download", "missing binaries: "+strings.Join(missing, ", "))
	}
	return stage.Healthy("download")
}

func (s *Stage) destinationFor(kind queue.Kind, title string) string {
	if kind == queue.KindAudio {
		return filepath.Join(s.cfg.OutputAudioDir, title+".mp3")
	}
	return filepath.Join(s.cfg.OutputVideoDir, title+".mp4")
}
