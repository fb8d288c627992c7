package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"cliptube/internal/ipc"
	"cliptube/internal/queue"
	"cliptube/internal/youtube"
)

func newAddCommand(ctx *commandContext) *cobra.Command {
	var videoOnly bool
	var audioOnly bool

	cmd := &cobra.Command{
		Use:   "add <url>",
		Short: "Queue a YouTube link for download",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if videoOnly && audioOnly {
				return fmt.Errorf("specify only one of --video or --audio")
			}

			var kinds []string
			switch {
			case videoOnly:
				kinds = []string{string(queue.KindVideo)}
			case audioOnly:
				kinds = []string{string(queue.KindAudio)}
			}

			out := cmd.OutOrStdout()
			return ctx.withQueue(func(client *ipc.Client, store *queue.Store) error {
				if client != nil {
					resp, err := client.Add(args[0], kinds)
					if err != nil {
						return err
					}
					if len(resp.Jobs) == 0 {
						fmt.Fprintln(out, ctx.messages().T("job.exists", args[0]))
						return nil
					}
					for _, job := range resp.Jobs {
						fmt.Fprintln(out, ctx.messages().T("job.added", job.Kind, job.URL))
					}
					return nil
				}
				return addDirect(ctx, cmd, store, args[0], kinds)
			})
		},
	}

	cmd.Flags().BoolVar(&videoOnly, "video", false, "Queue only the video download")
	cmd.Flags().BoolVar(&audioOnly, "audio", false, "Queue only the MP3 download")
	return cmd
}

// addDirect enqueues into the database when the daemon is down; the daemon
// picks the jobs up on its next start.
func addDirect(ctx *commandContext, cmd *cobra.Command, store *queue.Store, url string, kinds []string) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}

	canonical, ok := youtube.Canonicalize(url)
	if !ok {
		return fmt.Errorf("not a YouTube video link: %s", url)
	}

	parsed := make([]queue.Kind, 0, len(kinds))
	for _, raw := range kinds {
		kind, ok := queue.ParseKind(raw)
		if !ok {
			return fmt.Errorf("unknown download kind %q", raw)
		}
		parsed = append(parsed, kind)
	}
	if len(parsed) == 0 {
		if cfg.DownloadVideo {
			parsed = append(parsed, queue.KindVideo)
		}
		if cfg.DownloadMP3 {
			parsed = append(parsed, queue.KindAudio)
		}
	}
	if len(parsed) == 0 {
		return fmt.Errorf("no download kinds enabled")
	}

	out := cmd.OutOrStdout()
	created := 0
	for _, kind := range parsed {
		quality := cfg.VideoQuality
		if kind == queue.KindAudio {
			quality = cfg.AudioQuality
		}
		_, isNew, err := store.Enqueue(cmd.Context(), canonical, kind, quality)
		if err != nil {
			return err
		}
		if !isNew {
			continue
		}
		created++
		fmt.Fprintln(out, ctx.messages().T("job.added", string(kind), canonical))
	}
	if created == 0 {
		fmt.Fprintln(out, ctx.messages().T("job.exists", canonical))
	}
	return nil
}
