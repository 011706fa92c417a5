package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/avyn/avstream/app"
	"github.com/avyn/avstream/audio"
	"github.com/avyn/avstream/media"
	"github.com/avyn/avstream/video"
	"github.com/avyn/avstream/video/renderer"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// exactArgs is cobra.ExactArgs with errors that match ErrUsage.
func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) != n {
			cmd.Usage()
			return fmt.Errorf("%w: %s requires %d argument(s), received %d", ErrUsage, cmd.Name(), n, len(args))
		}

		return nil
	}
}

// rootCommand returns the command tree. The commands write to the outputs
// of the app.
func (a *App) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           app.Name,
		Short:         "Decode, encode, render and mux media files with ffmpeg",
		Args:          cobra.ArbitraryArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.Usage()

			if len(args) == 0 {
				return ErrUsage
			}

			return fmt.Errorf("%w: unknown command %q", ErrUsage, args[0])
		},
	}

	root.CompletionOptions.DisableDefaultCmd = true
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)
	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		cmd.Usage()
		return fmt.Errorf("%w: %s", ErrUsage, err)
	})

	root.AddCommand(
		a.probeCommand(),
		a.transcodeCommand(),
		a.renderCommand(),
		a.interweaveCommand(),
		a.configCommand(),
		a.versionCommand(),
	)

	return root
}

func (a *App) probeCommand() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "probe <file>",
		Short: "Print the streams of a media file",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := a.launcher.Probe(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			if !asJSON {
				fmt.Fprint(a.stdout, info.String())
				return nil
			}

			enc := json.NewEncoder(a.stdout)
			enc.SetIndent("", "  ")

			return enc.Encode(probeOutput(info))
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print as JSON")

	return cmd
}

type streamOutput struct {
	Kind   string           `json:"kind"`
	Stream media.StreamInfo `json:"stream"`
}

type infoOutput struct {
	Format   string         `json:"format"`
	Name     string         `json:"format_name"`
	Duration float64        `json:"duration"`
	Streams  []streamOutput `json:"streams"`
}

func probeOutput(info media.Info) infoOutput {
	out := infoOutput{
		Format:   info.FormatCode,
		Name:     info.FormatName,
		Duration: info.Duration.Seconds(),
		Streams:  []streamOutput{},
	}

	for _, s := range info.Streams {
		out.Streams = append(out.Streams, streamOutput{
			Kind:   string(s.Kind()),
			Stream: s,
		})
	}

	return out
}

func (a *App) transcodeCommand() *cobra.Command {
	var height int
	var mux string

	cmd := &cobra.Command{
		Use:   "transcode <input> <video output> <audio output>",
		Short: "Decode a file and encode its first video and audio stream into separate files",
		Args:  exactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.transcode(cmd.Context(), args[0], args[1], args[2], height, mux)
		},
	}

	cmd.Flags().IntVar(&height, "height", 0, "Scale the video to this height, 0 keeps the size")
	cmd.Flags().StringVar(&mux, "mux", "", "Mux the video and the audio output into this file")

	return cmd
}

func (a *App) transcode(ctx context.Context, input, videoPath, audioPath string, height int, mux string) error {
	info, err := a.launcher.Probe(ctx, input)
	if err != nil {
		return err
	}

	_, hasVideo := info.VideoStream(0)
	_, hasAudio := info.AudioStream(0)

	if !hasVideo && !hasAudio {
		return fmt.Errorf("%s: no audio or video stream: %w", input, media.ErrInvalidArgument)
	}

	if len(mux) != 0 && (!hasVideo || !hasAudio) {
		return fmt.Errorf("muxing requires a video and an audio stream: %w", media.ErrInvalidArgument)
	}

	logger := a.logger.WithComponent("Transcode").WithField("file", input)

	g, gctx := errgroup.WithContext(ctx)

	if hasVideo {
		g.Go(func() error {
			return a.transcodeVideo(gctx, input, videoPath, height)
		})
	} else {
		logger.Info().Log("No video stream, skipping video")
	}

	if hasAudio {
		g.Go(func() error {
			return a.transcodeAudio(gctx, input, audioPath)
		})
	} else {
		logger.Info().Log("No audio stream, skipping audio")
	}

	if err := g.Wait(); err != nil {
		return err
	}

	if len(mux) == 0 {
		return nil
	}

	return a.launcher.Interweave(ctx, videoPath, audioPath, 0, mux)
}

func (a *App) transcodeVideo(ctx context.Context, input, output string, height int) error {
	opts := []video.Option{
		video.WithBufferSize(a.config.Stream.BufferSize),
		video.WithLogger(a.logger),
	}

	r, err := video.OpenReader(ctx, a.launcher, input, opts...)
	if err != nil {
		return err
	}
	defer r.Close()

	// Encode with the defaults of the writer
	format := r.Format()
	format.Codec = ""
	format.PixelFormat = ""
	format.Bitrate = 0

	if height > 0 {
		opts = append(opts, video.WithOutputHeight(height))
	}

	w, err := video.CreateWriter(a.launcher, format, output, opts...)
	if err != nil {
		return err
	}

	_, err = video.Pipe(cancelableFrames{Reader: r, ctx: ctx}, w)

	return errors.Join(err, w.Close())
}

func (a *App) transcodeAudio(ctx context.Context, input, output string) error {
	opts := []audio.Option{
		audio.WithBufferSize(a.config.Stream.BufferSize),
		audio.WithLogger(a.logger),
	}

	r, err := audio.OpenReader(ctx, a.launcher, input, opts...)
	if err != nil {
		return err
	}
	defer r.Close()

	w, err := audio.CreateWriter(a.launcher, r.Format(), output, opts...)
	if err != nil {
		return err
	}

	_, err = audio.Pipe(cancelableSamples{Reader: r, ctx: ctx}, w)

	return errors.Join(err, w.Close())
}

// cancelableFrames stops reading once ctx is done.
type cancelableFrames struct {
	video.Reader
	ctx context.Context
}

func (r cancelableFrames) ReadFrame(frame *video.Frame) (bool, error) {
	if err := r.ctx.Err(); err != nil {
		return false, err
	}

	return r.Reader.ReadFrame(frame)
}

type cancelableSamples struct {
	audio.Reader
	ctx context.Context
}

func (r cancelableSamples) ReadSamples(buf []int16) (int, error) {
	if err := r.ctx.Err(); err != nil {
		return 0, err
	}

	return r.Reader.ReadSamples(buf)
}

func (a *App) renderCommand() *cobra.Command {
	cfg := a.config.Render

	var seconds, fps float64
	var width, height int
	var image string

	cmd := &cobra.Command{
		Use:   "render <output>",
		Short: "Render a test pattern or a still image into a video file",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if seconds <= 0 {
				return fmt.Errorf("seconds must be positive: %w", media.ErrInvalidArgument)
			}

			duration := time.Duration(seconds * float64(time.Second))
			format := media.NewVideoStreamInfo(width, height, fps, duration)

			if err := format.Validate(); err != nil {
				return err
			}

			return a.render(cmd.Context(), format, duration, image, args[0])
		},
	}

	cmd.Flags().Float64Var(&seconds, "seconds", 5, "Duration of the video in seconds")
	cmd.Flags().StringVar(&image, "image", "", "Render this image instead of the test pattern")
	cmd.Flags().IntVar(&width, "width", cfg.Width, "Width of the video")
	cmd.Flags().IntVar(&height, "height", cfg.Height, "Height of the video")
	cmd.Flags().Float64Var(&fps, "fps", cfg.FrameRate, "Frame rate of the video")

	return cmd
}

func (a *App) render(ctx context.Context, format media.VideoStreamInfo, duration time.Duration, image, output string) error {
	var r *video.Renderer
	var err error

	if len(image) == 0 {
		r = renderer.NewTestPattern(format, duration, a.logger)
	} else {
		r, err = renderer.NewStill(format, duration, image, a.logger)
		if err != nil {
			return err
		}
	}
	defer r.Close()

	w, err := video.CreateWriter(a.launcher, r.Format(), output, video.WithLogger(a.logger))
	if err != nil {
		return err
	}

	_, err = video.Pipe(cancelableFrames{Reader: r, ctx: ctx}, w)

	return errors.Join(err, w.Close())
}

func (a *App) interweaveCommand() *cobra.Command {
	var seconds float64

	cmd := &cobra.Command{
		Use:   "interweave <video> <audio> <output>",
		Short: "Mux a video and an audio file",
		Args:  exactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			if seconds < 0 {
				return fmt.Errorf("seconds must not be negative: %w", media.ErrInvalidArgument)
			}

			duration := time.Duration(seconds * float64(time.Second))

			return a.launcher.Interweave(cmd.Context(), args[0], args[1], duration, args[2])
		},
	}

	cmd.Flags().Float64Var(&seconds, "seconds", 0, "Duration of the output in seconds, 0 for the duration of the video")

	return cmd
}

func (a *App) configCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "List the configuration variables",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, v := range a.config.Variables() {
				override := ""
				if v.Merged {
					override = " (override)"
				}

				fmt.Fprintf(a.stdout, "%s=%s%s\n    %s, default %q, env %s\n", v.Name, v.Value, override, v.Description, v.Default, v.EnvName)
			}

			return nil
		},
	}
}

func (a *App) versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version of avstream and ffmpeg",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(a.stdout, app.Banner())
			fmt.Fprintf(a.stdout, "ffmpeg %s\n", a.launcher.Version().Version)

			return nil
		},
	}
}
