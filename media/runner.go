package media

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"vidscore/config"
	"vidscore/errs"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
	"go.uber.org/zap"
)

const (
	fadeInDuration  = 3.0
	fadeOutDuration = 5.0
)

// ProbeInfo is the subset of stream metadata the pipeline needs.
type ProbeInfo struct {
	Duration float64
	HasAudio bool
}

// Runner invokes ffmpeg/ffprobe for the transform operations of the
// pipeline: downsampling an upload and mixing a music track back in.
type Runner struct {
	cfg       *config.Config
	log       *zap.Logger
	extraArgs []string
	tempDir   string
}

func NewRunner(cfg *config.Config, log *zap.Logger) (*Runner, error) {
	if _, err := exec.LookPath(cfg.FFBin); err != nil {
		return nil, fmt.Errorf("ffmpeg binary not found: %s", cfg.FFBin)
	}
	if _, err := exec.LookPath(cfg.FFProbeBin); err != nil {
		return nil, fmt.Errorf("ffprobe binary not found: %s", cfg.FFProbeBin)
	}

	extraArgs, err := SplitExtraArgs(cfg.FFExtraArgs)
	if err != nil {
		return nil, err
	}

	// All stage-local I/O lives under one temp directory.
	tempDir, err := os.MkdirTemp("", "vidscore_")
	if err != nil {
		return nil, fmt.Errorf("could not create temp directory: %w", err)
	}
	cfg.TempDir = tempDir
	log.Info("media runner ready", zap.String("temp_dir", tempDir))

	return &Runner{
		cfg:       cfg,
		log:       log,
		extraArgs: extraArgs,
		tempDir:   tempDir,
	}, nil
}

// Downsample scales the video to the target height preserving aspect
// ratio. Width is forced even, which libx264 requires.
func (r *Runner) Downsample(ctx context.Context, in, out string, height int) error {
	if err := r.checkResources(); err != nil {
		return fmt.Errorf("insufficient system resources: %w", err)
	}
	args := downsampleArgs(in, out, height, r.extraArgs)
	return r.run(ctx, "downsample", args, out)
}

// Mix lays the music track under the video with a fade-in at startTime
// and a fade-out ending at the video's end. The video stream is copied
// untouched; only audio is re-encoded. Output duration always follows
// the video, never the music.
func (r *Runner) Mix(ctx context.Context, video, music, out string, startTime, volume, videoDuration float64) error {
	if err := r.checkResources(); err != nil {
		return fmt.Errorf("insufficient system resources: %w", err)
	}

	info, err := r.Probe(ctx, video)
	if err != nil {
		return err
	}

	args := mixArgs(video, music, out, startTime, volume, videoDuration, info.HasAudio, r.extraArgs)
	return r.run(ctx, "mix", args, out)
}

// Probe returns the container duration and whether an audio stream exists.
func (r *Runner) Probe(ctx context.Context, path string) (ProbeInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.FFTimeout)
	defer cancel()

	durOut, err := exec.CommandContext(ctx, r.cfg.FFProbeBin,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	).CombinedOutput()
	if err != nil {
		return ProbeInfo{}, &errs.TranscodeError{Op: "probe", Output: string(durOut), Err: err}
	}

	duration, err := strconv.ParseFloat(strings.TrimSpace(string(durOut)), 64)
	if err != nil {
		return ProbeInfo{}, &errs.TranscodeError{Op: "probe", Output: string(durOut), Err: err}
	}

	audioOut, err := exec.CommandContext(ctx, r.cfg.FFProbeBin,
		"-v", "error",
		"-select_streams", "a",
		"-show_entries", "stream=index",
		"-of", "csv=p=0",
		path,
	).CombinedOutput()
	if err != nil {
		return ProbeInfo{}, &errs.TranscodeError{Op: "probe", Output: string(audioOut), Err: err}
	}

	return ProbeInfo{
		Duration: duration,
		HasAudio: strings.TrimSpace(string(audioOut)) != "",
	}, nil
}

// FadeOutStart places the fade-out so it ends with the video, clamped
// to zero for videos shorter than the fade itself.
func FadeOutStart(videoDuration float64) float64 {
	start := videoDuration - fadeOutDuration
	if start < 0 {
		return 0
	}
	return start
}

func downsampleArgs(in, out string, height int, extra []string) []string {
	args := []string{
		"-y",
		"-i", in,
		"-vf", fmt.Sprintf("scale=-2:%d", height),
		"-c:v", "libx264",
		"-crf", "28",
		"-preset", "fast",
		"-c:a", "aac",
	}
	args = append(args, extra...)
	return append(args, out)
}

func mixArgs(video, music, out string, startTime, volume, videoDuration float64, hasAudio bool, extra []string) []string {
	chain := musicFilterChain(startTime, volume, videoDuration)

	args := []string{
		"-y",
		"-i", video,
		"-i", music,
	}

	if hasAudio {
		// Mixed with the original track; "first" keeps the video's duration.
		filter := fmt.Sprintf("[1:a]%s[m];[0:a][m]amix=inputs=2:duration=first:dropout_transition=2[aout]", chain)
		args = append(args, "-filter_complex", filter, "-map", "0:v", "-map", "[aout]")
	} else {
		// Silent video: the faded music becomes the whole track,
		// trimmed to the video's length.
		filter := fmt.Sprintf("[1:a]%s[aout]", chain)
		args = append(args,
			"-filter_complex", filter,
			"-map", "0:v", "-map", "[aout]",
			"-t", formatFloat(videoDuration),
		)
	}

	args = append(args, "-c:v", "copy", "-c:a", "aac")
	args = append(args, extra...)
	return append(args, out)
}

func musicFilterChain(startTime, volume, videoDuration float64) string {
	var filters []string
	if startTime > 0 {
		delayMS := int(startTime * 1000)
		filters = append(filters, fmt.Sprintf("adelay=%d|%d", delayMS, delayMS))
	}
	filters = append(filters,
		fmt.Sprintf("afade=t=in:st=%s:d=%s", formatFloat(startTime), formatFloat(fadeInDuration)),
		fmt.Sprintf("afade=t=out:st=%s:d=%s", formatFloat(FadeOutStart(videoDuration)), formatFloat(fadeOutDuration)),
		fmt.Sprintf("volume=%s", formatFloat(volume)),
	)
	return strings.Join(filters, ",")
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// run executes one ffmpeg invocation, buffering its combined output.
// A failed run never leaves a partial output file behind.
func (r *Runner) run(ctx context.Context, op string, args []string, outPath string) error {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.FFTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, r.cfg.FFBin, args...)
	var outputBuf bytes.Buffer
	cmd.Stdout = &outputBuf
	cmd.Stderr = &outputBuf

	r.log.Info("executing ffmpeg",
		zap.String("op", op),
		zap.String("cmd", r.cfg.FFBin+" "+strings.Join(args, " ")),
	)

	if err := cmd.Run(); err != nil {
		os.Remove(outPath)
		return &errs.TranscodeError{Op: op, Output: outputBuf.String(), Err: err}
	}
	return nil
}

// checkResources verifies free capacity before starting an encode.
func (r *Runner) checkResources() error {
	p, err := cpu.Percent(time.Second, false)
	if err != nil {
		r.log.Warn("could not get CPU usage", zap.Error(err))
	} else if len(p) > 0 && p[0] > (100.0-r.cfg.ThrottleCPU) {
		return fmt.Errorf("not enough idle CPU: current usage %.2f%%, idle threshold %.2f%%", p[0], r.cfg.ThrottleCPU)
	}

	vm, err := mem.VirtualMemory()
	if err != nil {
		r.log.Warn("could not get memory usage", zap.Error(err))
	} else if vm.Available < uint64(r.cfg.ThrottleFreeMem) {
		return fmt.Errorf("not enough free memory: available %d, required %d", vm.Available, r.cfg.ThrottleFreeMem)
	}

	d, err := disk.Usage(r.tempDir)
	if err != nil {
		r.log.Warn("could not get disk usage", zap.String("dir", r.tempDir), zap.Error(err))
	} else if d.Free < uint64(r.cfg.ThrottleFreeDisk) {
		return fmt.Errorf("not enough free disk space: available %d, required %d", d.Free, r.cfg.ThrottleFreeDisk)
	}
	return nil
}
