// Package transcribe wraps a local whisper.cpp binary. Transcription
// is best-effort: any failure yields an empty transcript, never an
// error, because downstream analysis tolerates a missing transcript.
package transcribe

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"vidscore/config"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Whisper struct {
	bin    string
	model  string
	ffBin  string
	useGPU bool
	log    *zap.Logger
}

func New(cfg *config.Config, log *zap.Logger) *Whisper {
	return &Whisper{
		bin:    cfg.WhisperBin,
		model:  cfg.WhisperModel,
		ffBin:  cfg.FFBin,
		useGPU: cfg.WhisperUseGPU,
		log:    log,
	}
}

// Transcribe extracts the audio track and runs it through whisper.
// GPU mode is tried first when enabled, falling back to CPU.
func (w *Whisper) Transcribe(ctx context.Context, mediaPath string) string {
	audioPath, err := w.extractAudio(ctx, mediaPath)
	if err != nil {
		w.log.Warn("audio extraction failed, skipping transcript", zap.Error(err))
		return ""
	}
	defer os.Remove(audioPath)

	if w.useGPU {
		if text, err := w.run(ctx, audioPath, true); err == nil {
			return text
		} else {
			w.log.Warn("accelerated transcription failed, retrying on CPU", zap.Error(err))
		}
	}

	text, err := w.run(ctx, audioPath, false)
	if err != nil {
		w.log.Warn("transcription failed, continuing without transcript", zap.Error(err))
		return ""
	}
	return text
}

// extractAudio converts the input to the 16kHz mono WAV whisper expects.
func (w *Whisper) extractAudio(ctx context.Context, mediaPath string) (string, error) {
	audioPath := filepath.Join(os.TempDir(), fmt.Sprintf("%s_whisper.wav", uuid.New()))

	cmd := exec.CommandContext(ctx, w.ffBin,
		"-y",
		"-i", mediaPath,
		"-vn",
		"-acodec", "pcm_s16le",
		"-ar", "16000",
		"-ac", "1",
		audioPath,
	)
	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf

	if err := cmd.Run(); err != nil {
		os.Remove(audioPath)
		return "", fmt.Errorf("audio extraction: %w: %s", err, lastLine(buf.String()))
	}
	return audioPath, nil
}

func (w *Whisper) run(ctx context.Context, audioPath string, gpu bool) (string, error) {
	args := []string{
		"-m", w.model,
		"-f", audioPath,
		"--no-timestamps",
	}
	if !gpu {
		args = append(args, "--no-gpu")
	}

	cmd := exec.CommandContext(ctx, w.bin, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("whisper: %w: %s", err, lastLine(stderr.String()))
	}
	return strings.TrimSpace(stdout.String()), nil
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) == 0 {
		return ""
	}
	return lines[len(lines)-1]
}
