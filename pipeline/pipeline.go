// Package pipeline drives a task through its stages: analysis after an
// upload, mixing after music has been chosen. Each triggering request
// runs one fire-and-forget background unit; stages within a unit are
// strictly sequential.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"vidscore/analyze"
	"vidscore/config"
	"vidscore/errs"
	"vidscore/media"
	"vidscore/notify"
	"vidscore/task"

	"go.uber.org/zap"
)

// Transcoder is the media transform surface the pipeline needs.
type Transcoder interface {
	Downsample(ctx context.Context, in, out string, height int) error
	Mix(ctx context.Context, video, music, out string, startTime, volume, videoDuration float64) error
	Probe(ctx context.Context, path string) (media.ProbeInfo, error)
}

// Transcriber produces a best-effort transcript; failures yield "".
type Transcriber interface {
	Transcribe(ctx context.Context, path string) string
}

// Analyzer derives the music-generation brief.
type Analyzer interface {
	Analyze(ctx context.Context, videoPath, transcript string) (*analyze.Brief, error)
}

// ObjectStore moves blobs to and from the bucket.
type ObjectStore interface {
	UploadFile(ctx context.Context, path, key string) error
	DownloadFile(ctx context.Context, key, path string) error
	PresignedURL(ctx context.Context, key string) (string, error)
}

// Notifier delivers the analysis payload to the automation webhook.
type Notifier interface {
	Send(ctx context.Context, p *notify.Payload) error
}

type Pipeline struct {
	cfg      *config.Config
	store    *task.Store
	media    Transcoder
	stt      Transcriber
	analyzer Analyzer
	objects  ObjectStore
	notifier Notifier
	httpc    *http.Client
	log      *zap.Logger
}

func New(cfg *config.Config, store *task.Store, transcoder Transcoder, stt Transcriber, analyzer Analyzer, objects ObjectStore, notifier Notifier, log *zap.Logger) *Pipeline {
	return &Pipeline{
		cfg:      cfg,
		store:    store,
		media:    transcoder,
		stt:      stt,
		analyzer: analyzer,
		objects:  objects,
		notifier: notifier,
		httpc:    &http.Client{Timeout: cfg.WebhookTimeout},
		log:      log,
	}
}

// StartAnalysis launches the analysis unit for a freshly uploaded
// video. localPath is consumed: it is removed when the unit exits.
func (p *Pipeline) StartAnalysis(taskID, filename, objectName, localPath string) {
	go p.runAnalysis(context.Background(), taskID, filename, objectName, localPath)
}

// StartMix launches the mixing unit against a stored video object and
// a music URL.
func (p *Pipeline) StartMix(taskID, objectName, musicURL string, startTime, volume float64) {
	go p.runMix(context.Background(), taskID, objectName, musicURL, startTime, volume)
}

func (p *Pipeline) runAnalysis(ctx context.Context, taskID, filename, objectName, localPath string) {
	downsampled := filepath.Join(p.tempRoot(), "downsampled_"+filepath.Base(localPath))
	defer func() {
		os.Remove(localPath)
		os.Remove(downsampled)
	}()

	p.log.Info("analysis stage starting",
		zap.String("task_id", taskID),
		zap.String("filename", filename),
	)

	if err := p.media.Downsample(ctx, localPath, downsampled, p.cfg.DownsampleHeight); err != nil {
		p.fail(taskID, "downsample", err)
		return
	}

	// Original file keeps full audio quality for transcription.
	transcript := p.stt.Transcribe(ctx, localPath)

	brief, err := p.analyzer.Analyze(ctx, downsampled, transcript)
	if err != nil {
		p.fail(taskID, "analyze", err)
		return
	}
	if brief.ParseErr != "" {
		p.log.Warn("analysis returned unparseable JSON, forwarding partial result",
			zap.String("task_id", taskID),
		)
	}

	payload := &notify.Payload{
		Filename:        filename,
		TaskID:          taskID,
		VideoObjectName: objectName,
		Analysis:        brief.Analysis,
		SunoRequest:     brief.Suno,
		Transcript:      transcript,
	}
	if err := p.notifier.Send(ctx, payload); err != nil {
		p.fail(taskID, "notify", err)
		return
	}

	p.log.Info("analysis stage finished, awaiting music", zap.String("task_id", taskID))
}

func (p *Pipeline) runMix(ctx context.Context, taskID, objectName, musicURL string, startTime, volume float64) {
	workDir, err := os.MkdirTemp(p.tempRoot(), "mix_")
	if err != nil {
		p.fail(taskID, "mix setup", err)
		return
	}
	defer os.RemoveAll(workDir)

	p.log.Info("mixing stage starting",
		zap.String("task_id", taskID),
		zap.String("video_object_name", objectName),
		zap.Float64("start_time", startTime),
		zap.Float64("audio_volume", volume),
	)

	videoPath := filepath.Join(workDir, "video.mp4")
	musicPath := filepath.Join(workDir, "music.mp3")
	outPath := filepath.Join(workDir, "scored.mp4")

	if err := p.objects.DownloadFile(ctx, objectName, videoPath); err != nil {
		p.fail(taskID, "download video", err)
		return
	}
	if err := p.fetchFile(ctx, musicURL, musicPath); err != nil {
		p.fail(taskID, "download music", err)
		return
	}

	info, err := p.media.Probe(ctx, videoPath)
	if err != nil {
		p.fail(taskID, "probe video", err)
		return
	}

	if err := p.media.Mix(ctx, videoPath, musicPath, outPath, startTime, volume, info.Duration); err != nil {
		p.fail(taskID, "mix", err)
		return
	}

	outKey := fmt.Sprintf("outputs/%s_scored.mp4", taskID)
	if err := p.objects.UploadFile(ctx, outPath, outKey); err != nil {
		p.fail(taskID, "upload result", err)
		return
	}

	url, err := p.objects.PresignedURL(ctx, outKey)
	if err != nil {
		p.fail(taskID, "sign result", err)
		return
	}

	p.store.Complete(taskID, url)
	p.log.Info("mixing stage finished", zap.String("task_id", taskID))
}

// fetchFile downloads a URL (the chosen music track) to a local file.
func (p *Pipeline) fetchFile(ctx context.Context, url, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build fetch request: %w", err)
	}

	resp, err := p.httpc.Do(req)
	if err != nil {
		if errs.Timeout(err) {
			return fmt.Errorf("fetch %s: %w", url, errs.ErrUpstreamTimeout)
		}
		return fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch %s: unexpected status %s", url, resp.Status)
	}

	out, err := os.Create(path)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, resp.Body); err != nil {
		return fmt.Errorf("save %s: %w", url, err)
	}
	return nil
}

func (p *Pipeline) fail(taskID, stage string, err error) {
	p.log.Error("stage failed",
		zap.String("task_id", taskID),
		zap.String("stage", stage),
		zap.Error(err),
	)
	p.store.Fail(taskID, err)
}

func (p *Pipeline) tempRoot() string {
	if p.cfg.TempDir != "" {
		return p.cfg.TempDir
	}
	return os.TempDir()
}
