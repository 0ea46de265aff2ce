// Package analyze derives a music-generation brief from a video using
// the Gemini API.
package analyze

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"vidscore/config"
	"vidscore/errs"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

const briefPrompt = `Analyze this video and generate a JSON response for music generation.

Here is the audio transcript of the video for context:
%q

The JSON should have a 'suno_request' key with the following fields:
- title: A creative title for the music.
- style: The musical style (e.g., 'lo-fi', 'upbeat pop', 'cinematic').
- prompt: A detailed description of the music to generate.
- customMode: true
- instrumental: true or false based on the video vibe.

Output ONLY valid JSON.`

// Brief is the parsed analysis result. ParseErr is set instead of
// failing the call when the model returns malformed JSON, so the
// pipeline can record a partial result.
type Brief struct {
	Analysis map[string]any
	Suno     map[string]any
	ParseErr string
}

type Analyzer struct {
	client       *genai.Client
	model        string
	inlineLimit  int64
	pollInterval time.Duration
	pollTimeout  time.Duration
	log          *zap.Logger
}

func New(ctx context.Context, cfg *config.Config, log *zap.Logger) (*Analyzer, error) {
	var client *genai.Client
	if cfg.GeminiAPIKey != "" {
		var err error
		client, err = genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  cfg.GeminiAPIKey,
			Backend: genai.BackendGeminiAPI,
		})
		if err != nil {
			return nil, fmt.Errorf("create gemini client: %w", err)
		}
	}

	return &Analyzer{
		client:       client,
		model:        cfg.GeminiModel,
		inlineLimit:  cfg.GeminiInlineLimit,
		pollInterval: cfg.GeminiPollInterval,
		pollTimeout:  cfg.GeminiPollTimeout,
		log:          log,
	}, nil
}

// Analyze submits the video and transcript and returns the parsed
// brief. Small files go inline; larger ones are uploaded to the
// service, polled until ready and deleted afterwards.
func (a *Analyzer) Analyze(ctx context.Context, videoPath, transcript string) (*Brief, error) {
	if a.client == nil {
		return nil, &errs.AnalysisError{Msg: "analysis service is not configured (missing API key)"}
	}

	info, err := os.Stat(videoPath)
	if err != nil {
		return nil, &errs.AnalysisError{Msg: "stat video", Err: err}
	}

	var videoPart *genai.Part
	if info.Size() <= a.inlineLimit {
		data, err := os.ReadFile(videoPath)
		if err != nil {
			return nil, &errs.AnalysisError{Msg: "read video", Err: err}
		}
		videoPart = genai.NewPartFromBytes(data, "video/mp4")
	} else {
		file, err := a.uploadAndAwait(ctx, videoPath)
		if err != nil {
			return nil, err
		}
		// Remote copy is removed whatever the analysis outcome.
		defer func() {
			if _, derr := a.client.Files.Delete(context.Background(), file.Name, nil); derr != nil {
				a.log.Warn("failed to delete remote file", zap.String("file", file.Name), zap.Error(derr))
			}
		}()
		videoPart = genai.NewPartFromURI(file.URI, "video/mp4")
	}

	parts := []*genai.Part{
		videoPart,
		genai.NewPartFromText(fmt.Sprintf(briefPrompt, transcript)),
	}
	contents := []*genai.Content{
		genai.NewContentFromParts(parts, genai.RoleUser),
	}

	result, err := a.client.Models.GenerateContent(ctx, a.model, contents, &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
	})
	if err != nil {
		return nil, &errs.AnalysisError{Msg: "generate content", Err: err}
	}

	return ParseBrief(result.Text()), nil
}

// uploadAndAwait pushes the file to the service and polls until it is
// ready, bounded by the configured timeout.
func (a *Analyzer) uploadAndAwait(ctx context.Context, videoPath string) (*genai.File, error) {
	file, err := a.client.Files.UploadFromPath(ctx, videoPath, &genai.UploadFileConfig{
		MIMEType: "video/mp4",
	})
	if err != nil {
		return nil, &errs.AnalysisError{Msg: "upload video", Err: err}
	}
	a.log.Info("uploaded video for analysis", zap.String("file", file.Name))

	deadline := time.Now().Add(a.pollTimeout)
	for file.State == genai.FileStateProcessing {
		if time.Now().After(deadline) {
			return nil, &errs.AnalysisError{Msg: "remote file readiness", Err: errs.ErrUpstreamTimeout}
		}
		select {
		case <-ctx.Done():
			return nil, &errs.AnalysisError{Msg: "remote file readiness", Err: ctx.Err()}
		case <-time.After(a.pollInterval):
		}

		file, err = a.client.Files.Get(ctx, file.Name, nil)
		if err != nil {
			return nil, &errs.AnalysisError{Msg: "poll remote file", Err: err}
		}
	}

	if file.State == genai.FileStateFailed {
		return nil, &errs.AnalysisError{Msg: "remote video processing failed"}
	}
	return file, nil
}

// ParseBrief decodes the model's JSON reply. Responses fenced in
// code-block markers are unwrapped first. A flat object without a
// suno_request key is wrapped under one, matching what downstream
// automation expects. Malformed JSON yields a Brief with ParseErr set.
func ParseBrief(text string) *Brief {
	cleaned := StripCodeFence(text)

	var parsed map[string]any
	if err := json.Unmarshal([]byte(cleaned), &parsed); err != nil {
		return &Brief{
			Analysis: map[string]any{"suno_request": map[string]any{}},
			Suno:     map[string]any{},
			ParseErr: "JSON parse error",
		}
	}

	if _, ok := parsed["suno_request"]; !ok {
		parsed = map[string]any{"suno_request": parsed}
	}

	suno, _ := parsed["suno_request"].(map[string]any)
	if suno == nil {
		suno = map[string]any{}
	}

	return &Brief{Analysis: parsed, Suno: suno}
}

// StripCodeFence removes leading/trailing ``` markers, with or without
// a language tag.
func StripCodeFence(text string) string {
	s := strings.TrimSpace(text)
	if !strings.HasPrefix(s, "```") {
		return s
	}

	s = strings.TrimPrefix(s, "```")
	if idx := strings.Index(s, "\n"); idx >= 0 && !strings.HasPrefix(s, "{") {
		// Drop a language tag like "json" on the opening fence.
		s = s[idx+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
