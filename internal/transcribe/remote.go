package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
	"github.com/snarg/voicememo/internal/audio"
	"github.com/snarg/voicememo/internal/recording"
)

// RemoteOptions configures a Remote backend.
type RemoteOptions struct {
	APIKey          string
	BaseURL         string // e.g. https://api.openai.com/v1
	TranscribeModel string // default whisper-1
	EnhanceModel    string // default gpt-3.5-turbo
	Language        string // default en
	Timeout         time.Duration
	AudioDir        string
	Store           audio.Store // fetches audio held only by a remote store
	Preprocess      bool
	Log             zerolog.Logger
}

// Remote calls an OpenAI-compatible API: multipart uploads to
// /audio/transcriptions and chat completions for enhancement.
type Remote struct {
	opts   RemoteOptions
	client *http.Client
	chat   *openai.Client
	log    zerolog.Logger
}

func NewRemote(opts RemoteOptions) *Remote {
	if opts.BaseURL == "" {
		opts.BaseURL = "https://api.openai.com/v1"
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	if opts.TranscribeModel == "" {
		opts.TranscribeModel = "whisper-1"
	}
	if opts.EnhanceModel == "" {
		opts.EnhanceModel = openai.GPT3Dot5Turbo
	}
	if opts.Language == "" {
		opts.Language = "en"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 120 * time.Second
	}

	httpClient := &http.Client{Timeout: opts.Timeout}
	chatCfg := openai.DefaultConfig(opts.APIKey)
	chatCfg.BaseURL = opts.BaseURL
	chatCfg.HTTPClient = httpClient

	return &Remote{
		opts:   opts,
		client: httpClient,
		chat:   openai.NewClientWithConfig(chatCfg),
		log:    opts.Log.With().Str("component", "transcribe-remote").Logger(),
	}
}

func (r *Remote) Name() string { return "remote" }

// Model returns the transcription model identifier.
func (r *Remote) Model() string { return r.opts.TranscribeModel }

// verboseResponse is the verbose_json transcription payload.
type verboseResponse struct {
	Text     string           `json:"text"`
	Language string           `json:"language"`
	Duration float64          `json:"duration"`
	Segments []verboseSegment `json:"segments"`
}

type verboseSegment struct {
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
	Text       string  `json:"text"`
	AvgLogprob float64 `json:"avg_logprob"`
}

// errorEnvelope is the API error body: {"error":{"message":...}}.
type errorEnvelope struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// TranscribeAudio uploads the file behind uri and maps the verbose_json
// response.
func (r *Remote) TranscribeAudio(ctx context.Context, uri string) (*recording.TranscriptionResult, error) {
	path, release, err := audio.Fetch(ctx, r.opts.Store, r.opts.AudioDir, uri)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrAudioNotFound, uri)
	}
	defer release()

	name := filepath.Base(path)
	if key, ok := audio.KeyFromURI(uri); ok {
		name = filepath.Base(filepath.FromSlash(key))
	}

	uploadPath := path
	if r.opts.Preprocess {
		processed, cleanup, err := Preprocess(ctx, path)
		if err != nil {
			r.log.Warn().Err(err).Msg("preprocessing failed, using original audio")
		} else {
			uploadPath = processed
			defer cleanup()
		}
	}

	f, err := os.Open(uploadPath)
	if err != nil {
		return nil, fmt.Errorf("open audio file: %w", err)
	}
	defer f.Close()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	part, err := w.CreateFormFile("file", name)
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, fmt.Errorf("copy audio data: %w", err)
	}
	w.WriteField("model", r.opts.TranscribeModel)
	w.WriteField("response_format", "verbose_json")
	w.WriteField("language", r.opts.Language)
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("close form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.opts.BaseURL+"/audio/transcriptions", &buf)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+r.opts.APIKey)

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, &Error{Op: "transcribe", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Op: "transcribe", Err: fmt.Errorf("read response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &Error{Op: "transcribe", StatusCode: resp.StatusCode, Message: errorMessage(body)}
	}

	var vr verboseResponse
	if err := json.Unmarshal(body, &vr); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	result := &recording.TranscriptionResult{
		Text:     strings.TrimSpace(vr.Text),
		Duration: vr.Duration,
	}
	var logprob float64
	for _, s := range vr.Segments {
		result.Segments = append(result.Segments, recording.Segment{
			Start: s.Start,
			End:   s.End,
			Text:  strings.TrimSpace(s.Text),
		})
		logprob += s.AvgLogprob
	}
	if n := len(vr.Segments); n > 0 && logprob != 0 {
		result.Confidence = math.Min(1, math.Exp(logprob/float64(n)))
	}

	r.log.Debug().
		Str("file", filepath.Base(path)).
		Float64("duration", result.Duration).
		Int("segments", len(result.Segments)).
		Msg("transcription complete")
	return result, nil
}

// EnhanceText sends the mode prompt plus text to the chat completion
// endpoint. Any failure returns text unchanged.
func (r *Remote) EnhanceText(ctx context.Context, text string, mode Mode) string {
	prompt, ok := Prompt(mode)
	if !ok {
		r.log.Warn().Str("mode", string(mode)).Msg("unknown enhancement mode, returning original text")
		return text
	}

	resp, err := r.chat.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: r.opts.EnhanceModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt + text},
		},
		MaxTokens:   500,
		Temperature: 0.3,
	})
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			err = &Error{Op: "enhance", StatusCode: apiErr.HTTPStatusCode, Message: apiErr.Message}
		}
		r.log.Warn().Err(err).Str("mode", string(mode)).Msg("enhancement failed, returning original text")
		return text
	}
	if len(resp.Choices) == 0 {
		r.log.Warn().Str("mode", string(mode)).Msg("enhancement returned no choices")
		return text
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content)
}

// errorMessage extracts error.message from an API error body, falling back
// to the raw body.
func errorMessage(body []byte) string {
	var env errorEnvelope
	if err := json.Unmarshal(body, &env); err == nil && env.Error.Message != "" {
		return env.Error.Message
	}
	msg := strings.TrimSpace(string(body))
	if msg == "" {
		return "no error message"
	}
	return msg
}
