// Package recording defines the voice memo data model shared by the storage,
// transcription, API and UI layers.
package recording

import (
	"strings"
	"time"
	"unicode/utf8"
)

// Segment is a time-bounded span of a transcript. Start and End are seconds
// from the beginning of the audio.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// TranscriptionResult is structured speech-to-text output. Duration and
// Confidence are zero when the provider did not report them.
type TranscriptionResult struct {
	Text       string    `json:"text"`
	Duration   float64   `json:"duration,omitempty"`   // seconds
	Confidence float64   `json:"confidence,omitempty"` // 0..1
	Segments   []Segment `json:"segments,omitempty"`
}

// Recording is a persisted voice memo: an audio reference plus its transcript.
type Recording struct {
	ID            string              `json:"id"`
	Title         string              `json:"title"`
	AudioURI      string              `json:"audioUri"`
	Transcription TranscriptionResult `json:"transcription"`
	CreatedAt     time.Time           `json:"createdAt"`
	UpdatedAt     time.Time           `json:"updatedAt"`
	Tags          []string            `json:"tags,omitempty"`
}

// Draft holds the caller-supplied fields of a new Recording.
type Draft struct {
	Title         string
	AudioURI      string
	Transcription TranscriptionResult
	Tags          []string
}

// Patch is a partial update. Nil fields are left untouched. Text replaces
// only the transcript text and is applied after Transcription.
type Patch struct {
	Title         *string              `json:"title,omitempty"`
	AudioURI      *string              `json:"audioUri,omitempty"`
	Transcription *TranscriptionResult `json:"transcription,omitempty"`
	Text          *string              `json:"text,omitempty"`
	Tags          *[]string            `json:"tags,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p Patch) Empty() bool {
	return p.Title == nil && p.AudioURI == nil && p.Transcription == nil && p.Text == nil && p.Tags == nil
}

// Apply merges the patch into r. UpdatedAt is the caller's responsibility.
func (p Patch) Apply(r *Recording) {
	if p.Title != nil {
		r.Title = *p.Title
	}
	if p.AudioURI != nil {
		r.AudioURI = *p.AudioURI
	}
	if p.Transcription != nil {
		r.Transcription = *p.Transcription
	}
	if p.Text != nil {
		r.Transcription.Text = *p.Text
	}
	if p.Tags != nil {
		r.Tags = append([]string(nil), (*p.Tags)...)
	}
}

// Matches reports whether query is a case-insensitive substring of the
// title, the transcript text or any tag.
func (r Recording) Matches(query string) bool {
	q := strings.ToLower(query)
	if strings.Contains(strings.ToLower(r.Title), q) ||
		strings.Contains(strings.ToLower(r.Transcription.Text), q) {
		return true
	}
	for _, tag := range r.Tags {
		if strings.Contains(strings.ToLower(tag), q) {
			return true
		}
	}
	return false
}

// Duration returns the transcript duration as a time.Duration.
func (r Recording) Duration() time.Duration {
	return time.Duration(r.Transcription.Duration * float64(time.Second))
}

const (
	maxTitleLen   = 50
	truncTitleLen = 47
)

// GenerateTitle derives a display title from transcript text: the first
// sentence (split on . ! ?) when it is 1-50 characters long, otherwise the
// first 47 characters followed by "...".
func GenerateTitle(text string) string {
	first := text
	if i := strings.IndexAny(text, ".!?"); i >= 0 {
		first = text[:i]
	}
	first = strings.TrimSpace(first)
	if n := utf8.RuneCountInString(first); n > 0 && n <= maxTitleLen {
		return first
	}
	return truncateRunes(text, truncTitleLen) + "..."
}

func truncateRunes(s string, n int) string {
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
