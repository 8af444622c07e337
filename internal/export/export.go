// Package export writes recordings out as plain-text transcripts and hands
// the files to the operating system.
package export

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"unicode"

	"github.com/rs/zerolog"
	"github.com/snarg/voicememo/internal/recording"
)

const maxNameLen = 40

// Format renders rec as the text written by WriteTranscript.
func Format(rec recording.Recording) string {
	var b strings.Builder
	b.WriteString(rec.Title)
	b.WriteString("\n")
	b.WriteString(strings.Repeat("=", max(len([]rune(rec.Title)), 3)))
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "Recorded: %s\n", rec.CreatedAt.Local().Format("2006-01-02 15:04"))
	if rec.Transcription.Duration > 0 {
		fmt.Fprintf(&b, "Duration: %s\n", clock(rec.Transcription.Duration))
	}
	if len(rec.Tags) > 0 {
		fmt.Fprintf(&b, "Tags: %s\n", strings.Join(rec.Tags, ", "))
	}
	b.WriteString("\n")
	b.WriteString(strings.TrimSpace(rec.Transcription.Text))
	b.WriteString("\n")

	if len(rec.Transcription.Segments) > 0 {
		b.WriteString("\nSegments:\n")
		for _, s := range rec.Transcription.Segments {
			fmt.Fprintf(&b, "[%s] %s\n", clock(s.Start), strings.TrimSpace(s.Text))
		}
	}
	return b.String()
}

// FileName is <sanitised-title>_<id-prefix>.txt.
func FileName(rec recording.Recording) string {
	id := rec.ID
	if len(id) > 8 {
		id = id[:8]
	}
	name := sanitize(rec.Title)
	if name == "" {
		name = "recording"
	}
	if id == "" {
		return name + ".txt"
	}
	return name + "_" + id + ".txt"
}

// WriteTranscript writes rec into dir and returns the file path. An
// existing export of the same recording is replaced.
func WriteTranscript(dir string, rec recording.Recording) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create export dir: %w", err)
	}
	path := filepath.Join(dir, FileName(rec))

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(Format(rec)), 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("rename %s: %w", path, err)
	}
	return path, nil
}

// clock formats seconds as mm:ss, or h:mm:ss past the hour.
func clock(seconds float64) string {
	s := int(seconds)
	if s >= 3600 {
		return fmt.Sprintf("%d:%02d:%02d", s/3600, s%3600/60, s%60)
	}
	return fmt.Sprintf("%02d:%02d", s/60, s%60)
}

func sanitize(title string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(title) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			dash = false
		case !dash && b.Len() > 0:
			b.WriteByte('-')
			dash = true
		}
		if b.Len() >= maxNameLen {
			break
		}
	}
	return strings.TrimRight(b.String(), "-")
}

// Sharer hands an exported file to the user.
type Sharer interface {
	Share(ctx context.Context, path string) error
}

// NopSharer does nothing; the path is shown to the user instead.
type NopSharer struct{}

func (NopSharer) Share(context.Context, string) error { return nil }

// SystemSharer opens the file with the desktop's default application.
type SystemSharer struct {
	Log zerolog.Logger
}

func (s SystemSharer) Share(ctx context.Context, path string) error {
	name, args := openCommand(runtime.GOOS)
	cmd := exec.CommandContext(ctx, name, append(args, path)...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("%s %s: %w", name, path, err)
	}
	s.Log.Debug().Str("file", path).Str("opener", name).Msg("opened export")
	go cmd.Wait()
	return nil
}

func openCommand(goos string) (string, []string) {
	switch goos {
	case "darwin":
		return "open", nil
	case "windows":
		return "rundll32", []string{"url.dll,FileProtocolHandler"}
	default:
		return "xdg-open", nil
	}
}
