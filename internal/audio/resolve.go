package audio

import (
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// FileURI renders an absolute path as a file:// URI.
func FileURI(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(path)}).String()
}

// keyScheme prefixes locators of audio that is only held by a remote store.
const keyScheme = "audio:"

// KeyURI renders a store key as a stable locator. Unlike a presigned URL it
// never expires; it is turned into a fetchable URL when the audio is served.
func KeyURI(key string) string { return keyScheme + key }

// KeyFromURI returns the store key behind a KeyURI locator.
func KeyFromURI(uri string) (string, bool) {
	key, ok := strings.CutPrefix(uri, keyScheme)
	if !ok || key == "" {
		return "", false
	}
	return key, true
}

// ResolveURI finds the audio file on disk for a recording's audio locator.
// Accepted forms, in order: a file:// URI, a store key (under audioDir), an
// absolute path, a path relative to audioDir. Returns "" when nothing exists.
func ResolveURI(audioDir, uri string) string {
	if uri == "" {
		return ""
	}
	if key, ok := KeyFromURI(uri); ok {
		if audioDir == "" {
			return ""
		}
		return existing(filepath.Join(audioDir, filepath.FromSlash(key)))
	}

	if strings.HasPrefix(uri, "file://") {
		u, err := url.Parse(uri)
		if err != nil {
			return ""
		}
		return existing(filepath.FromSlash(u.Path))
	}
	if strings.Contains(uri, "://") {
		return ""
	}

	if filepath.IsAbs(uri) {
		return existing(uri)
	}
	if audioDir != "" {
		return existing(filepath.Join(audioDir, filepath.FromSlash(uri)))
	}
	return ""
}

func existing(path string) string {
	if fi, err := os.Stat(path); err == nil && !fi.IsDir() {
		return path
	}
	return ""
}

// ContentType guesses a MIME type from the file extension.
func ContentType(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".wav":
		return "audio/wav"
	case ".m4a":
		return "audio/mp4"
	case ".mp3":
		return "audio/mpeg"
	case ".ogg", ".oga":
		return "audio/ogg"
	case ".webm":
		return "audio/webm"
	case ".flac":
		return "audio/flac"
	default:
		return "application/octet-stream"
	}
}

// Playable reports whether name can be decoded for local playback. Only
// WAV is decoded; other formats are stored and transcribed but not played.
func Playable(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".wav")
}

// IsAudioFile reports whether name has an extension the transcription
// endpoint accepts.
func IsAudioFile(name string) bool {
	return ContentType(name) != "application/octet-stream"
}
