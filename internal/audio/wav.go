package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"time"
)

const wavHeaderSize = 44

// ErrNotWAV is returned when a file lacks a RIFF/WAVE header.
var ErrNotWAV = errors.New("not a RIFF/WAVE file")

// Format describes 16-bit PCM audio.
type Format struct {
	SampleRate int
	Channels   int
}

// BytesPerSecond of 16-bit PCM in this format.
func (f Format) BytesPerSecond() int { return f.SampleRate * f.Channels * 2 }

// WAVWriter streams 16-bit PCM samples into a WAV file and fixes up the
// header sizes on Close.
type WAVWriter struct {
	f      *os.File
	format Format
	data   int64
}

// CreateWAV creates path and writes a provisional header.
func CreateWAV(path string, format Format) (*WAVWriter, error) {
	if format.SampleRate <= 0 || format.Channels <= 0 {
		return nil, fmt.Errorf("invalid wav format %+v", format)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	w := &WAVWriter{f: f, format: format}
	if err := writeWAVHeader(f, format, 0); err != nil {
		f.Close()
		os.Remove(path)
		return nil, fmt.Errorf("write header: %w", err)
	}
	return w, nil
}

// WriteSamples appends interleaved samples.
func (w *WAVWriter) WriteSamples(samples []int16) error {
	if err := binary.Write(w.f, binary.LittleEndian, samples); err != nil {
		return err
	}
	w.data += int64(len(samples)) * 2
	return nil
}

// Duration of audio written so far.
func (w *WAVWriter) Duration() time.Duration {
	bps := w.format.BytesPerSecond()
	return time.Duration(w.data) * time.Second / time.Duration(bps)
}

// Path returns the file name.
func (w *WAVWriter) Path() string { return w.f.Name() }

// Close rewrites the header with final sizes and closes the file.
func (w *WAVWriter) Close() error {
	if _, err := w.f.Seek(0, io.SeekStart); err != nil {
		w.f.Close()
		return err
	}
	if err := writeWAVHeader(w.f, w.format, w.data); err != nil {
		w.f.Close()
		return err
	}
	return w.f.Close()
}

func writeWAVHeader(w io.Writer, format Format, dataSize int64) error {
	header := make([]byte, wavHeaderSize)
	copy(header[0:4], "RIFF")
	binary.LittleEndian.PutUint32(header[4:8], uint32(36+dataSize))
	copy(header[8:12], "WAVE")
	copy(header[12:16], "fmt ")
	binary.LittleEndian.PutUint32(header[16:20], 16) // fmt chunk size
	binary.LittleEndian.PutUint16(header[20:22], 1)  // PCM
	binary.LittleEndian.PutUint16(header[22:24], uint16(format.Channels))
	binary.LittleEndian.PutUint32(header[24:28], uint32(format.SampleRate))
	binary.LittleEndian.PutUint32(header[28:32], uint32(format.BytesPerSecond()))
	binary.LittleEndian.PutUint16(header[32:34], uint16(format.Channels*2))
	binary.LittleEndian.PutUint16(header[34:36], 16)
	copy(header[36:40], "data")
	binary.LittleEndian.PutUint32(header[40:44], uint32(dataSize))
	_, err := w.Write(header)
	return err
}

// ReadWAV loads a 16-bit PCM WAV file written by WAVWriter (canonical
// 44-byte header).
func ReadWAV(path string) ([]int16, Format, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, Format{}, err
	}
	defer f.Close()

	header := make([]byte, wavHeaderSize)
	if _, err := io.ReadFull(f, header); err != nil {
		return nil, Format{}, fmt.Errorf("read header: %w", err)
	}
	if string(header[0:4]) != "RIFF" || string(header[8:12]) != "WAVE" {
		return nil, Format{}, ErrNotWAV
	}
	if bits := binary.LittleEndian.Uint16(header[34:36]); bits != 16 {
		return nil, Format{}, fmt.Errorf("unsupported bits per sample %d", bits)
	}
	format := Format{
		Channels:   int(binary.LittleEndian.Uint16(header[22:24])),
		SampleRate: int(binary.LittleEndian.Uint32(header[24:28])),
	}
	dataSize := int64(binary.LittleEndian.Uint32(header[40:44]))

	data, err := io.ReadAll(io.LimitReader(f, dataSize))
	if err != nil {
		return nil, Format{}, fmt.Errorf("read data: %w", err)
	}
	samples := make([]int16, len(data)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(data[i*2 : i*2+2]))
	}
	return samples, format, nil
}
