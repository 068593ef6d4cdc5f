package audio

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/faiface/beep"
	"github.com/faiface/beep/flac"
	"github.com/faiface/beep/mp3"
	"github.com/faiface/beep/wav"
	playerrors "github.com/jscyril/noor_player/pkg/errors"
)

type decodeFunc func(io.ReadCloser) (beep.StreamSeekCloser, beep.Format, error)

var decoders = map[string]decodeFunc{
	".mp3":  mp3.Decode,
	".wav":  func(r io.ReadCloser) (beep.StreamSeekCloser, beep.Format, error) { return wav.Decode(r) },
	".flac": func(r io.ReadCloser) (beep.StreamSeekCloser, beep.Format, error) { return flac.Decode(r) },
}

// SupportedFormats returns list of supported audio formats
func SupportedFormats() []string {
	return []string{".mp3", ".wav", ".flac"}
}

// IsSupported checks if a file format is supported
func IsSupported(filePath string) bool {
	_, ok := decoders[strings.ToLower(filepath.Ext(filePath))]
	return ok
}

// DecodeAudio decodes an audio stream. The extension of name picks the
// decoder; names without a known extension are sniffed by trying each
// decoder in turn, which requires r to be seekable back to its start.
func DecodeAudio(r io.ReadSeekCloser, name string) (beep.StreamSeekCloser, beep.Format, error) {
	ext := strings.ToLower(filepath.Ext(name))
	if dec, ok := decoders[ext]; ok {
		return dec(r)
	}

	// mp3 goes last: its frame sync search accepts almost anything
	for _, format := range []string{".wav", ".flac", ".mp3"} {
		if _, err := r.Seek(0, io.SeekStart); err != nil {
			return nil, beep.Format{}, fmt.Errorf("rewind: %w", err)
		}
		s, f, err := decoders[format](nopCloser{r})
		if err == nil && s.Len() > 0 {
			return closeWith{s, r}, f, nil
		}
		if s != nil {
			s.Close()
		}
	}
	return nil, beep.Format{}, fmt.Errorf("%w: %s", playerrors.ErrUnsupportedFormat, name)
}

// ProbeDuration decodes just enough of r to report its length in seconds.
// r is left open; callers rewind it before reusing the bytes.
func ProbeDuration(r io.ReadSeeker, name string) (float64, error) {
	streamer, format, err := DecodeAudio(nopCloser{r}, name)
	if err != nil {
		if errors.Is(err, playerrors.ErrUnsupportedFormat) {
			return 0, err
		}
		return 0, fmt.Errorf("%w: %s: %v", playerrors.ErrUnsupportedFormat, name, err)
	}
	defer streamer.Close()

	n := streamer.Len()
	if n <= 0 || format.SampleRate <= 0 {
		return 0, fmt.Errorf("%w: %s: unknown length", playerrors.ErrUnsupportedFormat, name)
	}
	return format.SampleRate.D(n).Seconds(), nil
}

// nopCloser keeps Seek available while hiding Close from decoders
type nopCloser struct {
	io.ReadSeeker
}

func (nopCloser) Close() error { return nil }

// closeWith closes the underlying source together with a sniffed stream
type closeWith struct {
	beep.StreamSeekCloser
	src io.Closer
}

func (c closeWith) Close() error {
	err := c.StreamSeekCloser.Close()
	if cerr := c.src.Close(); err == nil {
		err = cerr
	}
	return err
}
