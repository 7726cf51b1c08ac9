package llm

import (
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// PCM format returned by the speech model.
const (
	SpeechSampleRate = 24000
	SpeechChannels   = 1
	SpeechBitDepth   = 16
)

const wavFormatPCM = 1

// EncodeWAV wraps raw little-endian 16-bit PCM in a RIFF/WAVE container. A
// trailing odd byte is not a whole sample and is dropped.
func EncodeWAV(pcm []byte, sampleRate, channels int) ([]byte, error) {
	samples := make([]int, len(pcm)/2)
	for i := range samples {
		samples[i] = int(int16(binary.LittleEndian.Uint16(pcm[2*i:])))
	}
	if len(samples) == 0 {
		return nil, fmt.Errorf("encode wav: %w", ErrEmptyResponse)
	}

	out := &seekBuffer{}
	enc := wav.NewEncoder(out, sampleRate, SpeechBitDepth, channels, wavFormatPCM)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: channels, SampleRate: sampleRate},
		Data:           samples,
		SourceBitDepth: SpeechBitDepth,
	}
	if err := enc.Write(buf); err != nil {
		return nil, fmt.Errorf("encode wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("finalize wav: %w", err)
	}
	return out.buf, nil
}

// WAVDataURI renders speech PCM as a data:audio/wav;base64 URI.
func WAVDataURI(pcm []byte) (string, error) {
	b, err := EncodeWAV(pcm, SpeechSampleRate, SpeechChannels)
	if err != nil {
		return "", err
	}
	return "data:audio/wav;base64," + base64.StdEncoding.EncodeToString(b), nil
}

// seekBuffer is an in-memory io.WriteSeeker. The encoder seeks back to
// patch chunk sizes once all samples are written.
type seekBuffer struct {
	buf []byte
	pos int
}

func (s *seekBuffer) Write(p []byte) (int, error) {
	if end := s.pos + len(p); end > len(s.buf) {
		s.buf = append(s.buf, make([]byte, end-len(s.buf))...)
	}
	n := copy(s.buf[s.pos:], p)
	s.pos += n
	return n, nil
}

func (s *seekBuffer) Seek(offset int64, whence int) (int64, error) {
	var next int64
	switch whence {
	case io.SeekStart:
		next = offset
	case io.SeekCurrent:
		next = int64(s.pos) + offset
	case io.SeekEnd:
		next = int64(len(s.buf)) + offset
	default:
		return 0, errors.New("seek: invalid whence")
	}
	if next < 0 {
		return 0, errors.New("seek: negative position")
	}
	s.pos = int(next)
	return next, nil
}
