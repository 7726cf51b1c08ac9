package llm

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-audio/wav"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(url string) *Client {
	return NewClient(Config{
		BaseURL:        url,
		APIKey:         "test-key",
		Model:          "test-model",
		SpeechModel:    "test-tts",
		MaxRetries:     2,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
	}, zerolog.Nop())
}

func textResponse(t *testing.T, w http.ResponseWriter, text string) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"candidates": []map[string]any{
			{"content": map[string]any{"parts": []map[string]any{{"text": text}}}},
		},
	})
}

func TestGenerateJSON_Success(t *testing.T) {
	var gotPath, gotKey string
	var gotBody generateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("x-goog-api-key")
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &gotBody)
		textResponse(t, w, `{"summary":"ok"}`)
	}))
	defer srv.Close()

	var out struct {
		Summary string `json:"summary"`
	}
	schema := map[string]any{"type": "OBJECT"}
	err := testClient(srv.URL).GenerateJSON(context.Background(), "history_summary", "hello", schema, &out)
	require.NoError(t, err)

	assert.Equal(t, "ok", out.Summary)
	assert.Equal(t, "/v1beta/models/test-model:generateContent", gotPath)
	assert.Equal(t, "test-key", gotKey)
	require.Len(t, gotBody.Contents, 1)
	assert.Equal(t, "hello", gotBody.Contents[0].Parts[0].Text)
	require.NotNil(t, gotBody.GenerationConfig)
	assert.Equal(t, "application/json", gotBody.GenerationConfig.ResponseMimeType)
	assert.Equal(t, "OBJECT", gotBody.GenerationConfig.ResponseSchema["type"])
}

func TestGenerateJSON_RetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		textResponse(t, w, `{"summary":"eventually"}`)
	}))
	defer srv.Close()

	var out map[string]string
	err := testClient(srv.URL).GenerateJSON(context.Background(), "history_summary", "p", nil, &out)
	require.NoError(t, err)
	assert.Equal(t, "eventually", out["summary"])
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestGenerateJSON_RetriesExhausted(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	var out map[string]string
	err := testClient(srv.URL).GenerateJSON(context.Background(), "triage", "p", nil, &out)
	require.Error(t, err)

	var lerr *Error
	require.True(t, errors.As(err, &lerr))
	assert.Equal(t, http.StatusTooManyRequests, lerr.StatusCode)
	assert.Equal(t, Recoverable, lerr.Category)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls), "initial attempt plus two retries")
}

func TestGenerateJSON_ClientErrorIsNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"bad schema"}}`))
	}))
	defer srv.Close()

	var out map[string]string
	err := testClient(srv.URL).GenerateJSON(context.Background(), "triage", "p", nil, &out)
	require.Error(t, err)
	assert.True(t, IsIrrecoverable(err))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	var lerr *Error
	require.True(t, errors.As(err, &lerr))
	assert.Contains(t, lerr.Body, "bad schema")
}

func TestGenerateJSON_EmptyCandidates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"candidates":[]}`))
	}))
	defer srv.Close()

	var out map[string]string
	err := testClient(srv.URL).GenerateJSON(context.Background(), "triage", "p", nil, &out)
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestGenerateJSON_Blocked(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"candidates":[],"promptFeedback":{"blockReason":"SAFETY"}}`))
	}))
	defer srv.Close()

	var out map[string]string
	err := testClient(srv.URL).GenerateJSON(context.Background(), "triage", "p", nil, &out)
	require.ErrorIs(t, err, ErrEmptyResponse)
	assert.Contains(t, err.Error(), "SAFETY")
}

func TestGenerateJSON_MalformedJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		textResponse(t, w, `not json`)
	}))
	defer srv.Close()

	var out map[string]string
	err := testClient(srv.URL).GenerateJSON(context.Background(), "triage", "p", nil, &out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode triage response")
}

func TestGenerateJSON_ContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		textResponse(t, w, `{}`)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	var out map[string]string
	err := testClient(srv.URL).GenerateJSON(ctx, "triage", "p", nil, &out)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestGenerateSpeech(t *testing.T) {
	pcm := []byte{0x01, 0x00, 0x02, 0x00}
	var gotBody generateRequest
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &gotBody)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"candidates": []map[string]any{{
				"content": map[string]any{"parts": []map[string]any{{
					"inlineData": map[string]string{
						"mimeType": "audio/L16;codec=pcm;rate=24000",
						"data":     base64.StdEncoding.EncodeToString(pcm),
					},
				}}},
			}},
		})
	}))
	defer srv.Close()

	got, err := testClient(srv.URL).GenerateSpeech(context.Background(), "Take with food")
	require.NoError(t, err)
	assert.Equal(t, pcm, got)
	assert.Equal(t, "/v1beta/models/test-tts:generateContent", gotPath)
	require.NotNil(t, gotBody.GenerationConfig)
	assert.Equal(t, []string{"AUDIO"}, gotBody.GenerationConfig.ResponseModalities)
	require.NotNil(t, gotBody.GenerationConfig.SpeechConfig)
	assert.Equal(t, "Algenib", gotBody.GenerationConfig.SpeechConfig.VoiceConfig.PrebuiltVoiceConfig.VoiceName)
}

func TestGenerateSpeech_NoAudio(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		textResponse(t, w, "no audio here")
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).GenerateSpeech(context.Background(), "hi")
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestEncodeWAV_Header(t *testing.T) {
	pcm := make([]byte, 480)
	out := mustEncodeWAV(t, pcm)

	require.Len(t, out, 44+len(pcm))
	assert.Equal(t, "RIFF", string(out[0:4]))
	assert.Equal(t, uint32(36+len(pcm)), binary.LittleEndian.Uint32(out[4:8]))
	assert.Equal(t, "WAVE", string(out[8:12]))
	assert.Equal(t, "fmt ", string(out[12:16]))
	assert.Equal(t, uint16(1), binary.LittleEndian.Uint16(out[20:22]))
	assert.Equal(t, uint16(1), binary.LittleEndian.Uint16(out[22:24]))
	assert.Equal(t, uint32(24000), binary.LittleEndian.Uint32(out[24:28]))
	assert.Equal(t, uint32(48000), binary.LittleEndian.Uint32(out[28:32]))
	assert.Equal(t, uint16(2), binary.LittleEndian.Uint16(out[32:34]))
	assert.Equal(t, uint16(16), binary.LittleEndian.Uint16(out[34:36]))
	assert.Equal(t, "data", string(out[36:40]))
	assert.Equal(t, uint32(len(pcm)), binary.LittleEndian.Uint32(out[40:44]))
}

func mustEncodeWAV(t *testing.T, pcm []byte) []byte {
	t.Helper()
	b, err := EncodeWAV(pcm, SpeechSampleRate, SpeechChannels)
	require.NoError(t, err)
	return b
}

func TestEncodeWAV_DecodesToSameSamples(t *testing.T) {
	pcm := []byte{0x01, 0x00, 0xff, 0xff, 0x00, 0x80, 0xff, 0x7f}

	dec := wav.NewDecoder(bytes.NewReader(mustEncodeWAV(t, pcm)))
	require.True(t, dec.IsValidFile())
	buf, err := dec.FullPCMBuffer()
	require.NoError(t, err)

	assert.Equal(t, SpeechSampleRate, buf.Format.SampleRate)
	assert.Equal(t, SpeechChannels, buf.Format.NumChannels)
	assert.Equal(t, []int{1, -1, -32768, 32767}, buf.Data)
}

func TestEncodeWAV_DropsTrailingOddByte(t *testing.T) {
	b := mustEncodeWAV(t, []byte{1, 0, 2, 0, 9})
	assert.Len(t, b, 44+4)
}

func TestEncodeWAV_Empty(t *testing.T) {
	_, err := EncodeWAV([]byte{7}, SpeechSampleRate, SpeechChannels)
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestWAVDataURI(t *testing.T) {
	uri, err := WAVDataURI([]byte{0, 0})
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(uri, "data:audio/wav;base64,"))

	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(uri, "data:audio/wav;base64,"))
	require.NoError(t, err)
	assert.Equal(t, "RIFF", string(raw[:4]))
}

func TestClassifyStatus(t *testing.T) {
	tests := map[int]Category{
		400: Irrecoverable,
		401: Irrecoverable,
		404: Irrecoverable,
		408: Recoverable,
		429: Recoverable,
		500: Recoverable,
		503: Recoverable,
	}
	for status, want := range tests {
		assert.Equal(t, want, classifyStatus(status), "status %d", status)
	}
}
