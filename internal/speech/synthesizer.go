// Package speech synthesizes story audio through a cloud TTS endpoint and
// transcodes the result to mp3 with ffmpeg.
package speech

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/night-tales/skazka/internal/extproc"
)

// ErrTextTooLong marks the TTS service refusing the text for exceeding its
// length limit. Callers surface it verbatim as actionable guidance instead
// of a generic synthesis failure.
var ErrTextTooLong = errors.New("text exceeds TTS length limitation")

// TokenSource supplies a bearer credential for the TTS API.
type TokenSource interface {
	Ensure(ctx context.Context) (string, error)
}

// Result holds the synthesized artifacts. OggPath is always set on
// success; MP3Path is empty when the transcode failed, which is tolerated.
type Result struct {
	OggPath string
	MP3Path string
}

// Synthesizer posts text to the TTS endpoint and writes the audio to temp
// files.
type Synthesizer struct {
	apiURL     string
	lang       string
	voice      string
	emotion    string
	format     string
	sampleRate int
	folderID   string
	ffmpegPath string
	tokens     TokenSource
	client     *http.Client
}

func NewSynthesizer(apiURL, lang, voice, emotion, format string, sampleRate int, folderID, ffmpegPath string, tokens TokenSource, client *http.Client) *Synthesizer {
	if client == nil {
		client = &http.Client{Timeout: 120 * time.Second}
	}
	return &Synthesizer{
		apiURL:     apiURL,
		lang:       lang,
		voice:      voice,
		emotion:    emotion,
		format:     format,
		sampleRate: sampleRate,
		folderID:   folderID,
		ffmpegPath: ffmpegPath,
		tokens:     tokens,
		client:     client,
	}
}

// Synthesize converts text to speech. The ogg artifact is required; the
// mp3 transcode is attempted afterwards and its failure only logged.
func (s *Synthesizer) Synthesize(ctx context.Context, text string) (*Result, error) {
	token, err := s.tokens.Ensure(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to obtain TTS token: %w", err)
	}

	form := url.Values{}
	form.Set("text", text)
	form.Set("lang", s.lang)
	form.Set("voice", s.voice)
	form.Set("emotion", s.emotion)
	form.Set("folderId", s.folderID)
	form.Set("format", s.format)
	form.Set("sampleRateHertz", strconv.Itoa(s.sampleRate))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.apiURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create TTS request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("TTS request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if strings.Contains(strings.ToLower(string(body)), "requested text length exceed limitation") {
			return nil, ErrTextTooLong
		}
		return nil, fmt.Errorf("TTS returned status %d: %s", resp.StatusCode, string(body))
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read TTS response: %w", err)
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("TTS returned an empty audio file")
	}

	oggPath, err := writeTemp("skazka-audio-*.ogg", audio)
	if err != nil {
		return nil, err
	}

	result := &Result{OggPath: oggPath}
	if mp3Path, err := s.transcode(ctx, oggPath); err != nil {
		log.Error().Err(err).Str("ogg_path", oggPath).Msg("ffmpeg transcode failed")
	} else {
		result.MP3Path = mp3Path
	}

	log.Info().
		Str("ogg_path", result.OggPath).
		Str("mp3_path", result.MP3Path).
		Int("ogg_bytes", len(audio)).
		Msg("Audio synthesized")

	return result, nil
}

func (s *Synthesizer) transcode(ctx context.Context, oggPath string) (string, error) {
	mp3Path := strings.TrimSuffix(oggPath, ".ogg") + ".mp3"

	_, err := extproc.Run(ctx, 2*time.Minute, s.ffmpegPath, "-y", "-i", oggPath, "-acodec", "libmp3lame", mp3Path)
	if err != nil {
		os.Remove(mp3Path)
		return "", err
	}

	info, err := os.Stat(mp3Path)
	if err != nil {
		return "", fmt.Errorf("transcode produced no output: %w", err)
	}
	if info.Size() == 0 {
		os.Remove(mp3Path)
		return "", fmt.Errorf("transcode produced an empty file")
	}
	return mp3Path, nil
}

func writeTemp(pattern string, data []byte) (string, error) {
	f, err := os.CreateTemp("", pattern)
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("failed to write audio file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("failed to close audio file: %w", err)
	}
	return f.Name(), nil
}
