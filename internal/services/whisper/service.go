package whisper

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"vigil/internal/transcript"
)

// Default command names for external tools.
const (
	DefaultBinary       = "whisper-cli"
	DefaultFFmpegBinary = "ffmpeg"
)

// Config captures runtime settings for whisper.cpp transcription.
type Config struct {
	// Binary is the whisper.cpp CLI executable.
	Binary string
	// ModelPath points at the ggml model file.
	ModelPath string
	// FFmpegBinary extracts audio from source footage.
	FFmpegBinary string
	// Language is the spoken language hint ("auto" lets the model detect).
	Language string
}

// Service runs local whisper.cpp transcription over extracted audio.
type Service struct {
	cfg           Config
	commandRunner func(ctx context.Context, name string, args ...string) error
}

// NewService creates a transcription service with the given configuration.
func NewService(cfg Config) *Service {
	if cfg.Binary == "" {
		cfg.Binary = DefaultBinary
	}
	if cfg.FFmpegBinary == "" {
		cfg.FFmpegBinary = DefaultFFmpegBinary
	}
	return &Service{cfg: cfg}
}

// WithCommandRunner sets a custom command runner (for testing).
func (s *Service) WithCommandRunner(runner func(ctx context.Context, name string, args ...string) error) {
	s.commandRunner = runner
}

// ModelPath returns the configured model file for logging.
func (s *Service) ModelPath() string {
	return s.cfg.ModelPath
}

// HealthCheck verifies both external binaries resolve on PATH.
func (s *Service) HealthCheck() error {
	if _, err := exec.LookPath(s.cfg.Binary); err != nil {
		return fmt.Errorf("whisper binary %q not found: %w", s.cfg.Binary, err)
	}
	if _, err := exec.LookPath(s.cfg.FFmpegBinary); err != nil {
		return fmt.Errorf("ffmpeg binary %q not found: %w", s.cfg.FFmpegBinary, err)
	}
	return nil
}

// ExtractAudio extracts the audio stream from source footage into a mono
// 16kHz WAV file, the input format whisper.cpp expects.
func (s *Service) ExtractAudio(ctx context.Context, source, dest string) error {
	args := []string{
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-i", source,
		"-vn",
		"-sn",
		"-dn",
		"-ac", "1",
		"-ar", "16000",
		"-c:a", "pcm_s16le",
		dest,
	}
	if err := s.run(ctx, s.cfg.FFmpegBinary, args...); err != nil {
		return fmt.Errorf("ffmpeg extract: %w", err)
	}
	return nil
}

// Transcribe runs whisper.cpp over a WAV file and returns timestamped
// utterances. outputDir receives the intermediate JSON artifact.
func (s *Service) Transcribe(ctx context.Context, wavPath, outputDir string) ([]transcript.Utterance, error) {
	if wavPath == "" {
		return nil, fmt.Errorf("transcribe: source path required")
	}
	if s.cfg.ModelPath == "" {
		return nil, fmt.Errorf("transcribe: model path required")
	}
	if outputDir == "" {
		outputDir = filepath.Dir(wavPath)
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("transcribe: ensure output dir: %w", err)
	}

	base := strings.TrimSuffix(filepath.Base(wavPath), filepath.Ext(wavPath))
	outputPrefix := filepath.Join(outputDir, base)

	args := []string{
		"-m", s.cfg.ModelPath,
		"-f", wavPath,
		"--output-json",
		"--output-file", outputPrefix,
		"--no-prints",
	}
	if lang := strings.TrimSpace(s.cfg.Language); lang != "" {
		args = append(args, "--language", lang)
	}
	if err := s.run(ctx, s.cfg.Binary, args...); err != nil {
		return nil, fmt.Errorf("whisper: %w", err)
	}

	return LoadUtterances(outputPrefix + ".json")
}

func (s *Service) run(ctx context.Context, name string, args ...string) error {
	if s.commandRunner != nil {
		return s.commandRunner(ctx, name, args...)
	}
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(output)))
	}
	return nil
}

// whisperPayload is the JSON structure written by whisper.cpp with
// --output-json. Offsets are milliseconds from the start of the audio.
type whisperPayload struct {
	Transcription []struct {
		Offsets struct {
			From int64 `json:"from"`
			To   int64 `json:"to"`
		} `json:"offsets"`
		Text    string `json:"text"`
		Speaker string `json:"speaker"`
	} `json:"transcription"`
}

// LoadUtterances parses a whisper.cpp JSON output file into normalized
// utterances. Blank segments are dropped.
func LoadUtterances(jsonPath string) ([]transcript.Utterance, error) {
	data, err := os.ReadFile(jsonPath)
	if err != nil {
		return nil, fmt.Errorf("read whisper json: %w", err)
	}
	return ParseUtterances(data)
}

// ParseUtterances decodes whisper.cpp JSON output bytes.
func ParseUtterances(data []byte) ([]transcript.Utterance, error) {
	var payload whisperPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("parse whisper json: %w", err)
	}

	utterances := make([]transcript.Utterance, 0, len(payload.Transcription))
	for _, seg := range payload.Transcription {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		utterances = append(utterances, transcript.Utterance{
			Start:   time.Duration(seg.Offsets.From) * time.Millisecond,
			End:     time.Duration(seg.Offsets.To) * time.Millisecond,
			Speaker: strings.TrimSpace(seg.Speaker),
			Text:    text,
		})
	}
	return transcript.Normalize(utterances), nil
}
