package transcribing_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"vigil/internal/logging"
	"vigil/internal/testsupport"
	"vigil/internal/transcribing"
	"vigil/internal/transcript"
)

func writeFootage(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "footage.mp4")
	if err := os.WriteFile(path, []byte("not a real video"), 0o644); err != nil {
		t.Fatalf("write footage: %v", err)
	}
	return path
}

func TestExecuteProducesTranscriptArtifact(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithTranscriberModel(filepath.Join(t.TempDir(), "model.bin")))
	store := testsupport.MustOpenStore(t, cfg)
	source := writeFootage(t, t.TempDir())

	handler := transcribing.New(cfg, store, logging.NewNop())
	handler.Service().WithCommandRunner(func(_ context.Context, name string, args ...string) error {
		if name == cfg.Transcriber.FFmpegBinary {
			return os.WriteFile(args[len(args)-1], []byte("RIFF"), 0o644)
		}
		// whisper-cli writes <output-file>.json
		var prefix string
		for i, arg := range args {
			if arg == "--output-file" && i+1 < len(args) {
				prefix = args[i+1]
			}
		}
		payload, _ := json.Marshal(map[string]any{
			"transcription": []map[string]any{
				{"offsets": map[string]int64{"from": 0, "to": 4000}, "text": " Dispatch, show me arriving on scene."},
			},
		})
		return os.WriteFile(prefix+".json", payload, 0o644)
	})

	run := testsupport.NewRun(t, store, source, "Shift 21")
	if err := handler.Prepare(context.Background(), run); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if err := handler.Execute(context.Background(), run); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if run.AudioFile == "" {
		t.Fatal("expected extracted audio path on run")
	}
	utterances, err := transcript.Unmarshal(run.TranscriptJSON)
	if err != nil {
		t.Fatalf("Unmarshal transcript: %v", err)
	}
	if len(utterances) != 1 {
		t.Fatalf("utterance count = %d, want 1", len(utterances))
	}
	if got := utterances[0].Text; got != "Dispatch, show me arriving on scene." {
		t.Fatalf("utterance text = %q", got)
	}
}

func TestExecuteAllowsSilentFootage(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithTranscriberModel(filepath.Join(t.TempDir(), "model.bin")))
	store := testsupport.MustOpenStore(t, cfg)
	source := writeFootage(t, t.TempDir())

	handler := transcribing.New(cfg, store, logging.NewNop())
	handler.Service().WithCommandRunner(func(_ context.Context, name string, args ...string) error {
		if name == cfg.Transcriber.FFmpegBinary {
			return os.WriteFile(args[len(args)-1], []byte("RIFF"), 0o644)
		}
		var prefix string
		for i, arg := range args {
			if arg == "--output-file" && i+1 < len(args) {
				prefix = args[i+1]
			}
		}
		return os.WriteFile(prefix+".json", []byte(`{"transcription":[]}`), 0o644)
	})

	run := testsupport.NewRun(t, store, source, "")
	if err := handler.Execute(context.Background(), run); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	utterances, err := transcript.Unmarshal(run.TranscriptJSON)
	if err != nil {
		t.Fatalf("Unmarshal transcript: %v", err)
	}
	if len(utterances) != 0 {
		t.Fatalf("utterance count = %d, want 0", len(utterances))
	}
}

func TestPrepareRejectsMissingSource(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	handler := transcribing.New(cfg, store, logging.NewNop())
	run := testsupport.NewRun(t, store, filepath.Join(t.TempDir(), "absent.mp4"), "")
	err := handler.Prepare(context.Background(), run)
	if err == nil {
		t.Fatal("expected error for missing source footage")
	}
	if !strings.Contains(err.Error(), "not readable") {
		t.Fatalf("error = %v, want unreadable source detail", err)
	}
}
