package transcriber

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// WhisperCpp runs the whisper.cpp CLI against a recording on disk. No
// network, no credentials; useful offline and as a fallback provider.
type WhisperCpp struct {
	bin   string
	model string
}

func NewWhisperCpp() (*WhisperCpp, error) {
	bin := os.Getenv("MUTTER_WHISPER_BIN")
	if bin == "" {
		for _, candidate := range []string{"whisper-cli", "whisper-cpp"} {
			if path, err := exec.LookPath(candidate); err == nil {
				bin = path
				break
			}
		}
	}
	if bin == "" {
		return nil, fmt.Errorf("whispercpp: binary not found, set MUTTER_WHISPER_BIN")
	}

	model := os.Getenv("MUTTER_WHISPER_MODEL")
	if model == "" {
		return nil, fmt.Errorf("whispercpp: MUTTER_WHISPER_MODEL not set")
	}
	if _, err := os.Stat(model); err != nil {
		return nil, fmt.Errorf("whispercpp: model file: %w", err)
	}

	return &WhisperCpp{bin: bin, model: model}, nil
}

func (w *WhisperCpp) Name() string { return "whispercpp" }

func (w *WhisperCpp) SupportsStreaming() bool { return false }

func (w *WhisperCpp) RequiresFile() bool { return true }

func (w *WhisperCpp) Transcribe(ctx context.Context, req Request) (string, error) {
	if req.Path == "" {
		return "", fmt.Errorf("whispercpp: no input file")
	}

	args := []string{
		"-m", w.model,
		"-f", req.Path,
		"--no-prints",
		"--no-timestamps",
	}
	if req.Language != "" {
		args = append(args, "-l", req.Language)
	}

	cmd := exec.CommandContext(ctx, w.bin, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return "", fmt.Errorf("whispercpp: %s", msg)
	}

	return strings.TrimSpace(stdout.String()), nil
}
