// Package transcriber provides speech-to-text providers: remote batch
// upload, remote streaming, and a local whisper.cpp CLI.
package transcriber

import (
	"context"
	"fmt"
	"os"
)

// Request carries one finished recording to a provider. WAV holds the
// in-memory container; Path is set instead when the provider requires a
// file on disk.
type Request struct {
	WAV      []byte
	Path     string
	Model    string
	Language string
}

type Provider interface {
	Name() string
	SupportsStreaming() bool
	// RequiresFile reports whether Transcribe needs Request.Path instead of
	// Request.WAV.
	RequiresFile() bool
	Transcribe(ctx context.Context, req Request) (string, error)
}

type StreamConfig struct {
	SampleRate int
	Channels   int
	Model      string
	Language   string
}

// StreamSession is a live provider socket spanning one recording. Updates
// carries partial transcripts with superseded-replace semantics.
type StreamSession interface {
	Feed(pcm []byte)
	Updates() <-chan string
	// Finalize flushes buffered audio, waits for the remote side to commit,
	// and returns the aggregated transcript.
	Finalize(ctx context.Context) (string, error)
	// Abandon tears the session down and discards any result.
	Abandon()
}

// Streamer is implemented by providers with a streaming endpoint.
type Streamer interface {
	Provider
	OpenStream(ctx context.Context, cfg StreamConfig) StreamSession
}

// New builds the provider named by configuration, or picks the first one
// with a usable credential when name is empty.
func New(name string) (Provider, error) {
	dgKey := os.Getenv("DEEPGRAM_API_KEY")
	groqKey := os.Getenv("GROQ_API_KEY")

	switch name {
	case "deepgram":
		if dgKey == "" {
			return nil, fmt.Errorf("deepgram: DEEPGRAM_API_KEY not set")
		}
		return NewDeepgram(dgKey), nil
	case "groq":
		if groqKey == "" {
			return nil, fmt.Errorf("groq: GROQ_API_KEY not set")
		}
		return NewGroq(groqKey), nil
	case "whispercpp":
		return NewWhisperCpp()
	case "":
		if dgKey != "" {
			return NewDeepgram(dgKey), nil
		}
		if groqKey != "" {
			return NewGroq(groqKey), nil
		}
		if w, err := NewWhisperCpp(); err == nil {
			return w, nil
		}
		return nil, fmt.Errorf("set DEEPGRAM_API_KEY or GROQ_API_KEY, or install whisper.cpp")
	default:
		return nil, fmt.Errorf("unknown provider %q", name)
	}
}
