package transcriber

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const (
	deepgramAPIURL       = "https://api.deepgram.com/v1/listen"
	deepgramDefaultModel = "nova-3"
)

type Deepgram struct {
	apiKey string
}

func NewDeepgram(apiKey string) *Deepgram {
	return &Deepgram{apiKey: apiKey}
}

func (d *Deepgram) Name() string { return "deepgram" }

func (d *Deepgram) SupportsStreaming() bool { return true }

func (d *Deepgram) RequiresFile() bool { return false }

type deepgramResponse struct {
	Results struct {
		Channels []struct {
			Alternatives []struct {
				Transcript string `json:"transcript"`
			} `json:"alternatives"`
		} `json:"channels"`
	} `json:"results"`
}

func (d *Deepgram) Transcribe(ctx context.Context, req Request) (string, error) {
	model := req.Model
	if model == "" {
		model = deepgramDefaultModel
	}
	url := deepgramAPIURL + "?model=" + model
	if req.Language != "" {
		url += "&language=" + req.Language
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(req.WAV))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Authorization", "Token "+d.apiKey)
	httpReq.Header.Set("Content-Type", "audio/wav")

	resp, err := httpClient().Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("deepgram request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("deepgram response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("deepgram API error %d: %s", resp.StatusCode, string(respBody))
	}

	var dgResp deepgramResponse
	if err := json.Unmarshal(respBody, &dgResp); err != nil {
		return "", fmt.Errorf("deepgram response parse error: %w", err)
	}

	var text string
	if len(dgResp.Results.Channels) > 0 && len(dgResp.Results.Channels[0].Alternatives) > 0 {
		text = dgResp.Results.Channels[0].Alternatives[0].Transcript
	}
	return strings.TrimSpace(text), nil
}

// OpenStream dials the live endpoint in the background; connection errors
// surface at Finalize.
func (d *Deepgram) OpenStream(ctx context.Context, cfg StreamConfig) StreamSession {
	return newStreamSession(func() (rawStream, error) {
		return d.dialStream(ctx, cfg)
	})
}
