package transcriber

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
)

const (
	groqAPIURL       = "https://api.groq.com/openai/v1/audio/transcriptions"
	groqDefaultModel = "whisper-large-v3-turbo"
)

type Groq struct {
	apiKey string
}

func NewGroq(apiKey string) *Groq {
	return &Groq{apiKey: apiKey}
}

func (g *Groq) Name() string { return "groq" }

func (g *Groq) SupportsStreaming() bool { return false }

func (g *Groq) RequiresFile() bool { return false }

type groqResponse struct {
	Text string `json:"text"`
}

func (g *Groq) Transcribe(ctx context.Context, req Request) (string, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", "audio.wav")
	if err != nil {
		return "", err
	}
	if _, err := part.Write(req.WAV); err != nil {
		return "", err
	}

	model := req.Model
	if model == "" {
		model = groqDefaultModel
	}
	writer.WriteField("model", model)
	writer.WriteField("response_format", "json")
	if req.Language != "" {
		writer.WriteField("language", req.Language)
	}
	writer.Close()

	httpReq, err := http.NewRequestWithContext(ctx, "POST", groqAPIURL, &body)
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Authorization", "Bearer "+g.apiKey)
	httpReq.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := httpClient().Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("groq request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("groq response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("groq API error %d: %s", resp.StatusCode, string(respBody))
	}

	var gResp groqResponse
	if err := json.Unmarshal(respBody, &gResp); err != nil {
		return "", fmt.Errorf("groq response parse error: %w", err)
	}
	return strings.TrimSpace(gResp.Text), nil
}
