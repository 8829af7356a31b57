// Package tts provides the ElevenLabs text-to-speech client.
package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

type Client struct {
	cfg    Config
	client *http.Client
}

func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("elevenlabs API key not set")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.elevenlabs.io"
	}
	if cfg.Model == "" {
		cfg.Model = "eleven_multilingual_v2"
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}

	return &Client{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
	}, nil
}

type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Style           float64 `json:"style"`
	UseSpeakerBoost bool    `json:"use_speaker_boost"`
}

type ttsRequest struct {
	Text          string        `json:"text"`
	VoiceSettings voiceSettings `json:"voice_settings"`
	ModelID       string        `json:"model_id"`
}

// Synthesize converts text to speech and returns the audio stream. The
// caller owns the returned reader.
func (c *Client) Synthesize(ctx context.Context, text, voice string) (io.ReadCloser, error) {
	body := ttsRequest{
		Text: text,
		VoiceSettings: voiceSettings{
			Stability:       0.5,
			SimilarityBoost: 0.5,
			Style:           0.5,
			UseSpeakerBoost: true,
		},
		ModelID: c.cfg.Model,
	}

	payload, _ := json.Marshal(body)
	endpoint := fmt.Sprintf("%s/v1/text-to-speech/%s", strings.TrimRight(c.cfg.BaseURL, "/"), voice)

	httpReq, err := http.NewRequestWithContext(ctx, "POST", endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("xi-api-key", c.cfg.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs request failed: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		errBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("TTS API error: status=%d body=%s", resp.StatusCode, string(errBody))
	}

	return resp.Body, nil
}

// SynthesizeToFile writes the synthesized audio to outPath.
func (c *Client) SynthesizeToFile(ctx context.Context, text, voice, outPath string) error {
	audio, err := c.Synthesize(ctx, text, voice)
	if err != nil {
		return err
	}
	defer audio.Close()

	file, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("failed to create audio file: %w", err)
	}
	defer file.Close()

	if _, err := io.Copy(file, audio); err != nil {
		return fmt.Errorf("failed to write audio file: %w", err)
	}
	return nil
}
