// Package imagegen provides the Stability AI text-to-image client used to
// render one image per prompt.
package imagegen

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

type Config struct {
	APIKey  string
	BaseURL string
	Engine  string
	Timeout time.Duration
}

type Client struct {
	cfg    Config
	client *http.Client
}

func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.stability.ai"
	}
	if cfg.Engine == "" {
		cfg.Engine = "stable-diffusion-xl-1024-v1-0"
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 120 * time.Second
	}

	return &Client{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
	}
}

type textPrompt struct {
	Text string `json:"text"`
}

type generationRequest struct {
	TextPrompts []textPrompt `json:"text_prompts"`
	Width       int          `json:"width"`
	Height      int          `json:"height"`
	Samples     int          `json:"samples"`
}

type generationResponse struct {
	Artifacts []struct {
		Base64       string `json:"base64"`
		FinishReason string `json:"finishReason"`
	} `json:"artifacts"`
}

// Generate renders one PNG per prompt into outDir, named img_1.png,
// img_2.png, ... in prompt order. Calls are sequential.
func (c *Client) Generate(ctx context.Context, prompts []string, outDir string) ([]string, error) {
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output dir: %w", err)
	}

	imagePaths := make([]string, 0, len(prompts))
	for i, prompt := range prompts {
		data, err := c.generateOne(ctx, prompt)
		if err != nil {
			return nil, fmt.Errorf("image %d: %w", i+1, err)
		}

		imgPath := filepath.Join(outDir, fmt.Sprintf("img_%d.png", i+1))
		if err := os.WriteFile(imgPath, data, 0644); err != nil {
			return nil, fmt.Errorf("failed to write image %d: %w", i+1, err)
		}
		imagePaths = append(imagePaths, imgPath)
	}

	return imagePaths, nil
}

func (c *Client) generateOne(ctx context.Context, prompt string) ([]byte, error) {
	body := generationRequest{
		TextPrompts: []textPrompt{{Text: prompt}},
		Width:       1024,
		Height:      1024,
		Samples:     1,
	}

	payload, _ := json.Marshal(body)
	endpoint := fmt.Sprintf("%s/v1/generation/%s/text-to-image",
		strings.TrimRight(c.cfg.BaseURL, "/"), c.cfg.Engine)

	httpReq, err := http.NewRequestWithContext(ctx, "POST", endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("stability request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		errBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("stability error: status=%d body=%s", resp.StatusCode, string(errBody))
	}

	var gResp generationResponse
	if err := json.NewDecoder(resp.Body).Decode(&gResp); err != nil {
		return nil, err
	}
	if len(gResp.Artifacts) == 0 {
		return nil, fmt.Errorf("stability returned no artifacts")
	}

	data, err := base64.StdEncoding.DecodeString(gResp.Artifacts[0].Base64)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image data: %w", err)
	}
	return data, nil
}
