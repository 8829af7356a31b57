// Package pipeline chains text enhancement, image generation, speech
// synthesis and video assembly into one job.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// maxPrompts caps how many image prompts are derived from the enhanced text.
const maxPrompts = 3

type Enhancer interface {
	Enhance(ctx context.Context, text string) (string, error)
}

type ImageGenerator interface {
	Generate(ctx context.Context, prompts []string, outDir string) ([]string, error)
}

type SpeechSynthesizer interface {
	SynthesizeToFile(ctx context.Context, text, voice, outPath string) error
}

type Assembler interface {
	Assemble(ctx context.Context, imagePaths []string, audioPath, outPath string, duration int) error
}

// Result is what one pipeline run produces.
type Result struct {
	JobID        string   `json:"job_id"`
	VideoPath    string   `json:"video_path"`
	ImagePaths   []string `json:"image_paths"`
	AudioPath    string   `json:"audio_path"`
	Prompts      []string `json:"prompts"`
	EnhancedText string   `json:"enhanced_text"`
}

type Pipeline struct {
	enhancer  Enhancer
	images    ImageGenerator
	speech    SpeechSynthesizer
	assembler Assembler

	outDir   string
	duration int
	log      *zap.Logger
}

func New(enhancer Enhancer, images ImageGenerator, speech SpeechSynthesizer, assembler Assembler, outDir string, duration int, log *zap.Logger) *Pipeline {
	if duration <= 0 {
		duration = 60
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Pipeline{
		enhancer:  enhancer,
		images:    images,
		speech:    speech,
		assembler: assembler,
		outDir:    outDir,
		duration:  duration,
		log:       log,
	}
}

// ExtractPrompts splits the enhanced text into sentences and turns the
// first few into template-biased image prompts.
func ExtractPrompts(enhanced, template string) []string {
	var prompts []string
	for _, line := range strings.Split(enhanced, ".") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		prompts = append(prompts, fmt.Sprintf("%s educational image: %s", template, line))
		if len(prompts) == maxPrompts {
			break
		}
	}
	return prompts
}

// Run executes the full pipeline in a fresh job directory under outDir.
func (p *Pipeline) Run(ctx context.Context, text, template, voice string) (*Result, error) {
	jobID := uuid.New().String()
	jobDir := filepath.Join(p.outDir, jobID)
	if err := os.MkdirAll(jobDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create job dir: %w", err)
	}

	log := p.log.With(zap.String("job_id", jobID))

	enhanced, err := p.enhancer.Enhance(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("text enhancement failed: %w", err)
	}
	log.Info("text enhanced", zap.Int("chars", len(enhanced)))

	prompts := ExtractPrompts(enhanced, template)
	if len(prompts) == 0 {
		return nil, fmt.Errorf("enhanced text produced no image prompts")
	}

	imagePaths, err := p.images.Generate(ctx, prompts, jobDir)
	if err != nil {
		return nil, fmt.Errorf("image generation failed: %w", err)
	}
	log.Info("images generated", zap.Int("count", len(imagePaths)))

	audioPath := filepath.Join(jobDir, "audio.mp3")
	if err := p.speech.SynthesizeToFile(ctx, enhanced, voice, audioPath); err != nil {
		return nil, fmt.Errorf("audio synthesis failed: %w", err)
	}
	log.Info("audio synthesized", zap.String("path", audioPath))

	videoPath := filepath.Join(jobDir, "video.mp4")
	if err := p.assembler.Assemble(ctx, imagePaths, audioPath, videoPath, p.duration); err != nil {
		return nil, fmt.Errorf("video assembly failed: %w", err)
	}
	log.Info("video assembled", zap.String("path", videoPath))

	return &Result{
		JobID:        jobID,
		VideoPath:    videoPath,
		ImagePaths:   imagePaths,
		AudioPath:    audioPath,
		Prompts:      prompts,
		EnhancedText: enhanced,
	}, nil
}
