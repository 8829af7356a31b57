// Package ffmpeg assembles still images and narration audio into an mp4
// by shelling out to the ffmpeg binary.
package ffmpeg

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

type Assembler struct {
	binary string
}

func NewAssembler(binary string) *Assembler {
	if binary == "" {
		binary = "ffmpeg"
	}
	return &Assembler{binary: binary}
}

// frameArgs builds the argv for the frames-to-video pass. Images are picked
// up via the img_%d.png pattern in the directory of the first image.
func frameArgs(imageDir string, imgDuration int, tmpPath string) []string {
	pattern := filepath.Join(imageDir, "img_%d.png")
	return []string{
		"-y",
		"-framerate", fmt.Sprintf("1/%d", imgDuration),
		"-i", pattern,
		"-c:v", "libx264",
		"-r", "30",
		"-pix_fmt", "yuv420p",
		tmpPath,
	}
}

// muxArgs builds the argv for the audio mux pass.
func muxArgs(tmpPath, audioPath, outPath string) []string {
	return []string{
		"-y",
		"-i", tmpPath,
		"-i", audioPath,
		"-c:v", "copy",
		"-c:a", "aac",
		"-shortest",
		outPath,
	}
}

// perImageDuration splits the total duration evenly across the images,
// flooring at one second per frame.
func perImageDuration(duration, imageCount int) int {
	d := duration / imageCount
	if d < 1 {
		d = 1
	}
	return d
}

// Assemble renders imagePaths into a silent video, muxes audioPath on top
// and writes the result to outPath. The total duration is split evenly
// across the images; the intermediate file is removed afterwards.
func (a *Assembler) Assemble(ctx context.Context, imagePaths []string, audioPath, outPath string, duration int) error {
	if len(imagePaths) == 0 {
		return fmt.Errorf("no images to assemble")
	}

	imgDuration := perImageDuration(duration, len(imagePaths))

	tmpPath := strings.TrimSuffix(outPath, ".mp4") + "_tmp.mp4"
	defer os.Remove(tmpPath)

	imageDir := filepath.Dir(imagePaths[0])

	if err := a.run(ctx, frameArgs(imageDir, imgDuration, tmpPath)); err != nil {
		return fmt.Errorf("frames to video failed: %w", err)
	}

	if err := a.run(ctx, muxArgs(tmpPath, audioPath, outPath)); err != nil {
		return fmt.Errorf("audio mux failed: %w", err)
	}

	return nil
}

func (a *Assembler) run(ctx context.Context, args []string) error {
	cmd := exec.CommandContext(ctx, a.binary, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s: %s", err.Error(), stderr.String())
	}
	return nil
}
