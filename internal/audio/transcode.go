// Package audio converts audio payloads between container formats.
package audio

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

// FFmpegTranscoder shells out to ffmpeg to re-encode audio as AAC in an m4a
// container, the format the transcription endpoint accepts most reliably.
type FFmpegTranscoder struct {
	// Binary is the ffmpeg executable, "ffmpeg" by default.
	Binary string
}

// NewFFmpegTranscoder creates a transcoder using the ffmpeg on PATH.
func NewFFmpegTranscoder() *FFmpegTranscoder {
	return &FFmpegTranscoder{Binary: "ffmpeg"}
}

// ToM4A converts the audio payload to an m4a container. hint is the container
// extension of the input, e.g. ".ogg"; ffmpeg needs it to pick a demuxer.
func (t *FFmpegTranscoder) ToM4A(ctx context.Context, audio []byte, hint string) ([]byte, error) {
	if hint == "" {
		hint = ".ogg"
	}

	dir, err := os.MkdirTemp("", "chatgpt-tg-bot-audio-")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	in := filepath.Join(dir, "input"+hint)
	out := filepath.Join(dir, "output.m4a")
	if err := os.WriteFile(in, audio, 0o600); err != nil {
		return nil, fmt.Errorf("failed to write input file: %w", err)
	}

	cmd := exec.CommandContext(ctx, t.Binary, "-y", "-i", in, "-acodec", "aac", out)
	if output, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("ffmpeg failed: %w: %s", err, bytes.TrimSpace(output))
	}

	converted, err := os.ReadFile(out)
	if err != nil {
		return nil, fmt.Errorf("failed to read converted file: %w", err)
	}
	return converted, nil
}
