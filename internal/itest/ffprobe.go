//go:build integration

package itest

import (
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

type probeResult struct {
	Width    int
	Height   int
	Duration float64
	HasAudio bool
}

func probe(mp4Path string) (probeResult, error) {
	cmd := exec.Command("ffprobe",
		"-v", "error",
		"-show_entries", "stream=codec_type,width,height:format=duration",
		"-of", "json",
		mp4Path,
	)
	b, err := cmd.CombinedOutput()
	if err != nil {
		return probeResult{}, fmt.Errorf("ffprobe: %w\n%s", err, string(b))
	}

	var raw struct {
		Streams []struct {
			CodecType string `json:"codec_type"`
			Width     int    `json:"width"`
			Height    int    `json:"height"`
		} `json:"streams"`
		Format struct {
			Duration string `json:"duration"`
		} `json:"format"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return probeResult{}, fmt.Errorf("parse ffprobe output: %w", err)
	}

	var res probeResult
	for _, s := range raw.Streams {
		switch s.CodecType {
		case "video":
			res.Width, res.Height = s.Width, s.Height
		case "audio":
			res.HasAudio = true
		}
	}
	d := strings.TrimSpace(raw.Format.Duration)
	res.Duration, err = strconv.ParseFloat(d, 64)
	if err != nil {
		return probeResult{}, fmt.Errorf("parse duration %q: %w", d, err)
	}
	return res, nil
}
