package ytdlp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
)

// maxStderrBytes is the tail of yt-dlp's stderr kept for error messages.
const maxStderrBytes = 4 * 1024

type Adapter struct {
	bin          string
	allowedHosts []string
}

func New(binPath string, allowedHosts []string) *Adapter {
	if binPath == "" {
		binPath = "yt-dlp"
	}
	return &Adapter{bin: binPath, allowedHosts: allowedHosts}
}

// Download saves the best single-file mp4 rendition of url to outPath,
// falling back to the best merged stream remuxed to mp4.
func (a *Adapter) Download(ctx context.Context, url, outPath string) error {
	if err := ValidateSourceURL(url, a.allowedHosts); err != nil {
		return err
	}

	stderr := &limitedWriter{w: &bytes.Buffer{}, limit: maxStderrBytes}
	cmd := exec.CommandContext(ctx, a.bin, downloadArgs(url, outPath)...)
	cmd.Stderr = stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("yt-dlp: %w\n%s", err, stderr.w.String())
	}

	st, err := os.Stat(outPath)
	if err != nil {
		return fmt.Errorf("yt-dlp produced no file: %w", err)
	}
	if st.Size() == 0 {
		return errors.New("yt-dlp produced an empty file")
	}
	return nil
}

func downloadArgs(url, outPath string) []string {
	return []string{
		"-f", "best[ext=mp4]/bestvideo[ext=mp4]+bestaudio[ext=m4a]/best",
		"--merge-output-format", "mp4",
		"--no-playlist",
		"--no-progress",
		"-q",
		"--force-overwrites",
		"-o", outPath,
		"--",
		url,
	}
}

// limitedWriter keeps only the last limit bytes written to it.
type limitedWriter struct {
	w     *bytes.Buffer
	limit int
}

func (lw *limitedWriter) Write(p []byte) (int, error) {
	n := len(p)
	lw.w.Write(p)
	if lw.w.Len() > lw.limit {
		b := lw.w.Bytes()
		keep := append([]byte(nil), b[len(b)-lw.limit:]...)
		lw.w.Reset()
		lw.w.Write(keep)
	}
	return n, nil
}
