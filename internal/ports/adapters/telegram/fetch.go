package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/forPelevin/shortsbot/internal/logging"
)

// upload fetches a file the user sent to the bot.
type upload struct {
	fileID string
	files  fileResolver
	client *http.Client
	token  string
}

func (u upload) Fetch(ctx context.Context, dst string) error {
	url, err := u.files.GetFileDirectURL(u.fileID)
	if err != nil {
		return u.redact("resolve telegram file", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return u.redact("build telegram file request", err)
	}
	resp, err := u.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return u.redact("download telegram file", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download telegram file: status %d", resp.StatusCode)
	}

	f, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create %s: %w", dst, err)
	}
	n, copyErr := io.Copy(f, resp.Body)
	closeErr := f.Close()
	if copyErr != nil {
		return fmt.Errorf("write %s: %w", dst, copyErr)
	}
	if closeErr != nil {
		return fmt.Errorf("close %s: %w", dst, closeErr)
	}
	if n == 0 {
		return errors.New("download telegram file: empty body")
	}
	return nil
}

// File URLs embed the bot token.
func (u upload) redact(op string, err error) error {
	return fmt.Errorf("%s: %s", op, logging.Redact(err.Error(), u.token))
}
