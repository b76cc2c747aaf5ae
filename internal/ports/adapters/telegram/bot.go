// Package telegram is the bot transport: it turns chat messages into
// pipeline requests and reports progress and clips back to the chat.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/forPelevin/shortsbot/internal/logging"
	"github.com/forPelevin/shortsbot/internal/ports"
	"github.com/forPelevin/shortsbot/internal/usecase"
)

const pollTimeout = 60

type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type fileResolver interface {
	GetFileDirectURL(fileID string) (string, error)
}

// Runner executes one request. usecase.Usecase satisfies it.
type Runner interface {
	Run(ctx context.Context, in usecase.Input) (usecase.Result, error)
}

type Config struct {
	Token string
	// MaxConcurrent caps in-flight requests. Zero means unlimited.
	MaxConcurrent  int
	RequestTimeout time.Duration
	HTTPClient     *http.Client
	Logger         *slog.Logger
}

type Bot struct {
	api    *tgbotapi.BotAPI
	send   sender
	files  fileResolver
	runner Runner
	cfg    Config
	log    *slog.Logger
}

// New authenticates against the Bot API and returns a bot ready to poll.
func New(cfg Config, runner Runner) (*Bot, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram: token is required")
	}
	api, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("telegram: connect: %s", logging.Redact(err.Error(), cfg.Token))
	}
	b := newBot(api, api, runner, cfg)
	b.api = api
	b.log.Info("authorized", "username", api.Self.UserName)
	return b, nil
}

func newBot(s sender, files fileResolver, runner Runner, cfg Config) *Bot {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}
	log := cfg.Logger
	if log == nil {
		log = logging.Discard()
	}
	return &Bot{
		send:   s,
		files:  files,
		runner: runner,
		cfg:    cfg,
		log:    logging.WithComponent(log, "telegram"),
	}
}

// Run long-polls for updates until ctx is done, handling each update in its
// own goroutine. It waits for in-flight requests before returning.
func (b *Bot) Run(ctx context.Context) error {
	if b.api == nil {
		return errors.New("telegram: bot not connected")
	}
	u := tgbotapi.NewUpdate(0)
	u.Timeout = pollTimeout
	updates := b.api.GetUpdatesChan(u)
	return b.serve(ctx, updates, b.api.StopReceivingUpdates)
}

func (b *Bot) serve(ctx context.Context, updates <-chan tgbotapi.Update, stop func()) error {
	var g errgroup.Group
	if b.cfg.MaxConcurrent > 0 {
		g.SetLimit(b.cfg.MaxConcurrent)
	}

	b.log.Info("polling for updates", "max_concurrent", b.cfg.MaxConcurrent)
	for {
		select {
		case <-ctx.Done():
			stop()
			b.log.Info("shutting down, waiting for in-flight requests")
			return g.Wait()
		case upd, ok := <-updates:
			if !ok {
				return g.Wait()
			}
			g.Go(func() error {
				b.handleUpdate(ctx, upd)
				return nil
			})
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, upd tgbotapi.Update) {
	msg := upd.Message
	if msg == nil || msg.Chat == nil {
		return
	}
	chatID := msg.Chat.ID
	log := logging.WithChatID(b.log, chatID)

	switch {
	case msg.IsCommand():
		text := helpText
		if msg.Command() == "start" {
			text = startText
		}
		b.sendMarkdown(log, chatID, text)
	case msg.Video != nil:
		b.process(ctx, log, chatID, sourceUpload, "", b.uploadOf(msg.Video.FileID))
	case msg.Document != nil && strings.HasPrefix(msg.Document.MimeType, "video/"):
		b.process(ctx, log, chatID, sourceUpload, "", b.uploadOf(msg.Document.FileID))
	case strings.TrimSpace(msg.Text) != "":
		b.process(ctx, log, chatID, sourceLink, strings.TrimSpace(msg.Text), nil)
	}
}

func (b *Bot) uploadOf(fileID string) upload {
	return upload{fileID: fileID, files: b.files, client: b.cfg.HTTPClient, token: b.cfg.Token}
}

func (b *Bot) process(ctx context.Context, log *slog.Logger, chatID int64, src sourceKind, url string, up ports.Fetcher) {
	if b.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.cfg.RequestTimeout)
		defer cancel()
	}

	in := usecase.Input{RequestID: uuid.NewString(), URL: url, Upload: up}
	log = logging.WithRequestID(log, in.RequestID)
	in.Emit = func(ctx context.Context, ev usecase.Event) {
		if ev.Kind == usecase.KindClipReady && ev.Clip != nil {
			b.sendClip(log, chatID, ev.Clip.Index, ev.Clip.Path, Caption(ev.Clip.Index, ev.Clip.Moment))
			return
		}
		if text, ok := progressText(ev, src, url); ok {
			b.sendText(log, chatID, text)
		}
	}

	log.Info("request accepted", "link", src == sourceLink)
	res, err := b.runner.Run(ctx, in)
	if err != nil {
		log.Error("request failed", "error", err)
		return
	}
	log.Info("request finished", "clips", len(res.Clips), "failed", len(res.Failures))
}

func (b *Bot) sendText(log *slog.Logger, chatID int64, text string) {
	if _, err := b.send.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		log.Warn("send message failed", "error", logging.Redact(err.Error(), b.cfg.Token))
	}
}

func (b *Bot) sendMarkdown(log *slog.Logger, chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	if _, err := b.send.Send(msg); err != nil {
		log.Warn("send message failed", "error", logging.Redact(err.Error(), b.cfg.Token))
	}
}

func (b *Bot) sendClip(log *slog.Logger, chatID int64, idx int, path, caption string) {
	v := tgbotapi.NewVideo(chatID, tgbotapi.FilePath(path))
	v.Caption = caption
	v.ParseMode = tgbotapi.ModeMarkdown
	v.SupportsStreaming = true
	if _, err := b.send.Send(v); err != nil {
		log.Error("send clip failed", "index", idx, "error", logging.Redact(err.Error(), b.cfg.Token))
		return
	}
	log.Info("clip delivered", "index", idx)
}
