package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/phuslu/log"
	"github.com/robfig/cron/v3"

	"FinVision/internal/dashboard"
	"FinVision/internal/model"
	"FinVision/internal/notifier"
)

// Dashboard is the orchestrator surface the bot and the digest drive.
type Dashboard interface {
	View() dashboard.View
	Select(id model.AssetID) dashboard.View
	Resolve(ctx context.Context) dashboard.View
	Refresh(ctx context.Context) (dashboard.View, error)
	Lookup(ctx context.Context, id model.AssetID) dashboard.View
	AnalyzeImage(ctx context.Context, image []byte, mimeType string) (dashboard.View, error)
}

// Bot sends messages to the configured chat and downloads uploads.
type Bot interface {
	Send(ctx context.Context, text string) error
	DownloadFile(ctx context.Context, fileID string) ([]byte, string, error)
}

// digestWait bounds how long the digest waits for each asset. Fetches that
// outlive it still complete and populate the cache.
const digestWait = 2 * time.Minute

// Scheduler manages the digest cron task and answers bot messages.
type Scheduler struct {
	Cron      *cron.Cron
	Dashboard Dashboard
	Bot       Bot
	Ctx       context.Context

	now func() time.Time
}

// NewScheduler creates a new Scheduler.
func NewScheduler(ctx context.Context, d Dashboard, bot Bot) *Scheduler {
	return &Scheduler{
		Cron:      cron.New(cron.WithSeconds()),
		Dashboard: d,
		Bot:       bot,
		Ctx:       ctx,
		now:       time.Now,
	}
}

// RegisterDigest schedules the daily digest.
func (s *Scheduler) RegisterDigest(spec string) error {
	if _, err := s.Cron.AddFunc(spec, s.digestTask); err != nil {
		return fmt.Errorf("register digest task: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	log.Info().Int("entries", len(s.Cron.Entries())).Msg("scheduler started")
}

// Stop stops the cron scheduler and waits for running jobs.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	log.Info().Msg("scheduler stopped")
}

// RunDigestNow executes the digest immediately (for manual trigger / RUN_ON_START).
func (s *Scheduler) RunDigestNow() {
	s.digestTask()
}

func (s *Scheduler) digestTask() {
	log.Info().Msg("running digest task")
	s.trySend(s.digest(s.Ctx))
}

// digest looks up every standard asset without touching the selection.
func (s *Scheduler) digest(ctx context.Context) string {
	views := make([]dashboard.View, 0, len(model.Standard()))
	for _, id := range model.Standard() {
		lctx, cancel := context.WithTimeout(ctx, digestWait)
		v := s.Dashboard.Lookup(lctx, id)
		cancel()
		log.Debug().Str("asset", string(id)).Str("status", string(v.Status)).Msg("digest lookup")
		views = append(views, v)
	}
	return notifier.FormatDigest(views, s.now())
}

// HandleMessage processes a bot message and returns an HTML reply.
func (s *Scheduler) HandleMessage(ctx context.Context, msg notifier.Message) string {
	if msg.HasImage() {
		return s.handleImage(ctx, msg)
	}
	return s.HandleCommand(ctx, msg.Text)
}

// HandleCommand processes a text command and returns a reply.
func (s *Scheduler) HandleCommand(ctx context.Context, command string) string {
	cmd := strings.ToLower(strings.TrimSpace(command))
	// Group chats address commands as /cmd@botname.
	if i := strings.Index(cmd, "@"); i > 0 {
		cmd = cmd[:i]
	}

	switch cmd {
	case "/refresh":
		v, err := s.Dashboard.Refresh(ctx)
		if err != nil {
			log.Error().Err(err).Msg("refresh")
		}
		return notifier.FormatView(v)
	case "/view":
		return notifier.FormatView(s.Dashboard.Resolve(ctx))
	case "/digest":
		return s.digest(ctx)
	case "/help", "/start":
		return notifier.FormatHelp()
	}

	id, err := model.ParseAssetID(cmd)
	if err != nil {
		return notifier.FormatHelp()
	}
	s.Dashboard.Select(id)
	return notifier.FormatView(s.Dashboard.Resolve(ctx))
}

func (s *Scheduler) handleImage(ctx context.Context, msg notifier.Message) string {
	data, mimeType, err := s.Bot.DownloadFile(ctx, msg.FileID)
	if err != nil {
		log.Error().Err(err).Str("file", msg.FileID).Msg("download chart image")
		return "❌ Could not download the image. Please send it again."
	}
	if msg.MimeType != "" && !strings.HasPrefix(mimeType, "image/") {
		mimeType = msg.MimeType
	}

	v, err := s.Dashboard.AnalyzeImage(ctx, data, mimeType)
	if errors.Is(err, model.ErrBusy) {
		return "⏳ A chart is already being analyzed. Please wait for it to finish."
	}
	return notifier.FormatView(v)
}

func (s *Scheduler) trySend(text string) {
	if err := s.Bot.Send(s.Ctx, text); err != nil {
		log.Error().Err(err).Msg("send notification")
	}
}
