package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/neuroti/Psi/internal/app"
	"github.com/neuroti/Psi/internal/config"
	"github.com/neuroti/Psi/internal/logging"
	"github.com/neuroti/Psi/internal/metrics"
	"github.com/neuroti/Psi/internal/recipe"
	"github.com/neuroti/Psi/internal/wellness"
)

const (
	// albumWindow is how long photos of one album are collected before the
	// fridge scan starts. Telegram delivers album photos as separate updates.
	albumWindow    = 2 * time.Second
	requestTimeout = 90 * time.Second
)

// Service is the part of app.App the bot drives.
type Service interface {
	AnalyzeFoodImage(ctx context.Context, req app.FoodRequest) (*app.FoodAnalysis, error)
	DetectFridgeIngredients(ctx context.Context, req app.FridgeRequest) (*app.FridgeScan, error)
	CheckWellness(ctx context.Context, req app.WellnessRequest) (*app.WellnessReport, error)
	EmotionTrends(ctx context.Context, userID, period string) (*wellness.Trends, error)
	GetRecipe(ctx context.Context, id string) (*recipe.Recipe, error)
}

// RecipeImporter saves a recipe from a web page.
type RecipeImporter interface {
	Import(ctx context.Context, url string) (*recipe.Recipe, error)
}

// botAPI is the subset of tgbotapi.BotAPI the bot uses.
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetFileDirectURL(fileID string) (string, error)
	HandleUpdate(r *http.Request) (*tgbotapi.Update, error)
}

// Bot wraps the Telegram API around the analysis service.
type Bot struct {
	api          botAPI
	service      Service
	importer     RecipeImporter
	metricsStore *metrics.Store
	cfg          *config.Config
	httpClient   *http.Client
	albums       *albumCollector
}

// NewBot initializes the Telegram Bot and sets the Webhook.
func NewBot(cfg *config.Config, service Service, importer RecipeImporter, metricsStore *metrics.Store) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(cfg.Telegram.BotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to init telegram api: %w", err)
	}
	logging.Info().Str("account", api.Self.UserName).Msg("telegram bot authorized")

	wh, err := tgbotapi.NewWebhook(cfg.Telegram.WebhookURL)
	if err != nil {
		return nil, fmt.Errorf("failed to build webhook for %s: %w", cfg.Telegram.WebhookURL, err)
	}
	resp, err := api.Request(wh)
	if err != nil {
		return nil, fmt.Errorf("failed to set webhook to %s: %w", cfg.Telegram.WebhookURL, err)
	}
	logging.Info().Str("description", resp.Description).Msg("webhook set")

	return newBot(api, cfg, service, importer, metricsStore), nil
}

func newBot(api botAPI, cfg *config.Config, service Service, importer RecipeImporter, metricsStore *metrics.Store) *Bot {
	b := &Bot{
		api:          api,
		service:      service,
		importer:     importer,
		metricsStore: metricsStore,
		cfg:          cfg,
		httpClient:   &http.Client{Timeout: 30 * time.Second},
	}
	b.albums = newAlbumCollector(albumWindow, b.handleAlbum)
	return b
}

// RegisterHandlers registers the webhook handler with mux.
func (b *Bot) RegisterHandlers(mux *http.ServeMux) {
	mux.HandleFunc("/webhook", b.handleWebhook)
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
}

func (b *Bot) handleWebhook(w http.ResponseWriter, r *http.Request) {
	update, err := b.api.HandleUpdate(r)
	if err != nil {
		logging.Warn().Err(err).Msg("failed to parse telegram update")
		return
	}
	if update.Message == nil || update.Message.From == nil {
		return
	}
	if !b.isAllowed(update.Message.From.ID) {
		logging.Warn().
			Int64("telegram_id", update.Message.From.ID).
			Str("username", update.Message.From.UserName).
			Msg("unauthorized access attempt")
		return
	}

	go b.processMessage(update.Message)
}

// isAllowed accepts everyone when no allow list is configured.
func (b *Bot) isAllowed(id int64) bool {
	if len(b.cfg.Telegram.AllowedUserIDs) == 0 {
		return true
	}
	for _, allowed := range b.cfg.Telegram.AllowedUserIDs {
		if id == allowed {
			return true
		}
	}
	return false
}

func (b *Bot) processMessage(msg *tgbotapi.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	if len(msg.Photo) > 0 {
		b.handlePhoto(ctx, msg)
		return
	}

	command, args := splitCommand(msg.Text)
	switch command {
	case "/start", "/help":
		b.reply(msg.Chat.ID, helpText)
	case "/wellness":
		b.handleWellness(ctx, msg, args)
	case "/trends":
		b.handleTrends(ctx, msg, args)
	case "/recipe":
		b.handleRecipe(ctx, msg, args)
	case "/metrics":
		b.handleMetricsRequest(ctx, msg)
	default:
		if strings.HasPrefix(msg.Text, "http://") || strings.HasPrefix(msg.Text, "https://") {
			b.handleImport(ctx, msg)
			return
		}
		b.reply(msg.Chat.ID, helpText)
	}
}

const helpText = "📸 Send a photo of your meal for a nutrition analysis.\n" +
	"Add `hrv hr` as caption (e.g. `45 80`) to include your wearable readings.\n\n" +
	"🧊 Send an album of fridge photos, or one photo captioned `/fridge`, for recipe ideas.\n\n" +
	"💓 `/wellness [hrv hr]` - wellness check\n" +
	"📈 `/trends [week|month|year]` - emotion trends\n" +
	"📖 `/recipe <id>` - show a recipe\n" +
	"🔗 Send a recipe URL to import it."

const biometricsHelp = "❌ Please provide both HRV and heart rate as numbers, e.g. `45 80`."

func (b *Bot) handlePhoto(ctx context.Context, msg *tgbotapi.Message) {
	fileID := msg.Photo[len(msg.Photo)-1].FileID
	command, args := splitCommand(msg.Caption)

	if msg.MediaGroupID != "" {
		b.albums.add(msg.MediaGroupID, msg.Chat.ID, msg.From.ID, fileID, msg.Caption)
		return
	}
	if command == "/fridge" {
		b.runFridgeScan(ctx, msg.Chat.ID, msg.From.ID, []string{fileID}, args)
		return
	}

	image, err := b.download(ctx, fileID)
	if err != nil {
		logging.Error().Err(err).Msg("failed to download photo")
		b.reply(msg.Chat.ID, "❌ Could not download your photo. Please try again.")
		return
	}

	// A free-text caption is not an error; the meal is analyzed without readings.
	variability, rate, err := parseBiometrics(strings.Fields(msg.Caption))
	if err != nil {
		logging.Debug().Err(err).Str("caption", msg.Caption).Msg("caption carries no biometrics")
	}

	result, err := b.service.AnalyzeFoodImage(ctx, app.FoodRequest{
		UserID:      userID(msg.From.ID),
		Image:       image,
		Filename:    fileID + ".jpg",
		Variability: variability,
		Rate:        rate,
	})
	if err != nil {
		b.replyError(msg.Chat.ID, err)
		return
	}
	b.reply(msg.Chat.ID, formatFoodAnalysis(result))
}

func (b *Bot) handleAlbum(a *album) {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	_, args := splitCommand(a.caption)
	b.runFridgeScan(ctx, a.chatID, a.fromID, a.fileIDs, args)
}

func (b *Bot) runFridgeScan(ctx context.Context, chatID, fromID int64, fileIDs []string, args []string) {
	images := make([][]byte, 0, len(fileIDs))
	for _, id := range fileIDs {
		img, err := b.download(ctx, id)
		if err != nil {
			logging.Error().Err(err).Msg("failed to download fridge photo")
			b.reply(chatID, "❌ Could not download your photos. Please try again.")
			return
		}
		images = append(images, img)
	}

	variability, rate, err := parseBiometrics(args)
	if err != nil {
		b.reply(chatID, biometricsHelp)
		return
	}

	scan, err := b.service.DetectFridgeIngredients(ctx, app.FridgeRequest{
		UserID:      userID(fromID),
		Images:      images,
		Variability: variability,
		Rate:        rate,
	})
	if err != nil {
		b.replyError(chatID, err)
		return
	}
	b.reply(chatID, formatFridgeScan(scan))
}

func (b *Bot) handleWellness(ctx context.Context, msg *tgbotapi.Message, args []string) {
	variability, rate, err := parseBiometrics(args)
	if err != nil {
		b.reply(msg.Chat.ID, biometricsHelp)
		return
	}
	report, err := b.service.CheckWellness(ctx, app.WellnessRequest{
		UserID:      userID(msg.From.ID),
		Variability: variability,
		Rate:        rate,
	})
	if err != nil {
		b.replyError(msg.Chat.ID, err)
		return
	}
	b.reply(msg.Chat.ID, formatWellness(report))
}

func (b *Bot) handleTrends(ctx context.Context, msg *tgbotapi.Message, args []string) {
	period := "week"
	if len(args) > 0 {
		period = strings.ToLower(args[0])
	}
	trends, err := b.service.EmotionTrends(ctx, userID(msg.From.ID), period)
	if err != nil {
		b.replyError(msg.Chat.ID, err)
		return
	}
	b.reply(msg.Chat.ID, formatTrends(trends))
}

func (b *Bot) handleRecipe(ctx context.Context, msg *tgbotapi.Message, args []string) {
	if len(args) == 0 {
		b.reply(msg.Chat.ID, "Usage: `/recipe <id>`")
		return
	}
	rec, err := b.service.GetRecipe(ctx, args[0])
	if err != nil {
		b.replyError(msg.Chat.ID, err)
		return
	}
	b.reply(msg.Chat.ID, formatRecipe(rec))
}

func (b *Bot) handleImport(ctx context.Context, msg *tgbotapi.Message) {
	if b.importer == nil {
		b.reply(msg.Chat.ID, helpText)
		return
	}
	rec, err := b.importer.Import(ctx, strings.TrimSpace(msg.Text))
	if err != nil {
		logging.Warn().Err(err).Str("url", msg.Text).Msg("recipe import failed")
		b.reply(msg.Chat.ID, "❌ Could not find a recipe on that page.")
		return
	}
	b.reply(msg.Chat.ID, fmt.Sprintf("✅ *Recipe Saved!*\n\n*%s*\nID: `%s`", rec.Name, rec.ID))
}

func (b *Bot) handleMetricsRequest(ctx context.Context, msg *tgbotapi.Message) {
	if b.cfg.Telegram.AdminID == 0 || msg.From.ID != b.cfg.Telegram.AdminID {
		b.reply(msg.Chat.ID, "⛔ *Access Denied*: Admin only.")
		return
	}
	if b.metricsStore == nil {
		b.reply(msg.Chat.ID, "❌ Metrics are not enabled.")
		return
	}

	usage, err := b.metricsStore.GetDailyUsage(ctx, 7)
	if err != nil {
		logging.Error().Err(err).Msg("failed to fetch metrics")
		b.reply(msg.Chat.ID, "❌ Error fetching metrics.")
		return
	}
	health := metrics.GetSysHealth(b.cfg.Database.Path, b.cfg.Cache.Dir)
	b.reply(msg.Chat.ID, formatMetrics(usage, health))
}

// download fetches a Telegram file, refusing anything above the image limit.
func (b *Bot) download(ctx context.Context, fileID string) ([]byte, error) {
	url, err := b.api.GetFileDirectURL(fileID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve file url: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download file: status %d", resp.StatusCode)
	}

	limit := b.cfg.Limits.MaxImageBytes
	if limit <= 0 {
		return io.ReadAll(resp.Body)
	}
	// One byte past the limit lets validation report the file as too large.
	return io.ReadAll(io.LimitReader(resp.Body, limit+1))
}

func (b *Bot) reply(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = "Markdown"
	if _, err := b.api.Send(msg); err != nil {
		logging.Warn().Err(err).Int64("chat_id", chatID).Msg("failed to send reply")
	}
}

// replyError shows the user-facing message of an app error. Anything else
// is logged and reported generically.
func (b *Bot) replyError(chatID int64, err error) {
	var appErr *app.Error
	if errors.As(err, &appErr) {
		logging.Warn().Err(appErr.Err).Str("code", appErr.Code).Msg("request failed")
		b.reply(chatID, "❌ "+appErr.Message)
		return
	}
	logging.Error().Err(err).Msg("request failed")
	b.reply(chatID, "❌ Something went wrong. Please try again later.")
}

func userID(telegramID int64) string {
	return strconv.FormatInt(telegramID, 10)
}

// splitCommand separates a leading /command (without any @botname suffix)
// from its arguments.
func splitCommand(text string) (string, []string) {
	fields := strings.Fields(text)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return "", fields
	}
	command, _, _ := strings.Cut(strings.ToLower(fields[0]), "@")
	return command, fields[1:]
}

// parseBiometrics reads optional "hrv hr" values. No values is valid.
func parseBiometrics(args []string) (*float64, *float64, error) {
	if len(args) == 0 {
		return nil, nil, nil
	}
	if len(args) != 2 {
		return nil, nil, fmt.Errorf("expected 2 readings, got %d", len(args))
	}
	hrv, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid hrv %q: %w", args[0], err)
	}
	hr, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid heart rate %q: %w", args[1], err)
	}
	return &hrv, &hr, nil
}

type album struct {
	chatID  int64
	fromID  int64
	caption string
	fileIDs []string
}

// albumCollector groups photos by media group and hands each group to flush
// once its window has passed.
type albumCollector struct {
	mu      sync.Mutex
	window  time.Duration
	pending map[string]*album
	flush   func(*album)
}

func newAlbumCollector(window time.Duration, flush func(*album)) *albumCollector {
	return &albumCollector{window: window, pending: make(map[string]*album), flush: flush}
}

func (c *albumCollector) add(groupID string, chatID, fromID int64, fileID, caption string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	a, ok := c.pending[groupID]
	if !ok {
		a = &album{chatID: chatID, fromID: fromID}
		c.pending[groupID] = a
		time.AfterFunc(c.window, func() {
			c.mu.Lock()
			delete(c.pending, groupID)
			c.mu.Unlock()
			c.flush(a)
		})
	}
	if a.caption == "" {
		a.caption = caption
	}
	a.fileIDs = append(a.fileIDs, fileID)
}
