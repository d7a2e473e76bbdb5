package notifications

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/agnosto/autoposter/config"
	"github.com/agnosto/autoposter/core"
	"github.com/agnosto/autoposter/logger"
	"github.com/gen2brain/beeep"
	"github.com/sirupsen/logrus"
)

const (
	defaultTelegramAPI = "https://api.telegram.org"
	excerptLength      = 120

	colorPublished = 3066993  // Green
	colorFailed    = 15158332 // Red
)

type NotificationService struct {
	config      config.NotificationsConfig
	client      *http.Client
	log         logrus.FieldLogger
	telegramAPI string
	now         func() time.Time
	notify      func(title, message, icon string) error
}

type Option func(*NotificationService)

func WithHTTPClient(c *http.Client) Option {
	return func(ns *NotificationService) { ns.client = c }
}

func WithLogger(l logrus.FieldLogger) Option {
	return func(ns *NotificationService) { ns.log = l }
}

// WithTelegramAPI points the Telegram calls at another bot API host.
func WithTelegramAPI(base string) Option {
	return func(ns *NotificationService) { ns.telegramAPI = strings.TrimSuffix(base, "/") }
}

// WithSystemNotifier replaces the desktop notification call.
func WithSystemNotifier(fn func(title, message, icon string) error) Option {
	return func(ns *NotificationService) { ns.notify = fn }
}

func NewNotificationService(cfg config.NotificationsConfig, opts ...Option) *NotificationService {
	ns := &NotificationService{
		config:      cfg,
		client:      &http.Client{Timeout: 10 * time.Second},
		telegramAPI: defaultTelegramAPI,
		now:         time.Now,
		notify:      func(title, message, icon string) error { return beeep.Notify(title, message, icon) },
	}
	for _, opt := range opts {
		opt(ns)
	}
	ns.log = logger.Or(ns.log)
	return ns
}

// NotifyPublished reports an executed schedule.
func (ns *NotificationService) NotifyPublished(post *core.Post, schedule *core.Schedule) {
	if !ns.config.Enabled || !ns.config.NotifyOnSuccess {
		return
	}
	message := fmt.Sprintf("Post published: %s", excerpt(post))
	ns.send("Autoposter: post published", message, colorPublished, post, schedule)
}

// NotifyFailed reports a failed schedule with the recorded reason.
func (ns *NotificationService) NotifyFailed(post *core.Post, schedule *core.Schedule, reason string) {
	if !ns.config.Enabled || !ns.config.NotifyOnFailure {
		return
	}
	message := fmt.Sprintf("Post failed: %s\nReason: %s", excerpt(post), reason)
	ns.send("Autoposter: post failed", message, colorFailed, post, schedule)
}

func (ns *NotificationService) send(title, message string, color int, post *core.Post, schedule *core.Schedule) {
	var imageURL string
	if post != nil {
		imageURL = post.Content.ImageURL
	}

	if ns.config.SystemNotify {
		ns.sendSystemNotification(message, title)
	}

	if ns.config.DiscordWebhook != "" {
		if err := ns.sendDiscordNotification(title, message, color, schedule, imageURL); err != nil {
			ns.log.WithError(err).Warn("Failed to send Discord notification")
		}
	}

	if ns.config.TelegramBotToken != "" && ns.config.TelegramChatID != "" {
		if err := ns.sendTelegramNotification(message, imageURL); err != nil {
			ns.log.WithError(err).Warn("Failed to send Telegram notification")
		}
	}
}

func excerpt(post *core.Post) string {
	if post == nil {
		return "(post unavailable)"
	}
	text := strings.Join(strings.Fields(post.Content.Text), " ")
	if utf8.RuneCountInString(text) <= excerptLength {
		return text
	}
	return string([]rune(text)[:excerptLength]) + "…"
}

func (ns *NotificationService) sendSystemNotification(message, title string) {
	if err := ns.notify(title, message, ""); err != nil {
		ns.log.WithError(err).Warn("Failed to send system notification")
	}
}

type discordEmbed struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Color       int    `json:"color"`
	Timestamp   string `json:"timestamp"`
	Footer      struct {
		Text string `json:"text"`
	} `json:"footer"`
	Image *struct {
		URL string `json:"url"`
	} `json:"image,omitempty"`
}

type discordWebhookPayload struct {
	Content string         `json:"content"`
	Embeds  []discordEmbed `json:"embeds"`
}

func (ns *NotificationService) sendDiscordNotification(title, message string, color int, schedule *core.Schedule, imageURL string) error {
	var content string
	if ns.config.DiscordMentionID != "" {
		if roleID, found := strings.CutPrefix(ns.config.DiscordMentionID, "role:"); found {
			content = fmt.Sprintf("<@&%s>", roleID)
		} else {
			content = fmt.Sprintf("<@%s>", ns.config.DiscordMentionID)
		}
	}

	embed := discordEmbed{
		Title:       title,
		Description: message,
		Color:       color,
		Timestamp:   ns.now().Format(time.RFC3339),
	}
	if schedule != nil {
		embed.Footer.Text = fmt.Sprintf("Schedule ID: %s", schedule.ID)
	}
	if imageURL != "" {
		embed.Image = &struct {
			URL string `json:"url"`
		}{URL: imageURL}
	}

	return ns.postJSON(ns.config.DiscordWebhook, discordWebhookPayload{
		Content: content,
		Embeds:  []discordEmbed{embed},
	})
}

// sendTelegramNotification uses sendPhoto when the post carries an image URL
// and sendMessage otherwise.
func (ns *NotificationService) sendTelegramNotification(message, imageURL string) error {
	escaped := html.EscapeString(message)
	if imageURL != "" {
		url := fmt.Sprintf("%s/bot%s/sendPhoto", ns.telegramAPI, ns.config.TelegramBotToken)
		return ns.postJSON(url, map[string]string{
			"chat_id":    ns.config.TelegramChatID,
			"photo":      imageURL,
			"caption":    escaped,
			"parse_mode": "HTML",
		})
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", ns.telegramAPI, ns.config.TelegramBotToken)
	return ns.postJSON(url, map[string]string{
		"chat_id":    ns.config.TelegramChatID,
		"text":       escaped,
		"parse_mode": "HTML",
	})
}

func (ns *NotificationService) postJSON(url string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	resp, err := ns.client.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("endpoint returned status %d", resp.StatusCode)
	}
	return nil
}
