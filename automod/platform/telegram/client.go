// Telegram Bot API implementation of the platform interface.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/iris-chat/warden/automod/platform"
	"github.com/iris-chat/warden/util"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/time/rate"
)

// Bot API global limit is about 30 requests per second.
const defaultRequestRate = 25

type UpdateHandler func(context.Context, tgbotapi.Update)

type Client struct {
	api    *tgbotapi.BotAPI
	logger *slog.Logger
	dryRun bool
	botID  int64
	// outbound action limiter; polling is not limited
	limiter *rate.Limiter
}

var _ platform.Platform = (*Client)(nil)

// With an empty token the client runs in dry mode: actions are logged and nothing is sent.
//
// An empty endpoint uses the public Bot API.
func NewClient(token, endpoint string, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("system", "telegram")

	if strings.TrimSpace(token) == "" {
		return &Client{
			logger:  logger,
			dryRun:  true,
			limiter: rate.NewLimiter(rate.Inf, 1),
		}, nil
	}
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}

	api, err := tgbotapi.NewBotAPIWithClient(token, endpoint, util.RobustHTTPClient(90*time.Second))
	if err != nil {
		return nil, fmt.Errorf("connecting to telegram: %w", err)
	}
	return &Client{
		api:     api,
		logger:  logger,
		botID:   api.Self.ID,
		limiter: rate.NewLimiter(rate.Limit(defaultRequestRate), defaultRequestRate),
	}, nil
}

// Account ID of the bot itself, or zero in dry mode.
func (c *Client) BotID() int64 {
	return c.botID
}

func (c *Client) DryRun() bool {
	return c.dryRun
}

// Long-polls for updates starting at "offset" (the next update ID wanted; 0 for whatever the server still holds) and calls handler for each, until ctx is done.
func (c *Client) Start(ctx context.Context, offset, pollTimeout int, handler UpdateHandler) error {
	if handler == nil {
		return errors.New("telegram update handler is required")
	}
	if c.dryRun {
		c.logger.Warn("telegram token is empty, running in dry mode")
		<-ctx.Done()
		return nil
	}

	if pollTimeout <= 0 {
		pollTimeout = 30
	}
	updateConfig := tgbotapi.NewUpdate(offset)
	updateConfig.Timeout = pollTimeout
	updateConfig.AllowedUpdates = []string{"message", "chat_member", "my_chat_member"}
	updates := c.api.GetUpdatesChan(updateConfig)

	for {
		select {
		case <-ctx.Done():
			c.api.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			handler(ctx, update)
		}
	}
}

func (c *Client) request(ctx context.Context, op string, cfg tgbotapi.Chattable) error {
	if c.dryRun {
		c.logger.Info("dry run", "op", op)
		return nil
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("telegram %s: %w", op, err)
	}
	_, err := c.api.Request(cfg)
	if err != nil {
		return fmt.Errorf("telegram %s: %w", op, err)
	}
	return nil
}

func (c *Client) DeleteMessage(ctx context.Context, chatID int64, messageID int) error {
	return c.request(ctx, "deleteMessage", tgbotapi.NewDeleteMessage(chatID, messageID))
}

var (
	mutedPermissions = tgbotapi.ChatPermissions{}
	openPermissions  = tgbotapi.ChatPermissions{
		CanSendMessages:       true,
		CanSendMediaMessages:  true,
		CanSendPolls:          true,
		CanSendOtherMessages:  true,
		CanAddWebPagePreviews: true,
		CanInviteUsers:        true,
	}
)

func (c *Client) RestrictUser(ctx context.Context, chatID, userID int64, until *time.Time) error {
	perms := mutedPermissions
	cfg := tgbotapi.RestrictChatMemberConfig{
		ChatMemberConfig: tgbotapi.ChatMemberConfig{ChatID: chatID, UserID: userID},
		Permissions:      &perms,
	}
	// zero means forever
	if until != nil {
		cfg.UntilDate = until.Unix()
	}
	return c.request(ctx, "restrictChatMember", cfg)
}

func (c *Client) LiftRestriction(ctx context.Context, chatID, userID int64) error {
	perms := openPermissions
	cfg := tgbotapi.RestrictChatMemberConfig{
		ChatMemberConfig: tgbotapi.ChatMemberConfig{ChatID: chatID, UserID: userID},
		Permissions:      &perms,
	}
	return c.request(ctx, "restrictChatMember", cfg)
}

func (c *Client) BanUser(ctx context.Context, chatID, userID int64) error {
	cfg := tgbotapi.BanChatMemberConfig{
		ChatMemberConfig: tgbotapi.ChatMemberConfig{ChatID: chatID, UserID: userID},
	}
	return c.request(ctx, "banChatMember", cfg)
}

func (c *Client) UnbanUser(ctx context.Context, chatID, userID int64) error {
	cfg := tgbotapi.UnbanChatMemberConfig{
		ChatMemberConfig: tgbotapi.ChatMemberConfig{ChatID: chatID, UserID: userID},
		OnlyIfBanned:     true,
	}
	return c.request(ctx, "unbanChatMember", cfg)
}

func (c *Client) SendNotice(ctx context.Context, chatID int64, text string) error {
	if c.dryRun {
		c.logger.Info("dry run notice", "chat", chatID, "text", text)
		return nil
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("telegram sendMessage: %w", err)
	}
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := c.api.Send(msg); err != nil {
		return fmt.Errorf("telegram sendMessage: %w", err)
	}
	return nil
}

func (c *Client) SetChatLocked(ctx context.Context, chatID int64, locked bool) error {
	perms := openPermissions
	if locked {
		perms = mutedPermissions
	}
	cfg := tgbotapi.SetChatPermissionsConfig{
		ChatConfig:  tgbotapi.ChatConfig{ChatID: chatID},
		Permissions: &perms,
	}
	return c.request(ctx, "setChatPermissions", cfg)
}

func (c *Client) IsChatAdmin(ctx context.Context, chatID, userID int64) (bool, error) {
	if c.dryRun {
		return false, nil
	}
	member, err := c.api.GetChatMember(tgbotapi.GetChatMemberConfig{
		ChatConfigWithUser: tgbotapi.ChatConfigWithUser{ChatID: chatID, UserID: userID},
	})
	if err != nil {
		return false, fmt.Errorf("telegram getChatMember: %w", err)
	}
	return member.IsAdministrator() || member.IsCreator(), nil
}

func (c *Client) ListAdmins(ctx context.Context, chatID int64) ([]platform.Member, error) {
	if c.dryRun {
		return nil, nil
	}
	admins, err := c.api.GetChatAdministrators(tgbotapi.ChatAdministratorsConfig{
		ChatConfig: tgbotapi.ChatConfig{ChatID: chatID},
	})
	if err != nil {
		return nil, fmt.Errorf("telegram getChatAdministrators: %w", err)
	}
	out := make([]platform.Member, 0, len(admins))
	for _, a := range admins {
		if a.User == nil {
			continue
		}
		out = append(out, platform.Member{
			UserID:   a.User.ID,
			Username: a.User.UserName,
			IsBot:    a.User.IsBot,
		})
	}
	return out, nil
}
