package consumer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/iris-chat/warden/automod"
	"github.com/iris-chat/warden/automod/moderr"
	"github.com/iris-chat/warden/automod/platform/telegram"
	"github.com/iris-chat/warden/automod/scheduler"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/redis/go-redis/v9"
)

var updateOffsetKey = "warden/update-offset"

// Source of chat updates; satisfied by *telegram.Client.
type UpdateSource interface {
	Start(ctx context.Context, offset, pollTimeout int, handler telegram.UpdateHandler) error
}

// A single engine input derived from a platform update. Exactly one field is set.
type Event struct {
	Message    *automod.Message
	Membership *automod.MembershipEvent
}

func (e Event) key() string {
	if e.Message != nil {
		return scheduler.Key(e.Message.ChatID, e.Message.SenderID)
	}
	return scheduler.Key(e.Membership.ChatID, e.Membership.UserID)
}

type UpdateConsumer struct {
	Parallelism int
	MaxQueue    int
	PollTimeout int
	Logger      *slog.Logger
	RedisClient *redis.Client
	Engine      *automod.Engine
	Source      UpdateSource

	// nextOffset is one past the most recent update ID we've received and begun to handle.
	// This number is periodically persisted to redis, if redis is present, so a restart does not re-process old updates.
	// Handling is concurrent, so this is best-effort; you must use atomics when updating or reading it.
	nextOffset int64
}

func (uc *UpdateConsumer) Run(ctx context.Context) error {
	if uc.Engine == nil {
		return fmt.Errorf("nil engine")
	}
	if uc.Source == nil {
		return fmt.Errorf("nil update source")
	}

	offset, err := uc.ReadLastOffset(ctx)
	if err != nil {
		return err
	}
	atomic.StoreInt64(&uc.nextOffset, offset)

	parallelism := uc.Parallelism
	if parallelism <= 0 {
		parallelism = 8
	}
	sched := scheduler.NewScheduler(parallelism, uc.MaxQueue, "updates", uc.HandleEvent)
	defer sched.Shutdown()
	uc.Logger.Info("update scheduler configured", "workers", parallelism, "maxQueue", uc.MaxQueue, "offset", offset)

	handler := func(ctx context.Context, upd tgbotapi.Update) {
		if next := int64(upd.UpdateID) + 1; next > atomic.LoadInt64(&uc.nextOffset) {
			atomic.StoreInt64(&uc.nextOffset, next)
		}
		for _, evt := range Translate(upd) {
			if err := sched.AddWork(ctx, evt.key(), evt); err != nil {
				uc.Logger.Warn("dropping update", "update", upd.UpdateID, "err", err)
			}
		}
	}
	return uc.Source.Start(ctx, int(offset), uc.PollTimeout, handler)
}

// Converts a platform update into engine events. Updates the engine does not care about translate to nothing.
func Translate(upd tgbotapi.Update) []Event {
	var out []Event
	if m := upd.Message; m != nil && m.Chat != nil {
		for _, u := range m.NewChatMembers {
			out = append(out, Event{Membership: &automod.MembershipEvent{
				ChatID:   m.Chat.ID,
				ChatType: m.Chat.Type,
				UserID:   u.ID,
				Username: displayName(&u),
				IsBot:    u.IsBot,
			}})
		}
		text := m.Text
		if text == "" {
			text = m.Caption
		}
		if m.From != nil && strings.TrimSpace(text) != "" {
			out = append(out, Event{Message: &automod.Message{
				ChatID:      m.Chat.ID,
				ChatType:    m.Chat.Type,
				MessageID:   m.MessageID,
				SenderID:    m.From.ID,
				SenderName:  displayName(m.From),
				SenderIsBot: m.From.IsBot,
				Text:        text,
				At:          time.Unix(int64(m.Date), 0).UTC(),
			}})
		}
	}
	if cm := upd.ChatMember; cm != nil && cm.NewChatMember.User != nil {
		joined := cm.NewChatMember.Status == "member" && cm.OldChatMember.Status != "member"
		if joined {
			u := cm.NewChatMember.User
			out = append(out, Event{Membership: &automod.MembershipEvent{
				ChatID:   cm.Chat.ID,
				ChatType: cm.Chat.Type,
				UserID:   u.ID,
				Username: displayName(u),
				IsBot:    u.IsBot,
			}})
		}
	}
	return out
}

func displayName(u *tgbotapi.User) string {
	if u.UserName != "" {
		return "@" + u.UserName
	}
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// NOTE: this function only returns errors from the engine which are not enforcement failures; those are logged and otherwise ignored.
func (uc *UpdateConsumer) HandleEvent(ctx context.Context, evt Event) error {
	var err error
	var logger *slog.Logger
	if evt.Message != nil {
		logger = uc.Logger.With("event", "message", "chat", evt.Message.ChatID, "user", evt.Message.SenderID)
		_, err = uc.Engine.ProcessMessage(ctx, *evt.Message)
	} else if evt.Membership != nil {
		logger = uc.Logger.With("event", "membership", "chat", evt.Membership.ChatID, "user", evt.Membership.UserID)
		_, err = uc.Engine.ProcessMembership(ctx, *evt.Membership)
	} else {
		return nil
	}
	var ee *moderr.EnforcementError
	if errors.As(err, &ee) {
		logger.Warn("enforcement incomplete", "err", err)
		return nil
	}
	return err
}

func (uc *UpdateConsumer) ReadLastOffset(ctx context.Context) (int64, error) {
	// if redis isn't configured, just skip
	if uc.RedisClient == nil {
		uc.Logger.Info("redis not configured, skipping offset read")
		return 0, nil
	}

	val, err := uc.RedisClient.Get(ctx, updateOffsetKey).Int64()
	if err == redis.Nil {
		uc.Logger.Info("no pre-existing update offset in redis")
		return 0, nil
	} else if err != nil {
		return 0, err
	}
	uc.Logger.Info("successfully found prior update offset in redis", "offset", val)
	return val, nil
}

func (uc *UpdateConsumer) PersistOffset(ctx context.Context) error {
	// if redis isn't configured, just skip
	if uc.RedisClient == nil {
		return nil
	}
	next := atomic.LoadInt64(&uc.nextOffset)
	if next <= 0 {
		return nil
	}
	return uc.RedisClient.Set(ctx, updateOffsetKey, next, 14*24*time.Hour).Err()
}

// this method runs in a loop, persisting the current offset every 5 seconds
func (uc *UpdateConsumer) RunPersistOffset(ctx context.Context) error {

	// if redis isn't configured, just skip
	if uc.RedisClient == nil {
		return nil
	}
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			next := atomic.LoadInt64(&uc.nextOffset)
			if next >= 1 {
				uc.Logger.Info("persisting final update offset", "offset", next)
				// ctx is already cancelled at this point
				if err := uc.PersistOffset(context.Background()); err != nil {
					uc.Logger.Error("failed to persist offset", "err", err, "offset", next)
				}
			}
			return nil
		case <-ticker.C:
			next := atomic.LoadInt64(&uc.nextOffset)
			if next >= 1 {
				if err := uc.PersistOffset(ctx); err != nil {
					uc.Logger.Error("failed to persist offset", "err", err, "offset", next)
				}
			}
		}
	}
}
