// Package telegram is the secondary submission surface: mission briefs are
// announced to a channel, and replies to an announcement are routed back to
// its mission as submissions.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"github.com/ChoppaTheMegalodon/MissionMonitor/internal/app"
	"github.com/ChoppaTheMegalodon/MissionMonitor/internal/store"
)

type Bot struct {
	api       *tgbotapi.BotAPI
	service   *app.Service
	channelID int64
	log       *logrus.Logger

	stopOnce sync.Once
	done     chan struct{}
	wg       sync.WaitGroup
}

func New(token string, channelID int64, service *app.Service, log *logrus.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create telegram client: %w", err)
	}
	return &Bot{
		api:       api,
		service:   service,
		channelID: channelID,
		log:       log,
		done:      make(chan struct{}),
	}, nil
}

// Start begins long-polling for updates.
func (b *Bot) Start() {
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = 30
	updates := b.api.GetUpdatesChan(cfg)

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		for {
			select {
			case <-b.done:
				return
			case update, ok := <-updates:
				if !ok {
					return
				}
				b.handleUpdate(update)
			}
		}
	}()
	b.log.Info("telegram polling started")
}

func (b *Bot) Stop() {
	b.stopOnce.Do(func() {
		b.api.StopReceivingUpdates()
		close(b.done)
	})
	b.wg.Wait()
}

// Announce posts the mission brief to the configured channel and returns the
// identifiers needed to route replies back to the mission.
func (b *Bot) Announce(_ context.Context, mission store.Mission) (int64, int, error) {
	text := fmt.Sprintf("📣 %s\n\nReply to this message with your entry link to submit.", mission.Title)
	if mission.Description != "" {
		text = fmt.Sprintf("📣 %s\n\n%s\n\nReply to this message with your entry link to submit.", mission.Title, mission.Description)
	}
	sent, err := b.api.Send(tgbotapi.NewMessage(b.channelID, text))
	if err != nil {
		return 0, 0, fmt.Errorf("send announcement: %w", err)
	}
	return sent.Chat.ID, sent.MessageID, nil
}

func (b *Bot) handleUpdate(update tgbotapi.Update) {
	msg := update.Message
	if msg == nil {
		msg = update.ChannelPost
	}
	if msg == nil || msg.ReplyToMessage == nil {
		return
	}

	mission, ok, err := b.service.Store().GetMissionByAnnouncement(msg.Chat.ID, msg.ReplyToMessage.MessageID)
	if err != nil {
		b.log.WithError(err).Error("announcement lookup failed")
		return
	}
	if !ok {
		return // reply to something that is not a mission announcement
	}

	ctx := context.Background()
	_, err = b.service.SubmitEntry(ctx, app.SubmitInput{
		MessageID: messageKey(msg.Chat.ID, msg.MessageID),
		ChannelID: strconv.FormatInt(msg.Chat.ID, 10),
		ThreadID:  mission.ThreadID,
		UserID:    senderID(msg),
		UserTag:   senderTag(msg),
		Content:   msg.Text,
		Source:    store.SourceTelegram,
	})
	if errors.Is(err, app.ErrMissionNotActive) {
		b.replyTo(msg, "This mission is closed and no longer accepts submissions.")
		return
	}
	if err != nil {
		b.log.WithError(err).WithField("chat", msg.Chat.ID).Error("telegram submission intake failed")
		return
	}
	b.replyTo(msg, "Submission recorded ✅")
}

func (b *Bot) replyTo(msg *tgbotapi.Message, text string) {
	reply := tgbotapi.NewMessage(msg.Chat.ID, text)
	reply.ReplyToMessageID = msg.MessageID
	if _, err := b.api.Send(reply); err != nil {
		b.log.WithError(err).Debug("telegram reply failed")
	}
}

// messageKey builds a globally unique message identifier: Telegram message
// IDs are only unique per chat.
func messageKey(chatID int64, messageID int) string {
	return fmt.Sprintf("tg:%d:%d", chatID, messageID)
}

func senderID(msg *tgbotapi.Message) string {
	if msg.From == nil {
		return strconv.FormatInt(msg.Chat.ID, 10)
	}
	return strconv.FormatInt(msg.From.ID, 10)
}

func senderTag(msg *tgbotapi.Message) string {
	if msg.From == nil {
		return msg.Chat.Title
	}
	if msg.From.UserName != "" {
		return msg.From.UserName
	}
	return msg.From.FirstName
}
