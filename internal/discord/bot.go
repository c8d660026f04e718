// Package discord adapts Discord gateway events onto the core service:
// thread messages become submissions, keycap reactions become judge votes,
// and mission threads are closed by archiving and locking them.
package discord

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/sirupsen/logrus"

	"github.com/ChoppaTheMegalodon/MissionMonitor/internal/app"
	"github.com/ChoppaTheMegalodon/MissionMonitor/internal/brief"
	"github.com/ChoppaTheMegalodon/MissionMonitor/internal/store"
)

const threadArchiveMinutes = 10080 // one week, the longest Discord allows

// Announcer posts a mission announcement on the secondary surface and
// returns the chat and message identifiers for reply routing. Optional.
type Announcer interface {
	Announce(ctx context.Context, mission store.Mission) (chatID int64, messageID int, err error)
}

type Config struct {
	GuildID             string
	SubmissionChannelID string
	JudgeRoleID         string
	DefaultMissionHours int
}

type Bot struct {
	session   *discordgo.Session
	service   *app.Service
	briefs    *brief.Service // may be nil or unconfigured
	announcer Announcer      // may be nil
	cfg       Config
	log       *logrus.Logger
}

func New(token string, cfg Config, service *app.Service, briefs *brief.Service, announcer Announcer, log *logrus.Logger) (*Bot, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildMessageReactions |
		discordgo.IntentMessageContent

	b := &Bot{
		session:   session,
		service:   service,
		briefs:    briefs,
		announcer: announcer,
		cfg:       cfg,
		log:       log,
	}
	session.AddHandler(b.onMessageCreate)
	session.AddHandler(b.onReactionAdd)
	session.AddHandler(b.onReactionRemove)
	return b, nil
}

func (b *Bot) Start() error {
	if err := b.session.Open(); err != nil {
		return fmt.Errorf("open discord gateway: %w", err)
	}
	b.log.Info("discord gateway connected")
	return nil
}

func (b *Bot) Close() error {
	return b.session.Close()
}

// CloseThread archives and locks a mission thread so no further messages
// arrive. Consumed by the deadline sweeper.
func (b *Bot) CloseThread(_ context.Context, threadID string) error {
	archived := true
	locked := true
	_, err := b.session.ChannelEdit(threadID, &discordgo.ChannelEdit{
		Archived: &archived,
		Locked:   &locked,
	})
	if err != nil {
		return fmt.Errorf("archive thread %s: %w", threadID, err)
	}
	return nil
}

func (b *Bot) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot {
		return
	}

	if m.ChannelID == b.cfg.SubmissionChannelID && strings.HasPrefix(m.Content, "!mission ") {
		b.handleMissionCommand(m)
		return
	}

	ch, err := b.channel(m.ChannelID)
	if err != nil {
		b.log.WithError(err).WithField("channel", m.ChannelID).Warn("channel lookup failed")
		return
	}
	if !ch.IsThread() || ch.ParentID != b.cfg.SubmissionChannelID {
		return
	}

	if strings.HasPrefix(m.Content, "!deadline ") {
		b.handleDeadlineCommand(m)
		return
	}

	// Submissions need a link; chatter in the thread is left alone.
	if len(app.ExtractURLs(m.Content)) == 0 {
		return
	}

	ctx := context.Background()
	_, err = b.service.SubmitEntry(ctx, app.SubmitInput{
		MessageID:       m.ID,
		ChannelID:       m.ChannelID,
		ThreadID:        ch.ID,
		ThreadTitle:     ch.Name,
		UserID:          m.Author.ID,
		UserTag:         m.Author.String(),
		Content:         m.Content,
		Source:          store.SourceDiscord,
		DefaultDeadline: time.Now().Add(time.Duration(b.cfg.DefaultMissionHours) * time.Hour),
	})
	if errors.Is(err, app.ErrMissionNotActive) {
		b.reply(m, "This mission is closed and no longer accepts submissions.")
		return
	}
	if err != nil {
		b.log.WithError(err).WithField("message", m.ID).Error("submission intake failed")
		b.reply(m, "Something went wrong recording your submission, please try again.")
		return
	}
	if err := s.MessageReactionAdd(m.ChannelID, m.ID, "✅"); err != nil {
		b.log.WithError(err).Debug("ack reaction failed")
	}
}

func (b *Bot) onReactionAdd(s *discordgo.Session, r *discordgo.MessageReactionAdd) {
	score, ok := scoreForEmoji(r.Emoji.Name)
	if !ok {
		return
	}
	if !b.isJudge(r.GuildID, r.UserID, r.Member) {
		return
	}

	err := b.service.RecordVote(context.Background(), r.MessageID, r.UserID, score)
	if errors.Is(err, store.ErrSubmissionNotFound) {
		return // reaction on a non-submission message
	}
	if err != nil {
		b.log.WithError(err).WithFields(logrus.Fields{"message": r.MessageID, "judge": r.UserID}).Error("vote record failed")
	}
}

func (b *Bot) onReactionRemove(s *discordgo.Session, r *discordgo.MessageReactionRemove) {
	if _, ok := scoreForEmoji(r.Emoji.Name); !ok {
		return
	}
	// Removal events carry no member payload; resolve the roles explicitly.
	if !b.isJudge(r.GuildID, r.UserID, nil) {
		return
	}

	err := b.service.RemoveVote(context.Background(), r.MessageID, r.UserID)
	if errors.Is(err, store.ErrSubmissionNotFound) {
		return
	}
	if err != nil {
		b.log.WithError(err).WithFields(logrus.Fields{"message": r.MessageID, "judge": r.UserID}).Error("vote removal failed")
	}
}

// isJudge resolves whether the user carries the judge role. Authorization
// lives here at the adapter boundary; the core trusts its callers.
func (b *Bot) isJudge(guildID, userID string, member *discordgo.Member) bool {
	if b.cfg.JudgeRoleID == "" {
		return false
	}
	if member == nil {
		var err error
		member, err = b.session.GuildMember(guildID, userID)
		if err != nil {
			b.log.WithError(err).WithField("user", userID).Warn("member lookup failed")
			return false
		}
	}
	for _, role := range member.Roles {
		if role == b.cfg.JudgeRoleID {
			return true
		}
	}
	return false
}

// handleMissionCommand creates a mission thread from "!mission <topic> | <hours>".
func (b *Bot) handleMissionCommand(m *discordgo.MessageCreate) {
	topic, hours, err := parseMissionCommand(m.Content, b.cfg.DefaultMissionHours)
	if err != nil {
		b.reply(m, err.Error())
		return
	}

	ctx := context.Background()
	title := topic
	body := ""
	if b.briefs.Configured() {
		generated, err := b.briefs.Generate(ctx, topic)
		if err != nil {
			b.log.WithError(err).Warn("brief generation failed, using topic as title")
		} else {
			title = generated.Title
			body = generated.Body
		}
	}

	thread, err := b.session.ThreadStart(m.ChannelID, title, discordgo.ChannelTypeGuildPublicThread, threadArchiveMinutes)
	if err != nil {
		b.log.WithError(err).Error("thread creation failed")
		b.reply(m, "Could not create the mission thread.")
		return
	}

	deadline := time.Now().Add(time.Duration(hours) * time.Hour)
	mission, err := b.service.CreateMission(thread.ID, title, body, deadline)
	if err != nil {
		b.log.WithError(err).Error("mission registration failed")
		b.reply(m, "Thread created but the mission could not be registered.")
		return
	}

	intro := fmt.Sprintf("**%s**\n\nPost your entry as a link in this thread before <t:%d:f>.", title, deadline.Unix())
	if body != "" {
		intro = fmt.Sprintf("**%s**\n\n%s\n\nPost your entry as a link in this thread before <t:%d:f>.", title, body, deadline.Unix())
	}
	if _, err := b.session.ChannelMessageSend(thread.ID, intro); err != nil {
		b.log.WithError(err).Warn("intro message failed")
	}

	if b.announcer != nil {
		chatID, messageID, err := b.announcer.Announce(ctx, mission)
		if err != nil {
			b.log.WithError(err).Warn("secondary announcement failed")
		} else if err := b.service.Store().SetMissionAnnouncement(mission.ID, chatID, messageID); err != nil {
			b.log.WithError(err).Error("announcement linkage not persisted")
		}
	}
}

// handleDeadlineCommand extends the mission deadline from inside its thread.
func (b *Bot) handleDeadlineCommand(m *discordgo.MessageCreate) {
	arg := strings.TrimSpace(strings.TrimPrefix(m.Content, "!deadline "))
	hours, err := strconv.Atoi(arg)
	if err != nil || hours <= 0 {
		b.reply(m, "Usage: !deadline <hours to add>")
		return
	}

	deadline, err := b.service.ExtendDeadline(m.ChannelID, time.Duration(hours)*time.Hour)
	if errors.Is(err, store.ErrMissionNotFound) {
		b.reply(m, "No mission is registered for this thread.")
		return
	}
	if err != nil {
		b.reply(m, "The deadline can only be extended while the mission is active.")
		return
	}
	b.reply(m, fmt.Sprintf("Deadline extended to <t:%d:f>.", deadline.Unix()))
}

func (b *Bot) channel(id string) (*discordgo.Channel, error) {
	if ch, err := b.session.State.Channel(id); err == nil {
		return ch, nil
	}
	return b.session.Channel(id)
}

func (b *Bot) reply(m *discordgo.MessageCreate, content string) {
	if _, err := b.session.ChannelMessageSendReply(m.ChannelID, content, m.Reference()); err != nil {
		b.log.WithError(err).Debug("reply failed")
	}
}

// parseMissionCommand splits "!mission <topic> | <hours>"; the hours part is
// optional.
func parseMissionCommand(content string, defaultHours int) (string, int, error) {
	rest := strings.TrimSpace(strings.TrimPrefix(content, "!mission "))
	if rest == "" {
		return "", 0, fmt.Errorf("Usage: !mission <topic> | <hours>")
	}
	topic := rest
	hours := defaultHours
	if idx := strings.LastIndex(rest, "|"); idx >= 0 {
		topic = strings.TrimSpace(rest[:idx])
		parsed, err := strconv.Atoi(strings.TrimSpace(rest[idx+1:]))
		if err != nil || parsed <= 0 {
			return "", 0, fmt.Errorf("Usage: !mission <topic> | <hours>")
		}
		hours = parsed
	}
	if topic == "" {
		return "", 0, fmt.Errorf("Usage: !mission <topic> | <hours>")
	}
	return topic, hours, nil
}
