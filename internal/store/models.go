package store

import "time"

// MissionStatus is the lifecycle state of a mission. Transitions are one-way:
// active -> closed -> exported.
type MissionStatus string

const (
	MissionActive   MissionStatus = "active"
	MissionClosed   MissionStatus = "closed"
	MissionExported MissionStatus = "exported"
)

// Submission source tags.
const (
	SourceDiscord  = "discord"
	SourceTelegram = "telegram"
)

// Mission is a time-boxed submission campaign tied to one discussion thread.
type Mission struct {
	ID          string        `json:"id"`
	Title       string        `json:"title"`
	Description string        `json:"description,omitempty"`
	ThreadID    string        `json:"threadId"`
	Deadline    time.Time     `json:"deadline"`
	Status      MissionStatus `json:"status"`
	CreatedAt   time.Time     `json:"createdAt"`
	ExportedAt  *time.Time    `json:"exportedAt,omitempty"`

	// Announcement linkage for the Telegram surface: replies to this
	// announcement message are routed back to the mission.
	AnnounceChatID    int64 `json:"announceChatId,omitempty"`
	AnnounceMessageID int   `json:"announceMessageId,omitempty"`
}

// PastDeadline reports whether the mission deadline has elapsed at now.
func (m Mission) PastDeadline(now time.Time) bool {
	return m.Deadline.Before(now)
}

// Vote is a judge's current score for a submission. At most one vote per
// (submission, judge) pair; re-voting overwrites score and timestamp.
type Vote struct {
	JudgeID   string    `json:"judgeId"`
	Score     int       `json:"score"`
	Timestamp time.Time `json:"timestamp"`
}

// Submission is one user-supplied entry tied to a mission.
type Submission struct {
	ID          string    `json:"id"`
	MessageID   string    `json:"messageId"`
	ChannelID   string    `json:"channelId"`
	ThreadID    string    `json:"threadId"`
	MissionID   string    `json:"missionId"`
	UserID      string    `json:"userId"`
	UserTag     string    `json:"userTag"`
	Content     string    `json:"content"`
	URLs        []string  `json:"urls"`
	Votes       []Vote    `json:"votes"`
	SubmittedAt time.Time `json:"submittedAt"`
	Exported    bool      `json:"exported"`
	Source      string    `json:"source,omitempty"`
}

// PrimaryURL returns the first extracted URL, the canonical submission link.
func (s Submission) PrimaryURL() string {
	if len(s.URLs) == 0 {
		return ""
	}
	return s.URLs[0]
}
