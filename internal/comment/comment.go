package comment

import "time"

type Kind string

const (
	KindChat         Kind = "chat"
	KindOperator     Kind = "operator"
	KindNotification Kind = "notification"
	KindGift         Kind = "gift"
	KindNicoad       Kind = "nicoad"
	KindGameUpdate   Kind = "gameUpdate"
	KindState        Kind = "state"
	KindSignal       Kind = "signal"
)

// RawMessage is one decoded protocol record. Exactly one payload pointer,
// the one matching Kind, is set.
type RawMessage struct {
	Kind         Kind          `json:"kind"`
	Chat         *Chat         `json:"chat,omitempty"`
	Operator     *Operator     `json:"operator,omitempty"`
	Notification *Notification `json:"notification,omitempty"`
	Gift         *Gift         `json:"gift,omitempty"`
	Nicoad       *Nicoad       `json:"nicoad,omitempty"`
	GameUpdate   *GameUpdate   `json:"gameUpdate,omitempty"`
	State        *State        `json:"state,omitempty"`
	Signal       *Signal       `json:"signal,omitempty"`
}

type Chat struct {
	Thread    string `json:"thread,omitempty"`
	No        int    `json:"no,omitempty"`
	Vpos      int    `json:"vpos"`
	Date      int64  `json:"date"`
	DateUsec  int64  `json:"date_usec"`
	Mail      string `json:"mail,omitempty"`
	UserID    string `json:"user_id,omitempty"`
	Name      string `json:"name,omitempty"`
	Content   string `json:"content"`
	Premium   *int   `json:"premium,omitempty"`
	Anonymity *int   `json:"anonymity,omitempty"`
	Score     *int   `json:"score,omitempty"`
}

type Operator struct {
	Content  string `json:"content"`
	Name     string `json:"name,omitempty"`
	Mail     string `json:"mail,omitempty"`
	Link     string `json:"link,omitempty"`
	Date     int64  `json:"date"`
	DateUsec int64  `json:"date_usec"`
}

type NotificationType string

const (
	NotificationIchiba         NotificationType = "ichiba"
	NotificationQuote          NotificationType = "quote"
	NotificationCruise         NotificationType = "cruise"
	NotificationEmotion        NotificationType = "emotion"
	NotificationProgramExtend  NotificationType = "programExtended"
	NotificationRankingIn      NotificationType = "rankingIn"
	NotificationRankingUpdated NotificationType = "rankingUpdated"
	NotificationVisited        NotificationType = "visited"
)

type Notification struct {
	Type     NotificationType `json:"type"`
	Message  string           `json:"message"`
	Date     int64            `json:"date"`
	DateUsec int64            `json:"date_usec"`
}

type Gift struct {
	ItemID           string `json:"itemId"`
	AdvertiserUserID string `json:"advertiserUserId,omitempty"`
	AdvertiserName   string `json:"advertiserName"`
	Point            int64  `json:"point"`
	Message          string `json:"message,omitempty"`
	ItemName         string `json:"itemName"`
	ContributionRank *int   `json:"contributionRank,omitempty"`
	Date             int64  `json:"date"`
	DateUsec         int64  `json:"date_usec"`
}

type Nicoad struct {
	TotalAdPoint int64  `json:"totalAdPoint"`
	Message      string `json:"message"`
	Date         int64  `json:"date"`
	DateUsec     int64  `json:"date_usec"`
}

type GameUpdate struct {
	Date     int64 `json:"date"`
	DateUsec int64 `json:"date_usec"`
}

type State struct {
	ProgramEnded           bool `json:"programEnded,omitempty"`
	OperatorCommentCleared bool `json:"operatorCommentCleared,omitempty"`
}

type Signal struct {
	Flushed bool `json:"flushed,omitempty"`
}

// Wrapped is a classified message as held by the comment buffer. SeqID is
// the only display ordering key.
type Wrapped struct {
	Type     MessageType `json:"type"`
	Value    RawMessage  `json:"value"`
	SeqID    int64       `json:"seqId"`
	Filtered bool        `json:"filtered,omitempty"`
	Pinned   bool        `json:"pinned,omitempty"`
}

// Emulated builds a locally generated status line.
func Emulated(content string, now time.Time) RawMessage {
	sec, usec := SplitTime(now)
	return RawMessage{
		Kind: KindChat,
		Chat: &Chat{Content: content, Date: sec, DateUsec: usec},
	}
}

func SplitTime(t time.Time) (int64, int64) {
	return t.Unix(), int64(t.Nanosecond() / 1000)
}

func IntPtr(v int) *int { return &v }
