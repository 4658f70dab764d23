package chunk

import (
	"encoding/json"
	"sort"
)

// ChunkedMessage is one record of the room's chunked stream, already parsed
// from the wire. At most one of Message, State and Signal is set.
type ChunkedMessage struct {
	Meta    *Meta    `json:"meta,omitempty"`
	Message *Message `json:"message,omitempty"`
	State   *State   `json:"state,omitempty"`
	Signal  Signal   `json:"signal,omitempty"`
}

type Meta struct {
	ID string     `json:"id,omitempty"`
	At *Timestamp `json:"at,omitempty"`
}

type Timestamp struct {
	Seconds int64 `json:"seconds"`
	Nanos   int32 `json:"nanos"`
}

type Message struct {
	Chat               *Chat               `json:"chat,omitempty"`
	SimpleNotification *SimpleNotification `json:"simpleNotification,omitempty"`
	Gift               *Gift               `json:"gift,omitempty"`
	Nicoad             *Nicoad             `json:"nicoad,omitempty"`
	GameUpdate         *GameUpdate         `json:"gameUpdate,omitempty"`
}

type AccountStatus string

const (
	AccountStandard AccountStatus = "STANDARD"
	AccountPremium  AccountStatus = "PREMIUM"
)

type Chat struct {
	Content       string        `json:"content"`
	Name          *string       `json:"name,omitempty"`
	Vpos          int32         `json:"vpos"`
	No            int32         `json:"no"`
	AccountStatus AccountStatus `json:"accountStatus,omitempty"`
	RawUserID     *int64        `json:"rawUserId,omitempty"`
	HashedUserID  *string       `json:"hashedUserId,omitempty"`
	Modifier      *Modifier     `json:"modifier,omitempty"`
	Score         *int32        `json:"score,omitempty"`
}

// SimpleNotification carries exactly one sub-typed message. Keys the decoder
// does not know are kept in Unknown so they can be reported by name.
type SimpleNotification struct {
	Ichiba          *string
	Quote           *string
	Emotion         *string
	Cruise          *string
	ProgramExtended *string
	RankingIn       *string
	RankingUpdated  *string
	Visited         *string

	Unknown []string
}

func (n *SimpleNotification) UnmarshalJSON(data []byte) error {
	var fields map[string]*string
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	*n = SimpleNotification{}
	for key, value := range fields {
		switch key {
		case "ichiba":
			n.Ichiba = value
		case "quote":
			n.Quote = value
		case "emotion":
			n.Emotion = value
		case "cruise":
			n.Cruise = value
		case "programExtended":
			n.ProgramExtended = value
		case "rankingIn":
			n.RankingIn = value
		case "rankingUpdated":
			n.RankingUpdated = value
		case "visited":
			n.Visited = value
		default:
			n.Unknown = append(n.Unknown, key)
		}
	}
	sort.Strings(n.Unknown)
	return nil
}

func (n SimpleNotification) MarshalJSON() ([]byte, error) {
	fields := map[string]*string{}
	set := func(key string, value *string) {
		if value != nil {
			fields[key] = value
		}
	}
	set("ichiba", n.Ichiba)
	set("quote", n.Quote)
	set("emotion", n.Emotion)
	set("cruise", n.Cruise)
	set("programExtended", n.ProgramExtended)
	set("rankingIn", n.RankingIn)
	set("rankingUpdated", n.RankingUpdated)
	set("visited", n.Visited)
	return json.Marshal(fields)
}

type Gift struct {
	ItemID           string `json:"itemId"`
	AdvertiserUserID *int64 `json:"advertiserUserId,omitempty"`
	AdvertiserName   string `json:"advertiserName"`
	Point            int64  `json:"point"`
	Message          string `json:"message,omitempty"`
	ItemName         string `json:"itemName"`
	ContributionRank *int32 `json:"contributionRank,omitempty"`
}

type Nicoad struct {
	V1 *NicoadV1 `json:"v1,omitempty"`
}

type NicoadV1 struct {
	Message      string `json:"message"`
	TotalAdPoint int64  `json:"totalAdPoint"`
}

type GameUpdate struct{}

type State struct {
	Marquee       *Marquee       `json:"marquee,omitempty"`
	ProgramStatus *ProgramStatus `json:"programStatus,omitempty"`
}

// Marquee with a nil Display clears the operator comment.
type Marquee struct {
	Display *MarqueeDisplay `json:"display,omitempty"`
}

type MarqueeDisplay struct {
	OperatorComment *OperatorComment `json:"operatorComment,omitempty"`
}

type OperatorComment struct {
	Content  string    `json:"content"`
	Name     *string   `json:"name,omitempty"`
	Modifier *Modifier `json:"modifier,omitempty"`
	Link     *string   `json:"link,omitempty"`
}

type ProgramState string

const ProgramEnded ProgramState = "ENDED"

type ProgramStatus struct {
	State ProgramState `json:"state"`
}

type Signal string

const SignalFlushed Signal = "FLUSHED"
