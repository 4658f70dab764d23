package chunk

import (
	"strconv"
	"time"

	"github.com/commentdeck/commentdeck/internal/comment"
	"github.com/commentdeck/commentdeck/internal/securelog"
)

// disconnectPremium marks the synthesized end-of-program command as coming
// from the broadcaster.
const disconnectPremium = comment.PremiumBit | comment.OperatorBit

// Decode converts one chunk into a raw message. ok is false when the chunk
// carries nothing for the comment stream, including a marquee that clears
// the operator comment (see ClearsOperatorComment).
func Decode(c ChunkedMessage, now time.Time) (comment.RawMessage, bool) {
	date, usec := timestamp(c.Meta, now)

	switch {
	case c.Message != nil:
		return decodeMessage(c.Message, date, usec)
	case c.State != nil:
		return decodeState(c.State, date, usec)
	case c.Signal != "":
		if c.Signal == SignalFlushed {
			return comment.RawMessage{Kind: comment.KindSignal, Signal: &comment.Signal{Flushed: true}}, true
		}
		securelog.Drop("signal", string(c.Signal))
		return comment.RawMessage{}, false
	}
	return comment.RawMessage{}, false
}

// ClearsOperatorComment reports a marquee state without a display payload.
// A state that also ends the program decodes to /disconnect instead.
func ClearsOperatorComment(c ChunkedMessage) bool {
	if c.State == nil || c.State.Marquee == nil || EndsProgram(c) {
		return false
	}
	d := c.State.Marquee.Display
	return d == nil || d.OperatorComment == nil
}

// EndsProgram reports a state whose program status is ENDED.
func EndsProgram(c ChunkedMessage) bool {
	return c.State != nil && c.State.ProgramStatus != nil && c.State.ProgramStatus.State == ProgramEnded
}

func timestamp(meta *Meta, now time.Time) (int64, int64) {
	if meta != nil && meta.At != nil {
		at := meta.At
		sec := at.Seconds
		nanos := int64(at.Nanos)
		if nanos < 0 {
			nanos = 0
		}
		if sec < 0 {
			sec = 0
		}
		return sec + nanos/int64(time.Second), (nanos % int64(time.Second)) / 1000
	}
	return comment.SplitTime(now)
}

func decodeMessage(m *Message, date, usec int64) (comment.RawMessage, bool) {
	switch {
	case m.Chat != nil:
		return comment.RawMessage{Kind: comment.KindChat, Chat: decodeChat(m.Chat, date, usec)}, true
	case m.SimpleNotification != nil:
		return decodeNotification(m.SimpleNotification, date, usec)
	case m.Gift != nil:
		return comment.RawMessage{Kind: comment.KindGift, Gift: decodeGift(m.Gift, date, usec)}, true
	case m.Nicoad != nil:
		if m.Nicoad.V1 == nil {
			securelog.Drop("nicoad", "version")
			return comment.RawMessage{}, false
		}
		return comment.RawMessage{Kind: comment.KindNicoad, Nicoad: &comment.Nicoad{
			TotalAdPoint: m.Nicoad.V1.TotalAdPoint,
			Message:      m.Nicoad.V1.Message,
			Date:         date,
			DateUsec:     usec,
		}}, true
	case m.GameUpdate != nil:
		return comment.RawMessage{Kind: comment.KindGameUpdate, GameUpdate: &comment.GameUpdate{Date: date, DateUsec: usec}}, true
	}
	securelog.Drop("message", "")
	return comment.RawMessage{}, false
}

func decodeChat(c *Chat, date, usec int64) *comment.Chat {
	out := &comment.Chat{
		No:       int(c.No),
		Vpos:     int(c.Vpos),
		Date:     date,
		DateUsec: usec,
		Mail:     ConvertModifierToMail(c.Modifier),
		Content:  c.Content,
	}
	if c.Name != nil {
		out.Name = *c.Name
	}
	if c.AccountStatus == AccountPremium {
		out.Premium = comment.IntPtr(1)
	}
	switch {
	case c.RawUserID != nil:
		out.UserID = strconv.FormatInt(*c.RawUserID, 10)
	case c.HashedUserID != nil:
		out.UserID = *c.HashedUserID
		out.Anonymity = comment.IntPtr(1)
	}
	if c.Score != nil {
		out.Score = comment.IntPtr(int(*c.Score))
	}
	return out
}

func decodeNotification(n *SimpleNotification, date, usec int64) (comment.RawMessage, bool) {
	kinds := []struct {
		kind  comment.NotificationType
		value *string
	}{
		{comment.NotificationIchiba, n.Ichiba},
		{comment.NotificationQuote, n.Quote},
		{comment.NotificationEmotion, n.Emotion},
		{comment.NotificationCruise, n.Cruise},
		{comment.NotificationProgramExtend, n.ProgramExtended},
		{comment.NotificationRankingIn, n.RankingIn},
		{comment.NotificationRankingUpdated, n.RankingUpdated},
		{comment.NotificationVisited, n.Visited},
	}
	for _, k := range kinds {
		if k.value == nil {
			continue
		}
		return comment.RawMessage{Kind: comment.KindNotification, Notification: &comment.Notification{
			Type:     k.kind,
			Message:  *k.value,
			Date:     date,
			DateUsec: usec,
		}}, true
	}
	key := ""
	if len(n.Unknown) > 0 {
		key = n.Unknown[0]
	}
	securelog.Drop("notification", key)
	return comment.RawMessage{}, false
}

func decodeGift(g *Gift, date, usec int64) *comment.Gift {
	out := &comment.Gift{
		ItemID:         g.ItemID,
		AdvertiserName: g.AdvertiserName,
		Point:          g.Point,
		Message:        g.Message,
		ItemName:       g.ItemName,
		Date:           date,
		DateUsec:       usec,
	}
	if g.AdvertiserUserID != nil {
		out.AdvertiserUserID = strconv.FormatInt(*g.AdvertiserUserID, 10)
	}
	if g.ContributionRank != nil {
		out.ContributionRank = comment.IntPtr(int(*g.ContributionRank))
	}
	return out
}

func decodeState(s *State, date, usec int64) (comment.RawMessage, bool) {
	if EndsProgram(ChunkedMessage{State: s}) {
		return comment.RawMessage{Kind: comment.KindChat, Chat: &comment.Chat{
			Content:  "/disconnect",
			Premium:  comment.IntPtr(disconnectPremium),
			Date:     date,
			DateUsec: usec,
		}}, true
	}
	if s.Marquee != nil && s.Marquee.Display != nil && s.Marquee.Display.OperatorComment != nil {
		oc := s.Marquee.Display.OperatorComment
		op := &comment.Operator{
			Content:  oc.Content,
			Mail:     ConvertModifierToMail(oc.Modifier),
			Date:     date,
			DateUsec: usec,
		}
		if oc.Name != nil {
			op.Name = *oc.Name
		}
		if oc.Link != nil {
			op.Link = *oc.Link
		}
		return comment.RawMessage{Kind: comment.KindOperator, Operator: op}, true
	}
	return comment.RawMessage{}, false
}
