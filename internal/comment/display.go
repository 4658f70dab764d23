package comment

import (
	"fmt"
	"strings"
)

// DisplayText returns the human readable body of a message, with protocol
// command prefixes removed. It is also what gets spoken.
func DisplayText(w Wrapped) string {
	v := w.Value
	switch v.Kind {
	case KindChat:
		if v.Chat == nil {
			return ""
		}
		return chatText(w.Type, v.Chat.Content)
	case KindOperator:
		if v.Operator == nil {
			return ""
		}
		return v.Operator.Content
	case KindNotification:
		if v.Notification == nil {
			return ""
		}
		return v.Notification.Message
	case KindGift:
		if v.Gift == nil {
			return ""
		}
		name := v.Gift.AdvertiserName
		if name == "" {
			name = "anonymous"
		}
		return fmt.Sprintf("%s sent %s (%dpt)", name, v.Gift.ItemName, v.Gift.Point)
	case KindNicoad:
		if v.Nicoad == nil {
			return ""
		}
		return v.Nicoad.Message
	}
	return ""
}

func chatText(t MessageType, content string) string {
	switch t {
	case TypeInfo:
		return dropFields(content, 2)
	case TypeSystem:
		if strings.HasPrefix(content, "/") {
			return dropFields(content, 1)
		}
	}
	return content
}

func dropFields(content string, n int) string {
	rest := strings.TrimSpace(content)
	for i := 0; i < n; i++ {
		idx := strings.IndexAny(rest, " \t")
		if idx < 0 {
			return ""
		}
		rest = strings.TrimSpace(rest[idx:])
	}
	return rest
}

// UserID is the author id of chat-bearing messages, empty otherwise.
func UserID(w Wrapped) string {
	if w.Value.Kind == KindChat && w.Value.Chat != nil {
		return w.Value.Chat.UserID
	}
	return ""
}

// Name is the author display name when the payload carries one.
func Name(w Wrapped) string {
	switch w.Value.Kind {
	case KindChat:
		if w.Value.Chat != nil {
			return w.Value.Chat.Name
		}
	case KindOperator:
		if w.Value.Operator != nil {
			return w.Value.Operator.Name
		}
	case KindGift:
		if w.Value.Gift != nil {
			return w.Value.Gift.AdvertiserName
		}
	}
	return ""
}

// ScoreAndAnonymity reads the NG inputs of a chat payload. A missing score
// counts as 0; non-chat payloads are never anonymous.
func ScoreAndAnonymity(raw RawMessage) (int, bool) {
	if raw.Kind != KindChat || raw.Chat == nil {
		return 0, false
	}
	score := 0
	if raw.Chat.Score != nil {
		score = *raw.Chat.Score
	}
	anonymous := raw.Chat.Anonymity != nil && *raw.Chat.Anonymity != 0
	return score, anonymous
}
