package comment

import "strings"

type MessageType string

const (
	TypeNormal     MessageType = "normal"
	TypeOperator   MessageType = "operator"
	TypeNicoad     MessageType = "nicoad"
	TypeGift       MessageType = "gift"
	TypeEmotion    MessageType = "emotion"
	TypeInfo       MessageType = "info"
	TypeSystem     MessageType = "system"
	TypeInvisible  MessageType = "invisible"
	TypeUnknown    MessageType = "unknown"
	TypeEmulated   MessageType = "emulated"
	TypeGameUpdate MessageType = "gameUpdate"
)

// Premium field bits on chat payloads.
const (
	PremiumBit  = 0b1
	OperatorBit = 0b10
	SystemBit   = 0b100
)

func IsPremium(premium int) bool {
	return premium&PremiumBit != 0
}

func IsOperatorBits(premium int) bool {
	return premium&(OperatorBit|SystemBit) != 0
}

// Displayable reports whether messages of this type go into the visible
// buffer.
func (t MessageType) Displayable() bool {
	switch t {
	case TypeInvisible, TypeGameUpdate, TypeUnknown:
		return false
	default:
		return true
	}
}

// Classify maps a raw message to its display category. It never fails:
// shapes it does not recognize are TypeUnknown.
func Classify(raw RawMessage) MessageType {
	switch raw.Kind {
	case KindChat:
		if raw.Chat == nil {
			return TypeUnknown
		}
		return classifyChat(raw.Chat)
	case KindOperator:
		if raw.Operator == nil {
			return TypeUnknown
		}
		return TypeOperator
	case KindNotification:
		if raw.Notification == nil {
			return TypeUnknown
		}
		return classifyNotification(raw.Notification.Type)
	case KindGift:
		if raw.Gift == nil {
			return TypeUnknown
		}
		return TypeGift
	case KindNicoad:
		if raw.Nicoad == nil {
			return TypeUnknown
		}
		return TypeNicoad
	case KindGameUpdate:
		if raw.GameUpdate == nil {
			return TypeUnknown
		}
		return TypeGameUpdate
	case KindState:
		if raw.State == nil {
			return TypeUnknown
		}
		return TypeInvisible
	case KindSignal:
		if raw.Signal == nil {
			return TypeUnknown
		}
		return TypeInvisible
	}
	return TypeUnknown
}

func classifyChat(chat *Chat) MessageType {
	premium := 0
	if chat.Premium != nil {
		premium = *chat.Premium
	}
	if !IsOperatorBits(premium) {
		return TypeNormal
	}
	if !strings.HasPrefix(chat.Content, "/") {
		return TypeOperator
	}
	return classifyCommand(chat.Content)
}

func classifyCommand(content string) MessageType {
	fields := strings.Fields(content)
	if len(fields) == 0 {
		return TypeSystem
	}
	switch fields[0] {
	case "/disconnect", "/vote", "/coe", "/uadpoint":
		return TypeInvisible
	case "/info":
		if len(fields) < 2 {
			return TypeSystem
		}
		switch fields[1] {
		case "2":
			return TypeInvisible
		case "1", "3", "4", "5", "6":
			return TypeInfo
		}
	}
	return TypeSystem
}

func classifyNotification(kind NotificationType) MessageType {
	switch kind {
	case NotificationIchiba, NotificationQuote, NotificationCruise:
		return TypeSystem
	case NotificationEmotion:
		return TypeEmotion
	case NotificationProgramExtend, NotificationRankingIn, NotificationRankingUpdated, NotificationVisited:
		return TypeInfo
	}
	return TypeUnknown
}

// IsDisconnect reports an in-stream operator /disconnect command. No
// transport-level completion follows it.
func IsDisconnect(raw RawMessage) bool {
	if raw.Kind != KindChat || raw.Chat == nil || raw.Chat.Premium == nil {
		return false
	}
	if !IsOperatorBits(*raw.Chat.Premium) {
		return false
	}
	fields := strings.Fields(raw.Chat.Content)
	return len(fields) > 0 && fields[0] == "/disconnect"
}
