package chunk

import (
	"bytes"
	"encoding/json"
	"log"
	"strings"
	"testing"
	"time"

	"github.com/commentdeck/commentdeck/internal/comment"
)

func strPtr(v string) *string { return &v }

func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := log.Default().Writer()
	log.SetOutput(&buf)
	t.Cleanup(func() { log.SetOutput(prev) })
	return &buf
}

func TestConvertModifierToMail(t *testing.T) {
	tests := []struct {
		name string
		m    *Modifier
		want string
	}{
		{name: "nil", m: nil, want: ""},
		{name: "defaults", m: &Modifier{Position: PositionNaka, Size: SizeMedium, NamedColor: "WHITE", Font: FontDefont, Opacity: OpacityNormal}, want: ""},
		{name: "shita big red", m: &Modifier{Position: PositionShita, Size: SizeBig, NamedColor: "RED"}, want: "shita big red"},
		{name: "ue small", m: &Modifier{Position: PositionUe, Size: SizeSmall}, want: "ue small"},
		{name: "full color black", m: &Modifier{FullColor: &FullColor{}}, want: "#000000"},
		{name: "full color", m: &Modifier{FullColor: &FullColor{R: 0xff, G: 0x00, B: 0xff}}, want: "#ff00ff"},
		{name: "named color wins", m: &Modifier{NamedColor: "BLUE", FullColor: &FullColor{R: 1}}, want: "blue"},
		{name: "white named with full color", m: &Modifier{NamedColor: "WHITE", FullColor: &FullColor{R: 1}}, want: ""},
		{name: "unknown named falls back", m: &Modifier{NamedColor: "PLAID", FullColor: &FullColor{R: 0x12, G: 0x34, B: 0x56}}, want: "#123456"},
		{name: "translucent", m: &Modifier{Opacity: OpacityTranslucent}, want: "_live"},
		{name: "mincho", m: &Modifier{Font: FontMincho}, want: "mincho"},
		{name: "gothic", m: &Modifier{Font: FontGothic}, want: "gothic"},
		{name: "premium colors", m: &Modifier{NamedColor: "TRUE_RED"}, want: "red2"},
		{name: "niconico white", m: &Modifier{NamedColor: "NICONICO_WHITE"}, want: "white2"},
		{name: "lowercase input", m: &Modifier{Position: "shita", NamedColor: "green"}, want: "shita green"},
		{
			name: "everything",
			m:    &Modifier{Position: PositionUe, Size: SizeBig, NamedColor: "MARINE_BLUE", Font: FontGothic, Opacity: OpacityTranslucent},
			want: "ue big blue2 gothic _live",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ConvertModifierToMail(tt.m); got != tt.want {
				t.Fatalf("ConvertModifierToMail() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDecodeChat(t *testing.T) {
	now := time.Unix(1700000000, 0)
	raw := int64(12345)
	score := int32(-2000)
	c := ChunkedMessage{
		Meta: &Meta{At: &Timestamp{Seconds: 1600000000, Nanos: 123456789}},
		Message: &Message{Chat: &Chat{
			Content:       "hello",
			Name:          strPtr("viewer"),
			Vpos:          300,
			No:            7,
			AccountStatus: AccountPremium,
			RawUserID:     &raw,
			Modifier:      &Modifier{Position: PositionShita},
			Score:         &score,
		}},
	}
	got, ok := Decode(c, now)
	if !ok || got.Kind != comment.KindChat || got.Chat == nil {
		t.Fatalf("expected chat, got %+v ok=%v", got, ok)
	}
	chat := got.Chat
	if chat.Date != 1600000000 || chat.DateUsec != 123456 {
		t.Fatalf("date = %d.%d", chat.Date, chat.DateUsec)
	}
	if chat.UserID != "12345" || chat.Anonymity != nil {
		t.Fatalf("user = %q anonymity=%v", chat.UserID, chat.Anonymity)
	}
	if chat.Premium == nil || *chat.Premium != 1 {
		t.Fatalf("expected premium flag 1, got %v", chat.Premium)
	}
	if chat.Mail != "shita" || chat.Name != "viewer" || chat.No != 7 || chat.Vpos != 300 {
		t.Fatalf("unexpected chat fields %+v", chat)
	}
	if chat.Score == nil || *chat.Score != -2000 {
		t.Fatalf("score = %v", chat.Score)
	}
	if comment.Classify(got) != comment.TypeNormal {
		t.Fatalf("premium viewer chat must classify normal")
	}
}

func TestDecodeChatStandardAnonymous(t *testing.T) {
	now := time.Unix(1700000000, 250_000_000)
	got, ok := Decode(ChunkedMessage{Message: &Message{Chat: &Chat{
		Content:       "hi",
		AccountStatus: AccountStandard,
		HashedUserID:  strPtr("a:xyz"),
	}}}, now)
	if !ok {
		t.Fatalf("expected chat")
	}
	if got.Chat.Premium != nil {
		t.Fatalf("standard account must omit premium, got %v", *got.Chat.Premium)
	}
	if got.Chat.Anonymity == nil || *got.Chat.Anonymity != 1 || got.Chat.UserID != "a:xyz" {
		t.Fatalf("expected anonymous hashed user, got %+v", got.Chat)
	}
	if got.Chat.Date != 1700000000 || got.Chat.DateUsec != 250000 {
		t.Fatalf("expected date from now, got %d.%d", got.Chat.Date, got.Chat.DateUsec)
	}
}

func TestDecodeNotifications(t *testing.T) {
	tests := []struct {
		name string
		n    SimpleNotification
		want comment.NotificationType
	}{
		{name: "ichiba", n: SimpleNotification{Ichiba: strPtr("m")}, want: comment.NotificationIchiba},
		{name: "quote", n: SimpleNotification{Quote: strPtr("m")}, want: comment.NotificationQuote},
		{name: "emotion", n: SimpleNotification{Emotion: strPtr("m")}, want: comment.NotificationEmotion},
		{name: "cruise", n: SimpleNotification{Cruise: strPtr("m")}, want: comment.NotificationCruise},
		{name: "programExtended", n: SimpleNotification{ProgramExtended: strPtr("m")}, want: comment.NotificationProgramExtend},
		{name: "rankingIn", n: SimpleNotification{RankingIn: strPtr("m")}, want: comment.NotificationRankingIn},
		{name: "rankingUpdated", n: SimpleNotification{RankingUpdated: strPtr("m")}, want: comment.NotificationRankingUpdated},
		{name: "visited", n: SimpleNotification{Visited: strPtr("m")}, want: comment.NotificationVisited},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := tt.n
			got, ok := Decode(ChunkedMessage{Message: &Message{SimpleNotification: &n}}, time.Unix(1, 0))
			if !ok || got.Notification == nil {
				t.Fatalf("expected notification, got %+v", got)
			}
			if got.Notification.Type != tt.want || got.Notification.Message != "m" {
				t.Fatalf("got %+v", got.Notification)
			}
		})
	}
}

func TestDecodeUnknownNotificationIsDropped(t *testing.T) {
	buf := captureLog(t)
	var c ChunkedMessage
	if err := json.Unmarshal([]byte(`{"message":{"simpleNotification":{"mystery":"secret text"}}}`), &c); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if _, ok := Decode(c, time.Now()); ok {
		t.Fatalf("expected unknown notification to be dropped")
	}
	out := buf.String()
	if !strings.Contains(out, "key=mystery") {
		t.Fatalf("expected dropped key in log, got %q", out)
	}
	if strings.Contains(out, "secret text") {
		t.Fatalf("log must not contain content, got %q", out)
	}
}

func TestSimpleNotificationJSON(t *testing.T) {
	var n SimpleNotification
	if err := json.Unmarshal([]byte(`{"visited":"5 people","zeta":"x","alpha":"y"}`), &n); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if n.Visited == nil || *n.Visited != "5 people" {
		t.Fatalf("visited = %v", n.Visited)
	}
	if strings.Join(n.Unknown, ",") != "alpha,zeta" {
		t.Fatalf("unknown = %v", n.Unknown)
	}
	data, err := json.Marshal(n)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `{"visited":"5 people"}` {
		t.Fatalf("marshal = %s", data)
	}
}

func TestDecodeGiftAndNicoad(t *testing.T) {
	advertiser := int64(99)
	rank := int32(3)
	got, ok := Decode(ChunkedMessage{Message: &Message{Gift: &Gift{
		ItemID:           "item",
		AdvertiserUserID: &advertiser,
		AdvertiserName:   "A",
		Point:            500,
		ItemName:         "X",
		ContributionRank: &rank,
	}}}, time.Unix(10, 0))
	if !ok || got.Gift == nil {
		t.Fatalf("expected gift")
	}
	if got.Gift.AdvertiserUserID != "99" || *got.Gift.ContributionRank != 3 || got.Gift.Point != 500 {
		t.Fatalf("unexpected gift %+v", got.Gift)
	}

	got, ok = Decode(ChunkedMessage{Message: &Message{Nicoad: &Nicoad{V1: &NicoadV1{Message: "ad", TotalAdPoint: 1200}}}}, time.Unix(10, 0))
	if !ok || got.Nicoad == nil || got.Nicoad.TotalAdPoint != 1200 || got.Nicoad.Message != "ad" {
		t.Fatalf("unexpected nicoad %+v", got)
	}

	if _, ok := Decode(ChunkedMessage{Message: &Message{Nicoad: &Nicoad{}}}, time.Unix(10, 0)); ok {
		t.Fatalf("nicoad without a known version must be dropped")
	}
}

func TestDecodeProgramEndWinsOverMarqueeClear(t *testing.T) {
	c := ChunkedMessage{State: &State{
		Marquee:       &Marquee{},
		ProgramStatus: &ProgramStatus{State: ProgramEnded},
	}}
	if !EndsProgram(c) {
		t.Fatalf("EndsProgram = false")
	}
	if ClearsOperatorComment(c) {
		t.Fatalf("a state that ends the program must not decode as a marquee clear")
	}
	got, ok := Decode(c, time.Unix(42, 0))
	if !ok || !comment.IsDisconnect(got) {
		t.Fatalf("expected /disconnect, got %+v ok=%v", got, ok)
	}
	if EndsProgram(ChunkedMessage{State: &State{Marquee: &Marquee{}}}) || EndsProgram(ChunkedMessage{}) {
		t.Fatalf("EndsProgram without program status")
	}
}

func TestDecodeStateAndSignal(t *testing.T) {
	now := time.Unix(42, 0)

	ended := ChunkedMessage{State: &State{ProgramStatus: &ProgramStatus{State: ProgramEnded}}}
	got, ok := Decode(ended, now)
	if !ok || got.Chat == nil || got.Chat.Content != "/disconnect" {
		t.Fatalf("expected /disconnect chat, got %+v", got)
	}
	if !comment.IsDisconnect(got) || comment.Classify(got) != comment.TypeInvisible {
		t.Fatalf("program end must decode to an invisible disconnect command")
	}

	marquee := ChunkedMessage{State: &State{Marquee: &Marquee{Display: &MarqueeDisplay{OperatorComment: &OperatorComment{
		Content:  "welcome",
		Name:     strPtr("host"),
		Link:     strPtr("https://example.com"),
		Modifier: &Modifier{NamedColor: "RED"},
	}}}}}
	got, ok = Decode(marquee, now)
	if !ok || got.Operator == nil {
		t.Fatalf("expected operator comment, got %+v", got)
	}
	if got.Operator.Content != "welcome" || got.Operator.Name != "host" || got.Operator.Mail != "red" || got.Operator.Link != "https://example.com" {
		t.Fatalf("unexpected operator %+v", got.Operator)
	}
	if ClearsOperatorComment(marquee) {
		t.Fatalf("displayed marquee must not clear")
	}

	cleared := ChunkedMessage{State: &State{Marquee: &Marquee{}}}
	if _, ok := Decode(cleared, now); ok {
		t.Fatalf("marquee without display must decode to nothing")
	}
	if !ClearsOperatorComment(cleared) {
		t.Fatalf("marquee without display must clear the operator comment")
	}
	if ClearsOperatorComment(ChunkedMessage{State: &State{}}) {
		t.Fatalf("empty state is no change")
	}

	got, ok = Decode(ChunkedMessage{Signal: SignalFlushed}, now)
	if !ok || got.Signal == nil || !got.Signal.Flushed {
		t.Fatalf("expected flushed signal, got %+v", got)
	}

	got, ok = Decode(ChunkedMessage{Message: &Message{GameUpdate: &GameUpdate{}}}, now)
	if !ok || got.Kind != comment.KindGameUpdate || got.GameUpdate.Date != 42 {
		t.Fatalf("expected game update, got %+v", got)
	}
}

func TestDecodeEmptyChunk(t *testing.T) {
	captureLog(t)
	if _, ok := Decode(ChunkedMessage{}, time.Now()); ok {
		t.Fatalf("empty chunk must decode to nothing")
	}
	if _, ok := Decode(ChunkedMessage{Message: &Message{}}, time.Now()); ok {
		t.Fatalf("empty message must decode to nothing")
	}
	if _, ok := Decode(ChunkedMessage{Signal: "OTHER"}, time.Now()); ok {
		t.Fatalf("unknown signal must decode to nothing")
	}
}

func TestTimestampNormalizesNanos(t *testing.T) {
	sec, usec := timestamp(&Meta{At: &Timestamp{Seconds: 5, Nanos: 999_999_999}}, time.Time{})
	if sec != 5 || usec != 999_999 {
		t.Fatalf("got %d.%d", sec, usec)
	}
	sec, usec = timestamp(&Meta{At: &Timestamp{Seconds: -1, Nanos: -5}}, time.Time{})
	if sec != 0 || usec != 0 {
		t.Fatalf("negative timestamp must clamp, got %d.%d", sec, usec)
	}
}

func TestChunkedMessageJSON(t *testing.T) {
	data := `{"meta":{"id":"x","at":{"seconds":10,"nanos":5000}},"message":{"chat":{"content":"yo","vpos":1,"no":2,"modifier":{"position":"UE","namedColor":"RED"}}}}`
	var c ChunkedMessage
	if err := json.Unmarshal([]byte(data), &c); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	got, ok := Decode(c, time.Now())
	if !ok || got.Chat.Mail != "ue red" || got.Chat.Date != 10 || got.Chat.DateUsec != 5 {
		t.Fatalf("unexpected decode %+v", got.Chat)
	}
}
