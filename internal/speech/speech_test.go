package speech

import (
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/commentdeck/commentdeck/internal/comment"
	"github.com/commentdeck/commentdeck/internal/settings"
)

func TestParaphraseRulesApplyInOrderOverCumulativeResult(t *testing.T) {
	d, err := NewParaphraseDictionary([]Rule{
		{Pattern: "a", Replace: "b"},
		{Pattern: "b", Replace: "c"},
	})
	if err != nil {
		t.Fatalf("NewParaphraseDictionary: %v", err)
	}
	if got := d.Process("ab"); got != "cc" {
		t.Fatalf("Process = %q, want %q", got, "cc")
	}

	reversed, err := NewParaphraseDictionary([]Rule{
		{Pattern: "b", Replace: "c"},
		{Pattern: "a", Replace: "b"},
	})
	if err != nil {
		t.Fatalf("NewParaphraseDictionary: %v", err)
	}
	if got := reversed.Process("ab"); got != "bc" {
		t.Fatalf("Process = %q, want %q", got, "bc")
	}
}

func TestDefaultParaphraseDictionary(t *testing.T) {
	d := DefaultParaphraseDictionary()
	tests := map[string]string{
		"see https://example.com/x?y=1 now": "see URL now",
		"88888":                             "clap clap",
		"that was funny wwww":               "that was funny lol",
		"what??":                            "what?",
		"wow!!!":                            "wow!",
		"plain text":                        "plain text",
		"two  spaces":                       "two spaces",
	}
	for in, want := range tests {
		if got := d.Process(in); got != want {
			t.Fatalf("Process(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestParaphraseInvalidRule(t *testing.T) {
	if _, err := NewParaphraseDictionary([]Rule{{Pattern: "("}}); err == nil {
		t.Fatalf("expected compile error")
	}
	if _, err := NewParaphraseDictionary([]Rule{{Pattern: ""}}); err == nil {
		t.Fatalf("expected empty pattern error")
	}
}

func TestLoadParaphraseFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")
	data := "rules:\n  - pattern: \"gg\"\n    replace: \"good game\"\n  - pattern: \"(\\\\d+)pt\"\n    replace: \"$1 points\"\n"
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	rules, err := LoadParaphraseFile(path)
	if err != nil {
		t.Fatalf("LoadParaphraseFile: %v", err)
	}
	if len(rules) != 2 {
		t.Fatalf("rules = %d, want 2", len(rules))
	}
	base := DefaultParaphraseDictionary()
	d, err := base.With(rules)
	if err != nil {
		t.Fatalf("With: %v", err)
	}
	if d.Len() != base.Len()+2 {
		t.Fatalf("Len = %d, want %d", d.Len(), base.Len()+2)
	}
	if got := d.Process("gg 100pt"); got != "good game 100 points" {
		t.Fatalf("Process = %q", got)
	}
	if base.Process("gg") != "gg" {
		t.Fatalf("With must not modify the base dictionary")
	}
}

func TestLoadParaphraseFileErrors(t *testing.T) {
	dir := t.TempDir()
	if _, err := LoadParaphraseFile(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Fatalf("expected read error")
	}
	empty := filepath.Join(dir, "empty.yaml")
	if err := os.WriteFile(empty, []byte("rules: []\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadParaphraseFile(empty); err == nil {
		t.Fatalf("expected error for empty rule list")
	}
	broken := filepath.Join(dir, "broken.yaml")
	if err := os.WriteFile(broken, []byte("rules: [\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadParaphraseFile(broken); err == nil || !strings.Contains(err.Error(), "parse") {
		t.Fatalf("expected parse error, got %v", err)
	}
}

func chatItem(content string) comment.Wrapped {
	return comment.Wrapped{Type: comment.TypeNormal, Value: comment.RawMessage{Kind: comment.KindChat, Chat: &comment.Chat{Content: content}}}
}

func TestMakeSpeech(t *testing.T) {
	voice := settings.NewObservable(VoiceSettings{Pitch: 1.2, Rate: 0.8, Volume: 0.5})
	s := NewService(nil, voice, nil)
	s.SetMaxTime(5 * time.Second)

	if sp := s.MakeSpeech(chatItem("")); sp != nil {
		t.Fatalf("empty text must produce no speech, got %+v", sp)
	}
	if sp := s.MakeSpeech(chatItem("   ")); sp != nil {
		t.Fatalf("blank text must produce no speech")
	}
	if sp := s.MakeSpeech(comment.Wrapped{Type: comment.TypeInvisible, Value: comment.RawMessage{Kind: comment.KindState, State: &comment.State{}}}); sp != nil {
		t.Fatalf("state record must produce no speech")
	}

	sp := s.MakeSpeech(chatItem("hello https://x.example"))
	if sp == nil {
		t.Fatalf("expected speech")
	}
	if sp.Text != "hello URL" {
		t.Fatalf("Text = %q", sp.Text)
	}
	if Value(sp.Pitch, 0) != 1.2 || Value(sp.Rate, 0) != 0.8 || Value(sp.Volume, 0) != 0.5 {
		t.Fatalf("voice settings not merged: %+v", sp)
	}
	if sp.MaxTime != 5*time.Second || sp.Label == "" {
		t.Fatalf("unexpected speech %+v", sp)
	}

	voice.Set(VoiceSettings{Pitch: 2, Rate: 2, Volume: 2})
	if sp := s.MakeSpeech(chatItem("again")); Value(sp.Rate, 0) != 2 {
		t.Fatalf("expected current settings, got rate %v", Value(sp.Rate, 0))
	}

	gift := comment.Wrapped{Type: comment.TypeGift, Value: comment.RawMessage{Kind: comment.KindGift, Gift: &comment.Gift{AdvertiserName: "A", ItemName: "X", Point: 10}}}
	if sp := s.MakeSpeech(gift); sp == nil || sp.Text != "A sent X (10pt)" {
		t.Fatalf("gift speech = %+v", sp)
	}
}

func TestSpeakable(t *testing.T) {
	if !Speakable(comment.TypeNormal) || !Speakable(comment.TypeGift) {
		t.Fatalf("viewer comments and gifts are spoken")
	}
	if Speakable(comment.TypeEmulated) || Speakable(comment.TypeSystem) || Speakable(comment.TypeInvisible) {
		t.Fatalf("status lines and system messages are not spoken")
	}
}

func TestTrackFiresEndOnceAfterFinish(t *testing.T) {
	finished := make(chan struct{})
	var ends, cancels atomic.Int32
	run := Track(func() { cancels.Add(1); close(finished) }, finished, func() { ends.Add(1) })

	run.Cancel()
	run.Cancel()
	select {
	case <-run.Done():
	case <-time.After(time.Second):
		t.Fatalf("tracked utterance never finished")
	}
	if cancels.Load() != 1 || ends.Load() != 1 {
		t.Fatalf("cancels=%d ends=%d, want 1 each", cancels.Load(), ends.Load())
	}
}

func TestValue(t *testing.T) {
	v := 0.0
	if Value(nil, 3) != 3 || Value(&v, 3) != 0 {
		t.Fatalf("Value mismatch")
	}
}
