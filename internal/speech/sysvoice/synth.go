// Package sysvoice speaks through the operating system's voice command:
// say on macOS, System.Speech through PowerShell on Windows and espeak
// everywhere else.
package sysvoice

import (
	"context"
	"fmt"
	"log"
	"math"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/commentdeck/commentdeck/internal/queue"
	"github.com/commentdeck/commentdeck/internal/speech"
)

// CommandFunc builds the process for one utterance. The text is written to
// the process's stdin.
type CommandFunc func(ctx context.Context, sp speech.Speech) *exec.Cmd

type Synth struct {
	runner  *queue.Runner
	command CommandFunc
}

func New() *Synth {
	return NewWithCommand(SystemCommand)
}

func NewWithCommand(command CommandFunc) *Synth {
	return &Synth{runner: queue.NewRunner("sysvoice"), command: command}
}

// SystemCommand runs the platform voice command.
func SystemCommand(ctx context.Context, sp speech.Speech) *exec.Cmd {
	name, args := Args(runtime.GOOS, sp)
	return exec.CommandContext(ctx, name, args...)
}

const (
	baseWordsPerMinute = 175
	basePitch          = 50
	baseAmplitude      = 100
)

// Args maps speech parameters onto the voice command for goos.
func Args(goos string, sp speech.Speech) (string, []string) {
	rate := speech.Value(sp.Rate, 1)
	pitch := speech.Value(sp.Pitch, 1)
	volume := speech.Value(sp.Volume, 1)
	switch goos {
	case "darwin":
		return "say", []string{"-r", itoa(baseWordsPerMinute * rate)}
	case "windows":
		// SAPI rate runs -10..10 around 0, volume 0..100.
		sapiRate := clamp(math.Round((rate-1)*10), -10, 10)
		script := fmt.Sprintf(
			"Add-Type -AssemblyName System.Speech; $s = New-Object System.Speech.Synthesis.SpeechSynthesizer; $s.Rate = %d; $s.Volume = %d; $s.Speak([Console]::In.ReadToEnd())",
			int(sapiRate), int(clamp(volume*100, 0, 100)))
		return "powershell", []string{"-NoProfile", "-NonInteractive", "-Command", script}
	default:
		return "espeak", []string{
			"-s", itoa(baseWordsPerMinute * rate),
			"-p", itoa(clamp(basePitch*pitch, 0, 99)),
			"-a", itoa(clamp(baseAmplitude*volume, 0, 200)),
			"--stdin",
		}
	}
}

// SpeakText queues sp. System voices report no phonemes, so onPhoneme is
// never called.
func (s *Synth) SpeakText(sp speech.Speech, onStart, onEnd func(), force bool, _ func(speech.Phoneme)) {
	if force {
		s.runner.Cancel()
	}
	s.runner.Add(func(context.Context) (queue.StartFunc, error) {
		if strings.TrimSpace(sp.Text) == "" {
			return nil, nil
		}
		return func() (queue.Running, error) {
			return s.start(sp, onStart, onEnd)
		}, nil
	}, sp.Label)
	s.runner.RunNext()
}

func (s *Synth) start(sp speech.Speech, onStart, onEnd func()) (queue.Running, error) {
	ctx, cancel := commandContext(sp.MaxTime)
	cmd := s.command(ctx, sp)
	cmd.Stdin = strings.NewReader(sp.Text)
	if err := cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("start voice command: %w", err)
	}
	speech.Call(onStart)

	finished := make(chan struct{})
	go func() {
		defer close(finished)
		err := cmd.Wait()
		if err != nil && ctx.Err() == nil {
			log.Printf("sysvoice: voice command failed label=%s: %v", sp.Label, err)
		}
		cancel()
	}()
	return speech.Track(cancel, finished, onEnd), nil
}

// commandContext bounds one voice process by maxTime when it is set.
func commandContext(maxTime time.Duration) (context.Context, context.CancelFunc) {
	if maxTime > 0 {
		return context.WithTimeout(context.Background(), maxTime)
	}
	return context.WithCancel(context.Background())
}

func (s *Synth) Speaking() bool {
	return s.runner.IsRunning() || s.runner.Len() > 0
}

func (s *Synth) CancelSpeak() {
	s.runner.Cancel()
}

func (s *Synth) SkipCurrent() {
	s.runner.CancelCurrent()
}

func (s *Synth) WaitForSpeakEnd(ctx context.Context) error {
	return s.runner.WaitUntilFinished(ctx)
}

func itoa(v float64) string {
	return strconv.Itoa(int(math.Round(v)))
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
