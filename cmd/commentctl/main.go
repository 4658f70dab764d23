package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/commentdeck/commentdeck/internal/comment"
	"github.com/commentdeck/commentdeck/internal/ipc"
)

const usage = `usage: commentctl [-ipc addr] [-timeout d] [-json] <command> [args]

commands:
  set-room <url> [thread]   switch to a comment room
  refresh                   reconnect to the current room
  unsubscribe               stop receiving comments
  pin <seq>                 pin a buffered comment
  unpin                     clear the pinned comment
  set-filter [-ng level] [-show-anonymous=bool]
  set-voice [-pitch f] [-rate f] [-volume f]
  speak [-force] <text>     read text aloud
  cancel                    stop speaking and drop queued speech
  skip                      skip the current utterance
  snapshot                  print the comment window
  ping                      check that commentd is running
  watch                     print events until interrupted
`

var errUsage = errors.New("invalid usage")

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprint(os.Stderr, usage)
		}
		log.Printf("commentctl: %v", err)
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("commentctl", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	addr := fs.String("ipc", envOr("COMMENTDECK_IPC_ADDR", ipc.DefaultAddr()), "ipc socket/pipe address")
	timeout := fs.Duration("timeout", 5*time.Second, "time to wait for commentd")
	asJSON := fs.Bool("json", false, "print raw json events")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	rest := fs.Args()
	if len(rest) == 0 {
		return errUsage
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := newCtlClient(*addr)
	defer client.Close()

	if rest[0] == "watch" {
		return watch(ctx, client, out, *asJSON)
	}

	cmd, err := buildCommand(rest[0], rest[1:])
	if err != nil {
		return err
	}
	if *timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *timeout)
		defer cancel()
	}
	reply, err := client.call(ctx, cmd)
	if err != nil {
		return err
	}
	return printReply(out, reply, *asJSON)
}

// buildCommand turns command line words into an ipc command.
func buildCommand(name string, args []string) (ipc.Message, error) {
	switch name {
	case "set-room":
		if len(args) < 1 || len(args) > 2 {
			return ipc.Message{}, fmt.Errorf("%w: set-room takes <url> [thread]", errUsage)
		}
		msg := ipc.Message{Cmd: ipc.CommandSetRoom, URL: args[0]}
		if len(args) == 2 {
			msg.Thread = args[1]
		}
		return msg, nil
	case "pin":
		if len(args) != 1 {
			return ipc.Message{}, fmt.Errorf("%w: pin takes <seq>", errUsage)
		}
		seq, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil || seq <= 0 {
			return ipc.Message{}, fmt.Errorf("invalid seq %q", args[0])
		}
		return ipc.Message{Cmd: ipc.CommandPin, Seq: seq}, nil
	case "set-filter":
		return parseFilter(args)
	case "set-voice":
		return parseVoice(args)
	case "speak":
		fs := flag.NewFlagSet("speak", flag.ContinueOnError)
		fs.SetOutput(io.Discard)
		force := fs.Bool("force", false, "interrupt current speech")
		if err := fs.Parse(args); err != nil {
			return ipc.Message{}, fmt.Errorf("%w: %v", errUsage, err)
		}
		text := strings.TrimSpace(strings.Join(fs.Args(), " "))
		if text == "" {
			return ipc.Message{}, fmt.Errorf("%w: speak needs text", errUsage)
		}
		return ipc.Message{Cmd: ipc.CommandSpeak, Text: text, Force: *force}, nil
	}

	simple := map[string]string{
		"refresh":     ipc.CommandRefresh,
		"unsubscribe": ipc.CommandUnsubscribe,
		"unpin":       ipc.CommandUnpin,
		"cancel":      ipc.CommandCancelSpeak,
		"skip":        ipc.CommandSkip,
		"snapshot":    ipc.CommandSnapshot,
		"ping":        ipc.CommandPing,
	}
	cmd, ok := simple[name]
	if !ok {
		return ipc.Message{}, fmt.Errorf("%w: unknown command %q", errUsage, name)
	}
	if len(args) != 0 {
		return ipc.Message{}, fmt.Errorf("%w: %s takes no arguments", errUsage, name)
	}
	return ipc.Message{Cmd: cmd}, nil
}

func parseFilter(args []string) (ipc.Message, error) {
	fs := flag.NewFlagSet("set-filter", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	level := fs.String("ng", "", "ng score level: none, low, mid, high")
	anonymous := fs.String("show-anonymous", "", "show comments from anonymous users")
	if err := fs.Parse(args); err != nil {
		return ipc.Message{}, fmt.Errorf("%w: %v", errUsage, err)
	}
	msg := ipc.Message{Cmd: ipc.CommandSetFilter, Level: *level}
	if *anonymous != "" {
		v, err := strconv.ParseBool(*anonymous)
		if err != nil {
			return ipc.Message{}, fmt.Errorf("invalid show-anonymous %q", *anonymous)
		}
		msg.ShowAnonymous = &v
	}
	if msg.Level == "" && msg.ShowAnonymous == nil {
		return ipc.Message{}, fmt.Errorf("%w: set-filter needs -ng or -show-anonymous", errUsage)
	}
	return msg, nil
}

func parseVoice(args []string) (ipc.Message, error) {
	fs := flag.NewFlagSet("set-voice", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	var pitch, rate, volume optionalFloat
	fs.Var(&pitch, "pitch", "voice pitch, 1 is normal")
	fs.Var(&rate, "rate", "speech rate, 1 is normal")
	fs.Var(&volume, "volume", "speech volume, 1 is normal")
	if err := fs.Parse(args); err != nil {
		return ipc.Message{}, fmt.Errorf("%w: %v", errUsage, err)
	}
	if pitch.v == nil && rate.v == nil && volume.v == nil {
		return ipc.Message{}, fmt.Errorf("%w: set-voice needs -pitch, -rate or -volume", errUsage)
	}
	return ipc.Message{Cmd: ipc.CommandSetVoice, Pitch: pitch.v, Rate: rate.v, Volume: volume.v}, nil
}

// optionalFloat is a float flag that remembers whether it was set.
type optionalFloat struct {
	v *float64
}

func (f *optionalFloat) String() string {
	if f == nil || f.v == nil {
		return ""
	}
	return strconv.FormatFloat(*f.v, 'g', -1, 64)
}

func (f *optionalFloat) Set(s string) error {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	f.v = &v
	return nil
}

// watch prints events until ctx ends. watch sends no commands, so an
// error event means the connection is gone.
func watch(ctx context.Context, client *ctlClient, out io.Writer, asJSON bool) error {
	events := make(chan ipc.Message, 16)
	go client.readLoop(events)
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-events:
			if !ok {
				return nil
			}
			if msg.Event == ipc.EventError {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("%s", msg.Error)
			}
			if err := printReply(out, msg, asJSON); err != nil {
				return err
			}
		}
	}
}

func printReply(out io.Writer, msg ipc.Message, asJSON bool) error {
	if msg.Event == "" {
		return nil
	}
	if asJSON {
		return json.NewEncoder(out).Encode(msg)
	}
	var err error
	switch msg.Event {
	case ipc.EventPong:
		_, err = fmt.Fprintln(out, "pong")
	case ipc.EventReady:
		_, err = fmt.Fprintln(out, "ready")
	case ipc.EventError:
		_, err = fmt.Fprintf(out, "error: %s\n", msg.Error)
	case ipc.EventSpeaking:
		if msg.Active {
			_, err = fmt.Fprintf(out, "speaking #%d %s\n", msg.Seq, msg.Text)
		} else {
			_, err = fmt.Fprintf(out, "finished #%d\n", msg.Seq)
		}
	case ipc.EventSnapshot:
		err = printSnapshot(out, msg)
	default:
		_, err = fmt.Fprintf(out, "%s\n", msg.Event)
	}
	return err
}

func printSnapshot(out io.Writer, msg ipc.Message) error {
	if msg.Snapshot == nil {
		return nil
	}
	snap := msg.Snapshot
	if len(msg.Added) > 0 {
		for _, item := range msg.Added {
			if _, err := fmt.Fprintln(out, formatItem(item)); err != nil {
				return err
			}
		}
		return nil
	}
	if _, err := fmt.Fprintf(out, "state=%s room=%s thread=%s ng=%s\n", snap.State, snap.Room.URL, snap.Room.ThreadID, snap.Policy.Level); err != nil {
		return err
	}
	if snap.Operator != nil {
		if _, err := fmt.Fprintf(out, "operator: %s\n", snap.Operator.Content); err != nil {
			return err
		}
	}
	if snap.Pinned != nil {
		if _, err := fmt.Fprintf(out, "pinned: %s\n", formatItem(*snap.Pinned)); err != nil {
			return err
		}
	}
	for _, item := range snap.Items {
		if _, err := fmt.Fprintln(out, formatItem(item)); err != nil {
			return err
		}
	}
	return nil
}

func formatItem(item comment.Wrapped) string {
	line := fmt.Sprintf("#%d [%s] %s", item.SeqID, item.Type, comment.DisplayText(item))
	if item.Filtered {
		line += " (filtered)"
	}
	return line
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}
