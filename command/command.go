// Package command parses chat commands and runs them against the round
// service.
package command

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/wfunc/connect4bot/logger"
	"github.com/wfunc/connect4bot/round"
	"github.com/wfunc/connect4bot/surface"
)

var (
	ErrUnknownCommand = errors.New("unknown command")
	ErrArguments      = errors.New("bad arguments")
)

// Service is the part of services.RoundService the commands use.
type Service interface {
	Options() round.Options
	SetOptions(args []string) (round.Options, error)
	Start(ctx context.Context, channelID string, players []round.Player, variant round.Variant) (*round.Round, error)
	Show(ctx context.Context, channelID string, id int) error
	End(ctx context.Context, id int) error
	Place(ctx context.Context, id int, actorID string, column int) error
	History(id int) (string, error)
	HandleReaction(ctx context.Context, ev surface.Event)
}

// Reply sends text to the channel the command came from.
type Reply = func(ctx context.Context, text string) error

type handler func(d *Dispatcher, ctx context.Context, msg surface.Message, args []string, reply Reply) error

type entry struct {
	name    string
	usage   string
	summary string
	run     handler
}

// Dispatcher routes prefixed messages to commands.
type Dispatcher struct {
	prefix   string
	service  Service
	commands map[string]*entry
	ordered  []*entry
}

func NewDispatcher(prefix string, service Service) *Dispatcher {
	d := &Dispatcher{
		prefix:   prefix,
		service:  service,
		commands: make(map[string]*entry),
	}
	d.register([]string{"start", "startnormal", "s"}, "start @players...", "Start a normal game with the mentioned players.", startVariant(round.Classic))
	d.register([]string{"startlightning", "l"}, "startlightning @players...", "Start a game where each turn has a time limit.", startVariant(round.Timed))
	d.register([]string{"startdelayed", "d"}, "startdelayed @players...", "Start a game where the newest moves stay hidden.", startVariant(round.Fog))
	d.register([]string{"show"}, "show <id>", "Post the game again; older messages stop working.", (*Dispatcher).show)
	d.register([]string{"end"}, "end <id>", "End the game.", (*Dispatcher).end)
	d.register([]string{"place"}, "place <id> <column>", "Place a chip without using reactions.", (*Dispatcher).place)
	d.register([]string{"history"}, "history <id>", "List the moves of the game.", (*Dispatcher).history)
	d.register([]string{"options"}, "options [name=value...]", "View or set options for the next game.", (*Dispatcher).options)
	d.register([]string{"help"}, "help", "Show this message.", (*Dispatcher).help)
	return d
}

func (d *Dispatcher) register(names []string, usage, summary string, run handler) {
	e := &entry{name: names[0], usage: usage, summary: summary, run: run}
	for _, n := range names {
		d.commands[n] = e
	}
	d.ordered = append(d.ordered, e)
}

// HandleMessage runs msg if it is a command. It reports whether msg had the
// command prefix. Command errors are answered with an "Error: " reply.
func (d *Dispatcher) HandleMessage(ctx context.Context, msg surface.Message, reply Reply) bool {
	content := strings.TrimSpace(msg.Content)
	if d.prefix == "" || !strings.HasPrefix(content, d.prefix) {
		return false
	}
	fields := strings.Fields(strings.TrimPrefix(content, d.prefix))
	if len(fields) == 0 {
		return false
	}

	name, args := fields[0], fields[1:]
	var err error
	if e, ok := d.commands[name]; ok {
		err = e.run(d, ctx, msg, args, reply)
	} else {
		err = fmt.Errorf("%w: %s", ErrUnknownCommand, name)
	}
	if err != nil {
		logger.Log.Debugw("command failed", "command", name, "author", msg.Author.ID, "error", err)
		if rerr := reply(ctx, "Error: `"+err.Error()+"`"); rerr != nil {
			logger.Log.Warnf("Failed to reply to %s: %v", msg.ChannelID, rerr)
		}
	}
	return true
}

// HandleReaction passes reactions straight to the service, so a Dispatcher
// is a complete surface.Handler.
func (d *Dispatcher) HandleReaction(ctx context.Context, ev surface.Event) {
	d.service.HandleReaction(ctx, ev)
}

func startVariant(variant round.Variant) handler {
	return func(d *Dispatcher, ctx context.Context, msg surface.Message, args []string, reply Reply) error {
		if len(args) == 0 {
			return fmt.Errorf("%w: players is a required argument", ErrArguments)
		}
		if len(msg.Mentions) != len(args) {
			return fmt.Errorf("%w: every player must be a mention", ErrArguments)
		}
		if len(msg.Mentions) < 2 {
			return round.ErrInsufficientPlayers
		}
		_, err := d.service.Start(ctx, msg.ChannelID, msg.Mentions, variant)
		return err
	}
}

func (d *Dispatcher) show(ctx context.Context, msg surface.Message, args []string, reply Reply) error {
	id, err := intArgs(args, "id")
	if err != nil {
		return err
	}
	return d.service.Show(ctx, msg.ChannelID, id[0])
}

func (d *Dispatcher) end(ctx context.Context, msg surface.Message, args []string, reply Reply) error {
	id, err := intArgs(args, "id")
	if err != nil {
		return err
	}
	return d.service.End(ctx, id[0])
}

func (d *Dispatcher) place(ctx context.Context, msg surface.Message, args []string, reply Reply) error {
	v, err := intArgs(args, "id", "column")
	if err != nil {
		return err
	}
	return d.service.Place(ctx, v[0], msg.Author.ID, v[1])
}

func (d *Dispatcher) history(ctx context.Context, msg surface.Message, args []string, reply Reply) error {
	id, err := intArgs(args, "id")
	if err != nil {
		return err
	}
	text, err := d.service.History(id[0])
	if err != nil {
		return err
	}
	return reply(ctx, text)
}

func (d *Dispatcher) options(ctx context.Context, msg surface.Message, args []string, reply Reply) error {
	if len(args) == 0 {
		opts := d.service.Options()
		if opts.Empty() {
			return reply(ctx, "Options: *Empty :/*")
		}
		return reply(ctx, "Options: "+opts.String())
	}
	if _, err := d.service.SetOptions(args); err != nil {
		return err
	}
	return reply(ctx, "Updated options")
}

func (d *Dispatcher) help(ctx context.Context, msg surface.Message, args []string, reply Reply) error {
	var b strings.Builder
	b.WriteString("Play Connect 4 :D\n")
	for _, e := range d.ordered {
		fmt.Fprintf(&b, "`%s%s` %s\n", d.prefix, e.usage, e.summary)
	}
	return reply(ctx, strings.TrimRight(b.String(), "\n"))
}

// intArgs parses exactly one integer per name.
func intArgs(args []string, names ...string) ([]int, error) {
	if len(args) < len(names) {
		return nil, fmt.Errorf("%w: %s is a required argument", ErrArguments, names[len(args)])
	}
	if len(args) > len(names) {
		return nil, fmt.Errorf("%w: too many arguments", ErrArguments)
	}
	values := make([]int, len(names))
	for i, a := range args {
		v, err := strconv.Atoi(a)
		if err != nil {
			return nil, fmt.Errorf("%w: %s must be a number: %s", ErrArguments, names[i], a)
		}
		values[i] = v
	}
	return values, nil
}
