// Package discord plays rounds in Discord channels: boards are embeds,
// columns are reactions.
package discord

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/wfunc/connect4bot/logger"
	"github.com/wfunc/connect4bot/render"
	"github.com/wfunc/connect4bot/round"
	"github.com/wfunc/connect4bot/surface"
)

var ErrNoToken = errors.New("discord token is not set")

const Intents = discordgo.IntentsGuildMessages | discordgo.IntentsGuildMessageReactions | discordgo.IntentsMessageContent

// api is the part of *discordgo.Session the bot calls.
type api interface {
	ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageEditComplex(m *discordgo.MessageEdit, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageSendReply(channelID, content string, reference *discordgo.MessageReference, options ...discordgo.RequestOption) (*discordgo.Message, error)
	MessageReactionAdd(channelID, messageID, emojiID string, options ...discordgo.RequestOption) error
	MessageReactionRemove(channelID, messageID, emojiID, userID string, options ...discordgo.RequestOption) error
}

// Bot is the Discord messaging surface.
type Bot struct {
	dg      *discordgo.Session
	api     api
	handler surface.Handler
}

func New(token string) (*Bot, error) {
	if token == "" {
		return nil, ErrNoToken
	}
	dg, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, err
	}
	dg.Identify.Intents = Intents
	return &Bot{dg: dg, api: dg}, nil
}

// SetHandler installs the receiver of commands and reactions. Call it
// before Start.
func (b *Bot) SetHandler(h surface.Handler) { b.handler = h }

// Start connects to the gateway and blocks until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	b.dg.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) {
		logger.Log.Infof("Logged in as %s (%s)", r.User.Username, r.User.ID)
	})
	b.dg.AddHandler(func(s *discordgo.Session, m *discordgo.MessageCreate) {
		b.handleMessage(ctx, selfID(s), m.Message)
	})
	b.dg.AddHandler(func(s *discordgo.Session, r *discordgo.MessageReactionAdd) {
		b.handleReaction(ctx, selfID(s), r.MessageReaction, false)
	})
	b.dg.AddHandler(func(s *discordgo.Session, r *discordgo.MessageReactionRemove) {
		b.handleReaction(ctx, selfID(s), r.MessageReaction, true)
	})

	if err := b.dg.Open(); err != nil {
		return err
	}
	<-ctx.Done()
	logger.Log.Info("Closing Discord session.")
	return b.dg.Close()
}

func selfID(s *discordgo.Session) string {
	if s.State == nil || s.State.User == nil {
		return ""
	}
	return s.State.User.ID
}

func (b *Bot) handleMessage(ctx context.Context, self string, m *discordgo.Message) {
	if b.handler == nil || m.Author == nil || m.Author.Bot || m.Author.ID == self {
		return
	}
	msg := surface.Message{
		ChannelID: m.ChannelID,
		Author:    playerOf(m.Author),
		Content:   m.Content,
		Mentions:  orderedMentions(m.Content, m.Mentions),
	}
	b.handler.HandleMessage(ctx, msg, func(ctx context.Context, text string) error {
		_, err := b.api.ChannelMessageSend(m.ChannelID, text, discordgo.WithContext(ctx))
		return err
	})
}

func (b *Bot) handleReaction(ctx context.Context, self string, r *discordgo.MessageReaction, removed bool) {
	if b.handler == nil || r == nil || r.UserID == self {
		return
	}
	b.handler.HandleReaction(ctx, surface.Event{
		Handle:  surface.Handle{ChannelID: r.ChannelID, MessageID: r.MessageID},
		ActorID: r.UserID,
		Symbol:  r.Emoji.Name,
		Removed: removed,
	})
}

func (b *Bot) Send(ctx context.Context, channelID, text string, view *round.Snapshot) (surface.Handle, error) {
	data := &discordgo.MessageSend{Content: text}
	if view != nil {
		data.Content = ""
		data.Embeds = []*discordgo.MessageEmbed{Embed(text, *view)}
	}
	m, err := b.api.ChannelMessageSendComplex(channelID, data, discordgo.WithContext(ctx))
	if err != nil {
		return surface.Handle{}, err
	}
	return surface.Handle{ChannelID: m.ChannelID, MessageID: m.ID}, nil
}

func (b *Bot) Edit(ctx context.Context, h surface.Handle, text string, view *round.Snapshot) error {
	edit := discordgo.NewMessageEdit(h.ChannelID, h.MessageID)
	if view != nil {
		edit.SetContent("").SetEmbed(Embed(text, *view))
	} else {
		edit.SetContent(text)
	}
	_, err := b.api.ChannelMessageEditComplex(edit, discordgo.WithContext(ctx))
	return err
}

func (b *Bot) Reply(ctx context.Context, h surface.Handle, text string) error {
	ref := &discordgo.MessageReference{MessageID: h.MessageID, ChannelID: h.ChannelID}
	_, err := b.api.ChannelMessageSendReply(h.ChannelID, text, ref, discordgo.WithContext(ctx))
	return err
}

// AddOptions reacts with each symbol in order; Discord keeps reactions in
// the order they were first added.
func (b *Bot) AddOptions(ctx context.Context, h surface.Handle, symbols []string) error {
	for _, s := range symbols {
		if err := b.api.MessageReactionAdd(h.ChannelID, h.MessageID, s, discordgo.WithContext(ctx)); err != nil {
			return err
		}
	}
	return nil
}

func (b *Bot) RemoveOption(ctx context.Context, h surface.Handle, symbol, actorID string) error {
	return b.api.MessageReactionRemove(h.ChannelID, h.MessageID, symbol, actorID, discordgo.WithContext(ctx))
}

// Embed renders a round as a Discord embed titled title.
func Embed(title string, view round.Snapshot) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title: title,
		Fields: []*discordgo.MessageEmbedField{{
			Name:  render.FieldName(view),
			Value: render.Board(view),
		}},
	}
}

var mentionPattern = regexp.MustCompile(`^<@!?(\d+)>$`)

// orderedMentions returns the mentioned users in the order they appear in
// content. Discord does not keep that order in Message.Mentions.
func orderedMentions(content string, users []*discordgo.User) []round.Player {
	byID := make(map[string]*discordgo.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}

	var players []round.Player
	for _, word := range strings.Fields(content) {
		match := mentionPattern.FindStringSubmatch(word)
		if match == nil {
			continue
		}
		if u, ok := byID[match[1]]; ok {
			players = append(players, playerOf(u))
		}
	}
	return players
}

func playerOf(u *discordgo.User) round.Player {
	name := u.GlobalName
	if name == "" {
		name = u.Username
	}
	return round.Player{ID: u.ID, Name: name, Mention: u.Mention()}
}
