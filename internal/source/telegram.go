package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/gotd/td/session"
	"github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/dcs"
	"github.com/gotd/td/tg"
	"golang.org/x/net/proxy"

	"cloudmon/internal/config"
	"cloudmon/internal/model"
)

const historyPageSize = 100

// Telegram implements Source on an MTProto user client. The session file
// must already carry an authorized user session.
type Telegram struct {
	client *telegram.Client
	api    *tg.Client
	log    *slog.Logger
}

// NewTelegram creates the Telegram source from configuration. When a proxy
// is configured, the client dials through it.
func NewTelegram(cfg *config.Config, log *slog.Logger) (*Telegram, error) {
	opts := telegram.Options{
		SessionStorage: &session.FileStorage{Path: cfg.Telegram.SessionFile},
	}

	if cfg.Proxy.Enabled {
		u, err := url.Parse(cfg.Proxy.URL)
		if err != nil {
			return nil, fmt.Errorf("parse proxy url: %w", err)
		}
		dialer, err := proxy.FromURL(u, proxy.Direct)
		if err != nil {
			return nil, fmt.Errorf("proxy dialer: %w", err)
		}
		cd, ok := dialer.(proxy.ContextDialer)
		if !ok {
			return nil, fmt.Errorf("proxy scheme %q does not support context dialing", u.Scheme)
		}
		opts.Resolver = dcs.Plain(dcs.PlainOptions{Dial: cd.DialContext})
	}

	client := telegram.NewClient(cfg.Telegram.APIID, cfg.Telegram.APIHash, opts)
	return &Telegram{
		client: client,
		api:    client.API(),
		log:    log,
	}, nil
}

// Run connects the client and invokes f once the stored session is verified.
// It blocks until f returns or ctx is cancelled.
func (t *Telegram) Run(ctx context.Context, f func(ctx context.Context) error) error {
	return t.client.Run(ctx, func(ctx context.Context) error {
		status, err := t.client.Auth().Status(ctx)
		if err != nil {
			return fmt.Errorf("auth status: %w", err)
		}
		if !status.Authorized {
			return errors.New("telegram session is not authorized; provision a session file first")
		}
		return f(ctx)
	})
}

// Resolve obtains a channel handle. Invite links resolve only when the
// account is already a member; use JoinInvite first otherwise.
func (t *Telegram) Resolve(ctx context.Context, ref string) (Channel, error) {
	if hash := InviteHash(ref); hash != "" {
		res, err := t.api.MessagesCheckChatInvite(ctx, hash)
		if err != nil {
			return Channel{}, fmt.Errorf("check invite: %w", err)
		}
		already, ok := res.(*tg.ChatInviteAlready)
		if !ok {
			return Channel{}, fmt.Errorf("not a member of invite channel %q", ref)
		}
		ch, ok := already.Chat.(*tg.Channel)
		if !ok {
			return Channel{}, fmt.Errorf("invite %q is not a channel", ref)
		}
		return Channel{ID: ch.ID, AccessHash: ch.AccessHash, Title: ch.Title}, nil
	}

	username := Username(ref)
	res, err := t.api.ContactsResolveUsername(ctx, username)
	if err != nil {
		return Channel{}, fmt.Errorf("resolve %q: %w", username, err)
	}
	for _, c := range res.Chats {
		if ch, ok := c.(*tg.Channel); ok {
			return Channel{ID: ch.ID, AccessHash: ch.AccessHash, Title: ch.Title}, nil
		}
	}
	return Channel{}, fmt.Errorf("no channel found for %q", ref)
}

// JoinInvite joins a channel by invite hash.
func (t *Telegram) JoinInvite(ctx context.Context, hash string) error {
	if _, err := t.api.MessagesImportChatInvite(ctx, hash); err != nil {
		return fmt.Errorf("import invite: %w", err)
	}
	return nil
}

// History iterates channel history newest-first, up to limit messages.
func (t *Telegram) History(ctx context.Context, ch Channel, limit int, fn func(model.Message) bool) error {
	peer := &tg.InputPeerChannel{ChannelID: ch.ID, AccessHash: ch.AccessHash}
	offsetID := 0
	fetched := 0

	for fetched < limit {
		page := historyPageSize
		if rest := limit - fetched; rest < page {
			page = rest
		}
		res, err := t.api.MessagesGetHistory(ctx, &tg.MessagesGetHistoryRequest{
			Peer:     peer,
			OffsetID: offsetID,
			Limit:    page,
		})
		if err != nil {
			return fmt.Errorf("get history: %w", err)
		}
		raw := rawMessages(res)
		if len(raw) == 0 {
			return nil
		}
		for _, mc := range raw {
			msg, ok := convert(mc)
			if id := messageID(mc); id != 0 {
				offsetID = id
			}
			if !ok {
				continue
			}
			fetched++
			if !fn(msg) {
				return nil
			}
			if fetched >= limit {
				return nil
			}
		}
	}
	return nil
}

// Search iterates server-side text search results for the channel, newest
// first, up to limit messages.
func (t *Telegram) Search(ctx context.Context, ch Channel, query string, limit int, fn func(model.Message) bool) error {
	peer := &tg.InputPeerChannel{ChannelID: ch.ID, AccessHash: ch.AccessHash}
	offsetID := 0
	fetched := 0

	for fetched < limit {
		page := historyPageSize
		if rest := limit - fetched; rest < page {
			page = rest
		}
		res, err := t.api.MessagesSearch(ctx, &tg.MessagesSearchRequest{
			Peer:     peer,
			Q:        query,
			Filter:   &tg.InputMessagesFilterEmpty{},
			OffsetID: offsetID,
			Limit:    page,
		})
		if err != nil {
			return fmt.Errorf("search %q: %w", query, err)
		}
		raw := rawMessages(res)
		if len(raw) == 0 {
			return nil
		}
		for _, mc := range raw {
			msg, ok := convert(mc)
			if id := messageID(mc); id != 0 {
				offsetID = id
			}
			if !ok {
				continue
			}
			fetched++
			if !fn(msg) {
				return nil
			}
			if fetched >= limit {
				return nil
			}
		}
	}
	return nil
}

func rawMessages(res tg.MessagesMessagesClass) []tg.MessageClass {
	switch v := res.(type) {
	case *tg.MessagesMessages:
		return v.Messages
	case *tg.MessagesMessagesSlice:
		return v.Messages
	case *tg.MessagesChannelMessages:
		return v.Messages
	default:
		return nil
	}
}

func messageID(mc tg.MessageClass) int {
	switch v := mc.(type) {
	case *tg.Message:
		return v.ID
	case *tg.MessageService:
		return v.ID
	case *tg.MessageEmpty:
		return v.ID
	default:
		return 0
	}
}

// convert maps a raw Telegram message to the pipeline model. Service and
// empty messages are skipped.
func convert(mc tg.MessageClass) (model.Message, bool) {
	m, ok := mc.(*tg.Message)
	if !ok {
		return model.Message{}, false
	}
	out := model.Message{
		ID:   int64(m.ID),
		Date: time.Unix(int64(m.Date), 0),
		Text: m.Message,
	}
	for _, ent := range m.Entities {
		if e, ok := ent.(*tg.MessageEntityTextURL); ok {
			out.Entities = append(out.Entities, model.Entity{
				Offset: e.Offset,
				Length: e.Length,
				URL:    e.URL,
			})
		}
	}
	return out, true
}
