// Package ingest feeds live chat from external platforms into the comment pipeline.
package ingest

import (
	"context"
	"errors"
	"strings"
	"sync"

	twitch "github.com/gempir/go-twitch-irc/v4"
	"github.com/rs/zerolog/log"

	"github.com/zhouzirui/aituber/backend/internal/config"
	"github.com/zhouzirui/aituber/backend/internal/model/live"
	"github.com/zhouzirui/aituber/backend/internal/service/broadcast"
	"github.com/zhouzirui/aituber/backend/internal/service/pipeline"
)

// maxInFlight bounds concurrently processed chat messages; extra messages wait their turn.
const maxInFlight = 4

// TwitchListener joins one channel and runs every chat message through the pipeline.
type TwitchListener struct {
	client    *twitch.Client
	channel   string
	sessionID string
	pipeline  pipeline.Processor
	hub       *broadcast.Hub

	slots chan struct{}
	wg    sync.WaitGroup
}

// NewTwitchListener creates a listener for cfg.Channel. Without bot credentials it connects
// anonymously (read-only).
func NewTwitchListener(cfg config.TwitchConfig, sessionID string, p pipeline.Processor, hub *broadcast.Hub) *TwitchListener {
	var client *twitch.Client
	if cfg.Anonymous() {
		client = twitch.NewAnonymousClient()
	} else {
		token := cfg.OAuthToken
		if !strings.HasPrefix(token, "oauth:") {
			token = "oauth:" + token
		}
		client = twitch.NewClient(cfg.BotUsername, token)
	}

	l := &TwitchListener{
		client:    client,
		channel:   cfg.Channel,
		sessionID: sessionID,
		pipeline:  p,
		hub:       hub,
		slots:     make(chan struct{}, maxInFlight),
	}
	return l
}

// Run connects and blocks until ctx is cancelled or the connection fails, then waits for
// in-flight messages. Messages are processed under ctx, so cancelling it also aborts
// pending generations.
func (l *TwitchListener) Run(ctx context.Context) error {
	logger := log.With().Str("component", "twitch").Str("channel", l.channel).Str("session", l.sessionID).Logger()

	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			_ = l.client.Disconnect()
		case <-done:
		}
	}()
	defer close(done)

	l.client.OnPrivateMessage(func(msg twitch.PrivateMessage) {
		l.handleMessage(ctx, msg)
	})
	l.client.OnConnect(func() {
		logger.Info().Msg("joined twitch chat")
	})
	l.client.Join(l.channel)

	err := l.client.Connect()
	l.wg.Wait()
	if errors.Is(err, twitch.ErrClientDisconnected) {
		logger.Info().Msg("left twitch chat")
		return nil
	}
	return err
}

func (l *TwitchListener) handleMessage(ctx context.Context, msg twitch.PrivateMessage) {
	username := msg.User.DisplayName
	if username == "" {
		username = msg.User.Name
	}
	in := live.CommentInput{SessionID: l.sessionID, Username: username, Comment: msg.Message}

	if !l.acquire(ctx) {
		log.Debug().Str("component", "twitch").Str("username", username).Msg("dropped chat message after shutdown")
		return
	}
	l.wg.Add(1)
	go func() {
		defer func() {
			<-l.slots
			l.wg.Done()
		}()
		l.process(ctx, in)
	}()
}

// acquire waits for a processing slot; it reports false once ctx is done.
func (l *TwitchListener) acquire(ctx context.Context) bool {
	if ctx.Err() != nil {
		return false
	}
	select {
	case l.slots <- struct{}{}:
		return true
	case <-ctx.Done():
		return false
	}
}

func (l *TwitchListener) process(ctx context.Context, in live.CommentInput) {
	out, err := l.pipeline.Process(ctx, in)
	if err != nil {
		log.Warn().Err(err).
			Str("component", "twitch").
			Str("session", in.SessionID).
			Str("username", in.Username).
			Msg("chat message failed")
		return
	}
	if out.ShouldRespond && l.hub != nil {
		l.hub.Publish(out)
	}
}
