package session

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/auth"
	"github.com/gotd/td/telegram/message"
	"github.com/gotd/td/tg"
	"github.com/rs/zerolog/log"
)

// ErrNotEstablished ends OperatorClient.Run when no valid session could be
// obtained.
var ErrNotEstablished = errors.New("operator session not established")

// OperatorClient is the MTProto user session of the operator. It
// implements Authenticator for the Manager and feeds private messages to a
// Listener once logged in.
type OperatorClient struct {
	client   *telegram.Client
	listener *Listener
	selfID   atomic.Int64
}

func NewOperatorClient(cfg Config, storage *FileStorage, listener *Listener) *OperatorClient {
	c := &OperatorClient{listener: listener}
	dispatcher := tg.NewUpdateDispatcher()
	dispatcher.OnNewMessage(c.onNewMessage)
	c.client = telegram.NewClient(cfg.AppID, cfg.AppHash, telegram.Options{
		SessionStorage: storage,
		UpdateHandler:  dispatcher,
	})
	return c
}

// Run connects, lets the manager establish the session and then serves
// updates until ctx is done.
func (c *OperatorClient) Run(ctx context.Context, m *Manager) error {
	return c.client.Run(ctx, func(ctx context.Context) error {
		state, err := m.Establish(ctx, c)
		if !state.Usable() {
			if err != nil {
				return fmt.Errorf("%w: %w", ErrNotEstablished, err)
			}
			return ErrNotEstablished
		}

		self, err := c.client.Self(ctx)
		if err != nil {
			return fmt.Errorf("get self: %w", err)
		}
		c.selfID.Store(self.ID)
		log.Info().Int64("operatorId", self.ID).Str("username", self.Username).Msg("operator identity online")

		<-ctx.Done()
		return ctx.Err()
	})
}

func (c *OperatorClient) Authorized(ctx context.Context) (bool, error) {
	status, err := c.client.Auth().Status(ctx)
	if err != nil {
		return false, err
	}
	return status.Authorized, nil
}

func (c *OperatorClient) SendCode(ctx context.Context, phone string) (string, error) {
	sent, err := c.client.Auth().SendCode(ctx, phone, auth.SendCodeOptions{})
	if err != nil {
		return "", err
	}
	switch s := sent.(type) {
	case *tg.AuthSentCode:
		return s.PhoneCodeHash, nil
	default:
		return "", fmt.Errorf("unexpected sent code type %T", sent)
	}
}

func (c *OperatorClient) SignIn(ctx context.Context, phone, code, codeHash string) error {
	_, err := c.client.Auth().SignIn(ctx, phone, code, codeHash)
	if errors.Is(err, auth.ErrPasswordAuthNeeded) {
		return ErrPasswordRequired
	}
	return err
}

func (c *OperatorClient) Password(ctx context.Context, password string) error {
	_, err := c.client.Auth().Password(ctx, password)
	return err
}

func (c *OperatorClient) onNewMessage(ctx context.Context, e tg.Entities, u *tg.UpdateNewMessage) error {
	msg, ok := u.Message.(*tg.Message)
	if !ok {
		return nil
	}
	peer, ok := msg.PeerID.(*tg.PeerUser)
	if !ok {
		return nil
	}

	self := c.selfID.Load()
	if self == 0 {
		return nil
	}

	in := Incoming{Text: msg.Message}
	switch {
	case msg.Out && peer.UserID == self:
		in.SenderID = self
		in.FromSelf = true
	case msg.Out:
		return nil
	default:
		in.SenderID = peer.UserID
	}

	reply := c.listener.Reply(ctx, in)
	if reply == "" {
		return nil
	}

	sender := message.NewSender(c.client.API())
	if _, err := sender.Reply(e, u).Text(ctx, reply); err != nil {
		log.Error().Err(err).Int64("senderId", in.SenderID).Msg("operator identity reply failed")
	}
	return nil
}

var _ Authenticator = (*OperatorClient)(nil)
