package services

import (
	"context"
	"errors"
	"log"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/abhiram-s2002/racer-sub005/internal/config"
	"github.com/abhiram-s2002/racer-sub005/internal/models"
)

// ErrNotReceiver is returned when someone other than the ping's receiver
// attempts to respond to it.
var ErrNotReceiver = errors.New("only the ping receiver can respond")

// ErrPingNotAccepted is returned by ResolveChat for pings that are still
// pending or were rejected; no chat can exist for those.
var ErrPingNotAccepted = errors.New("ping has not been accepted")

// StatusListener is notified exactly once per committed status change, after
// the chat bootstrap has run, regardless of how that bootstrap went.
type StatusListener func(ping *models.Ping)

// RespondOutcome is the result of responding to a ping. The status change is
// the source of truth: once it commits, chat or message failures degrade the
// outcome instead of failing the operation. ChatErr and MessageErr carry
// whatever went wrong in the follow-up steps.
type RespondOutcome struct {
	Ping       *models.Ping
	Chat       *models.Chat
	ChatErr    error
	MessageErr error
}

// Degraded reports whether the response succeeded but the chat bootstrap did
// not fully complete.
func (o *RespondOutcome) Degraded() bool {
	return o.ChatErr != nil || o.MessageErr != nil
}

// IPingResponder orchestrates the ping response workflow: authorize, commit
// the decision, then bootstrap the chat for acceptances.
type IPingResponder interface {
	Respond(ctx context.Context, pingID primitive.ObjectID, actor string, accept bool) (*RespondOutcome, error)
	ResolveChat(ctx context.Context, pingID primitive.ObjectID, actor string) (*models.Chat, error)
	SetStatusListener(l StatusListener)
}

// pingResponder implements IPingResponder.
type pingResponder struct {
	cfg      *config.Config
	pingSvc  IPingService
	chatSvc  IChatService
	msgSvc   IMessageService
	listener StatusListener
}

// NewPingResponder creates a new PingResponder.
func NewPingResponder(cfg *config.Config, pingSvc IPingService, chatSvc IChatService, msgSvc IMessageService) IPingResponder {
	return &pingResponder{
		cfg:     cfg,
		pingSvc: pingSvc,
		chatSvc: chatSvc,
		msgSvc:  msgSvc,
	}
}

// SetStatusListener registers the post-commit notification hook. Typically
// wired to the background task queue for notification emails.
func (r *pingResponder) SetStatusListener(l StatusListener) {
	r.listener = l
}

// Respond applies the receiver's decision to a pending ping.
//
// For acceptances the chat is created (or fetched, if a previous degraded
// attempt already created it) and the acceptance announcement is posted as a
// system message. Failures after the status commit are reported through the
// outcome, not as an error: the decision itself is already durable and must
// not appear to have failed.
func (r *pingResponder) Respond(ctx context.Context, pingID primitive.ObjectID, actor string, accept bool) (*RespondOutcome, error) {
	ping, err := r.pingSvc.FindByID(ctx, pingID)
	if err != nil {
		return nil, err
	}
	if ping.ReceiverUsername != actor {
		return nil, ErrNotReceiver
	}

	status := models.PingStatusRejected
	if accept {
		status = models.PingStatusAccepted
	}

	updated, err := r.pingSvc.UpdateStatus(ctx, pingID, status)
	if err != nil {
		return nil, err
	}

	// The decision is durable from here on. Notify once on the way out, after
	// the chat bootstrap has run, whatever its outcome.
	defer func() {
		if r.listener != nil {
			r.listener(updated)
		}
	}()

	outcome := &RespondOutcome{Ping: updated}
	if !accept {
		return outcome, nil
	}

	chat, created, chatErr := r.chatSvc.GetOrCreateChat(ctx, updated.ListingID, updated.SenderUsername, updated.ReceiverUsername)
	if chatErr != nil {
		log.Printf("WARN: ping %s accepted but chat bootstrap failed: %v", pingID.Hex(), chatErr)
		outcome.ChatErr = chatErr
		return outcome, nil
	}
	outcome.Chat = chat

	// Only the creating call posts the announcement, so a lost race or a
	// retried bootstrap cannot duplicate it.
	if created {
		announcement := r.renderAcceptanceMessage(updated)
		if _, msgErr := r.msgSvc.PostSystemMessage(ctx, chat.ID, announcement); msgErr != nil {
			log.Printf("WARN: ping %s accepted but announcement failed in chat %s: %v", pingID.Hex(), chat.ID.Hex(), msgErr)
			outcome.MessageErr = msgErr
		}
	}

	return outcome, nil
}

// ResolveChat returns the chat belonging to an accepted ping. Both the sender
// and the receiver may resolve. ErrChatNotFound means the acceptance went
// through but the chat was never created; callers should retry the bootstrap.
func (r *pingResponder) ResolveChat(ctx context.Context, pingID primitive.ObjectID, actor string) (*models.Chat, error) {
	ping, err := r.pingSvc.FindByID(ctx, pingID)
	if err != nil {
		return nil, err
	}
	if ping.SenderUsername != actor && ping.ReceiverUsername != actor {
		return nil, ErrNotParticipant
	}
	if ping.Status != models.PingStatusAccepted {
		return nil, ErrPingNotAccepted
	}

	return r.chatSvc.FindChat(ctx, ping.ListingID, ping.SenderUsername, ping.ReceiverUsername)
}

func (r *pingResponder) renderAcceptanceMessage(ping *models.Ping) string {
	replacer := strings.NewReplacer(
		"{{.receiver}}", ping.ReceiverUsername,
		"{{.sender}}", ping.SenderUsername,
	)
	return replacer.Replace(r.cfg.AcceptedChatMessage)
}
