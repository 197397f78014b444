// Package notifier delivers new offers to subscribers.
package notifier

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/time/rate"

	"flat_bot/internal/model"
)

// Sender delivers a message to a chat.
type Sender interface {
	Send(ctx context.Context, chatID int64, text string) error
}

// DeliveryError reports a message that could not be delivered to one chat.
type DeliveryError struct {
	ChatID    int64
	ListingID string
	Err       error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("deliver listing %s to chat %d: %v", e.ListingID, e.ChatID, e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}

// Summary counts the outcome of a fan-out.
type Summary struct {
	Offers    int
	Attempted int
	Delivered int
	Failed    int
}

// Notifier formats offers and sends them one message per subscriber.
type Notifier struct {
	sender  Sender
	limiter *rate.Limiter
	printer *message.Printer
	log     *slog.Logger
}

// New creates a Notifier sending at most perSecond messages per second.
// A non-positive rate disables pacing.
func New(sender Sender, perSecond float64, log *slog.Logger) *Notifier {
	limit := rate.Inf
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
	}
	return &Notifier{
		sender:  sender,
		limiter: rate.NewLimiter(limit, 1),
		printer: message.NewPrinter(language.German),
		log:     log,
	}
}

// Notify sends one offer to one chat. Failures are *DeliveryError.
func (n *Notifier) Notify(ctx context.Context, offer model.Offer, chatID int64) error {
	if err := n.limiter.Wait(ctx); err != nil {
		return &DeliveryError{ChatID: chatID, ListingID: offer.ListingID, Err: err}
	}
	if err := n.sender.Send(ctx, chatID, n.Format(offer)); err != nil {
		return &DeliveryError{ChatID: chatID, ListingID: offer.ListingID, Err: err}
	}
	return nil
}

// NotifyAll sends every offer to every subscriber in order and returns
// once all sends have finished. A failed send is logged and skipped.
func (n *Notifier) NotifyAll(ctx context.Context, offers []model.Offer, subscribers []int64) Summary {
	sum := Summary{Offers: len(offers)}
	for _, offer := range offers {
		for _, chatID := range subscribers {
			sum.Attempted++
			err := n.Notify(ctx, offer, chatID)
			if err == nil {
				sum.Delivered++
				continue
			}
			sum.Failed++
			var de *DeliveryError
			if errors.As(err, &de) {
				n.log.Warn("delivery failed", "chat_id", de.ChatID, "listing_id", de.ListingID, "error", de.Err)
			} else {
				n.log.Warn("delivery failed", "chat_id", chatID, "error", err)
			}
		}
	}
	if sum.Attempted > 0 {
		n.log.Info("sent notifications", "offers", sum.Offers, "delivered", sum.Delivered, "failed", sum.Failed)
	}
	return sum
}

// Format renders an offer as a Telegram HTML message.
func (n *Notifier) Format(o model.Offer) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🏠 <b>%s</b>\n", html.EscapeString(o.Address))
	fmt.Fprintf(&b, "%s Zimmer | %s m² | %s €", n.measure(o.Rooms), n.measure(o.AreaSqm), n.printer.Sprintf("%.2f", o.ColdRent))
	if o.DetailLink != "" {
		fmt.Fprintf(&b, "\n<a href=\"%s\">🔗 Zum Angebot</a>", html.EscapeString(o.DetailLink))
	}
	return b.String()
}

// measure keeps the precision the page used, "2,5" rather than "2,50".
func (n *Notifier) measure(m model.Measure) string {
	if !m.Known {
		return "?"
	}
	s := strconv.FormatFloat(m.Value, 'f', -1, 64)
	decimals := 0
	if i := strings.IndexByte(s, '.'); i >= 0 {
		decimals = len(s) - i - 1
	}
	return n.printer.Sprintf("%."+strconv.Itoa(decimals)+"f", m.Value)
}
