// Package notify turns stock alerts and pricing decisions into email-style
// messages for the operator.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"text/template"

	"github.com/rs/zerolog"

	"asd_commerce/internal/domain"
)

var ErrUnhandledTopic = errors.New("no notification template for topic")

// Topics a Listener subscribes to.
var Topics = []string{domain.EventStockAlert, domain.EventPricingDecision}

type Message struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// LogSender writes messages to the log instead of a mail server.
type LogSender struct {
	Logger zerolog.Logger
}

func (s LogSender) Send(_ context.Context, msg Message) error {
	s.Logger.Info().
		Str("to", msg.To).
		Str("subject", msg.Subject).
		Msg(msg.Body)
	return nil
}

var stockAlertBody = template.Must(template.New("stock").Parse(
	`Stock update for {{.Product}}: {{.Level}} units available.
Requested by the {{.Requested}} agent.`))

var pricingBody = template.Must(template.New("pricing").Parse(
	`Autonomous pricing decision for {{.Product}}: ${{printf "%.2f" .Price}}
Strategy: {{.Strategy}} (current ${{printf "%.2f" .CurrentPrice}}, inventory {{.InventoryLevel}})
{{range .Competitors}}  {{.Name}}: ${{printf "%.2f" .Price}}
{{end}}`))

type Notifier struct {
	recipient string
	sender    Sender
	logger    zerolog.Logger
}

func New(recipient string, sender Sender, logger zerolog.Logger) *Notifier {
	logger = logger.With().Str("component", "notify").Logger()
	if sender == nil {
		sender = LogSender{Logger: logger}
	}
	return &Notifier{recipient: recipient, sender: sender, logger: logger}
}

func (n *Notifier) Render(evt domain.Event) (Message, error) {
	var body bytes.Buffer
	switch evt.Topic {
	case domain.EventStockAlert:
		var p domain.StockAlertPayload
		if err := json.Unmarshal(evt.Payload, &p); err != nil {
			return Message{}, fmt.Errorf("decode stock alert: %w", err)
		}
		if err := stockAlertBody.Execute(&body, p); err != nil {
			return Message{}, fmt.Errorf("render stock alert: %w", err)
		}
		return Message{To: n.recipient, Subject: "Stock availability: " + p.Product, Body: body.String()}, nil
	case domain.EventPricingDecision:
		var p domain.PricingDecisionPayload
		if err := json.Unmarshal(evt.Payload, &p); err != nil {
			return Message{}, fmt.Errorf("decode pricing decision: %w", err)
		}
		type competitor struct {
			Name  string
			Price float64
		}
		view := struct {
			domain.PricingDecisionPayload
			Competitors []competitor
		}{PricingDecisionPayload: p}
		for name, price := range p.CompetitorPrices {
			view.Competitors = append(view.Competitors, competitor{Name: name, Price: price})
		}
		sort.Slice(view.Competitors, func(i, j int) bool { return view.Competitors[i].Name < view.Competitors[j].Name })
		if err := pricingBody.Execute(&body, view); err != nil {
			return Message{}, fmt.Errorf("render pricing decision: %w", err)
		}
		return Message{To: n.recipient, Subject: "Pricing decision: " + p.Product, Body: body.String()}, nil
	default:
		return Message{}, fmt.Errorf("%w: %s", ErrUnhandledTopic, evt.Topic)
	}
}

func (n *Notifier) Notify(ctx context.Context, evt domain.Event) error {
	msg, err := n.Render(evt)
	if err != nil {
		return err
	}
	if err := n.sender.Send(ctx, msg); err != nil {
		return fmt.Errorf("send notification: %w", err)
	}
	return nil
}

// Run delivers notifications for events until ctx is done or events closes.
// Events on topics without a template are skipped.
func (n *Notifier) Run(ctx context.Context, events <-chan domain.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-events:
			if !ok {
				return
			}
			err := n.Notify(ctx, evt)
			if errors.Is(err, ErrUnhandledTopic) {
				continue
			}
			if err != nil {
				n.logger.Warn().Err(err).Str("event", evt.ID).Msg("notification failed")
			}
		}
	}
}

// Subscriber is the part of the event bus a Listener needs.
type Subscriber interface {
	Subscribe(subscriberID, topic string) <-chan domain.Event
	Unsubscribe(subscriberID, topic string)
}

type Listener struct {
	notifier *Notifier
	bus      Subscriber
	id       string
	channels []<-chan domain.Event
}

// Listen subscribes id to every topic in Topics. Events published after
// Listen returns are queued for Run.
func (n *Notifier) Listen(bus Subscriber, id string) *Listener {
	l := &Listener{notifier: n, bus: bus, id: id}
	for _, topic := range Topics {
		l.channels = append(l.channels, bus.Subscribe(id, topic))
	}
	return l
}

// Run delivers notifications until ctx is done, then unsubscribes and sends
// whatever was already queued before returning.
func (l *Listener) Run(ctx context.Context) {
	deliver := context.WithoutCancel(ctx)
	var wg sync.WaitGroup
	for _, events := range l.channels {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.notifier.Run(deliver, events)
		}()
	}
	<-ctx.Done()
	for _, topic := range Topics {
		l.bus.Unsubscribe(l.id, topic)
	}
	wg.Wait()
}
