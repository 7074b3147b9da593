// Package natsfwd mirrors bus events onto NATS so other processes can follow
// what the agents are doing.
package natsfwd

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"asd_commerce/internal/domain"
)

const DefaultPrefix = "asd.events"

type Conn interface {
	Publish(subject string, data []byte) error
	Drain() error
}

func Dial(url, clientName string) (*nats.Conn, error) {
	nc, err := nats.Connect(url,
		nats.Name(clientName),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats %s: %w", url, err)
	}
	return nc, nil
}

type Forwarder struct {
	conn   Conn
	prefix string
	logger zerolog.Logger
}

func New(conn Conn, prefix string, logger zerolog.Logger) *Forwarder {
	prefix = strings.Trim(strings.TrimSpace(prefix), ".")
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Forwarder{
		conn:   conn,
		prefix: prefix,
		logger: logger.With().Str("component", "natsfwd").Logger(),
	}
}

func (f *Forwarder) Subject(topic string) string {
	return f.prefix + "." + topic
}

func (f *Forwarder) Forward(evt domain.Event) error {
	raw, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("encode event %s: %w", evt.ID, err)
	}
	if err := f.conn.Publish(f.Subject(evt.Topic), raw); err != nil {
		return fmt.Errorf("publish event %s: %w", evt.ID, err)
	}
	return nil
}

// Run forwards events until ctx is done or the channel closes, then drains
// the connection. Publish failures are logged and do not stop the loop.
func (f *Forwarder) Run(ctx context.Context, events <-chan domain.Event) error {
	defer func() {
		if err := f.conn.Drain(); err != nil {
			f.logger.Warn().Err(err).Msg("drain nats connection")
		}
	}()
	for {
		select {
		case <-ctx.Done():
			return nil
		case evt, ok := <-events:
			if !ok {
				return nil
			}
			if err := f.Forward(evt); err != nil {
				f.logger.Warn().Err(err).Str("topic", evt.Topic).Msg("forward event")
				continue
			}
			f.logger.Debug().Str("subject", f.Subject(evt.Topic)).Msg("event forwarded")
		}
	}
}
