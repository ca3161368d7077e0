package jetstream

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"gitlab.com/timkado/api/wa-property-crm/internal/apperrors"
	"gitlab.com/timkado/api/wa-property-crm/pkg/logger"
	"gitlab.com/timkado/api/wa-property-crm/pkg/utils"
)

// Client wraps NATS JetStream functionality
type Client struct {
	nc *nats.Conn
	js nats.JetStreamContext
}

// Ensure Client implements ClientInterface
var _ ClientInterface = (*Client)(nil)

// NewClient creates a new NATS JetStream client
func NewClient(url string) (*Client, error) {
	nc, err := nats.Connect(url,
		nats.Name("wa-property-crm"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			if err != nil {
				logger.Log.Warn("NATS disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Log.Info("NATS reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
		nats.ErrorHandler(func(nc *nats.Conn, s *nats.Subscription, err error) {
			logger.Log.Error("NATS error", zap.Error(err))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to connect to NATS: %w", apperrors.ErrNATS, err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("%w: failed to create JetStream context: %w", apperrors.ErrNATS, err)
	}

	return &Client{
		nc: nc,
		js: js,
	}, nil
}

// EventStreamConfig is the stream holding realtime CRM events. Events are
// short lived; dashboards only care about what happens while they watch.
func EventStreamConfig(name, subjectPrefix string) *nats.StreamConfig {
	return &nats.StreamConfig{
		Name:      name,
		Subjects:  []string{subjectPrefix + ".>"},
		Retention: nats.LimitsPolicy,
		MaxAge:    24 * time.Hour,
		Storage:   nats.FileStorage,
	}
}

// SetupStream ensures the stream exists with the given configuration
func (c *Client) SetupStream(ctx context.Context, streamConfig *nats.StreamConfig) error {
	log := logger.FromContext(ctx).With(zap.String("stream", streamConfig.Name))

	stream, err := c.js.StreamInfo(streamConfig.Name)
	if err != nil && !errors.Is(err, nats.ErrStreamNotFound) {
		return fmt.Errorf("%w: failed to get stream info for '%s': %w", apperrors.ErrNATS, streamConfig.Name, err)
	}

	if stream == nil {
		if _, err = c.js.AddStream(streamConfig); err != nil {
			return fmt.Errorf("%w: failed to add stream '%s': %w", apperrors.ErrNATS, streamConfig.Name, err)
		}
		log.Info("Created stream", zap.Any("subjects", streamConfig.Subjects))
		return nil
	}

	if utils.StreamConfigEqual(stream.Config, *streamConfig) {
		log.Debug("Stream is up to date")
		return nil
	}
	if _, err = c.js.UpdateStream(streamConfig); err != nil {
		return fmt.Errorf("%w: failed to update stream '%s': %w", apperrors.ErrNATS, streamConfig.Name, err)
	}
	log.Info("Updated stream", zap.Any("subjects", streamConfig.Subjects))
	return nil
}

// SubscribeBroadcast creates an ephemeral push consumer that only delivers
// messages published from now on. Every replica gets every message.
func (c *Client) SubscribeBroadcast(subject string, handler nats.MsgHandler) (*nats.Subscription, error) {
	sub, err := c.js.Subscribe(
		subject,
		handler,
		nats.DeliverNew(),
		nats.AckNone(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to subscribe to '%s': %w", apperrors.ErrNATS, subject, err)
	}
	return sub, nil
}

// Publish publishes a message to a subject with optional headers
func (c *Client) Publish(ctx context.Context, subject string, data []byte, headers map[string]string) error {
	msg := nats.NewMsg(subject)
	msg.Data = data
	for k, v := range headers {
		msg.Header.Add(k, v)
	}

	if _, err := c.js.PublishMsg(msg, nats.Context(ctx)); err != nil {
		return fmt.Errorf("%w: failed to publish message: %w", apperrors.ErrNATS, err)
	}
	return nil
}

// IsConnected reports whether the underlying connection is up
func (c *Client) IsConnected() bool {
	return c.nc != nil && c.nc.IsConnected()
}

// Close drains and closes the NATS connection
func (c *Client) Close() {
	if c.nc == nil {
		return
	}
	if err := c.nc.Drain(); err != nil {
		logger.Log.Warn("NATS drain failed, closing", zap.Error(err))
		c.nc.Close()
	}
}
