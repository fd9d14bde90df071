package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/tipstream/tip_service/internal/domain/entities"
	"github.com/tipstream/tip_service/internal/infrastructure/config"
)

const (
	SubjectDirectTipRequested = "direct.requested"
	subjectStatus             = "status"
	defaultSubjectPrefix      = "tips"
)

// Conn is the part of a NATS connection the publisher uses
type Conn interface {
	Publish(subject string, data []byte) error
}

// Connect opens a NATS connection that keeps reconnecting in the background
func Connect(cfg config.NATSConfig, logger *zap.Logger) (*nats.Conn, error) {
	nc, err := nats.Connect(cfg.URL,
		nats.Name(cfg.Name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("NATS disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("NATS reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	logger.Info("Connected to NATS", zap.String("url", cfg.URL))
	return nc, nil
}

// Publisher emits direct-tip signals and status updates as JSON messages
type Publisher struct {
	conn   Conn
	prefix string
	logger *zap.Logger
}

// NewPublisher creates a publisher using prefix for every subject
func NewPublisher(conn Conn, prefix string, logger *zap.Logger) *Publisher {
	if prefix == "" {
		prefix = defaultSubjectPrefix
	}
	return &Publisher{conn: conn, prefix: prefix, logger: logger}
}

// DirectTipSubject is the subject same-chain tip signals are published on
func (p *Publisher) DirectTipSubject() string {
	return p.prefix + "." + SubjectDirectTipRequested
}

// StatusSubject is the subject status updates of one transaction are published on
func (p *Publisher) StatusSubject(id string) string {
	return p.prefix + "." + subjectStatus + "." + id
}

// PublishDirectTip hands a same-chain tip to the direct tipping collaborator
func (p *Publisher) PublishDirectTip(ctx context.Context, req *entities.DirectTipRequest) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal direct tip: %w", err)
	}
	if err := p.conn.Publish(p.DirectTipSubject(), data); err != nil {
		return fmt.Errorf("publish direct tip: %w", err)
	}
	p.logger.Debug("Direct tip signal published",
		zap.String("transaction_id", req.TransactionID.String()),
		zap.Int64("chain_id", int64(req.ChainID)))
	return nil
}

// PublishStatus fans out a status update to subscribers of the transaction
func (p *Publisher) PublishStatus(ctx context.Context, update entities.TipStatusUpdate) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(update)
	if err != nil {
		return fmt.Errorf("marshal status update: %w", err)
	}
	if err := p.conn.Publish(p.StatusSubject(update.TransactionID.String()), data); err != nil {
		return fmt.Errorf("publish status update: %w", err)
	}
	return nil
}

// NoopPublisher discards everything. Used when NATS is disabled.
type NoopPublisher struct {
	logger *zap.Logger
}

func NewNoopPublisher(logger *zap.Logger) *NoopPublisher {
	return &NoopPublisher{logger: logger}
}

func (p *NoopPublisher) PublishDirectTip(ctx context.Context, req *entities.DirectTipRequest) error {
	p.logger.Warn("NATS disabled, direct tip signal dropped",
		zap.String("transaction_id", req.TransactionID.String()))
	return nil
}

func (p *NoopPublisher) PublishStatus(ctx context.Context, update entities.TipStatusUpdate) error {
	return nil
}
