package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/Ashvin-Gupta/cancer-extraction-pipeline/internal/domain"
)

// Exchange и routing keys событий конвейера.
const (
	// ExchangeEvents — topic exchange для событий жизненного цикла stage'ей.
	ExchangeEvents = "extraction.events"

	RoutingKeyStageStarted   = "stage.started"
	RoutingKeyStageCompleted = "stage.completed"
	RoutingKeyRunAborted     = "run.aborted"
)

// MessageType — тип события.
type MessageType string

// Типы событий.
const (
	MessageTypeStageStarted   MessageType = "stage.started"
	MessageTypeStageCompleted MessageType = "stage.completed"
	MessageTypeRunAborted     MessageType = "run.aborted"
)

// Message — конверт события.
type Message struct {
	// ID — уникальный идентификатор сообщения.
	ID string `json:"id"`

	// Type — тип события.
	Type MessageType `json:"type"`

	// Payload — полезная нагрузка.
	Payload any `json:"payload"`

	// Timestamp — время создания.
	Timestamp time.Time `json:"timestamp"`
}

// StageStartedPayload — событие о начале выполнения stage.
//
// Слой batch-submission может по нему читать рекомендательный
// профиль ресурсов stage'а.
type StageStartedPayload struct {
	RunID   uuid.UUID              `json:"run_id"`
	StageID string                 `json:"stage_id"`
	Profile domain.ResourceProfile `json:"profile"`
}

// StageCompletedPayload — событие о завершении stage.
type StageCompletedPayload struct {
	RunID    uuid.UUID      `json:"run_id"`
	StageID  string         `json:"stage_id"`
	Outcome  domain.Outcome `json:"outcome"`
	Error    string         `json:"error,omitempty"`
	Duration float64        `json:"duration_seconds"`
}

// RunAbortedPayload — событие об остановке run после падения stage.
type RunAbortedPayload struct {
	RunID         uuid.UUID `json:"run_id"`
	FailedStageID string    `json:"failed_stage_id"`
	Error         string    `json:"error,omitempty"`
}

// Connection — обёртка над AMQP-соединением.
//
// Конвейер — batch-процесс: при недоступности брокера события просто
// не публикуются (без reconnect-циклов), сам run от этого не зависит.
type Connection struct {
	mu      sync.Mutex
	conn    *amqp.Connection
	channel *amqp.Channel
	logger  *slog.Logger
}

// Dial устанавливает соединение с брокером и объявляет exchange.
func Dial(url string, logger *slog.Logger) (*Connection, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	if err := ch.ExchangeDeclare(ExchangeEvents, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}

	logger.Info("connected to RabbitMQ")
	return &Connection{conn: conn, channel: ch, logger: logger}, nil
}

// Close закрывает канал и соединение.
func (c *Connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// Publisher публикует события жизненного цикла stage'ей.
//
// Nil-безопасен: методы на nil-publisher — no-op. Это позволяет
// оркестратору не различать конфигурации с брокером и без.
type Publisher struct {
	conn   *Connection
	logger *slog.Logger
}

// NewPublisher создаёт Publisher поверх соединения.
func NewPublisher(conn *Connection, logger *slog.Logger) *Publisher {
	return &Publisher{conn: conn, logger: logger}
}

func (p *Publisher) publish(ctx context.Context, routingKey string, msgType MessageType, payload any) error {
	if p == nil {
		return nil
	}

	msg := &Message{
		ID:        uuid.New().String(),
		Type:      msgType,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	p.conn.mu.Lock()
	defer p.conn.mu.Unlock()

	err = p.conn.channel.PublishWithContext(
		ctx,
		ExchangeEvents,
		routingKey,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    msg.ID,
			Timestamp:    msg.Timestamp,
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish %s: %w", routingKey, err)
	}

	p.logger.Debug("published event",
		"routing_key", routingKey,
		"message_id", msg.ID,
		"type", msg.Type,
	)
	return nil
}

// StageStarted публикует событие о начале stage.
func (p *Publisher) StageStarted(ctx context.Context, runID uuid.UUID, stage *domain.Stage) error {
	return p.publish(ctx, RoutingKeyStageStarted, MessageTypeStageStarted, StageStartedPayload{
		RunID:   runID,
		StageID: stage.ID,
		Profile: stage.Profile,
	})
}

// StageCompleted публикует событие о завершении stage.
func (p *Publisher) StageCompleted(ctx context.Context, record *domain.RunRecord) error {
	return p.publish(ctx, RoutingKeyStageCompleted, MessageTypeStageCompleted, StageCompletedPayload{
		RunID:    record.RunID,
		StageID:  record.StageID,
		Outcome:  record.Outcome,
		Error:    record.Error,
		Duration: record.Duration().Seconds(),
	})
}

// RunAborted публикует событие об остановке run.
func (p *Publisher) RunAborted(ctx context.Context, runID uuid.UUID, failedStageID, errDetail string) error {
	return p.publish(ctx, RoutingKeyRunAborted, MessageTypeRunAborted, RunAbortedPayload{
		RunID:         runID,
		FailedStageID: failedStageID,
		Error:         errDetail,
	})
}
