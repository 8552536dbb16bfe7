package rpc

import (
	"context"
	"fmt"
	"sync/atomic"

	amqp "github.com/rabbitmq/amqp091-go"

	errspkg "github.com/glyphbot/shardlink/internal/rpc/errors"
	"github.com/glyphbot/shardlink/internal/rpc/ids"
	"github.com/glyphbot/shardlink/internal/rpc/jsoncodec"
	"github.com/glyphbot/shardlink/internal/rpc/logging"
)

// Status bands for the response envelope. 0-99 success, 100-199 client error,
// 200-299 server error, 300-399 errors surfaced by the gateway client.
const (
	StatusOK           = 0
	StatusNotFound     = 100
	StatusBadRequest   = 101
	StatusServerError  = 200
	StatusGatewayError = 300
)

// ErrorCode identifies the specific failure inside a status band.
type ErrorCode string

const (
	CodeInvalidAction         ErrorCode = "InvalidAction"
	CodeInvalidRequest        ErrorCode = "InvalidRequest"
	CodeInvalidGuild          ErrorCode = "InvalidGuild"
	CodeInvalidShard          ErrorCode = "InvalidShard"
	CodeInvalidUser           ErrorCode = "InvalidUser"
	CodeInvalidRole           ErrorCode = "InvalidRole"
	CodeInvalidChannel        ErrorCode = "InvalidChannel"
	CodeInvalidMessage        ErrorCode = "InvalidMessage"
	CodeInvalidSlot           ErrorCode = "InvalidSlot"
	CodeInvalidPermission     ErrorCode = "InvalidPermission"
	CodeCommandNotFound       ErrorCode = "CommandNotFound"
	CodeResponderNotFound     ErrorCode = "ResponderNotFound"
	CodeSlotNotFound          ErrorCode = "SlotNotFound"
	CodeNotFound              ErrorCode = "NotFound"
	CodeInteractionExpired    ErrorCode = "InteractionExpired"
	CodeUnsupportedCapability ErrorCode = "UnsupportedCapability"
	CodeMissingPermission     ErrorCode = "MissingPermission"
	CodeCannotInteract        ErrorCode = "CannotInteract"
	CodeServerException       ErrorCode = "ServerException"
)

// ResponseError is the error half of a response envelope.
type ResponseError struct {
	ErrorCode string `json:"error_code"`
	Message   string `json:"message"`
}

// Response is the terminal JSON envelope returned for every request that
// carried a reply-to destination. Exactly one of Data and Error is populated.
type Response struct {
	StatusCode int            `json:"status_code"`
	Data       any            `json:"data"`
	Error      *ResponseError `json:"error"`
}

// Success builds a success envelope carrying the given payload.
func Success(data any) Response {
	return Response{StatusCode: StatusOK, Data: data}
}

// Failure builds a failure envelope in the given status band.
func Failure(status int, code ErrorCode, message string) Response {
	return Response{
		StatusCode: status,
		Error:      &ResponseError{ErrorCode: string(code), Message: message},
	}
}

// IsError reports whether the response carries an error.
func (r Response) IsError() bool {
	return r.Error != nil
}

// Acknowledger settles one delivery with the broker. The Acknowledger of an
// amqp091 delivery satisfies it.
type Acknowledger interface {
	Ack(tag uint64, multiple bool) error
	Reject(tag uint64, requeue bool) error
}

// Delivery is the routing metadata and raw body of one broker delivery. It
// lives only for the duration of one handler invocation.
type Delivery struct {
	Action        string
	CorrelationID string
	ReplyTo       string
	RoutingKey    string
	Tag           uint64
	Body          []byte

	acker   Acknowledger
	settled atomic.Bool
}

// NewDelivery builds a Delivery. Exposed for tests and for callers that feed
// deliveries from a non-AMQP source.
func NewDelivery(action, correlationID, replyTo, routingKey string, tag uint64, body []byte, acker Acknowledger) *Delivery {
	return &Delivery{
		Action:        action,
		CorrelationID: correlationID,
		ReplyTo:       replyTo,
		RoutingKey:    routingKey,
		Tag:           tag,
		Body:          body,
		acker:         acker,
	}
}

const actionHeader = "action"

func deliveryFromAMQP(d *amqp.Delivery) *Delivery {
	action, _ := d.Headers[actionHeader].(string)
	return NewDelivery(action, d.CorrelationId, d.ReplyTo, d.RoutingKey, d.DeliveryTag, d.Body, d.Acknowledger)
}

// Settled reports whether the delivery has already been acknowledged or
// rejected.
func (d *Delivery) Settled() bool {
	return d.settled.Load()
}

// Reject settles the delivery without a response. Redelivery is never
// requested.
func (d *Delivery) Reject() error {
	if !d.settled.CompareAndSwap(false, true) {
		return errspkg.ErrAlreadyAcked
	}
	return d.acker.Reject(d.Tag, false)
}

// replier publishes response envelopes and acknowledges their deliveries. It
// owns one publishing channel, serialised by a mutex because synchronous
// dispatches and asynchronous gateway completions publish concurrently.
type replier struct {
	pub publisherFunc
	log logging.ServiceLogger
}

type publisherFunc func(ctx context.Context, key string, msg amqp.Publishing) error

// sendAndAck serialises the response, publishes it to the delivery's reply-to
// destination with its correlation id, and acknowledges the delivery. It
// performs at most one settle per delivery; a second call is a protocol
// violation and returns ErrAlreadyAcked without touching the broker.
func (r *replier) sendAndAck(ctx context.Context, d *Delivery, resp Response) error {
	if d.ReplyTo == "" {
		return errspkg.ErrReplyToRequired
	}
	if !d.settled.CompareAndSwap(false, true) {
		return errspkg.ErrAlreadyAcked
	}

	body, err := jsoncodec.Marshal(resp)
	if err != nil {
		// Our own envelope failed to serialise; nothing useful can be sent.
		if rejectErr := d.acker.Reject(d.Tag, false); rejectErr != nil {
			r.log.Error("Failed to reject delivery", rejectErr, logging.LogFields{"correlation_id": d.CorrelationID})
		}
		return fmt.Errorf("marshal response: %w", err)
	}

	publishing := amqp.Publishing{
		ContentType:   "application/json",
		CorrelationId: d.CorrelationID,
		MessageId:     ids.CreateULID(),
		Body:          body,
	}
	if err := r.pub(ctx, d.ReplyTo, publishing); err != nil {
		if rejectErr := d.acker.Reject(d.Tag, false); rejectErr != nil {
			r.log.Error("Failed to reject delivery", rejectErr, logging.LogFields{"correlation_id": d.CorrelationID})
		}
		return fmt.Errorf("publish response to %s: %w", d.ReplyTo, err)
	}

	if err := d.acker.Ack(d.Tag, false); err != nil {
		return fmt.Errorf("ack delivery %d: %w", d.Tag, err)
	}
	return nil
}
