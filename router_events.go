package readsplit

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ice-blockchain/go-readsplit/affinity"
)

type LogEvent interface {
	EventName() string
	Message() string
	LogLevel() slog.Level
	LogAttrs() []slog.Attr
}

type baseEvent struct {
	routerID  uuid.UUID
	EventTime time.Time
}

func newBaseEvent(routerID uuid.UUID) baseEvent {
	return baseEvent{
		routerID:  routerID,
		EventTime: time.Now(),
	}
}

func (e baseEvent) baseAttrs() []slog.Attr {
	return []slog.Attr{
		slog.String("component", "readsplit.router"),
		slog.String("router_id", e.routerID.String()),
		slog.Time("event_time", e.EventTime),
	}
}

type RouterCreatedEvent struct {
	baseEvent
	Replicas   int
	ReadPool   int
	ReadMaster bool
}

func (e RouterCreatedEvent) EventName() string    { return "router_created" }
func (e RouterCreatedEvent) Message() string      { return "Router created" }
func (e RouterCreatedEvent) LogLevel() slog.Level { return slog.LevelInfo }
func (e RouterCreatedEvent) LogAttrs() []slog.Attr {
	attrs := e.baseAttrs()
	attrs = append(attrs,
		slog.String("event", e.EventName()),
		slog.Int("replicas", e.Replicas),
		slog.Int("read_pool_size", e.ReadPool),
		slog.Bool("read_master", e.ReadMaster),
	)
	return attrs
}

type AffinityResolvedEvent struct {
	baseEvent
	Op       string
	Affinity affinity.Affinity
}

func (e AffinityResolvedEvent) EventName() string { return "affinity_resolved" }
func (e AffinityResolvedEvent) Message() string {
	return fmt.Sprintf("Operation %q resolved as %s", e.Op, e.Affinity)
}
func (e AffinityResolvedEvent) LogLevel() slog.Level { return slog.LevelDebug }
func (e AffinityResolvedEvent) LogAttrs() []slog.Attr {
	attrs := e.baseAttrs()
	attrs = append(attrs,
		slog.String("event", e.EventName()),
		slog.String("op", e.Op),
		slog.String("affinity", e.Affinity.String()),
	)
	return attrs
}

type UnsupportedOperationEvent struct {
	baseEvent
	Op    string
	Error error
}

func (e UnsupportedOperationEvent) EventName() string { return "unsupported_operation" }
func (e UnsupportedOperationEvent) Message() string {
	return fmt.Sprintf("Operation %q is not supported by the primary", e.Op)
}
func (e UnsupportedOperationEvent) LogLevel() slog.Level { return slog.LevelWarn }
func (e UnsupportedOperationEvent) LogAttrs() []slog.Attr {
	attrs := e.baseAttrs()
	attrs = append(attrs,
		slog.String("event", e.EventName()),
		slog.String("op", e.Op),
	)
	if e.Error != nil {
		attrs = append(attrs, slog.String("error", e.Error.Error()))
	}
	return attrs
}

type BroadcastFailedEvent struct {
	baseEvent
	Op      string
	Index   int
	Applied int
	Error   error
}

func (e BroadcastFailedEvent) EventName() string { return "broadcast_failed" }
func (e BroadcastFailedEvent) Message() string {
	return fmt.Sprintf("Broadcast of %q failed on node %d", e.Op, e.Index+1)
}
func (e BroadcastFailedEvent) LogLevel() slog.Level { return slog.LevelError }
func (e BroadcastFailedEvent) LogAttrs() []slog.Attr {
	attrs := e.baseAttrs()
	attrs = append(attrs,
		slog.String("event", e.EventName()),
		slog.String("op", e.Op),
		slog.Int("node_index", e.Index),
		slog.Int("applied", e.Applied),
	)
	if e.Error != nil {
		attrs = append(attrs, slog.String("error", e.Error.Error()))
	}
	return attrs
}

type TransactionBeganEvent struct {
	baseEvent
	TxnID uuid.UUID
	Kind  TxnKind
}

func (e TransactionBeganEvent) EventName() string { return "transaction_began" }
func (e TransactionBeganEvent) Message() string {
	return fmt.Sprintf("Transaction (%s) pinned to the primary", e.Kind)
}
func (e TransactionBeganEvent) LogLevel() slog.Level { return slog.LevelDebug }
func (e TransactionBeganEvent) LogAttrs() []slog.Attr {
	attrs := e.baseAttrs()
	attrs = append(attrs,
		slog.String("event", e.EventName()),
		slog.String("txn_id", e.TxnID.String()),
		slog.String("txn_kind", e.Kind.String()),
	)
	return attrs
}

type TransactionEndedEvent struct {
	baseEvent
	TxnID    uuid.UUID
	Kind     TxnKind
	Outcome  TxnOutcome
	Duration time.Duration
	Error    error
}

func (e TransactionEndedEvent) EventName() string { return "transaction_ended" }
func (e TransactionEndedEvent) Message() string {
	if e.Error != nil {
		return fmt.Sprintf("Transaction (%s) %s failed: %s", e.Kind, e.Outcome, e.Error)
	}
	return fmt.Sprintf("Transaction (%s) ended with %s", e.Kind, e.Outcome)
}
func (e TransactionEndedEvent) LogLevel() slog.Level {
	if e.Error != nil {
		return slog.LevelWarn
	}
	return slog.LevelDebug
}
func (e TransactionEndedEvent) LogAttrs() []slog.Attr {
	attrs := e.baseAttrs()
	attrs = append(attrs,
		slog.String("event", e.EventName()),
		slog.String("txn_id", e.TxnID.String()),
		slog.String("txn_kind", e.Kind.String()),
		slog.String("outcome", e.Outcome.String()),
		slog.String("duration", e.Duration.String()),
	)
	if e.Error != nil {
		attrs = append(attrs, slog.String("error", e.Error.Error()))
	}
	return attrs
}
