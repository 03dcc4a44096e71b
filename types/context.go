package types

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// PartialResult holds intermediate data preserved through cancellation so it
// can be retrieved after the operation exits.
type PartialResult struct {
	Count     int   `json:"count"`
	Buffer    []any `json:"buffer,omitempty"`
	Completed bool  `json:"completed"`
}

// OperationContext carries the identity and observable state of an operation.
// It is safe for concurrent use; mutation goes through the setter methods.
type OperationContext struct {
	mu sync.RWMutex

	id        string
	name      string
	parentID  string
	status    OperationStatus
	createdAt time.Time
	startedAt time.Time
	endedAt   time.Time

	cancelReason  CancellationReason
	cancelMessage string
	cancelledAt   time.Time

	errMsg        string
	metadata      map[string]any
	partialResult *PartialResult
}

// NewOperationContext creates a context with a generated id if none is given.
func NewOperationContext(id, name, parentID string, metadata map[string]any) *OperationContext {
	if id == "" {
		id = uuid.NewString()
	}
	md := make(map[string]any, len(metadata))
	for k, v := range metadata {
		md[k] = v
	}
	return &OperationContext{
		id:        id,
		name:      name,
		parentID:  parentID,
		status:    StatusPending,
		createdAt: time.Now(),
		metadata:  md,
	}
}

// ID returns the operation identifier.
func (c *OperationContext) ID() string { return c.id }

// Name returns the human-readable operation name.
func (c *OperationContext) Name() string { return c.name }

// ParentID returns the parent operation id, or "" for root operations.
func (c *OperationContext) ParentID() string { return c.parentID }

// Status returns the current lifecycle status.
func (c *OperationContext) Status() OperationStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status
}

// SetStatus transitions to the given status. Illegal transitions are rejected.
func (c *OperationContext) SetStatus(to OperationStatus) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.status.CanTransition(to) {
		return fmt.Errorf("illegal status transition %s -> %s", c.status, to)
	}
	c.status = to
	switch to {
	case StatusRunning:
		if c.startedAt.IsZero() {
			c.startedAt = time.Now()
		}
	case StatusCompleted, StatusCancelled, StatusFailed:
		if c.endedAt.IsZero() {
			c.endedAt = time.Now()
		}
	}
	return nil
}

// CreatedAt returns the construction timestamp.
func (c *OperationContext) CreatedAt() time.Time { return c.createdAt }

// StartedAt returns the entry timestamp, zero if never entered.
func (c *OperationContext) StartedAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.startedAt
}

// EndedAt returns the exit timestamp, zero while active.
func (c *OperationContext) EndedAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.endedAt
}

// Duration returns the active duration, or the elapsed time so far while the
// operation is still running.
func (c *OperationContext) Duration() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.startedAt.IsZero() {
		return 0
	}
	if c.endedAt.IsZero() {
		return time.Since(c.startedAt)
	}
	return c.endedAt.Sub(c.startedAt)
}

// SetCancellation records the cancellation reason and message. The first
// record wins; later calls are ignored.
func (c *OperationContext) SetCancellation(reason CancellationReason, message string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancelReason != "" {
		return
	}
	c.cancelReason = reason
	c.cancelMessage = message
	c.cancelledAt = time.Now()
}

// CancelReason returns the recorded cancellation reason, "" if none.
func (c *OperationContext) CancelReason() CancellationReason {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cancelReason
}

// CancelMessage returns the recorded cancellation message.
func (c *OperationContext) CancelMessage() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cancelMessage
}

// CancelledAt returns when the cancellation was recorded.
func (c *OperationContext) CancelledAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cancelledAt
}

// SetError records the failure message for status Failed.
func (c *OperationContext) SetError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.errMsg = err.Error()
	}
}

// ErrorMessage returns the recorded failure message, "" if none.
func (c *OperationContext) ErrorMessage() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.errMsg
}

// Metadata returns a copy of the metadata map.
func (c *OperationContext) Metadata() map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	md := make(map[string]any, len(c.metadata))
	for k, v := range c.metadata {
		md[k] = v
	}
	return md
}

// SetMetadata stores a metadata entry.
func (c *OperationContext) SetMetadata(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.metadata == nil {
		c.metadata = make(map[string]any)
	}
	c.metadata[key] = value
}

// SetPartialResult stores the partial result slot.
func (c *OperationContext) SetPartialResult(pr *PartialResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.partialResult = pr
}

// PartialResult returns the partial result slot, nil if none was recorded.
func (c *OperationContext) PartialResult() *PartialResult {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.partialResult
}

// Snapshot is an immutable copy of the context state used by registry views.
type Snapshot struct {
	ID            string             `json:"id"`
	Name          string             `json:"name,omitempty"`
	ParentID      string             `json:"parent_id,omitempty"`
	Status        OperationStatus    `json:"status"`
	CreatedAt     time.Time          `json:"created_at"`
	StartedAt     time.Time          `json:"started_at,omitzero"`
	EndedAt       time.Time          `json:"ended_at,omitzero"`
	CancelReason  CancellationReason `json:"cancel_reason,omitempty"`
	CancelMessage string             `json:"cancel_message,omitempty"`
	Error         string             `json:"error,omitempty"`
	Metadata      map[string]any     `json:"metadata,omitempty"`
	PartialResult *PartialResult     `json:"partial_result,omitempty"`
}

// Snapshot returns an independent copy of the current state.
func (c *OperationContext) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	md := make(map[string]any, len(c.metadata))
	for k, v := range c.metadata {
		md[k] = v
	}
	var pr *PartialResult
	if c.partialResult != nil {
		cp := *c.partialResult
		cp.Buffer = append([]any(nil), c.partialResult.Buffer...)
		pr = &cp
	}
	return Snapshot{
		ID:            c.id,
		Name:          c.name,
		ParentID:      c.parentID,
		Status:        c.status,
		CreatedAt:     c.createdAt,
		StartedAt:     c.startedAt,
		EndedAt:       c.endedAt,
		CancelReason:  c.cancelReason,
		CancelMessage: c.cancelMessage,
		Error:         c.errMsg,
		Metadata:      md,
		PartialResult: pr,
	}
}

// Age returns how long ago the operation was created.
func (s Snapshot) Age() time.Duration {
	return time.Since(s.CreatedAt)
}

// LogFields returns structured log fields for the operation.
func (c *OperationContext) LogFields() []zap.Field {
	c.mu.RLock()
	defer c.mu.RUnlock()
	fields := []zap.Field{
		zap.String("operation_id", c.id),
		zap.String("status", string(c.status)),
	}
	if c.name != "" {
		fields = append(fields, zap.String("operation_name", c.name))
	}
	if c.parentID != "" {
		fields = append(fields, zap.String("parent_id", c.parentID))
	}
	if c.cancelReason != "" {
		fields = append(fields, zap.String("cancel_reason", string(c.cancelReason)))
	}
	return fields
}
