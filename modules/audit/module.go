// Package audit records task and user mutations published on the event bus.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/example/task-manager/domain/access"
	"github.com/example/task-manager/domain/apperr"
	"github.com/example/task-manager/events"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
)

// DefaultHistorySize is the number of entries kept in memory.
const DefaultHistorySize = 1000

// Entry is one audited mutation.
type Entry struct {
	Event      string    `json:"event"`
	ActorID    string    `json:"actor_id,omitempty"`
	TargetKind string    `json:"target_kind"`
	TargetID   string    `json:"target_id"`
	Detail     string    `json:"detail,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// AuditModule consumes domain events and writes audit records.
type AuditModule struct {
	logger  *slog.Logger
	mu      sync.RWMutex
	entries []Entry
	size    int
}

var _ mono.Module = (*AuditModule)(nil)
var _ mono.EventConsumerModule = (*AuditModule)(nil)
var _ mono.ServiceProviderModule = (*AuditModule)(nil)

// NewModule creates an AuditModule keeping at most size entries. A
// non-positive size uses DefaultHistorySize.
func NewModule(logger *slog.Logger, size int) *AuditModule {
	if size <= 0 {
		size = DefaultHistorySize
	}
	return &AuditModule{
		logger:  logger.With("module", "audit"),
		entries: make([]Entry, 0, size),
		size:    size,
	}
}

func (m *AuditModule) Name() string {
	return "audit"
}

func (m *AuditModule) RegisterEventConsumers(registry mono.EventRegistry) error {
	if err := helper.RegisterTypedEventConsumer(registry, events.TaskCreatedV1, m.handleTaskCreated, m); err != nil {
		return fmt.Errorf("failed to register TaskCreated consumer: %w", err)
	}
	if err := helper.RegisterTypedEventConsumer(registry, events.TaskUpdatedV1, m.handleTaskUpdated, m); err != nil {
		return fmt.Errorf("failed to register TaskUpdated consumer: %w", err)
	}
	if err := helper.RegisterTypedEventConsumer(registry, events.TaskDeletedV1, m.handleTaskDeleted, m); err != nil {
		return fmt.Errorf("failed to register TaskDeleted consumer: %w", err)
	}
	if err := helper.RegisterTypedEventConsumer(registry, events.UserRegisteredV1, m.handleUserRegistered, m); err != nil {
		return fmt.Errorf("failed to register UserRegistered consumer: %w", err)
	}
	if err := helper.RegisterTypedEventConsumer(registry, events.UserDeletedV1, m.handleUserDeleted, m); err != nil {
		return fmt.Errorf("failed to register UserDeleted consumer: %w", err)
	}
	if err := helper.RegisterTypedEventConsumer(registry, events.UserRoleChangedV1, m.handleUserRoleChanged, m); err != nil {
		return fmt.Errorf("failed to register UserRoleChanged consumer: %w", err)
	}

	m.logger.Info("registered event consumers",
		"events", []string{"TaskCreated", "TaskUpdated", "TaskDeleted", "UserRegistered", "UserDeleted", "UserRoleChanged"})
	return nil
}

func (m *AuditModule) handleTaskCreated(ctx context.Context, e events.TaskCreatedEvent, _ *mono.Msg) error {
	m.record(ctx, Entry{
		Event:      "task.created",
		ActorID:    e.ActorID,
		TargetKind: "task",
		TargetID:   e.TaskID,
		Detail:     fmt.Sprintf("owner=%s status=%s", e.OwnerID, e.Status),
		Timestamp:  e.CreatedAt,
	})
	return nil
}

func (m *AuditModule) handleTaskUpdated(ctx context.Context, e events.TaskUpdatedEvent, _ *mono.Msg) error {
	m.record(ctx, Entry{
		Event:      "task.updated",
		ActorID:    e.ActorID,
		TargetKind: "task",
		TargetID:   e.TaskID,
		Detail:     fmt.Sprintf("owner=%s fields=%s", e.OwnerID, strings.Join(e.Fields, ",")),
		Timestamp:  e.UpdatedAt,
	})
	return nil
}

func (m *AuditModule) handleTaskDeleted(ctx context.Context, e events.TaskDeletedEvent, _ *mono.Msg) error {
	m.record(ctx, Entry{
		Event:      "task.deleted",
		ActorID:    e.ActorID,
		TargetKind: "task",
		TargetID:   e.TaskID,
		Detail:     "owner=" + e.OwnerID,
		Timestamp:  e.DeletedAt,
	})
	return nil
}

func (m *AuditModule) handleUserRegistered(ctx context.Context, e events.UserRegisteredEvent, _ *mono.Msg) error {
	m.record(ctx, Entry{
		Event:      "user.registered",
		ActorID:    e.UserID,
		TargetKind: "user",
		TargetID:   e.UserID,
		Detail:     "role=" + e.Role,
		Timestamp:  e.CreatedAt,
	})
	return nil
}

func (m *AuditModule) handleUserDeleted(ctx context.Context, e events.UserDeletedEvent, _ *mono.Msg) error {
	m.record(ctx, Entry{
		Event:      "user.deleted",
		ActorID:    e.ActorID,
		TargetKind: "user",
		TargetID:   e.UserID,
		Timestamp:  e.DeletedAt,
	})
	return nil
}

func (m *AuditModule) handleUserRoleChanged(ctx context.Context, e events.UserRoleChangedEvent, _ *mono.Msg) error {
	m.record(ctx, Entry{
		Event:      "user.role_changed",
		ActorID:    e.ActorID,
		TargetKind: "user",
		TargetID:   e.UserID,
		Detail:     fmt.Sprintf("%s->%s", e.OldRole, e.NewRole),
		Timestamp:  e.ChangedAt,
	})
	return nil
}

func (m *AuditModule) record(ctx context.Context, e Entry) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}

	m.logger.InfoContext(ctx, "audit",
		"event", e.Event,
		"actor_id", e.ActorID,
		"target_kind", e.TargetKind,
		"target_id", e.TargetID,
		"detail", e.Detail,
	)

	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.entries) == m.size {
		copy(m.entries, m.entries[1:])
		m.entries = m.entries[:m.size-1]
	}
	m.entries = append(m.entries, e)
}

// Recent returns up to limit entries, newest first. A non-positive limit
// returns everything retained.
func (m *AuditModule) Recent(limit int) []Entry {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := len(m.entries)
	if limit > 0 && limit < n {
		n = limit
	}
	result := make([]Entry, 0, n)
	for i := len(m.entries) - 1; i >= 0 && len(result) < n; i-- {
		result = append(result, m.entries[i])
	}
	return result
}

// Entries returns the retained entries, oldest first.
func (m *AuditModule) Entries() []Entry {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]Entry, len(m.entries))
	copy(result, m.entries)
	return result
}

func (m *AuditModule) RegisterServices(container mono.ServiceContainer) error {
	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceListEntries, json.Unmarshal, json.Marshal, m.listEntries,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceListEntries, err)
	}
	m.logger.Info("registered services", "services", []string{ServiceListEntries})
	return nil
}

func (m *AuditModule) listEntries(ctx context.Context, req ListEntriesRequest, _ *mono.Msg) (ListEntriesResponse, error) {
	entries, err := m.List(ctx, req.Actor, req.Limit)
	if err != nil {
		return ListEntriesResponse{Entries: []Entry{}, Fault: apperr.FaultOf(err)}, nil
	}
	return ListEntriesResponse{Entries: entries, Total: len(entries)}, nil
}

// List returns up to limit entries, newest first, to an actor allowed to read
// the audit trail. A non-positive limit means DefaultListLimit.
func (m *AuditModule) List(ctx context.Context, actor access.Principal, limit int) ([]Entry, error) {
	res := access.Audit()
	d := access.Authorize(actor, access.ActionList, res)
	m.logger.InfoContext(ctx, "authorization decision",
		"actor_id", actor.ID,
		"actor_role", actor.Role,
		"action", access.ActionList,
		"resource_kind", res.Kind,
		"outcome", d.String(),
	)
	if err := d.Err(access.ActionList, res); err != nil {
		return nil, err
	}

	if limit <= 0 {
		limit = DefaultListLimit
	}
	return m.Recent(limit), nil
}

func (m *AuditModule) Start(_ context.Context) error {
	m.logger.Info("module started", "history_size", m.size)
	return nil
}

func (m *AuditModule) Stop(_ context.Context) error {
	m.logger.Info("module stopped", "entries", len(m.Entries()))
	return nil
}
