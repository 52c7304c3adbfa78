package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/example/task-manager/domain/access"
	"github.com/example/task-manager/domain/apperr"
	"github.com/example/task-manager/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditModule_RecordsEvents(t *testing.T) {
	var buf bytes.Buffer
	m := NewModule(slog.New(slog.NewJSONHandler(&buf, nil)), 0)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, m.handleTaskCreated(ctx, events.TaskCreatedEvent{TaskID: "t1", OwnerID: "u1", ActorID: "u1", Status: "pending", CreatedAt: now}, nil))
	require.NoError(t, m.handleTaskUpdated(ctx, events.TaskUpdatedEvent{TaskID: "t1", OwnerID: "u1", ActorID: "a1", Fields: []string{"title", "status"}, UpdatedAt: now}, nil))
	require.NoError(t, m.handleUserRoleChanged(ctx, events.UserRoleChangedEvent{UserID: "u1", ActorID: "a1", OldRole: "user", NewRole: "admin"}, nil))

	entries := m.Entries()
	require.Len(t, entries, 3)
	assert.Equal(t, "task.created", entries[0].Event)
	assert.Equal(t, "owner=u1 fields=title,status", entries[1].Detail)
	assert.Equal(t, "a1", entries[1].ActorID)
	assert.Equal(t, "user->admin", entries[2].Detail)
	assert.False(t, entries[2].Timestamp.IsZero())

	assert.Contains(t, buf.String(), `"event":"task.updated"`)
	assert.Contains(t, buf.String(), `"target_id":"t1"`)
}

func TestAuditModule_BoundedHistory(t *testing.T) {
	var buf bytes.Buffer
	m := NewModule(slog.New(slog.NewTextHandler(&buf, nil)), 2)
	ctx := context.Background()

	for _, id := range []string{"t1", "t2", "t3"} {
		require.NoError(t, m.handleTaskDeleted(ctx, events.TaskDeletedEvent{TaskID: id, ActorID: "u1"}, nil))
	}

	entries := m.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "t2", entries[0].TargetID)
	assert.Equal(t, "t3", entries[1].TargetID)

	entries[0].TargetID = "mutated"
	assert.Equal(t, "t2", m.Entries()[0].TargetID, "Entries returns a copy")
}

func TestAuditModule_ListIsAdminOnlyAndNewestFirst(t *testing.T) {
	m := NewModule(slog.New(slog.NewTextHandler(io.Discard, nil)), 0)
	ctx := context.Background()

	for _, id := range []string{"t1", "t2", "t3"} {
		require.NoError(t, m.handleTaskDeleted(ctx, events.TaskDeletedEvent{TaskID: id, ActorID: "u1"}, nil))
	}

	admin := access.Principal{ID: "a1", Role: access.RoleAdmin}
	entries, err := m.List(ctx, admin, 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "t3", entries[0].TargetID)
	assert.Equal(t, "t2", entries[1].TargetID)

	all, err := m.List(ctx, admin, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	_, err = m.List(ctx, access.Principal{ID: "u1", Role: access.RoleUser}, 0)
	assert.True(t, apperr.Is(err, apperr.KindForbidden))

	_, err = m.List(ctx, access.Principal{}, 0)
	assert.True(t, apperr.Is(err, apperr.KindUnauthenticated))
}

func TestAuditModule_ListEntriesCarriesFault(t *testing.T) {
	m := NewModule(slog.New(slog.NewTextHandler(io.Discard, nil)), 0)

	resp, err := m.listEntries(context.Background(), ListEntriesRequest{Actor: access.Principal{ID: "u1", Role: access.RoleUser}}, nil)
	require.NoError(t, err)

	raw, err := json.Marshal(resp)
	require.NoError(t, err)
	var decoded ListEntriesResponse
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.True(t, apperr.Is(decoded.Err(), apperr.KindForbidden))
}
