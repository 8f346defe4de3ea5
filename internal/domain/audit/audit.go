// Package audit records who did what to a document.
//
// Entries are written from after-hooks, so a failing sink is logged and
// never undoes the audited operation.
package audit

import (
	"context"
	"encoding/json"
	"time"

	appctx "bakery/internal/core/context"
	"bakery/internal/core/id"
	"bakery/internal/domain"
	"bakery/pkg/logger"
)

// Action is the audited operation.
type Action string

const (
	ActionCreate  Action = "create"
	ActionUpdate  Action = "update"
	ActionDelete  Action = "delete"
	ActionConfirm Action = "confirm"
)

// Entry is one audit record. Snapshot is the entity as JSON after the action.
type Entry struct {
	ID         id.ID           `json:"id"`
	EntityType string          `json:"entityType"`
	EntityID   id.ID           `json:"entityId"`
	Action     Action          `json:"action"`
	UserID     string          `json:"userId,omitempty"`
	Snapshot   json.RawMessage `json:"snapshot,omitempty"`
	CreatedAt  time.Time       `json:"createdAt"`
}

// Sink stores audit entries.
type Sink interface {
	Record(ctx context.Context, e Entry) error
}

var hookActions = map[domain.HookEvent]Action{
	domain.AfterCreate:  ActionCreate,
	domain.AfterUpdate:  ActionUpdate,
	domain.AfterDelete:  ActionDelete,
	domain.AfterConfirm: ActionConfirm,
}

// Track registers after-hooks that send every lifecycle event of T to sink.
func Track[T any](hooks *domain.HookRegistry[T], entityType string, idOf func(T) id.ID, sink Sink) {
	for event, action := range hookActions {
		hooks.On(event, func(ctx context.Context, entity T) error {
			snapshot, err := json.Marshal(entity)
			if err != nil {
				return err
			}
			return sink.Record(ctx, Entry{
				ID:         id.New(),
				EntityType: entityType,
				EntityID:   idOf(entity),
				Action:     action,
				UserID:     appctx.GetUserID(ctx),
				Snapshot:   snapshot,
				CreatedAt:  time.Now().UTC(),
			})
		})
	}
}

// LogSink writes entries to the structured log. It serves the memory driver.
type LogSink struct{}

func (LogSink) Record(ctx context.Context, e Entry) error {
	logger.Info(ctx, "audit",
		"entity_type", e.EntityType,
		"entity_id", e.EntityID,
		"action", e.Action,
		"user_id", e.UserID,
		"snapshot_bytes", len(e.Snapshot))
	return nil
}
