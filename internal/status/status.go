// Package status is the board long-running imports publish their progress
// to. Entries live in the TTL store and expire with the token TTL.
package status

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/zulandar/testyard/internal/apperr"
	"github.com/zulandar/testyard/internal/auth"
	"github.com/zulandar/testyard/internal/kv"
)

// Entry statuses.
const (
	StatusImporting = "importing"
	StatusDone      = "done"
)

const keySuffix = "result"

// Entry is the state of one import.
type Entry struct {
	CampaignID string    `json:"campaign_id"`
	Version    string    `json:"version"`
	IsPartial  bool      `json:"is_partial"`
	Status     string    `json:"status"`
	Created    time.Time `json:"created"`
	Updated    time.Time `json:"updated"`
	Message    string    `json:"message"`
	Error      string    `json:"error,omitempty"`
}

// Board reads and writes import entries.
type Board struct {
	store kv.Store
	ttl   time.Duration
	now   func() time.Time
}

// NewBoard returns a board whose entries expire after ttl.
func NewBoard(store kv.Store, ttl time.Duration) *Board {
	return &Board{store: store, ttl: ttl, now: time.Now}
}

// Key builds a fresh status key for an import into project.
func Key(project, version, campaignID string) string {
	return strings.Join([]string{project, version, campaignID, uuid.NewString(), keySuffix}, ":")
}

// ProjectOf returns the project component of key.
func ProjectOf(key string) (string, error) {
	parts := strings.Split(key, ":")
	if len(parts) < 5 || parts[len(parts)-1] != keySuffix || parts[0] == "" {
		return "", fmt.Errorf("status: key %q: %w", key, apperr.ErrMalformedInput)
	}
	return parts[0], nil
}

// Start publishes a new importing entry and returns its key.
func (b *Board) Start(ctx context.Context, project, version, campaignID string, isPartial bool) (string, error) {
	key := Key(project, version, campaignID)
	now := b.now().UTC()
	e := Entry{
		CampaignID: campaignID,
		Version:    version,
		IsPartial:  isPartial,
		Status:     StatusImporting,
		Created:    now,
		Updated:    now,
	}
	if err := b.put(ctx, key, e); err != nil {
		return "", err
	}
	return key, nil
}

// Finish marks an entry done with a summary message.
func (b *Board) Finish(ctx context.Context, key, message string) error {
	return b.update(ctx, key, func(e *Entry) {
		e.Status = StatusDone
		e.Message = message
	})
}

// Fail marks an entry done with the error that stopped the import.
func (b *Board) Fail(ctx context.Context, key string, cause error) error {
	return b.update(ctx, key, func(e *Entry) {
		e.Status = StatusDone
		e.Message = "import failed"
		e.Error = cause.Error()
	})
}

// Lookup returns an entry without checking scopes.
func (b *Board) Lookup(ctx context.Context, key string) (*Entry, error) {
	raw, err := b.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return nil, fmt.Errorf("status: %s: %w", key, apperr.ErrStatusKeyNotFound)
		}
		return nil, fmt.Errorf("status: get %s: %w", key, err)
	}
	var e Entry
	if err := json.Unmarshal(raw, &e); err != nil {
		return nil, fmt.Errorf("status: decode %s: %w", key, err)
	}
	return &e, nil
}

// Get returns an entry to a caller holding scopes. The caller needs a right
// on the key's project, or must be a global admin.
func (b *Board) Get(ctx context.Context, key string, scopes map[string]string) (*Entry, error) {
	project, err := ProjectOf(key)
	if err != nil {
		return nil, err
	}
	if auth.Right(scopes, project) == "" {
		return nil, fmt.Errorf("status: key of project %s: %w", project, apperr.ErrAccessDenied)
	}
	return b.Lookup(ctx, key)
}

func (b *Board) update(ctx context.Context, key string, fn func(*Entry)) error {
	e, err := b.Lookup(ctx, key)
	if err != nil {
		return err
	}
	fn(e)
	e.Updated = b.now().UTC()
	return b.put(ctx, key, *e)
}

func (b *Board) put(ctx context.Context, key string, e Entry) error {
	raw, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("status: encode %s: %w", key, err)
	}
	if err := b.store.Set(ctx, key, raw, b.ttl); err != nil {
		return fmt.Errorf("status: set %s: %w", key, err)
	}
	return nil
}
