// Package session tracks conversations: each session has an active document
// set, a topic and a message log held by a store.ConversationStore.
package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/54b3r/docintel-go/internal/store"
)

const (
	// DefaultMaxActive is the number of documents a session keeps active.
	DefaultMaxActive = 2

	// DefaultHistoryDepth is the number of messages replayed to the chat
	// handler.
	DefaultHistoryDepth = 10

	// recentInInfo is the number of messages reported by Info.
	recentInInfo = 5
)

// ErrDocumentNotReady is returned when activating a document that is not
// ready in the document store.
var ErrDocumentNotReady = errors.New("document is not ready")

// NotFoundError reports an unknown session id.
type NotFoundError struct {
	// ID is the session id that was looked up.
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("session %q not found", e.ID)
}

// Documents reports document readiness. docstore.Store implements it.
type Documents interface {
	Ready(id string) bool
}

// Config tunes a Manager.
type Config struct {
	// MaxActive caps the active document set; the oldest are dropped.
	MaxActive int
	// HistoryDepth is the number of messages History returns by default.
	HistoryDepth int
}

// Info is a snapshot of one session.
type Info struct {
	ID              string          `json:"session_id"`
	MessageCount    int             `json:"message_count"`
	ActiveDocuments []string        `json:"active_documents"`
	Topic           string          `json:"current_topic,omitempty"`
	RecentMessages  []store.Message `json:"recent_messages"`
	CreatedAt       time.Time       `json:"created_at"`
}

// state is the mutable part of a session. Its mutex serialises the turns
// and clears of one session without blocking other sessions.
type state struct {
	mu        sync.Mutex
	active    []string
	topic     string
	createdAt time.Time
}

// Manager owns every session.
type Manager struct {
	// log holds the messages.
	log store.ConversationStore
	// docs validates activations.
	docs Documents
	// cfg holds resolved defaults.
	cfg Config

	// mu guards sessions.
	mu sync.RWMutex
	// sessions maps id to state.
	sessions map[string]*state

	// now is replaceable in tests.
	now func() time.Time
}

// NewManager returns a Manager. A nil cfg uses the defaults.
func NewManager(log store.ConversationStore, docs Documents, cfg *Config) *Manager {
	c := Config{}
	if cfg != nil {
		c = *cfg
	}
	if c.MaxActive <= 0 {
		c.MaxActive = DefaultMaxActive
	}
	if c.HistoryDepth <= 0 {
		c.HistoryDepth = DefaultHistoryDepth
	}
	return &Manager{
		log:      log,
		docs:     docs,
		cfg:      c,
		sessions: make(map[string]*state),
		now:      time.Now,
	}
}

// Create starts an empty session and returns its id.
func (m *Manager) Create() string {
	id := uuid.NewString()
	m.mu.Lock()
	m.sessions[id] = &state{createdAt: m.now()}
	m.mu.Unlock()
	return id
}

// Exists returns a *NotFoundError for an unknown id.
func (m *Manager) Exists(id string) error {
	_, err := m.get(id)
	return err
}

func (m *Manager) get(id string) (*state, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st, ok := m.sessions[id]
	if !ok {
		return nil, &NotFoundError{ID: id}
	}
	return st, nil
}

// Active returns the active document ids, oldest first. Ids whose document
// has since left the ready state are dropped.
func (m *Manager) Active(id string) ([]string, error) {
	st, err := m.get(id)
	if err != nil {
		return nil, err
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	return m.readyActive(st), nil
}

// readyActive prunes ids whose document is no longer ready and returns a
// copy of the rest. st.mu must be held.
func (m *Manager) readyActive(st *state) []string {
	kept := st.active[:0]
	for _, d := range st.active {
		if m.docs.Ready(d) {
			kept = append(kept, d)
		}
	}
	st.active = kept
	return append([]string(nil), kept...)
}

// SetActive replaces the active set with docIDs. Every id must be ready.
// Duplicates collapse and only the last MaxActive ids are kept.
func (m *Manager) SetActive(id string, docIDs []string) ([]string, error) {
	st, err := m.get(id)
	if err != nil {
		return nil, err
	}

	// Readiness is checked under st.mu so a concurrent removal either
	// fails this call or runs its DropDocument after it.
	st.mu.Lock()
	defer st.mu.Unlock()
	if err := m.checkReady(docIDs); err != nil {
		return nil, err
	}
	st.active = m.bound(nil, docIDs)
	return append([]string(nil), st.active...), nil
}

// Activate appends docIDs to the active set, moving ids already present to
// the newest position and dropping the oldest beyond MaxActive.
func (m *Manager) Activate(id string, docIDs ...string) ([]string, error) {
	st, err := m.get(id)
	if err != nil {
		return nil, err
	}

	// Readiness is checked under st.mu so a concurrent removal either
	// fails this call or runs its DropDocument after it.
	st.mu.Lock()
	defer st.mu.Unlock()
	if err := m.checkReady(docIDs); err != nil {
		return nil, err
	}
	m.readyActive(st)
	st.active = m.bound(st.active, docIDs)
	return append([]string(nil), st.active...), nil
}

// checkReady wraps ErrDocumentNotReady for the first id that is not ready.
func (m *Manager) checkReady(docIDs []string) error {
	for _, d := range docIDs {
		if !m.docs.Ready(d) {
			return fmt.Errorf("session: activate %s: %w", d, ErrDocumentNotReady)
		}
	}
	return nil
}

// bound appends add to cur with later occurrences winning and keeps the
// newest MaxActive ids.
func (m *Manager) bound(cur, add []string) []string {
	out := make([]string, 0, len(cur)+len(add))
	for _, d := range append(append([]string(nil), cur...), add...) {
		for i, have := range out {
			if have == d {
				out = append(out[:i], out[i+1:]...)
				break
			}
		}
		out = append(out, d)
	}
	if over := len(out) - m.cfg.MaxActive; over > 0 {
		out = out[over:]
	}
	return out
}

// Deactivate removes one document from the session's active set. It reports
// whether the document was active.
func (m *Manager) Deactivate(id, docID string) (bool, error) {
	st, err := m.get(id)
	if err != nil {
		return false, err
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.remove(docID), nil
}

func (st *state) remove(docID string) bool {
	for i, d := range st.active {
		if d == docID {
			st.active = append(st.active[:i], st.active[i+1:]...)
			return true
		}
	}
	return false
}

// DropDocument removes docID from every session and returns how many
// sessions had it active.
func (m *Manager) DropDocument(docID string) int {
	m.mu.RLock()
	states := make([]*state, 0, len(m.sessions))
	for _, st := range m.sessions {
		states = append(states, st)
	}
	m.mu.RUnlock()

	n := 0
	for _, st := range states {
		st.mu.Lock()
		if st.remove(docID) {
			n++
		}
		st.mu.Unlock()
	}
	return n
}

// AppendTurn records a user message and the assistant reply as one unit and
// sets the session topic.
func (m *Manager) AppendTurn(ctx context.Context, id string, userMsg, assistantMsg store.Message, topic string) error {
	st, err := m.get(id)
	if err != nil {
		return err
	}
	userMsg.Role = store.RoleUser
	assistantMsg.Role = store.RoleAssistant

	st.mu.Lock()
	defer st.mu.Unlock()
	if err := m.log.Append(ctx, id, userMsg, assistantMsg); err != nil {
		return fmt.Errorf("session: append turn: %w", err)
	}
	if topic != "" {
		st.topic = topic
	}
	return nil
}

// History returns the newest n messages, oldest first. A non-positive n uses
// the configured depth.
func (m *Manager) History(ctx context.Context, id string, n int) ([]store.Message, error) {
	if _, err := m.get(id); err != nil {
		return nil, err
	}
	if n <= 0 {
		n = m.cfg.HistoryDepth
	}
	msgs, err := m.log.Recent(ctx, id, n)
	if err != nil {
		return nil, fmt.Errorf("session: history: %w", err)
	}
	return msgs, nil
}

// Clear drops the session's messages, active set and topic. Documents and
// cached indexes are untouched.
func (m *Manager) Clear(ctx context.Context, id string) error {
	st, err := m.get(id)
	if err != nil {
		return err
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	if err := m.log.Clear(ctx, id); err != nil {
		return fmt.Errorf("session: clear: %w", err)
	}
	st.active = nil
	st.topic = ""
	return nil
}

// Info returns a snapshot of the session.
func (m *Manager) Info(ctx context.Context, id string) (*Info, error) {
	st, err := m.get(id)
	if err != nil {
		return nil, err
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	count, err := m.log.Count(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("session: info: %w", err)
	}
	recent, err := m.log.Recent(ctx, id, recentInInfo)
	if err != nil {
		return nil, fmt.Errorf("session: info: %w", err)
	}
	if recent == nil {
		recent = []store.Message{}
	}
	return &Info{
		ID:              id,
		MessageCount:    count,
		ActiveDocuments: append([]string{}, m.readyActive(st)...),
		Topic:           st.topic,
		RecentMessages:  recent,
		CreatedAt:       st.createdAt,
	}, nil
}

// List returns the ids of every session, sorted.
func (m *Manager) List() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
