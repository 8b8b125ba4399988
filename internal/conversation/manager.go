// Package conversation keeps the per-problem chat history of the client and
// persists it through a key-value port after every mutation.
package conversation

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
)

// StorageKey is the fixed name the whole conversation map is stored under.
const StorageKey = "conversations"

// Role attributes a turn to the learner or the tutor.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one message in a conversation.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Handle identifies an assistant turn that may still receive deltas.
type Handle struct {
	problemID string
	index     int
	gen       uint64
}

// Storage is the durable key-value port the manager persists through.
// Load returns nil data when nothing is stored under key.
type Storage interface {
	Load(key string) ([]byte, error)
	Save(key string, data []byte) error
}

var (
	// ErrEmptyInput rejects a user turn that is blank after trimming.
	ErrEmptyInput = errors.New("message is empty")

	// ErrInvalidState reports a handle that no longer refers to the live
	// last assistant turn, or a replace with no assistant turn to replace.
	ErrInvalidState = errors.New("assistant turn is no longer current")
)

// PersistError reports a failed write. The in-memory mutation it follows
// has been kept.
type PersistError struct {
	Err error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("persist conversations: %v", e.Err)
}

func (e *PersistError) Unwrap() error { return e.Err }

// Manager holds every conversation keyed by problem id.
type Manager struct {
	mu      sync.Mutex
	storage Storage
	convs   map[string][]Turn
	// live maps a problem id to the generation of its in-progress
	// assistant turn; absence means nothing is streaming.
	live   map[string]uint64
	gen    uint64
	logger *slog.Logger
}

// Open restores the manager from storage. A missing or unreadable blob
// yields an empty history; the failure is logged, never returned.
func Open(storage Storage, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{
		storage: storage,
		convs:   map[string][]Turn{},
		live:    map[string]uint64{},
		logger:  logger,
	}

	data, err := storage.Load(StorageKey)
	switch {
	case err != nil:
		logger.Warn("conversation history unavailable, starting empty", "error", err)
	case len(data) == 0:
	default:
		var convs map[string][]Turn
		if err := json.Unmarshal(data, &convs); err != nil {
			logger.Warn("conversation history corrupted, starting empty", "error", err)
			break
		}
		for id, turns := range convs {
			if turns != nil {
				m.convs[id] = turns
			}
		}
	}
	return m
}

// AppendUserTurn appends a user turn to problemID's conversation, creating
// the conversation if needed.
func (m *Manager) AppendUserTurn(problemID, text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyInput
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.convs[problemID] = append(m.convs[problemID], Turn{Role: RoleUser, Content: text})
	delete(m.live, problemID)
	return m.persistLocked()
}

// BeginAssistantTurn appends an empty assistant placeholder and returns the
// handle that fills it. Any earlier handle for the same problem goes stale.
// The handle is valid even when the returned error is a *PersistError.
func (m *Manager) BeginAssistantTurn(problemID string) (Handle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.convs[problemID] = append(m.convs[problemID], Turn{Role: RoleAssistant})
	m.gen++
	m.live[problemID] = m.gen

	h := Handle{problemID: problemID, index: len(m.convs[problemID]) - 1, gen: m.gen}
	return h, m.persistLocked()
}

// AppendAssistantDelta concatenates delta onto the turn h refers to. It
// fails with ErrInvalidState when that turn is no longer the live last turn.
func (m *Manager) AppendAssistantDelta(problemID string, h Handle, delta string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkLocked(problemID, h); err != nil {
		return err
	}
	turns := m.convs[problemID]
	turns[h.index].Content += delta
	return m.persistLocked()
}

// Complete marks the turn h refers to as finished; later deltas for it are
// rejected. Completing a stale handle is a no-op.
func (m *Manager) Complete(problemID string, h Handle) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.checkLocked(problemID, h) == nil {
		delete(m.live, problemID)
	}
}

// ReplaceLastAssistantTurn overwrites the content of the last turn, which
// must be an assistant turn, and completes it.
func (m *Manager) ReplaceLastAssistantTurn(problemID, fullText string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	turns := m.convs[problemID]
	if len(turns) == 0 || turns[len(turns)-1].Role != RoleAssistant {
		return ErrInvalidState
	}
	turns[len(turns)-1].Content = fullText
	delete(m.live, problemID)
	return m.persistLocked()
}

// ReplaceAssistantTurn overwrites the turn h refers to and completes it.
// Like AppendAssistantDelta it fails with ErrInvalidState for a stale handle.
func (m *Manager) ReplaceAssistantTurn(problemID string, h Handle, fullText string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkLocked(problemID, h); err != nil {
		return err
	}
	m.convs[problemID][h.index].Content = fullText
	delete(m.live, problemID)
	return m.persistLocked()
}

// Turns returns a copy of problemID's turns; empty when there are none.
func (m *Manager) Turns(problemID string) []Turn {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Turn, len(m.convs[problemID]))
	copy(out, m.convs[problemID])
	return out
}

// ProblemIDs lists the problems that have a conversation, sorted.
func (m *Manager) ProblemIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make([]string, 0, len(m.convs))
	for id := range m.convs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Clear removes problemID's whole conversation.
func (m *Manager) Clear(problemID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.convs[problemID]; !ok {
		return nil
	}
	delete(m.convs, problemID)
	delete(m.live, problemID)
	return m.persistLocked()
}

func (m *Manager) checkLocked(problemID string, h Handle) error {
	gen, ok := m.live[problemID]
	if !ok || h.problemID != problemID || h.gen != gen {
		return ErrInvalidState
	}
	if h.index != len(m.convs[problemID])-1 {
		return ErrInvalidState
	}
	return nil
}

func (m *Manager) persistLocked() error {
	data, err := json.Marshal(m.convs)
	if err != nil {
		return &PersistError{Err: err}
	}
	if err := m.storage.Save(StorageKey, data); err != nil {
		m.logger.Warn("failed to persist conversations", "error", err)
		return &PersistError{Err: err}
	}
	return nil
}
