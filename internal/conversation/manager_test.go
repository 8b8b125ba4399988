package conversation

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStorage struct {
	mu      sync.Mutex
	data    map[string][]byte
	saves   int
	saveErr error
	loadErr error
}

func newMemStorage() *memStorage {
	return &memStorage{data: map[string][]byte{}}
}

func (s *memStorage) Load(key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	return s.data[key], nil
}

func (s *memStorage) Save(key string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves++
	if s.saveErr != nil {
		return s.saveErr
	}
	s.data[key] = append([]byte(nil), data...)
	return nil
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestTurnsFollowCallOrder(t *testing.T) {
	m := Open(newMemStorage(), discard())

	require.NoError(t, m.AppendUserTurn("p1", "How do I start?"))
	h, err := m.BeginAssistantTurn("p1")
	require.NoError(t, err)
	for _, d := range []string{"What ", "is ", "the input?"} {
		require.NoError(t, m.AppendAssistantDelta("p1", h, d))
	}
	m.Complete("p1", h)
	require.NoError(t, m.AppendUserTurn("p1", "A list of ints."))

	assert.Equal(t, []Turn{
		{Role: RoleUser, Content: "How do I start?"},
		{Role: RoleAssistant, Content: "What is the input?"},
		{Role: RoleUser, Content: "A list of ints."},
	}, m.Turns("p1"))
}

func TestAppendUserTurnRejectsBlank(t *testing.T) {
	store := newMemStorage()
	m := Open(store, discard())

	assert.ErrorIs(t, m.AppendUserTurn("p1", "  \n\t"), ErrEmptyInput)
	assert.Empty(t, m.Turns("p1"))
	assert.Zero(t, store.saves)
}

func TestTurnsUnknownProblemIsEmpty(t *testing.T) {
	m := Open(newMemStorage(), discard())
	turns := m.Turns("nope")
	assert.NotNil(t, turns)
	assert.Empty(t, turns)
}

func TestTurnsReturnsCopy(t *testing.T) {
	m := Open(newMemStorage(), discard())
	require.NoError(t, m.AppendUserTurn("p1", "hi"))

	turns := m.Turns("p1")
	turns[0].Content = "changed"
	assert.Equal(t, "hi", m.Turns("p1")[0].Content)
}

func TestStaleHandleRejected(t *testing.T) {
	m := Open(newMemStorage(), discard())
	require.NoError(t, m.AppendUserTurn("p1", "q1"))
	old, err := m.BeginAssistantTurn("p1")
	require.NoError(t, err)

	require.NoError(t, m.AppendUserTurn("p1", "q2"))
	assert.ErrorIs(t, m.AppendAssistantDelta("p1", old, "late"), ErrInvalidState)

	current, err := m.BeginAssistantTurn("p1")
	require.NoError(t, err)
	assert.ErrorIs(t, m.AppendAssistantDelta("p1", old, "late"), ErrInvalidState)
	require.NoError(t, m.AppendAssistantDelta("p1", current, "fresh"))

	turns := m.Turns("p1")
	assert.Equal(t, "", turns[1].Content)
	assert.Equal(t, "fresh", turns[3].Content)
}

func TestNewerAssistantTurnSupersedesHandle(t *testing.T) {
	m := Open(newMemStorage(), discard())
	first, _ := m.BeginAssistantTurn("p1")
	second, _ := m.BeginAssistantTurn("p1")

	assert.ErrorIs(t, m.AppendAssistantDelta("p1", first, "x"), ErrInvalidState)
	assert.NoError(t, m.AppendAssistantDelta("p1", second, "y"))
}

func TestCompletedTurnIsImmutable(t *testing.T) {
	m := Open(newMemStorage(), discard())
	h, _ := m.BeginAssistantTurn("p1")
	require.NoError(t, m.AppendAssistantDelta("p1", h, "done"))
	m.Complete("p1", h)

	assert.ErrorIs(t, m.AppendAssistantDelta("p1", h, "more"), ErrInvalidState)
}

func TestHandleForOtherProblemRejected(t *testing.T) {
	m := Open(newMemStorage(), discard())
	h, _ := m.BeginAssistantTurn("p1")
	_, _ = m.BeginAssistantTurn("p2")

	assert.ErrorIs(t, m.AppendAssistantDelta("p2", h, "x"), ErrInvalidState)
}

func TestProblemsAreIndependent(t *testing.T) {
	m := Open(newMemStorage(), discard())
	h1, _ := m.BeginAssistantTurn("p1")
	h2, _ := m.BeginAssistantTurn("p2")

	require.NoError(t, m.AppendAssistantDelta("p2", h2, "b"))
	require.NoError(t, m.AppendAssistantDelta("p1", h1, "a"))

	assert.Equal(t, "a", m.Turns("p1")[0].Content)
	assert.Equal(t, "b", m.Turns("p2")[0].Content)
}

func TestReplaceLastAssistantTurn(t *testing.T) {
	m := Open(newMemStorage(), discard())

	assert.ErrorIs(t, m.ReplaceLastAssistantTurn("p1", "x"), ErrInvalidState)

	require.NoError(t, m.AppendUserTurn("p1", "grade this"))
	assert.ErrorIs(t, m.ReplaceLastAssistantTurn("p1", "x"), ErrInvalidState)

	h, _ := m.BeginAssistantTurn("p1")
	require.NoError(t, m.AppendAssistantDelta("p1", h, "partial"))
	require.NoError(t, m.ReplaceLastAssistantTurn("p1", "80% complete"))

	assert.Equal(t, "80% complete", m.Turns("p1")[1].Content)
	assert.ErrorIs(t, m.AppendAssistantDelta("p1", h, "more"), ErrInvalidState)
}

func TestReplaceAssistantTurnChecksHandle(t *testing.T) {
	m := Open(newMemStorage(), discard())

	require.NoError(t, m.AppendUserTurn("p1", "q1"))
	stale, err := m.BeginAssistantTurn("p1")
	require.NoError(t, err)
	require.NoError(t, m.AppendAssistantDelta("p1", stale, "half"))

	require.NoError(t, m.AppendUserTurn("p1", "q2"))
	live, err := m.BeginAssistantTurn("p1")
	require.NoError(t, err)

	assert.ErrorIs(t, m.ReplaceAssistantTurn("p1", stale, "oops"), ErrInvalidState)

	require.NoError(t, m.ReplaceAssistantTurn("p1", live, "An error occurred."))
	turns := m.Turns("p1")
	assert.Equal(t, "half", turns[1].Content)
	assert.Equal(t, "An error occurred.", turns[3].Content)
	assert.ErrorIs(t, m.AppendAssistantDelta("p1", live, "late"), ErrInvalidState)
}

func TestEveryMutationPersistsWholeMap(t *testing.T) {
	store := newMemStorage()
	m := Open(store, discard())

	require.NoError(t, m.AppendUserTurn("p1", "a"))
	require.NoError(t, m.AppendUserTurn("p2", "b"))
	h, _ := m.BeginAssistantTurn("p2")
	require.NoError(t, m.AppendAssistantDelta("p2", h, "c"))
	assert.Equal(t, 4, store.saves)

	var saved map[string][]Turn
	require.NoError(t, json.Unmarshal(store.data[StorageKey], &saved))
	assert.Len(t, saved, 2)
	assert.Equal(t, "c", saved["p2"][1].Content)
}

func TestRestoreRoundTrip(t *testing.T) {
	store := newMemStorage()
	m := Open(store, discard())
	require.NoError(t, m.AppendUserTurn("p1", "remember me"))

	restored := Open(store, discard())
	assert.Equal(t, m.Turns("p1"), restored.Turns("p1"))
	assert.Equal(t, []string{"p1"}, restored.ProblemIDs())
}

func TestRestoreCorruptedBlobYieldsEmpty(t *testing.T) {
	store := newMemStorage()
	store.data[StorageKey] = []byte(`{"p1":[{"role":"user","content":`)

	m := Open(store, discard())
	assert.Empty(t, m.ProblemIDs())

	// Still usable afterwards.
	require.NoError(t, m.AppendUserTurn("p1", "fresh start"))
	assert.Len(t, m.Turns("p1"), 1)
}

func TestRestoreLoadErrorYieldsEmpty(t *testing.T) {
	store := newMemStorage()
	store.loadErr = errors.New("quota")
	m := Open(store, discard())
	assert.Empty(t, m.ProblemIDs())
}

func TestPersistFailureKeepsMemoryState(t *testing.T) {
	store := newMemStorage()
	store.saveErr = errors.New("quota exceeded")
	m := Open(store, discard())

	err := m.AppendUserTurn("p1", "still here")
	var perr *PersistError
	require.ErrorAs(t, err, &perr)
	assert.ErrorIs(t, err, store.saveErr)
	assert.Equal(t, "still here", m.Turns("p1")[0].Content)

	h, err := m.BeginAssistantTurn("p1")
	require.ErrorAs(t, err, &perr)
	assert.ErrorAs(t, m.AppendAssistantDelta("p1", h, "ok"), &perr)
	assert.Equal(t, "ok", m.Turns("p1")[1].Content)
}

func TestClear(t *testing.T) {
	store := newMemStorage()
	m := Open(store, discard())
	require.NoError(t, m.AppendUserTurn("p1", "a"))
	h, _ := m.BeginAssistantTurn("p1")

	require.NoError(t, m.Clear("p1"))
	assert.Empty(t, m.Turns("p1"))
	assert.Empty(t, m.ProblemIDs())
	assert.ErrorIs(t, m.AppendAssistantDelta("p1", h, "x"), ErrInvalidState)

	restored := Open(store, discard())
	assert.Empty(t, restored.ProblemIDs())
}

func TestConcurrentProblemsDoNotRace(t *testing.T) {
	m := Open(newMemStorage(), discard())
	var wg sync.WaitGroup
	for _, id := range []string{"a", "b", "c", "d"} {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			h, _ := m.BeginAssistantTurn(id)
			for i := 0; i < 20; i++ {
				_ = m.AppendAssistantDelta(id, h, "x")
			}
		}(id)
	}
	wg.Wait()

	for _, id := range []string{"a", "b", "c", "d"} {
		assert.Len(t, m.Turns(id)[0].Content, 20)
	}
}
