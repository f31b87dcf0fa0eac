package filterstate

import (
	"context"
	"sync"
)

// MemoryStore хранит состояние в памяти процесса.
type MemoryStore struct {
	mu    sync.Mutex
	state State
	set   bool
}

// NewMemoryStore создаёт пустое хранилище.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Load(ctx context.Context) (State, error) {
	if err := ctx.Err(); err != nil {
		return State{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.set {
		return Default(), nil
	}

	return m.state.Normalize(), nil
}

func (m *MemoryStore) Save(ctx context.Context, s State) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.state, m.set = s, true

	return nil
}

func (m *MemoryStore) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.state, m.set = State{}, false

	return nil
}

// MemorySessions — набор MemoryStore по id сессии.
type MemorySessions struct {
	mu     sync.Mutex
	stores map[string]*MemoryStore
}

// NewMemorySessions создаёт пустой набор.
func NewMemorySessions() *MemorySessions {
	return &MemorySessions{stores: make(map[string]*MemoryStore)}
}

func (m *MemorySessions) Session(id string) Store {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.stores[id]
	if !ok {
		s = NewMemoryStore()
		m.stores[id] = s
	}

	return s
}

// Forget удаляет состояние сессии id.
func (m *MemorySessions) Forget(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.stores, id)
}

// Len — число сессий с состоянием.
func (m *MemorySessions) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.stores)
}
