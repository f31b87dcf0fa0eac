package service

import (
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// MutationState — фаза операции записи.
type MutationState string

const (
	MutationIdle    MutationState = "idle"
	MutationPending MutationState = "pending"
	MutationSuccess MutationState = "success"
	MutationError   MutationState = "error"
)

// Виды мутаций.
const (
	MutationCreateProfile = "createProfile"
	MutationUpdateProfile = "updateProfile"
	MutationDeleteProfile = "deleteProfile"
	MutationCreateStatus  = "createStatus"
	MutationUpdateStatus  = "updateStatus"
	MutationDeleteStatus  = "deleteStatus"
)

// Mutation — последнее известное состояние мутации одного вида в одной сессии.
type Mutation struct {
	Kind       string        `json:"kind"`
	State      MutationState `json:"state"`
	Error      string        `json:"error,omitempty"`
	StartedAt  time.Time     `json:"startedAt"`
	FinishedAt time.Time     `json:"finishedAt,omitempty"`
}

// MutationTracker ведёт машину состояний idle -> pending -> success|error -> idle.
// Повторов нет: ошибка остаётся в состоянии, пока её не сбросят Reset или новой попыткой.
type MutationTracker struct {
	mu    sync.Mutex
	state map[string]map[string]Mutation
	now   func() time.Time

	total *prometheus.CounterVec
}

// NewMutationTracker создаёт трекер. reg может быть nil.
func NewMutationTracker(reg prometheus.Registerer) *MutationTracker {
	t := &MutationTracker{
		state: make(map[string]map[string]Mutation),
		now:   time.Now,
	}

	if reg != nil {
		t.total = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "studio",
			Name:      "mutations_total",
			Help:      "Finished write operations by kind and outcome.",
		}, []string{"kind", "outcome"})
		reg.MustRegister(t.total)
	}

	return t
}

// Begin переводит мутацию в pending и возвращает функцию завершения.
func (t *MutationTracker) Begin(session, kind string) func(err error) {
	started := t.now()
	t.set(session, Mutation{Kind: kind, State: MutationPending, StartedAt: started})

	return func(err error) {
		m := Mutation{Kind: kind, State: MutationSuccess, StartedAt: started, FinishedAt: t.now()}
		outcome := "success"
		if err != nil {
			m.State = MutationError
			m.Error = err.Error()
			outcome = "error"
		}
		t.set(session, m)

		if t.total != nil {
			t.total.WithLabelValues(kind, outcome).Inc()
		}
	}
}

// Get возвращает состояние мутации; неизвестная — idle.
func (t *MutationTracker) Get(session, kind string) Mutation {
	t.mu.Lock()
	defer t.mu.Unlock()

	if m, ok := t.state[session][kind]; ok {
		return m
	}

	return Mutation{Kind: kind, State: MutationIdle}
}

// List возвращает все неидл-мутации сессии по виду.
func (t *MutationTracker) List(session string) []Mutation {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]Mutation, 0, len(t.state[session]))
	for _, m := range t.state[session] {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Kind < out[j].Kind })

	return out
}

// Reset возвращает мутацию в idle.
func (t *MutationTracker) Reset(session, kind string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	delete(t.state[session], kind)
}

// Forget удаляет все мутации сессии.
func (t *MutationTracker) Forget(session string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	delete(t.state, session)
}

// Sessions — число сессий с записями.
func (t *MutationTracker) Sessions() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return len(t.state)
}

func (t *MutationTracker) set(session string, m Mutation) {
	t.mu.Lock()
	defer t.mu.Unlock()

	byKind, ok := t.state[session]
	if !ok {
		byKind = make(map[string]Mutation)
		t.state[session] = byKind
	}
	byKind[m.Kind] = m
}
