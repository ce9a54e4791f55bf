package booking

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/nekogravitycat/studyspace-booking/internal/space"
)

// memRepo is an in-memory Repository. WithinTx holds a single mutex for the whole
// unit of work and restores a snapshot when fn fails.
type memRepo struct {
	txMu sync.Mutex
	mu   sync.Mutex

	rows map[string]*Booking

	// Fault injection
	queryErr   error
	dropInsert bool
	locks      [][]string
	// staleAll, when set, is what QueryAll returns instead of the live rows
	staleAll []*Booking
}

func newMemRepo(seed ...*Booking) *memRepo {
	r := &memRepo{rows: map[string]*Booking{}}
	for _, b := range seed {
		cp := *b
		r.rows[b.ID] = &cp
	}
	return r
}

func (r *memRepo) WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	r.txMu.Lock()
	defer r.txMu.Unlock()

	r.mu.Lock()
	snapshot := make(map[string]*Booking, len(r.rows))
	for id, b := range r.rows {
		cp := *b
		snapshot[id] = &cp
	}
	r.mu.Unlock()

	if err := fn(ctx, &memTx{memRepo: r}); err != nil {
		r.mu.Lock()
		r.rows = snapshot
		r.mu.Unlock()
		return err
	}
	return nil
}

type memTx struct {
	*memRepo
}

func (t *memTx) Lock(_ context.Context, keys ...string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.locks = append(t.locks, append([]string(nil), keys...))
	return nil
}

func (r *memRepo) Insert(_ context.Context, b *Booking) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.dropInsert {
		return nil
	}
	cp := *b
	cp.CreatedAt = time.Now()
	r.rows[b.ID] = &cp
	b.CreatedAt = cp.CreatedAt
	return nil
}

func (r *memRepo) GetByID(_ context.Context, id string) (*Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.rows[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (r *memRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[id]; !ok {
		return ErrNotFound
	}
	delete(r.rows, id)
	return nil
}

func (r *memRepo) UpdateStatus(_ context.Context, id string, s Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.rows[id]
	if !ok || b.Status != StatusActive {
		return ErrNotFound
	}
	b.Status = s
	return nil
}

func (r *memRepo) filter(keep func(*Booking) bool) ([]*Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.queryErr != nil {
		return nil, r.queryErr
	}
	var out []*Booking
	for _, b := range r.rows {
		if keep(b) {
			cp := *b
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out, nil
}

func (r *memRepo) QueryByRoomAndOverlap(_ context.Context, roomID string, start, end time.Time) ([]*Booking, error) {
	return r.filter(func(b *Booking) bool {
		return b.RoomID == roomID && b.StartTime.Before(end) && b.EndTime.After(start)
	})
}

func (r *memRepo) QueryByStudentAndStatus(_ context.Context, studentID string, s Status) ([]*Booking, error) {
	return r.filter(func(b *Booking) bool { return b.StudentID == studentID && b.Status == s })
}

func (r *memRepo) QueryAll(_ context.Context) ([]*Booking, error) {
	r.mu.Lock()
	stale := r.staleAll
	r.mu.Unlock()
	if stale != nil {
		out := make([]*Booking, len(stale))
		for i, b := range stale {
			cp := *b
			out[i] = &cp
		}
		return out, nil
	}
	return r.filter(func(*Booking) bool { return true })
}

func (r *memRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rows)
}

func (r *memRepo) status(id string) Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.rows[id]; ok {
		return b.Status
	}
	return ""
}

// fakeSpaces is a fixed SpaceFinder.
type fakeSpaces struct {
	byID map[string]*space.StudySpace
	err  error
}

func newFakeSpaces(spaces ...*space.StudySpace) *fakeSpaces {
	f := &fakeSpaces{byID: map[string]*space.StudySpace{}}
	for _, s := range spaces {
		f.byID[s.ID] = s
	}
	return f
}

func (f *fakeSpaces) GetByID(_ context.Context, id string) (*space.StudySpace, error) {
	if f.err != nil {
		return nil, f.err
	}
	s, ok := f.byID[id]
	if !ok {
		return nil, space.ErrNotFound
	}
	return s, nil
}

func (f *fakeSpaces) List(_ context.Context, filter space.Filter) ([]*space.StudySpace, int, error) {
	if f.err != nil {
		return nil, 0, f.err
	}
	var out []*space.StudySpace
	for _, s := range f.byID {
		if filter.Building != "" && s.Building != filter.Building {
			continue
		}
		if filter.Campus != "" && s.Campus != filter.Campus {
			continue
		}
		if filter.Level != "" && s.Level != filter.Level {
			continue
		}
		if filter.AvailableOnly && !s.IsAvailable {
			continue
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SpaceID < out[j].SpaceID })

	total := len(out)
	from := (filter.Page - 1) * filter.PageSize
	if from > total {
		from = total
	}
	to := from + filter.PageSize
	if to > total {
		to = total
	}
	return out[from:to], total, nil
}

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

type recordedEvent struct {
	key string
	v   any
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []recordedEvent
	err    error
}

func (p *recordingPublisher) PublishJSON(_ context.Context, key string, v any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, recordedEvent{key: key, v: v})
	return p.err
}

func (p *recordingPublisher) keys() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, e := range p.events {
		out = append(out, e.key)
	}
	return out
}

var errBoom = errors.New("boom")
