package services

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/studyplanner/planner/internal/store"
	"github.com/studyplanner/planner/internal/timetable"
	"github.com/studyplanner/planner/types"
)

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[string]types.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: map[string]types.User{}}
}

func (f *fakeUserRepo) GetByID(_ context.Context, id string) (types.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return u, nil
}

func (f *fakeUserRepo) GetByEmail(_ context.Context, email string) (types.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email == email {
			return u, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (f *fakeUserRepo) Create(_ context.Context, user types.User) (types.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email == user.Email {
			return types.User{}, store.ErrConflict
		}
	}
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	f.users[user.ID] = user
	return user, nil
}

func (f *fakeUserRepo) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[id]; !ok {
		return store.ErrNotFound
	}
	delete(f.users, id)
	return nil
}

type fakeNoteRepo struct {
	listFn   func(ctx context.Context, userID string, limit int) ([]types.Note, error)
	getFn    func(ctx context.Context, userID, title string) (types.Note, error)
	createFn func(ctx context.Context, note types.Note) (types.Note, error)
	updateFn func(ctx context.Context, oldTitle string, note types.Note) (types.Note, error)
	deleteFn func(ctx context.Context, userID, title string) error
}

func (f *fakeNoteRepo) List(ctx context.Context, userID string, limit int) ([]types.Note, error) {
	return f.listFn(ctx, userID, limit)
}

func (f *fakeNoteRepo) Get(ctx context.Context, userID, title string) (types.Note, error) {
	return f.getFn(ctx, userID, title)
}

func (f *fakeNoteRepo) Create(ctx context.Context, note types.Note) (types.Note, error) {
	return f.createFn(ctx, note)
}

func (f *fakeNoteRepo) Update(ctx context.Context, oldTitle string, note types.Note) (types.Note, error) {
	return f.updateFn(ctx, oldTitle, note)
}

func (f *fakeNoteRepo) Delete(ctx context.Context, userID, title string) error {
	return f.deleteFn(ctx, userID, title)
}

type fakeEventRepo struct {
	listFn     func(ctx context.Context, userID string) ([]types.CalendarEvent, error)
	upcomingFn func(ctx context.Context, userID string, from time.Time, limit int) ([]types.CalendarEvent, error)
	getFn      func(ctx context.Context, userID string, id int64) (types.CalendarEvent, error)
	existsFn   func(ctx context.Context, userID, title string, start, end time.Time) (bool, error)
	createFn   func(ctx context.Context, event types.CalendarEvent) (types.CalendarEvent, error)
	updateFn   func(ctx context.Context, event types.CalendarEvent) (types.CalendarEvent, error)
	deleteFn   func(ctx context.Context, userID string, id int64) error
}

func (f *fakeEventRepo) List(ctx context.Context, userID string) ([]types.CalendarEvent, error) {
	return f.listFn(ctx, userID)
}

func (f *fakeEventRepo) Upcoming(ctx context.Context, userID string, from time.Time, limit int) ([]types.CalendarEvent, error) {
	return f.upcomingFn(ctx, userID, from, limit)
}

func (f *fakeEventRepo) Get(ctx context.Context, userID string, id int64) (types.CalendarEvent, error) {
	return f.getFn(ctx, userID, id)
}

func (f *fakeEventRepo) Exists(ctx context.Context, userID, title string, start, end time.Time) (bool, error) {
	return f.existsFn(ctx, userID, title, start, end)
}

func (f *fakeEventRepo) Create(ctx context.Context, event types.CalendarEvent) (types.CalendarEvent, error) {
	return f.createFn(ctx, event)
}

func (f *fakeEventRepo) Update(ctx context.Context, event types.CalendarEvent) (types.CalendarEvent, error) {
	return f.updateFn(ctx, event)
}

func (f *fakeEventRepo) Delete(ctx context.Context, userID string, id int64) error {
	return f.deleteFn(ctx, userID, id)
}

type fakeFetcher struct {
	page  string
	err   error
	calls int
	creds timetable.Credentials
}

func (f *fakeFetcher) Fetch(_ context.Context, creds timetable.Credentials) (string, error) {
	f.calls++
	f.creds = creds
	return f.page, f.err
}

type fakeSnapshots struct {
	keys []string
	data []string
	err  error
}

func (f *fakeSnapshots) Put(_ context.Context, key string, r io.Reader, _ int64, _ string) error {
	if f.err != nil {
		return f.err
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	f.keys = append(f.keys, key)
	f.data = append(f.data, string(b))
	return nil
}

type fakePublisher struct {
	channel string
	data    []byte
	attrs   map[string]string
	err     error
}

func (f *fakePublisher) Publish(_ context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	f.channel = channel
	f.data = data
	f.attrs = attrs
	return "msg-1", f.err
}
