package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/Domenick1991/hotelbooking/internal/domain"
)

type fileData struct {
	Bookings []domain.Booking `json:"bookings"`
}

// FileBookingRepository keeps bookings in memory and writes them to a single
// JSON document on Flush. An empty path keeps everything in memory.
type FileBookingRepository struct {
	path string

	mu       sync.RWMutex
	bookings []domain.Booking
	index    map[string]int

	locks   sync.Map // booking id -> *sync.Mutex
	flushMu sync.Mutex
}

func NewFileBookingRepository(path string) (*FileBookingRepository, error) {
	r := &FileBookingRepository{path: path, index: make(map[string]int)}
	if path == "" {
		return r, nil
	}

	raw, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		if err := r.Flush(context.Background()); err != nil {
			return nil, err
		}
		return r, nil
	case err != nil:
		return nil, fmt.Errorf("read store %s: %w", path, err)
	}

	var data fileData
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &data); err != nil {
			return nil, fmt.Errorf("parse store %s: %w", path, err)
		}
	}
	for _, b := range data.Bookings {
		r.index[b.ID] = len(r.bookings)
		r.bookings = append(r.bookings, b)
	}
	return r, nil
}

func (r *FileBookingRepository) LoadAll(ctx context.Context) ([]domain.Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.Booking, len(r.bookings))
	copy(out, r.bookings)
	return out, nil
}

func (r *FileBookingRepository) Insert(ctx context.Context, booking domain.Booking) (domain.Booking, bool, error) {
	if booking.ID == "" {
		return domain.Booking{}, false, errors.New("booking id is required")
	}

	lock := r.lockFor(booking.ID)
	lock.Lock()
	defer lock.Unlock()

	r.mu.Lock()
	defer r.mu.Unlock()

	if i, ok := r.index[booking.ID]; ok {
		stored := r.bookings[i]
		if stored.WorkflowID != booking.WorkflowID {
			return stored, false, fmt.Errorf("%w: %s is bound to %s, not %s",
				ErrBookingConflict, booking.ID, stored.WorkflowID, booking.WorkflowID)
		}
		return stored, false, nil
	}
	r.index[booking.ID] = len(r.bookings)
	r.bookings = append(r.bookings, booking)
	return booking, true, nil
}

func (r *FileBookingRepository) Update(ctx context.Context, id string, apply func(*domain.Booking) error) (*domain.Booking, error) {
	lock := r.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	r.mu.RLock()
	i, ok := r.index[id]
	var current domain.Booking
	if ok {
		current = r.bookings[i]
	}
	r.mu.RUnlock()
	if !ok {
		return nil, ErrBookingNotFound
	}

	if err := apply(&current); err != nil {
		return nil, err
	}
	r.mu.Lock()
	current = current.MergeInto(r.bookings[i])
	r.bookings[i] = current
	r.mu.Unlock()

	return &current, nil
}

func (r *FileBookingRepository) Delete(ctx context.Context, id string) error {
	lock := r.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	r.mu.Lock()
	defer r.mu.Unlock()

	i, ok := r.index[id]
	if !ok {
		return ErrBookingNotFound
	}
	r.bookings = append(r.bookings[:i], r.bookings[i+1:]...)
	delete(r.index, id)
	for j := i; j < len(r.bookings); j++ {
		r.index[r.bookings[j].ID] = j
	}
	return nil
}

// Flush writes a snapshot to a temporary file and renames it over the store
// so a crash never leaves a half-written document behind.
func (r *FileBookingRepository) Flush(ctx context.Context) error {
	if r.path == "" {
		return nil
	}

	r.flushMu.Lock()
	defer r.flushMu.Unlock()

	r.mu.RLock()
	data := fileData{Bookings: make([]domain.Booking, len(r.bookings))}
	copy(data.Bookings, r.bookings)
	r.mu.RUnlock()

	payload, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("encode store: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(r.path), filepath.Base(r.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp store: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		return fmt.Errorf("write store: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync store: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close store: %w", err)
	}
	if err := os.Rename(tmp.Name(), r.path); err != nil {
		return fmt.Errorf("replace store: %w", err)
	}
	return nil
}

func (r *FileBookingRepository) lockFor(id string) *sync.Mutex {
	lock, _ := r.locks.LoadOrStore(id, &sync.Mutex{})
	return lock.(*sync.Mutex)
}

var _ BookingRepository = (*FileBookingRepository)(nil)
