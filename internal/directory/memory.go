package directory

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// MemoryDirectory is an in-memory Directory for tests and the dev
// console. Identities are seeded through AddIdentity; the occupancy
// grid is keyed by identity id and ISO date.
type MemoryDirectory struct {
	mu         sync.RWMutex
	identities []Identity
	cells      map[string]map[string]string // identity id → date → cell
	records    []ApplicationRecord
}

// NewMemoryDirectory creates an empty roster.
func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{
		cells: make(map[string]map[string]string),
	}
}

// AddIdentity seeds a roster entry, assigning an id when blank.
func (d *MemoryDirectory) AddIdentity(id Identity) Identity {
	d.mu.Lock()
	defer d.mu.Unlock()
	if id.ID == "" {
		prefix := "pharm"
		if id.Kind == KindStore {
			prefix = "store"
		}
		id.ID = fmt.Sprintf("%s_%03d", prefix, len(d.identities)+1)
	}
	d.identities = append(d.identities, id)
	return id
}

// SetCell writes occupancy content for an identity and date.
func (d *MemoryDirectory) SetCell(identityID string, date time.Time, content string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.setCellLocked(identityID, date, content)
}

func (d *MemoryDirectory) setCellLocked(identityID string, date time.Time, content string) {
	key := date.Format("2006-01-02")
	if d.cells[identityID] == nil {
		d.cells[identityID] = make(map[string]string)
	}
	d.cells[identityID][key] = content
}

// ListAvailable returns pharmacists whose cell for the date is blank.
func (d *MemoryDirectory) ListAvailable(ctx context.Context, date time.Time, timeSlot string) ([]Identity, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	key := date.Format("2006-01-02")
	var out []Identity
	for _, id := range d.identities {
		if id.Kind != KindPharmacist {
			continue
		}
		if strings.TrimSpace(d.cells[id.ID][key]) != "" {
			continue
		}
		out = append(out, id)
	}
	return out, nil
}

// FindByUserID returns the identity bound to the chat user id, or nil.
func (d *MemoryDirectory) FindByUserID(ctx context.Context, userID string) (*Identity, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for i := range d.identities {
		if d.identities[i].UserID == userID && userID != "" {
			id := d.identities[i]
			return &id, nil
		}
	}
	return nil, nil
}

// WriteAssignment fills the pharmacist's cell for the date.
func (d *MemoryDirectory) WriteAssignment(ctx context.Context, pharmacistUserID string, date time.Time, label string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i := range d.identities {
		id := d.identities[i]
		if id.Kind == KindPharmacist && id.UserID == pharmacistUserID {
			d.setCellLocked(id.ID, date, label)
			return nil
		}
	}
	return ErrIdentityNotFound
}

// RegisterStore binds a chat user id to the matching store entry.
func (d *MemoryDirectory) RegisterStore(ctx context.Context, number, name, userID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i := range d.identities {
		id := &d.identities[i]
		if id.Kind == KindStore && id.StoreNumber == number && id.Name == name {
			id.UserID = userID
			return nil
		}
	}
	return ErrIdentityNotFound
}

// RegisterPharmacist binds a chat user id to the matching pharmacist.
func (d *MemoryDirectory) RegisterPharmacist(ctx context.Context, name, phone, userID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i := range d.identities {
		id := &d.identities[i]
		if id.Kind == KindPharmacist && id.Name == name && id.Phone == phone {
			id.UserID = userID
			return nil
		}
	}
	return ErrIdentityNotFound
}

// RecordApplication appends to the in-memory application log.
func (d *MemoryDirectory) RecordApplication(ctx context.Context, rec ApplicationRecord) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.records = append(d.records, rec)
	return nil
}

// Records returns a copy of the application log.
func (d *MemoryDirectory) Records() []ApplicationRecord {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]ApplicationRecord(nil), d.records...)
}

// Cell returns the occupancy content for an identity and date.
func (d *MemoryDirectory) Cell(identityID string, date time.Time) string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.cells[identityID][date.Format("2006-01-02")]
}
