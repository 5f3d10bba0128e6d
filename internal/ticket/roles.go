package ticket

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/google/uuid"
)

var (
	// ErrRoleNotFound is returned when a role ID is not in the set.
	ErrRoleNotFound = errors.New("ticket: role not found")

	// ErrDuplicateRole is returned when a name is already taken.
	ErrDuplicateRole = errors.New("ticket: duplicate role name")

	// ErrInvalidRate is returned for negative or non-finite hourly rates.
	ErrInvalidRate = errors.New("ticket: hourly rate must be a non-negative number")

	// ErrEmptyName is returned for blank role names.
	ErrEmptyName = errors.New("ticket: role name must not be empty")
)

// DefaultRoles returns the starting rate table (HUF per hour).
func DefaultRoles() []Role {
	return []Role{
		{ID: uuid.New(), Name: "Frontend engineer", HourlyRate: 5000},
		{ID: uuid.New(), Name: "Backend engineer", HourlyRate: 4000},
		{ID: uuid.New(), Name: "Designer", HourlyRate: 3000},
	}
}

// RoleSet is the working rate table. It keeps insertion order and is safe
// for concurrent use.
type RoleSet struct {
	mu    sync.RWMutex
	roles []Role
}

// NewRoleSet builds a set from roles. Roles without an ID get a fresh one.
func NewRoleSet(roles ...Role) (*RoleSet, error) {
	s := &RoleSet{}
	if err := s.Replace(roles); err != nil {
		return nil, err
	}
	return s, nil
}

func sameName(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

func validate(name string, rate float64) error {
	if strings.TrimSpace(name) == "" {
		return ErrEmptyName
	}
	if rate < 0 || math.IsNaN(rate) || math.IsInf(rate, 0) {
		return fmt.Errorf("%w: %v", ErrInvalidRate, rate)
	}
	return nil
}

// List returns a copy of the roles in order.
func (s *RoleSet) List() []Role {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Role, len(s.roles))
	copy(out, s.roles)
	return out
}

// Names returns the role names in order.
func (s *RoleSet) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, len(s.roles))
	for i, r := range s.roles {
		names[i] = r.Name
	}
	return names
}

// Len returns the number of roles.
func (s *RoleSet) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.roles)
}

// Get returns the role with the given ID.
func (s *RoleSet) Get(id uuid.UUID) (Role, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.roles {
		if r.ID == id {
			return r, true
		}
	}
	return Role{}, false
}

// Lookup returns the first role whose name equals name, ignoring case and
// surrounding space.
func (s *RoleSet) Lookup(name string) (Role, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return lookup(s.roles, name)
}

func lookup(roles []Role, name string) (Role, bool) {
	for _, r := range roles {
		if sameName(r.Name, name) {
			return r, true
		}
	}
	return Role{}, false
}

// Add appends a new role and returns it.
func (s *RoleSet) Add(name string, rate float64) (Role, error) {
	if err := validate(name, rate); err != nil {
		return Role{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := lookup(s.roles, name); ok {
		return Role{}, fmt.Errorf("%w: %q", ErrDuplicateRole, name)
	}
	r := Role{ID: uuid.New(), Name: strings.TrimSpace(name), HourlyRate: rate}
	s.roles = append(s.roles, r)
	return r, nil
}

// Update renames and re-rates the role with the given ID in place. The ID
// is kept, so tickets already bound to the role stay bound.
func (s *RoleSet) Update(id uuid.UUID, name string, rate float64) (Role, error) {
	if err := validate(name, rate); err != nil {
		return Role{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := -1
	for i, r := range s.roles {
		if r.ID == id {
			idx = i
			continue
		}
		if sameName(r.Name, name) {
			return Role{}, fmt.Errorf("%w: %q", ErrDuplicateRole, name)
		}
	}
	if idx < 0 {
		return Role{}, fmt.Errorf("%w: %s", ErrRoleNotFound, id)
	}
	s.roles[idx].Name = strings.TrimSpace(name)
	s.roles[idx].HourlyRate = rate
	return s.roles[idx], nil
}

// Remove deletes the role with the given ID.
func (s *RoleSet) Remove(id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, r := range s.roles {
		if r.ID == id {
			s.roles = append(s.roles[:i], s.roles[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrRoleNotFound, id)
}

// Replace swaps the whole table. The set is unchanged when any role is
// invalid or names collide.
func (s *RoleSet) Replace(roles []Role) error {
	next := make([]Role, 0, len(roles))
	for _, r := range roles {
		if err := validate(r.Name, r.HourlyRate); err != nil {
			return err
		}
		if _, ok := lookup(next, r.Name); ok {
			return fmt.Errorf("%w: %q", ErrDuplicateRole, r.Name)
		}
		if r.ID == uuid.Nil {
			r.ID = uuid.New()
		}
		r.Name = strings.TrimSpace(r.Name)
		next = append(next, r)
	}
	s.mu.Lock()
	s.roles = next
	s.mu.Unlock()
	return nil
}
