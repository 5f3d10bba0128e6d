package ticket_test

import (
	"errors"
	"math"
	"testing"

	"github.com/google/uuid"

	"github.com/MrWong99/ticketvox/internal/ticket"
)

func TestDefaultRoles(t *testing.T) {
	t.Parallel()

	rs := mustRoles(t, ticket.DefaultRoles()...)
	want := map[string]float64{"Frontend engineer": 5000, "Backend engineer": 4000, "Designer": 3000}
	if rs.Len() != len(want) {
		t.Fatalf("len = %d", rs.Len())
	}
	for name, rate := range want {
		r, ok := rs.Lookup(name)
		if !ok || r.HourlyRate != rate {
			t.Errorf("%s: got %+v, %v", name, r, ok)
		}
		if r.ID == uuid.Nil {
			t.Errorf("%s: nil ID", name)
		}
	}
}

func TestRoleSet_AddUpdateRemove(t *testing.T) {
	t.Parallel()

	rs := mustRoles(t)
	qa, err := rs.Add(" QA engineer ", 3500)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if qa.Name != "QA engineer" {
		t.Errorf("name = %q", qa.Name)
	}

	if _, err := rs.Add("qa ENGINEER", 1); !errors.Is(err, ticket.ErrDuplicateRole) {
		t.Errorf("duplicate add: err = %v", err)
	}
	if _, err := rs.Add("", 1); !errors.Is(err, ticket.ErrEmptyName) {
		t.Errorf("empty add: err = %v", err)
	}
	for _, bad := range []float64{-1, math.NaN(), math.Inf(1)} {
		if _, err := rs.Add("X", bad); !errors.Is(err, ticket.ErrInvalidRate) {
			t.Errorf("rate %v: err = %v", bad, err)
		}
	}

	upd, err := rs.Update(qa.ID, "Test engineer", 0)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if upd.ID != qa.ID || upd.Name != "Test engineer" || upd.HourlyRate != 0 {
		t.Errorf("updated = %+v", upd)
	}
	if _, err := rs.Update(uuid.New(), "Ghost", 1); !errors.Is(err, ticket.ErrRoleNotFound) {
		t.Errorf("update missing: err = %v", err)
	}

	if err := rs.Remove(qa.ID); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if err := rs.Remove(qa.ID); !errors.Is(err, ticket.ErrRoleNotFound) {
		t.Errorf("second remove: err = %v", err)
	}
}

func TestRoleSet_UpdateRejectsNameOfAnotherRole(t *testing.T) {
	t.Parallel()

	rs := mustRoles(t, ticket.DefaultRoles()...)
	fe, _ := rs.Lookup("Frontend engineer")
	if _, err := rs.Update(fe.ID, "designer", 1); !errors.Is(err, ticket.ErrDuplicateRole) {
		t.Errorf("err = %v", err)
	}
	if _, err := rs.Update(fe.ID, "FRONTEND engineer", 5500); err != nil {
		t.Errorf("renaming a role to its own name in another case: %v", err)
	}
}

func TestRoleSet_ReplaceIsAtomic(t *testing.T) {
	t.Parallel()

	rs := mustRoles(t, ticket.DefaultRoles()...)
	err := rs.Replace([]ticket.Role{{Name: "A", HourlyRate: 1}, {Name: "a", HourlyRate: 2}})
	if !errors.Is(err, ticket.ErrDuplicateRole) {
		t.Fatalf("err = %v", err)
	}
	if rs.Len() != 3 {
		t.Errorf("set changed on failed replace: %v", rs.Names())
	}
}

func TestRoleSet_LookupFirstMatch(t *testing.T) {
	t.Parallel()

	rs := mustRoles(t, ticket.DefaultRoles()...)
	if _, ok := rs.Lookup("QA engineer"); ok {
		t.Error("unexpected match")
	}
	r, ok := rs.Lookup("  designer")
	if !ok || r.Name != "Designer" {
		t.Errorf("got %+v", r)
	}
	if got := rs.Names(); len(got) != 3 || got[0] != "Frontend engineer" {
		t.Errorf("names = %v", got)
	}
}

func TestSeniority(t *testing.T) {
	t.Parallel()

	for _, s := range ticket.Seniorities {
		if !s.IsValid() {
			t.Errorf("%q should be valid", s)
		}
	}
	if ticket.Seniority("staff").IsValid() {
		t.Error("staff should be invalid")
	}
	if got := ticket.Seniority(" Senior ").Normalize(); got != ticket.Senior {
		t.Errorf("Normalize = %q", got)
	}
}
