package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/geocoder89/estategate/internal/domain/gatepass"
	"github.com/geocoder89/estategate/internal/domain/user"
	"github.com/geocoder89/estategate/internal/repo/memory"
)

type stepClock struct{ t time.Time }

func newStepClock() *stepClock {
	return &stepClock{t: time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)}
}

func (c *stepClock) Now() time.Time { return c.t }

func (c *stepClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

// sequenceCodes hands out codes in order, then fails.
func sequenceCodes(codes ...string) gatepass.CodeGenerator {
	i := 0
	return func() (string, error) {
		if i >= len(codes) {
			return "", errors.New("out of codes")
		}
		c := codes[i]
		i++
		return c, nil
	}
}

type countingRecorder struct {
	issued    map[string]int
	validated map[string]int
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{issued: map[string]int{}, validated: map[string]int{}}
}

func (r *countingRecorder) PassIssued(purpose string)   { r.issued[purpose]++ }
func (r *countingRecorder) PassValidated(result string) { r.validated[result]++ }

var (
	resident = user.Identity{UserID: "res-1", Email: "r@x.com", Role: user.RoleResident}
	neighbor = user.Identity{UserID: "res-2", Email: "n@x.com", Role: user.RoleResident}
	guard    = user.Identity{UserID: "sec-1", Email: "s@x.com", Role: user.RoleSecurity}
	visitor  = user.Identity{UserID: "vis-1", Email: "v@x.com", Role: user.RoleVisitor}
)

func newTestRegistry(clock *stepClock, gen gatepass.CodeGenerator) (*Registry, *memory.VisitorTokensRepo, *countingRecorder) {
	repo := memory.NewVisitorTokensRepo()
	rec := newCountingRecorder()
	reg := NewRegistry(repo,
		WithRegistryClock(clock.Now),
		WithCodeGenerator(gen),
		WithPassRecorder(rec),
	)
	return reg, repo, rec
}

func TestGenerateEntry_KeepsOnePassActive(t *testing.T) {
	ctx := context.Background()
	clock := newStepClock()
	reg, repo, rec := newTestRegistry(clock, sequenceCodes("AAAAAA", "BBBBBB"))

	first, err := reg.GenerateEntry(ctx, resident, EntryRequest{VisitorName: "Bob", VisitorPhone: "555", ExpirationMinutes: 60})
	if err != nil {
		t.Fatalf("first entry: %v", err)
	}
	if first.ExpiresIn != "1 hour" {
		t.Fatalf("expected expires_in '1 hour', got %q", first.ExpiresIn)
	}
	if !first.ExpiresAt.Equal(clock.Now().Add(time.Hour)) {
		t.Fatalf("unexpected expiry %s", first.ExpiresAt)
	}

	second, err := reg.GenerateEntry(ctx, resident, EntryRequest{VisitorName: "Cid", VisitorPhone: "556", ExpirationMinutes: 30})
	if err != nil {
		t.Fatalf("second entry: %v", err)
	}

	active, _ := repo.FindActiveByResident(ctx, resident.UserID)
	if len(active) != 1 || active[0].ID != second.TokenID {
		t.Fatalf("expected only %s active, got %+v", second.TokenID, active)
	}

	old, _ := repo.Get(first.TokenID)
	if old.IsActive {
		t.Fatalf("expected first pass deactivated")
	}
	if rec.issued["entry"] != 2 {
		t.Fatalf("expected 2 entry issues recorded, got %d", rec.issued["entry"])
	}
}

func TestGenerateEntry_Rejections(t *testing.T) {
	ctx := context.Background()
	reg, _, _ := newTestRegistry(newStepClock(), sequenceCodes("AAAAAA"))

	tests := []struct {
		name   string
		caller user.Identity
		req    EntryRequest
		want   error
	}{
		{"visitor role", visitor, EntryRequest{"Bob", "555", 10}, ErrForbidden},
		{"security role", guard, EntryRequest{"Bob", "555", 10}, ErrForbidden},
		{"missing name", resident, EntryRequest{"  ", "555", 10}, ErrValidation},
		{"missing phone", resident, EntryRequest{"Bob", "", 10}, ErrValidation},
		{"zero minutes", resident, EntryRequest{"Bob", "555", 0}, ErrValidation},
		{"negative minutes", resident, EntryRequest{"Bob", "555", -5}, ErrValidation},
		{"beyond one year", resident, EntryRequest{"Bob", "555", gatepass.MaxExpirationMinutes + 1}, ErrValidation},
		{"duration overflow", resident, EntryRequest{"Bob", "555", 200_000_000}, ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := reg.GenerateEntry(ctx, tt.caller, tt.req)
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestGenerateEntry_OversizedExpirationKeepsCurrentPass(t *testing.T) {
	ctx := context.Background()
	reg, repo, _ := newTestRegistry(newStepClock(), sequenceCodes("AAAAAA", "BBBBBB"))

	current, err := reg.GenerateEntry(ctx, resident, EntryRequest{"Bob", "555", 60})
	if err != nil {
		t.Fatalf("entry: %v", err)
	}

	if _, err := reg.GenerateEntry(ctx, resident, EntryRequest{"Cid", "556", 200_000_000}); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}

	kept, _ := repo.Get(current.TokenID)
	if !kept.IsActive {
		t.Fatalf("rejected request must not retire the current pass")
	}
	if _, err := reg.Validate(ctx, guard, current.TokenID); err != nil {
		t.Fatalf("current pass should still validate: %v", err)
	}
}

func TestGenerateEntry_AdminMayIssue(t *testing.T) {
	admin := user.Identity{UserID: "adm-1", Role: user.RoleAdmin}
	reg, _, _ := newTestRegistry(newStepClock(), sequenceCodes("AAAAAA"))

	if _, err := reg.GenerateEntry(context.Background(), admin, EntryRequest{"Bob", "555", 5}); err != nil {
		t.Fatalf("admin should issue passes: %v", err)
	}
}

func TestGenerateEntry_RetriesOnCollision(t *testing.T) {
	ctx := context.Background()
	clock := newStepClock()
	reg, repo, _ := newTestRegistry(clock, sequenceCodes("TAKEN1", "TAKEN1", "FRESH1"))

	_ = repo.Create(ctx, gatepass.NewEntry("TAKEN1", "someone", "X", "1", time.Hour, clock.Now()))

	pass, err := reg.GenerateEntry(ctx, resident, EntryRequest{"Bob", "555", 15})
	if err != nil {
		t.Fatalf("expected retry to succeed: %v", err)
	}
	if pass.TokenID != "FRESH1" {
		t.Fatalf("expected FRESH1, got %s", pass.TokenID)
	}
}

func TestGenerateEntry_GivesUpAfterMaxAttempts(t *testing.T) {
	ctx := context.Background()
	clock := newStepClock()
	reg, repo, _ := newTestRegistry(clock, func() (string, error) { return "TAKEN1", nil })

	_ = repo.Create(ctx, gatepass.NewEntry("TAKEN1", "someone", "X", "1", time.Hour, clock.Now()))

	if _, err := reg.GenerateEntry(ctx, resident, EntryRequest{"Bob", "555", 15}); !errors.Is(err, ErrCodeUnavailable) {
		t.Fatalf("expected ErrCodeUnavailable, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	ctx := context.Background()
	clock := newStepClock()
	reg, repo, rec := newTestRegistry(clock, sequenceCodes("ABC123"))

	pass, err := reg.GenerateEntry(ctx, resident, EntryRequest{"Bob", "555", 30})
	if err != nil {
		t.Fatalf("entry: %v", err)
	}

	if _, err := reg.Validate(ctx, resident, pass.TokenID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected resident to be forbidden, got %v", err)
	}

	details, err := reg.Validate(ctx, guard, " abc123 ")
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if details.VisitorName != "Bob" || details.Purpose != gatepass.PurposeEntry {
		t.Fatalf("unexpected details %+v", details)
	}

	// validation does not consume the pass
	if _, err := reg.Validate(ctx, guard, pass.TokenID); err != nil {
		t.Fatalf("second validate: %v", err)
	}

	if _, err := reg.Validate(ctx, guard, "ZZZZZZ"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	clock.Advance(31 * time.Minute)

	if _, err := reg.Validate(ctx, guard, pass.TokenID); !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired, got %v", err)
	}

	stored, _ := repo.Get(pass.TokenID)
	if !stored.IsActive {
		t.Fatalf("expired validation must leave the record untouched")
	}

	if rec.validated["valid"] != 2 || rec.validated["expired"] != 1 || rec.validated["not_found"] != 1 {
		t.Fatalf("unexpected validation counts %v", rec.validated)
	}
}

func TestGenerateExit(t *testing.T) {
	ctx := context.Background()
	clock := newStepClock()
	reg, repo, _ := newTestRegistry(clock, sequenceCodes("ENTRY1", "EXIT01"))

	entry, err := reg.GenerateEntry(ctx, resident, EntryRequest{"Bob", "555", 120})
	if err != nil {
		t.Fatalf("entry: %v", err)
	}

	if _, err := reg.GenerateExit(ctx, neighbor, entry.TokenID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected foreign pass to look missing, got %v", err)
	}
	if _, err := reg.GenerateExit(ctx, guard, entry.TokenID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected security to be forbidden, got %v", err)
	}

	clock.Advance(10 * time.Minute)

	exit, err := reg.GenerateExit(ctx, resident, entry.TokenID)
	if err != nil {
		t.Fatalf("exit: %v", err)
	}
	if exit.TokenID != "EXIT01" || exit.ExpiresIn != "15 minutes" {
		t.Fatalf("unexpected exit pass %+v", exit)
	}
	if !exit.ExpiresAt.Equal(clock.Now().Add(15 * time.Minute)) {
		t.Fatalf("exit must last exactly 15 minutes, got %s", exit.ExpiresAt)
	}

	src, _ := repo.Get(entry.TokenID)
	if src.IsActive {
		t.Fatalf("expected source pass deactivated")
	}

	stored, _ := repo.Get(exit.TokenID)
	if stored.Purpose != gatepass.PurposeExit || stored.VisitorName != "Bob" || !stored.IsActive {
		t.Fatalf("unexpected exit record %+v", stored)
	}

	if _, err := reg.GenerateExit(ctx, resident, entry.TokenID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected used source to be not found, got %v", err)
	}
}

func TestActive(t *testing.T) {
	ctx := context.Background()
	reg, _, _ := newTestRegistry(newStepClock(), sequenceCodes("AAAAAA"))

	if _, err := reg.GenerateEntry(ctx, resident, EntryRequest{"Bob", "555", 5}); err != nil {
		t.Fatalf("entry: %v", err)
	}

	got, err := reg.Active(ctx, resident)
	if err != nil || len(got) != 1 {
		t.Fatalf("expected one active pass, got %d err=%v", len(got), err)
	}

	none, _ := reg.Active(ctx, neighbor)
	if len(none) != 0 {
		t.Fatalf("expected neighbor to see nothing, got %d", len(none))
	}
}
