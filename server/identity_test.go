package server

import (
	"regexp"
	"strconv"
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestNormalizeGeneratesIdentifier(t *testing.T) {
	r := NewNameRegistry(1)
	for _, claimed := range []string{"", "not-a-uuid", "   "} {
		id, _ := r.Normalize(claimed, "")
		if _, err := uuid.Parse(id); err != nil {
			t.Fatalf("claimed %q: generated id %q is not a uuid", claimed, id)
		}
		if id == claimed {
			t.Fatalf("claimed %q was kept", claimed)
		}
	}

	keep := uuid.NewString()
	if id, _ := r.Normalize(keep, "Rex"); id != keep {
		t.Fatalf("well-formed id replaced: got %q want %q", id, keep)
	}
}

func TestNormalizeGuestNames(t *testing.T) {
	r := NewNameRegistry(2)
	guest := regexp.MustCompile(`^Guest\d{4}$`)
	seen := map[string]bool{}
	for _, claimed := range []string{"", "averyveryverylongname", "", ""} {
		_, name := r.Normalize("", claimed)
		if !guest.MatchString(name) {
			t.Fatalf("claimed %q: unexpected guest name %q", claimed, name)
		}
		if seen[name] {
			t.Fatalf("guest name %q handed out twice", name)
		}
		seen[name] = true
	}
}

func TestNormalizeDeduplicatesNames(t *testing.T) {
	r := NewNameRegistry(3)
	_, first := r.Normalize("", "Rex")
	if first != "Rex" {
		t.Fatalf("first claim should keep name, got %q", first)
	}
	_, second := r.Normalize("", "Rex")
	if !regexp.MustCompile(`^Rex\d+$`).MatchString(second) {
		t.Fatalf("expected Rex+digits, got %q", second)
	}

	r.Release("Rex")
	if _, again := r.Normalize("", "Rex"); again != "Rex" {
		t.Fatalf("released name should be reusable, got %q", again)
	}
}

func TestNormalizeKeepsLengthLimit(t *testing.T) {
	r := NewNameRegistry(4)
	long := strings.Repeat("a", MaxNicknameLen)
	r.Normalize("", long)
	_, name := r.Normalize("", long)
	if name == long {
		t.Fatalf("duplicate name was not changed")
	}
	if n := len([]rune(name)); n > MaxNicknameLen {
		t.Fatalf("name %q exceeds limit: %d", name, n)
	}
	if !r.InUse(name) || !r.InUse(long) {
		t.Fatalf("both names should be registered")
	}
}

func TestNormalizeCanonicalizesIdentifier(t *testing.T) {
	r := NewNameRegistry(5)
	want := uuid.NewString()
	bare := strings.ReplaceAll(want, "-", "")
	for _, claimed := range []string{
		want,
		strings.ToUpper(want),
		"{" + want + "}",
		"urn:uuid:" + want,
		bare,
	} {
		if id, _ := r.Normalize(claimed, ""); id != want {
			t.Fatalf("claimed %q: got %q want %q", claimed, id, want)
		}
	}
}

func TestNormalizeGuestRangeWidensWhenFull(t *testing.T) {
	r := NewNameRegistry(6)
	for n := 1000; n <= 9999; n++ {
		r.names[guestPrefix+strconv.Itoa(n)] = struct{}{}
	}

	_, name := r.Normalize("", "")
	if !regexp.MustCompile(`^Guest\d{5,7}$`).MatchString(name) {
		t.Fatalf("expected a wider guest suffix, got %q", name)
	}
	if n := len([]rune(name)); n > MaxNicknameLen {
		t.Fatalf("name %q exceeds limit", name)
	}
}
