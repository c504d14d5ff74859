package server

import (
	"errors"
	"testing"
)

func newTestManager(capacity, digits int) *GameManager {
	cfg := testMatchConfig()
	cfg.InstanceCapacity = capacity
	return NewGameManager(NewSettings(cfg), digits, 42, nil)
}

func TestInstanceRejectsDuplicateNames(t *testing.T) {
	g := NewGameInstance("g1", "0001", false)
	a := newTestSession("a", "Rex", 0)
	b := newTestSession("b", "Rex", 0)

	if err := g.Add(a); err != nil {
		t.Fatalf("add a: %v", err)
	}
	if err := g.Add(b); !errors.Is(err, ErrNameInUse) {
		t.Fatalf("expected ErrNameInUse, got %v", err)
	}
	if a.Instance() != g || b.Instance() != nil {
		t.Fatalf("unexpected instance links")
	}
	if len(g.Sockets()) != 1 || g.Sockets()[0] != a.Primary() {
		t.Fatalf("unexpected sockets: %v", g.Sockets())
	}

	if !g.Remove(a) || g.HasName("Rex") || g.Len() != 0 {
		t.Fatalf("remove did not free the name")
	}
	if err := g.Add(b); err != nil {
		t.Fatalf("name should be free after remove: %v", err)
	}
}

func TestCreateAllocatesDistinctCodes(t *testing.T) {
	m := newTestManager(3, 1)
	codes := map[string]bool{}
	for i := 0; i < 10; i++ {
		g, err := m.Create(false)
		if err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
		if len(g.JoinCode) != 1 {
			t.Fatalf("unexpected code %q", g.JoinCode)
		}
		if codes[g.JoinCode] {
			t.Fatalf("code %q reused while active", g.JoinCode)
		}
		codes[g.JoinCode] = true
	}
	if _, err := m.Create(false); !errors.Is(err, ErrJoinCodesExhausted) {
		t.Fatalf("expected ErrJoinCodesExhausted, got %v", err)
	}

	if removed := m.Sweep(); removed != 10 {
		t.Fatalf("expected 10 empty instances swept, got %d", removed)
	}
	if _, err := m.Create(false); err != nil {
		t.Fatalf("codes should be free after sweep: %v", err)
	}
}

func TestOpenMatchRespectsCapacity(t *testing.T) {
	m := newTestManager(2, 4)
	a := newTestSession("a", "A", 0)
	b := newTestSession("b", "B", 0)
	c := newTestSession("c", "C", 0)

	ga, _ := m.Match(a, MatchMode{Kind: MatchOpen})
	gb, _ := m.Match(b, MatchMode{Kind: MatchOpen})
	if ga != gb {
		t.Fatalf("second player should join the open instance")
	}
	gc, err := m.Match(c, MatchMode{Kind: MatchOpen})
	if err != nil {
		t.Fatalf("match c: %v", err)
	}
	if gc == ga {
		t.Fatalf("instance at capacity was exceeded")
	}
	if ga.Len() != 2 || len(m.Instances()) != 2 {
		t.Fatalf("unexpected layout: %d members, %d instances", ga.Len(), len(m.Instances()))
	}
}

func TestOpenMatchSkipsNameCollisionAndPrivate(t *testing.T) {
	m := newTestManager(4, 4)
	priv, _ := m.Match(newTestSession("p", "P", 0), MatchMode{Kind: MatchPrivate})
	if !priv.Private {
		t.Fatalf("private match should create a private instance")
	}

	first, _ := m.Match(newTestSession("a", "Rex", 0), MatchMode{Kind: MatchOpen})
	if first == priv {
		t.Fatalf("open match joined a private instance")
	}
	second, _ := m.Match(newTestSession("b", "Rex", 0), MatchMode{Kind: MatchOpen})
	if second == first || second == priv {
		t.Fatalf("name collision should lead to a new instance")
	}
}

func TestMatchByCode(t *testing.T) {
	m := newTestManager(2, 4)
	host, _ := m.Match(newTestSession("h", "Host", 0), MatchMode{Kind: MatchPrivate})

	g, err := m.Match(newTestSession("f", "Friend", 0), MatchMode{Kind: MatchByCode, Code: host.JoinCode})
	if err != nil || g != host {
		t.Fatalf("join by code should land in host instance: %v", err)
	}

	other, _ := m.Match(newTestSession("x", "Host", 0), MatchMode{Kind: MatchByCode, Code: host.JoinCode})
	if other == host || other.Private {
		t.Fatalf("failed code join should fall back to a new public instance")
	}

	stray, _ := m.Match(newTestSession("y", "Stray", 0), MatchMode{Kind: MatchByCode, Code: "nope"})
	if stray == host {
		t.Fatalf("unknown code joined host")
	}
}

func TestRemovePlayerRetiresEmptyInstance(t *testing.T) {
	m := newTestManager(3, 4)
	var notified []*GameInstance
	m.onRosterChange = func(g *GameInstance) { notified = append(notified, g) }

	a := newTestSession("a", "A", 0)
	b := newTestSession("b", "B", 0)
	g, _ := m.Match(a, MatchMode{Kind: MatchOpen})
	m.Match(b, MatchMode{Kind: MatchOpen})

	if got := m.RemovePlayer(a); got != g {
		t.Fatalf("remove a returned %v", got)
	}
	if len(notified) != 1 || notified[0] != g {
		t.Fatalf("remaining peers should be notified once, got %d", len(notified))
	}
	if !m.CodeInUse(g.JoinCode) {
		t.Fatalf("code released while instance still has members")
	}

	m.RemovePlayer(b)
	if m.CodeInUse(g.JoinCode) || len(m.Instances()) != 0 {
		t.Fatalf("empty instance should be retired with its code")
	}
	if len(notified) != 1 {
		t.Fatalf("no notification expected for an emptied instance")
	}
	if m.RemovePlayer(b) != nil {
		t.Fatalf("second removal should be a no-op")
	}
}
