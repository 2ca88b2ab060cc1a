package depgraph

import (
	"testing"

	omniErrors "github.com/omnicore/agentrt/pkg/errors"
)

func TestValidateReportsMissingDependency(t *testing.T) {
	g := New()
	g.Add(Node{ID: "security", Dependencies: []string{"context", "rag"}})

	errs := g.Validate()
	if len(errs) != 1 {
		t.Fatalf("expected 1 error, got %d", len(errs))
	}
	missing, ok := errs[0].(*omniErrors.MissingDependencyError)
	if !ok {
		t.Fatalf("expected MissingDependencyError, got %T", errs[0])
	}
	if missing.AgentID != "security" {
		t.Errorf("AgentID = %s, want security", missing.AgentID)
	}
}

func TestDetectCyclesFindsABCycle(t *testing.T) {
	g := New()
	g.Add(Node{ID: "A", Dependencies: []string{"B"}})
	g.Add(Node{ID: "B", Dependencies: []string{"A"}})

	cycle := g.DetectCycles()
	if cycle == nil {
		t.Fatal("expected a cycle to be detected")
	}
	seen := map[string]bool{}
	for _, id := range cycle {
		seen[id] = true
	}
	if !seen["A"] || !seen["B"] {
		t.Errorf("cycle %v should name both A and B", cycle)
	}
}

func TestTopologicalOrderRespectsDependencies(t *testing.T) {
	g := New()
	g.Add(Node{ID: "context"})
	g.Add(Node{ID: "rag"})
	g.Add(Node{ID: "security", Dependencies: []string{"context", "rag"}})
	g.Add(Node{ID: "compliance", Dependencies: []string{"context", "rag"}})
	g.Add(Node{ID: "coding", Dependencies: []string{"context", "rag", "security"}})

	order, err := g.TopologicalOrder()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	pos := make(map[string]int, len(order))
	for i, id := range order {
		pos[id] = i
	}

	if pos["context"] >= pos["security"] || pos["rag"] >= pos["security"] {
		t.Error("context and rag must precede security")
	}
	if pos["context"] >= pos["compliance"] || pos["rag"] >= pos["compliance"] {
		t.Error("context and rag must precede compliance")
	}
	if pos["security"] >= pos["coding"] {
		t.Error("security must precede coding")
	}
}

func TestTopologicalOrderFailsOnCycle(t *testing.T) {
	g := New()
	g.Add(Node{ID: "A", Dependencies: []string{"B"}})
	g.Add(Node{ID: "B", Dependencies: []string{"A"}})

	_, err := g.TopologicalOrder()
	if err == nil {
		t.Fatal("expected circular dependency error")
	}
	if _, ok := err.(*omniErrors.CircularDependencyError); !ok {
		t.Fatalf("expected CircularDependencyError, got %T", err)
	}
}

func TestTransitiveClosure(t *testing.T) {
	g := New()
	g.Add(Node{ID: "context"})
	g.Add(Node{ID: "rag"})
	g.Add(Node{ID: "security", Dependencies: []string{"context", "rag"}})
	g.Add(Node{ID: "coding", Dependencies: []string{"security"}})

	closure := g.TransitiveClosure("coding")
	want := map[string]bool{"context": true, "rag": true, "security": true}
	if len(closure) != len(want) {
		t.Fatalf("closure = %v, want keys of %v", closure, want)
	}
	for _, id := range closure {
		if !want[id] {
			t.Errorf("unexpected id %s in closure", id)
		}
	}
}
