package metrics

import (
	"testing"
	"time"
)

func TestNewUsesPrivateRegistry(t *testing.T) {
	// Two instances must not collide on registration
	a := New()
	b := New()
	if a.Registry == b.Registry {
		t.Error("Expected separate registries")
	}
}

func TestIncrProcessed(t *testing.T) {
	m := New()
	m.IncrProcessed(OutcomeSuccess)
	m.IncrProcessed(OutcomeSuccess)
	m.IncrProcessed(OutcomeDecodeError)

	if got := m.ProcessedCount(OutcomeSuccess); got != 2 {
		t.Errorf("Expected 2 successes, got %v", got)
	}
	if got := m.ProcessedCount(OutcomeDecodeError); got != 1 {
		t.Errorf("Expected 1 decode error, got %v", got)
	}
	if got := m.ProcessedCount(OutcomeStoreError); got != 0 {
		t.Errorf("Expected 0 store errors, got %v", got)
	}
}

func TestExtractionFaults(t *testing.T) {
	m := New()
	m.IncrExtractionFault("accounts")

	if got := m.ExtractionFaultCount("accounts"); got != 1 {
		t.Errorf("Expected 1 fault, got %v", got)
	}
}

func TestObserveDoesNotPanic(t *testing.T) {
	m := New()
	m.ObserveHTTP("/api/reports", "GET", "200", 15*time.Millisecond)
	m.ObserveProcessing(40*time.Millisecond, 3)

	families, err := m.Registry.Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}
	if len(families) == 0 {
		t.Error("Expected gathered metric families")
	}
}
