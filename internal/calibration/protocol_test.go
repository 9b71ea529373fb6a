package calibration

import (
	"errors"
	"testing"
)

func TestConfirmationMatches(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"CONFIRMAR", true},
		{"confirmar", true},
		{"Confirmar", true},
		{" Confirmar ", true},
		{"\tCONFIRMAR\n", true},
		{"CONFIRM", false},
		{"CONFIRMAR!", false},
		{"", false},
		{"   ", false},
		{"CON FIRMAR", false},
	}

	for _, tt := range tests {
		if got := ConfirmationMatches(tt.text); got != tt.want {
			t.Errorf("ConfirmationMatches(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}

func TestProtocolHappyPath(t *testing.T) {
	p := StartProtocol()
	if p.Phase != PhaseEvidence {
		t.Fatalf("New protocol should start at evidence, got %v", p.Phase)
	}
	if p.CanCommit() {
		t.Fatal("Fresh protocol must not allow commit")
	}

	p, err := p.Advance()
	if err != nil {
		t.Fatalf("Advancing past evidence should not fail: %v", err)
	}
	if p.Phase != PhaseCost {
		t.Fatalf("Expected cost phase, got %v", p.Phase)
	}

	p = p.AcknowledgeCost()
	p, err = p.Advance()
	if err != nil {
		t.Fatalf("Advancing past acknowledged cost should not fail: %v", err)
	}
	if p.Phase != PhaseVerdict {
		t.Fatalf("Expected verdict phase, got %v", p.Phase)
	}
	if p.CanCommit() {
		t.Fatal("Commit must stay disabled until the confirmation is typed")
	}

	p = p.WithConfirmation("confirmar")
	if !p.CanCommit() {
		t.Fatal("Commit should be enabled after a matching confirmation")
	}
}

func TestProtocolCostGate(t *testing.T) {
	p := StartProtocol()
	p, _ = p.Advance()

	_, err := p.Advance()
	if !errors.Is(err, ErrCostNotAcknowledged) {
		t.Fatalf("Advancing without acknowledgment should fail, got %v", err)
	}
}

func TestProtocolTerminalPhase(t *testing.T) {
	p := StartProtocol()
	p, _ = p.Advance()
	p = p.AcknowledgeCost()
	p, _ = p.Advance()

	_, err := p.Advance()
	if !errors.Is(err, ErrProtocolComplete) {
		t.Fatalf("Advancing past verdict should fail, got %v", err)
	}
}

func TestProtocolConfirmationDoesNotSkipPhases(t *testing.T) {
	// Typing the literal early must not enable commit before the verdict
	// phase is reached.
	p := StartProtocol().WithConfirmation("CONFIRMAR")
	if p.CanCommit() {
		t.Fatal("Commit must not be enabled at the evidence phase")
	}

	p, _ = p.Advance()
	if p.CanCommit() {
		t.Fatal("Commit must not be enabled at the cost phase")
	}
}

func TestProtocolIsValueObject(t *testing.T) {
	// Abandoning a copy must not affect the original walkthrough.
	p := StartProtocol()
	q := p.AcknowledgeCost()

	if p.CostAcknowledged {
		t.Fatal("AcknowledgeCost must not mutate the receiver")
	}
	if !q.CostAcknowledged {
		t.Fatal("AcknowledgeCost must set the flag on the returned value")
	}
}
