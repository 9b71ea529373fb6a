package calibration

import (
	"errors"
	"strings"
)

// ConfirmationLiteral is the exact text an operator has to type before the
// commit action becomes available. Matching is case-insensitive after
// trimming surrounding whitespace.
const ConfirmationLiteral = "CONFIRMAR"

// Phase identifies a step of the closing protocol.
type Phase int

const (
	// PhaseEvidence presents the before/after distribution summary.
	PhaseEvidence Phase = iota + 1
	// PhaseCost presents the financial impact and requires an explicit
	// budgetary-impact acknowledgment before the protocol can advance.
	PhaseCost
	// PhaseVerdict asks for the typed confirmation and exposes the commit.
	PhaseVerdict
)

func (p Phase) String() string {
	switch p {
	case PhaseEvidence:
		return "evidence"
	case PhaseCost:
		return "cost"
	case PhaseVerdict:
		return "verdict"
	default:
		return "unknown"
	}
}

var (
	// ErrCostNotAcknowledged is returned when advancing past the cost phase
	// without the budgetary-impact acknowledgment.
	ErrCostNotAcknowledged = errors.New("budgetary impact must be acknowledged before advancing")
	// ErrProtocolComplete is returned when advancing past the verdict phase.
	ErrProtocolComplete = errors.New("closing protocol has no further phases")
)

// Protocol is the state of one closing-protocol walkthrough. It is a value
// object: phase transitions return a new value, and abandoning the
// protocol at any point has no effect anywhere. Only the final commit call
// touches the server, and the server re-validates the session status
// independently of this state.
type Protocol struct {
	Phase            Phase
	CostAcknowledged bool
	Confirmation     string
}

// StartProtocol begins a new walkthrough at the evidence phase.
func StartProtocol() Protocol {
	return Protocol{Phase: PhaseEvidence}
}

// Advance moves to the next phase. Leaving the cost phase requires the
// acknowledgment; the evidence phase has no precondition beyond operator
// action.
func (p Protocol) Advance() (Protocol, error) {
	switch p.Phase {
	case PhaseEvidence:
		p.Phase = PhaseCost
		return p, nil
	case PhaseCost:
		if !p.CostAcknowledged {
			return p, ErrCostNotAcknowledged
		}
		p.Phase = PhaseVerdict
		return p, nil
	default:
		return p, ErrProtocolComplete
	}
}

// AcknowledgeCost records the operator's budgetary-impact acknowledgment.
func (p Protocol) AcknowledgeCost() Protocol {
	p.CostAcknowledged = true
	return p
}

// WithConfirmation records the operator's typed confirmation text.
func (p Protocol) WithConfirmation(text string) Protocol {
	p.Confirmation = text
	return p
}

// CanCommit reports whether the commit action is enabled: the walkthrough
// must have reached the verdict phase and the typed text must match the
// confirmation literal.
func (p Protocol) CanCommit() bool {
	return p.Phase == PhaseVerdict && ConfirmationMatches(p.Confirmation)
}

// ConfirmationMatches reports whether the typed text equals the
// confirmation literal, ignoring case and surrounding whitespace.
func ConfirmationMatches(text string) bool {
	return strings.EqualFold(strings.TrimSpace(text), ConfirmationLiteral)
}
