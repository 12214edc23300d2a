package governance

import "github.com/atvirokodosprendimai/archmap/internal/domain"

// Decision says what the caller should surface for one evaluation. Warn and
// Unblocked fire at most once per distinct signature so repeated evaluations
// of the same state stay silent.
type Decision struct {
	SaveBlocked bool
	Warn        bool
	Blocked     bool // block transition to announce
	Unblocked   bool // success transition to announce
	Signature   Signature
}

// Tracker carries the warn/block state between evaluations. Single-writer,
// like the repository it observes.
type Tracker struct {
	warned     bool
	warnedSig  Signature
	blocked    bool
	blockedSig Signature
}

func NewTracker() *Tracker { return &Tracker{} }

func (t *Tracker) Observe(report Report, mode domain.GovernanceMode) Decision {
	sig := report.Signature()
	decision := Decision{Signature: sig}

	if mode == domain.GovernanceStrict {
		if sig.BlockingDebt() > 0 {
			decision.SaveBlocked = true
			if !t.blocked || t.blockedSig != sig {
				decision.Blocked = true
			}
			t.blocked = true
			t.blockedSig = sig
		} else if t.blocked {
			// Debt returned to zero: announce success exactly once.
			decision.Unblocked = true
			t.blocked = false
			t.blockedSig = Signature{}
		}
		return decision
	}

	// Advisory mode never blocks; warn once per distinct nonzero signature.
	if sig.Total() > 0 && (!t.warned || t.warnedSig != sig) {
		decision.Warn = true
		t.warned = true
		t.warnedSig = sig
	}
	if sig.Total() == 0 {
		t.warned = false
		t.warnedSig = Signature{}
	}
	return decision
}

// Reset clears warn/block state, used when the repository is replaced
// wholesale (new project, snapshot load).
func (t *Tracker) Reset() {
	*t = Tracker{}
}
