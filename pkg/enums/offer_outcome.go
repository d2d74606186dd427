package enums

import "fmt"

// OfferOutcome is the resolution state of a delivery offer. Pending is
// the only non-terminal value; a terminal outcome never changes.
type OfferOutcome string

const (
	OfferOutcomePending    OfferOutcome = "pending"
	OfferOutcomeAccepted   OfferOutcome = "accepted"
	OfferOutcomeRejected   OfferOutcome = "rejected"
	OfferOutcomeExpired    OfferOutcome = "expired"
	OfferOutcomeSuperseded OfferOutcome = "superseded"
)

var validOfferOutcomes = []OfferOutcome{
	OfferOutcomePending,
	OfferOutcomeAccepted,
	OfferOutcomeRejected,
	OfferOutcomeExpired,
	OfferOutcomeSuperseded,
}

// String implements fmt.Stringer.
func (o OfferOutcome) String() string {
	return string(o)
}

// IsValid reports whether the value is a known OfferOutcome.
func (o OfferOutcome) IsValid() bool {
	for _, candidate := range validOfferOutcomes {
		if candidate == o {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the outcome is final.
func (o OfferOutcome) IsTerminal() bool {
	return o != OfferOutcomePending && o.IsValid()
}

// ParseOfferOutcome converts raw input into an OfferOutcome.
func ParseOfferOutcome(value string) (OfferOutcome, error) {
	for _, candidate := range validOfferOutcomes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid offer outcome %q", value)
}
