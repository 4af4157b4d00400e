package models

type HazardType string

const (
	HazardDrought    HazardType = "drought"
	HazardFlood      HazardType = "flood"
	HazardCropStress HazardType = "crop_stress"
)

// AllHazards lists every hazard a policy can be evaluated against.
var AllHazards = []HazardType{HazardDrought, HazardFlood, HazardCropStress}

func IsValidHazard(h HazardType) bool {
	switch h {
	case HazardDrought, HazardFlood, HazardCropStress:
		return true
	default:
		return false
	}
}

type PolicyStatus string

const (
	PolicyActive    PolicyStatus = "active"
	PolicySuspended PolicyStatus = "suspended"
	PolicyClosed    PolicyStatus = "closed"
)

// SourceTier ranks data sources by confidence. Lower rank answers first.
type SourceTier string

const (
	TierPrimary   SourceTier = "primary"
	TierFallback1 SourceTier = "fallback_1"
	TierFallback2 SourceTier = "fallback_2"
	TierSimulated SourceTier = "simulated"
)

// Rank returns the fallback ordering of the tier. Unknown tiers sort last.
func (t SourceTier) Rank() int {
	switch t {
	case TierPrimary:
		return 0
	case TierFallback1:
		return 1
	case TierFallback2:
		return 2
	case TierSimulated:
		return 3
	default:
		return 99
	}
}

// Binding reports whether data from this tier may drive a payout-triggering
// decision. Simulated data is advisory-only.
func (t SourceTier) Binding() bool {
	return t != TierSimulated
}

type FloodRiskLevel string

const (
	FloodRiskLow      FloodRiskLevel = "low"
	FloodRiskMedium   FloodRiskLevel = "medium"
	FloodRiskHigh     FloodRiskLevel = "high"
	FloodRiskCritical FloodRiskLevel = "critical"
)

func (l FloodRiskLevel) Rank() int {
	switch l {
	case FloodRiskLow:
		return 0
	case FloodRiskMedium:
		return 1
	case FloodRiskHigh:
		return 2
	case FloodRiskCritical:
		return 3
	default:
		return -1
	}
}

type TransferStatus string

const (
	TransferPending   TransferStatus = "pending"
	TransferSucceeded TransferStatus = "succeeded"
	TransferFailed    TransferStatus = "failed"
)

type EventKind string

const (
	EventPayoutConfirmed EventKind = "payout_confirmed"
	EventPayoutEscalated EventKind = "payout_escalated"
	EventManualFollowUp  EventKind = "manual_follow_up"
	EventAdvisoryAlert   EventKind = "advisory_alert"
)
