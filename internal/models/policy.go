package models

import (
	"time"

	"github.com/google/uuid"
)

// ============================================================================
// POLICY (READ-ONLY VIEW)
// ============================================================================

// Policy is the read-only view of an insured parcel held for one sweep cycle.
// The policy registry owns the record; the engine never mutates it.
type Policy struct {
	ID                 uuid.UUID    `json:"id" db:"id"`
	PolicyNumber       string       `json:"policy_number" db:"policy_number"`
	FarmerID           string       `json:"farmer_id" db:"farmer_id"`
	CropType           string       `json:"crop_type" db:"crop_type"`
	FarmSizeHa         float64      `json:"farm_size_ha" db:"farm_size_ha"`
	Location           GeoJSONPoint `json:"location" db:"location"`
	CoveragePerHectare float64      `json:"coverage_per_hectare" db:"coverage_per_hectare"`
	Currency           string       `json:"currency" db:"currency"`
	PaymentProvider    string       `json:"payment_provider" db:"payment_provider"`
	PaymentRecipient   string       `json:"payment_recipient" db:"payment_recipient"`
	Status             PolicyStatus `json:"status" db:"status"`
	CreatedAt          time.Time    `json:"created_at" db:"created_at"`
}
