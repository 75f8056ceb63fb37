package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

type AlertType string

const (
	AlertDAFRatioIncrease   AlertType = "daf_ratio_increase"
	AlertDonorConcentration AlertType = "donor_concentration"
	AlertMissing990         AlertType = "missing_990"
)

type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// AlertMetadata is the per-type payload stored with an alert. Each alert type
// has exactly one concrete metadata shape.
type AlertMetadata interface {
	AlertType() AlertType
}

type DAFRatioMetadata struct {
	CurrentRatio       float64 `json:"current_ratio"`
	PreviousRatio      float64 `json:"previous_ratio"`
	CurrentYear        int     `json:"current_year"`
	PreviousYear       int     `json:"previous_year"`
	Increase           float64 `json:"increase"`
	PercentageIncrease float64 `json:"percentage_increase"`
}

func (DAFRatioMetadata) AlertType() AlertType { return AlertDAFRatioIncrease }

type DonorConcentrationMetadata struct {
	DonorName          string  `json:"donor_name"`
	TopAmount          float64 `json:"top_amount"`
	TotalContributions float64 `json:"total_contributions"`
	DonorCount         int     `json:"donor_count"`
	Percentage         float64 `json:"percentage"`
	Year               int     `json:"year"`
}

func (DonorConcentrationMetadata) AlertType() AlertType { return AlertDonorConcentration }

// FilingMetadata describes the most recent Form 990 filing. NoFilings is set
// and the remaining fields are zero when the organization has never filed.
type FilingMetadata struct {
	NoFilings      bool   `json:"no_filings,omitempty"`
	LastFilingDate string `json:"last_filing_date,omitempty"`
	TaxYear        int    `json:"tax_year,omitempty"`
	MonthsOverdue  int    `json:"months_overdue"`
	DaysOverdue    int    `json:"days_overdue"`
}

func (FilingMetadata) AlertType() AlertType { return AlertMissing990 }

type Alert struct {
	ID          string        `json:"id"`
	OrgID       string        `json:"organization_id"`
	Type        AlertType     `json:"alert_type"`
	Severity    Severity      `json:"severity"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Metadata    AlertMetadata `json:"metadata"`
	IsRead      bool          `json:"is_read"`
	CreatedAt   time.Time     `json:"created_at"`
}

func (a *Alert) UnmarshalJSON(b []byte) error {
	type plain Alert
	var raw struct {
		plain
		Metadata json.RawMessage `json:"metadata"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	md, err := DecodeAlertMetadata(raw.Type, raw.Metadata)
	if err != nil {
		return err
	}
	*a = Alert(raw.plain)
	a.Metadata = md
	return nil
}

// DecodeAlertMetadata decodes a stored metadata document into the concrete
// shape for t. Empty input yields the zero value of that shape.
func DecodeAlertMetadata(t AlertType, raw []byte) (AlertMetadata, error) {
	var md AlertMetadata
	switch t {
	case AlertDAFRatioIncrease:
		var m DAFRatioMetadata
		if err := decodeIfPresent(raw, &m); err != nil {
			return nil, err
		}
		md = m
	case AlertDonorConcentration:
		var m DonorConcentrationMetadata
		if err := decodeIfPresent(raw, &m); err != nil {
			return nil, err
		}
		md = m
	case AlertMissing990:
		var m FilingMetadata
		if err := decodeIfPresent(raw, &m); err != nil {
			return nil, err
		}
		md = m
	default:
		return nil, fmt.Errorf("unknown alert type %q", t)
	}
	return md, nil
}

func decodeIfPresent(raw []byte, dst any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	return json.Unmarshal(raw, dst)
}
