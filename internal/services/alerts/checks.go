package alerts

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"civicwatch/internal/calc"
	"civicwatch/internal/domain"
	"civicwatch/internal/ports"
)

const (
	dafTriggerPct = 20.0
	dafMediumPct  = 35.0
	dafHighPct    = 50.0

	donorTriggerPct = 60.0
	donorMediumPct  = 70.0
	donorHighPct    = 80.0

	// Filing age is measured in approximate months of a fixed day count.
	approxMonth           = 30 * 24 * time.Hour
	filingThresholdMonths = 18
	filingMediumMonths    = 24
	filingHighMonths      = 30
)

// Trigger is what a check reports when its condition holds.
type Trigger struct {
	Severity    domain.Severity
	Title       string
	Description string
	Metadata    domain.AlertMetadata
}

// Check inspects one category of data for one organization. A nil Trigger
// with a nil error means the condition does not hold or there is not enough
// data to decide. Checks only read from the store.
type Check interface {
	Type() domain.AlertType
	Evaluate(ctx context.Context, orgID string) (*Trigger, error)
}

func severityTier(v, medium, high float64) domain.Severity {
	return calc.Tier(v, medium, high, domain.SeverityLow, domain.SeverityMedium, domain.SeverityHigh)
}

// DAFRatioCheck flags a year-over-year jump in the donor-advised-fund ratio.
type DAFRatioCheck struct {
	Records ports.DAFRepository
	Log     *slog.Logger
}

func (DAFRatioCheck) Type() domain.AlertType { return domain.AlertDAFRatioIncrease }

func (c DAFRatioCheck) Evaluate(ctx context.Context, orgID string) (*Trigger, error) {
	recs, err := c.Records.LatestDAF(ctx, orgID, 2)
	if err != nil {
		return nil, fmt.Errorf("load daf records: %w", err)
	}
	if len(recs) < 2 {
		return nil, nil
	}
	t, ok := dafRatioTrigger(recs[0], recs[1])
	if !ok && c.Log != nil {
		c.Log.Debug("daf ratio check skipped: previous ratio is not positive",
			"org_id", orgID, "previous_year", recs[1].Year, "previous_ratio", recs[1].Ratio)
	}
	return t, nil
}

// dafRatioTrigger compares the current record against the previous one. ok is
// false when the comparison is undefined (previous ratio not positive).
func dafRatioTrigger(cur, prev domain.DAFRecord) (t *Trigger, ok bool) {
	increase := cur.Ratio - prev.Ratio
	pct, ok := calc.Percent(increase, prev.Ratio)
	if !ok {
		return nil, false
	}
	if pct <= dafTriggerPct {
		return nil, true
	}
	return &Trigger{
		Severity: severityTier(pct, dafMediumPct, dafHighPct),
		Title:    "DAF Ratio Increase Detected",
		Description: fmt.Sprintf("DAF ratio rose from %.2f in %d to %.2f in %d, an increase of %.1f%%.",
			prev.Ratio, prev.Year, cur.Ratio, cur.Year, pct),
		Metadata: domain.DAFRatioMetadata{
			CurrentRatio:       cur.Ratio,
			PreviousRatio:      prev.Ratio,
			CurrentYear:        cur.Year,
			PreviousYear:       prev.Year,
			Increase:           increase,
			PercentageIncrease: pct,
		},
	}, true
}

// DonorConcentrationCheck flags a year in which a single donor supplies most
// of the contributions. Year 0 means the current calendar year.
type DonorConcentrationCheck struct {
	Donors ports.DonorRepository
	Clock  clockwork.Clock
	Year   int
}

func (DonorConcentrationCheck) Type() domain.AlertType { return domain.AlertDonorConcentration }

func (c DonorConcentrationCheck) Evaluate(ctx context.Context, orgID string) (*Trigger, error) {
	year := c.Year
	if year == 0 {
		year = c.Clock.Now().UTC().Year()
	}
	donors, err := c.Donors.DonorsForYear(ctx, orgID, year)
	if err != nil {
		return nil, fmt.Errorf("load donor records: %w", err)
	}
	return donorConcentrationTrigger(year, donors), nil
}

func donorConcentrationTrigger(year int, donors []domain.DonorRecord) *Trigger {
	if len(donors) == 0 {
		return nil
	}
	amounts := make([]float64, len(donors))
	top := donors[0]
	for i, d := range donors {
		amounts[i] = d.Amount
		if d.Amount > top.Amount {
			top = d
		}
	}
	total := calc.Sum(amounts)
	pct, ok := calc.Percent(top.Amount, total)
	if !ok || pct <= donorTriggerPct {
		return nil
	}
	return &Trigger{
		Severity: severityTier(pct, donorMediumPct, donorHighPct),
		Title:    "High Donor Concentration",
		Description: fmt.Sprintf("%s contributed %.1f%% of %s in donations for %d across %d donors.",
			top.DonorName, pct, calc.Currency(total), year, len(donors)),
		Metadata: domain.DonorConcentrationMetadata{
			DonorName:          top.DonorName,
			TopAmount:          top.Amount,
			TotalContributions: total,
			DonorCount:         len(donors),
			Percentage:         pct,
			Year:               year,
		},
	}
}

// MissingFilingCheck flags organizations whose last Form 990 is older than
// the filing window, or that have never filed.
type MissingFilingCheck struct {
	Filings ports.FilingRepository
	Clock   clockwork.Clock
}

func (MissingFilingCheck) Type() domain.AlertType { return domain.AlertMissing990 }

func (c MissingFilingCheck) Evaluate(ctx context.Context, orgID string) (*Trigger, error) {
	rec, found, err := c.Filings.LatestFiling(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("load latest filing: %w", err)
	}
	if !found {
		return &Trigger{
			Severity:    domain.SeverityHigh,
			Title:       "No Form 990 Filings on Record",
			Description: "No Form 990 filings are on record for this organization.",
			Metadata:    domain.FilingMetadata{NoFilings: true},
		}, nil
	}
	return missingFilingTrigger(c.Clock.Now(), rec), nil
}

// missingFilingTrigger fires only when strictly more than the threshold has
// elapsed; a filing exactly 18 approximate months old does not trigger.
func missingFilingTrigger(now time.Time, rec domain.FilingRecord) *Trigger {
	elapsed := now.Sub(rec.FilingDate)
	if elapsed <= filingThresholdMonths*approxMonth {
		return nil
	}
	months := int(elapsed / approxMonth)
	days := int(elapsed / (24 * time.Hour))
	return &Trigger{
		Severity: severityTier(float64(months), filingMediumMonths, filingHighMonths),
		Title:    "Form 990 Filing Overdue",
		Description: fmt.Sprintf("The last Form 990 (tax year %d) was filed on %s, %d months ago.",
			rec.TaxYear, rec.FilingDate.Format("Jan 2, 2006"), months),
		Metadata: domain.FilingMetadata{
			LastFilingDate: rec.FilingDate.Format(time.DateOnly),
			TaxYear:        rec.TaxYear,
			MonthsOverdue:  months,
			DaysOverdue:    days,
		},
	}
}
