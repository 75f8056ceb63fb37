package reports

import (
	"fmt"

	"civicwatch/internal/calc"
	"civicwatch/internal/domain"
)

const (
	riskMediumScore = 40.0
	riskHighScore   = 70.0

	dependencyLimit   = 0.7
	transparencyFloor = 60.0
	minGrantCount     = 3
)

const (
	RecDiversifyFunding    = "Diversify funding sources to reduce dependency on major donors"
	RecImproveTransparency = "Improve financial transparency and disclosure practices"
	RecExpandDonorBase     = "Expand donor base to reduce concentration risk"
)

// Aggregate computes the summary, findings and recommendations for org. The
// identifying fields (id, type, year, timestamps, format) are left for the
// caller. risk may be nil. Recommendations stay nil when includeRecs is false.
func Aggregate(org *domain.Organization, grants []domain.Grant, risk *domain.RiskScore, includeRecs bool) *domain.Report {
	if grants == nil {
		grants = []domain.Grant{}
	}
	amounts := make([]float64, len(grants))
	for i, g := range grants {
		amounts[i] = g.Amount
	}

	summary := domain.ReportSummary{
		TotalGrants:  len(grants),
		TotalFunding: calc.Sum(amounts),
		AvgGrantSize: calc.Mean(amounts),
		RiskLevel:    RiskLevelFor(risk),
	}
	if risk != nil {
		score, dep, ti := risk.Score, risk.DependencyRatio, risk.TransparencyIndex
		summary.RiskScore, summary.DependencyRatio, summary.TransparencyIndex = &score, &dep, &ti
	}

	r := &domain.Report{
		OrgID:        org.ID,
		Organization: domain.OrgSnapshot{Name: org.Name, EIN: org.EIN, Mission: org.Mission},
		Summary:      summary,
		KeyFindings:  keyFindings(summary),
		Data:         domain.ReportData{Grants: grants, RiskScore: risk},
	}
	if includeRecs {
		r.Recommendations = recommendations(summary)
	}
	return r
}

// RiskLevelFor classifies a risk score. A missing score is low.
func RiskLevelFor(risk *domain.RiskScore) domain.RiskLevel {
	if risk == nil {
		return domain.RiskLow
	}
	return calc.Tier(risk.Score, riskMediumScore, riskHighScore, domain.RiskLow, domain.RiskMedium, domain.RiskHigh)
}

func recommendations(s domain.ReportSummary) []string {
	recs := []string{}
	if s.DependencyRatio != nil && *s.DependencyRatio > dependencyLimit {
		recs = append(recs, RecDiversifyFunding)
	}
	if s.TransparencyIndex != nil && *s.TransparencyIndex < transparencyFloor {
		recs = append(recs, RecImproveTransparency)
	}
	if s.TotalGrants < minGrantCount {
		recs = append(recs, RecExpandDonorBase)
	}
	return recs
}

func keyFindings(s domain.ReportSummary) []string {
	dep, ti := "N/A", "N/A"
	if s.DependencyRatio != nil {
		dep = fmt.Sprintf("%.1f%%", *s.DependencyRatio*100)
	}
	if s.TransparencyIndex != nil {
		ti = fmt.Sprintf("%.1f", *s.TransparencyIndex)
	}
	return []string{
		fmt.Sprintf("Received %d grants totaling %s", s.TotalGrants, calc.Currency(s.TotalFunding)),
		fmt.Sprintf("Overall risk level: %s", s.RiskLevel),
		fmt.Sprintf("Donor dependency ratio: %s", dep),
		fmt.Sprintf("Transparency index: %s", ti),
	}
}
