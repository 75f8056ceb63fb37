package domain

import "time"

type ReportType string

const (
	ReportComplianceAnalysis ReportType = "compliance_analysis"
	ReportRiskAssessment     ReportType = "risk_assessment"
	ReportDonorAnalysis      ReportType = "donor_analysis"
)

type OutputFormat string

const (
	FormatJSON OutputFormat = "json"
	FormatPDF  OutputFormat = "pdf"
)

type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// Report is computed per request and never stored by the service. Field
// names are consumed verbatim by the renderer.
type Report struct {
	ID              string           `json:"id"`
	OrgID           string           `json:"org_id"`
	Organization    OrgSnapshot      `json:"organization"`
	ReportType      ReportType       `json:"report_type"`
	Year            int              `json:"year"`
	GeneratedAt     time.Time        `json:"generated_at"`
	Status          string           `json:"status"`
	Format          OutputFormat     `json:"format"`
	Summary         ReportSummary    `json:"summary"`
	KeyFindings     []string         `json:"key_findings"`
	Recommendations []string         `json:"recommendations"`
	Data            ReportData       `json:"data"`
	Options         ReportRenderHint `json:"-"`
}

type OrgSnapshot struct {
	Name    string `json:"name"`
	EIN     string `json:"ein"`
	Mission string `json:"mission"`
}

// ReportSummary carries the derived statistics. Risk fields are nil when the
// organization has no risk score for the report year.
type ReportSummary struct {
	TotalGrants       int       `json:"total_grants"`
	TotalFunding      float64   `json:"total_funding"`
	AvgGrantSize      float64   `json:"avg_grant_size"`
	RiskLevel         RiskLevel `json:"risk_level"`
	RiskScore         *float64  `json:"risk_score"`
	DependencyRatio   *float64  `json:"dependency_ratio"`
	TransparencyIndex *float64  `json:"transparency_index"`
}

type ReportData struct {
	Grants    []Grant    `json:"grants"`
	RiskScore *RiskScore `json:"risk_score"`
}

// ReportRenderHint holds presentation options passed to the renderer out of band.
type ReportRenderHint struct {
	IncludeVisualizations bool
}

const ReportStatusCompleted = "completed"

// ReportRequest is the input to report generation.
type ReportRequest struct {
	OrgID      string        `json:"-" validate:"required"`
	ReportType ReportType    `json:"report_type" validate:"required,oneof=compliance_analysis risk_assessment donor_analysis"`
	Year       *int          `json:"year,omitempty" validate:"omitempty,gte=1900,lte=2100"`
	Options    ReportOptions `json:"options"`
}

type ReportOptions struct {
	// IncludeRecommendations defaults to true; only an explicit false disables them.
	IncludeRecommendations *bool        `json:"include_recommendations,omitempty"`
	IncludeVisualizations  bool         `json:"include_visualizations"`
	Format                 OutputFormat `json:"format,omitempty" validate:"omitempty,oneof=json pdf"`
}

// ReportResult is a generated report plus, for rendered formats, where to fetch it.
type ReportResult struct {
	Report      *Report    `json:"report"`
	DownloadURL string     `json:"download_url,omitempty"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
}
