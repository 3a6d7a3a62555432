package domain

import "time"

// CaseStatus is the lifecycle state of an accident claim analysis.
type CaseStatus string

const (
	CasePending    CaseStatus = "pending"
	CaseProcessing CaseStatus = "processing"
	CaseCompleted  CaseStatus = "completed"
	CaseFailed     CaseStatus = "failed"
)

// Stage result statuses shared by every pipeline stage. These four values are
// the only contract the chain runner depends on.
const (
	StageCompleted = "completed"
	StagePartial   = "partial"
	StageFailed    = "failed"
	StageSkipped   = "skipped"
)

type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityMajor    Severity = "major"
	SeverityMinor    Severity = "minor"
)

// Case is the root aggregate: one accident claim under analysis.
// The business-registration fields (NIP, REGON, PKD) are optional context
// used by the legal-analysis stages.
type Case struct {
	ID                  string     `db:"case_id"`
	Status              CaseStatus `db:"status"`
	ErrorMessage        string     `db:"error_message"`
	NIP                 string     `db:"nip"`
	REGON               string     `db:"regon"`
	PKDCode             string     `db:"pkd_code"`
	BusinessDescription string     `db:"business_description"`
	CreatedAt           time.Time  `db:"created_at"`
	UpdatedAt           time.Time  `db:"updated_at"`
}

type DocumentType struct {
	Name        string `db:"name"`
	Description string `db:"description"`
}

// Document is one uploaded PDF belonging to a Case. Raw bytes live on disk at
// StoragePath; the row is immutable after upload except for its OCR relation.
type Document struct {
	ID          string    `db:"document_id"`
	CaseID      string    `db:"case_id"`
	TypeName    string    `db:"type_name"`
	Filename    string    `db:"filename"`
	StoragePath string    `db:"storage_path"`
	FileSize    int64     `db:"file_size"`
	UploadedAt  time.Time `db:"uploaded_at"`
}

// ExtractedText is the 1:1 OCR result for a Document.
type ExtractedText struct {
	ID          string    `db:"text_id"`
	DocumentID  string    `db:"document_id"`
	Text        string    `db:"extracted_text"`
	Confidence  float64   `db:"confidence_score"`
	PageCount   int       `db:"page_count"`
	ProcessedAt time.Time `db:"processed_at"`
}

// DocumentText joins a Document with its ExtractedText; this is the shape
// every multi-document stage consumes.
type DocumentText struct {
	DocumentID string  `db:"document_id"`
	Filename   string  `db:"filename"`
	TypeName   string  `db:"type_name"`
	Text       string  `db:"extracted_text"`
	Confidence float64 `db:"confidence_score"`
}

// Discrepancy is one detected cross-document conflict.
type Discrepancy struct {
	ID                string   `db:"discrepancy_id"`
	CaseID            string   `db:"case_id"`
	FieldName         string   `db:"field_name"`
	Description       string   `db:"description"`
	Severity          Severity `db:"severity"`
	DocumentRefs      []string `db:"-"`
	ConflictingValues []string `db:"-"`
}

// FormalAnalysis holds the four-criterion legal verdict for a Case.
// Nil pointers mean "no data", not "false".
type FormalAnalysis struct {
	ID     string `db:"analysis_id"`
	CaseID string `db:"case_id"`

	IsSudden              *bool  `db:"is_sudden"`
	SuddennessExplanation string `db:"suddenness_explanation"`

	HasExternalCause         *bool  `db:"has_external_cause"`
	ExternalCauseExplanation string `db:"external_cause_explanation"`

	HasInjury         *bool  `db:"has_injury"`
	InjuryExplanation string `db:"injury_explanation"`

	IsWorkRelated           *bool  `db:"is_work_related"`
	WorkRelationExplanation string `db:"work_relation_explanation"`

	QualifiesAsWorkAccident *bool     `db:"qualifies_as_work_accident"`
	OverallConclusion       string    `db:"overall_conclusion"`
	AssessedAt              time.Time `db:"assessed_at"`
}

// Recommendation is a request for an additional or mandatory document type.
type Recommendation struct {
	ID           string    `db:"recommendation_id"`
	CaseID       string    `db:"case_id"`
	DocumentType string    `db:"document_type"`
	Reason       string    `db:"reason"`
	CreatedAt    time.Time `db:"created_at"`
}

// Opinion is the terminal artifact: the final legal opinion for a Case.
type Opinion struct {
	ID                string    `db:"opinion_id"`
	CaseID            string    `db:"case_id"`
	Summary           string    `db:"summary"`
	DetailedAnalysis  string    `db:"detailed_analysis"`
	OverallAssessment string    `db:"overall_assessment"`
	GeneratedAt       time.Time `db:"generated_at"`
}
