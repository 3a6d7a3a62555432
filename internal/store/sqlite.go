package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/pkruk/accident-clerk/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS cases (
	case_id              TEXT PRIMARY KEY,
	status               TEXT NOT NULL DEFAULT 'pending',
	error_message        TEXT NOT NULL DEFAULT '',
	nip                  TEXT NOT NULL DEFAULT '',
	regon                TEXT NOT NULL DEFAULT '',
	pkd_code             TEXT NOT NULL DEFAULT '',
	business_description TEXT NOT NULL DEFAULT '',
	created_at           TIMESTAMP NOT NULL,
	updated_at           TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS document_types (
	name        TEXT PRIMARY KEY,
	description TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS documents (
	document_id  TEXT PRIMARY KEY,
	case_id      TEXT NOT NULL REFERENCES cases(case_id),
	type_name    TEXT NOT NULL DEFAULT '',
	filename     TEXT NOT NULL,
	storage_path TEXT NOT NULL DEFAULT '',
	file_size    INTEGER NOT NULL DEFAULT 0,
	uploaded_at  TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_documents_case ON documents(case_id);

CREATE TABLE IF NOT EXISTS extracted_texts (
	text_id          TEXT PRIMARY KEY,
	document_id      TEXT NOT NULL UNIQUE REFERENCES documents(document_id),
	extracted_text   TEXT NOT NULL,
	confidence_score REAL NOT NULL DEFAULT 0,
	page_count       INTEGER NOT NULL DEFAULT 0,
	processed_at     TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS discrepancies (
	discrepancy_id     TEXT PRIMARY KEY,
	case_id            TEXT NOT NULL REFERENCES cases(case_id),
	field_name         TEXT NOT NULL,
	description        TEXT NOT NULL,
	severity           TEXT NOT NULL,
	document_refs      TEXT NOT NULL DEFAULT '[]',
	conflicting_values TEXT NOT NULL DEFAULT '[]'
);
CREATE INDEX IF NOT EXISTS idx_discrepancies_case ON discrepancies(case_id);

CREATE TABLE IF NOT EXISTS formal_analyses (
	analysis_id                TEXT PRIMARY KEY,
	case_id                    TEXT NOT NULL UNIQUE REFERENCES cases(case_id),
	is_sudden                  INTEGER,
	suddenness_explanation     TEXT NOT NULL DEFAULT '',
	has_external_cause         INTEGER,
	external_cause_explanation TEXT NOT NULL DEFAULT '',
	has_injury                 INTEGER,
	injury_explanation         TEXT NOT NULL DEFAULT '',
	is_work_related            INTEGER,
	work_relation_explanation  TEXT NOT NULL DEFAULT '',
	qualifies_as_work_accident INTEGER,
	overall_conclusion         TEXT NOT NULL DEFAULT '',
	assessed_at                TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS recommendations (
	recommendation_id TEXT PRIMARY KEY,
	case_id           TEXT NOT NULL REFERENCES cases(case_id),
	document_type     TEXT NOT NULL,
	reason            TEXT NOT NULL DEFAULT '',
	created_at        TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_recommendations_case ON recommendations(case_id);

CREATE TABLE IF NOT EXISTS opinions (
	opinion_id         TEXT PRIMARY KEY,
	case_id            TEXT NOT NULL UNIQUE REFERENCES cases(case_id),
	summary            TEXT NOT NULL DEFAULT '',
	detailed_analysis  TEXT NOT NULL DEFAULT '',
	overall_assessment TEXT NOT NULL DEFAULT '',
	generated_at       TIMESTAMP NOT NULL
);
`

// SQLiteStore is the production Store. A single connection avoids writer
// contention; WAL keeps readers cheap.
type SQLiteStore struct {
	db *sqlx.DB
}

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(on)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite store: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateCase(ctx context.Context, c *domain.Case) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.Status == "" {
		c.Status = domain.CasePending
	}
	now := time.Now().UTC()
	c.CreatedAt, c.UpdatedAt = now, now
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cases (case_id, status, error_message, nip, regon, pkd_code, business_description, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Status, c.ErrorMessage, c.NIP, c.REGON, c.PKDCode, c.BusinessDescription, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create case: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetCase(ctx context.Context, id string) (domain.Case, error) {
	var c domain.Case
	err := s.db.GetContext(ctx, &c, `SELECT * FROM cases WHERE case_id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Case{}, fmt.Errorf("case %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return domain.Case{}, fmt.Errorf("get case: %w", err)
	}
	return c, nil
}

func (s *SQLiteStore) SetCaseStatus(ctx context.Context, id string, status domain.CaseStatus, errMsg string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE cases SET status = ?, error_message = ?, updated_at = ? WHERE case_id = ?`,
		status, errMsg, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("set case status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("case %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

func (s *SQLiteStore) EnsureDocumentType(ctx context.Context, name, description string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO document_types (name, description) VALUES (?, ?)
		ON CONFLICT(name) DO NOTHING`, name, description)
	if err != nil {
		return fmt.Errorf("ensure document type: %w", err)
	}
	return nil
}

func (s *SQLiteStore) AddDocument(ctx context.Context, d *domain.Document) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if d.UploadedAt.IsZero() {
		d.UploadedAt = time.Now().UTC()
	}
	if d.TypeName != "" {
		if err := s.EnsureDocumentType(ctx, d.TypeName, ""); err != nil {
			return err
		}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (document_id, case_id, type_name, filename, storage_path, file_size, uploaded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.CaseID, d.TypeName, d.Filename, d.StoragePath, d.FileSize, d.UploadedAt)
	if err != nil {
		return fmt.Errorf("add document: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListDocuments(ctx context.Context, caseID string) ([]domain.Document, error) {
	var docs []domain.Document
	err := s.db.SelectContext(ctx, &docs, `
		SELECT * FROM documents WHERE case_id = ? ORDER BY uploaded_at, document_id`, caseID)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	return docs, nil
}

func (s *SQLiteStore) ListDocumentsWithoutText(ctx context.Context, caseID string) ([]domain.Document, error) {
	var docs []domain.Document
	err := s.db.SelectContext(ctx, &docs, `
		SELECT d.* FROM documents d
		LEFT JOIN extracted_texts t ON t.document_id = d.document_id
		WHERE d.case_id = ? AND t.text_id IS NULL
		ORDER BY d.uploaded_at, d.document_id`, caseID)
	if err != nil {
		return nil, fmt.Errorf("list documents without text: %w", err)
	}
	return docs, nil
}

func (s *SQLiteStore) SaveExtractedText(ctx context.Context, et *domain.ExtractedText) error {
	if et.ID == "" {
		et.ID = uuid.NewString()
	}
	if et.ProcessedAt.IsZero() {
		et.ProcessedAt = time.Now().UTC()
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("save extracted text: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM extracted_texts WHERE document_id = ?`, et.DocumentID); err != nil {
		return fmt.Errorf("save extracted text: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO extracted_texts (text_id, document_id, extracted_text, confidence_score, page_count, processed_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		et.ID, et.DocumentID, et.Text, et.Confidence, et.PageCount, et.ProcessedAt)
	if err != nil {
		return fmt.Errorf("save extracted text: %w", err)
	}
	return tx.Commit()
}

func (s *SQLiteStore) ListDocumentTexts(ctx context.Context, caseID string) ([]domain.DocumentText, error) {
	var texts []domain.DocumentText
	err := s.db.SelectContext(ctx, &texts, `
		SELECT d.document_id, d.filename, d.type_name, t.extracted_text, t.confidence_score
		FROM documents d
		JOIN extracted_texts t ON t.document_id = d.document_id
		WHERE d.case_id = ?
		ORDER BY d.uploaded_at, d.document_id`, caseID)
	if err != nil {
		return nil, fmt.Errorf("list document texts: %w", err)
	}
	return texts, nil
}

func (s *SQLiteStore) ReplaceDiscrepancies(ctx context.Context, caseID string, items []domain.Discrepancy) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("replace discrepancies: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM discrepancies WHERE case_id = ?`, caseID); err != nil {
		return fmt.Errorf("replace discrepancies: %w", err)
	}
	for i := range items {
		d := &items[i]
		if d.ID == "" {
			d.ID = uuid.NewString()
		}
		d.CaseID = caseID
		refs, _ := json.Marshal(emptyAsList(d.DocumentRefs))
		values, _ := json.Marshal(emptyAsList(d.ConflictingValues))
		_, err := tx.ExecContext(ctx, `
			INSERT INTO discrepancies (discrepancy_id, case_id, field_name, description, severity, document_refs, conflicting_values)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			d.ID, d.CaseID, d.FieldName, d.Description, d.Severity, string(refs), string(values))
		if err != nil {
			return fmt.Errorf("replace discrepancies: %w", err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) ListDiscrepancies(ctx context.Context, caseID string) ([]domain.Discrepancy, error) {
	rows, err := s.db.QueryxContext(ctx, `
		SELECT discrepancy_id, case_id, field_name, description, severity, document_refs, conflicting_values
		FROM discrepancies WHERE case_id = ? ORDER BY discrepancy_id`, caseID)
	if err != nil {
		return nil, fmt.Errorf("list discrepancies: %w", err)
	}
	defer rows.Close()

	var out []domain.Discrepancy
	for rows.Next() {
		var d domain.Discrepancy
		var refs, values string
		if err := rows.Scan(&d.ID, &d.CaseID, &d.FieldName, &d.Description, &d.Severity, &refs, &values); err != nil {
			return nil, fmt.Errorf("list discrepancies: %w", err)
		}
		json.Unmarshal([]byte(refs), &d.DocumentRefs)
		json.Unmarshal([]byte(values), &d.ConflictingValues)
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) ReplaceFormalAnalysis(ctx context.Context, fa *domain.FormalAnalysis) error {
	if fa.ID == "" {
		fa.ID = uuid.NewString()
	}
	if fa.AssessedAt.IsZero() {
		fa.AssessedAt = time.Now().UTC()
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("replace formal analysis: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM formal_analyses WHERE case_id = ?`, fa.CaseID); err != nil {
		return fmt.Errorf("replace formal analysis: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO formal_analyses (
			analysis_id, case_id,
			is_sudden, suddenness_explanation,
			has_external_cause, external_cause_explanation,
			has_injury, injury_explanation,
			is_work_related, work_relation_explanation,
			qualifies_as_work_accident, overall_conclusion, assessed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		fa.ID, fa.CaseID,
		fa.IsSudden, fa.SuddennessExplanation,
		fa.HasExternalCause, fa.ExternalCauseExplanation,
		fa.HasInjury, fa.InjuryExplanation,
		fa.IsWorkRelated, fa.WorkRelationExplanation,
		fa.QualifiesAsWorkAccident, fa.OverallConclusion, fa.AssessedAt)
	if err != nil {
		return fmt.Errorf("replace formal analysis: %w", err)
	}
	return tx.Commit()
}

func (s *SQLiteStore) GetFormalAnalysis(ctx context.Context, caseID string) (domain.FormalAnalysis, error) {
	var fa domain.FormalAnalysis
	err := s.db.GetContext(ctx, &fa, `SELECT * FROM formal_analyses WHERE case_id = ?`, caseID)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.FormalAnalysis{}, fmt.Errorf("formal analysis for case %s: %w", caseID, domain.ErrNotFound)
	}
	if err != nil {
		return domain.FormalAnalysis{}, fmt.Errorf("get formal analysis: %w", err)
	}
	return fa, nil
}

func (s *SQLiteStore) ReplaceRecommendations(ctx context.Context, caseID string, recs []domain.Recommendation) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("replace recommendations: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM recommendations WHERE case_id = ?`, caseID); err != nil {
		return fmt.Errorf("replace recommendations: %w", err)
	}
	now := time.Now().UTC()
	for i := range recs {
		r := &recs[i]
		if r.ID == "" {
			r.ID = uuid.NewString()
		}
		r.CaseID = caseID
		if r.CreatedAt.IsZero() {
			r.CreatedAt = now
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO recommendations (recommendation_id, case_id, document_type, reason, created_at)
			VALUES (?, ?, ?, ?, ?)`,
			r.ID, r.CaseID, r.DocumentType, r.Reason, r.CreatedAt); err != nil {
			return fmt.Errorf("replace recommendations: %w", err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) ListRecommendations(ctx context.Context, caseID string) ([]domain.Recommendation, error) {
	var recs []domain.Recommendation
	err := s.db.SelectContext(ctx, &recs, `
		SELECT * FROM recommendations WHERE case_id = ? ORDER BY created_at, recommendation_id`, caseID)
	if err != nil {
		return nil, fmt.Errorf("list recommendations: %w", err)
	}
	return recs, nil
}

func (s *SQLiteStore) UpsertOpinion(ctx context.Context, op *domain.Opinion) error {
	if op.ID == "" {
		op.ID = uuid.NewString()
	}
	op.GeneratedAt = time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO opinions (opinion_id, case_id, summary, detailed_analysis, overall_assessment, generated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(case_id) DO UPDATE SET
			summary = excluded.summary,
			detailed_analysis = excluded.detailed_analysis,
			overall_assessment = excluded.overall_assessment,
			generated_at = excluded.generated_at`,
		op.ID, op.CaseID, op.Summary, op.DetailedAnalysis, op.OverallAssessment, op.GeneratedAt)
	if err != nil {
		return fmt.Errorf("upsert opinion: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetOpinion(ctx context.Context, caseID string) (domain.Opinion, error) {
	var op domain.Opinion
	err := s.db.GetContext(ctx, &op, `SELECT * FROM opinions WHERE case_id = ?`, caseID)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Opinion{}, fmt.Errorf("opinion for case %s: %w", caseID, domain.ErrNotFound)
	}
	if err != nil {
		return domain.Opinion{}, fmt.Errorf("get opinion: %w", err)
	}
	return op, nil
}

func emptyAsList(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
