package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/fleetaudit/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS leads (
	id                   TEXT PRIMARY KEY,
	full_name            TEXT NOT NULL,
	work_email           TEXT NOT NULL,
	company_name         TEXT NOT NULL,
	phone                TEXT NOT NULL DEFAULT '',
	dot_number           TEXT NOT NULL DEFAULT '',
	fleet_size           TEXT NOT NULL,
	role                 TEXT NOT NULL,
	pain_points          TEXT NOT NULL DEFAULT '',
	source               TEXT NOT NULL DEFAULT 'direct',
	utm_campaign         TEXT NOT NULL DEFAULT '',
	landing_page_path    TEXT NOT NULL DEFAULT '/',
	verified_status      TEXT NOT NULL DEFAULT 'pending',
	qualification_status TEXT NOT NULL DEFAULT 'Unchecked',
	created_at           DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at           DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS fleet_data (
	dot_number        TEXT PRIMARY KEY,
	company_name      TEXT NOT NULL DEFAULT '',
	total_power_units INTEGER NOT NULL DEFAULT 0,
	safety_rating     TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS fulfillment_runs (
	id         TEXT PRIMARY KEY,
	lead_id    TEXT NOT NULL REFERENCES leads(id),
	status     TEXT NOT NULL DEFAULT 'running',
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS fulfillment_steps (
	id          TEXT PRIMARY KEY,
	run_id      TEXT NOT NULL REFERENCES fulfillment_runs(id),
	name        TEXT NOT NULL,
	status      TEXT NOT NULL,
	error       TEXT NOT NULL DEFAULT '',
	external_id TEXT NOT NULL DEFAULT '',
	duration_ms INTEGER NOT NULL DEFAULT 0,
	started_at  DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_leads_work_email ON leads(work_email);
CREATE INDEX IF NOT EXISTS idx_leads_dot_number ON leads(dot_number);
CREATE INDEX IF NOT EXISTS idx_fulfillment_runs_lead_id ON fulfillment_runs(lead_id);
CREATE INDEX IF NOT EXISTS idx_fulfillment_steps_run_id ON fulfillment_steps(run_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateLead(ctx context.Context, lead *model.Lead) error {
	if lead.ID == "" {
		lead.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	lead.CreatedAt = now
	lead.UpdatedAt = now
	if lead.VerifiedStatus == "" {
		lead.VerifiedStatus = model.VerifyPending
	}
	if lead.QualificationStatus == "" {
		lead.QualificationStatus = model.QualificationUnchecked
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO leads (id, full_name, work_email, company_name, phone, dot_number,
			fleet_size, role, pain_points, source, utm_campaign, landing_page_path,
			verified_status, qualification_status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		lead.ID, lead.FullName, lead.WorkEmail, lead.CompanyName, lead.Phone, lead.DOTNumber,
		string(lead.FleetSize), string(lead.Role), lead.PainPoints, lead.Source,
		lead.UTMCampaign, lead.LandingPagePath,
		string(lead.VerifiedStatus), lead.QualificationStatus, now, now,
	)
	return eris.Wrap(err, "sqlite: insert lead")
}

func (s *SQLiteStore) GetLead(ctx context.Context, id string) (*model.Lead, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+leadColumns+` FROM leads WHERE id = ?`, id)
	lead, err := scanLead(row)
	if err == sql.ErrNoRows {
		return nil, eris.Wrapf(ErrNotFound, "lead %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get lead %s", id)
	}
	return lead, nil
}

func (s *SQLiteStore) ListLeads(ctx context.Context, filter LeadFilter) ([]model.Lead, error) {
	query := `SELECT ` + leadColumns + ` FROM leads WHERE 1=1`
	var args []any

	if filter.VerifiedStatus != "" {
		query += ` AND verified_status = ?`
		args = append(args, string(filter.VerifiedStatus))
	}
	if filter.DOTNumber != "" {
		query += ` AND dot_number = ?`
		args = append(args, filter.DOTNumber)
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list leads")
	}
	defer rows.Close()

	var leads []model.Lead
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan lead")
		}
		leads = append(leads, *lead)
	}
	return leads, eris.Wrap(rows.Err(), "sqlite: list leads iterate")
}

func (s *SQLiteStore) SetVerifiedStatus(ctx context.Context, leadID string, status model.VerifyStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE leads SET verified_status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UTC(), leadID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: set verified status %s", leadID)
	}
	return checkRowsAffected(res, "lead", leadID)
}

func (s *SQLiteStore) GetFleet(ctx context.Context, dotNumber string) (*model.FleetRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT dot_number, company_name, total_power_units, safety_rating FROM fleet_data WHERE dot_number = ?`,
		dotNumber,
	)

	var fr model.FleetRecord
	err := row.Scan(&fr.DOTNumber, &fr.CompanyName, &fr.TotalPowerUnits, &fr.SafetyRating)
	if err == sql.ErrNoRows {
		return nil, eris.Wrapf(ErrNotFound, "fleet %s", dotNumber)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get fleet %s", dotNumber)
	}
	return &fr, nil
}

func (s *SQLiteStore) UpsertFleet(ctx context.Context, records []model.FleetRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin upsert fleet")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO fleet_data (dot_number, company_name, total_power_units, safety_rating)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (dot_number) DO UPDATE SET
			company_name = excluded.company_name,
			total_power_units = excluded.total_power_units,
			safety_rating = excluded.safety_rating`,
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prepare upsert fleet")
	}
	defer stmt.Close()

	count := 0
	for _, r := range records {
		if _, err := stmt.ExecContext(ctx, r.DOTNumber, r.CompanyName, r.TotalPowerUnits, r.SafetyRating); err != nil {
			return 0, eris.Wrapf(err, "sqlite: upsert fleet %s", r.DOTNumber)
		}
		count++
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit upsert fleet")
	}
	return count, nil
}

func (s *SQLiteStore) CreateFulfillmentRun(ctx context.Context, leadID string) (*model.FulfillmentRun, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO fulfillment_runs (id, lead_id, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		id, leadID, string(model.RunStatusRunning), now, now,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: insert run for lead %s", leadID)
	}

	return &model.FulfillmentRun{
		ID:        id,
		LeadID:    leadID,
		Status:    model.RunStatusRunning,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *SQLiteStore) CompleteFulfillmentRun(ctx context.Context, runID string, status model.RunStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE fulfillment_runs SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete run %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) RecordStep(ctx context.Context, runID string, step *model.StepResult) error {
	if step.ID == "" {
		step.ID = uuid.New().String()
	}
	step.RunID = runID
	if step.StartedAt.IsZero() {
		step.StartedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO fulfillment_steps (id, run_id, name, status, error, external_id, duration_ms, started_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		step.ID, runID, string(step.Name), string(step.Status), step.Error,
		step.ExternalID, step.DurationMS, step.StartedAt,
	)
	return eris.Wrapf(err, "sqlite: record step %s for run %s", step.Name, runID)
}

func (s *SQLiteStore) GetFulfillmentRun(ctx context.Context, runID string) (*model.FulfillmentRun, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, lead_id, status, created_at, updated_at FROM fulfillment_runs WHERE id = ?`,
		runID,
	)

	var run model.FulfillmentRun
	var status string
	err := row.Scan(&run.ID, &run.LeadID, &status, &run.CreatedAt, &run.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, eris.Wrapf(ErrNotFound, "run %s", runID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get run %s", runID)
	}
	run.Status = model.RunStatus(status)

	steps, err := s.stepsForRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	run.Steps = steps
	return &run, nil
}

func (s *SQLiteStore) ListFulfillmentRuns(ctx context.Context, leadID string) ([]model.FulfillmentRun, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, lead_id, status, created_at, updated_at FROM fulfillment_runs
		 WHERE lead_id = ? ORDER BY created_at DESC`,
		leadID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list runs for lead %s", leadID)
	}
	defer rows.Close()

	var runs []model.FulfillmentRun
	for rows.Next() {
		var run model.FulfillmentRun
		var status string
		if err := rows.Scan(&run.ID, &run.LeadID, &status, &run.CreatedAt, &run.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run")
		}
		run.Status = model.RunStatus(status)
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs iterate")
	}

	for i := range runs {
		steps, err := s.stepsForRun(ctx, runs[i].ID)
		if err != nil {
			return nil, err
		}
		runs[i].Steps = steps
	}
	return runs, nil
}

func (s *SQLiteStore) stepsForRun(ctx context.Context, runID string) ([]model.StepResult, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, run_id, name, status, error, external_id, duration_ms, started_at
		 FROM fulfillment_steps WHERE run_id = ? ORDER BY started_at ASC`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: steps for run %s", runID)
	}
	defer rows.Close()

	var steps []model.StepResult
	for rows.Next() {
		var step model.StepResult
		var name, status string
		if err := rows.Scan(&step.ID, &step.RunID, &name, &status, &step.Error,
			&step.ExternalID, &step.DurationMS, &step.StartedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan step")
		}
		step.Name = model.StepName(name)
		step.Status = model.StepStatus(status)
		steps = append(steps, step)
	}
	return steps, eris.Wrap(rows.Err(), "sqlite: steps iterate")
}

const leadColumns = `id, full_name, work_email, company_name, phone, dot_number,
	fleet_size, role, pain_points, source, utm_campaign, landing_page_path,
	verified_status, qualification_status, created_at, updated_at`

// scanner abstracts *sql.Row and *sql.Rows for shared scan logic.
type scanner interface {
	Scan(dest ...any) error
}

func scanLead(row scanner) (*model.Lead, error) {
	var lead model.Lead
	var fleetSize, role, verified string
	err := row.Scan(&lead.ID, &lead.FullName, &lead.WorkEmail, &lead.CompanyName,
		&lead.Phone, &lead.DOTNumber, &fleetSize, &role, &lead.PainPoints,
		&lead.Source, &lead.UTMCampaign, &lead.LandingPagePath,
		&verified, &lead.QualificationStatus, &lead.CreatedAt, &lead.UpdatedAt)
	if err != nil {
		return nil, err
	}
	lead.FleetSize = model.FleetSize(fleetSize)
	lead.Role = model.Role(role)
	lead.VerifiedStatus = model.VerifyStatus(verified)
	return &lead, nil
}

func checkRowsAffected(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrapf(err, "sqlite: rows affected for %s %s", kind, id)
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "%s %s", kind, id)
	}
	return nil
}
