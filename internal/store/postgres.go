package store

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/fleetaudit/internal/model"
)

// Pool is the subset of pgxpool.Pool used by the store. It is satisfied by
// both *pgxpool.Pool and pgxmock's pool for unit tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool Pool
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	pgxCfg.MaxConns = 10
	pgxCfg.MinConns = 2
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}

	return &PostgresStore{pool: pool}, nil
}

const postgresMigration = `
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
	created_at           TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at           TIMESTAMPTZ NOT NULL DEFAULT now()
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
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS fulfillment_steps (
	id          TEXT PRIMARY KEY,
	run_id      TEXT NOT NULL REFERENCES fulfillment_runs(id),
	name        TEXT NOT NULL,
	status      TEXT NOT NULL,
	error       TEXT NOT NULL DEFAULT '',
	external_id TEXT NOT NULL DEFAULT '',
	duration_ms BIGINT NOT NULL DEFAULT 0,
	started_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_leads_work_email ON leads(work_email);
CREATE INDEX IF NOT EXISTS idx_leads_dot_number ON leads(dot_number);
CREATE INDEX IF NOT EXISTS idx_fulfillment_runs_lead_id ON fulfillment_runs(lead_id);
CREATE INDEX IF NOT EXISTS idx_fulfillment_steps_run_id ON fulfillment_steps(run_id);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) CreateLead(ctx context.Context, lead *model.Lead) error {
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

	_, err := s.pool.Exec(ctx,
		`INSERT INTO leads (id, full_name, work_email, company_name, phone, dot_number,
			fleet_size, role, pain_points, source, utm_campaign, landing_page_path,
			verified_status, qualification_status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		lead.ID, lead.FullName, lead.WorkEmail, lead.CompanyName, lead.Phone, lead.DOTNumber,
		string(lead.FleetSize), string(lead.Role), lead.PainPoints, lead.Source,
		lead.UTMCampaign, lead.LandingPagePath,
		string(lead.VerifiedStatus), lead.QualificationStatus, now, now,
	)
	return eris.Wrap(err, "postgres: insert lead")
}

func (s *PostgresStore) GetLead(ctx context.Context, id string) (*model.Lead, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+leadColumns+` FROM leads WHERE id = $1`, id)
	lead, err := scanLead(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "lead %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get lead %s", id)
	}
	return lead, nil
}

func (s *PostgresStore) ListLeads(ctx context.Context, filter LeadFilter) ([]model.Lead, error) {
	query := `SELECT ` + leadColumns + ` FROM leads WHERE 1=1`
	var args []any

	if filter.VerifiedStatus != "" {
		args = append(args, string(filter.VerifiedStatus))
		query += ` AND verified_status = $1`
	}
	if filter.DOTNumber != "" {
		args = append(args, filter.DOTNumber)
		query += ` AND dot_number = $` + strconv.Itoa(len(args))
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)
	query += ` LIMIT $` + strconv.Itoa(len(args))

	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += ` OFFSET $` + strconv.Itoa(len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list leads")
	}
	defer rows.Close()

	var leads []model.Lead
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan lead")
		}
		leads = append(leads, *lead)
	}
	return leads, eris.Wrap(rows.Err(), "postgres: list leads iterate")
}

func (s *PostgresStore) SetVerifiedStatus(ctx context.Context, leadID string, status model.VerifyStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE leads SET verified_status = $1, updated_at = $2 WHERE id = $3`,
		string(status), time.Now().UTC(), leadID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: set verified status %s", leadID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "lead %s", leadID)
	}
	return nil
}

func (s *PostgresStore) GetFleet(ctx context.Context, dotNumber string) (*model.FleetRecord, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT dot_number, company_name, total_power_units, safety_rating FROM fleet_data WHERE dot_number = $1`,
		dotNumber,
	)

	var fr model.FleetRecord
	err := row.Scan(&fr.DOTNumber, &fr.CompanyName, &fr.TotalPowerUnits, &fr.SafetyRating)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "fleet %s", dotNumber)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get fleet %s", dotNumber)
	}
	return &fr, nil
}

func (s *PostgresStore) UpsertFleet(ctx context.Context, records []model.FleetRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: begin upsert fleet")
	}
	defer tx.Rollback(ctx)

	count := 0
	for _, r := range records {
		_, err := tx.Exec(ctx,
			`INSERT INTO fleet_data (dot_number, company_name, total_power_units, safety_rating)
			 VALUES ($1, $2, $3, $4)
			 ON CONFLICT (dot_number) DO UPDATE SET
				company_name = EXCLUDED.company_name,
				total_power_units = EXCLUDED.total_power_units,
				safety_rating = EXCLUDED.safety_rating`,
			r.DOTNumber, r.CompanyName, r.TotalPowerUnits, r.SafetyRating,
		)
		if err != nil {
			return 0, eris.Wrapf(err, "postgres: upsert fleet %s", r.DOTNumber)
		}
		count++
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrap(err, "postgres: commit upsert fleet")
	}
	return count, nil
}

func (s *PostgresStore) CreateFulfillmentRun(ctx context.Context, leadID string) (*model.FulfillmentRun, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO fulfillment_runs (id, lead_id, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)`,
		id, leadID, string(model.RunStatusRunning), now, now,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: insert run for lead %s", leadID)
	}

	return &model.FulfillmentRun{
		ID:        id,
		LeadID:    leadID,
		Status:    model.RunStatusRunning,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *PostgresStore) CompleteFulfillmentRun(ctx context.Context, runID string, status model.RunStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE fulfillment_runs SET status = $1, updated_at = $2 WHERE id = $3`,
		string(status), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: complete run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "run %s", runID)
	}
	return nil
}

func (s *PostgresStore) RecordStep(ctx context.Context, runID string, step *model.StepResult) error {
	if step.ID == "" {
		step.ID = uuid.New().String()
	}
	step.RunID = runID
	if step.StartedAt.IsZero() {
		step.StartedAt = time.Now().UTC()
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO fulfillment_steps (id, run_id, name, status, error, external_id, duration_ms, started_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		step.ID, runID, string(step.Name), string(step.Status), step.Error,
		step.ExternalID, step.DurationMS, step.StartedAt,
	)
	return eris.Wrapf(err, "postgres: record step %s for run %s", step.Name, runID)
}

func (s *PostgresStore) GetFulfillmentRun(ctx context.Context, runID string) (*model.FulfillmentRun, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, lead_id, status, created_at, updated_at FROM fulfillment_runs WHERE id = $1`,
		runID,
	)

	var run model.FulfillmentRun
	var status string
	err := row.Scan(&run.ID, &run.LeadID, &status, &run.CreatedAt, &run.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "run %s", runID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get run %s", runID)
	}
	run.Status = model.RunStatus(status)

	steps, err := s.stepsForRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	run.Steps = steps
	return &run, nil
}

func (s *PostgresStore) ListFulfillmentRuns(ctx context.Context, leadID string) ([]model.FulfillmentRun, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, lead_id, status, created_at, updated_at FROM fulfillment_runs
		 WHERE lead_id = $1 ORDER BY created_at DESC`,
		leadID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list runs for lead %s", leadID)
	}
	defer rows.Close()

	var runs []model.FulfillmentRun
	for rows.Next() {
		var run model.FulfillmentRun
		var status string
		if err := rows.Scan(&run.ID, &run.LeadID, &status, &run.CreatedAt, &run.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		run.Status = model.RunStatus(status)
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: list runs iterate")
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

func (s *PostgresStore) stepsForRun(ctx context.Context, runID string) ([]model.StepResult, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, run_id, name, status, error, external_id, duration_ms, started_at
		 FROM fulfillment_steps WHERE run_id = $1 ORDER BY started_at ASC`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: steps for run %s", runID)
	}
	defer rows.Close()

	var steps []model.StepResult
	for rows.Next() {
		var step model.StepResult
		var name, status string
		if err := rows.Scan(&step.ID, &step.RunID, &name, &status, &step.Error,
			&step.ExternalID, &step.DurationMS, &step.StartedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan step")
		}
		step.Name = model.StepName(name)
		step.Status = model.StepStatus(status)
		steps = append(steps, step)
	}
	return steps, eris.Wrap(rows.Err(), "postgres: steps iterate")
}
