package database

import (
	"context"
	"database/sql"
	"fmt"
)

// schemaStatements creates the readmission tables; every statement is idempotent
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS patients (
		id  BIGINT PRIMARY KEY,
		age INTEGER NOT NULL CHECK (age >= 0)
	)`,
	`CREATE TABLE IF NOT EXISTS admissions (
		id             BIGSERIAL PRIMARY KEY,
		patient_id     BIGINT NOT NULL REFERENCES patients(id),
		date_admission DATE NOT NULL,
		date_discharge DATE
	)`,
	`CREATE TABLE IF NOT EXISTS measurements (
		id           BIGSERIAL PRIMARY KEY,
		patient_id   BIGINT NOT NULL REFERENCES patients(id),
		type         TEXT NOT NULL,
		value        DOUBLE PRECISION NOT NULL CHECK (value >= 0),
		time_created TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_measurements_patient_type_time
		ON measurements (patient_id, type, time_created DESC)`,
	`CREATE TABLE IF NOT EXISTS readmission_predictions (
		id           BIGSERIAL PRIMARY KEY,
		patient_id   BIGINT NOT NULL REFERENCES patients(id),
		time_created TIMESTAMPTZ NOT NULL,
		probability  DOUBLE PRECISION NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_readmission_predictions_patient_time
		ON readmission_predictions (patient_id, time_created DESC)`,
}

// EnsureSchema creates missing tables and indexes in a single transaction
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin schema transaction: %w", err)
	}
	defer tx.Rollback()

	for i, stmt := range schemaStatements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema statement %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit schema: %w", err)
	}
	return nil
}
