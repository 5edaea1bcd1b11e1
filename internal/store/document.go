// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package store provides database access for generated-document records.
package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"leasedocs/internal/models"
)

// DocumentStore handles generated-document bookkeeping rows.
type DocumentStore struct {
	db *sql.DB
}

// NewDocumentStore creates a DocumentStore with the given database connection.
func NewDocumentStore(db *sql.DB) *DocumentStore {
	return &DocumentStore{db: db}
}

// documentColumns lists the columns selected in document queries.
const documentColumns = `id, entity_id, kind, region, path, public_url, size_bytes, created_at`

// scanDocument scans a document row from the result set.
func scanDocument(scanner interface{ Scan(...any) error }) (*models.Document, error) {
	var d models.Document
	err := scanner.Scan(
		&d.ID, &d.EntityID, &d.Kind, &d.Region,
		&d.Path, &d.PublicURL, &d.SizeBytes, &d.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// Create inserts a new document record.
func (s *DocumentStore) Create(ctx context.Context, d *models.Document) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO generated_documents (id, entity_id, kind, region, path, public_url, size_bytes)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at`,
		d.ID, d.EntityID, d.Kind, d.Region, d.Path, d.PublicURL, d.SizeBytes,
	).Scan(&d.CreatedAt)
	if err != nil {
		return fmt.Errorf("create document record: %w", err)
	}
	return nil
}

// FindLatestByEntity returns the newest document record for an entity,
// or nil when none exists.
func (s *DocumentStore) FindLatestByEntity(ctx context.Context, entityID string) (*models.Document, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+documentColumns+`
		FROM generated_documents
		WHERE entity_id = $1
		ORDER BY created_at DESC
		LIMIT 1`, entityID)
	d, err := scanDocument(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find latest document for %s: %w", entityID, err)
	}
	return d, nil
}

// ListByEntity returns every document record for an entity, newest first.
func (s *DocumentStore) ListByEntity(ctx context.Context, entityID string) ([]models.Document, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+documentColumns+`
		FROM generated_documents
		WHERE entity_id = $1
		ORDER BY created_at DESC`, entityID)
	if err != nil {
		return nil, fmt.Errorf("list documents for %s: %w", entityID, err)
	}
	defer rows.Close()

	var docs []models.Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document row: %w", err)
		}
		docs = append(docs, *d)
	}
	return docs, rows.Err()
}

// DeleteByEntity removes every document record for an entity. Returns
// the number of rows removed.
func (s *DocumentStore) DeleteByEntity(ctx context.Context, entityID string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM generated_documents WHERE entity_id = $1`, entityID)
	if err != nil {
		return 0, fmt.Errorf("delete documents for %s: %w", entityID, err)
	}
	return res.RowsAffected()
}
