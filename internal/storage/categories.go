package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/beleghq/beleg/internal/common"
	"github.com/beleghq/beleg/internal/model"
)

// SaveCategory inserts or updates a category.
func (s *SQLiteStorage) SaveCategory(ctx context.Context, category *model.Category) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateCategory(category); err != nil {
		return err
	}

	learned, err := toJSON(category.LearnedPatterns)
	if err != nil {
		return err
	}
	removals, err := toJSON(category.ManualRemovals)
	if err != nil {
		return err
	}
	partnerIDs, err := toJSON(category.MatchedPartnerIDs)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO categories (
			id, name, description, learned_patterns, manual_removals, matched_partner_ids
		) VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			learned_patterns = excluded.learned_patterns,
			manual_removals = excluded.manual_removals,
			matched_partner_ids = excluded.matched_partner_ids
	`, category.ID, category.Name, category.Description, learned, removals, partnerIDs)
	if err != nil {
		return fmt.Errorf("failed to save category: %w", err)
	}
	return nil
}

// GetCategory loads one category by ID.
func (s *SQLiteStorage) GetCategory(ctx context.Context, id string) (*model.Category, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, COALESCE(description, ''),
			COALESCE(learned_patterns, '[]'), COALESCE(manual_removals, '[]'),
			COALESCE(matched_partner_ids, '[]')
		FROM categories WHERE id = ?
	`, id)
	return scanCategory(row)
}

func scanCategory(row rowScanner) (*model.Category, error) {
	var c model.Category
	var learned, removals, partnerIDs string
	err := row.Scan(&c.ID, &c.Name, &c.Description, &learned, &removals, &partnerIDs)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan category: %w", err)
	}
	for _, col := range []struct {
		dest any
		raw  string
	}{
		{&c.LearnedPatterns, learned},
		{&c.ManualRemovals, removals},
		{&c.MatchedPartnerIDs, partnerIDs},
	} {
		if err := fromJSON(col.raw, col.dest); err != nil {
			return nil, err
		}
	}
	return &c, nil
}

// GetAllCategories returns every category.
func (s *SQLiteStorage) GetAllCategories(ctx context.Context) ([]model.Category, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, COALESCE(description, ''),
			COALESCE(learned_patterns, '[]'), COALESCE(manual_removals, '[]'),
			COALESCE(matched_partner_ids, '[]')
		FROM categories ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query categories: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []model.Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}
