package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/beleghq/beleg/internal/common"
	"github.com/beleghq/beleg/internal/model"
)

// SavePartner inserts or updates a partner.
func (s *SQLiteStorage) SavePartner(ctx context.Context, partner *model.Partner) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validatePartner(partner); err != nil {
		return err
	}

	aliases, err := toJSON(partner.Aliases)
	if err != nil {
		return err
	}
	ibans, err := toJSON(partner.IBANs)
	if err != nil {
		return err
	}
	learned, err := toJSON(partner.LearnedPatterns)
	if err != nil {
		return err
	}
	filePatterns, err := toJSON(partner.FileSourcePatterns)
	if err != nil {
		return err
	}
	removals, err := toJSON(partner.ManualRemovals)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO partners (
			id, type, name, vat_id, website, aliases, ibans,
			learned_patterns, file_source_patterns, manual_removals
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			type = excluded.type,
			name = excluded.name,
			vat_id = excluded.vat_id,
			website = excluded.website,
			aliases = excluded.aliases,
			ibans = excluded.ibans,
			learned_patterns = excluded.learned_patterns,
			file_source_patterns = excluded.file_source_patterns,
			manual_removals = excluded.manual_removals
	`,
		partner.ID, string(partner.Type), partner.Name, partner.VATID,
		partner.Website, aliases, ibans, learned, filePatterns, removals,
	)
	if err != nil {
		return fmt.Errorf("failed to save partner: %w", err)
	}
	return nil
}

// GetPartner loads one partner by ID.
func (s *SQLiteStorage) GetPartner(ctx context.Context, id string) (*model.Partner, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT id, type, name, COALESCE(vat_id, ''), COALESCE(website, ''),
			COALESCE(aliases, '[]'), COALESCE(ibans, '[]'),
			COALESCE(learned_patterns, '[]'),
			COALESCE(file_source_patterns, '[]'),
			COALESCE(manual_removals, '[]')
		FROM partners WHERE id = ?
	`, id)
	return scanPartner(row)
}

func scanPartner(row rowScanner) (*model.Partner, error) {
	var p model.Partner
	var pType, aliases, ibans, learned, filePatterns, removals string
	err := row.Scan(&p.ID, &pType, &p.Name, &p.VATID, &p.Website,
		&aliases, &ibans, &learned, &filePatterns, &removals)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan partner: %w", err)
	}
	p.Type = model.PartnerType(pType)
	for _, col := range []struct {
		dest any
		raw  string
	}{
		{&p.Aliases, aliases},
		{&p.IBANs, ibans},
		{&p.LearnedPatterns, learned},
		{&p.FileSourcePatterns, filePatterns},
		{&p.ManualRemovals, removals},
	} {
		if err := fromJSON(col.raw, col.dest); err != nil {
			return nil, err
		}
	}
	return &p, nil
}

// GetAllPartners returns every partner visible to the tenant.
func (s *SQLiteStorage) GetAllPartners(ctx context.Context) ([]model.Partner, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, type, name, COALESCE(vat_id, ''), COALESCE(website, ''),
			COALESCE(aliases, '[]'), COALESCE(ibans, '[]'),
			COALESCE(learned_patterns, '[]'),
			COALESCE(file_source_patterns, '[]'),
			COALESCE(manual_removals, '[]')
		FROM partners ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query partners: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []model.Partner
	for rows.Next() {
		p, err := scanPartner(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}
