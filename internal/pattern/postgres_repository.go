/**
 * PostgreSQL-backed rule repository.
 *
 * Alternative to the CSV files when the rules live next to the task table.
 * Schema mirrors the CSV columns one-to-one; see migrations in the API
 * service.
 */

package pattern

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/lib/pq"

	"github.com/asepsafrudin/hybrid-ocr/internal/logging"
)

// PostgresRepository reads and appends rules in PostgreSQL tables.
type PostgresRepository struct {
	db  *sql.DB
	log *logging.Logger
}

func NewPostgresRepository(databaseURL string, logger *logging.Logger) (*PostgresRepository, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("database URL is required")
	}
	if logger == nil {
		logger = logging.New("pattern-postgres")
	}

	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open rule database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping rule database: %w", err)
	}

	return &PostgresRepository{db: db, log: logger}, nil
}

func (r *PostgresRepository) Close() error { return r.db.Close() }

func (r *PostgresRepository) Load(ctx context.Context) (*RuleSet, error) {
	set := &RuleSet{}

	corrections, err := r.loadCorrections(ctx)
	if err != nil {
		return nil, err
	}
	set.Corrections = corrections

	contextRules, err := r.loadContextRules(ctx)
	if err != nil {
		return nil, err
	}
	set.ContextRules = contextRules

	profiles, err := r.loadProfiles(ctx)
	if err != nil {
		return nil, err
	}
	set.Profiles = profiles

	return set, nil
}

func (r *PostgresRepository) loadCorrections(ctx context.Context) ([]CorrectionRule, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT pattern_id, wrong_text, correct_text, context_type, category,
		       priority, confidence_boost, enabled, language, COALESCE(notes, '')
		FROM correction_rules
		ORDER BY pattern_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query correction rules: %w", err)
	}
	defer rows.Close()

	var rules []CorrectionRule
	for rows.Next() {
		var rule CorrectionRule
		if err := rows.Scan(&rule.ID, &rule.WrongText, &rule.CorrectText,
			&rule.ContextType, &rule.Category, &rule.Priority,
			&rule.ConfidenceBoost, &rule.Enabled, &rule.Language, &rule.Notes); err != nil {
			r.log.Warn("skipping unreadable correction rule row", logging.Fields{"error": err})
			continue
		}
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}

func (r *PostgresRepository) loadContextRules(ctx context.Context) ([]ContextRule, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT rule_id, rule_name, trigger_pattern, action_type,
		       COALESCE(action_value, ''), priority, enabled
		FROM context_rules
		ORDER BY rule_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query context rules: %w", err)
	}
	defer rows.Close()

	var rules []ContextRule
	for rows.Next() {
		var rule ContextRule
		if err := rows.Scan(&rule.ID, &rule.Name, &rule.Pattern, &rule.Action,
			&rule.ActionValue, &rule.Priority, &rule.Enabled); err != nil {
			r.log.Warn("skipping unreadable context rule row", logging.Fields{"error": err})
			continue
		}
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}

func (r *PostgresRepository) loadProfiles(ctx context.Context) ([]DocumentTypeProfile, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT document_type, keywords, priority, enabled
		FROM document_types
		ORDER BY document_type`)
	if err != nil {
		return nil, fmt.Errorf("failed to query document types: %w", err)
	}
	defer rows.Close()

	var profiles []DocumentTypeProfile
	for rows.Next() {
		var profile DocumentTypeProfile
		var keywords string
		if err := rows.Scan(&profile.Name, &keywords, &profile.Priority, &profile.Enabled); err != nil {
			r.log.Warn("skipping unreadable document type row", logging.Fields{"error": err})
			continue
		}
		profile.Keywords = splitKeywords(keywords)
		profiles = append(profiles, profile)
	}
	return profiles, rows.Err()
}

func (r *PostgresRepository) AppendCorrections(ctx context.Context, rules []CorrectionRule) error {
	if len(rules) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin rule append: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO correction_rules
			(pattern_id, wrong_text, correct_text, context_type, category,
			 priority, confidence_boost, enabled, language, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (wrong_text, correct_text) DO NOTHING`)
	if err != nil {
		return fmt.Errorf("failed to prepare rule insert: %w", err)
	}
	defer stmt.Close()

	for _, rule := range rules {
		if _, err := stmt.ExecContext(ctx, rule.ID, rule.WrongText, rule.CorrectText,
			rule.ContextType, rule.Category, rule.Priority, rule.ConfidenceBoost,
			rule.Enabled, rule.Language, rule.Notes); err != nil {
			return fmt.Errorf("failed to insert rule %d: %w", rule.ID, err)
		}
	}

	return tx.Commit()
}

func (r *PostgresRepository) AppendProfile(ctx context.Context, profile DocumentTypeProfile) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO document_types (document_type, keywords, priority, enabled)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (document_type) DO NOTHING`,
		profile.Name, strings.Join(profile.Keywords, ";"), profile.Priority, profile.Enabled)
	if err != nil {
		return fmt.Errorf("failed to insert document type %s: %w", profile.Name, err)
	}
	return nil
}
