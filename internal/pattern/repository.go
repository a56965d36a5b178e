/**
 * Rule repository abstraction.
 *
 * The correction store only ever loads whole rule sets and appends new rows,
 * so the persistence medium stays swappable between flat CSV files (the
 * operator-curated default) and PostgreSQL.
 */

package pattern

import "context"

// Repository loads and appends rule collections.
type Repository interface {
	// Load reads the complete rule set. Malformed rows are skipped with a
	// warning; Load fails only when a source is structurally unreadable.
	Load(ctx context.Context) (*RuleSet, error)

	// AppendCorrections persists new correction rules. IDs are assigned by
	// the caller; existing rows are never modified.
	AppendCorrections(ctx context.Context, rules []CorrectionRule) error

	// AppendProfile persists a newly discovered document type profile.
	AppendProfile(ctx context.Context, profile DocumentTypeProfile) error
}
