/**
 * CSV-backed rule repository.
 *
 * Three operator-curated files in one directory:
 *   ocr_patterns.csv    correction rules
 *   context_rules.csv   regex context rules
 *   document_types.csv  keyword profiles
 *
 * Appends use read-modify-write of the whole file so the on-disk format
 * stays a plain spreadsheet operators can edit by hand.
 */

package pattern

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/asepsafrudin/hybrid-ocr/internal/logging"
)

const (
	correctionsFile  = "ocr_patterns.csv"
	contextRulesFile = "context_rules.csv"
	profilesFile     = "document_types.csv"
)

var correctionsHeader = []string{
	"pattern_id", "wrong_text", "correct_text", "context_type", "category",
	"priority", "confidence_boost", "enabled", "language", "notes",
}

var contextRulesHeader = []string{
	"rule_id", "rule_name", "trigger_pattern", "action_type", "action_value",
	"priority", "enabled",
}

var profilesHeader = []string{"document_type", "keywords", "priority", "enabled"}

// CSVRepository reads and appends rules in flat CSV files under dir.
type CSVRepository struct {
	dir string
	log *logging.Logger
}

func NewCSVRepository(dir string, logger *logging.Logger) (*CSVRepository, error) {
	if dir == "" {
		return nil, fmt.Errorf("pattern directory is required")
	}
	if logger == nil {
		logger = logging.New("pattern-csv")
	}
	return &CSVRepository{dir: dir, log: logger}, nil
}

// Load reads all three files. A missing file yields an empty collection, a
// malformed row is skipped with a warning.
func (r *CSVRepository) Load(ctx context.Context) (*RuleSet, error) {
	set := &RuleSet{}

	corrections, err := r.loadCorrections()
	if err != nil {
		return nil, err
	}
	set.Corrections = corrections

	contextRules, err := r.loadContextRules()
	if err != nil {
		return nil, err
	}
	set.ContextRules = contextRules

	profiles, err := r.loadProfiles()
	if err != nil {
		return nil, err
	}
	set.Profiles = profiles

	return set, nil
}

func (r *CSVRepository) loadCorrections() ([]CorrectionRule, error) {
	rows, cols, err := r.readFile(correctionsFile)
	if err != nil || rows == nil {
		return nil, err
	}

	rules := make([]CorrectionRule, 0, len(rows))
	for i, row := range rows {
		rule, err := parseCorrectionRow(row, cols)
		if err != nil {
			r.log.Warn("skipping malformed correction rule", logging.Fields{
				"file": correctionsFile, "row": i + 2, "error": err,
			})
			continue
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

func (r *CSVRepository) loadContextRules() ([]ContextRule, error) {
	rows, cols, err := r.readFile(contextRulesFile)
	if err != nil || rows == nil {
		return nil, err
	}

	rules := make([]ContextRule, 0, len(rows))
	for i, row := range rows {
		rule, err := parseContextRow(row, cols)
		if err != nil {
			r.log.Warn("skipping malformed context rule", logging.Fields{
				"file": contextRulesFile, "row": i + 2, "error": err,
			})
			continue
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

func (r *CSVRepository) loadProfiles() ([]DocumentTypeProfile, error) {
	rows, cols, err := r.readFile(profilesFile)
	if err != nil || rows == nil {
		return nil, err
	}

	profiles := make([]DocumentTypeProfile, 0, len(rows))
	for i, row := range rows {
		profile, err := parseProfileRow(row, cols)
		if err != nil {
			r.log.Warn("skipping malformed document type profile", logging.Fields{
				"file": profilesFile, "row": i + 2, "error": err,
			})
			continue
		}
		profiles = append(profiles, profile)
	}
	return profiles, nil
}

// readFile returns data rows and a header index map, or (nil, nil, nil) when
// the file does not exist.
func (r *CSVRepository) readFile(name string) ([][]string, map[string]int, error) {
	path := filepath.Join(r.dir, name)
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, nil
		}
		return nil, nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, nil, nil
	}

	cols := make(map[string]int, len(records[0]))
	for i, name := range records[0] {
		cols[strings.TrimSpace(strings.ToLower(name))] = i
	}
	return records[1:], cols, nil
}

func field(row []string, cols map[string]int, name string) (string, error) {
	idx, ok := cols[name]
	if !ok || idx >= len(row) {
		return "", fmt.Errorf("missing field %s", name)
	}
	return strings.TrimSpace(row[idx]), nil
}

func optionalField(row []string, cols map[string]int, name string) string {
	v, err := field(row, cols, name)
	if err != nil {
		return ""
	}
	return v
}

func parseBool(v string) bool {
	switch strings.ToLower(v) {
	case "true", "1", "yes", "y":
		return true
	}
	return false
}

func parseCorrectionRow(row []string, cols map[string]int) (CorrectionRule, error) {
	var rule CorrectionRule

	idStr, err := field(row, cols, "pattern_id")
	if err != nil {
		return rule, err
	}
	id, err := strconv.Atoi(idStr)
	if err != nil {
		return rule, fmt.Errorf("invalid pattern_id %q: %w", idStr, err)
	}

	wrong, err := field(row, cols, "wrong_text")
	if err != nil {
		return rule, err
	}
	if wrong == "" {
		return rule, fmt.Errorf("empty wrong_text")
	}
	correct, err := field(row, cols, "correct_text")
	if err != nil {
		return rule, err
	}

	priorityStr, err := field(row, cols, "priority")
	if err != nil {
		return rule, err
	}
	priority, err := strconv.Atoi(priorityStr)
	if err != nil {
		return rule, fmt.Errorf("invalid priority %q: %w", priorityStr, err)
	}

	boost := 0.0
	if boostStr := optionalField(row, cols, "confidence_boost"); boostStr != "" {
		boost, err = strconv.ParseFloat(boostStr, 64)
		if err != nil {
			return rule, fmt.Errorf("invalid confidence_boost %q: %w", boostStr, err)
		}
	}

	contextType := optionalField(row, cols, "context_type")
	if contextType == "" {
		contextType = ContextAny
	}

	rule = CorrectionRule{
		ID:              id,
		WrongText:       wrong,
		CorrectText:     correct,
		ContextType:     contextType,
		Category:        optionalField(row, cols, "category"),
		Priority:        priority,
		ConfidenceBoost: boost,
		Enabled:         parseBool(optionalField(row, cols, "enabled")),
		Language:        optionalField(row, cols, "language"),
		Notes:           optionalField(row, cols, "notes"),
	}
	return rule, nil
}

func parseContextRow(row []string, cols map[string]int) (ContextRule, error) {
	var rule ContextRule

	idStr, err := field(row, cols, "rule_id")
	if err != nil {
		return rule, err
	}
	id, err := strconv.Atoi(idStr)
	if err != nil {
		return rule, fmt.Errorf("invalid rule_id %q: %w", idStr, err)
	}

	pattern, err := field(row, cols, "trigger_pattern")
	if err != nil {
		return rule, err
	}
	if pattern == "" {
		return rule, fmt.Errorf("empty trigger_pattern")
	}

	priorityStr, err := field(row, cols, "priority")
	if err != nil {
		return rule, err
	}
	priority, err := strconv.Atoi(priorityStr)
	if err != nil {
		return rule, fmt.Errorf("invalid priority %q: %w", priorityStr, err)
	}

	rule = ContextRule{
		ID:          id,
		Name:        optionalField(row, cols, "rule_name"),
		Pattern:     pattern,
		Action:      optionalField(row, cols, "action_type"),
		ActionValue: optionalField(row, cols, "action_value"),
		Priority:    priority,
		Enabled:     parseBool(optionalField(row, cols, "enabled")),
	}
	return rule, nil
}

func parseProfileRow(row []string, cols map[string]int) (DocumentTypeProfile, error) {
	var profile DocumentTypeProfile

	name, err := field(row, cols, "document_type")
	if err != nil {
		return profile, err
	}
	if name == "" {
		return profile, fmt.Errorf("empty document_type")
	}

	keywordsRaw, err := field(row, cols, "keywords")
	if err != nil {
		return profile, err
	}
	keywords := splitKeywords(keywordsRaw)
	if len(keywords) == 0 {
		return profile, fmt.Errorf("empty keywords")
	}

	priority := 0
	if priorityStr := optionalField(row, cols, "priority"); priorityStr != "" {
		priority, err = strconv.Atoi(priorityStr)
		if err != nil {
			return profile, fmt.Errorf("invalid priority %q: %w", priorityStr, err)
		}
	}

	profile = DocumentTypeProfile{
		Name:     name,
		Keywords: keywords,
		Priority: priority,
		Enabled:  parseBool(optionalField(row, cols, "enabled")),
	}
	return profile, nil
}

func splitKeywords(raw string) []string {
	parts := strings.Split(raw, ";")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if kw := strings.TrimSpace(p); kw != "" {
			out = append(out, kw)
		}
	}
	return out
}

// AppendCorrections rewrites ocr_patterns.csv with the new rows added.
func (r *CSVRepository) AppendCorrections(ctx context.Context, rules []CorrectionRule) error {
	if len(rules) == 0 {
		return nil
	}

	path := filepath.Join(r.dir, correctionsFile)
	records, err := r.existingRecords(path, correctionsHeader)
	if err != nil {
		return err
	}

	for _, rule := range rules {
		records = append(records, []string{
			strconv.Itoa(rule.ID),
			rule.WrongText,
			rule.CorrectText,
			rule.ContextType,
			rule.Category,
			strconv.Itoa(rule.Priority),
			strconv.FormatFloat(rule.ConfidenceBoost, 'g', -1, 64),
			strconv.FormatBool(rule.Enabled),
			rule.Language,
			rule.Notes,
		})
	}

	return r.writeFile(path, records)
}

// AppendProfile rewrites document_types.csv with the new profile added.
func (r *CSVRepository) AppendProfile(ctx context.Context, profile DocumentTypeProfile) error {
	path := filepath.Join(r.dir, profilesFile)
	records, err := r.existingRecords(path, profilesHeader)
	if err != nil {
		return err
	}

	records = append(records, []string{
		profile.Name,
		strings.Join(profile.Keywords, ";"),
		strconv.Itoa(profile.Priority),
		strconv.FormatBool(profile.Enabled),
	})

	return r.writeFile(path, records)
}

func (r *CSVRepository) existingRecords(path string, header []string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return [][]string{header}, nil
		}
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if len(records) == 0 {
		return [][]string{header}, nil
	}
	return records, nil
}

// writeFile replaces the file contents atomically via a temp file rename.
func (r *CSVRepository) writeFile(path string, records [][]string) error {
	tmp, err := os.CreateTemp(r.dir, ".rules-*.csv")
	if err != nil {
		return fmt.Errorf("failed to create temp rule file: %w", err)
	}
	tmpPath := tmp.Name()

	writer := csv.NewWriter(tmp)
	if err := writer.WriteAll(records); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to flush %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close temp rule file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}
