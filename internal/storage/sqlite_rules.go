package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/good-yellow-bee/buildpulse/internal/models"
)

type sqliteRuleRepo struct {
	db *sql.DB
}

const ruleColumns = `id, name, description, condition_json, channels_json, severity,
	message_template, cooldown_minutes, enabled, created_at, updated_at`

func (r *sqliteRuleRepo) Create(ctx context.Context, rule *models.AlertRule) (err error) {
	defer observeQuery("rules.create")(&err)

	conditionJSON, err := rule.EncodeCondition()
	if err != nil {
		return fmt.Errorf("marshal condition: %w", err)
	}
	channelsJSON, err := rule.EncodeChannels()
	if err != nil {
		return fmt.Errorf("marshal channels: %w", err)
	}

	query := `
		INSERT INTO rules (` + ruleColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = r.db.ExecContext(ctx, query,
		rule.ID, rule.Name, nullString(rule.Description), conditionJSON, channelsJSON,
		string(rule.Severity), nullString(rule.MessageTemplate), rule.CooldownMinutes,
		boolToInt(rule.Enabled), rule.CreatedAt, rule.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert rule: %w", err)
	}
	return nil
}

func (r *sqliteRuleRepo) GetByID(ctx context.Context, id string) (_ *models.AlertRule, err error) {
	defer observeQuery("rules.get")(&err)

	query := `SELECT ` + ruleColumns + ` FROM rules WHERE id = ?`
	rule, err := scanRule(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get rule: %w", err)
	}
	return rule, nil
}

func (r *sqliteRuleRepo) GetByName(ctx context.Context, name string) (_ *models.AlertRule, err error) {
	defer observeQuery("rules.get")(&err)

	query := `SELECT ` + ruleColumns + ` FROM rules WHERE name = ?`
	rule, err := scanRule(r.db.QueryRowContext(ctx, query, name))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get rule by name: %w", err)
	}
	return rule, nil
}

func (r *sqliteRuleRepo) Update(ctx context.Context, rule *models.AlertRule) (err error) {
	defer observeQuery("rules.update")(&err)

	conditionJSON, err := rule.EncodeCondition()
	if err != nil {
		return fmt.Errorf("marshal condition: %w", err)
	}
	channelsJSON, err := rule.EncodeChannels()
	if err != nil {
		return fmt.Errorf("marshal channels: %w", err)
	}

	query := `
		UPDATE rules SET name = ?, description = ?, condition_json = ?, channels_json = ?,
			severity = ?, message_template = ?, cooldown_minutes = ?, enabled = ?, updated_at = ?
		WHERE id = ?
	`
	result, err := r.db.ExecContext(ctx, query,
		rule.Name, nullString(rule.Description), conditionJSON, channelsJSON,
		string(rule.Severity), nullString(rule.MessageTemplate), rule.CooldownMinutes,
		boolToInt(rule.Enabled), rule.UpdatedAt, rule.ID,
	)
	if err != nil {
		return fmt.Errorf("update rule: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("rule not found: %s", rule.ID)
	}
	return nil
}

func (r *sqliteRuleRepo) Delete(ctx context.Context, id string) (err error) {
	defer observeQuery("rules.delete")(&err)

	result, err := r.db.ExecContext(ctx, "DELETE FROM rules WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete rule: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("rule not found: %s", id)
	}
	return nil
}

func (r *sqliteRuleRepo) List(ctx context.Context) ([]*models.AlertRule, error) {
	query := `SELECT ` + ruleColumns + ` FROM rules ORDER BY name`
	return r.queryRules(ctx, query)
}

func (r *sqliteRuleRepo) ListEnabled(ctx context.Context) ([]*models.AlertRule, error) {
	query := `SELECT ` + ruleColumns + ` FROM rules WHERE enabled = 1 ORDER BY name`
	return r.queryRules(ctx, query)
}

func (r *sqliteRuleRepo) SetEnabled(ctx context.Context, id string, enabled bool) (err error) {
	defer observeQuery("rules.set_enabled")(&err)

	result, err := r.db.ExecContext(ctx,
		"UPDATE rules SET enabled = ?, updated_at = ? WHERE id = ?",
		boolToInt(enabled), time.Now(), id,
	)
	if err != nil {
		return fmt.Errorf("set rule enabled: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("rule not found: %s", id)
	}
	return nil
}

func (r *sqliteRuleRepo) queryRules(ctx context.Context, query string, args ...any) (_ []*models.AlertRule, err error) {
	defer observeQuery("rules.list")(&err)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query rules: %v: %w", err, ErrUnavailable)
	}
	defer rows.Close()

	var rules []*models.AlertRule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("scan rule: %w", err)
		}
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}

func scanRule(row scanner) (*models.AlertRule, error) {
	rule := &models.AlertRule{}
	var description, messageTemplate sql.NullString
	var conditionJSON, channelsJSON string
	var enabled int

	err := row.Scan(
		&rule.ID, &rule.Name, &description, &conditionJSON, &channelsJSON, &rule.Severity,
		&messageTemplate, &rule.CooldownMinutes, &enabled, &rule.CreatedAt, &rule.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	rule.Description = description.String
	rule.MessageTemplate = messageTemplate.String
	rule.Enabled = enabled != 0

	if err := json.Unmarshal([]byte(conditionJSON), &rule.Condition); err != nil {
		return nil, fmt.Errorf("unmarshal condition: %w", err)
	}
	if err := json.Unmarshal([]byte(channelsJSON), &rule.Channels); err != nil {
		return nil, fmt.Errorf("unmarshal channels: %w", err)
	}

	return rule, nil
}
