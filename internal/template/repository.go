package template

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"bases-server/internal/shared/database"
	"bases-server/internal/shared/errors"
)

// Catalog is the read-only template lookup consumed by the lifecycle and
// upgrade components.
type Catalog interface {
	GetTemplate(ctx context.Context, baseType string, level int) (*Template, error)
}

type Repository struct {
	db     *database.DB
	logger *slog.Logger
}

func NewRepository(db *database.DB, logger *slog.Logger) *Repository {
	logger.Debug("Initializing template repository")

	return &Repository{
		db:     db,
		logger: logger,
	}
}

func (r *Repository) GetTemplate(ctx context.Context, baseType string, level int) (*Template, error) {
	logger := r.logger.With(
		"component", "template_repository",
		"operation", "get_template",
		"base_type", baseType,
		"level", level,
	)

	query := `
		SELECT base_type, level, build_time_seconds, required_gold, required_player_level, defense, storage, production, created_at
		FROM base_templates
		WHERE base_type = $1 AND level = $2
	`

	var t Template
	err := r.db.QueryRowContext(ctx, query, baseType, level).Scan(
		&t.BaseType,
		&t.Level,
		&t.BuildTime,
		&t.RequiredGold,
		&t.RequiredPlayerLevel,
		&t.Defense,
		&t.Storage,
		&t.Production,
		&t.CreatedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			logger.Debug("Template not found")
			return nil, errors.NotFoundf(errors.CodeTemplateNotFound, "no template for base type %q at level %d", baseType, level)
		}
		logger.Error("Database error getting template", "error", err)
		return nil, fmt.Errorf("database error: %w", err)
	}

	return &t, nil
}

// ListByType returns the full level ladder for a base type, lowest level first.
func (r *Repository) ListByType(ctx context.Context, baseType string) ([]Template, error) {
	logger := r.logger.With(
		"component", "template_repository",
		"operation", "list_by_type",
		"base_type", baseType,
	)
	logger.Debug("Listing templates by type")

	query := `
		SELECT base_type, level, build_time_seconds, required_gold, required_player_level, defense, storage, production, created_at
		FROM base_templates
		WHERE base_type = $1
		ORDER BY level
	`

	rows, err := r.db.QueryContext(ctx, query, baseType)
	if err != nil {
		logger.Error("Failed to query templates", "error", err)
		return nil, fmt.Errorf("failed to query templates: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			logger.Error("Failed to close rows", "error", err)
		}
	}()

	var templates []Template
	for rows.Next() {
		var t Template
		err := rows.Scan(
			&t.BaseType,
			&t.Level,
			&t.BuildTime,
			&t.RequiredGold,
			&t.RequiredPlayerLevel,
			&t.Defense,
			&t.Storage,
			&t.Production,
			&t.CreatedAt,
		)
		if err != nil {
			logger.Error("Failed to scan template row", "error", err)
			return nil, fmt.Errorf("failed to scan template: %w", err)
		}
		templates = append(templates, t)
	}

	if err := rows.Err(); err != nil {
		logger.Error("Error during rows iteration", "error", err)
		return nil, fmt.Errorf("error iterating templates: %w", err)
	}

	logger.Debug("Templates retrieved", "count", len(templates))
	return templates, nil
}
