package spawn

import (
	"context"
	"fmt"
	"log/slog"

	"bases-server/internal/geo"
	"bases-server/internal/shared/database"

	"github.com/lib/pq"
)

// MapReader is the world state the scoring engine consults: section
// population, friends' base positions and resource node locations.
type MapReader interface {
	SectionBaseCounts(ctx context.Context, sectionIDs []string) (map[string]int, error)
	FriendBaseCoordinates(ctx context.Context, playerIDs []string, limit int) ([]geo.Coordinates, error)
	ResourceNodes(ctx context.Context) ([]geo.Coordinates, error)
}

type Repository struct {
	db     *database.DB
	logger *slog.Logger
}

func NewRepository(db *database.DB, logger *slog.Logger) *Repository {
	logger.Debug("Initializing spawn repository")

	return &Repository{
		db:     db,
		logger: logger,
	}
}

// SectionBaseCounts returns live-base counts per map section via the section
// index. Sections with no bases are absent from the result.
func (r *Repository) SectionBaseCounts(ctx context.Context, sectionIDs []string) (map[string]int, error) {
	logger := r.logger.With(
		"component", "spawn_repository",
		"operation", "section_base_counts",
		"sections", len(sectionIDs),
	)

	if len(sectionIDs) == 0 {
		return map[string]int{}, nil
	}

	query := `
		SELECT map_section_id, COUNT(*)
		FROM bases
		WHERE map_section_id = ANY($1) AND status <> 'destroyed'
		GROUP BY map_section_id
	`

	rows, err := r.db.QueryContext(ctx, query, pq.Array(sectionIDs))
	if err != nil {
		logger.Error("Failed to query section counts", "error", err)
		return nil, fmt.Errorf("failed to query section counts: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			logger.Error("Failed to close rows", "error", err)
		}
	}()

	counts := make(map[string]int, len(sectionIDs))
	for rows.Next() {
		var sectionID string
		var count int
		if err := rows.Scan(&sectionID, &count); err != nil {
			logger.Error("Failed to scan section count", "error", err)
			return nil, fmt.Errorf("failed to scan section count: %w", err)
		}
		counts[sectionID] = count
	}

	if err := rows.Err(); err != nil {
		logger.Error("Error during rows iteration", "error", err)
		return nil, fmt.Errorf("error iterating section counts: %w", err)
	}

	return counts, nil
}

// FriendBaseCoordinates returns the positions of the friends' most recently
// active live bases, capped at limit.
func (r *Repository) FriendBaseCoordinates(ctx context.Context, playerIDs []string, limit int) ([]geo.Coordinates, error) {
	logger := r.logger.With(
		"component", "spawn_repository",
		"operation", "friend_base_coordinates",
		"friends", len(playerIDs),
	)

	if len(playerIDs) == 0 || limit <= 0 {
		return nil, nil
	}

	query := `
		SELECT x_coord, y_coord
		FROM bases
		WHERE player_id = ANY($1) AND status <> 'destroyed'
		ORDER BY last_active_at DESC
		LIMIT $2
	`

	rows, err := r.db.QueryContext(ctx, query, pq.Array(playerIDs), limit)
	if err != nil {
		logger.Error("Failed to query friend bases", "error", err)
		return nil, fmt.Errorf("failed to query friend bases: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			logger.Error("Failed to close rows", "error", err)
		}
	}()

	var coords []geo.Coordinates
	for rows.Next() {
		var c geo.Coordinates
		if err := rows.Scan(&c.X, &c.Y); err != nil {
			logger.Error("Failed to scan friend base", "error", err)
			return nil, fmt.Errorf("failed to scan friend base: %w", err)
		}
		coords = append(coords, c)
	}

	if err := rows.Err(); err != nil {
		logger.Error("Error during rows iteration", "error", err)
		return nil, fmt.Errorf("error iterating friend bases: %w", err)
	}

	logger.Debug("Friend bases retrieved", "count", len(coords))
	return coords, nil
}

// ResourceNodes returns every resource node position. The node set is small
// and static, so the engine takes it whole and measures distances in memory.
func (r *Repository) ResourceNodes(ctx context.Context) ([]geo.Coordinates, error) {
	logger := r.logger.With("component", "spawn_repository", "operation", "resource_nodes")

	rows, err := r.db.QueryContext(ctx, `SELECT x_coord, y_coord FROM resource_nodes`)
	if err != nil {
		logger.Error("Failed to query resource nodes", "error", err)
		return nil, fmt.Errorf("failed to query resource nodes: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			logger.Error("Failed to close rows", "error", err)
		}
	}()

	var nodes []geo.Coordinates
	for rows.Next() {
		var c geo.Coordinates
		if err := rows.Scan(&c.X, &c.Y); err != nil {
			logger.Error("Failed to scan resource node", "error", err)
			return nil, fmt.Errorf("failed to scan resource node: %w", err)
		}
		nodes = append(nodes, c)
	}

	if err := rows.Err(); err != nil {
		logger.Error("Error during rows iteration", "error", err)
		return nil, fmt.Errorf("error iterating resource nodes: %w", err)
	}

	return nodes, nil
}
