package base

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"bases-server/internal/geo"
	"bases-server/internal/shared/config"
	"bases-server/internal/shared/errors"
	"bases-server/internal/template"

	"github.com/google/uuid"
)

// SpawnConsumer turns a spawn reservation into concrete coordinates. Consuming
// is atomic with respect to other spawn requests; a consumed or expired
// reservation cannot be used twice. Restore puts a consumed reservation back
// when the create that consumed it fails, so the player keeps the spot.
type SpawnConsumer interface {
	Consume(ctx context.Context, playerID, reservationID string) (geo.Coordinates, error)
	Restore(ctx context.Context, playerID, reservationID string, coords geo.Coordinates) error
}

type CreateBaseRequest struct {
	PlayerID        string           `json:"-"`
	Subscriber      bool             `json:"-"`
	BaseType        string           `json:"base_type"`
	BaseName        string           `json:"base_name"`
	Coordinates     *geo.Coordinates `json:"coordinates,omitempty"`
	SpawnLocationID string           `json:"spawn_location_id,omitempty"`
	AllianceID      *string          `json:"alliance_id,omitempty"`
}

type Service struct {
	store   Store
	catalog template.Catalog
	spawns  SpawnConsumer
	cfg     config.GameConfig
	logger  *slog.Logger
}

func NewService(store Store, catalog template.Catalog, spawns SpawnConsumer, cfg config.GameConfig, logger *slog.Logger) *Service {
	logger.Debug("Initializing base service")

	return &Service{
		store:   store,
		catalog: catalog,
		spawns:  spawns,
		cfg:     cfg,
		logger:  logger,
	}
}

// Create validates a create request, resolves its coordinates (explicit or via
// a spawn reservation) and writes the new base. The base-count limit, the
// coordinate claim and the base row are committed atomically by the store.
func (s *Service) Create(ctx context.Context, req CreateBaseRequest) (*Base, error) {
	logger := s.logger.With(
		"component", "base_service",
		"operation", "create",
		"player_id", req.PlayerID,
		"base_type", req.BaseType,
	)
	logger.Debug("Creating base")

	name := strings.TrimSpace(req.BaseName)
	if name == "" {
		return nil, errors.Validation("base name is required")
	}
	if !IsValidBaseType(req.BaseType) {
		return nil, errors.Validationf("unknown base type %q", req.BaseType)
	}
	if (req.Coordinates == nil) == (req.SpawnLocationID == "") {
		return nil, errors.Validation("exactly one of coordinates or spawn_location_id is required")
	}

	var coords geo.Coordinates
	if req.SpawnLocationID != "" {
		resolved, err := s.spawns.Consume(ctx, req.PlayerID, req.SpawnLocationID)
		if err != nil {
			return nil, err
		}
		coords = resolved
	} else {
		coords = *req.Coordinates
	}

	// Once the reservation is consumed, any failure below hands the spot back
	// so a rejected create does not cost the player their reservation.
	fail := func(cause error) (*Base, error) {
		if req.SpawnLocationID != "" {
			if err := s.spawns.Restore(ctx, req.PlayerID, req.SpawnLocationID, coords); err != nil {
				logger.Warn("Failed to restore spawn reservation", "reservation_id", req.SpawnLocationID, "error", err)
			}
		}
		return nil, cause
	}

	if !geo.InBounds(coords, s.cfg.MapRadius) {
		return fail(errors.Validationf("coordinates %s are outside the map", coords))
	}

	tmpl, err := s.catalog.GetTemplate(ctx, req.BaseType, 1)
	if err != nil {
		return fail(err)
	}

	now := time.Now()
	b := &Base{
		ID:             uuid.NewString(),
		PlayerID:       req.PlayerID,
		BaseType:       req.BaseType,
		BaseName:       name,
		Level:          1,
		Coordinates:    coords,
		MapSectionID:   geo.SectionID(coords, s.cfg.SectionSize),
		CoordinateHash: geo.Hash(coords),
		AllianceID:     req.AllianceID,
		Status:         StatusActive,
		Stats: Stats{
			Defense:    tmpl.Defense,
			Storage:    tmpl.Storage,
			Production: tmpl.Production,
		},
		CreatedAt:    now,
		LastActiveAt: now,
	}

	if tmpl.BuildTime > 0 {
		completion := now.Add(time.Duration(tmpl.BuildTime) * time.Second)
		b.Status = StatusBuilding
		b.BuildCompletionTime = &completion
	}

	maxBases := s.cfg.MaxBases
	if req.Subscriber {
		maxBases = s.cfg.MaxBasesSubscriber
	}

	if err := s.store.CreateBase(ctx, b, maxBases); err != nil {
		return fail(err)
	}

	logger.Info("Base created", "base_id", b.ID, "status", b.Status, "coordinates", coords)
	return b, nil
}

// Get loads a base and resolves its effective status. A stored status that has
// fallen behind its timestamps is corrected in the returned value and settled
// in the store opportunistically.
func (s *Service) Get(ctx context.Context, playerID, baseID string) (*Base, error) {
	b, err := s.store.GetBase(ctx, playerID, baseID)
	if err != nil {
		return nil, err
	}

	s.resolve(ctx, b)
	return b, nil
}

// ListByPlayer returns the player's non-destroyed bases with effective
// statuses resolved.
func (s *Service) ListByPlayer(ctx context.Context, playerID string) ([]Base, error) {
	bases, err := s.store.ListByPlayer(ctx, playerID)
	if err != nil {
		return nil, err
	}

	for i := range bases {
		s.resolve(ctx, &bases[i])
	}
	return bases, nil
}

// Destroy retires a base. Invoked by collaborators such as combat resolution;
// the transition is terminal and releases the coordinate.
func (s *Service) Destroy(ctx context.Context, playerID, baseID string) (*Base, error) {
	return s.store.MarkDestroyed(ctx, playerID, baseID)
}

// resolve applies lazy status resolution to a loaded base. The persisted
// correction is best effort; readers get the derived status either way.
func (s *Service) resolve(ctx context.Context, b *Base) {
	effective := b.EffectiveStatus(time.Now())
	if effective == b.Status {
		return
	}

	if err := s.store.SettleStatus(ctx, b); err != nil {
		s.logger.Warn("Failed to settle base status",
			"component", "base_service",
			"base_id", b.ID,
			"stored_status", b.Status,
			"effective_status", effective,
			"error", err,
		)
	}
	b.Status = effective
}
