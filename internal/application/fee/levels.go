package fee

import (
	"context"
	"strings"
	"time"

	"github.com/erp/schoolfees/internal/domain/fee"
	"github.com/erp/schoolfees/internal/domain/shared"
	"go.uber.org/zap"
	"golang.org/x/text/cases"
)

var folder = cases.Fold()

// sameLevelName compares year-level names case-insensitively, ignoring surrounding space
func sameLevelName(a, b string) bool {
	return folder.String(strings.TrimSpace(a)) == folder.String(strings.TrimSpace(b))
}

// levelResolver maps roster level names to year-level ids and back.
// Id -> name resolutions go through the year-level name cache.
type levelResolver struct {
	roster fee.RosterLookup
	cache  fee.YearLevelNameCache
	ttl    time.Duration
	logger *zap.Logger
}

// resolve finds the year-level whose name matches the student's level name.
// Roster unavailable or an empty level list is ServiceUnavailable; a missing
// or unmatched level name is BadGateway.
func (r *levelResolver) resolve(ctx context.Context, sy *fee.StudentYearLevel) (*fee.YearLevel, error) {
	if strings.TrimSpace(sy.LevelName) == "" {
		return nil, shared.NewBadGatewayError(nil, "StudentYearLevel %d is missing level_name", sy.ID)
	}
	levels, err := r.roster.ListYearLevels(ctx)
	if err != nil {
		return nil, shared.NewServiceUnavailableError(err, "Failed to fetch year levels from roster")
	}
	if len(levels) == 0 {
		return nil, shared.NewServiceUnavailableError(nil, "Roster returned no year levels")
	}
	for i := range levels {
		if r.cache != nil {
			r.cache.Set(ctx, levels[i].ID, levels[i].LevelName, r.ttl)
		}
	}
	for i := range levels {
		if sameLevelName(levels[i].LevelName, sy.LevelName) {
			return &levels[i], nil
		}
	}
	return nil, shared.NewBadGatewayError(nil, "No year level matches level_name %q", sy.LevelName)
}

// name returns the level name for id, consulting the cache first.
// A level the roster does not know returns "" without error.
func (r *levelResolver) name(ctx context.Context, id int64) (string, error) {
	if r.cache != nil {
		if name, ok := r.cache.Get(ctx, id); ok {
			return name, nil
		}
	}
	level, err := r.roster.GetYearLevelByID(ctx, id)
	if err != nil {
		if fee.IsRosterNotFound(err) {
			return "", nil
		}
		return "", err
	}
	if r.cache != nil {
		r.cache.Set(ctx, id, level.LevelName, r.ttl)
	}
	return level.LevelName, nil
}

// structureMatchesLevel reports whether any of the structure's year-levels carries levelName
func (r *levelResolver) structureMatchesLevel(ctx context.Context, structure *fee.FeeStructure, levelName string) (bool, error) {
	for _, id := range structure.YearLevelIDs {
		name, err := r.name(ctx, id)
		if err != nil {
			return false, shared.NewBadGatewayError(err, "Roster service failed while loading year level %d", id)
		}
		if name != "" && sameLevelName(name, levelName) {
			return true, nil
		}
	}
	return false, nil
}
