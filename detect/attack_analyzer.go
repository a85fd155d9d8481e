package detect

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"orthrus/core"
	"orthrus/storage"
)

// ImplReferenceAttackAnalyzer identifies the reference attack analyzer in
// the configuration document.
const ImplReferenceAttackAnalyzer = "orthrus/detect.ReferenceAttackAnalyzer"

// ReferenceAttackAnalyzer turns threshold violations into stored attacks
// and hands each one to the response analyzer.
type ReferenceAttackAnalyzer struct {
	store     storage.AttackStore
	responses *ReferenceResponseAnalyzer
	logger    *zap.SugaredLogger
}

// NewReferenceAttackAnalyzer creates the analyzer.
func NewReferenceAttackAnalyzer(store storage.AttackStore, responses *ReferenceResponseAnalyzer, logger *zap.SugaredLogger) *ReferenceAttackAnalyzer {
	return &ReferenceAttackAnalyzer{
		store:     store,
		responses: responses,
		logger:    logger,
	}
}

// RaiseAttack records an attack for the event that met the detection
// point's threshold, then triggers the point's configured responses.
func (a *ReferenceAttackAnalyzer) RaiseAttack(ctx context.Context, event *core.Event, point core.DetectionPoint) (*core.Attack, error) {
	attack := core.NewAttack(event, point.Threshold)
	if err := a.store.AddAttack(ctx, attack); err != nil {
		return nil, fmt.Errorf("failed to store attack: %w", err)
	}

	a.logger.Warnw("attack raised",
		"attack_id", attack.ID,
		"detection_point", point.ID,
		"client_application", attack.ClientApplication,
		"username", attack.Username,
		"threshold", point.Threshold.Count,
		"interval", point.Threshold.Interval.String())

	if a.responses != nil {
		if err := a.responses.OnAttack(ctx, attack, point.Responses); err != nil {
			return attack, err
		}
	}
	return attack, nil
}

// LatestAttackTime returns the timestamp of the newest stored attack
// matching the criteria, or the zero time when there is none.
func (a *ReferenceAttackAnalyzer) LatestAttackTime(ctx context.Context, criteria storage.SearchCriteria) (time.Time, error) {
	attacks, err := a.store.FindAttacks(ctx, criteria)
	if err != nil {
		return time.Time{}, err
	}

	var latest time.Time
	for _, attack := range attacks {
		if attack.Timestamp.After(latest) {
			latest = attack.Timestamp
		}
	}
	return latest, nil
}
