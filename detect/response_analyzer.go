package detect

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"orthrus/core"
	"orthrus/respond"
	"orthrus/storage"
)

// ImplReferenceResponseAnalyzer identifies the reference response analyzer
// in the configuration document.
const ImplReferenceResponseAnalyzer = "orthrus/detect.ReferenceResponseAnalyzer"

// ReferenceResponseAnalyzer records one response per configured action and
// hands each to the response handler.
type ReferenceResponseAnalyzer struct {
	store   storage.ResponseStore
	handler respond.ResponseHandler
	logger  *zap.SugaredLogger
}

// NewReferenceResponseAnalyzer creates the analyzer.
func NewReferenceResponseAnalyzer(store storage.ResponseStore, handler respond.ResponseHandler, logger *zap.SugaredLogger) *ReferenceResponseAnalyzer {
	return &ReferenceResponseAnalyzer{
		store:   store,
		handler: handler,
		logger:  logger,
	}
}

// OnAttack stores and executes every response configured for the detection
// point. A handler failure is logged and does not stop the remaining
// responses.
func (a *ReferenceResponseAnalyzer) OnAttack(ctx context.Context, attack *core.Attack, configured []core.Response) error {
	for _, response := range configured {
		record := core.NewResponseRecord(attack, response)
		if err := a.store.AddResponse(ctx, record); err != nil {
			return fmt.Errorf("failed to store response %s: %w", response.Action, err)
		}

		if a.handler == nil {
			continue
		}
		if err := a.handler.Handle(ctx, record); err != nil {
			a.logger.Errorw("response handler failed",
				"action", record.Action,
				"attack_id", attack.ID,
				"error", err)
		}
	}
	return nil
}
