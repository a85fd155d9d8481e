package respond

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"orthrus/core"
)

// LocalResponseHandler executes responses inside the engine process by
// logging the decision. Deployments whose client applications poll the
// response store for instructions need nothing more than this.
type LocalResponseHandler struct {
	logger *zap.SugaredLogger
}

// NewLocalResponseHandler creates a local response handler.
func NewLocalResponseHandler(logger *zap.SugaredLogger) *LocalResponseHandler {
	return &LocalResponseHandler{logger: logger}
}

// Handle logs the response action. Unknown actions are an error so that a
// configuration naming an action this handler cannot execute is visible.
func (h *LocalResponseHandler) Handle(_ context.Context, response *core.ResponseRecord) error {
	fields := []interface{}{
		"response_id", response.ID,
		"detection_point", response.DetectionPointID,
		"client_application", response.ClientApplication,
		"username", response.Username,
	}
	if response.Interval != (core.Interval{}) {
		fields = append(fields, "interval", response.Interval.String())
	}

	switch response.Action {
	case ActionLog:
		h.logger.Infow("response action: heightened logging", fields...)
	case ActionLogout:
		h.logger.Warnw("response action: logout user", fields...)
	case ActionDisableUser:
		h.logger.Warnw("response action: disable user", fields...)
	case ActionDisableComponent:
		h.logger.Warnw("response action: disable component", fields...)
	default:
		return fmt.Errorf("unknown response action %q", response.Action)
	}
	return nil
}
