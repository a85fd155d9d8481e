// Package respond executes the response actions the analysis engine raises
// for attacks.
package respond

import (
	"context"

	"orthrus/core"
)

// ImplLocalResponseHandler identifies the in-process response handler in
// the configuration document.
const ImplLocalResponseHandler = "orthrus/respond.LocalResponseHandler"

// Response actions a configuration document can attach to a detection
// point.
const (
	ActionLog              = "log"
	ActionLogout           = "logout"
	ActionDisableUser      = "disableUser"
	ActionDisableComponent = "disableComponent"
)

// ResponseHandler executes one response record. Implementations decide what
// an action means for the deployment.
type ResponseHandler interface {
	Handle(ctx context.Context, response *core.ResponseRecord) error
}
