package bootstrap

import (
	"fmt"

	"orthrus/config"
	"orthrus/detect"
	"orthrus/respond"
	"orthrus/storage"

	"go.uber.org/zap"
)

// Components holds the engine components resolved from the configuration
// document's implementation identifiers.
type Components struct {
	Events    storage.EventStore
	Attacks   storage.AttackStore
	Responses storage.ResponseStore
	Handler   respond.ResponseHandler
	Analyzer  *detect.ThresholdEventAnalyzer
}

// observable is the store surface observers attach to.
type observable interface {
	Attach(storage.Observer)
}

// BuildComponents resolves the configuration document's implementation
// identifiers against the registry and wires the analysis chain. In strict
// mode any unresolvable identifier fails the build; in graceful mode it is
// logged and replaced with the in-memory or reference implementation.
func BuildComponents(cfg *config.ServerConfig, settings *config.Settings, registry *storage.Registry, sugar *zap.SugaredLogger) (*Components, error) {
	strict := !settings.IsGracefulMode()
	c := &Components{}

	var err error
	c.Events, err = registry.EventStore(cfg.EventStore)
	if err != nil {
		if strict {
			return nil, fmt.Errorf("failed to resolve event store: %w", err)
		}
		sugar.Warnw("Event store unavailable, falling back to in-memory",
			"configured", cfg.EventStore, "error", err)
		c.Events = storage.NewInMemoryEventStore()
	}

	c.Attacks, err = registry.AttackStore(cfg.AttackStore)
	if err != nil {
		if strict {
			return nil, fmt.Errorf("failed to resolve attack store: %w", err)
		}
		sugar.Warnw("Attack store unavailable, falling back to in-memory",
			"configured", cfg.AttackStore, "error", err)
		c.Attacks = storage.NewInMemoryAttackStore()
	}

	c.Responses, err = registry.ResponseStore(cfg.ResponseStore)
	if err != nil {
		if strict {
			return nil, fmt.Errorf("failed to resolve response store: %w", err)
		}
		sugar.Warnw("Response store unavailable, falling back to in-memory",
			"configured", cfg.ResponseStore, "error", err)
		c.Responses = storage.NewInMemoryResponseStore()
	}

	if err := attachObservers(c.Events, cfg.EventStoreObservers, registry, strict, sugar); err != nil {
		return nil, fmt.Errorf("failed to attach event store observers: %w", err)
	}
	if err := attachObservers(c.Attacks, cfg.AttackStoreObservers, registry, strict, sugar); err != nil {
		return nil, fmt.Errorf("failed to attach attack store observers: %w", err)
	}
	if err := attachObservers(c.Responses, cfg.ResponseStoreObservers, registry, strict, sugar); err != nil {
		return nil, fmt.Errorf("failed to attach response store observers: %w", err)
	}

	// Each analysis slot ships exactly one implementation, so resolution is
	// an identifier check rather than a registry lookup.
	if err := resolveFixed("event analyzer", cfg.EventAnalyzer, detect.ImplThresholdEventAnalyzer, strict, sugar); err != nil {
		return nil, err
	}
	if err := resolveFixed("attack analyzer", cfg.AttackAnalyzer, detect.ImplReferenceAttackAnalyzer, strict, sugar); err != nil {
		return nil, err
	}
	if err := resolveFixed("response analyzer", cfg.ResponseAnalyzer, detect.ImplReferenceResponseAnalyzer, strict, sugar); err != nil {
		return nil, err
	}
	if err := resolveFixed("response handler", cfg.ResponseHandler, respond.ImplLocalResponseHandler, strict, sugar); err != nil {
		return nil, err
	}
	c.Handler = respond.NewLocalResponseHandler(sugar)

	responseAnalyzer := detect.NewReferenceResponseAnalyzer(c.Responses, c.Handler, sugar)
	attackAnalyzer := detect.NewReferenceAttackAnalyzer(c.Attacks, responseAnalyzer, sugar)

	c.Analyzer, err = detect.NewThresholdEventAnalyzer(cfg, c.Events, attackAnalyzer,
		settings.Engine.WindowCacheSize, settings.Engine.RateLimit, settings.Engine.RateBurst, sugar)
	if err != nil {
		return nil, fmt.Errorf("failed to create event analyzer: %w", err)
	}

	sugar.Infow("Engine components wired",
		"event_store", cfg.EventStore,
		"attack_store", cfg.AttackStore,
		"response_store", cfg.ResponseStore,
		"detection_points", len(cfg.DetectionPoints))

	return c, nil
}

// resolveFixed checks an identifier against the single shipped
// implementation for its slot. In graceful mode a mismatch is logged and the
// shipped implementation is used anyway.
func resolveFixed(slot, impl, want string, strict bool, sugar *zap.SugaredLogger) error {
	if impl == want {
		return nil
	}
	if strict {
		return fmt.Errorf("failed to resolve %s: %w: %s", slot, storage.ErrUnknownImplementation, impl)
	}
	sugar.Warnw("Unknown implementation, using the shipped one",
		"slot", slot,
		"configured", impl,
		"fallback", want)
	return nil
}

// attachObservers resolves observer identifiers and attaches them to a
// store. In graceful mode unknown observers are skipped.
func attachObservers(target observable, impls []string, registry *storage.Registry, strict bool, sugar *zap.SugaredLogger) error {
	for _, impl := range impls {
		obs, err := registry.Observer(impl)
		if err != nil {
			if strict {
				return err
			}
			sugar.Warnw("Skipping unknown store observer", "configured", impl, "error", err)
			continue
		}
		target.Attach(obs)
	}
	return nil
}
