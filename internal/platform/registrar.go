package platform

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/brindle-labs/ecobridge/internal/climate"
	"github.com/brindle-labs/ecobridge/internal/ports"
)

// DiscoveryInfo is handed to Setup by whoever discovered the ecobee
// account. Setup without it is a no-op, mirroring a platform that was
// configured but never discovered.
type DiscoveryInfo struct {
	// HoldTemp selects whether manual holds should keep the configured
	// hold duration preference when away/home presets are applied.
	HoldTemp bool
}

// Platform owns the constructed climate entities and the two
// platform-wide services. There is no global registry; everything hangs
// off this struct.
type Platform struct {
	svc      climate.ProviderService
	logger   *slog.Logger
	entities []*climate.Thermostat
	services map[string]ServiceDescription
}

// Setup discovers the thermostat count from the provider service and
// builds one climate entity per index, in index order. A nil discovery
// aborts the setup without error.
func Setup(ctx context.Context, svc climate.ProviderService, discovery *DiscoveryInfo, logger *slog.Logger) (*Platform, error) {
	if discovery == nil {
		return nil, nil
	}
	if logger != nil {
		logger.Info("setting up thermostat platform", "hold_temp", discovery.HoldTemp)
	}

	if err := svc.Update(ctx, false); err != nil {
		return nil, err
	}

	descriptions, err := loadServiceDescriptions()
	if err != nil {
		return nil, err
	}

	p := &Platform{
		svc:      svc,
		logger:   logger,
		services: descriptions,
	}
	for index := 0; index < svc.ThermostatCount(); index++ {
		entity, err := climate.NewThermostat(svc, index, discovery.HoldTemp, logger)
		if err != nil {
			return nil, err
		}
		p.entities = append(p.entities, entity)
		if logger != nil {
			logger.Info("registered thermostat", "entity", entity.EntityID(), "index", index)
		}
	}
	return p, nil
}

// Entities lists every registered climate entity in index order.
func (p *Platform) Entities() []ports.ClimateEntity {
	out := make([]ports.ClimateEntity, len(p.entities))
	for i, e := range p.entities {
		out[i] = e
	}
	return out
}

// Entity looks an entity up by its identifier.
func (p *Platform) Entity(entityID string) (ports.ClimateEntity, bool) {
	for _, e := range p.entities {
		if e.EntityID() == entityID {
			return e, true
		}
	}
	return nil, false
}

// ServiceDescriptions returns the embedded metadata for the registered
// platform services.
func (p *Platform) ServiceDescriptions() map[string]ServiceDescription {
	return p.services
}

// targets resolves a service call's entity-id set to the subset of
// registered entities, or all of them when the set is empty.
func (p *Platform) targets(entityIDs []string) []*climate.Thermostat {
	if len(entityIDs) == 0 {
		return p.entities
	}
	wanted := make(map[string]struct{}, len(entityIDs))
	for _, id := range entityIDs {
		wanted[id] = struct{}{}
	}
	var out []*climate.Thermostat
	for _, e := range p.entities {
		if _, ok := wanted[e.EntityID()]; ok {
			out = append(out, e)
		}
	}
	return out
}

// CallSetFanMinOnTime fans the set_fan_min_on_time service out to the
// targeted entities and forces an immediate state refresh on each.
func (p *Platform) CallSetFanMinOnTime(ctx context.Context, entityIDs []string, minutes int) error {
	var errs []error
	for _, e := range p.targets(entityIDs) {
		if err := e.SetFanMinOnTime(ctx, minutes); err != nil {
			errs = append(errs, err)
			continue
		}
		if err := e.Refresh(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// CallResumeProgram fans the resume_program service out to the targeted
// entities and forces an immediate state refresh on each.
func (p *Platform) CallResumeProgram(ctx context.Context, entityIDs []string, resumeAll bool) error {
	var errs []error
	for _, e := range p.targets(entityIDs) {
		if err := e.ResumeProgram(ctx, resumeAll); err != nil {
			errs = append(errs, err)
			continue
		}
		if err := e.Refresh(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Run drives the serial periodic refresh of every entity until ctx is
// canceled. Refresh failures are logged and retried on the next tick.
func (p *Platform) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Minute
	}

	p.refreshAll(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			p.refreshAll(ctx)
		}
	}
}

func (p *Platform) refreshAll(ctx context.Context) {
	for _, e := range p.entities {
		if err := e.Refresh(ctx); err != nil {
			if p.logger != nil {
				p.logger.Warn("refresh failed", "entity", e.EntityID(), "error", err)
			}
		}
	}
}
