package ecobee

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// DefaultThrottle is the minimum interval between real API fetches during
// normal polling. The ecobee API rate-limits aggressively.
const DefaultThrottle = 3 * time.Minute

// Service caches the account's thermostat list and throttles refreshes.
// Entities address thermostats by their stable index into that list;
// the Service owns the index to API-identifier mapping.
type Service struct {
	client   *Client
	throttle time.Duration
	logger   *slog.Logger

	mu          sync.Mutex
	thermostats []Thermostat
	lastFetch   time.Time
}

// NewService wraps client with a fetch cache. A non-positive throttle
// falls back to DefaultThrottle.
func NewService(client *Client, throttle time.Duration, logger *slog.Logger) *Service {
	if throttle <= 0 {
		throttle = DefaultThrottle
	}
	return &Service{
		client:   client,
		throttle: throttle,
		logger:   logger,
	}
}

// Update refreshes the cached thermostat list. Inside the throttle window
// the call is a no-op unless force is set.
func (s *Service) Update(ctx context.Context, force bool) error {
	s.mu.Lock()
	if !force && !s.lastFetch.IsZero() && time.Since(s.lastFetch) < s.throttle {
		s.mu.Unlock()
		if s.logger != nil {
			s.logger.Debug("update throttled")
		}
		return nil
	}
	s.mu.Unlock()

	thermostats, err := s.client.GetThermostats(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.thermostats = thermostats
	s.lastFetch = time.Now()
	s.mu.Unlock()
	return nil
}

// ThermostatCount returns the number of thermostats in the last fetch.
func (s *Service) ThermostatCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.thermostats)
}

// ThermostatAt returns the cached document for the given index.
func (s *Service) ThermostatAt(index int) (Thermostat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if index < 0 || index >= len(s.thermostats) {
		return Thermostat{}, ErrUnknownThermostat
	}
	return s.thermostats[index], nil
}

func (s *Service) identifierAt(index int) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if index < 0 || index >= len(s.thermostats) {
		return "", ErrUnknownThermostat
	}
	return s.thermostats[index].Identifier, nil
}

// SetClimateHold requests a named climate hold on the indexed thermostat.
func (s *Service) SetClimateHold(ctx context.Context, index int, climate, preference string) error {
	id, err := s.identifierAt(index)
	if err != nil {
		return err
	}
	return s.client.SetClimateHold(ctx, id, climate, preference)
}

// SetHoldTemp requests an explicit setpoint hold on the indexed thermostat.
func (s *Service) SetHoldTemp(ctx context.Context, index, coolTenths, heatTenths int, preference string) error {
	id, err := s.identifierAt(index)
	if err != nil {
		return err
	}
	return s.client.SetHoldTemp(ctx, id, coolTenths, heatTenths, preference)
}

// SetHvacMode requests an HVAC mode change on the indexed thermostat.
func (s *Service) SetHvacMode(ctx context.Context, index int, mode string) error {
	id, err := s.identifierAt(index)
	if err != nil {
		return err
	}
	return s.client.SetHvacMode(ctx, id, mode)
}

// SetFanMinOnTime requests a fan minimum on-time change on the indexed
// thermostat. Minutes travel as a decimal string.
func (s *Service) SetFanMinOnTime(ctx context.Context, index int, minutes string) error {
	id, err := s.identifierAt(index)
	if err != nil {
		return err
	}
	return s.client.SetFanMinOnTime(ctx, id, minutes)
}

// ResumeProgram resumes the schedule program on the indexed thermostat.
func (s *Service) ResumeProgram(ctx context.Context, index int, resumeAll bool) error {
	id, err := s.identifierAt(index)
	if err != nil {
		return err
	}
	return s.client.ResumeProgram(ctx, id, resumeAll)
}
