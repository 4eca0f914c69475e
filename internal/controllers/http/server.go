package httpctrl

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/brindle-labs/ecobridge/internal/climate"
	"github.com/brindle-labs/ecobridge/internal/platform"
	"github.com/brindle-labs/ecobridge/internal/ports"
)

type Server struct {
	plat     ports.ClimatePlatform
	services map[string]platform.ServiceDescription
	logger   *slog.Logger
	srv      *http.Server
}

// New returns a runnable server exposing the climate entities and the
// platform services.
func New(plat ports.ClimatePlatform, services map[string]platform.ServiceDescription, addr string, logger *slog.Logger) *Server {
	mux := http.NewServeMux()
	s := &Server{plat: plat, services: services, logger: logger}

	// Read
	mux.HandleFunc("GET /v1/thermostats", s.handleList)
	mux.HandleFunc("GET /v1/thermostats/{id}", s.handleGet)
	mux.HandleFunc("GET /v1/services", s.handleServices)

	// Write: one endpoint per command
	mux.HandleFunc("POST /v1/thermostats/{id}/temperature", s.handlePostTemperature)
	mux.HandleFunc("POST /v1/thermostats/{id}/operation_mode", s.handlePostOperationMode)
	mux.HandleFunc("POST /v1/thermostats/{id}/hold_mode", s.handlePostHoldMode)
	mux.HandleFunc("POST /v1/thermostats/{id}/fan_min_on_time", s.handlePostFanMinOnTime)
	mux.HandleFunc("POST /v1/thermostats/{id}/resume", s.handlePostResume)

	// Platform services
	mux.HandleFunc("POST /v1/services/"+platform.ServiceSetFanMinOnTime, s.handleServiceFanMinOnTime)
	mux.HandleFunc("POST /v1/services/"+platform.ServiceResumeProgram, s.handleServiceResumeProgram)

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	s.srv = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.srv.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// ---- Handlers ----

func (s *Server) handleList(w http.ResponseWriter, _ *http.Request) {
	entities := s.plat.Entities()
	states := make([]climate.State, 0, len(entities))
	for _, e := range entities {
		states = append(states, e.State())
	}
	writeJSON(w, http.StatusOK, states)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	e, ok := s.plat.Entity(r.PathValue("id"))
	if !ok {
		writeErr(w, http.StatusNotFound, "unknown entity")
		return
	}
	writeJSON(w, http.StatusOK, e.State())
}

func (s *Server) handleServices(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.services)
}

func (s *Server) handlePostTemperature(w http.ResponseWriter, r *http.Request) {
	e, ok := s.plat.Entity(r.PathValue("id"))
	if !ok {
		writeErr(w, http.StatusNotFound, "unknown entity")
		return
	}
	var req climate.TemperatureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return
	}
	s.applyAndRespond(w, r, e, e.SetTemperature(r.Context(), req))
}

func (s *Server) handlePostOperationMode(w http.ResponseWriter, r *http.Request) {
	postEntityValue(s, w, r, func(ctx context.Context, e ports.ClimateEntity, v string) error {
		return e.SetOperationMode(ctx, v)
	})
}

func (s *Server) handlePostHoldMode(w http.ResponseWriter, r *http.Request) {
	postEntityValue(s, w, r, func(ctx context.Context, e ports.ClimateEntity, v string) error {
		return e.SetHoldMode(ctx, climate.ParseHoldMode(v))
	})
}

func (s *Server) handlePostFanMinOnTime(w http.ResponseWriter, r *http.Request) {
	postEntityValue(s, w, r, func(ctx context.Context, e ports.ClimateEntity, v int) error {
		return e.SetFanMinOnTime(ctx, v)
	})
}

func (s *Server) handlePostResume(w http.ResponseWriter, r *http.Request) {
	postEntityValue(s, w, r, func(ctx context.Context, e ports.ClimateEntity, v bool) error {
		return e.ResumeProgram(ctx, v)
	})
}

func (s *Server) handleServiceFanMinOnTime(w http.ResponseWriter, r *http.Request) {
	var req platform.SetFanMinOnTimeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := s.plat.CallSetFanMinOnTime(r.Context(), req.EntityIDs, req.FanMinOnTime); err != nil {
		s.logServiceError(platform.ServiceSetFanMinOnTime, err)
		writeErr(w, http.StatusBadGateway, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleServiceResumeProgram(w http.ResponseWriter, r *http.Request) {
	var req platform.ResumeProgramRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := s.plat.CallResumeProgram(r.Context(), req.EntityIDs, req.ResumeAll); err != nil {
		s.logServiceError(platform.ServiceResumeProgram, err)
		writeErr(w, http.StatusBadGateway, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ---- generic helpers ----

func postEntityValue[T any](s *Server, w http.ResponseWriter, r *http.Request, apply func(context.Context, ports.ClimateEntity, T) error) {
	e, ok := s.plat.Entity(r.PathValue("id"))
	if !ok {
		writeErr(w, http.StatusNotFound, "unknown entity")
		return
	}
	dec := json.NewDecoder(r.Body)
	var req struct {
		Value *T `json:"value"`
	}
	if err := dec.Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Value == nil {
		writeErr(w, http.StatusBadRequest, "missing field 'value'")
		return
	}
	s.applyAndRespond(w, r, e, apply(r.Context(), e, *req.Value))
}

func (s *Server) applyAndRespond(w http.ResponseWriter, r *http.Request, e ports.ClimateEntity, err error) {
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, e.State())
	case isValidationErr(err):
		writeErr(w, http.StatusBadRequest, err.Error())
	default:
		if s.logger != nil {
			s.logger.Error("command failed", "entity", e.EntityID(), "path", r.URL.Path, "error", err)
		}
		writeErr(w, http.StatusBadGateway, err.Error())
	}
}

func (s *Server) logServiceError(service string, err error) {
	if s.logger != nil {
		s.logger.Error("service call failed", "service", service, "error", err)
	}
}

func isValidationErr(err error) bool {
	return errors.Is(err, climate.ErrMissingTemperatures) ||
		errors.Is(err, climate.ErrInvalidOperationMode) ||
		errors.Is(err, climate.ErrHoldNeedsHeatOrCool)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
