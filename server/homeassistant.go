package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/odvcencio/confedit/autocomplete"
	"github.com/odvcencio/confedit/logging"
	"github.com/odvcencio/confedit/metrics"
)

// ErrNoToken is returned when no supervisor token is configured.
var ErrNoToken = errors.New("supervisor token not set")

// HomeAssistant reads entity states and services from the supervisor API.
type HomeAssistant struct {
	baseURL    string
	token      string
	httpClient *http.Client
	log        *zap.Logger
}

// NewHomeAssistant creates a supervisor API client.
func NewHomeAssistant(baseURL, token string, timeout time.Duration, log *zap.Logger) *HomeAssistant {
	return &HomeAssistant{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
		log:        log,
	}
}

type haState struct {
	EntityID   string         `json:"entity_id"`
	State      string         `json:"state"`
	Attributes map[string]any `json:"attributes"`
}

// Entities returns the simplified entity list. The friendly name falls
// back to the entity id and the domain is the id's prefix.
func (h *HomeAssistant) Entities(ctx context.Context) ([]autocomplete.Entity, error) {
	if h.token == "" {
		return nil, ErrNoToken
	}
	var states []haState
	if err := h.get(ctx, "/states", &states); err != nil {
		return nil, err
	}

	entities := make([]autocomplete.Entity, 0, len(states))
	for _, st := range states {
		name := st.EntityID
		if fn, ok := st.Attributes["friendly_name"].(string); ok {
			name = fn
		}
		domain, _, _ := strings.Cut(st.EntityID, ".")
		entities = append(entities, autocomplete.Entity{
			EntityID:     st.EntityID,
			FriendlyName: name,
			Domain:       domain,
			State:        st.State,
		})
	}
	return entities, nil
}

// Services returns the upstream service registry unchanged.
func (h *HomeAssistant) Services(ctx context.Context) (json.RawMessage, error) {
	var raw json.RawMessage
	if err := h.get(ctx, "/services", &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

func (h *HomeAssistant) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+h.token)

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("supervisor %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 200))
		return fmt.Errorf("supervisor %s: %s: %s", path, resp.Status, strings.TrimSpace(string(body)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode supervisor %s: %w", path, err)
	}
	return nil
}

// handleEntities always answers 200; without an upstream the list is
// empty.
func (s *Server) handleEntities(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context(), s.log)
	entities, err := s.ha.Entities(r.Context())
	metrics.RecordEntityFetch(len(entities), err)
	if err != nil {
		if errors.Is(err, ErrNoToken) {
			log.Warn("cannot fetch entities", zap.Error(err))
		} else {
			log.Error("fetch entities", zap.Error(err))
		}
		s.sendJSON(w, http.StatusOK, []autocomplete.Entity{})
		return
	}
	log.Info("loaded entities for autocomplete", zap.Int("count", len(entities)))
	s.sendJSON(w, http.StatusOK, entities)
}

// handleServices always answers 200; without an upstream the registry is
// an empty object.
func (s *Server) handleServices(w http.ResponseWriter, r *http.Request) {
	raw, err := s.ha.Services(r.Context())
	if err != nil {
		logging.FromContext(r.Context(), s.log).Error("fetch services", zap.Error(err))
		s.sendJSON(w, http.StatusOK, map[string]any{})
		return
	}
	s.sendJSON(w, http.StatusOK, raw)
}
