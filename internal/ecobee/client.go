package ecobee

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
)

const defaultBaseURL = "https://api.ecobee.com/1"

// Client talks to the ecobee REST API for one account.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient returns a client authenticated with the given access token.
// Token refresh is the caller's concern.
func NewClient(token string, opts ...ClientOption) (*Client, error) {
	cfg := defaultClientConfig()
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, fmt.Errorf("invalid option: %w", err)
		}
	}
	return &Client{
		baseURL:    cfg.baseURL,
		token:      token,
		httpClient: cfg.httpClient,
		logger:     cfg.logger,
	}, nil
}

// selection asks the API for the document sections the bridge reads.
type selection struct {
	SelectionType   string `json:"selectionType"`
	SelectionMatch  string `json:"selectionMatch"`
	IncludeRuntime  bool   `json:"includeRuntime"`
	IncludeSettings bool   `json:"includeSettings"`
	IncludeProgram  bool   `json:"includeProgram"`
	IncludeEvents   bool   `json:"includeEvents"`
	IncludeEquip    bool   `json:"includeEquipmentStatus"`
}

func registeredSelection() selection {
	return selection{
		SelectionType:   "registered",
		SelectionMatch:  "",
		IncludeRuntime:  true,
		IncludeSettings: true,
		IncludeProgram:  true,
		IncludeEvents:   true,
		IncludeEquip:    true,
	}
}

type apiStatus struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type thermostatsResponse struct {
	ThermostatList []Thermostat `json:"thermostatList"`
	Status         apiStatus    `json:"status"`
}

// GetThermostats fetches every thermostat registered to the account.
func (c *Client) GetThermostats(ctx context.Context) ([]Thermostat, error) {
	body, err := json.Marshal(struct {
		Selection selection `json:"selection"`
	}{registeredSelection()})
	if err != nil {
		return nil, fmt.Errorf("marshal selection: %w", err)
	}

	u := fmt.Sprintf("%s/thermostat?format=json&body=%s", c.baseURL, url.QueryEscape(string(body)))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create thermostat request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch thermostats: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch thermostats: unexpected status %d", resp.StatusCode)
	}

	var tr thermostatsResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return nil, fmt.Errorf("decode thermostat response: %w", err)
	}
	if tr.Status.Code != 0 {
		return nil, fmt.Errorf("ecobee api error %d: %s", tr.Status.Code, tr.Status.Message)
	}

	if c.logger != nil {
		c.logger.Debug("fetched thermostats", "count", len(tr.ThermostatList))
	}
	return tr.ThermostatList, nil
}

// function is one entry of the API's "functions" array.
type function struct {
	Type   string         `json:"type"`
	Params map[string]any `json:"params"`
}

// SetClimateHold puts a named comfort-profile hold (for example "away" or
// "home") on the thermostat.
func (c *Client) SetClimateHold(ctx context.Context, identifier, climate, preference string) error {
	return c.postFunctions(ctx, identifier, []function{{
		Type: "setHold",
		Params: map[string]any{
			"holdClimateRef": climate,
			"holdType":       preference,
		},
	}})
}

// SetHoldTemp puts an explicit heat/cool setpoint hold on the thermostat.
// Temperatures are in tenths of a degree, matching the wire format.
func (c *Client) SetHoldTemp(ctx context.Context, identifier string, coolTenths, heatTenths int, preference string) error {
	return c.postFunctions(ctx, identifier, []function{{
		Type: "setHold",
		Params: map[string]any{
			"coolHoldTemp": coolTenths,
			"heatHoldTemp": heatTenths,
			"holdType":     preference,
		},
	}})
}

// ResumeProgram clears the active hold. With resumeAll the whole event
// stack is discarded. The API wants the flag as a lowercase string.
func (c *Client) ResumeProgram(ctx context.Context, identifier string, resumeAll bool) error {
	return c.postFunctions(ctx, identifier, []function{{
		Type: "resumeProgram",
		Params: map[string]any{
			"resumeAll": strconv.FormatBool(resumeAll),
		},
	}})
}

// SetHvacMode switches the thermostat's HVAC mode.
func (c *Client) SetHvacMode(ctx context.Context, identifier, mode string) error {
	return c.postUpdate(ctx, identifier, map[string]any{"hvacMode": mode})
}

// SetFanMinOnTime sets the minimum minutes per hour the fan runs. The value
// travels as a decimal string.
func (c *Client) SetFanMinOnTime(ctx context.Context, identifier, minutes string) error {
	return c.postUpdate(ctx, identifier, map[string]any{"fanMinOnTime": minutes})
}

func (c *Client) postFunctions(ctx context.Context, identifier string, fns []function) error {
	return c.post(ctx, map[string]any{
		"selection": map[string]any{
			"selectionType":  "thermostats",
			"selectionMatch": identifier,
		},
		"functions": fns,
	})
}

func (c *Client) postUpdate(ctx context.Context, identifier string, settings map[string]any) error {
	return c.post(ctx, map[string]any{
		"selection": map[string]any{
			"selectionType":  "thermostats",
			"selectionMatch": identifier,
		},
		"thermostat": map[string]any{
			"settings": settings,
		},
	})
}

func (c *Client) post(ctx context.Context, body map[string]any) error {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request body: %w", err)
	}

	u := fmt.Sprintf("%s/thermostat?format=json", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(jsonBody))
	if err != nil {
		return fmt.Errorf("create update request: %w", err)
	}
	c.setHeaders(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("post update: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("post update: unexpected status %d", resp.StatusCode)
	}

	var out struct {
		Status apiStatus `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return fmt.Errorf("decode update response: %w", err)
	}
	if out.Status.Code != 0 {
		return fmt.Errorf("ecobee api error %d: %s", out.Status.Code, out.Status.Message)
	}

	if c.logger != nil {
		c.logger.Debug("thermostat update accepted")
	}
	return nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("User-Agent", "ecobridge")
	req.Header.Set("Accept", "application/json")
}
