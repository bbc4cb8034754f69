package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/shaiso/flowgraph/internal/domain"
)

// --- Response types (дублируются из api/dto.go, CLI не импортирует internal/api) ---

// FlowResponse — flow из API.
type FlowResponse struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	Description string           `json:"description,omitempty"`
	Graph       domain.Graph     `json:"graph"`
	Viewport    *domain.Viewport `json:"viewport,omitempty"`
	NodeCount   int              `json:"node_count"`
	EdgeCount   int              `json:"edge_count"`
	CreatedAt   string           `json:"created_at"`
	UpdatedAt   string           `json:"updated_at"`
}

// SimulationResponse — состояние сессии из API.
type SimulationResponse struct {
	ID           string                 `json:"id"`
	FlowID       string                 `json:"flow_id"`
	State        domain.SimulationState `json:"state"`
	ActiveNodeID string                 `json:"active_node_id,omitempty"`
	Progress     domain.Progress        `json:"progress"`
	Steps        []domain.ExecutionStep `json:"steps"`
	Logs         []domain.LogEntry      `json:"logs"`
	Error        string                 `json:"error,omitempty"`
	CreatedAt    string                 `json:"created_at"`
}

// StepResponse — результат ручного шага.
type StepResponse struct {
	Step       *domain.ExecutionStep `json:"step"`
	Simulation SimulationResponse    `json:"simulation"`
}

// SimulationRecordResponse — запись истории из API.
type SimulationRecordResponse struct {
	ID          string                 `json:"id"`
	SessionID   string                 `json:"session_id"`
	FlowID      string                 `json:"flow_id"`
	State       domain.SimulationState `json:"state"`
	StepCount   int                    `json:"step_count"`
	FailedSteps int                    `json:"failed_steps"`
	Error       string                 `json:"error,omitempty"`
	StartedAt   string                 `json:"started_at"`
	FinishedAt  string                 `json:"finished_at"`
	Duration    string                 `json:"duration"`
}

// --- Request types ---

// CreateSimulationRequest — создание сессии.
type CreateSimulationRequest struct {
	AutoStart bool `json:"auto_start,omitempty"`
}

// --- API response wrappers ---

type dataResponse struct {
	Data json.RawMessage `json:"data"`
}

type listResponse struct {
	Data  json.RawMessage `json:"data"`
	Total int             `json:"total"`
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Issues  []struct {
			NodeID  string `json:"node_id"`
			Message string `json:"message"`
		} `json:"issues"`
	} `json:"error"`
}

// --- Client ---

// Client — HTTP-клиент для flowgraph API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient создаёт клиент для API.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// --- Flows ---

// ListFlows возвращает все flows.
func (c *Client) ListFlows() ([]FlowResponse, error) {
	var flows []FlowResponse
	err := c.list("/api/v1/flows", nil, &flows)
	return flows, err
}

// ImportFlow создаёт flow из документа редактора.
func (c *Client) ImportFlow(name string, doc []byte, format string) (*FlowResponse, error) {
	params := url.Values{}
	params.Set("format", format)
	if name != "" {
		params.Set("name", name)
	}

	resp, err := c.doRaw(http.MethodPost, "/api/v1/flows/import?"+params.Encode(), "application/"+format, doc)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var flow FlowResponse
	if err := c.decodeData(resp, &flow); err != nil {
		return nil, err
	}
	return &flow, nil
}

// GetFlow возвращает flow по ID.
func (c *Client) GetFlow(id string) (*FlowResponse, error) {
	var flow FlowResponse
	err := c.get("/api/v1/flows/"+id, &flow)
	return &flow, err
}

// DeleteFlow удаляет flow.
func (c *Client) DeleteFlow(id string) error {
	return c.delete("/api/v1/flows/" + id)
}

// ExportFlow возвращает документ flow в формате json или yaml.
func (c *Client) ExportFlow(id, format string) ([]byte, error) {
	resp, err := c.do(http.MethodGet, "/api/v1/flows/"+id+"/export?format="+url.QueryEscape(format), nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return nil, err
	}
	return io.ReadAll(resp.Body)
}

// --- Simulations ---

// CreateSimulation создаёт сессию для flow.
func (c *Client) CreateSimulation(flowID string, req CreateSimulationRequest) (*SimulationResponse, error) {
	var sim SimulationResponse
	err := c.post("/api/v1/flows/"+flowID+"/simulations", req, &sim)
	return &sim, err
}

// GetSimulation возвращает состояние сессии.
func (c *Client) GetSimulation(id string) (*SimulationResponse, error) {
	var sim SimulationResponse
	err := c.get("/api/v1/simulations/"+id, &sim)
	return &sim, err
}

// SimulationAction выполняет start, pause, resume или reset.
func (c *Client) SimulationAction(id, action string) (*SimulationResponse, error) {
	var sim SimulationResponse
	err := c.post("/api/v1/simulations/"+id+"/"+action, nil, &sim)
	return &sim, err
}

// StepSimulation выполняет один узел.
func (c *Client) StepSimulation(id string) (*StepResponse, error) {
	var res StepResponse
	err := c.post("/api/v1/simulations/"+id+"/step", nil, &res)
	return &res, err
}

// ListHistory возвращает историю прогонов flow.
func (c *Client) ListHistory(flowID string, limit int) ([]SimulationRecordResponse, error) {
	params := url.Values{}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}

	var records []SimulationRecordResponse
	err := c.list("/api/v1/flows/"+flowID+"/simulations", params, &records)
	return records, err
}

// WatchSimulation читает события сессии через websocket, пока fn не вернёт
// false, соединение не закроется или ctx не отменится.
func (c *Client) WatchSimulation(ctx context.Context, id string, fn func(domain.Event) bool) error {
	u, err := url.Parse(c.baseURL + "/api/v1/simulations/" + id + "/events")
	if err != nil {
		return fmt.Errorf("invalid api url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		if resp != nil {
			defer resp.Body.Close()
			if apiErr := c.checkError(resp); apiErr != nil {
				return apiErr
			}
		}
		return fmt.Errorf("failed to connect: %w", err)
	}
	defer conn.Close()

	// Закрываем соединение при отмене, чтобы разблокировать ReadJSON
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	for {
		var ev domain.Event
		if err := conn.ReadJSON(&ev); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("failed to read event: %w", err)
		}
		if !fn(ev) {
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return nil
		}
	}
}

// --- HTTP helpers ---

func (c *Client) get(path string, result any) error {
	return c.doData(http.MethodGet, path, nil, result)
}

func (c *Client) post(path string, body any, result any) error {
	return c.doData(http.MethodPost, path, body, result)
}

func (c *Client) delete(path string) error {
	resp, err := c.do(http.MethodDelete, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return c.checkError(resp)
}

func (c *Client) list(path string, params url.Values, result any) error {
	if len(params) > 0 {
		path = path + "?" + params.Encode()
	}

	resp, err := c.do(http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	var lr listResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return json.Unmarshal(lr.Data, result)
}

func (c *Client) doData(method, path string, body any, result any) error {
	resp, err := c.do(method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return c.decodeData(resp, result)
}

func (c *Client) decodeData(resp *http.Response, result any) error {
	if err := c.checkError(resp); err != nil {
		return err
	}

	// 204 No Content
	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	var dr dataResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if result != nil {
		return json.Unmarshal(dr.Data, result)
	}
	return nil
}

func (c *Client) do(method, path string, body any) (*http.Response, error) {
	if body == nil {
		return c.doRaw(method, path, "", nil)
	}
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	return c.doRaw(method, path, "application/json", data)
}

func (c *Client) doRaw(method, path, contentType string, body []byte) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}

	req, err := http.NewRequest(method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	return c.httpClient.Do(req)
}

func (c *Client) checkError(resp *http.Response) error {
	if resp.StatusCode < 400 {
		return nil
	}

	var er errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil {
		return fmt.Errorf("API error: HTTP %d", resp.StatusCode)
	}

	msg := fmt.Sprintf("%s: %s", er.Error.Code, er.Error.Message)
	for _, issue := range er.Error.Issues {
		if issue.NodeID != "" {
			msg += fmt.Sprintf("\n  node %s: %s", issue.NodeID, issue.Message)
		} else {
			msg += "\n  " + issue.Message
		}
	}
	return fmt.Errorf("%s", msg)
}
