// Package client talks to a running repertoire API server. Client satisfies
// the same Execute contract as the in-process processor, so the REPL can run
// against either.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"repertoire/internal/core"
	"repertoire/internal/processor"
)

const apiPrefix = "/api/v1"

type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	logger     *slog.Logger
}

func New(baseURL string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger.With("component", "client"),
	}
}

// APIError is a non-2xx reply carrying the server's error body
type APIError struct {
	Status int
	core.ErrorResponse
}

func (e *APIError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s", e.ErrorResponse.Error, e.Details)
	}
	return e.ErrorResponse.Error
}

// Health fetches the server health report
func (c *Client) Health(ctx context.Context) (core.HealthResponse, error) {
	var h core.HealthResponse
	err := c.do(ctx, http.MethodGet, "/health", nil, &h)
	return h, err
}

// Execute maps cmd onto its REST route
func (c *Client) Execute(ctx context.Context, cmd processor.Command) processor.ProcessorResponse {
	sid := url.PathEscape(cmd.SessionID)
	explorer := apiPrefix + "/explorers/" + sid
	training := apiPrefix + "/trainings/" + sid

	switch cmd.Type {
	case processor.CmdListOpenings:
		return call[core.OpeningsResponse](ctx, c, http.MethodGet, apiPrefix+"/openings", nil)
	case processor.CmdCreateOpening:
		return call[core.OpeningsResponse](ctx, c, http.MethodPost, apiPrefix+"/openings", cmd.Args)
	case processor.CmdDeleteOpening:
		path := apiPrefix + "/openings/" + strconv.FormatInt(cmd.OpeningID, 10)
		return call[core.OpeningsResponse](ctx, c, http.MethodDelete, path, nil)
	case processor.CmdCreateExplorer:
		args := cmd.Args
		if args == nil {
			args = core.StartExplorerRequest{}
		}
		return call[core.ExplorerResponse](ctx, c, http.MethodPost, apiPrefix+"/explorers", args)
	case processor.CmdGetExplorer:
		return call[core.ExplorerResponse](ctx, c, http.MethodGet, explorer, nil)
	case processor.CmdDeleteExplorer:
		return c.none(ctx, http.MethodDelete, explorer)
	case processor.CmdSelectOpening:
		return call[core.ExplorerResponse](ctx, c, http.MethodPut, explorer+"/opening", cmd.Args)
	case processor.CmdPushMove:
		return call[core.ExplorerResponse](ctx, c, http.MethodPost, explorer+"/moves", cmd.Args)
	case processor.CmdUndoMove:
		return call[core.ExplorerResponse](ctx, c, http.MethodPost, explorer+"/undo", nil)
	case processor.CmdRedoMove:
		return call[core.ExplorerResponse](ctx, c, http.MethodPost, explorer+"/redo", nil)
	case processor.CmdRemoveLastMove:
		return call[core.ExplorerResponse](ctx, c, http.MethodDelete, explorer+"/moves/last", nil)
	case processor.CmdGetBoard:
		return call[core.BoardResponse](ctx, c, http.MethodGet, explorer+"/board", nil)
	case processor.CmdStartTraining:
		return call[core.CardResponse](ctx, c, http.MethodPost, apiPrefix+"/trainings", cmd.Args)
	case processor.CmdNextCard:
		return call[core.CardResponse](ctx, c, http.MethodPost, training+"/next", nil)
	case processor.CmdRecordPerformance:
		return call[core.PerformanceResponse](ctx, c, http.MethodPost, training+"/performance", cmd.Args)
	case processor.CmdDeleteTraining:
		return c.none(ctx, http.MethodDelete, training)
	default:
		return failure(core.ErrCodeInvalidRequest, "unknown command")
	}
}

func call[T any](ctx context.Context, c *Client, method, path string, body any) processor.ProcessorResponse {
	var out T
	if err := c.do(ctx, method, path, body, &out); err != nil {
		return c.failure(err)
	}
	return processor.ProcessorResponse{Success: true, Data: out}
}

func (c *Client) none(ctx context.Context, method, path string) processor.ProcessorResponse {
	if err := c.do(ctx, method, path, nil, nil); err != nil {
		return c.failure(err)
	}
	return processor.ProcessorResponse{Success: true}
}

func (c *Client) failure(err error) processor.ProcessorResponse {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		resp := apiErr.ErrorResponse
		resp.Error = apiErr.Error()
		return processor.ProcessorResponse{Error: &resp}
	}
	return failure(core.ErrCodeInternalError, err.Error())
}

func failure(code, msg string) processor.ProcessorResponse {
	return processor.ProcessorResponse{
		Error: &core.ErrorResponse{Error: msg, Code: code},
	}
}

func (c *Client) do(ctx context.Context, method, path string, body, result any) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, bodyReader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	c.logger.Debug("api call", "method", method, "path", path, "status", resp.StatusCode)

	if resp.StatusCode >= 400 {
		apiErr := &APIError{Status: resp.StatusCode}
		if err := json.Unmarshal(respBody, &apiErr.ErrorResponse); err != nil || apiErr.ErrorResponse.Error == "" {
			apiErr.ErrorResponse = core.ErrorResponse{
				Error: fmt.Sprintf("request failed with status %d", resp.StatusCode),
				Code:  core.ErrCodeInternalError,
			}
		}
		return apiErr
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("failed to parse response: %w", err)
		}
	}
	return nil
}
