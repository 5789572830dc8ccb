// Package dataverse talks to the Dataverse Web API: row fetches,
// aggregate queries, and the EntityDefinitions metadata endpoints.
package dataverse

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"dataverse-agent/internal/auth"
	"dataverse-agent/internal/common/errors"
	"dataverse-agent/internal/common/logger"
)

const apiPath = "/api/data/v9.2"

// Row is one record as returned by the Web API. Schema is unknown and
// heterogeneous, even within one table's result set.
type Row map[string]interface{}

// Client is a thin Dataverse Web API client.
type Client struct {
	baseURL    string
	tokens     auth.TokenProvider
	httpClient *http.Client
	logger     logger.Logger
}

// NewClient creates a client for the given environment URL.
func NewClient(environmentURL string, tokens auth.TokenProvider, timeout time.Duration, log logger.Logger) *Client {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimSuffix(environmentURL, "/"),
		tokens:     tokens,
		httpClient: &http.Client{Timeout: timeout},
		logger:     log,
	}
}

type valueEnvelope struct {
	Value []Row `json:"value"`
}

// Fetch runs a GET against a resolved collection endpoint and decodes
// the value array. The table name is only used for error reporting.
func (c *Client) Fetch(ctx context.Context, table, entitySet string, params url.Values) ([]Row, error) {
	body, err := c.get(ctx, apiPath+"/"+entitySet, params, "odata.include-annotations=*", table)
	if err != nil {
		return nil, err
	}

	var envelope valueEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, errors.NewFetchFailedError(table, http.StatusOK, fmt.Sprintf("decode error: %v", err))
	}
	return envelope.Value, nil
}

// FetchAll pages through a collection endpoint until top rows are
// collected or the server runs out, 50 rows per page.
func (c *Client) FetchAll(ctx context.Context, table, entitySet string, top int) ([]Row, error) {
	var results []Row
	skip := 0

	for len(results) < top {
		params := url.Values{}
		page := top - len(results)
		if page > 50 {
			page = 50
		}
		params.Set("$top", fmt.Sprintf("%d", page))
		params.Set("$skip", fmt.Sprintf("%d", skip))

		body, err := c.get(ctx, apiPath+"/"+entitySet, params, "odata.maxpagesize=50", table)
		if err != nil {
			return results, err
		}

		var envelope valueEnvelope
		if err := json.Unmarshal(body, &envelope); err != nil {
			return results, errors.NewFetchFailedError(table, http.StatusOK, fmt.Sprintf("decode error: %v", err))
		}
		if len(envelope.Value) == 0 {
			break
		}
		results = append(results, envelope.Value...)
		skip += len(envelope.Value)
	}

	if len(results) > top {
		results = results[:top]
	}
	return results, nil
}

// entityDefinition is the subset of EntityDefinitions we read.
type entityDefinition struct {
	LogicalName   string `json:"LogicalName"`
	EntitySetName string `json:"EntitySetName"`
	SchemaName    string `json:"SchemaName"`
}

// attributeDefinition is the subset of attribute metadata we read.
type attributeDefinition struct {
	LogicalName   string `json:"LogicalName"`
	AttributeType string `json:"AttributeType"`
}

// entityDefinitionExact looks up a table's entity set name by exact
// logical name.
func (c *Client) entityDefinitionExact(ctx context.Context, table string) (string, error) {
	path := fmt.Sprintf("%s/EntityDefinitions(LogicalName='%s')", apiPath, table)
	params := url.Values{}
	params.Set("$select", "LogicalName,EntitySetName,SchemaName")

	body, err := c.get(ctx, path, params, "", table)
	if err != nil {
		return "", err
	}

	var def entityDefinition
	if err := json.Unmarshal(body, &def); err != nil {
		return "", errors.NewMetadataUnavailableError(table, err)
	}
	return def.EntitySetName, nil
}

// entityDefinitionSearch falls back to a contains match over logical
// and schema names, accepting the first definition whose logical name
// equals or contains the queried identifier.
func (c *Client) entityDefinitionSearch(ctx context.Context, table string) (string, error) {
	lower := strings.ToLower(table)
	params := url.Values{}
	params.Set("$select", "LogicalName,EntitySetName,SchemaName")
	params.Set("$filter", fmt.Sprintf(
		"contains(tolower(LogicalName),'%s') or contains(tolower(SchemaName),'%s')", lower, lower))

	body, err := c.get(ctx, apiPath+"/EntityDefinitions", params, "", table)
	if err != nil {
		return "", err
	}

	var envelope struct {
		Value []entityDefinition `json:"value"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return "", errors.NewMetadataUnavailableError(table, err)
	}

	for _, def := range envelope.Value {
		logical := strings.ToLower(def.LogicalName)
		if def.EntitySetName != "" && (logical == lower || strings.Contains(logical, lower)) {
			return def.EntitySetName, nil
		}
	}
	return "", nil
}

// attributes fetches the attribute name/type list for a table.
func (c *Client) attributes(ctx context.Context, table string) ([]attributeDefinition, error) {
	path := fmt.Sprintf("%s/EntityDefinitions(LogicalName='%s')/Attributes", apiPath, table)
	params := url.Values{}
	params.Set("$select", "LogicalName,AttributeType")

	body, err := c.get(ctx, path, params, "", table)
	if err != nil {
		return nil, err
	}

	var envelope struct {
		Value []attributeDefinition `json:"value"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, errors.NewMetadataUnavailableError(table, err)
	}
	return envelope.Value, nil
}

// get issues one authenticated OData GET and returns the body.
func (c *Client) get(ctx context.Context, path string, params url.Values, prefer, table string) ([]byte, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}
	if token == "" {
		return nil, errors.NewAuthUnavailableError("no access token available")
	}

	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("OData-MaxVersion", "4.0")
	req.Header.Set("OData-Version", "4.0")
	if prefer != "" {
		req.Header.Set("Prefer", prefer)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.NewFetchFailedError(table, 0, err.Error())
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.NewFetchFailedError(table, resp.StatusCode, fmt.Sprintf("read error: %v", err))
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return body, nil
	case resp.StatusCode == http.StatusNotFound:
		return nil, errors.NewTableNotFoundError(table)
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, errors.NewAuthUnavailableError(fmt.Sprintf("status 401: %s", truncate(string(body), 200)))
	default:
		return nil, errors.NewFetchFailedError(table, resp.StatusCode, truncate(string(body), 200))
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
