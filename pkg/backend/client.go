package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	pkgerrors "github.com/angelmondragon/purchasing-console/pkg/errors"
	"github.com/angelmondragon/purchasing-console/pkg/metrics"
	"github.com/angelmondragon/purchasing-console/pkg/types"
)

const (
	defaultTimeout              = 10 * time.Second
	responseBodyReadLimit int64 = 1024

	opListSupplierProducts  = "list_supplier_products"
	opGetLastCost           = "get_last_cost"
	opListSupplierCatalog   = "list_supplier_catalog"
	opCreateSupplierCatalog = "create_supplier_catalog"
	opUpdateSupplierCatalog = "update_supplier_catalog"
	opCreatePurchaseOrder   = "create_purchase_order"
	opListVariants          = "list_variants"
	opGetVariantsByIDs      = "get_variants_by_ids"
)

var errBaseURLRequired = errors.New("purchasing backend base url is required")

// Client talks to the platform REST service that owns suppliers, catalogs and purchase orders.
type Client struct {
	httpClient *http.Client
	baseURL    string
	metrics    *metrics.BackendMetrics
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithTimeout sets the timeout of the default HTTP client.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient = &http.Client{Timeout: timeout}
		}
	}
}

// WithMetrics records per-operation request metrics.
func WithMetrics(m *metrics.BackendMetrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// NewClient builds a backend client rooted at baseURL.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmed == "" {
		return nil, errBaseURLRequired
	}

	client := &Client{
		baseURL:    trimmed,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

// ListSupplierProducts returns the base catalog: every variant the supplier has ever supplied.
func (c *Client) ListSupplierProducts(ctx context.Context, scope Scope, supplierID string) ([]SupplierProduct, error) {
	if strings.TrimSpace(supplierID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "supplier id is required")
	}
	path := fmt.Sprintf("/purchases/suppliers/%s/products", url.PathEscape(supplierID))
	entries, err := call[[]SupplierProduct](ctx, c, opListSupplierProducts, http.MethodGet, path, scopeQuery(scope), scope, nil)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []SupplierProduct{}
	}
	return entries, nil
}

// GetLastCost returns the most recent recorded transaction cost for the pair.
func (c *Client) GetLastCost(ctx context.Context, scope Scope, supplierID, variantID string) (LastCost, error) {
	if strings.TrimSpace(supplierID) == "" || strings.TrimSpace(variantID) == "" {
		return LastCost{}, pkgerrors.New(pkgerrors.CodeValidation, "supplier id and variant id are required")
	}
	path := fmt.Sprintf("/purchases/suppliers/%s/products/%s/last-cost", url.PathEscape(supplierID), url.PathEscape(variantID))
	result, err := call[*LastCost](ctx, c, opGetLastCost, http.MethodGet, path, scopeQuery(scope), scope, nil)
	if err != nil {
		return LastCost{}, err
	}
	if result == nil {
		return LastCost{}, nil
	}
	return *result, nil
}

// ListSupplierCatalog returns the manual override records for the supplier.
func (c *Client) ListSupplierCatalog(ctx context.Context, scope Scope, supplierID string) ([]CatalogOverride, error) {
	if strings.TrimSpace(supplierID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "supplier id is required")
	}
	query := scopeQuery(scope)
	query.Set("supplierId", supplierID)
	overrides, err := call[[]CatalogOverride](ctx, c, opListSupplierCatalog, http.MethodGet, "/purchases/supplier-catalog", query, scope, nil)
	if err != nil {
		return nil, err
	}
	if overrides == nil {
		overrides = []CatalogOverride{}
	}
	return overrides, nil
}

// CreateSupplierCatalog creates an override for the supplier.
func (c *Client) CreateSupplierCatalog(ctx context.Context, scope Scope, supplierID string, fields OverrideFields) (*CatalogOverride, error) {
	body := fields.wire()
	body["supplierId"] = supplierID
	body["OrganizationId"] = scope.OrganizationID
	body["companyId"] = scope.CompanyID
	return call[*CatalogOverride](ctx, c, opCreateSupplierCatalog, http.MethodPost, "/purchases/supplier-catalog", nil, scope, body)
}

// UpdateSupplierCatalog patches an existing override by id.
func (c *Client) UpdateSupplierCatalog(ctx context.Context, scope Scope, overrideID string, fields OverrideFields) (*CatalogOverride, error) {
	if strings.TrimSpace(overrideID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "override id is required")
	}
	path := "/purchases/supplier-catalog/" + url.PathEscape(overrideID)
	return call[*CatalogOverride](ctx, c, opUpdateSupplierCatalog, http.MethodPatch, path, scopeQuery(scope), scope, fields.wire())
}

// CreatePurchaseOrder submits a purchase order.
func (c *Client) CreatePurchaseOrder(ctx context.Context, scope Scope, input CreateOrderInput) (*PurchaseOrder, error) {
	payload := createOrderWire{
		OrganizationID: scope.OrganizationID,
		CompanyID:      scope.CompanyID,
		SupplierID:     input.SupplierID,
		WarehouseID:    input.WarehouseID,
		Lines:          make([]orderLineWire, 0, len(input.Lines)),
	}
	for _, line := range input.Lines {
		payload.Lines = append(payload.Lines, orderLineWire{
			VariantID: line.VariantID,
			Qty:       number(line.Qty),
			UnitCost:  number(line.UnitCost),
			Currency:  line.Currency,
		})
	}
	return call[*PurchaseOrder](ctx, c, opCreatePurchaseOrder, http.MethodPost, "/purchases/orders", nil, scope, payload)
}

// ListVariants lists variants available to the scope, optionally filtered by a search term.
func (c *Client) ListVariants(ctx context.Context, scope Scope, search string, limit int) ([]Variant, error) {
	query := scopeQuery(scope)
	if trimmed := strings.TrimSpace(search); trimmed != "" {
		query.Set("search", trimmed)
	}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	variants, err := call[[]Variant](ctx, c, opListVariants, http.MethodGet, "/products/variants", query, scope, nil)
	if err != nil {
		return nil, err
	}
	if variants == nil {
		variants = []Variant{}
	}
	return variants, nil
}

// GetVariantsByIDs resolves a batch of variant ids in a single request.
func (c *Client) GetVariantsByIDs(ctx context.Context, scope Scope, ids []string) ([]Variant, error) {
	if len(ids) == 0 {
		return []Variant{}, nil
	}
	query := scopeQuery(scope)
	query.Set("ids", strings.Join(ids, ","))
	variants, err := call[[]Variant](ctx, c, opGetVariantsByIDs, http.MethodGet, "/products/variants", query, scope, nil)
	if err != nil {
		return nil, err
	}
	if variants == nil {
		variants = []Variant{}
	}
	return variants, nil
}

func scopeQuery(scope Scope) url.Values {
	query := url.Values{}
	query.Set("OrganizationId", scope.OrganizationID)
	query.Set("companyId", scope.CompanyID)
	return query
}

func call[T any](ctx context.Context, c *Client, op, method, path string, query url.Values, scope Scope, body any) (T, error) {
	var zero T
	if c == nil {
		return zero, pkgerrors.New(pkgerrors.CodeDependency, "purchasing backend client not configured")
	}

	start := time.Now()
	result, err := c.do(ctx, method, path, query, scope, body)
	c.metrics.ObserveDuration(op, time.Since(start))
	if err != nil {
		c.metrics.IncFailure(op)
		return zero, err
	}
	defer func() { _ = result.Body.Close() }()

	var envelope types.BackendEnvelope[T]
	if err := json.NewDecoder(result.Body).Decode(&envelope); err != nil {
		c.metrics.IncFailure(op)
		return zero, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode "+op+" response")
	}
	if envelope.Failed() {
		c.metrics.IncFailure(op)
		return zero, pkgerrors.Wrap(pkgerrors.CodeDependency, &pkgerrors.UpstreamError{
			Status:  result.StatusCode,
			Method:  method,
			Path:    path,
			Message: envelope.Message,
		}, op+" rejected by backend")
	}

	c.metrics.IncSuccess(op)
	return envelope.Result, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, scope Scope, body any) (*http.Response, error) {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "marshal backend request")
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build backend request")
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if scope.Token != "" {
		req.Header.Set("Authorization", scope.Token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute backend request")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer func() { _ = resp.Body.Close() }()
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
		upstream := &pkgerrors.UpstreamError{
			Status:  resp.StatusCode,
			Method:  method,
			Path:    path,
			Message: upstreamMessage(msg),
		}
		return nil, pkgerrors.Wrap(codeForStatus(resp.StatusCode), upstream, upstreamPublicMessage(resp.StatusCode, upstream.Message))
	}

	return resp, nil
}

func codeForStatus(status int) pkgerrors.Code {
	switch status {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return pkgerrors.CodeValidation
	case http.StatusUnauthorized:
		return pkgerrors.CodeUnauthorized
	case http.StatusForbidden:
		return pkgerrors.CodeForbidden
	case http.StatusNotFound:
		return pkgerrors.CodeNotFound
	case http.StatusConflict:
		return pkgerrors.CodeConflict
	default:
		return pkgerrors.CodeDependency
	}
}

func upstreamPublicMessage(status int, message string) string {
	if message != "" && status >= 400 && status < 500 {
		return message
	}
	return fmt.Sprintf("purchasing backend returned status %d", status)
}

// upstreamMessage prefers the envelope message when the error body is one.
func upstreamMessage(raw []byte) string {
	var envelope types.BackendEnvelope[json.RawMessage]
	if err := json.Unmarshal(raw, &envelope); err == nil && envelope.Message != "" {
		return envelope.Message
	}
	return strings.TrimSpace(string(raw))
}
