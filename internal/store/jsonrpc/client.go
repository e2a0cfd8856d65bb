// Package jsonrpc implements store.Store over the Odoo JSON-RPC endpoint.
package jsonrpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/JonMunkholm/clodoo/internal/logging"
	"github.com/JonMunkholm/clodoo/internal/store"
)

// ErrLogin is returned when no configured credential pair is accepted.
var ErrLogin = errors.New("login failed")

// Options configures a connection.
type Options struct {
	URL      string
	Database string
	// Users and Passwords are tried in order until one pair logs in.
	Users     []string
	Passwords []string
	// Retries bounds the number of login attempts. Zero means one attempt
	// per credential pair.
	Retries    int
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Client is a logged-in connection to one database.
type Client struct {
	endpoint string
	db       string
	http     *http.Client
	seq      atomic.Int64

	uid      int64
	password string
	version  string
}

var _ store.Store = (*Client)(nil)

// RPCError is the error object returned by the server.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    struct {
		Name    string `json:"name"`
		Message string `json:"message"`
	} `json:"data"`
}

func (e *RPCError) Error() string {
	if e.Data.Message != "" {
		return fmt.Sprintf("rpc error %d: %s: %s", e.Code, e.Data.Name, e.Data.Message)
	}
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

type request struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  params `json:"params"`
	ID      int64  `json:"id"`
}

type params struct {
	Service string `json:"service"`
	Method  string `json:"method"`
	Args    []any  `json:"args"`
}

type response struct {
	Result json.RawMessage `json:"result"`
	Error  *RPCError       `json:"error"`
}

// Dial connects and logs in. Credential pairs are tried in order; the
// index wraps so a single password can serve several users.
func Dial(ctx context.Context, opts Options) (*Client, error) {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout == 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	c := &Client{
		endpoint: strings.TrimRight(opts.URL, "/") + "/jsonrpc",
		db:       opts.Database,
		http:     httpClient,
	}

	var versionInfo struct {
		ServerVersion string `json:"server_version"`
	}
	if err := c.call(ctx, "common", "version", nil, &versionInfo); err != nil {
		return nil, fmt.Errorf("connect %s: %w", opts.URL, err)
	}
	c.version = versionInfo.ServerVersion

	attempts := max(len(opts.Users), len(opts.Passwords), 1)
	if opts.Retries > 0 {
		attempts = opts.Retries
	}
	log := logging.FromContext(ctx)
	for i := range attempts {
		user := pick(opts.Users, i)
		pwd := pick(opts.Passwords, i)
		var raw json.RawMessage
		if err := c.call(ctx, "common", "login", []any{c.db, user, pwd}, &raw); err != nil {
			return nil, fmt.Errorf("login %s@%s: %w", user, c.db, err)
		}
		var uid int64
		if json.Unmarshal(raw, &uid) == nil && uid > 0 {
			c.uid = uid
			c.password = pwd
			log.Info("store connected", "url", opts.URL, "db", c.db, "user", user, "version", c.version)
			return c, nil
		}
		log.Debug("login rejected", "db", c.db, "user", user, "attempt", i+1)
	}
	return nil, fmt.Errorf("%s: %w", c.db, ErrLogin)
}

func pick(list []string, i int) string {
	if len(list) == 0 {
		return ""
	}
	return list[i%len(list)]
}

// ServerVersion returns the version string reported by the server.
func (c *Client) ServerVersion() string { return c.version }

// UID returns the logged-in user id.
func (c *Client) UID() int64 { return c.uid }

// Search implements store.Store.
func (c *Client) Search(ctx context.Context, model string, domain store.Domain, order string) ([]int64, error) {
	if domain == nil {
		domain = store.Domain{}
	}
	kw := map[string]any{}
	if order != "" {
		kw["order"] = order
	}
	var ids []int64
	if err := c.executeKW(ctx, model, "search", []any{domain}, kw, &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

// Read implements store.Store. Many-to-one pairs [id, "name"] are reduced
// to the id.
func (c *Client) Read(ctx context.Context, model string, ids []int64, fields ...string) ([]store.Record, error) {
	kw := map[string]any{}
	if len(fields) > 0 {
		kw["fields"] = fields
	}
	var rows []map[string]json.RawMessage
	if err := c.executeKW(ctx, model, "read", []any{ids}, kw, &rows); err != nil {
		return nil, err
	}
	if len(rows) < len(ids) {
		return nil, fmt.Errorf("%s%v: %w", model, ids, store.ErrNotFound)
	}
	out := make([]store.Record, len(rows))
	for i, row := range rows {
		rec := make(store.Record, len(row))
		for k, raw := range row {
			rec[k] = decodeValue(raw)
		}
		out[i] = rec
	}
	return out, nil
}

// Create implements store.Store.
func (c *Client) Create(ctx context.Context, model string, vals map[string]any) (int64, error) {
	var id int64
	if err := c.executeKW(ctx, model, "create", []any{vals}, nil, &id); err != nil {
		return 0, err
	}
	return id, nil
}

// Write implements store.Store.
func (c *Client) Write(ctx context.Context, model string, ids []int64, vals map[string]any) error {
	return c.executeKW(ctx, model, "write", []any{ids, vals}, nil, nil)
}

// Unlink implements store.Store.
func (c *Client) Unlink(ctx context.Context, model string, ids []int64) error {
	return c.executeKW(ctx, model, "unlink", []any{ids}, nil, nil)
}

// Execute implements store.Store.
func (c *Client) Execute(ctx context.Context, model, method string, args ...any) (any, error) {
	if args == nil {
		args = []any{}
	}
	var out any
	if err := c.executeKW(ctx, model, method, args, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) executeKW(ctx context.Context, model, method string, args []any, kw map[string]any, out any) error {
	if kw == nil {
		kw = map[string]any{}
	}
	callArgs := []any{c.db, c.uid, c.password, model, method, args, kw}
	if err := c.call(ctx, "object", "execute_kw", callArgs, out); err != nil {
		return fmt.Errorf("%s.%s: %w", model, method, err)
	}
	return nil
}

func (c *Client) call(ctx context.Context, service, method string, args []any, out any) error {
	if args == nil {
		args = []any{}
	}
	body, err := json.Marshal(request{
		JSONRPC: "2.0",
		Method:  "call",
		Params:  params{Service: service, Method: method, Args: args},
		ID:      c.seq.Add(1),
	})
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("http %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var r response
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if r.Error != nil {
		return r.Error
	}
	if out == nil || len(r.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(r.Result, out); err != nil {
		return fmt.Errorf("decode result: %w", err)
	}
	return nil
}

// decodeValue converts one field of a read result. Integers come back as
// int64 and many-to-one pairs are reduced to their id.
func decodeValue(raw json.RawMessage) any {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil
	}
	return normalize(v)
}

func normalize(v any) any {
	switch x := v.(type) {
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i
		}
		f, _ := x.Float64()
		return f
	case []any:
		for i := range x {
			x[i] = normalize(x[i])
		}
		if len(x) == 2 {
			if id, ok := x[0].(int64); ok {
				if _, ok := x[1].(string); ok {
					return id
				}
			}
		}
		return x
	}
	return v
}
