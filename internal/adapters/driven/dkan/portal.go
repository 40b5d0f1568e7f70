package dkan

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/custodia-labs/dkansync/internal/core/domain"
	"github.com/custodia-labs/dkansync/internal/core/ports/driven"
	"github.com/custodia-labs/dkansync/internal/logger"
)

// Ensure Client implements the portal ports.
var (
	_ driven.Portal            = (*Client)(nil)
	_ driven.VocabularyFetcher = (*Client)(nil)
)

// API paths.
const (
	pathLogin        = "/api/dataset/user/login"
	pathSessionToken = "/services/session/token"
	pathNodes        = "/api/dataset/node"
	pathPackageList  = "/api/3/action/current_package_list_with_resources"
	pathPackageShow  = "/api/3/action/package_show"
	pathTaxonomy     = "/admin/structure/taxonomy/"

	// packageListLimit covers every package of a municipal portal.
	packageListLimit = "10000"
)

// actionResponse is the envelope of the CKAN-compatible API.
type actionResponse struct {
	Success bool            `json:"success"`
	Result  json.RawMessage `json:"result"`
	Error   any             `json:"error"`
}

// Login opens an authenticated session with the configured account.
// Returns domain.ErrAuthInvalid if the portal rejects the credentials.
func (c *Client) Login(ctx context.Context) error {
	if c.cfg.Username == "" || c.cfg.Password == "" {
		return fmt.Errorf("%w: username and password required", domain.ErrAuthInvalid)
	}

	body, err := c.send(ctx, http.MethodPost, pathLogin, map[string]string{
		"username": c.cfg.Username,
		"password": c.cfg.Password,
	})
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotAcceptable {
		// the cookie jar already holds a session
		logger.Debug("Already logged in: %s", apiErr.Message)
		body, err = nil, nil
	}
	if err != nil {
		return fmt.Errorf("login as %s: %w", c.cfg.Username, err)
	}

	var resp struct {
		Token string `json:"token"`
	}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &resp); err != nil {
			return fmt.Errorf("decode login response: %w", err)
		}
	}
	if resp.Token == "" {
		token, err := c.do(ctx, http.MethodGet, c.endpoint(pathSessionToken, nil), nil, "")
		if err != nil {
			return fmt.Errorf("session token: %w", err)
		}
		resp.Token = strings.TrimSpace(string(token))
	}

	c.session.mu.Lock()
	c.session.token = resp.Token
	c.session.loggedIn = true
	c.session.mu.Unlock()

	logger.Debug("DKAN login: %s @ %s", c.cfg.Username, c.BaseURL())
	return nil
}

// ensureSession logs in once before the first write.
func (c *Client) ensureSession(ctx context.Context) error {
	c.session.mu.Lock()
	loggedIn := c.session.loggedIn
	c.session.mu.Unlock()
	if loggedIn {
		return nil
	}
	return c.Login(ctx)
}

// ListPackages returns every package with its resources.
func (c *Client) ListPackages(ctx context.Context) ([]domain.Document, error) {
	result, err := c.action(ctx, pathPackageList, url.Values{"limit": {packageListLimit}})
	if err != nil {
		return nil, fmt.Errorf("list packages: %w", err)
	}
	return decodePackages(result)
}

// FetchPackage returns one package by uuid or name.
func (c *Client) FetchPackage(ctx context.Context, id string) (domain.Document, error) {
	result, err := c.action(ctx, pathPackageShow, url.Values{"id": {id}})
	if err != nil {
		return nil, fmt.Errorf("fetch package %s: %w", id, err)
	}
	packages, err := decodePackages(result)
	if err != nil {
		return nil, fmt.Errorf("fetch package %s: %w", id, err)
	}
	if len(packages) == 0 {
		return nil, fmt.Errorf("package %s: %w", id, domain.ErrNotFound)
	}
	return packages[0], nil
}

func (c *Client) action(ctx context.Context, path string, query url.Values) (json.RawMessage, error) {
	var resp actionResponse
	if err := c.getJSON(ctx, path, query, &resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, &APIError{
			StatusCode: http.StatusOK,
			Message:    fmt.Sprint(resp.Error),
			URL:        c.endpoint(path, query),
		}
	}
	return resp.Result, nil
}

// decodePackages accepts a package, a list of packages, or the list
// wrapped in another list as DKAN returns it.
func decodePackages(raw json.RawMessage) ([]domain.Document, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	if raw[0] == '{' {
		var doc domain.Document
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("decode package: %w", err)
		}
		return []domain.Document{doc}, nil
	}

	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("decode package list: %w", err)
	}
	var packages []domain.Document
	for _, item := range items {
		docs, err := decodePackages(item)
		if err != nil {
			return nil, err
		}
		packages = append(packages, docs...)
	}
	return packages, nil
}

// FetchNode returns the node document for a node id.
func (c *Client) FetchNode(ctx context.Context, nid string) (domain.Document, error) {
	var node domain.Document
	if err := c.getJSON(ctx, nodePath(nid)+".json", nil, &node); err != nil {
		return nil, fmt.Errorf("fetch node %s: %w", nid, err)
	}
	if node == nil {
		return nil, fmt.Errorf("node %s: %w", nid, domain.ErrNotFound)
	}
	return node, nil
}

// FindNodeIDByPackageID discovers the node id of a package uuid.
func (c *Client) FindNodeIDByPackageID(ctx context.Context, packageID string) (string, error) {
	nodes, err := c.listNodes(ctx, url.Values{"parameters[uuid]": {packageID}})
	if err != nil {
		return "", fmt.Errorf("find node of package %s: %w", packageID, err)
	}
	for _, node := range nodes {
		if nid := domain.ScalarString(node["nid"]); nid != "" {
			return nid, nil
		}
	}
	return "", fmt.Errorf("node of package %s: %w", packageID, domain.ErrNotFound)
}

func (c *Client) listNodes(ctx context.Context, query url.Values) ([]domain.Document, error) {
	var nodes []domain.Document
	if err := c.getJSON(ctx, pathNodes+".json", query, &nodes); err != nil {
		return nil, err
	}
	return nodes, nil
}

// CreateNode creates a node and returns its id.
func (c *Client) CreateNode(ctx context.Context, doc domain.Document) (string, error) {
	if err := c.ensureSession(ctx); err != nil {
		return "", err
	}
	body, err := c.send(ctx, http.MethodPost, pathNodes, doc)
	if err != nil {
		return "", fmt.Errorf("create node: %w", err)
	}

	var resp domain.Document
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("decode create response: %w", err)
	}
	nid := domain.ScalarString(resp["nid"])
	if nid == "" {
		return "", &APIError{StatusCode: http.StatusOK, Message: "response has no nid", URL: c.endpoint(pathNodes, nil)}
	}
	return nid, nil
}

// UpdateNode replaces the fields present in doc.
func (c *Client) UpdateNode(ctx context.Context, nid string, doc domain.Document) error {
	if err := c.ensureSession(ctx); err != nil {
		return err
	}
	if _, err := c.send(ctx, http.MethodPut, nodePath(nid), doc); err != nil {
		return fmt.Errorf("update node %s: %w", nid, err)
	}
	return nil
}

// DeleteNode removes a node.
func (c *Client) DeleteNode(ctx context.Context, nid string) error {
	if err := c.ensureSession(ctx); err != nil {
		return err
	}
	if _, err := c.send(ctx, http.MethodDelete, nodePath(nid), nil); err != nil {
		return fmt.Errorf("delete node %s: %w", nid, err)
	}
	return nil
}

// AttachFile uploads a local file into a file field of a node,
// replacing the previous file.
func (c *Client) AttachFile(ctx context.Context, nid, field, path string) error {
	if err := c.ensureSession(ctx); err != nil {
		return err
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("files[file]", filepath.Base(path))
	if err != nil {
		return fmt.Errorf("build upload: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return fmt.Errorf("read upload: %w", err)
	}
	_ = w.WriteField("field_name", field)
	_ = w.WriteField("attach", "0")
	if err := w.Close(); err != nil {
		return fmt.Errorf("build upload: %w", err)
	}

	endpoint := c.endpoint(nodePath(nid)+"/attach_file", nil)
	if _, err := c.do(ctx, http.MethodPost, endpoint, &buf, w.FormDataContentType()); err != nil {
		return fmt.Errorf("attach %s to node %s: %w", filepath.Base(path), nid, err)
	}
	logger.Debug("Uploaded %s to node %s", path, nid)
	return nil
}

func nodePath(nid string) string {
	return pathNodes + "/" + url.PathEscape(nid)
}
