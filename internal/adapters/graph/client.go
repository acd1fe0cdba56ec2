// Package graph talks to a Microsoft Graph drive: it resolves paths to item
// ids, downloads and uploads workbooks, creates folders and sends mail.
package graph

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/okian/kpisync/internal/adapters/cache"
	"github.com/okian/kpisync/pkg/logger"
	"github.com/okian/kpisync/pkg/metrics"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// Defaults for the public Graph endpoints.
const (
	DefaultBaseURL = "https://graph.microsoft.com/v1.0"
	DefaultScope   = "https://graph.microsoft.com/.default"
	tokenURLFormat = "https://login.microsoftonline.com/%s/oauth2/v2.0/token"

	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	maxErrorBody    = 512
)

// Credentials identify the app registration and the drive it works on.
type Credentials struct {
	TenantID     string
	ClientID     string
	ClientSecret string
	DriveID      string
	// TokenURL overrides the tenant token endpoint.
	TokenURL string
}

// Validate reports missing fields.
func (c Credentials) Validate() error {
	var missing []string
	if c.TenantID == "" && c.TokenURL == "" {
		missing = append(missing, "tenant_id")
	}
	if c.ClientID == "" {
		missing = append(missing, "client_id")
	}
	if c.ClientSecret == "" {
		missing = append(missing, "client_secret")
	}
	if c.DriveID == "" {
		missing = append(missing, "drive_id")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingCredentials, strings.Join(missing, ", "))
	}
	return nil
}

func (c Credentials) tokenURL() string {
	if c.TokenURL != "" {
		return c.TokenURL
	}
	return fmt.Sprintf(tokenURLFormat, c.TenantID)
}

// Client is an authenticated drive client. The bearer token it obtains lives
// only as long as the Client, so build one per run.
type Client struct {
	base    *http.Client
	http    *http.Client
	baseURL string
	drive   string
	paths   cache.PathCache
	log     logger.Logger
}

// New builds a client that authenticates with the client-credentials grant.
func New(ctx context.Context, creds Credentials, opts ...Option) (*Client, error) {
	if err := creds.Validate(); err != nil {
		return nil, err
	}
	g := &Client{
		base:    &http.Client{Timeout: 60 * time.Second},
		baseURL: DefaultBaseURL,
		drive:   creds.DriveID,
		log:     logger.Get().Named("graph"),
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.paths == nil {
		g.paths = cache.New()
	}
	g.baseURL = strings.TrimRight(g.baseURL, "/")

	conf := clientcredentials.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		TokenURL:     creds.tokenURL(),
		Scopes:       []string{DefaultScope},
	}
	tokenCtx := context.WithValue(ctx, oauth2.HTTPClient, g.base)
	g.http = oauth2.NewClient(tokenCtx, oauth2.ReuseTokenSource(nil, conf.TokenSource(tokenCtx)))
	g.http.Timeout = g.base.Timeout
	return g, nil
}

// Item is the subset of a drive item the service needs.
type Item struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// escapePath percent-encodes every segment of a drive path.
func escapePath(p string) string {
	p = "/" + strings.Trim(p, "/")
	segs := strings.Split(p, "/")
	for i, s := range segs {
		segs[i] = url.PathEscape(s)
	}
	return strings.Join(segs, "/")
}

func (g *Client) itemURL(p string) string {
	return g.baseURL + "/drives/" + url.PathEscape(g.drive) + "/root:" + escapePath(p)
}

// Resolve returns the item id at path. Hits are cached; ErrNotFound is not.
func (g *Client) Resolve(ctx context.Context, p string) (string, error) {
	return g.paths.GetOrResolve(ctx, p, g.lookup)
}

// Forget drops the cached id of path so the next Resolve asks the drive.
func (g *Client) Forget(p string) {
	g.paths.Invalidate(p)
}

func (g *Client) lookup(ctx context.Context, p string) (string, error) {
	var item Item
	if err := g.doJSON(ctx, "resolve", http.MethodGet, g.itemURL(p), nil, http.StatusOK, &item); err != nil {
		return "", fmt.Errorf("resolve %s: %w", p, err)
	}
	return item.ID, nil
}

// Download fetches the content of an item.
func (g *Client) Download(ctx context.Context, id string) ([]byte, error) {
	u := g.baseURL + "/drives/" + url.PathEscape(g.drive) + "/items/" + url.PathEscape(id) + "/content"
	resp, err := g.do(ctx, "download", http.MethodGet, u, "", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if err := check(resp, http.StatusOK); err != nil {
		return nil, fmt.Errorf("download %s: %w", id, err)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("download %s: read body: %w", id, err)
	}
	return data, nil
}

// Upload creates or overwrites the file at path and returns its id.
func (g *Client) Upload(ctx context.Context, p string, data []byte) (string, error) {
	resp, err := g.do(ctx, "upload", http.MethodPut, g.itemURL(p)+":/content", xlsxContentType, bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if err := check(resp, http.StatusOK, http.StatusCreated); err != nil {
		return "", fmt.Errorf("upload %s: %w", p, err)
	}
	var item Item
	if err := json.NewDecoder(resp.Body).Decode(&item); err == nil && item.ID != "" {
		g.paths.Put(p, item.ID)
	}
	g.log.Debug(ctx, "uploaded", logger.String("path", p), logger.Int("bytes", len(data)))
	return item.ID, nil
}

// CreateFolder makes sure a folder and its parents exist and returns its id.
func (g *Client) CreateFolder(ctx context.Context, p string) (string, error) {
	p = "/" + strings.Trim(p, "/")
	if p == "/" {
		return "root", nil
	}
	id, err := g.Resolve(ctx, p)
	if err == nil {
		return id, nil
	}
	if !isNotFound(err) {
		return "", err
	}

	parent := path.Dir(p)
	if _, err := g.CreateFolder(ctx, parent); err != nil {
		return "", err
	}
	children := g.baseURL + "/drives/" + url.PathEscape(g.drive) + "/root/children"
	if parent != "/" {
		children = g.itemURL(parent) + ":/children"
	}
	body := map[string]any{
		"name":                              path.Base(p),
		"folder":                            map[string]any{},
		"@microsoft.graph.conflictBehavior": "fail",
	}
	var item Item
	err = g.doJSON(ctx, "create_folder", http.MethodPost, children, body, http.StatusCreated, &item)
	if errors.Is(err, ErrConflict) {
		// Created concurrently; take whatever is there now.
		return g.lookup(ctx, p)
	}
	if err != nil {
		return "", fmt.Errorf("create folder %s: %w", p, err)
	}
	g.paths.Put(p, item.ID)
	g.log.Info(ctx, "folder created", logger.String("path", p))
	return item.ID, nil
}

// Mail is an HTML message.
type Mail struct {
	From    string
	To      []string
	Subject string
	HTML    string
}

// SendMail posts a message on behalf of the sender mailbox.
func (g *Client) SendMail(ctx context.Context, m Mail) error {
	recipients := make([]map[string]any, 0, len(m.To))
	for _, to := range m.To {
		recipients = append(recipients, map[string]any{"emailAddress": map[string]string{"address": to}})
	}
	body := map[string]any{
		"message": map[string]any{
			"subject":      m.Subject,
			"body":         map[string]string{"contentType": "HTML", "content": m.HTML},
			"toRecipients": recipients,
		},
		"saveToSentItems": "true",
	}
	u := g.baseURL + "/users/" + url.PathEscape(m.From) + "/sendMail"
	if err := g.doJSON(ctx, "send_mail", http.MethodPost, u, body, http.StatusAccepted, nil); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	return nil
}

func (g *Client) doJSON(ctx context.Context, op, method, u string, in any, want int, out any) error {
	var body io.Reader
	contentType := ""
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s request: %w", op, err)
		}
		body = bytes.NewReader(data)
		contentType = "application/json"
	}
	resp, err := g.do(ctx, op, method, u, contentType, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := check(resp, want); err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", op, err)
	}
	return nil
}

func (g *Client) do(ctx context.Context, op, method, u, contentType string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", op, err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	start := time.Now()
	resp, err := g.http.Do(req)
	latency := float64(time.Since(start).Milliseconds())
	if err != nil {
		metrics.RecordGraphRequest(op, "error", latency)
		return nil, fmt.Errorf("%s request: %w", op, err)
	}
	metrics.RecordGraphRequest(op, strconv.Itoa(resp.StatusCode), latency)
	return resp, nil
}

// check maps a response status to a package error.
func check(resp *http.Response, want ...int) error {
	for _, w := range want {
		if resp.StatusCode == w {
			return nil
		}
	}
	switch resp.StatusCode {
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusConflict:
		return ErrConflict
	}
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return fmt.Errorf("%w: status %d: %s", ErrUnexpectedStatus, resp.StatusCode, strings.TrimSpace(string(snippet)))
}

func isNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
