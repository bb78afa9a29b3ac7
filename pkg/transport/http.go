package transport

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/sw33tLie/ghrenew/pkg/whttp"
	"github.com/tidwall/gjson"
)

const DefaultBaseURL = "https://greathost.es"

// HTTPConfig configures an HTTPTransport.
type HTTPConfig struct {
	BaseURL      string
	Proxy        string
	Timeout      time.Duration
	RetryMax     int // GET only; other methods are sent once
	RecorderSize int
}

// HTTPTransport talks to the panel with a plain cookie-based session.
type HTTPTransport struct {
	baseURL   string
	client    *retryablehttp.Client
	once      *retryablehttp.Client // never retries; used for non-GET requests
	rec       *Recorder
	csrfToken string
}

func NewHTTPTransport(cfg HTTPConfig) (*HTTPTransport, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	client, err := whttp.NewClient(whttp.ClientOptions{
		Proxy:    cfg.Proxy,
		Timeout:  cfg.Timeout,
		RetryMax: cfg.RetryMax,
		Jar:      jar,
	})
	if err != nil {
		return nil, err
	}
	once, err := whttp.NewClient(whttp.ClientOptions{
		Proxy:   cfg.Proxy,
		Timeout: cfg.Timeout,
		Jar:     jar,
	})
	if err != nil {
		return nil, err
	}

	return &HTTPTransport{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client:  client,
		once:    once,
		rec:     NewRecorder(cfg.RecorderSize),
	}, nil
}

// Login opens the login form, submits the credentials and checks that the
// resulting session can read the server list.
func (t *HTTPTransport) Login(ctx context.Context, creds Credentials) error {
	if creds.Email == "" || creds.Password == "" {
		return fmt.Errorf("%w: email or password not configured", ErrLoginFailed)
	}
	loginURL := t.baseURL + "/login"

	page, err := whttp.SendHTTPRequest(ctx, &whttp.WHTTPReq{
		Method: "GET",
		URL:    loginURL,
		Headers: []whttp.WHTTPHeader{
			{Name: "Accept", Value: "text/html,application/xhtml+xml"},
		},
	}, t.client)
	if err != nil {
		return fmt.Errorf("could not load login page: %w", err)
	}

	field, token := extractCSRFToken(page.Body)
	t.csrfToken = token

	form := url.Values{}
	form.Set("email", creds.Email)
	form.Set("password", creds.Password)
	if field != "" && token != "" {
		form.Set(field, token)
	}

	headers := []whttp.WHTTPHeader{
		{Name: "Content-Type", Value: "application/x-www-form-urlencoded"},
		{Name: "Origin", Value: t.baseURL},
		{Name: "Referer", Value: loginURL},
	}
	if token != "" {
		headers = append(headers, whttp.WHTTPHeader{Name: "X-CSRF-TOKEN", Value: token})
	}

	res, err := whttp.SendHTTPRequest(ctx, &whttp.WHTTPReq{
		Method:  "POST",
		URL:     loginURL,
		Headers: headers,
		Body:    form.Encode(),
	}, t.once)
	if err != nil {
		return fmt.Errorf("could not submit login form: %w", err)
	}
	if res.StatusCode >= 400 {
		return fmt.Errorf("%w: login returned status %d", ErrLoginFailed, res.StatusCode)
	}

	probe, err := t.Call(ctx, http.MethodGet, "/api/servers")
	if err != nil {
		return fmt.Errorf("could not verify session: %w", err)
	}
	if !gjson.ValidBytes(probe.Body) {
		return fmt.Errorf("%w: session check got status %d (%s)", ErrLoginFailed, probe.StatusCode, probe.ContentType)
	}
	if root := gjson.ParseBytes(probe.Body); !root.IsArray() && !root.Get("servers").Exists() {
		return fmt.Errorf("%w: session check got status %d (%s)", ErrLoginFailed, probe.StatusCode, probe.ContentType)
	}
	return nil
}

func (t *HTTPTransport) Call(ctx context.Context, method, path string) (Exchange, error) {
	target := joinURL(t.baseURL, path)
	headers := []whttp.WHTTPHeader{
		{Name: "Accept", Value: "application/json, text/plain, */*"},
		{Name: "X-Requested-With", Value: "XMLHttpRequest"},
		{Name: "Referer", Value: t.baseURL + "/dashboard"},
	}
	if t.csrfToken != "" && method != http.MethodGet {
		headers = append(headers, whttp.WHTTPHeader{Name: "X-CSRF-TOKEN", Value: t.csrfToken})
	}

	client := t.client
	if method != http.MethodGet {
		client = t.once
	}
	res, err := whttp.SendHTTPRequest(ctx, &whttp.WHTTPReq{
		Method:  method,
		URL:     target,
		Headers: headers,
	}, client)
	if err != nil {
		return Exchange{}, fmt.Errorf("%s %s: %w", method, path, err)
	}

	ex := Exchange{
		URL:         target,
		Method:      method,
		StatusCode:  res.StatusCode,
		ContentType: res.ContentType,
		Body:        res.Body,
		ObservedAt:  time.Now().UTC(),
	}
	t.rec.Record(ex)
	return ex, nil
}

func (t *HTTPTransport) RecentExchanges(limit int) []Exchange {
	return t.rec.Recent(limit)
}

// Client exposes the underlying client so other lookups can share the
// session and proxy settings.
func (t *HTTPTransport) Client() *retryablehttp.Client {
	return t.client
}

func (t *HTTPTransport) Close() error {
	t.client.HTTPClient.CloseIdleConnections()
	t.once.HTTPClient.CloseIdleConnections()
	return nil
}

// extractCSRFToken looks for a CSRF token in the login page. It returns the
// form field name (if the token came from a hidden input) and the value.
func extractCSRFToken(body []byte) (string, string) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", ""
	}

	field, token := "", ""
	doc.Find("input[type='hidden']").EachWithBreak(func(i int, s *goquery.Selection) bool {
		name, _ := s.Attr("name")
		switch strings.ToLower(name) {
		case "_token", "csrf_token", "_csrf", "authenticity_token":
			if v, ok := s.Attr("value"); ok && v != "" {
				field, token = name, v
				return false
			}
		}
		return true
	})
	if token != "" {
		return field, token
	}

	doc.Find("meta").EachWithBreak(func(i int, s *goquery.Selection) bool {
		name, _ := s.Attr("name")
		if name == "csrf-token" || name == "csrf_token" {
			if v, ok := s.Attr("content"); ok && v != "" {
				token = v
				return false
			}
		}
		return true
	})
	return "", token
}
