package transport

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/tidwall/gjson"
)

// BrowserConfig configures a BrowserTransport.
type BrowserConfig struct {
	BaseURL      string
	Proxy        string
	ChromeBin    string
	Headless     bool
	Timeout      time.Duration
	RecorderSize int
}

// BrowserTransport drives a real Chrome page. API calls are issued with
// fetch() from inside the logged-in page, and every /api/ response the page
// receives is copied into the recorder from the CDP network domain.
type BrowserTransport struct {
	baseURL string
	timeout time.Duration
	rec     *Recorder

	launch  *launcher.Launcher
	browser *rod.Browser
	page    *rod.Page
	cancel  context.CancelFunc

	mu      sync.Mutex
	pending map[proto.NetworkRequestID]Exchange
}

const fetchJS = `(url, method) => fetch(url, {
	method: method,
	credentials: 'same-origin',
	headers: {'Accept': 'application/json'}
}).then(async r => JSON.stringify({
	url: r.url,
	status: r.status,
	type: r.headers.get('content-type') || '',
	body: await r.text()
}))`

func NewBrowserTransport(ctx context.Context, cfg BrowserConfig) (*BrowserTransport, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	l := launcher.New().Headless(cfg.Headless).Set("no-sandbox")
	if cfg.ChromeBin != "" {
		l = l.Bin(cfg.ChromeBin)
	}
	if cfg.Proxy != "" {
		l = l.Proxy(cfg.Proxy)
	}
	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch chrome: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	browser := rod.New().ControlURL(controlURL).Context(runCtx)
	if err := browser.Connect(); err != nil {
		cancel()
		l.Kill()
		return nil, fmt.Errorf("connect to chrome: %w", err)
	}

	page, err := browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		cancel()
		_ = browser.Close()
		l.Kill()
		return nil, fmt.Errorf("create page: %w", err)
	}

	t := &BrowserTransport{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		timeout: cfg.Timeout,
		rec:     NewRecorder(cfg.RecorderSize),
		launch:  l,
		browser: browser,
		page:    page,
		cancel:  cancel,
		pending: make(map[proto.NetworkRequestID]Exchange),
	}
	if err := t.watchNetwork(); err != nil {
		_ = t.Close()
		return nil, err
	}
	return t, nil
}

// watchNetwork copies API responses seen by the page into the recorder.
func (t *BrowserTransport) watchNetwork() error {
	if err := (proto.NetworkEnable{}).Call(t.page); err != nil {
		return fmt.Errorf("enable network domain: %w", err)
	}

	wait := t.page.EachEvent(
		func(ev *proto.NetworkRequestWillBeSent) {
			if ev.Request == nil || !strings.Contains(ev.Request.URL, "/api/") {
				return
			}
			t.mu.Lock()
			t.pending[ev.RequestID] = Exchange{URL: ev.Request.URL, Method: ev.Request.Method}
			t.mu.Unlock()
		},
		func(ev *proto.NetworkResponseReceived) {
			if ev.Response == nil {
				return
			}
			t.mu.Lock()
			if ex, ok := t.pending[ev.RequestID]; ok {
				ex.StatusCode = ev.Response.Status
				ex.ContentType = ev.Response.MIMEType
				t.pending[ev.RequestID] = ex
			}
			t.mu.Unlock()
		},
		func(ev *proto.NetworkLoadingFinished) {
			t.mu.Lock()
			ex, ok := t.pending[ev.RequestID]
			delete(t.pending, ev.RequestID)
			t.mu.Unlock()
			if !ok {
				return
			}
			go t.captureBody(ev.RequestID, ex)
		},
		func(ev *proto.NetworkLoadingFailed) {
			t.mu.Lock()
			delete(t.pending, ev.RequestID)
			t.mu.Unlock()
		},
	)
	go wait()
	return nil
}

func (t *BrowserTransport) captureBody(id proto.NetworkRequestID, ex Exchange) {
	res, err := proto.NetworkGetResponseBody{RequestID: id}.Call(t.page)
	if err != nil {
		return
	}
	body := []byte(res.Body)
	if res.Base64Encoded {
		if decoded, err := base64.StdEncoding.DecodeString(res.Body); err == nil {
			body = decoded
		}
	}
	ex.Body = body
	ex.ObservedAt = time.Now().UTC()
	t.rec.Record(ex)
}

// Login fills the panel's login form and waits for the dashboard.
func (t *BrowserTransport) Login(ctx context.Context, creds Credentials) error {
	if creds.Email == "" || creds.Password == "" {
		return fmt.Errorf("%w: email or password not configured", ErrLoginFailed)
	}
	page := t.page.Context(ctx).Timeout(t.timeout)

	if err := page.Navigate(t.baseURL + "/login"); err != nil {
		return fmt.Errorf("open login page: %w", err)
	}
	if err := page.WaitLoad(); err != nil {
		return fmt.Errorf("wait for login page: %w", err)
	}

	email, err := page.Element(`input[name="email"]`)
	if err != nil {
		return fmt.Errorf("email field: %w", err)
	}
	if err := email.Input(creds.Email); err != nil {
		return err
	}
	password, err := page.Element(`input[name="password"]`)
	if err != nil {
		return fmt.Errorf("password field: %w", err)
	}
	if err := password.Input(creds.Password); err != nil {
		return err
	}
	submit, err := page.Element(`button[type="submit"]`)
	if err != nil {
		return fmt.Errorf("submit button: %w", err)
	}
	if err := submit.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return err
	}

	deadline := time.Now().Add(t.timeout)
	for time.Now().Before(deadline) {
		info, err := t.page.Info()
		if err == nil && strings.Contains(info.URL, "/dashboard") {
			return nil
		}
		time.Sleep(250 * time.Millisecond)
	}
	return fmt.Errorf("%w: dashboard not reached within %s", ErrLoginFailed, t.timeout)
}

// Navigate loads a panel page, e.g. /contracts/<id>, and returns its HTML.
func (t *BrowserTransport) Navigate(ctx context.Context, path string) (Exchange, error) {
	target := joinURL(t.baseURL, path)
	page := t.page.Context(ctx).Timeout(t.timeout)
	if err := page.Navigate(target); err != nil {
		return Exchange{}, fmt.Errorf("navigate %s: %w", path, err)
	}
	if err := page.WaitLoad(); err != nil {
		return Exchange{}, fmt.Errorf("wait for %s: %w", path, err)
	}
	html, err := page.HTML()
	if err != nil {
		return Exchange{}, err
	}
	return Exchange{
		URL:         target,
		Method:      "GET",
		StatusCode:  200,
		ContentType: "text/html",
		Body:        []byte(html),
		ObservedAt:  time.Now().UTC(),
	}, nil
}

func (t *BrowserTransport) Call(ctx context.Context, method, path string) (Exchange, error) {
	if !strings.HasPrefix(path, "/api/") {
		return t.Navigate(ctx, path)
	}

	target := joinURL(t.baseURL, path)
	res, err := t.page.Context(ctx).Timeout(t.timeout).Eval(fetchJS, target, method)
	if err != nil {
		return Exchange{}, fmt.Errorf("%s %s: %w", method, path, err)
	}
	raw := res.Value.Str()
	if !gjson.Valid(raw) {
		return Exchange{}, errors.New("fetch wrapper returned malformed result")
	}
	parsed := gjson.Parse(raw)
	return Exchange{
		URL:         target,
		Method:      method,
		StatusCode:  int(parsed.Get("status").Int()),
		ContentType: parsed.Get("type").String(),
		Body:        []byte(parsed.Get("body").String()),
		ObservedAt:  time.Now().UTC(),
	}, nil
}

func (t *BrowserTransport) RecentExchanges(limit int) []Exchange {
	return t.rec.Recent(limit)
}

func (t *BrowserTransport) Close() error {
	var err error
	if t.browser != nil {
		err = t.browser.Close()
	}
	if t.cancel != nil {
		t.cancel()
	}
	if t.launch != nil {
		t.launch.Kill()
	}
	return err
}
