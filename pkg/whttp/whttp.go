package whttp

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/tidwall/gjson"
	"golang.org/x/net/html"
)

const USER_AGENT = "Mozilla/5.0 (X11; Linux x86_64; rv:128.0) Gecko/20100101 Firefox/128.0"

type WHTTPHeader struct {
	Name  string
	Value string
}

type WHTTPReq struct {
	URL     string
	Method  string
	Headers []WHTTPHeader
	Body    string
}

type WHTTPRes struct {
	StatusCode  int
	ContentType string
	Headers     http.Header
	FinalURL    string
	HTTPTitle   string
	Body        []byte
}

func (r *WHTTPRes) BodyString() string {
	return string(r.Body)
}

// ClientOptions configures NewClient.
type ClientOptions struct {
	Proxy    string
	Timeout  time.Duration
	RetryMax int
	Jar      http.CookieJar
	// Direct ignores HTTP_PROXY and friends. It has no effect when Proxy is set.
	Direct bool
}

// NewClient builds a retrying client. Server errors are retried RetryMax
// times and the last response is then returned as-is, not as an error.
func NewClient(opts ClientOptions) (*retryablehttp.Client, error) {
	client := retryablehttp.NewClient()
	client.Logger = log.New(io.Discard, "", 0)
	client.RetryMax = opts.RetryMax
	client.RetryWaitMin = 500 * time.Millisecond
	client.RetryWaitMax = 3 * time.Second
	client.ErrorHandler = retryablehttp.PassthroughErrorHandler

	if opts.Timeout > 0 {
		client.HTTPClient.Timeout = opts.Timeout
	}
	if opts.Jar != nil {
		client.HTTPClient.Jar = opts.Jar
	}

	if opts.Proxy != "" {
		proxyURL, err := url.Parse(opts.Proxy)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy URL: %w", err)
		}
		client.HTTPClient.Transport = &http.Transport{
			Proxy:           http.ProxyURL(proxyURL),
			TLSClientConfig: &tls.Config{MinVersion: tls.VersionTLS12},
		}
	} else if opts.Direct {
		direct := cleanhttp.DefaultPooledTransport()
		direct.Proxy = nil
		client.HTTPClient.Transport = direct
	}
	return client, nil
}

func SendHTTPRequest(ctx context.Context, wReq *WHTTPReq, client *retryablehttp.Client) (*WHTTPRes, error) {
	var body interface{}
	if wReq.Body != "" {
		body = []byte(wReq.Body)
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, wReq.Method, wReq.URL, body)
	if err != nil {
		return nil, err
	}

	req.Header.Set("User-Agent", USER_AGENT)
	req.Header.Set("Accept-Language", "en")
	for _, h := range wReq.Headers {
		req.Header.Set(h.Name, h.Value)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	wRes := &WHTTPRes{
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Headers:     resp.Header,
		Body:        bodyBytes,
	}
	if resp.Request != nil && resp.Request.URL != nil {
		wRes.FinalURL = resp.Request.URL.String()
	}
	if strings.Contains(strings.ToLower(wRes.ContentType), "html") {
		if title, ok := GetHTMLTitle(string(bodyBytes)); ok {
			wRes.HTTPTitle = title
		}
	}
	return wRes, nil
}

// LookupEgressIP asks ipify which address our requests leave from.
func LookupEgressIP(ctx context.Context, client *retryablehttp.Client) (string, error) {
	res, err := SendHTTPRequest(ctx, &WHTTPReq{
		Method: "GET",
		URL:    "https://api.ipify.org?format=json",
	}, client)
	if err != nil {
		return "", err
	}
	ip := gjson.GetBytes(res.Body, "ip").String()
	if ip == "" {
		return "", fmt.Errorf("ipify returned no address (status %d)", res.StatusCode)
	}
	return ip, nil
}

func isTitleElement(n *html.Node) bool {
	return n.Type == html.ElementNode && n.Data == "title"
}

func traverse(n *html.Node) (string, bool) {
	if isTitleElement(n) {
		if n.FirstChild != nil {
			return n.FirstChild.Data, true
		}
		return "", true
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		result, ok := traverse(c)
		if ok {
			return result, ok
		}
	}

	return "", false
}

// GetHTMLTitle returns the trimmed <title> of an HTML document.
func GetHTMLTitle(body string) (string, bool) {
	doc, err := html.Parse(strings.NewReader(body))
	if err != nil {
		return "", false
	}
	title, ok := traverse(doc)
	if !ok {
		return "", false
	}
	title = strings.ReplaceAll(strings.ReplaceAll(title, "\n", ""), "\r", "")
	return strings.ToValidUTF8(strings.TrimSpace(title), ""), true
}
