package notify

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/sw33tLie/ghrenew/pkg/whttp"
	"github.com/tidwall/gjson"
)

const DefaultTelegramURL = "https://api.telegram.org"

// TelegramSink posts messages through the Bot API. It always connects
// directly, ignoring the panel proxy and any proxy set in the environment.
type TelegramSink struct {
	Token    string
	ChatID   string
	BaseURL  string
	Location *time.Location

	client *retryablehttp.Client
}

func NewTelegramSink(token, chatID string, loc *time.Location) (*TelegramSink, error) {
	client, err := whttp.NewClient(whttp.ClientOptions{Timeout: 10 * time.Second, RetryMax: 2, Direct: true})
	if err != nil {
		return nil, err
	}
	return &TelegramSink{
		Token:    token,
		ChatID:   chatID,
		BaseURL:  DefaultTelegramURL,
		Location: loc,
		client:   client,
	}, nil
}

func (s *TelegramSink) Deliver(ctx context.Context, m Message) error {
	form := url.Values{}
	form.Set("chat_id", s.ChatID)
	form.Set("text", FormatHTML(m, s.Location))
	form.Set("parse_mode", "HTML")

	res, err := whttp.SendHTTPRequest(ctx, &whttp.WHTTPReq{
		Method: http.MethodPost,
		URL:    s.BaseURL + "/bot" + s.Token + "/sendMessage",
		Headers: []whttp.WHTTPHeader{
			{Name: "Content-Type", Value: "application/x-www-form-urlencoded"},
		},
		Body: form.Encode(),
	}, s.client)
	if err != nil {
		return fmt.Errorf("telegram: %w", err)
	}
	if !gjson.GetBytes(res.Body, "ok").Bool() {
		desc := gjson.GetBytes(res.Body, "description").String()
		return fmt.Errorf("telegram: sendMessage rejected (status %d): %s", res.StatusCode, desc)
	}
	return nil
}
