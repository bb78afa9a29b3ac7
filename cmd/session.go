package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/spf13/viper"
	"github.com/sw33tLie/ghrenew/internal/utils"
	"github.com/sw33tLie/ghrenew/pkg/notify"
	"github.com/sw33tLie/ghrenew/pkg/panel"
	"github.com/sw33tLie/ghrenew/pkg/renewal"
	"github.com/sw33tLie/ghrenew/pkg/storage"
	"github.com/sw33tLie/ghrenew/pkg/transport"
	"github.com/sw33tLie/ghrenew/pkg/whttp"
)

func loadRenewalConfig() (renewal.Config, error) {
	cfg := renewal.DefaultConfig()
	cfg.TargetID = strings.TrimSpace(viper.GetString("target.id"))
	cfg.TargetName = strings.TrimSpace(viper.GetString("target.name"))
	cfg.Cooldown = viper.GetDuration("renewal.cooldown")
	cfg.CeilingHours = viper.GetInt("renewal.ceiling_hours")
	cfg.NearCeilingHours = viper.GetInt("renewal.near_ceiling_hours")
	cfg.PollAttempts = viper.GetInt("renewal.poll_attempts")
	cfg.PollInterval = viper.GetDuration("renewal.poll_interval")
	cfg.FallbackWindow = viper.GetInt("renewal.fallback_window")
	cfg.InspectPage = viper.GetBool("renewal.inspect_page")
	if phrases := viper.GetStringSlice("renewal.limit_phrases"); len(phrases) > 0 {
		cfg.LimitPhrases = phrases
	}
	return cfg, cfg.Validate()
}

func reportLocation() *time.Location {
	name := viper.GetString("report.timezone")
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		utils.Log.Warnf("Unknown report.timezone %q, using UTC: %v", name, err)
		return time.UTC
	}
	return loc
}

// buildSink returns the configured report sinks. The log sink is always on.
func buildSink() (notify.Sink, error) {
	loc := reportLocation()
	sinks := notify.Multi{notify.LogSink{Log: utils.Log}}

	token, chatID := viper.GetString("telegram.token"), viper.GetString("telegram.chatid")
	if token != "" && chatID != "" {
		tg, err := notify.NewTelegramSink(token, chatID, loc)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, tg)
	} else {
		utils.Log.Debug("Telegram not configured, skipping it.")
	}

	if path := viper.GetString("report.file"); path != "" {
		sinks = append(sinks, notify.StatusFileSink{Path: path, Location: loc})
	}
	return sinks, nil
}

// session is a logged-in transport plus the panel client on top of it.
type session struct {
	transport transport.Transport
	panel     *panel.Client
	egressIP  func(ctx context.Context) (string, error)
}

func (s *session) Close() error {
	return s.transport.Close()
}

type loginer interface {
	Login(ctx context.Context, creds transport.Credentials) error
}

func openSession(ctx context.Context, fallbackWindow int) (*session, error) {
	creds := transport.Credentials{
		Email:    viper.GetString("greathost.email"),
		Password: viper.GetString("greathost.password"),
	}
	if creds.Email == "" || creds.Password == "" {
		return nil, fmt.Errorf("%w: greathost.email and greathost.password (or GREATHOST_EMAIL / GREATHOST_PASSWORD) are required", transport.ErrLoginFailed)
	}

	baseURL := viper.GetString("greathost.baseurl")
	proxy := viper.GetString("proxy")
	timeout := viper.GetDuration("transport.timeout")

	ipClient, err := whttp.NewClient(whttp.ClientOptions{Proxy: proxy, Timeout: 10 * time.Second})
	if err != nil {
		return nil, err
	}
	sess := &session{
		egressIP: func(ctx context.Context) (string, error) {
			return whttp.LookupEgressIP(ctx, ipClient)
		},
	}

	mode := strings.ToLower(viper.GetString("transport.mode"))
	var t interface {
		transport.Transport
		loginer
	}
	switch mode {
	case "", "http":
		t, err = transport.NewHTTPTransport(transport.HTTPConfig{
			BaseURL:  baseURL,
			Proxy:    proxy,
			Timeout:  timeout,
			RetryMax: 2,
		})
	case "browser":
		t, err = transport.NewBrowserTransport(ctx, transport.BrowserConfig{
			BaseURL:   baseURL,
			Proxy:     proxy,
			ChromeBin: viper.GetString("transport.chrome_bin"),
			Headless:  viper.GetBool("transport.headless"),
			Timeout:   timeout,
		})
	default:
		return nil, fmt.Errorf("unknown transport.mode %q (want http or browser)", mode)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: starting %s transport: %w", renewal.ErrTransport, mode, err)
	}

	utils.Log.Infof("Logging in as %s via %s transport", utils.Mask(creds.Email), mode)
	if err := t.Login(ctx, creds); err != nil {
		t.Close()
		return nil, fmt.Errorf("%w: %w", renewal.ErrTransport, err)
	}

	sess.transport = t
	sess.panel = panel.NewClient(t, fallbackWindow, utils.Log)
	return sess, nil
}

// openHistory opens the run history database. db.path "off" disables it.
func openHistory() (*storage.DB, error) {
	p := viper.GetString("db.path")
	if strings.EqualFold(p, "off") {
		return nil, nil
	}
	abs, err := utils.GetAbsDBPath(p)
	if err != nil {
		return nil, err
	}
	if err := ensureParentDir(abs); err != nil {
		return nil, err
	}
	return storage.Open(abs)
}
