package main

import (
	"net/http"

	"github.com/mcdev12/bzdash/go/clients/dashboard_client"
	"github.com/mcdev12/bzdash/go/internal/config"
	"github.com/mcdev12/bzdash/go/internal/dashboard"
	"github.com/mcdev12/bzdash/go/internal/transport"
)

func setupDashboard(cfg *config.Config) *dashboard.Dashboard {
	// Wire up the sync core
	// REST client → stream + push channel → dashboard

	client := dashboard_client.NewDashboardClient(cfg.BaseURL, cfg.APIPrefix, cfg.SessionCookie)
	client.SetTimeout(cfg.Timing.RequestTimeout)

	stream := transport.NewStream(cfg.StreamURL(), nil, cfg.Timing.StreamReconnect)
	if cfg.SessionCookie != "" {
		stream.SetHeader(dashboard_client.CookieHeader, cfg.SessionCookie)
	}

	return dashboard.New(*cfg, dashboard.Deps{
		API:    client,
		Stream: stream,
		Push:   setupPush(cfg),
	})
}

// setupPush builds the configured secondary push transport. It is only
// connected when realtime is enabled.
func setupPush(cfg *config.Config) transport.PushClient {
	switch cfg.Push.Transport {
	case config.PushNATS:
		natsCfg := transport.DefaultNATSConfig(cfg.Push.NATSURL)
		if cfg.Push.SubjectPrefix != "" {
			natsCfg.SubjectPrefix = cfg.Push.SubjectPrefix
		}
		if cfg.Push.ReconnectWait > 0 {
			natsCfg.ReconnectWait = cfg.Push.ReconnectWait
		}
		return transport.NewNATSPush(natsCfg)

	default:
		wsCfg := transport.DefaultWebSocketConfig(cfg.PushURL())
		if cfg.Push.ReconnectWait > 0 {
			wsCfg.ReconnectWait = cfg.Push.ReconnectWait
		}
		if cfg.SessionCookie != "" {
			wsCfg.Header = http.Header{}
			wsCfg.Header.Set(dashboard_client.CookieHeader, cfg.SessionCookie)
		}
		return transport.NewWebSocketPush(wsCfg, nil)
	}
}
