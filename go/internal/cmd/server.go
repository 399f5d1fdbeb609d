package main

import (
	"net/http"

	"github.com/mcdev12/bzdash/go/internal/config"
	"github.com/mcdev12/bzdash/go/internal/dashboard"
	"github.com/mcdev12/bzdash/go/internal/viewserver"
)

func setupServer(cfg *config.Config, dash *dashboard.Dashboard) *http.Server {
	return viewserver.NewServer(cfg.ListenAddr, viewserver.NewHandler(dash))
}
