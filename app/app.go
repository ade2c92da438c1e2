package app

import (
	"github.com/go-chi/oauth"

	"github.com/mbolis/quick-forms/config"
	"github.com/mbolis/quick-forms/service"
)

type App struct {
	*service.Service
	*oauth.BearerServer
	config.Config
}
