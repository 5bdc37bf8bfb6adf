// Package cmd provides common initialization functions for command-line
// applications.
package cmd

import (
	"log/slog"

	"github.com/loomworks/loom/pkg/activities/delay"
	"github.com/loomworks/loom/pkg/activities/httprequest"
	"github.com/loomworks/loom/pkg/activities/logmsg"
	"github.com/loomworks/loom/pkg/activities/transform"
	"github.com/loomworks/loom/pkg/registry"
)

// NewRegistry creates an activity registry with the built-in activities
// registered.
func NewRegistry(logger *slog.Logger) *registry.Registry {
	reg := registry.NewRegistry(logger)

	reg.RegisterActivity(logmsg.NewLogActivityFactory())
	reg.RegisterActivity(httprequest.NewHTTPRequestActivityFactory())
	reg.RegisterActivity(transform.NewTransformActivityFactory())
	reg.RegisterActivity(delay.NewDelayActivityFactory())

	return reg
}
