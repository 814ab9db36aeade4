// Package libui embeds the templates and static assets for the web UI
package libui

import "embed"

//nolint:gochecknoglobals
//go:embed layout.tmpl partials/*.tmpl pages/*.tmpl
var TemplatesFS embed.FS

//nolint:gochecknoglobals
//go:embed static/*
var StaticFS embed.FS
