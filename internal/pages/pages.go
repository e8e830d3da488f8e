// Package pages holds the static HTML documents served at /map and /info.
package pages

import (
	_ "embed"
)

// ContentType is sent with every page.
const ContentType = "text/html;charset=utf-8"

//go:embed static/map.html
var mapHTML []byte

//go:embed static/info.html
var infoHTML []byte

// Map returns the complaint map dashboard.
func Map() []byte { return mapHTML }

// Info returns the complaint infographic.
func Info() []byte { return infoHTML }
