// Package assets embeds the inspection page sources.
package assets

import _ "embed"

var (
	//go:embed index.html.tpl
	IndexTemplate string

	//go:embed style.css
	Style string

	//go:embed script.js
	Script string
)
