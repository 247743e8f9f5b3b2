// Package templates holds the default templates of generated files.
package templates

import _ "embed"

// RoutesPlaceholder marks where route statements go in the routes template.
const RoutesPlaceholder = "/* ROUTES */"

// Routes is the template of the Go routing file.
//
//go:embed routes.go.tmpl
var Routes string

// Function is the template of one TypeScript client stub.
//
//go:embed function.ts.tmpl
var Function string

// CallAPI is the template of the shared TypeScript request helper.
//
//go:embed callApi.ts.tmpl
var CallAPI string
