// Package api holds the handlers of the example server. Every exported
// function here is served under /api by the generated routing file.
package api

// QueryParams are the operands of Sum and Sub.
type QueryParams struct {
	A int32 `json:"a"`
	B int32 `json:"b"`
}

// Sum adds the operands.
func Sum(token string, params QueryParams) int32 {
	return params.A + params.B
}

// Sub subtracts b from a.
func Sub(token string, params QueryParams) int32 {
	return params.A - params.B
}
