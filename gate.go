package surface

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"reflect"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/schema"
)

var (
	validate    = validator.New(validator.WithRequiredStructEnabled())
	formDecoder = newFormDecoder()
)

func newFormDecoder() *schema.Decoder {
	d := schema.NewDecoder()
	d.IgnoreUnknownKeys(true)
	// Form keys follow the JSON names of the payload.
	d.SetAliasTag("json")
	return d
}

// DefaultMaxBodySize is the request body limit of a new Gate.
const DefaultMaxBodySize = 1 << 20

// Gate is the per-request plumbing generated routes call: it authorizes the
// caller, decodes the payload, and writes the reply or the error.
type Gate struct {
	verifier           Verifier
	logger             *slog.Logger
	errorTransformer   ErrorTransformer
	maskInternalErrors bool
	maxBodySize        int64
}

// NewGate returns a Gate verifying tokens with v.
func NewGate(v Verifier) *Gate {
	return &Gate{verifier: v, maxBodySize: DefaultMaxBodySize}
}

// WithLogger sets the logger. Defaults to slog.Default().
func (g *Gate) WithLogger(logger *slog.Logger) *Gate {
	g.logger = logger
	return g
}

// WithErrorTransformer sets a transformer consulted before
// DefaultErrorTransformer.
func (g *Gate) WithErrorTransformer(fn ErrorTransformer) *Gate {
	g.errorTransformer = fn
	return g
}

// WithMaskInternalErrors replaces the message of internal errors with a
// generic one. The original error is still logged.
func (g *Gate) WithMaskInternalErrors() *Gate {
	g.maskInternalErrors = true
	return g
}

// WithMaxBodySize limits request bodies to n bytes. Zero disables the limit.
func (g *Gate) WithMaxBodySize(n int64) *Gate {
	g.maxBodySize = n
	return g
}

func (g *Gate) log() *slog.Logger {
	if g.logger == nil {
		return slog.Default()
	}
	return g.logger
}

// Authorize verifies the request's token. On failure it writes a 401 reply
// and reports false.
func (g *Gate) Authorize(w http.ResponseWriter, r *http.Request) (Credential, bool) {
	tok, err := tokenFromRequest(r)
	var cred Credential
	if err == nil {
		cred, err = g.verifier.Verify(tok)
	}
	if err != nil {
		g.log().DebugContext(r.Context(), "unauthorized request",
			slog.String("path", r.URL.Path),
			slog.Any("error", err))
		writeError(w, NewError(CodeUnauthenticated, "unauthorized"), g.log())
		return Credential{}, false
	}
	return cred, true
}

// Decode reads the request body into dst, which must be a non-nil pointer,
// and validates it. JSON and form-encoded bodies are accepted. On failure it
// writes a 4xx reply and reports false.
func (g *Gate) Decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := g.decode(w, r, dst); err != nil {
		g.Fail(w, r, err)
		return false
	}
	return true
}

func (g *Gate) decode(w http.ResponseWriter, r *http.Request, dst any) error {
	if r.Body == nil || r.Body == http.NoBody {
		return NewError(CodeInvalidArgument, "request body is empty")
	}
	if g.maxBodySize > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, g.maxBodySize)
	}

	mediaType := "application/json"
	if ct := r.Header.Get("Content-Type"); ct != "" {
		mt, _, err := mime.ParseMediaType(ct)
		if err != nil {
			return Errorf(CodeUnsupportedMedia, "invalid content type %q", ct)
		}
		mediaType = mt
	}

	switch mediaType {
	case "application/json":
		if err := decodeJSON(r.Body, dst); err != nil {
			return err
		}
	case "application/x-www-form-urlencoded":
		if err := r.ParseForm(); err != nil {
			return bodyError(err)
		}
		if !isStructPtr(dst) {
			return NewError(CodeInvalidArgument, "form bodies require an object payload")
		}
		if err := formDecoder.Decode(dst, r.PostForm); err != nil {
			return err
		}
	default:
		return Errorf(CodeUnsupportedMedia, "unsupported content type %q", mediaType)
	}

	if v, ok := structValue(dst); ok {
		if err := validate.Struct(v.Interface()); err != nil {
			return err
		}
	}
	return nil
}

func decodeJSON(body io.Reader, dst any) error {
	dec := json.NewDecoder(body)
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return NewError(CodeInvalidArgument, "request body is empty")
		}
		return bodyError(err)
	}
	if dec.More() {
		return NewError(CodeInvalidArgument, "unexpected data after JSON body")
	}
	return nil
}

func bodyError(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return Errorf(CodePayloadTooLarge, "request body exceeds %d bytes", tooLarge.Limit)
	}
	return Errorf(CodeInvalidArgument, "decode body: %v", err)
}

func isStructPtr(dst any) bool {
	t := reflect.TypeOf(dst)
	return t != nil && t.Kind() == reflect.Pointer && t.Elem().Kind() == reflect.Struct
}

// structValue dereferences dst down to a struct, if there is one.
func structValue(dst any) (reflect.Value, bool) {
	v := reflect.ValueOf(dst)
	for v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return reflect.Value{}, false
		}
		v = v.Elem()
	}
	return v, v.Kind() == reflect.Struct
}

// Reply writes v as a JSON 200 response. When v cannot be encoded, the
// reply is a 500 error instead: v is encoded before anything is written.
func (g *Gate) Reply(w http.ResponseWriter, r *http.Request, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		g.Fail(w, r, Errorf(CodeInternal, "encode response: %v", err))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	body = append(body, '\n')
	if _, err := w.Write(body); err != nil {
		g.log().DebugContext(r.Context(), "write response", slog.Any("error", err))
	}
}

// Fail writes err as an error reply. The status follows the code the error
// transformers assign.
func (g *Gate) Fail(w http.ResponseWriter, r *http.Request, err error) {
	var e *Error
	if g.errorTransformer != nil {
		e = g.errorTransformer(err)
	}
	if e == nil {
		e = DefaultErrorTransformer(err)
	}

	if e.Code == CodeInternal {
		g.log().ErrorContext(r.Context(), "request failed",
			slog.String("path", r.URL.Path),
			slog.Any("error", err))
		if g.maskInternalErrors {
			e = &Error{Code: CodeInternal, Message: "internal server error"}
		}
	} else {
		g.log().DebugContext(r.Context(), "request rejected",
			slog.String("path", r.URL.Path),
			slog.String("code", string(e.Code)),
			slog.Any("error", err))
	}
	writeError(w, e, g.log())
}

func encodeJSON(w io.Writer, v any) error {
	return json.NewEncoder(w).Encode(v)
}
