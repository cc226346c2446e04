// Package csrf protects the portal forms. Tokens are stateless: an HMAC over
// an issue time, a nonce and the subject the token was issued to, so a token
// rendered for one account is refused once another account is signed in.
package csrf

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-router"
)

const (
	TextCodeTokenMissing  = "CSRF_TOKEN_MISSING"
	TextCodeTokenMismatch = "CSRF_TOKEN_MISMATCH"
	TextCodeTokenExpired  = "CSRF_TOKEN_EXPIRED"
)

var (
	ErrTokenMissing = errors.New("CSRF token missing", errors.CategoryBadInput).
			WithTextCode(TextCodeTokenMissing).
			WithCode(errors.CodeBadRequest)
	ErrTokenMismatch = errors.New("CSRF token mismatch", errors.CategoryAuthz).
				WithTextCode(TextCodeTokenMismatch).
				WithCode(errors.CodeForbidden)
	ErrTokenExpired = errors.New("CSRF token expired", errors.CategoryAuthz).
			WithTextCode(TextCodeTokenExpired).
			WithCode(errors.CodeForbidden)
)

const (
	// DefaultContextKey is the locals key the token is stored under
	DefaultContextKey = "csrf_token"
	// DefaultFormFieldName is the hidden form field carrying the token
	DefaultFormFieldName = "_token"
	// DefaultHeaderName is the header checked when the form field is empty
	DefaultHeaderName = "X-CSRF-Token"
	// MinKeyLength is the shortest accepted signing key
	MinKeyLength = 32

	nonceLength = 16
)

// Config defines the configuration for the CSRF middleware
type Config struct {
	// Key signs the tokens. A random key is generated when empty, which
	// invalidates rendered forms on restart.
	Key []byte

	// TTL is how long an issued token is accepted
	TTL time.Duration

	ContextKey    string
	FormFieldName string
	HeaderName    string

	// SafeMethods are not checked
	SafeMethods []string

	// Subject returns who the request acts for. Tokens only verify for the
	// subject they were issued to.
	Subject func(router.Context) string

	// Skip bypasses the middleware for a request
	Skip func(router.Context) bool

	ErrorHandler router.ErrorHandler

	Now func() time.Time
}

// Protector issues and verifies tokens
type Protector struct {
	cfg Config
}

// NewProtector validates cfg and fills in defaults
func NewProtector(cfg Config) (*Protector, error) {
	if len(cfg.Key) == 0 {
		cfg.Key = make([]byte, MinKeyLength)
		if _, err := io.ReadFull(rand.Reader, cfg.Key); err != nil {
			return nil, fmt.Errorf("csrf: unable to generate key: %w", err)
		}
	}

	if len(cfg.Key) < MinKeyLength {
		return nil, fmt.Errorf("csrf: key must be at least %d bytes, got %d", MinKeyLength, len(cfg.Key))
	}

	if cfg.TTL <= 0 {
		cfg.TTL = 12 * time.Hour
	}
	if cfg.ContextKey == "" {
		cfg.ContextKey = DefaultContextKey
	}
	if cfg.FormFieldName == "" {
		cfg.FormFieldName = DefaultFormFieldName
	}
	if cfg.HeaderName == "" {
		cfg.HeaderName = DefaultHeaderName
	}
	if cfg.SafeMethods == nil {
		cfg.SafeMethods = []string{"GET", "HEAD", "OPTIONS", "TRACE"}
	}
	if cfg.Subject == nil {
		cfg.Subject = func(router.Context) string { return "" }
	}
	if cfg.ErrorHandler == nil {
		cfg.ErrorHandler = defaultErrorHandler
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Protector{cfg: cfg}, nil
}

// Issue returns a token for subject
func (p *Protector) Issue(subject string) (string, error) {
	nonce := make([]byte, nonceLength)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	issued := strconv.FormatInt(p.cfg.Now().UTC().Unix(), 10)
	nonceHex := hex.EncodeToString(nonce)
	sig := p.sign(issued, nonceHex, subject)

	raw := issued + "." + nonceHex + "." + sig
	return base64.RawURLEncoding.EncodeToString([]byte(raw)), nil
}

// Verify checks token was issued by this protector for subject and has not
// expired
func (p *Protector) Verify(subject, token string) error {
	if token == "" {
		return ErrTokenMissing
	}

	decoded, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return ErrTokenMismatch
	}

	parts := strings.Split(string(decoded), ".")
	if len(parts) != 3 {
		return ErrTokenMismatch
	}
	issued, nonceHex, sig := parts[0], parts[1], parts[2]

	ts, err := strconv.ParseInt(issued, 10, 64)
	if err != nil {
		return ErrTokenMismatch
	}

	expected := p.sign(issued, nonceHex, subject)
	if !hmac.Equal([]byte(sig), []byte(expected)) {
		return ErrTokenMismatch
	}

	if p.cfg.Now().UTC().After(time.Unix(ts, 0).Add(p.cfg.TTL)) {
		return ErrTokenExpired
	}

	return nil
}

func (p *Protector) sign(issued, nonce, subject string) string {
	mac := hmac.New(sha256.New, p.cfg.Key)
	mac.Write([]byte(issued))
	mac.Write([]byte{0})
	mac.Write([]byte(nonce))
	mac.Write([]byte{0})
	mac.Write([]byte(subject))
	return hex.EncodeToString(mac.Sum(nil))
}

// Middleware issues a fresh token on every request and verifies the
// submitted one on unsafe methods
func (p *Protector) Middleware() router.MiddlewareFunc {
	return func(hf router.HandlerFunc) router.HandlerFunc {
		return func(ctx router.Context) error {
			if p.cfg.Skip != nil && p.cfg.Skip(ctx) {
				return ctx.Next()
			}

			subject := p.cfg.Subject(ctx)

			if !slices.Contains(p.cfg.SafeMethods, strings.ToUpper(ctx.Method())) {
				if err := p.Verify(subject, p.extract(ctx)); err != nil {
					return p.cfg.ErrorHandler(ctx, err)
				}
			}

			token, err := p.Issue(subject)
			if err != nil {
				return p.cfg.ErrorHandler(ctx, err)
			}

			ctx.Locals(p.cfg.ContextKey, token)
			ctx.Locals(p.cfg.ContextKey+"_field", p.cfg.FormFieldName)

			return ctx.Next()
		}
	}
}

func (p *Protector) extract(ctx router.Context) string {
	if token := strings.TrimSpace(ctx.FormValue(p.cfg.FormFieldName)); token != "" {
		return token
	}
	return strings.TrimSpace(ctx.Header(p.cfg.HeaderName))
}

// TemplateData returns the csrf_token and csrf_field values the middleware
// left in locals, ready to merge into a view context
func TemplateData(ctx router.Context, contextKey string) map[string]any {
	if contextKey == "" {
		contextKey = DefaultContextKey
	}

	token, _ := ctx.Locals(contextKey).(string)

	fieldName := DefaultFormFieldName
	if v, ok := ctx.Locals(contextKey + "_field").(string); ok && v != "" {
		fieldName = v
	}

	return map[string]any{
		"csrf_token":      token,
		"csrf_field_name": fieldName,
	}
}

func defaultErrorHandler(ctx router.Context, err error) error {
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		return ctx.Status(router.StatusInternalServerError).SendString("CSRF validation error")
	}
	return ctx.Status(richErr.Code).SendString(richErr.Message)
}
