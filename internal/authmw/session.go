package authmw

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jonboulle/clockwork"
	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/breezecue/internal/account"
)

// ErrInvalidSession wraps every token rejection.
var ErrInvalidSession = errors.New("invalid session token")

// Identity is the signed-in user attached to a request.
type Identity struct {
	UID   string
	Email string
}

type ctxKey struct{}

// WithIdentity returns a context carrying id.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext returns the identity set by Session.
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(Identity)
	return id, ok
}

type claims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// Verifier checks HS256 session tokens issued by the identity provider.
type Verifier struct {
	secret   []byte
	issuer   string
	audience string
	clock    clockwork.Clock
}

// NewVerifier creates a verifier. clock may be nil.
func NewVerifier(secret, issuer, audience string, clock clockwork.Clock) *Verifier {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Verifier{secret: []byte(secret), issuer: issuer, audience: audience, clock: clock}
}

// Verify parses token and returns the identity in its subject and email
// claims. Expiry is required; issuer and audience are checked when set.
func (v *Verifier) Verify(token string) (Identity, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(30 * time.Second),
		jwt.WithTimeFunc(v.clock.Now),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}

	var c claims
	if _, err := jwt.ParseWithClaims(token, &c, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}, opts...); err != nil {
		return Identity{}, fmt.Errorf("%w: %w", ErrInvalidSession, err)
	}
	uid := strings.TrimSpace(c.Subject)
	if uid == "" {
		return Identity{}, fmt.Errorf("%w: missing subject", ErrInvalidSession)
	}
	return Identity{UID: uid, Email: c.Email}, nil
}

// Sign issues a token for id valid for ttl. It is the counterpart of Verify
// for local tooling and tests.
func (v *Verifier) Sign(id Identity, ttl time.Duration) (string, error) {
	now := v.clock.Now()
	c := claims{
		Email: id.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.UID,
			Issuer:    v.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	if v.audience != "" {
		c.Audience = jwt.ClaimStrings{v.audience}
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(v.secret)
}

// Ensurer creates a user's profile the first time they are seen.
type Ensurer interface {
	Ensure(ctx context.Context, uid, email string) (account.Profile, bool, error)
}

// Session returns middleware that requires a valid session token, attaches
// the Identity to the request context and ensures the user's profile exists
// on the first request from each uid.
func Session(v *Verifier, accounts Ensurer, logger log.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = log.Nop()
	}
	var seen sync.Map
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			token, ok := bearer(r)
			if !ok {
				http.Error(w, `{"error":"missing or malformed authorization header"}`, http.StatusUnauthorized)
				return
			}
			id, err := v.Verify(token)
			if err != nil {
				logger.Info(ctx, "session rejected", "reason", err.Error())
				http.Error(w, `{"error":"invalid token"}`, http.StatusUnauthorized)
				return
			}

			if _, known := seen.Load(id.UID); !known && accounts != nil {
				_, created, err := accounts.Ensure(ctx, id.UID, id.Email)
				if err != nil {
					logger.Error(ctx, err, "ensure user profile", "uid", id.UID)
					http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
					return
				}
				seen.Store(id.UID, struct{}{})
				if created {
					logger.Info(ctx, "new user signed in", "uid", id.UID)
				}
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(ctx, id)))
		})
	}
}
