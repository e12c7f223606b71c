package handler

import (
	"crypto/subtle"
	"encoding/hex"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/tortilla-storefront/internal/domain/auth"
	"github.com/xenking/tortilla-storefront/pkg/httpmiddleware"
)

// APIKeyHeader carries an admin API key.
const APIKeyHeader = "api_key"

// AdminAuth authenticates back office requests with HMAC-SHA256 hashed API
// keys. The key is read from the api_key header or, for browsers, from the
// HTTP basic auth password. Browsers resend basic auth credentials on their
// own, so unsafe requests authenticated that way must come from the same
// origin.
type AdminAuth struct {
	apikeys auth.Repository
	pepper  []byte
	origin  *http.CrossOriginProtection
}

// NewAdminAuth creates an AdminAuth with the given API key repository and
// HMAC pepper.
func NewAdminAuth(apikeys auth.Repository, pepper []byte) *AdminAuth {
	return &AdminAuth{
		apikeys: apikeys,
		pepper:  pepper,
		origin:  http.NewCrossOriginProtection(),
	}
}

// Middleware rejects requests without a valid key holding the admin scope.
func (a *AdminAuth) Middleware() httpmiddleware.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get(APIKeyHeader)
			if key == "" {
				_, key, _ = r.BasicAuth()
				if key != "" {
					if err := a.origin.Check(r); err != nil {
						zctx.From(r.Context()).Warn("Rejected cross-origin admin request",
							zap.String("origin", r.Header.Get("Origin")),
							zap.String("sec_fetch_site", r.Header.Get("Sec-Fetch-Site")),
						)
						deny(w, http.StatusForbidden)
						return
					}
				}
			}
			if key == "" {
				deny(w, http.StatusUnauthorized)
				return
			}

			info, err := a.authenticate(r, key)
			switch {
			case errors.Is(err, auth.ErrKeyNotFound):
				deny(w, http.StatusUnauthorized)
				return
			case err != nil:
				zctx.From(r.Context()).Error("Authenticate admin", zap.Error(err))
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				return
			case !info.HasScope(auth.ScopeAdmin):
				deny(w, http.StatusForbidden)
				return
			}

			zctx.From(r.Context()).Debug("Admin authenticated", zap.String("key", info.Name))
			next.ServeHTTP(w, r)
		})
	}
}

func (a *AdminAuth) authenticate(r *http.Request, key string) (*auth.APIKeyInfo, error) {
	hexHash := auth.HashKey(a.pepper, key)
	info, err := a.apikeys.FindByHash(r.Context(), hexHash)
	if err != nil {
		return nil, errors.Wrap(err, "find key")
	}

	// The stored hash is compared in constant time in case the repository
	// matched on something other than the exact hash.
	want, err := hex.DecodeString(info.KeyHash)
	if err != nil {
		return nil, auth.ErrKeyNotFound
	}
	got, _ := hex.DecodeString(hexHash)
	if subtle.ConstantTimeCompare(got, want) != 1 {
		return nil, auth.ErrKeyNotFound
	}
	return info, nil
}

func deny(w http.ResponseWriter, status int) {
	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", `Basic realm="admin", charset="UTF-8"`)
	}
	writeJSON(w, status, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("code")
		e.Int(status)
		e.FieldStart("message")
		e.Str(http.StatusText(status))
		e.ObjEnd()
	})
}
