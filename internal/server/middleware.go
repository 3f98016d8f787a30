package server

import (
	"context"
	"crypto/subtle"
	"net/http"

	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/playperu/heartlands/internal/catalog"
	"github.com/playperu/heartlands/internal/heartlands"
)

type ctxKey int

const (
	ctxKeyQuest ctxKey = iota
	ctxKeyArtefact
)

// questMiddleware resolves {questID} against the current catalogue. The
// quest pointer stays valid for the request even if the catalogue reloads.
func questMiddleware(holder *catalog.Holder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			q, err := holder.Current().Quest(chi.URLParam(r, "questID"))
			if err != nil {
				writeError(w, http.StatusNotFound, "quest not found")
				return
			}
			ctx := context.WithValue(r.Context(), ctxKeyQuest, q)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func artefactMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		a, ok := questFrom(r).Artefact(chi.URLParam(r, "artefactID"))
		if !ok {
			writeError(w, http.StatusNotFound, "artefact not found")
			return
		}
		ctx := context.WithValue(r.Context(), ctxKeyArtefact, a)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func questFrom(r *http.Request) *heartlands.Quest {
	return r.Context().Value(ctxKeyQuest).(*heartlands.Quest)
}

func artefactFrom(r *http.Request) heartlands.Artefact {
	return r.Context().Value(ctxKeyArtefact).(heartlands.Artefact)
}

// AdminCredentials is the single admin login. PasswordHash is bcrypt.
type AdminCredentials struct {
	User         string
	PasswordHash string
}

func (c AdminCredentials) Enabled() bool { return c.PasswordHash != "" }

func (c AdminCredentials) verify(user, password string) bool {
	userOK := subtle.ConstantTimeCompare([]byte(user), []byte(c.User)) == 1
	passOK := bcrypt.CompareHashAndPassword([]byte(c.PasswordHash), []byte(password)) == nil
	return userOK && passOK
}

// adminAuthMiddleware requires HTTP basic auth. Without a configured hash
// the admin routes do not exist.
func adminAuthMiddleware(creds AdminCredentials) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !creds.Enabled() {
				writeError(w, http.StatusNotFound, "admin disabled")
				return
			}
			user, password, ok := r.BasicAuth()
			if !ok || !creds.verify(user, password) {
				w.Header().Set("WWW-Authenticate", `Basic realm="heartlands admin"`)
				writeError(w, http.StatusUnauthorized, "not authenticated")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
