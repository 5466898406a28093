package session

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Baktybeks/city-event-search-sub001/internal/app/models"
)

// cookieMaxAge keeps the snapshot alive for thirty days; the route guard
// re-validates against the database on every protected request anyway, so
// a long-lived mirror is safe.
const cookieMaxAge = 30 * 24 * 60 * 60

// CookiePersister writes the snapshot into the auth-storage cookie on the
// current response. The cookie is deliberately not HttpOnly: the snapshot
// is a readable mirror for clients, never an authority (that is the JWT's
// job).
type CookiePersister struct {
	c      *gin.Context
	secure bool
	logger *zap.Logger
}

// Persist implements Persister.
func (p *CookiePersister) Persist(snap Snapshot) {
	encoded, err := Encode(snap)
	if err != nil {
		p.logger.Error("Failed to encode session snapshot", zap.Error(err))
		return
	}
	maxAge := cookieMaxAge
	if snap.State.User == nil {
		maxAge = -1
	}
	p.c.SetCookie(CookieName, encoded, maxAge, "/", "", p.secure, false)
}

// FromRequest builds a store bound to the request: the inbound cookie is
// decoded into the initial state and every mutation is mirrored back onto
// the response. A malformed inbound cookie starts the store empty.
func FromRequest(c *gin.Context, secure bool, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	store := NewStore(&CookiePersister{c: c, secure: secure, logger: logger}, logger)
	if raw, err := c.Cookie(CookieName); err == nil {
		if snap, err := Decode(raw); err != nil {
			logger.Warn("Discarding malformed session snapshot cookie", zap.Error(err))
		} else {
			store.mu.Lock()
			store.user = snap.State.User
			store.mu.Unlock()
		}
	}
	return store
}

// UserFromCookie is the gatekeeper's read-only view: it parses the named
// cookie from the request and returns the snapshot user, or nil when the
// cookie is absent or malformed. It never mutates anything.
func UserFromCookie(c *gin.Context, logger *zap.Logger) *models.User {
	raw, err := c.Cookie(CookieName)
	if err != nil {
		return nil
	}
	snap, err := Decode(raw)
	if err != nil {
		if logger != nil {
			logger.Warn("Treating malformed session snapshot as no session",
				zap.String("path", c.Request.URL.Path),
				zap.Error(err),
			)
		}
		return nil
	}
	return snap.State.User
}
