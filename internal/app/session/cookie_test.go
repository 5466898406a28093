package session

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/Baktybeks/city-event-search-sub001/internal/app/models"
)

func newTestContext(t *testing.T, cookieValue string) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/profile", nil)
	if cookieValue != "" {
		// Gin unescapes cookie values on read, mirroring SetCookie.
		c.Request.AddCookie(&http.Cookie{Name: CookieName, Value: url.QueryEscape(cookieValue)})
	}
	return c, w
}

func TestFromRequest(t *testing.T) {
	t.Run("DecodesInboundSnapshot", func(t *testing.T) {
		raw, err := Encode(Snapshot{State: State{User: testUser()}, Version: SnapshotVersion})
		assert.NoError(t, err)

		c, _ := newTestContext(t, raw)
		store := FromRequest(c, false, nil)

		assert.True(t, store.IsAuthenticated())
		assert.Equal(t, "user-1", store.User().ID)
	})

	t.Run("MalformedCookieStartsEmpty", func(t *testing.T) {
		c, _ := newTestContext(t, "{{{broken")
		store := FromRequest(c, false, nil)
		assert.False(t, store.IsAuthenticated())
	})

	t.Run("MutationWritesSetCookie", func(t *testing.T) {
		c, w := newTestContext(t, "")
		store := FromRequest(c, false, nil)

		store.SetUser(testUser())

		cookies := w.Result().Cookies()
		var found *http.Cookie
		for _, ck := range cookies {
			if ck.Name == CookieName {
				found = ck
			}
		}
		assert.NotNil(t, found, "snapshot cookie must be written")
		assert.False(t, found.HttpOnly, "snapshot is a client-readable mirror")

		decoded, err := url.QueryUnescape(found.Value)
		assert.NoError(t, err)
		snap, err := Decode(decoded)
		assert.NoError(t, err)
		assert.Equal(t, "user-1", snap.State.User.ID)
	})

	t.Run("ClearExpiresCookie", func(t *testing.T) {
		c, w := newTestContext(t, "")
		store := FromRequest(c, false, nil)
		store.SetUser(testUser())
		store.ClearUser()

		cookies := w.Result().Cookies()
		last := cookies[len(cookies)-1]
		assert.Equal(t, CookieName, last.Name)
		assert.True(t, last.MaxAge < 0, "clearing must expire the cookie")
	})
}

func TestUserFromCookie(t *testing.T) {
	t.Run("ReadsSnapshotUser", func(t *testing.T) {
		raw, err := Encode(Snapshot{State: State{User: testUser()}, Version: SnapshotVersion})
		assert.NoError(t, err)

		c, _ := newTestContext(t, raw)
		user := UserFromCookie(c, nil)
		assert.NotNil(t, user)
		assert.Equal(t, models.RoleUser, user.Role)
	})

	t.Run("AbsentCookie", func(t *testing.T) {
		c, _ := newTestContext(t, "")
		assert.Nil(t, UserFromCookie(c, nil))
	})

	t.Run("MalformedCookie", func(t *testing.T) {
		c, _ := newTestContext(t, "][not-a-snapshot")
		assert.Nil(t, UserFromCookie(c, nil))
	})

	t.Run("NullUserSnapshot", func(t *testing.T) {
		c, _ := newTestContext(t, `{"state":{"user":null},"version":0}`)
		assert.Nil(t, UserFromCookie(c, nil))
	})
}
