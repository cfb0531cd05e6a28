package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"cargalibre/config"
	"cargalibre/models"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newVerifyContext(t *testing.T, query string) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, err := http.NewRequest(http.MethodGet, "/webhook?"+query, nil)
	require.NoError(t, err)
	c.Request = req
	return c, w
}

func TestVerifyWebhook(t *testing.T) {
	config.AppConfig.WebhookVerifyToken = "secreto"
	h := NewWebhookHandler(nil, zap.NewNop())

	t.Run("matching token echoes challenge", func(t *testing.T) {
		c, w := newVerifyContext(t, "hub.mode=subscribe&hub.verify_token=secreto&hub.challenge=12345")
		h.VerifyWebhook(c)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "12345", w.Body.String())
	})

	t.Run("wrong token is forbidden", func(t *testing.T) {
		c, w := newVerifyContext(t, "hub.mode=subscribe&hub.verify_token=otro&hub.challenge=12345")
		h.VerifyWebhook(c)
		c.Writer.WriteHeaderNow()
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("wrong mode is forbidden", func(t *testing.T) {
		c, w := newVerifyContext(t, "hub.mode=unsubscribe&hub.verify_token=secreto&hub.challenge=12345")
		h.VerifyWebhook(c)
		c.Writer.WriteHeaderNow()
		assert.Equal(t, http.StatusForbidden, w.Code)
	})
}

func TestReceiveWebhook_AlwaysAcksDelivery(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewWebhookHandler(nil, zap.NewNop())

	for name, body := range map[string]string{
		"empty batch": `{"entry":[]}`,
		"malformed":   `{"entry":`,
	} {
		t.Run(name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			req, err := http.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body))
			require.NoError(t, err)
			req.Header.Set("Content-Type", "application/json")
			c.Request = req

			h.ReceiveWebhook(c)
			assert.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, "EVENT_RECEIVED", w.Body.String())
		})
	}
}

func TestNormalize(t *testing.T) {
	t.Run("text", func(t *testing.T) {
		gm := graphMessage{From: "573001112233", ID: "wamid.1", Type: "text"}
		gm.Text = &struct {
			Body string `json:"body"`
		}{Body: "hola"}

		msg := normalize(gm)
		assert.Equal(t, models.MessageTypeText, msg.Type)
		assert.Equal(t, "hola", msg.Text)
		assert.Nil(t, msg.Location)
	})

	t.Run("location", func(t *testing.T) {
		gm := graphMessage{From: "573001112233", ID: "wamid.2", Type: "location"}
		gm.Location = &struct {
			Latitude  float64 `json:"latitude"`
			Longitude float64 `json:"longitude"`
		}{Latitude: 6.2, Longitude: -75.5}

		msg := normalize(gm)
		require.NotNil(t, msg.Location)
		assert.Equal(t, 6.2, msg.Location.Latitude)
		assert.Equal(t, -75.5, msg.Location.Longitude)
	})

	t.Run("interactive", func(t *testing.T) {
		gm := graphMessage{From: "573001112233", ID: "wamid.3", Type: "interactive"}
		gm.Interactive = &struct {
			ButtonReply struct {
				ID    string `json:"id"`
				Title string `json:"title"`
			} `json:"button_reply"`
		}{}
		gm.Interactive.ButtonReply.ID = "accept"
		gm.Interactive.ButtonReply.Title = "Aceptar ✅"

		msg := normalize(gm)
		assert.Equal(t, "accept", msg.ButtonID)
		assert.Equal(t, "Aceptar ✅", msg.ButtonTitle)
	})
}

func TestSenderInfo(t *testing.T) {
	assert.Equal(t, models.SenderInfo{}, senderInfo(nil))

	contact := graphContact{WaID: "573001112233"}
	contact.Profile.Name = "María"
	info := senderInfo([]graphContact{contact})
	assert.Equal(t, "María", info.Name)
	assert.Equal(t, "573001112233", info.WaID)
}
