package ginserver

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gin "github.com/gin-gonic/gin"

	"github.com/Bonshal/swapspot/internal/app/dto"
	appmsg "github.com/Bonshal/swapspot/internal/app/messaging"
	"github.com/Bonshal/swapspot/internal/infra/storage/memory"
)

func newMessageHandler(t *testing.T) *MessageHandler {
	t.Helper()
	manager := &appmsg.Manager{
		Gateway:      memory.NewMessagingBackend(),
		Notifier:     appmsg.NopNotifier{},
		PollInterval: time.Hour,
	}
	t.Cleanup(manager.Shutdown)
	return &MessageHandler{Manager: manager}
}

func postContext(t *testing.T, body string) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	recorder := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(recorder)
	c.Request = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")
	return c, recorder
}

func TestStartConversationAsViewer(t *testing.T) {
	handler := newMessageHandler(t)
	c, recorder := postContext(t, `{"seller_id":"seller","listing_id":"l1","content":"is this available?"}`)
	setPrincipal(c, principal{ID: "buyer"})

	handler.Start(c)

	if recorder.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", recorder.Code, recorder.Body)
	}
	var response dto.StartConversationResponse
	if err := json.Unmarshal(recorder.Body.Bytes(), &response); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if response.ConversationID == "" {
		t.Fatal("missing conversation id")
	}

	// The viewer's store saw the refresh triggered by the start.
	store := handler.Manager.Ensure("buyer")
	if got := len(store.Conversations()); got != 1 {
		t.Fatalf("conversations = %d, want 1", got)
	}
}

func TestStartConversationRejectsSelfMessaging(t *testing.T) {
	handler := newMessageHandler(t)
	c, recorder := postContext(t, `{"seller_id":"buyer","listing_id":"l1","content":"hello me"}`)
	setPrincipal(c, principal{ID: "buyer"})

	handler.Start(c)

	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, body %s", recorder.Code, recorder.Body)
	}
}

func TestStartConversationRequiresAuth(t *testing.T) {
	handler := newMessageHandler(t)
	c, recorder := postContext(t, `{"seller_id":"seller","listing_id":"l1","content":"hello"}`)

	handler.Start(c)

	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, body %s", recorder.Code, recorder.Body)
	}
}
