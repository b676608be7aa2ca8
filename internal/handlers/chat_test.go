package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"research-chat/internal/identity"
	"research-chat/internal/middleware"
	"research-chat/internal/mocks"
	"research-chat/internal/models"
	"research-chat/internal/repositories"
	"research-chat/internal/services"
)

type fixture struct {
	store   *mocks.Store
	rooms   *mocks.RoomEmitterMock
	files   *mocks.FileStoreMock
	auditor *mocks.AuditorMock
	router  *gin.Engine
}

func newFixture(principal identity.Principal) *fixture {
	gin.SetMode(gin.TestMode)
	f := &fixture{
		store:   mocks.NewStore(),
		rooms:   new(mocks.RoomEmitterMock),
		files:   new(mocks.FileStoreMock),
		auditor: new(mocks.AuditorMock),
	}
	repos := f.store.Repositories()
	chats := NewChatHandler(services.NewChatService(repos))
	groups := NewGroupHandler(services.NewGroupService(repos, f.files, f.rooms, 1<<20), f.auditor, 1<<20)
	messages := NewMessageHandler(services.NewMessagingService(repos, f.files, f.rooms, 1<<20), f.auditor, 1<<20)

	r := gin.New()
	api := r.Group("/", func(c *gin.Context) {
		c.Set(middleware.UserIDKey, principal.ID)
		c.Set(middleware.PrincipalKey, principal)
		c.Next()
	})
	RegisterChatRoutes(api, chats, groups, messages)
	f.router = r
	return f
}

func (f *fixture) do(method, path string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var resp map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

var alice = identity.Principal{ID: "alice", DisplayName: "Alice", Role: models.RoleResearcher}

func TestStartDirectChatSuccess(t *testing.T) {
	f := newFixture(alice)
	ctx := mock.Anything

	f.store.Users.On("GetUser", ctx, "bob").Return(models.User{ID: "bob"}, nil).Once()
	f.store.Chats.On("CreateOrGetDirectChat", ctx, "alice", "bob").
		Return(models.DirectChat{ID: "c1", ParticipantIDs: []string{"alice", "bob"}, IsActive: true}, nil).Once()
	f.store.Users.On("GetUsers", ctx, []string{"alice", "bob"}).Return([]models.User{{ID: "alice"}, {ID: "bob", Name: "Bob"}}, nil).Once()

	rec := f.do(http.MethodPost, "/chat/direct", []byte(`{"recipientId":"bob"}`))

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode(t, rec)
	assert.Equal(t, true, resp["success"])
	chat := resp["chat"].(map[string]any)
	assert.Equal(t, "c1", chat["_id"])
	f.store.AssertExpectations(t)
}

func TestStartDirectChatMissingRecipient(t *testing.T) {
	f := newFixture(alice)

	rec := f.do(http.MethodPost, "/chat/direct", []byte(`{}`))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, false, decode(t, rec)["success"])
}

func TestStartDirectChatWithSelf(t *testing.T) {
	f := newFixture(alice)

	rec := f.do(http.MethodPost, "/chat/direct", []byte(`{"recipientId":"alice"}`))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "cannot chat with yourself", decode(t, rec)["error"])
}

func TestListChatsSuccess(t *testing.T) {
	f := newFixture(alice)

	f.store.Chats.On("ListDirectChatsForUser", mock.Anything, "alice").Return([]models.DirectChat{}, nil).Once()
	f.store.Groups.On("ListGroupsForUser", mock.Anything, "alice").Return([]models.Group{{ID: "g1", Name: "Lab", AdminID: "alice", MemberIDs: []string{"alice"}, IsActive: true}}, nil).Once()
	f.store.Users.On("GetUsers", mock.Anything, []string{"alice"}).Return([]models.User{{ID: "alice"}}, nil).Once()

	rec := f.do(http.MethodGet, "/chat/list", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode(t, rec)
	assert.Len(t, resp["directChats"], 0)
	assert.Len(t, resp["groupChats"], 1)
	f.store.AssertExpectations(t)
}

func TestListChatsRepoError(t *testing.T) {
	f := newFixture(alice)

	f.store.Chats.On("ListDirectChatsForUser", mock.Anything, "alice").Return(nil, assert.AnError).Once()

	rec := f.do(http.MethodGet, "/chat/list", nil)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	resp := decode(t, rec)
	assert.Equal(t, false, resp["success"])
	assert.Equal(t, "internal server error", resp["error"])
}

func TestListResearchers(t *testing.T) {
	f := newFixture(alice)

	f.store.Users.On("ListUsersByRole", mock.Anything, models.RoleResearcher, "alice").
		Return([]models.User{{ID: "bob", Name: "Bob", Email: "bob@lab.org"}}, nil).Once()

	rec := f.do(http.MethodGet, "/chat/researchers", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	researchers := decode(t, rec)["researchers"].([]any)
	require.Len(t, researchers, 1)
	assert.Equal(t, "bob", researchers[0].(map[string]any)["_id"])
}

func TestRespondErrorMapping(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cases := map[error]int{
		repositories.ErrChatNotFound: http.StatusInternalServerError,
		context.Canceled:             http.StatusInternalServerError,
	}
	for err, want := range cases {
		rec := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(rec)
		respondError(c, err)
		assert.Equal(t, want, rec.Code)
	}

	assert.Equal(t, http.StatusBadRequest, statusFor(services.KindValidation))
	assert.Equal(t, http.StatusForbidden, statusFor(services.KindAuthorization))
	assert.Equal(t, http.StatusNotFound, statusFor(services.KindNotFound))
	assert.Equal(t, http.StatusConflict, statusFor(services.KindConflict))
	assert.Equal(t, http.StatusInternalServerError, statusFor(services.KindTransport))
}
