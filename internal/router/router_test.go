package router

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sudooom.date.chat/internal/config"
	chatErrors "sudooom.date.chat/internal/errors"
	"sudooom.date.chat/internal/handler"
	"sudooom.date.chat/internal/jwt"
	"sudooom.date.chat/internal/model"
	"sudooom.date.chat/internal/payment"
	"sudooom.date.chat/internal/repository"
	"sudooom.date.chat/internal/service"
	"sudooom.date.chat/internal/snowflake"
)

type stubProvider struct {
	err error
}

func (p *stubProvider) Charge(ctx context.Context, amount int64, token string) (*payment.Charge, error) {
	if p.err != nil {
		return nil, p.err
	}
	return &payment.Charge{ID: "ch_1", Status: "succeeded", Amount: amount}, nil
}

// APIResponse 用于解析响应体
type APIResponse struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type apiClient struct {
	t      *testing.T
	router *gin.Engine
	jwt    *jwt.Service
}

func (a *apiClient) do(userID int64, method, path string, body any) (*httptest.ResponseRecorder, APIResponse) {
	a.t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(a.t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if userID > 0 {
		token, err := a.jwt.GenerateAccessToken(userID, "device", time.Hour)
		require.NoError(a.t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)

	var resp APIResponse
	require.NoError(a.t, json.Unmarshal(w.Body.Bytes(), &resp))
	return w, resp
}

func setupAPI(t *testing.T, provider payment.Provider) *apiClient {
	t.Helper()

	ids, err := snowflake.NewNode(1)
	require.NoError(t, err)

	convs := repository.NewMemoryConversationStore(ids)
	users := repository.NewMemoryUserStore(
		model.User{ID: 1, Nickname: "system"},
		model.User{ID: 10, Nickname: "u", Balance: model.DefaultBalance},
		model.User{ID: 20, Nickname: "v", Balance: model.DefaultBalance},
		model.User{ID: 30, Nickname: "w", Balance: 0},
	)
	retrier := service.Retrier{MaxAttempts: 1}

	balance := service.NewBalanceMeter(users)
	presence := service.NewPresenceNotifier(convs, users, nil, retrier, service.PresenceConfig{SystemAccountID: 1, WelcomeMessage: "welcome"})
	conversationService := service.NewConversationService(convs, users, balance, presence, nil, retrier)
	walletService := service.NewWalletService(users, provider, map[string]config.TierConfig{
		"tier1": {Amount: 1000, Credits: 20},
		"tier2": {Amount: 2000, Credits: 50},
	})

	jwtService := jwt.NewService("test-secret")
	r := SetupRouter(gin.TestMode, jwtService,
		handler.NewConversationHandler(conversationService, nil),
		handler.NewWalletHandler(walletService, balance),
	)
	return &apiClient{t: t, router: r, jwt: jwtService}
}

func startChat(t *testing.T, api *apiClient, from, to int64) handler.ConversationView {
	t.Helper()
	w, resp := api.do(from, http.MethodPost, "/api/v1/conversations", gin.H{"recipientId": to})
	require.Equal(t, http.StatusOK, w.Code, resp.Message)

	var view handler.ConversationView
	require.NoError(t, json.Unmarshal(resp.Data, &view))
	return view
}

func TestAPI_RequiresToken(t *testing.T) {
	api := setupAPI(t, &stubProvider{})

	w, resp := api.do(0, http.MethodGet, "/api/v1/conversations", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, chatErrors.CodeTokenInvalid, resp.Code)
}

func TestAPI_ChatFlow(t *testing.T) {
	api := setupAPI(t, &stubProvider{})

	conv := startChat(t, api, 10, 20)
	assert.Equal(t, int64(20), conv.PeerID)
	assert.False(t, conv.Unread)
	assert.True(t, conv.PeerUnread)

	again := startChat(t, api, 20, 10)
	assert.Equal(t, conv.ID, again.ID)

	path := fmt.Sprintf("/api/v1/conversations/%d", conv.ID)

	w, resp := api.do(10, http.MethodPost, path+"/messages", gin.H{"body": "hi"})
	require.Equal(t, http.StatusCreated, w.Code, resp.Message)

	w, resp = api.do(20, http.MethodPost, path+"/view", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var viewed handler.ConversationView
	require.NoError(t, json.Unmarshal(resp.Data, &viewed))
	assert.False(t, viewed.Unread)
	assert.False(t, viewed.PeerUnread)

	w, resp = api.do(20, http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var detail handler.ConversationView
	require.NoError(t, json.Unmarshal(resp.Data, &detail))
	require.Len(t, detail.Messages, 1)
	assert.Equal(t, "hi", detail.Messages[0].Body)

	w, resp = api.do(10, http.MethodGet, "/api/v1/conversations", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		List []handler.ConversationView `json:"list"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &list))
	require.Len(t, list.List, 1)
	assert.Empty(t, list.List[0].Messages)

	w, _ = api.do(10, http.MethodDelete, path, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w, resp = api.do(10, http.MethodDelete, path, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, chatErrors.CodeConversationNotFound, resp.Code)
}

func TestAPI_PostMessageErrors(t *testing.T) {
	api := setupAPI(t, &stubProvider{})

	conv := startChat(t, api, 30, 10)
	path := fmt.Sprintf("/api/v1/conversations/%d/messages", conv.ID)

	tests := []struct {
		name       string
		userID     int64
		path       string
		body       any
		wantStatus int
		wantCode   int
	}{
		{"empty body", 30, path, gin.H{"body": ""}, http.StatusBadRequest, chatErrors.CodeEmptyBody},
		{"not a party", 20, path, gin.H{"body": "hi"}, http.StatusForbidden, chatErrors.CodeForbidden},
		{"no balance", 30, path, gin.H{"body": "hi"}, http.StatusPaymentRequired, chatErrors.CodeInsufficientBalance},
		{"bad id", 30, "/api/v1/conversations/abc/messages", gin.H{"body": "hi"}, http.StatusBadRequest, chatErrors.CodeInvalidParams},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, resp := api.do(tt.userID, http.MethodPost, tt.path, tt.body)
			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantCode, resp.Code)
		})
	}

	_, resp := api.do(30, http.MethodPost, path, gin.H{"body": "hi"})
	assert.JSONEq(t, `{"redirect":"/payment"}`, string(resp.Data))
}

func TestAPI_StartChatErrors(t *testing.T) {
	api := setupAPI(t, &stubProvider{})

	w, resp := api.do(10, http.MethodPost, "/api/v1/conversations", gin.H{"recipientId": 10})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, chatErrors.CodeCannotChatSelf, resp.Code)

	w, resp = api.do(10, http.MethodPost, "/api/v1/conversations", gin.H{"recipientId": 404})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, chatErrors.CodeUserNotFound, resp.Code)

	w, resp = api.do(10, http.MethodPost, "/api/v1/conversations", gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, chatErrors.CodeInvalidParams, resp.Code)
}

func TestAPI_Wallet(t *testing.T) {
	api := setupAPI(t, &stubProvider{})

	w, resp := api.do(30, http.MethodPost, "/api/v1/wallet/topup", gin.H{"tier": "tier1", "token": "tok"})
	require.Equal(t, http.StatusOK, w.Code, resp.Message)

	var result service.TopUpResult
	require.NoError(t, json.Unmarshal(resp.Data, &result))
	assert.Equal(t, int64(20), result.Balance)

	w, resp = api.do(30, http.MethodGet, "/api/v1/wallet", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var wallet struct {
		Balance int64          `json:"balance"`
		Tiers   []service.Tier `json:"tiers"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &wallet))
	assert.Equal(t, int64(20), wallet.Balance)
	assert.Len(t, wallet.Tiers, 2)

	w, resp = api.do(30, http.MethodPost, "/api/v1/wallet/topup", gin.H{"tier": "gold", "token": "tok"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, chatErrors.CodeInvalidTier, resp.Code)
}

func TestAPI_WalletPaymentFailure(t *testing.T) {
	api := setupAPI(t, &stubProvider{err: payment.ErrChargeDeclined})

	w, resp := api.do(30, http.MethodPost, "/api/v1/wallet/topup", gin.H{"tier": "tier1", "token": "tok"})
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, chatErrors.CodePaymentFailed, resp.Code)

	_, resp = api.do(30, http.MethodGet, "/api/v1/wallet", nil)
	assert.Contains(t, string(resp.Data), `"balance":0`)
}
