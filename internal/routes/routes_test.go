package routes

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/giftstream/giftstream/internal/account"
	"github.com/giftstream/giftstream/internal/app"
	"github.com/giftstream/giftstream/internal/config"
	"github.com/giftstream/giftstream/internal/logging"
	"github.com/giftstream/giftstream/internal/middleware"
)

const secret = "routes-test-secret"

type apiClient struct {
	t   *testing.T
	app *fiber.App
}

func (a apiClient) do(method, path, token, body string) (int, map[string]any) {
	a.t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}
	resp, err := a.app.Test(req, -1)
	require.NoError(a.t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(a.t, err)
	out := map[string]any{}
	_ = json.Unmarshal(raw, &out)
	return resp.StatusCode, out
}

func newAPI(t *testing.T) (apiClient, *app.Container) {
	t.Helper()
	return newAPIWith(t, func(*config.Config) {})
}

func newAPIWith(t *testing.T, adjust func(*config.Config)) (apiClient, *app.Container) {
	t.Helper()
	cfg := config.Config{
		AppEnv:           "development",
		JWTSecret:        secret,
		MintRate:         decimal.NewFromInt(40),
		Split:            config.Split{Admin: decimal.NewFromInt(10), Anchor: decimal.NewFromInt(50), Agency: decimal.NewFromInt(10), Spender: decimal.NewFromInt(20), Referral: decimal.NewFromInt(10)},
		ReferralMaxDepth: 10,
		OrphanPolicy:     "none",
		SpendRatePerMin:  100,
	}
	adjust(&cfg)
	c, err := app.New(cfg, nil, nil, logging.Discard())
	require.NoError(t, err)
	fapp := fiber.New()
	require.NoError(t, Setup(fapp, Deps{App: c}))
	return apiClient{t: t, app: fapp}, c
}

func token(t *testing.T, a account.Account) string {
	t.Helper()
	tok, err := middleware.IssueToken([]byte(secret), a.ID, a.Role, time.Hour)
	require.NoError(t, err)
	return tok
}

func TestGiftFlowOverHTTP(t *testing.T) {
	api, c := newAPI(t)
	ctx := context.Background()
	admin, err := c.Accounts.EnsureAdmin(ctx, "ops")
	require.NoError(t, err)
	adminTok := token(t, admin)

	status, body := api.do(http.MethodPost, "/api/v1/accounts", "", `{"role":"anchor","display_name":"star"}`)
	require.Equal(t, http.StatusCreated, status)
	anchorID := body["id"].(string)

	status, body = api.do(http.MethodPost, "/api/v1/accounts", "", `{"display_name":"referrer"}`)
	require.Equal(t, http.StatusCreated, status)
	referrerID := body["id"].(string)

	status, body = api.do(http.MethodPost, "/api/v1/accounts", "", `{"display_name":"viewer","referrer_id":"`+referrerID+`"}`)
	require.Equal(t, http.StatusCreated, status)
	viewerID := body["id"].(string)
	require.EqualValues(t, 1, body["referral_level"])

	viewer, err := c.Accounts.Get(ctx, viewerID)
	require.NoError(t, err)
	viewerTok := token(t, viewer)

	status, _ = api.do(http.MethodPost, "/api/v1/admin/accounts/"+viewerID+"/credit", viewerTok, `{"currency":"coins","amount":1000}`)
	require.Equal(t, http.StatusForbidden, status, "non-admins cannot top up")

	status, _ = api.do(http.MethodPost, "/api/v1/admin/accounts/"+viewerID+"/credit", adminTok, `{"currency":"reward_tokens","amount":1000}`)
	require.Equal(t, http.StatusBadRequest, status, "tokens are only minted by distributions")

	status, _ = api.do(http.MethodPost, "/api/v1/admin/accounts/"+viewerID+"/credit", adminTok, `{"currency":"coins","amount":1000}`)
	require.Equal(t, http.StatusCreated, status)

	status, body = api.do(http.MethodPost, "/api/v1/gifts", viewerTok, `{"gift_id":"rose-1","anchor_id":"`+anchorID+`","coins":100}`)
	require.Equal(t, http.StatusCreated, status)
	giftKey := "gift:" + viewerID + ":rose-1"
	require.Equal(t, giftKey, body["event_key"])
	require.Nil(t, body["distribution_error"])

	status, body = api.do(http.MethodGet, "/api/v1/me/wallet", viewerTok, "")
	require.Equal(t, http.StatusOK, status)
	require.EqualValues(t, 900, body["coins"])
	require.EqualValues(t, 800, body["reward_tokens"])

	status, body = api.do(http.MethodGet, "/api/v1/accounts/"+viewerID+"/referral-chain", viewerTok, "")
	require.Equal(t, http.StatusOK, status)
	require.Len(t, body["chain"], 1)

	status, body = api.do(http.MethodGet, "/api/v1/admin/distributions/"+giftKey, adminTok, "")
	require.Equal(t, http.StatusOK, status)
	require.EqualValues(t, 4000, body["total_tokens"])
	require.EqualValues(t, 400, body["undistributed"])

	status, body = api.do(http.MethodPost, "/api/v1/admin/distributions/"+giftKey+"/replay", adminTok, "")
	require.Equal(t, http.StatusOK, status)
	require.EqualValues(t, 0, body["failed"])

	status, body = api.do(http.MethodGet, "/api/v1/admin/accounts/"+referrerID+"/wallet", adminTok, "")
	require.Equal(t, http.StatusOK, status)
	require.EqualValues(t, 400, body["reward_tokens"], "replay must not double credit")

	status, body = api.do(http.MethodGet, "/api/v1/admin/accounts/"+viewerID+"/reconcile", adminTok, "")
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, true, body["balanced"])

	status, body = api.do(http.MethodGet, "/api/v1/me/transactions?limit=2", viewerTok, "")
	require.Equal(t, http.StatusOK, status)
	require.Len(t, body["transactions"], 2)
}

func TestProtectedRoutesNeedToken(t *testing.T) {
	api, _ := newAPI(t)
	status, _ := api.do(http.MethodGet, "/api/v1/me/wallet", "", "")
	require.Equal(t, http.StatusUnauthorized, status)

	status, body := api.do(http.MethodGet, "/healthz", "", "")
	require.Equal(t, http.StatusOK, status)
	require.NotNil(t, body["status"])
}

func TestMetricsEndpoint(t *testing.T) {
	api, _ := newAPI(t)
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	resp, err := api.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(raw), "go_goroutines")
}

func TestHealthReportsBrokenRewardSplit(t *testing.T) {
	api, _ := newAPIWith(t, func(cfg *config.Config) {
		cfg.Split.Admin = decimal.NewFromInt(90)
	})

	status, body := api.do(http.MethodGet, "/healthz", "", "")
	require.Equal(t, http.StatusServiceUnavailable, status)
	statuses, ok := body["status"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, "in-memory", statuses["postgres"])
	require.NotEqual(t, "ok", statuses["rewards"])
}
