package routes

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/phillip/shelter-donations-go/config"
	"github.com/phillip/shelter-donations-go/models"
	"github.com/phillip/shelter-donations-go/services"
	"github.com/phillip/shelter-donations-go/utils"
)

const testSecret = "test-secret"

type harness struct {
	router        *gin.Engine
	donations     *mockDonations
	users         *mockUsers
	beneficiaries *mockBeneficiaries
}

func newHarness(t *testing.T, mutate func(*config.Config)) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		JWTSecret:        testSecret,
		JWTTTL:           time.Hour,
		LiqPayPrivateKey: "private",
		Logger:           zap.NewNop(),
	}
	if mutate != nil {
		mutate(cfg)
	}

	h := &harness{
		donations:     &mockDonations{},
		users:         &mockUsers{},
		beneficiaries: &mockBeneficiaries{},
	}
	reconciler := services.NewReconciler(h.donations, h.users, h.beneficiaries, nil)
	reporting := services.NewReportingService(h.donations, nil, 0, nil)

	h.router = gin.New()
	SetupRoutes(h.router, cfg, Deps{
		Donations: services.NewDonationService(h.donations, h.users, h.beneficiaries, reconciler, cfg.Sandbox, nil),
		Reporting: reporting,
	})
	return h
}

func (h *harness) do(t *testing.T, method, path, body, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	return w
}

func tokenFor(t *testing.T, id primitive.ObjectID, role string) string {
	t.Helper()
	token, err := utils.GenerateToken(testSecret, id.Hex(), role, time.Hour)
	require.NoError(t, err)
	return token
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestCreateDonation_BelowMinimumRejected(t *testing.T) {
	h := newHarness(t, nil)

	w := h.do(t, http.MethodPost, "/api/donations",
		`{"amount":19.99,"donorName":"Olena","donorEmail":"olena@example.com"}`, "")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "amount", decode(t, w)["field"])
	h.donations.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything)
}

func TestCreateDonation_AnonymousCreated(t *testing.T) {
	h := newHarness(t, nil)
	h.users.On("FindByEmail", mock.Anything, "olena@example.com").Return(nil, services.ErrNotFound)
	h.donations.On("Insert", mock.Anything, mock.AnythingOfType("*models.Donation")).Return(nil)

	w := h.do(t, http.MethodPost, "/api/donations",
		`{"amount":50,"donorName":"Olena","donorEmail":"Olena@Example.com","message":"for the cats"}`, "")

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, 50.0, body["amount"])
	assert.Equal(t, models.DonationPending, body["status"])
	assert.Equal(t, models.TargetGeneral, body["target"])
	assert.Equal(t, "olena@example.com", body["donorEmail"])
	assert.Nil(t, body["user"])
	h.donations.AssertExpectations(t)
}

func TestCreateDonation_ShelterWithoutTargetID(t *testing.T) {
	h := newHarness(t, nil)

	w := h.do(t, http.MethodPost, "/api/donations",
		`{"amount":100,"donorName":"Olena","donorEmail":"olena@example.com","target":"shelter"}`, "")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "targetId", decode(t, w)["field"])
	h.donations.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything)
}

func TestCreateDonation_MalformedEmail(t *testing.T) {
	h := newHarness(t, nil)

	w := h.do(t, http.MethodPost, "/api/donations",
		`{"amount":100,"donorName":"Olena","donorEmail":"not-an-email"}`, "")

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetDonation_NotFound(t *testing.T) {
	h := newHarness(t, nil)
	id := primitive.NewObjectID()
	h.donations.On("FindByID", mock.Anything, id).
		Return(nil, fmt.Errorf("donation %s: %w", id.Hex(), services.ErrNotFound))

	w := h.do(t, http.MethodGet, "/api/donations/"+id.Hex(), "", "")

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetDonation_InvalidID(t *testing.T) {
	h := newHarness(t, nil)

	w := h.do(t, http.MethodGet, "/api/donations/not-an-id", "", "")

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetDonation_ETag(t *testing.T) {
	h := newHarness(t, nil)
	id := primitive.NewObjectID()
	h.donations.On("FindByID", mock.Anything, id).Return(&models.Donation{
		ID:        id,
		Amount:    100,
		Target:    models.TargetGeneral,
		Status:    models.DonationCompleted,
		UpdatedAt: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC),
	}, nil)

	first := h.do(t, http.MethodGet, "/api/donations/"+id.Hex(), "", "")
	require.Equal(t, http.StatusOK, first.Code)
	etag := first.Header().Get("ETag")
	require.NotEmpty(t, etag)

	req := httptest.NewRequest(http.MethodGet, "/api/donations/"+id.Hex(), nil)
	req.Header.Set("If-None-Match", etag)
	second := httptest.NewRecorder()
	h.router.ServeHTTP(second, req)

	assert.Equal(t, http.StatusNotModified, second.Code)
}

func TestUserDonations_OtherUserForbidden(t *testing.T) {
	h := newHarness(t, nil)
	caller := primitive.NewObjectID()
	other := primitive.NewObjectID()

	w := h.do(t, http.MethodGet, "/api/donations/user/"+other.Hex(), "", tokenFor(t, caller, models.RoleUser))

	assert.Equal(t, http.StatusForbidden, w.Code)
	h.donations.AssertNotCalled(t, "List", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestUserDonations_SelfAndAdmin(t *testing.T) {
	h := newHarness(t, nil)
	owner := primitive.NewObjectID()
	h.donations.On("List", mock.Anything,
		mock.MatchedBy(func(f models.DonationFilter) bool { return f.User != nil && *f.User == owner }),
		1, 10,
	).Return([]models.Donation{{ID: primitive.NewObjectID(), Amount: 20, User: &owner}}, int64(1), nil)

	for _, token := range []string{
		tokenFor(t, owner, models.RoleUser),
		tokenFor(t, primitive.NewObjectID(), models.RoleAdmin),
	} {
		w := h.do(t, http.MethodGet, "/api/donations/user/"+owner.Hex(), "", token)

		require.Equal(t, http.StatusOK, w.Code)
		body := decode(t, w)
		assert.Len(t, body["donations"], 1)
		assert.Equal(t, 1.0, body["pagination"].(map[string]interface{})["total"])
	}
}

func TestUserDonations_RequiresToken(t *testing.T) {
	h := newHarness(t, nil)

	w := h.do(t, http.MethodGet, "/api/donations/user/"+primitive.NewObjectID().Hex(), "", "")

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestListDonations_AdminOnly(t *testing.T) {
	h := newHarness(t, nil)
	h.donations.On("List", mock.Anything,
		mock.MatchedBy(func(f models.DonationFilter) bool {
			return f.Status == models.DonationCompleted && f.From != nil && f.From.Year() == 2025
		}),
		2, 5,
	).Return([]models.Donation{}, int64(7), nil)

	user := h.do(t, http.MethodGet, "/api/donations", "", tokenFor(t, primitive.NewObjectID(), models.RoleUser))
	assert.Equal(t, http.StatusForbidden, user.Code)

	admin := h.do(t, http.MethodGet, "/api/donations?status=completed&from=2025-01-01&page=2&limit=5", "",
		tokenFor(t, primitive.NewObjectID(), models.RoleAdmin))
	require.Equal(t, http.StatusOK, admin.Code, admin.Body.String())
	pagination := decode(t, admin)["pagination"].(map[string]interface{})
	assert.Equal(t, 2.0, pagination["pages"])
}

func TestListDonations_BadFilters(t *testing.T) {
	h := newHarness(t, nil)
	admin := tokenFor(t, primitive.NewObjectID(), models.RoleAdmin)

	assert.Equal(t, http.StatusBadRequest, h.do(t, http.MethodGet, "/api/donations?from=yesterday", "", admin).Code)
	assert.Equal(t, http.StatusBadRequest, h.do(t, http.MethodGet, "/api/donations?status=lost", "", admin).Code)
}

func TestUpdateDonationStatus(t *testing.T) {
	h := newHarness(t, nil)
	id := primitive.NewObjectID()
	h.donations.On("UpdateStatus", mock.Anything, id, models.DonationFailed, "tx-1").
		Return(&models.Donation{ID: id, Status: models.DonationFailed, TransactionID: "tx-1"}, nil)

	anon := h.do(t, http.MethodPut, "/api/donations/"+id.Hex()+"/status", `{"status":"failed"}`, "")
	assert.Equal(t, http.StatusUnauthorized, anon.Code)

	user := h.do(t, http.MethodPut, "/api/donations/"+id.Hex()+"/status", `{"status":"failed"}`,
		tokenFor(t, primitive.NewObjectID(), models.RoleUser))
	assert.Equal(t, http.StatusForbidden, user.Code)

	admin := h.do(t, http.MethodPut, "/api/donations/"+id.Hex()+"/status",
		`{"status":"failed","transactionId":"tx-1"}`, tokenFor(t, primitive.NewObjectID(), models.RoleAdmin))
	require.Equal(t, http.StatusOK, admin.Code, admin.Body.String())
	assert.Equal(t, models.DonationFailed, decode(t, admin)["status"])

	invalid := h.do(t, http.MethodPut, "/api/donations/"+id.Hex()+"/status", `{"status":"lost"}`,
		tokenFor(t, primitive.NewObjectID(), models.RoleAdmin))
	assert.Equal(t, http.StatusBadRequest, invalid.Code)
}

func TestDonationStats(t *testing.T) {
	h := newHarness(t, nil)
	h.donations.On("Stats", mock.Anything).Return(&models.DonationStats{
		TotalAmount:       2000,
		CountDonations:    5,
		UniqueDonorsCount: 4,
	}, nil)

	w := h.do(t, http.MethodGet, "/api/donations/stats", "", "")

	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, 2000.0, body["totalAmount"])
	assert.Equal(t, 5.0, body["countDonations"])
	assert.Empty(t, w.Header().Get("X-Demo-Data"))
}

func TestDonationStats_DemoFallback(t *testing.T) {
	enabled := newHarness(t, func(cfg *config.Config) {
		cfg.Sandbox = true
		cfg.DemoStats = true
	})
	enabled.donations.On("Stats", mock.Anything).Return(&models.DonationStats{}, nil)

	w := enabled.do(t, http.MethodGet, "/api/donations/stats", "", "")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "true", w.Header().Get("X-Demo-Data"))
	assert.Greater(t, decode(t, w)["totalAmount"].(float64), 0.0)

	disabled := newHarness(t, func(cfg *config.Config) { cfg.Sandbox = true })
	disabled.donations.On("Stats", mock.Anything).Return(&models.DonationStats{}, nil)

	w = disabled.do(t, http.MethodGet, "/api/donations/stats", "", "")

	assert.Equal(t, 0.0, decode(t, w)["totalAmount"])
}

func postCallback(h *harness, data, signature string) *httptest.ResponseRecorder {
	form := url.Values{"data": {data}, "signature": {signature}}
	req := httptest.NewRequest(http.MethodPost, "/api/donations/callback", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	return w
}

func TestLiqPayCallback(t *testing.T) {
	h := newHarness(t, nil)
	id := primitive.NewObjectID()
	data := base64.StdEncoding.EncodeToString([]byte(
		fmt.Sprintf(`{"order_id":%q,"status":"success","transaction_id":987654}`, id.Hex())))
	h.donations.On("UpdateStatus", mock.Anything, id, models.DonationCompleted, "987654").
		Return(&models.Donation{ID: id, Status: models.DonationCompleted, Reconciled: true}, nil)

	forged := postCallback(h, data, utils.LiqPaySignature("wrong", data))
	assert.Equal(t, http.StatusForbidden, forged.Code)
	h.donations.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything)

	ok := postCallback(h, data, utils.LiqPaySignature("private", data))
	require.Equal(t, http.StatusOK, ok.Code, ok.Body.String())
	assert.Equal(t, models.DonationCompleted, decode(t, ok)["status"])
	h.donations.AssertExpectations(t)
}

func TestHealth(t *testing.T) {
	h := newHarness(t, nil)

	w := h.do(t, http.MethodGet, "/health", "", "")

	assert.Equal(t, http.StatusOK, w.Code)
}
