package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/registraction/vip-services/internal/vipsvc/models"
	"github.com/registraction/vip-services/internal/vipsvc/service"
	"github.com/registraction/vip-services/internal/vipsvc/store"

	"github.com/go-chi/chi"
	"github.com/go-chi/jwtauth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDirectory struct {
	resolveFn func(ctx context.Context, token string) (*models.Store, error)
	listFn    func(ctx context.Context) ([]models.Store, error)
}

func (f fakeDirectory) ResolveToken(ctx context.Context, token string) (*models.Store, error) {
	if f.resolveFn == nil {
		if token != "demo" {
			return nil, store.ErrStoreNotFound
		}
		return &models.Store{Token: token, Name: "Demo Store", PoolTable: "vip_demo", Active: true}, nil
	}
	return f.resolveFn(ctx, token)
}

func (f fakeDirectory) ListStores(ctx context.Context) ([]models.Store, error) {
	if f.listFn == nil {
		return []models.Store{{Token: "demo", Name: "Demo Store", PoolTable: "vip_demo", Active: true}}, nil
	}
	return f.listFn(ctx)
}

type fakeSlotPool struct {
	phoneExistsFn func(ctx context.Context, pool, phone string) (bool, error)
	assignFn      func(ctx context.Context, pool string, in store.AssignInput) (*models.CardSlot, error)
	getSlotFn     func(ctx context.Context, pool string, id int64) (*models.CardSlot, error)
	statsFn       func(ctx context.Context, pool string) (store.PoolStats, error)
}

func (f fakeSlotPool) PhoneExists(ctx context.Context, pool, phone string) (bool, error) {
	if f.phoneExistsFn == nil {
		return false, nil
	}
	return f.phoneExistsFn(ctx, pool, phone)
}

func (f fakeSlotPool) Assign(ctx context.Context, pool string, in store.AssignInput) (*models.CardSlot, error) {
	if f.assignFn == nil {
		return &models.CardSlot{
			ID: 1, Code: "2000000000017", Phone: in.Phone,
			FirstName: in.FirstName, LastName: in.LastName,
			State: models.SlotAssigned,
		}, nil
	}
	return f.assignFn(ctx, pool, in)
}

func (f fakeSlotPool) GetSlot(ctx context.Context, pool string, id int64) (*models.CardSlot, error) {
	if f.getSlotFn == nil {
		return nil, store.ErrSlotNotFound
	}
	return f.getSlotFn(ctx, pool, id)
}

func (f fakeSlotPool) PoolStats(ctx context.Context, pool string) (store.PoolStats, error) {
	if f.statsFn == nil {
		return store.PoolStats{Available: 4, Assigned: 1}, nil
	}
	return f.statsFn(ctx, pool)
}

type fakeBots struct {
	verifyFn func(ctx context.Context, token, remoteIP string) (bool, error)
}

func (f fakeBots) Verify(ctx context.Context, token, remoteIP string) (bool, error) {
	if f.verifyFn == nil {
		return true, nil
	}
	return f.verifyFn(ctx, token, remoteIP)
}

func newTestRouter(dir service.Directory, pool service.SlotPool, bots service.BotFilter, jwtSecret string) *chi.Mux {
	svc := service.NewRegistrationService(dir, pool, bots)
	h := NewHandler(svc, Options{SiteKey: "site-key-123", JWTSecret: jwtSecret})
	r := chi.NewRouter()
	h.SetRoutes(r)
	return r
}

func registerForm() url.Values {
	form := url.Values{}
	form.Set("cellulare", "+39 333 123 4567")
	form.Set("nome", "Mario")
	form.Set("cognome", "Rossi")
	form.Set("nascita", "1990-05-01")
	form.Set("email", "mario.rossi@example.com")
	form.Set("indirizzo", "Via Roma 1")
	form.Set("citta", "Bolzano")
	form.Set("prov", "BZ")
	form.Set("cap", "39100")
	form.Set("g-recaptcha-response", "challenge-token")
	return form
}

func postForm(t *testing.T, router http.Handler, path string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestRegisterFormShowsSiteKey(t *testing.T) {
	router := newTestRouter(fakeDirectory{}, fakeSlotPool{}, fakeBots{}, "")

	req := httptest.NewRequest(http.MethodGet, "/demo/register", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "site-key-123")
	assert.Contains(t, body, `action="/demo/register"`)
	assert.Contains(t, body, "Demo Store")
}

func TestRegisterFormUnknownStore(t *testing.T) {
	router := newTestRouter(fakeDirectory{}, fakeSlotPool{}, fakeBots{}, "")

	req := httptest.NewRequest(http.MethodGet, "/ghost/register", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRegisterSuccessEmbedsBarcode(t *testing.T) {
	router := newTestRouter(fakeDirectory{}, fakeSlotPool{}, fakeBots{}, "")

	rec := postForm(t, router, "/demo/register", registerForm())

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "data:image/png;base64,")
	assert.Contains(t, body, "2000000000017")
	assert.Contains(t, body, "Mario")
}

func TestRegisterDuplicatePhoneShowsWarning(t *testing.T) {
	router := newTestRouter(fakeDirectory{}, fakeSlotPool{
		assignFn: func(ctx context.Context, pool string, in store.AssignInput) (*models.CardSlot, error) {
			return nil, store.ErrPhoneTaken
		},
	}, fakeBots{}, "")

	rec := postForm(t, router, "/demo/register", registerForm())

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "This phone number is already registered")
	// the form keeps what the customer typed
	assert.Contains(t, body, "Mario")
}

func TestRegisterExhaustedPoolIsHardFailure(t *testing.T) {
	router := newTestRouter(fakeDirectory{}, fakeSlotPool{
		assignFn: func(ctx context.Context, pool string, in store.AssignInput) (*models.CardSlot, error) {
			return nil, store.ErrPoolExhausted
		},
	}, fakeBots{}, "")

	rec := postForm(t, router, "/demo/register", registerForm())

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "no available VIP slots")
}

func TestRegisterCaptchaRejectedShowsWarning(t *testing.T) {
	router := newTestRouter(fakeDirectory{}, fakeSlotPool{}, fakeBots{
		verifyFn: func(ctx context.Context, token, remoteIP string) (bool, error) {
			return false, nil
		},
	}, "")

	rec := postForm(t, router, "/demo/register", registerForm())

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Captcha verification failed")
}

func TestRegisterInvalidNameShowsWarning(t *testing.T) {
	router := newTestRouter(fakeDirectory{}, fakeSlotPool{
		assignFn: func(ctx context.Context, pool string, in store.AssignInput) (*models.CardSlot, error) {
			t.Fatal("assign must not run for invalid input")
			return nil, nil
		},
	}, fakeBots{}, "")

	form := registerForm()
	form.Set("nome", "M4rio!")
	rec := postForm(t, router, "/demo/register", form)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Nome must contain only letters and spaces")
}

func TestRegisterInvalidPhoneShowsWarning(t *testing.T) {
	router := newTestRouter(fakeDirectory{}, fakeSlotPool{}, fakeBots{}, "")

	form := registerForm()
	form.Set("cellulare", "12345")
	rec := postForm(t, router, "/demo/register", form)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "10-digit Italian number")
}

func TestCheckPhone(t *testing.T) {
	var gotPhone string
	router := newTestRouter(fakeDirectory{}, fakeSlotPool{
		phoneExistsFn: func(ctx context.Context, pool, phone string) (bool, error) {
			gotPhone = phone
			return true, nil
		},
	}, fakeBots{}, "")

	req := httptest.NewRequest(http.MethodPost, "/demo/check-phone",
		strings.NewReader(`{"cellulare": "+39 333 123 4567"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp checkPhoneResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Exists)
	assert.Equal(t, "3331234567", gotPhone)
}

func TestCheckPhoneInvalidNumber(t *testing.T) {
	router := newTestRouter(fakeDirectory{}, fakeSlotPool{}, fakeBots{}, "")

	req := httptest.NewRequest(http.MethodPost, "/demo/check-phone",
		strings.NewReader(`{"cellulare": "123"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCheckPhoneUnknownStore(t *testing.T) {
	router := newTestRouter(fakeDirectory{}, fakeSlotPool{}, fakeBots{}, "")

	req := httptest.NewRequest(http.MethodPost, "/ghost/check-phone",
		strings.NewReader(`{"cellulare": "3331234567"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestBarcodeEndpointServesPNG(t *testing.T) {
	router := newTestRouter(fakeDirectory{}, fakeSlotPool{
		getSlotFn: func(ctx context.Context, pool string, id int64) (*models.CardSlot, error) {
			return &models.CardSlot{ID: id, Code: "2000000000017", State: models.SlotAssigned}, nil
		},
	}, fakeBots{}, "")

	req := httptest.NewRequest(http.MethodGet, "/demo/card/1/barcode", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, rec.Body.Bytes()[:4])
}

func TestBarcodeEndpointHidesFreeSlots(t *testing.T) {
	router := newTestRouter(fakeDirectory{}, fakeSlotPool{
		getSlotFn: func(ctx context.Context, pool string, id int64) (*models.CardSlot, error) {
			return &models.CardSlot{ID: id, Code: "2000000000017", State: models.SlotAvailable}, nil
		},
	}, fakeBots{}, "")

	req := httptest.NewRequest(http.MethodGet, "/demo/card/1/barcode", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdminStoresRequiresToken(t *testing.T) {
	router := newTestRouter(fakeDirectory{}, fakeSlotPool{}, fakeBots{}, "admin-secret")

	req := httptest.NewRequest(http.MethodGet, "/v1/admin/stores", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdminStoresListsPoolCounters(t *testing.T) {
	router := newTestRouter(fakeDirectory{}, fakeSlotPool{}, fakeBots{}, "admin-secret")

	tokenAuth := jwtauth.New("HS256", []byte("admin-secret"), nil)
	_, tokenString, err := tokenAuth.Encode(map[string]interface{}{"sub": "ops"})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/v1/admin/stores", nil)
	req.Header.Set("Authorization", "Bearer "+tokenString)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	data, err := json.Marshal(resp.Data)
	require.NoError(t, err)

	var statuses []service.StoreStatus
	require.NoError(t, json.Unmarshal(data, &statuses))
	require.Len(t, statuses, 1)
	assert.Equal(t, "demo", statuses[0].Token)
	assert.Equal(t, int64(4), statuses[0].Available)
	assert.Equal(t, int64(1), statuses[0].Assigned)
}

func TestAdminRoutesDisabledWithoutSecret(t *testing.T) {
	router := newTestRouter(fakeDirectory{}, fakeSlotPool{}, fakeBots{}, "")

	req := httptest.NewRequest(http.MethodGet, "/v1/admin/stores", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	// falls through to the per-store route tree, which has no such path
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
