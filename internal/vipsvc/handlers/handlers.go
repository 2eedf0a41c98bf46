package handlers

import (
	"embed"
	"encoding/json"
	"errors"
	"html/template"
	"net"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/registraction/vip-services/internal/vipsvc/barcode"
	"github.com/registraction/vip-services/internal/vipsvc/models"
	"github.com/registraction/vip-services/internal/vipsvc/phone"
	"github.com/registraction/vip-services/internal/vipsvc/service"
	"github.com/registraction/vip-services/internal/vipsvc/store"

	"github.com/go-chi/chi"
	"github.com/go-chi/jwtauth"
	log "github.com/sirupsen/logrus"
)

//go:embed templates/*.html
var templateFS embed.FS

var pages = template.Must(template.ParseFS(templateFS, "templates/*.html"))

var (
	namePattern  = regexp.MustCompile(`^[a-zA-Z\s]+$`)
	emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
)

type Handler struct {
	svc       *service.RegistrationService
	siteKey   string
	tokenAuth *jwtauth.JWTAuth
}

type Options struct {
	SiteKey   string
	JWTSecret string
}

func NewHandler(svc *service.RegistrationService, opts Options) *Handler {
	h := &Handler{
		svc:     svc,
		siteKey: opts.SiteKey,
	}
	if opts.JWTSecret != "" {
		h.tokenAuth = jwtauth.New("HS256", []byte(opts.JWTSecret), nil)
	}
	return h
}

type Response struct {
	Message string      `json:"message"`
	Code    int         `json:"code"`
	Data    interface{} `json:"data"`
	Error   string      `json:"error,omitempty"`
}

func (h *Handler) CreateResponse(w http.ResponseWriter, rsp Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(rsp.Code)

	json.NewEncoder(w).Encode(rsp)
}

func (h *Handler) RootHandler(w http.ResponseWriter, r *http.Request) {
	h.CreateResponse(w, Response{
		Message: "Welcome to Registraction",
		Code:    http.StatusOK,
	})
}

func (h *Handler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	h.CreateResponse(w, Response{
		Message: "vip service is running",
		Code:    http.StatusOK,
	})
}

type checkPhoneRequest struct {
	Phone string `json:"cellulare"`
}

type checkPhoneResponse struct {
	Exists bool `json:"exists"`
}

// CheckPhoneHandler answers the pre-registration lookup the form does
// while the customer is still typing.
func (h *Handler) CheckPhoneHandler(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	var req checkPhoneRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.CreateResponse(w, Response{Code: http.StatusBadRequest, Error: "invalid request body"})
		return
	}

	exists, err := h.svc.CheckPhone(r.Context(), token, req.Phone)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrStoreNotFound):
			h.CreateResponse(w, Response{Code: http.StatusNotFound, Error: "store not found"})
		case errors.Is(err, phone.ErrInvalid):
			h.CreateResponse(w, Response{Code: http.StatusBadRequest, Error: err.Error()})
		default:
			log.Errorf("check-phone failed for store %s: %v", token, err)
			h.CreateResponse(w, Response{Code: http.StatusInternalServerError, Error: "internal error"})
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(checkPhoneResponse{Exists: exists})
}

type formPage struct {
	Token     string
	StoreName string
	SiteKey   string
	Warning   string
	Form      service.Registration
}

type dashboardPage struct {
	Token   string
	Slot    *models.CardSlot
	Barcode template.URL
}

// RegisterFormHandler shows the registration form for the store.
func (h *Handler) RegisterFormHandler(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	st, err := h.svc.Store(r.Context(), token)
	if err != nil {
		if errors.Is(err, store.ErrStoreNotFound) {
			h.CreateResponse(w, Response{Code: http.StatusNotFound, Error: "store not found"})
			return
		}
		log.Errorf("resolve store %s: %v", token, err)
		h.CreateResponse(w, Response{Code: http.StatusInternalServerError, Error: "internal error"})
		return
	}

	h.renderForm(w, formPage{
		Token:     token,
		StoreName: st.Name,
		SiteKey:   h.siteKey,
	})
}

// RegisterHandler runs a registration submitted from the form. Input
// problems re-show the form with a warning; resource problems surface as
// request failures.
func (h *Handler) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	st, err := h.svc.Store(r.Context(), token)
	if err != nil {
		if errors.Is(err, store.ErrStoreNotFound) {
			h.CreateResponse(w, Response{Code: http.StatusNotFound, Error: "store not found"})
			return
		}
		log.Errorf("resolve store %s: %v", token, err)
		h.CreateResponse(w, Response{Code: http.StatusInternalServerError, Error: "internal error"})
		return
	}

	if err := r.ParseForm(); err != nil {
		h.CreateResponse(w, Response{Code: http.StatusBadRequest, Error: "invalid form body"})
		return
	}

	reg := service.Registration{
		Phone:      strings.TrimSpace(r.PostFormValue("cellulare")),
		BirthDate:  strings.TrimSpace(r.PostFormValue("nascita")),
		FirstName:  strings.TrimSpace(r.PostFormValue("nome")),
		LastName:   strings.TrimSpace(r.PostFormValue("cognome")),
		Email:      strings.TrimSpace(r.PostFormValue("email")),
		Address:    strings.TrimSpace(r.PostFormValue("indirizzo")),
		City:       strings.TrimSpace(r.PostFormValue("citta")),
		Province:   strings.TrimSpace(r.PostFormValue("prov")),
		PostalCode: strings.TrimSpace(r.PostFormValue("cap")),
	}
	page := formPage{
		Token:     token,
		StoreName: st.Name,
		SiteKey:   h.siteKey,
		Form:      reg,
	}

	if warning := validateRegistration(reg); warning != "" {
		page.Warning = warning
		h.renderForm(w, page)
		return
	}

	challenge := r.PostFormValue("g-recaptcha-response")
	slot, err := h.svc.Register(r.Context(), token, challenge, clientIP(r), reg)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrCaptchaRejected):
			page.Warning = "Captcha verification failed, please try again"
			h.renderForm(w, page)
		case errors.Is(err, phone.ErrInvalid):
			page.Warning = "Cellulare must be a 10-digit Italian number"
			h.renderForm(w, page)
		case errors.Is(err, store.ErrPhoneTaken):
			page.Warning = "This phone number is already registered"
			h.renderForm(w, page)
		case errors.Is(err, store.ErrPoolExhausted):
			log.Errorf("no available VIP slots for store %s", token)
			h.CreateResponse(w, Response{Code: http.StatusBadRequest, Error: "no available VIP slots"})
		default:
			log.Errorf("registration failed for store %s: %v", token, err)
			h.CreateResponse(w, Response{Code: http.StatusInternalServerError, Error: "registration failed"})
		}
		return
	}

	// The slot is committed at this point. A render failure is terminal
	// for the request; the barcode endpoint re-renders from the stored
	// code without touching the assignment.
	img, err := barcode.RenderPNG(slot.Code, barcode.DefaultWidth, barcode.DefaultHeight)
	if err != nil {
		log.Errorf("barcode render failed for card %d (code %s): %v", slot.ID, slot.Code, err)
		h.CreateResponse(w, Response{Code: http.StatusInternalServerError, Error: "barcode generation failed"})
		return
	}

	h.renderPage(w, "dashboard.html", dashboardPage{
		Token:   token,
		Slot:    slot,
		Barcode: template.URL(barcode.DataURI(img)),
	})
}

// BarcodeHandler re-renders the barcode of an assigned card from its
// persisted code.
func (h *Handler) BarcodeHandler(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.CreateResponse(w, Response{Code: http.StatusBadRequest, Error: "invalid card id"})
		return
	}

	slot, err := h.svc.GetCard(r.Context(), token, id)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrStoreNotFound), errors.Is(err, store.ErrSlotNotFound):
			h.CreateResponse(w, Response{Code: http.StatusNotFound, Error: "card not found"})
		default:
			log.Errorf("load card %d for store %s: %v", id, token, err)
			h.CreateResponse(w, Response{Code: http.StatusInternalServerError, Error: "internal error"})
		}
		return
	}

	img, err := barcode.RenderPNG(slot.Code, barcode.DefaultWidth, barcode.DefaultHeight)
	if err != nil {
		log.Errorf("barcode render failed for card %d (code %s): %v", slot.ID, slot.Code, err)
		h.CreateResponse(w, Response{Code: http.StatusInternalServerError, Error: "barcode generation failed"})
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Write(img)
}

// AdminStoresHandler lists every store with its pool counters.
func (h *Handler) AdminStoresHandler(w http.ResponseWriter, r *http.Request) {
	statuses, err := h.svc.PoolStatus(r.Context())
	if err != nil {
		log.Errorf("pool status: %v", err)
		h.CreateResponse(w, Response{Code: http.StatusInternalServerError, Error: "internal error"})
		return
	}

	h.CreateResponse(w, Response{
		Message: "store pool status",
		Code:    http.StatusOK,
		Data:    statuses,
	})
}

func validateRegistration(reg service.Registration) string {
	if reg.FirstName == "" || !namePattern.MatchString(reg.FirstName) {
		return "Nome must contain only letters and spaces"
	}
	if reg.LastName == "" || !namePattern.MatchString(reg.LastName) {
		return "Cognome must contain only letters and spaces"
	}
	if reg.Email != "" && !emailPattern.MatchString(reg.Email) {
		return "Invalid email format"
	}
	return ""
}

func (h *Handler) renderForm(w http.ResponseWriter, page formPage) {
	h.renderPage(w, "register.html", page)
}

func (h *Handler) renderPage(w http.ResponseWriter, name string, data interface{}) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := pages.ExecuteTemplate(w, name, data); err != nil {
		log.Errorf("render %s: %v", name, err)
	}
}

func clientIP(r *http.Request) string {
	// middleware.RealIP already rewrote RemoteAddr when the proxy
	// headers were present; it may or may not still carry a port.
	if ip, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return ip
	}
	return r.RemoteAddr
}
