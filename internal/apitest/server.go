// Package apitest поднимает фейковый backend API сервиса подписок для тестов.
//
// Сервер воспроизводит несогласованность настоящего API: ответ на
// GET /subscriptions/current задаётся тестом как сырой статус и тело.
package apitest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/magabrotheeeer/entitlement-session/internal/lib/jwt"
	"github.com/magabrotheeeer/entitlement-session/internal/lib/password"
	"github.com/magabrotheeeer/entitlement-session/internal/models"
)

// Reply сырой ответ, который сервер отдаст на запрос.
type Reply struct {
	Status int
	Body   string
}

// Типовые ответы GET /subscriptions/current.
var (
	ReplyNull         = Reply{Status: http.StatusOK, Body: "null"}
	ReplyEmptyString  = Reply{Status: http.StatusOK, Body: `""`}
	ReplyEmptyBody    = Reply{Status: http.StatusOK, Body: ""}
	ReplyEmptyObject  = Reply{Status: http.StatusOK, Body: "{}"}
	ReplyNoActiveText = Reply{Status: http.StatusOK, Body: `"No active subscription found"`}
	ReplyNotFound     = Reply{Status: http.StatusNotFound, Body: `{"status":"Error","error":"No active subscription"}`}
	ReplyServerError  = Reply{Status: http.StatusInternalServerError, Body: `{"status":"Error","error":"internal error"}`}
	ReplyTrue         = Reply{Status: http.StatusOK, Body: "true"}
	ReplyFalse        = Reply{Status: http.StatusOK, Body: "false"}
)

type user struct {
	id           string
	email        string
	passwordHash string
	firstName    string
	lastName     string
	current      Reply
	status       Reply
}

type ctxKey struct{}

// Server фейковый backend.
type Server struct {
	*httptest.Server

	jwt      *jwt.MakerImpl
	validate *validator.Validate

	mu       sync.Mutex
	users    map[string]*user
	revoked  map[string]bool
	plans    []models.Plan
	picks    []models.StockPick
	messages []models.ContactRequest
	calls    map[string]int
	gates    map[string]*gate
}

type gate struct {
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

// New запускает сервер и закрывает его по окончании теста.
func New(t testing.TB) *Server {
	s := &Server{
		jwt:      jwt.NewJWTMaker("apitest-secret", time.Hour),
		validate: validator.New(),
		users:    make(map[string]*user),
		revoked:  make(map[string]bool),
		calls:    make(map[string]int),
		gates:    make(map[string]*gate),
		plans: []models.Plan{
			{ID: "basic", Name: "Basic", Description: "Weekly picks", Price: 19, DurationMonths: 1},
			{ID: "pro", Name: "Pro", Description: "Daily picks and charts", Price: 49, DurationMonths: 1, Features: []string{"charts", "news"}},
		},
		picks: defaultPicks(),
	}
	s.Server = httptest.NewServer(s.routes())
	t.Cleanup(s.Close)
	return s
}

// BaseURL адрес API для клиента.
func (s *Server) BaseURL() string {
	return s.URL + "/api"
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/login", s.count("/auth/login", s.login))
		r.Post("/auth/register", s.count("/auth/register", s.register))
		r.Get("/subscriptions/plans", s.count("/subscriptions/plans", s.listPlans))
		r.Post("/contact/submit", s.count("/contact/submit", s.contact))

		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)
			r.Get("/subscriptions/current", s.count("/subscriptions/current", s.current))
			r.Get("/subscriptions/status", s.count("/subscriptions/status", s.status))
			r.Post("/subscriptions/cancel", s.count("/subscriptions/cancel", s.cancel))
			r.Post("/subscriptions/create-checkout-session", s.count("/subscriptions/create-checkout-session", s.checkout))
			r.Post("/subscriptions/create", s.count("/subscriptions/create", s.createSubscription))
			s.stockPickRoutes(r)
		})
	})
	return r
}

// AddUser регистрирует пользователя и возвращает его ID.
func (s *Server) AddUser(email, rawPassword, firstName, lastName string) string {
	hash, err := password.GetHashWithCost(rawPassword, bcrypt.MinCost)
	if err != nil {
		panic(fmt.Sprintf("apitest: hash password: %v", err))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addUserLocked(email, hash, firstName, lastName).id
}

func (s *Server) addUserLocked(email, hash, firstName, lastName string) *user {
	u := &user{
		id:           uuid.NewString(),
		email:        email,
		passwordHash: hash,
		firstName:    firstName,
		lastName:     lastName,
		current:      ReplyNull,
		status:       ReplyFalse,
	}
	s.users[strings.ToLower(email)] = u
	return u
}

// SetCurrent задаёт ответ GET /subscriptions/current для пользователя.
func (s *Server) SetCurrent(email string, reply Reply) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mustUser(email).current = reply
}

// SetStatus задаёт ответ GET /subscriptions/status для пользователя.
func (s *Server) SetStatus(email string, reply Reply) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mustUser(email).status = reply
}

// Revoke делает токен недействительным: запросы с ним получат 401.
func (s *Server) Revoke(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.revoked[token] = true
}

// Calls возвращает число обращений к пути (без префикса /api).
func (s *Server) Calls(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[path]
}

// Block задерживает ответы на путь до вызова release.
// Канал entered закрывается, когда первый запрос дошёл до обработчика.
func (s *Server) Block(path string) (entered <-chan struct{}, release func()) {
	g := &gate{entered: make(chan struct{}), release: make(chan struct{})}
	s.mu.Lock()
	s.gates[path] = g
	s.mu.Unlock()

	var released sync.Once
	return g.entered, func() {
		released.Do(func() { close(g.release) })
	}
}

func (s *Server) mustUser(email string) *user {
	u, ok := s.users[strings.ToLower(email)]
	if !ok {
		panic("apitest: unknown user " + email)
	}
	return u
}

func (s *Server) count(path string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.calls[path]++
		g := s.gates[path]
		s.mu.Unlock()

		if g != nil {
			g.once.Do(func() { close(g.entered) })
			select {
			case <-g.release:
			case <-r.Context().Done():
				return
			}
		}
		next(w, r)
	}
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, errorResponse("missing or invalid authorization header"))
			return
		}
		token := strings.TrimPrefix(authHeader, "Bearer ")

		claims, err := s.jwt.ParseToken(token)
		s.mu.Lock()
		revoked := s.revoked[token]
		s.mu.Unlock()
		if err != nil || revoked {
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, errorResponse("invalid or expired token"))
			return
		}
		ctx := context.WithValue(r.Context(), ctxKey{}, strings.ToLower(claims.Email))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type authResponse struct {
	Token     string `json:"token"`
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

func (s *Server) issue(w http.ResponseWriter, r *http.Request, u *user) {
	token, err := s.jwt.GenerateToken(u.id, u.email)
	if err != nil {
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, errorResponse("could not generate token"))
		return
	}
	render.JSON(w, r, authResponse{
		Token:     token,
		ID:        u.id,
		Email:     u.email,
		FirstName: u.firstName,
		LastName:  u.lastName,
	})
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req models.Credentials
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, errorResponse("failed to decode request"))
		return
	}
	if err := s.validate.Struct(req); err != nil {
		var validateErr validator.ValidationErrors
		if errors.As(err, &validateErr) {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, validationError(validateErr))
			return
		}
	}

	s.mu.Lock()
	u, ok := s.users[strings.ToLower(req.Email)]
	s.mu.Unlock()
	if !ok || password.CompareHash(u.passwordHash, req.Password) != nil {
		render.Status(r, http.StatusUnauthorized)
		render.JSON(w, r, errorResponse("incorrect email or password"))
		return
	}
	s.issue(w, r, u)
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, errorResponse("failed to decode request"))
		return
	}
	if err := s.validate.Struct(req); err != nil {
		var validateErr validator.ValidationErrors
		if errors.As(err, &validateErr) {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, validationError(validateErr))
			return
		}
	}

	hash, err := password.GetHashWithCost(req.Password, bcrypt.MinCost)
	if err != nil {
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, errorResponse("could not hash password"))
		return
	}

	s.mu.Lock()
	if _, exists := s.users[strings.ToLower(req.Email)]; exists {
		s.mu.Unlock()
		render.Status(r, http.StatusConflict)
		render.JSON(w, r, errorResponse("email already registered"))
		return
	}
	u := s.addUserLocked(req.Email, hash, req.FirstName, req.LastName)
	s.mu.Unlock()

	s.issue(w, r, u)
}

func (s *Server) listPlans(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	plans := append([]models.Plan(nil), s.plans...)
	s.mu.Unlock()
	render.JSON(w, r, plans)
}

func (s *Server) userFromCtx(r *http.Request) *user {
	email, _ := r.Context().Value(ctxKey{}).(string)
	return s.users[email]
}

func writeReply(w http.ResponseWriter, reply Reply) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(reply.Status)
	_, _ = w.Write([]byte(reply.Body))
}

func (s *Server) current(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	reply := s.userFromCtx(r).current
	s.mu.Unlock()
	writeReply(w, reply)
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	reply := s.userFromCtx(r).status
	s.mu.Unlock()
	writeReply(w, reply)
}

func (s *Server) cancel(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	u := s.userFromCtx(r)
	u.current = ReplyNull
	u.status = ReplyFalse
	s.mu.Unlock()
	render.JSON(w, r, Response{Status: StatusOK})
}

func (s *Server) checkout(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PlanID string `json:"planId" validate:"required"`
	}
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, errorResponse("failed to decode request"))
		return
	}
	if err := s.validate.Struct(req); err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, errorResponse("planId is required"))
		return
	}

	s.mu.Lock()
	var found bool
	for _, p := range s.plans {
		if p.ID == req.PlanID {
			found = true
			break
		}
	}
	s.mu.Unlock()
	if !found {
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, errorResponse("plan not found"))
		return
	}

	id := uuid.NewString()
	render.JSON(w, r, models.CheckoutSession{
		SessionID: id,
		URL:       s.URL + "/checkout/" + id,
	})
}
