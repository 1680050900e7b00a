package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/Bando358/ecmis-sub006/domain"
	"github.com/Bando358/ecmis-sub006/internal/database"
)

type ctxKey string

const (
	ctxUserID   ctxKey = "userID"
	ctxRole     ctxKey = "role"
	ctxClinicID ctxKey = "clinicID"
)

const (
	roleManager = "manager"
	roleStaff   = "staff"
)

type authClaims struct {
	UserID   int64  `json:"user_id"`
	Role     string `json:"role"`
	ClinicID *int64 `json:"clinic_id,omitempty"`
	jwt.RegisteredClaims
}

func (h *Handler) generateToken(user domain.User) (string, error) {
	claims := authClaims{
		UserID:   user.ID,
		Role:     user.Role,
		ClinicID: user.ClinicID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(24 * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(h.secret))
}

var errMissingToken = errors.New("missing bearer token")

// parseToken validates the request's bearer token.
func (h *Handler) parseToken(r *http.Request) (*authClaims, error) {
	header := r.Header.Get("Authorization")
	if header == "" || !strings.HasPrefix(strings.ToLower(header), "bearer ") {
		return nil, errMissingToken
	}
	tokenString := strings.TrimSpace(header[len("Bearer "):])
	token, err := jwt.ParseWithClaims(tokenString, &authClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(h.secret), nil
	})
	if err != nil || !token.Valid {
		return nil, errors.New("invalid token")
	}
	claims, ok := token.Claims.(*authClaims)
	if !ok {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}

func (h *Handler) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := h.parseToken(r)
		if err != nil {
			respondError(w, http.StatusUnauthorized, err.Error())
			return
		}
		ctx := context.WithValue(r.Context(), ctxUserID, claims.UserID)
		ctx = context.WithValue(ctx, ctxRole, claims.Role)
		if claims.ClinicID != nil {
			ctx = context.WithValue(ctx, ctxClinicID, *claims.ClinicID)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (h *Handler) requireRole(w http.ResponseWriter, r *http.Request, allowed ...string) bool {
	current, _ := r.Context().Value(ctxRole).(string)
	if current == "" {
		respondError(w, http.StatusUnauthorized, "missing role")
		return false
	}
	for _, allowedRole := range allowed {
		if current == allowedRole {
			return true
		}
	}
	respondError(w, http.StatusForbidden, "insufficient permissions")
	return false
}

// currentUser is the id every stock operation is attributed to.
func currentUser(r *http.Request) int64 {
	id, _ := r.Context().Value(ctxUserID).(int64)
	return id
}

// Auth Handlers

type registerRequest struct {
	Username string `json:"username" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	Role     string `json:"role" validate:"required,oneof=manager staff"`
	ClinicID *int64 `json:"clinic_id,omitempty" validate:"omitempty,gt=0"`
}

type authResponse struct {
	Token string      `json:"token"`
	User  domain.User `json:"user"`
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !h.bind(w, r, &req) {
		return
	}
	if !h.allowRegistration(w, r, req.Role) {
		return
	}
	if req.Role == roleStaff && req.ClinicID == nil {
		respondError(w, http.StatusBadRequest, "clinic_id is required for staff")
		return
	}
	if req.ClinicID != nil {
		if _, err := h.dir.Clinic(r.Context(), *req.ClinicID); err != nil {
			h.respondServiceError(w, r, "register", err)
			return
		}
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to secure password")
		return
	}

	user := domain.User{
		Username:  strings.TrimSpace(req.Username),
		Email:     strings.ToLower(req.Email),
		Role:      req.Role,
		ClinicID:  req.ClinicID,
		CreatedAt: time.Now().UTC().Format(time.RFC3339Nano),
	}
	err = h.db.QueryRowxContext(r.Context(), h.db.Rebind(`INSERT INTO users (username, email, password, role, clinic_id, created_at) VALUES (?, ?, ?, ?, ?, ?) RETURNING id`),
		user.Username, user.Email, string(hashed), user.Role, user.ClinicID, user.CreatedAt).Scan(&user.ID)
	if database.IsUniqueViolation(err) {
		respondError(w, http.StatusConflict, "email already exists")
		return
	}
	if err != nil {
		h.respondServiceError(w, r, "register", err)
		return
	}

	token, err := h.generateToken(user)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to generate token")
		return
	}

	h.log.WithField("user_id", user.ID).Info("user registered")
	respondJSON(w, http.StatusCreated, authResponse{Token: token, User: user})
}

// allowRegistration lets anyone create the first manager. Once a manager
// exists, only a manager's token may register further accounts.
func (h *Handler) allowRegistration(w http.ResponseWriter, r *http.Request, role string) bool {
	var managers int
	err := h.db.GetContext(r.Context(), &managers, h.db.Rebind(`SELECT COUNT(*) FROM users WHERE role = ?`), roleManager)
	if err != nil {
		h.respondServiceError(w, r, "register", err)
		return false
	}
	if managers == 0 {
		if role != roleManager {
			respondError(w, http.StatusForbidden, "the first account must be a manager")
			return false
		}
		return true
	}
	claims, err := h.parseToken(r)
	if err != nil {
		respondError(w, http.StatusUnauthorized, err.Error())
		return false
	}
	if claims.Role != roleManager {
		respondError(w, http.StatusForbidden, "insufficient permissions")
		return false
	}
	return true
}

type loginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !h.bind(w, r, &req) {
		return
	}

	var user domain.User
	err := h.db.GetContext(r.Context(), &user, h.db.Rebind(`SELECT id, username, email, password, role, clinic_id, created_at FROM users WHERE email = ?`), strings.ToLower(req.Email))
	if err != nil {
		respondError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)) != nil {
		respondError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	token, err := h.generateToken(user)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to generate token")
		return
	}

	user.Password = ""
	respondJSON(w, http.StatusOK, authResponse{Token: token, User: user})
}
