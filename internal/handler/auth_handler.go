package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"personal-assistant-api/internal/auth"
	"personal-assistant-api/internal/model"
	"personal-assistant-api/internal/store"
)

const refreshTokenTTL = 7 * 24 * time.Hour

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) RegisterUser(c echo.Context) error {
	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Email == "" || req.Password == "" || req.Name == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "all fields required")
	}
	if len(req.Password) < 8 {
		return echo.NewHTTPError(http.StatusBadRequest, "password too short")
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	u := &model.User{
		ID:           uuid.New().String(),
		Email:        req.Email,
		PasswordHash: hash,
		Name:         req.Name,
	}
	if err := h.store.CreateUser(c.Request().Context(), u); err != nil {
		// unique violation = dup email, but don't reveal that
		return echo.NewHTTPError(http.StatusConflict, "registration failed")
	}

	tok, err := auth.MakeToken(u.ID, u.Email, h.secret)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	return c.JSON(http.StatusCreated, map[string]string{"userId": u.ID, "token": tok})
}

func (h *Handler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Email == "" || req.Password == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "email and password required")
	}

	ctx := c.Request().Context()
	u, err := h.store.UserByEmail(ctx, req.Email)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid credentials")
	}
	if !auth.CheckPassword(u.PasswordHash, req.Password) {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid credentials")
	}

	accessTok, err := auth.MakeToken(u.ID, u.Email, h.secret)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	rawRefresh, tokenHash, err := auth.GenerateRefreshToken()
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
	if _, err := h.store.CreateRefreshToken(ctx, u.ID, tokenHash, time.Now().Add(refreshTokenTTL)); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	setAuthCookies(c, accessTok, rawRefresh)
	return c.JSON(http.StatusOK, map[string]string{
		"userId": u.ID,
		"name":   u.Name,
		"token":  accessTok,
	})
}

func (h *Handler) Refresh(c echo.Context) error {
	cookie, err := c.Cookie("refresh_token")
	if err != nil || cookie.Value == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "missing refresh token")
	}

	ctx := c.Request().Context()
	rt, err := h.store.RefreshTokenByHash(ctx, auth.HashRefreshToken(cookie.Value))
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid refresh token")
	}
	if rt.Revoked || time.Now().After(rt.ExpiresAt) {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid refresh token")
	}

	u, err := h.store.UserByID(ctx, rt.UserID)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid refresh token")
	}

	// rotate: the presented token is single-use
	newRaw, newHash, err := auth.GenerateRefreshToken()
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
	newID := uuid.New().String()
	if err := h.store.RotateRefreshToken(ctx, rt.ID, newID, rt.UserID, newHash, time.Now().Add(refreshTokenTTL)); err != nil {
		h.logger.Error("refresh rotation failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	accessTok, err := auth.MakeToken(u.ID, u.Email, h.secret)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	setAuthCookies(c, accessTok, newRaw)
	return c.JSON(http.StatusOK, map[string]string{"token": accessTok})
}

func (h *Handler) Logout(c echo.Context) error {
	if err := h.store.RevokeAllRefreshTokens(c.Request().Context(), userID(c)); err != nil {
		h.logger.Error("logout revoke failed", zap.Error(err))
	}
	clearAuthCookies(c)
	return c.JSON(http.StatusOK, map[string]string{"message": "Logged out"})
}

func (h *Handler) Me(c echo.Context) error {
	u, err := h.store.UserByEmail(c.Request().Context(), userEmail(c))
	if errors.Is(err, store.ErrNotFound) {
		return echo.NewHTTPError(http.StatusUnauthorized, "not authenticated")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
	return c.JSON(http.StatusOK, map[string]string{
		"id":         u.ID,
		"email":      u.Email,
		"name":       u.Name,
		"avatar_url": u.AvatarURL,
	})
}

func setAuthCookies(c echo.Context, accessTok, rawRefresh string) {
	c.SetCookie(&http.Cookie{Name: "access_token", Value: accessTok, HttpOnly: true, Path: "/"})
	c.SetCookie(&http.Cookie{Name: "refresh_token", Value: rawRefresh, HttpOnly: true, Path: "/auth/"})
}

func clearAuthCookies(c echo.Context) {
	c.SetCookie(&http.Cookie{Name: "access_token", Value: "", HttpOnly: true, Path: "/", MaxAge: -1})
	c.SetCookie(&http.Cookie{Name: "refresh_token", Value: "", HttpOnly: true, Path: "/auth/", MaxAge: -1})
}
