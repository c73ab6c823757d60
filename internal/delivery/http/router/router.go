// Package router contains routing and server setup for the HTTP delivery.
package router

import (
	"passport/internal/delivery/http/middleware"
	"passport/internal/delivery/http/router/handler"
	"passport/internal/domain/entity"

	"github.com/labstack/echo/v4"
	"go.uber.org/fx"
)

type RouterParams struct {
	fx.In

	SessionHandler      *handler.SessionHandler
	SessionMiddleware   *middleware.SessionMiddleware
	RequestIDMiddleware *middleware.RequestIDMiddleware
}

// router holds all the handlers that need to be registered.
type router struct {
	sessionHandler      *handler.SessionHandler
	sessionMiddleware   *middleware.SessionMiddleware
	requestIDMiddleware *middleware.RequestIDMiddleware
}

// NewRouter is the constructor for the Router.
// Fx will inject the required handlers here.
func NewRouter(params RouterParams) *router {
	return &router{
		sessionHandler:      params.SessionHandler,
		sessionMiddleware:   params.SessionMiddleware,
		requestIDMiddleware: params.RequestIDMiddleware,
	}
}

// RegisterRoutes sets up all the API routes for the application.
func (r *router) RegisterRoutes(e *echo.Echo) {
	e.Use(r.requestIDMiddleware.Process)

	// Health check endpoint
	e.GET("/health", handler.HealthCheck)

	// Session routes
	sessionGroup := e.Group("/session")
	{
		sessionGroup.GET("", r.sessionHandler.GetSession)
		sessionGroup.POST("/sign-in", r.sessionHandler.SignIn)
		sessionGroup.POST("/sign-in/:provider", r.sessionHandler.SignInWithProvider)
		sessionGroup.POST("/callback", r.sessionHandler.SessionCallback)
		sessionGroup.POST("/sign-out", r.sessionHandler.SignOut)
	}

	// Admin routes require an admin or super_admin role
	adminGroup := e.Group("/admin")
	adminGroup.Use(r.sessionMiddleware.RequireRole(entity.RoleAdmin))
	{
		adminGroup.GET("/session", r.sessionHandler.GetSession)
	}
}
