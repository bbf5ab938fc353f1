// Package router wires every HTTP route to its handler and declares,
// route by route, which authentication the resolver must enforce.
package router

import (
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"finapp-server/internal/handler"
	"finapp-server/internal/middleware"
)

// Deps carries the constructed handlers and middleware into Register.
type Deps struct {
	Resolver  *middleware.Resolver
	RateLimit echo.MiddlewareFunc

	Auth      *handler.AuthHandler
	User      *handler.UserHandler
	Category  *handler.CategoryHandler
	Entry     *handler.EntryHandler
	Dashboard *handler.DashboardHandler
	Chat      *handler.ChatHandler
	SSE       *handler.SSEHandler
	Notify    *handler.NotifyHandler
}

// Register attaches all routes. Every route names its auth requirement
// explicitly; nothing is reachable without passing through the resolver.
func Register(e *echo.Echo, d Deps) {
	e.Use(echomw.Recover())
	e.Use(echomw.Logger())
	if d.RateLimit != nil {
		e.Use(d.RateLimit)
	}

	e.GET("/healthz", handler.Health, d.Resolver.Require(middleware.AuthNone))

	v1 := e.Group("/v1")

	// public
	v1.POST("/auth/login", d.Auth.Login, d.Resolver.Require(middleware.AuthNone))
	v1.POST("/auth/refresh", d.Auth.Refresh, d.Resolver.Require(middleware.AuthNone))
	v1.POST("/users", d.User.Register, d.Resolver.Require(middleware.AuthNone))

	// stream auth happens via single-use ?code=
	v1.GET("/sse", d.SSE.Stream, d.Resolver.Require(middleware.AuthOneTimeCode))

	// authenticated
	jwt := d.Resolver.Require(middleware.AuthJWT)
	v1.POST("/auth/logout", d.Auth.Logout, jwt)
	v1.POST("/auth/code", d.Auth.Code, jwt)

	v1.GET("/users/me", d.User.Me, jwt)
	v1.PATCH("/users", d.User.Update, jwt)

	v1.POST("/categories", d.Category.Create, jwt)
	v1.GET("/categories", d.Category.List, jwt)
	v1.GET("/categories/:id", d.Category.Get, jwt)
	v1.PATCH("/categories/:id", d.Category.Update, jwt)
	v1.DELETE("/categories/:id", d.Category.Delete, jwt)

	v1.POST("/entries", d.Entry.Create, jwt)
	v1.GET("/entries", d.Entry.Search, jwt)
	v1.GET("/entries/:id", d.Entry.Get, jwt)
	v1.PATCH("/entries/:id", d.Entry.Update, jwt)
	v1.DELETE("/entries/:id", d.Entry.Delete, jwt)

	v1.GET("/dashboard", d.Dashboard.Summary, jwt)

	v1.POST("/chat", d.Chat.Turn, jwt)
	v1.GET("/chat", d.Chat.History, jwt)
	v1.DELETE("/chat", d.Chat.Reset, jwt)

	// trusted backends only
	e.POST("/internal/notify", d.Notify.Push, d.Resolver.Require(middleware.AuthAPIKey))
}
