package echoapi

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-lms/core"
	"github.com/trezcool/masomo-lms/core/lms"
	"github.com/trezcool/masomo-lms/services/notify"
)

type notificationApi struct {
	svc    *lms.Service
	hub    *notify.Hub
	logger core.Logger
}

func registerNotificationAPI(g *echo.Group, deps ServerDeps) {
	api := notificationApi{svc: deps.LMSSvc, hub: deps.Hub, logger: deps.Logger}

	ng := g.Group("/notifications", authMiddleware(deps.Guard))
	ng.GET("", api.query)
	ng.GET("/ws", api.stream)
	ng.PUT("/:id/read", api.markRead)
}

func (api *notificationApi) query(ctx echo.Context) error {
	ident, err := contextIdentity(ctx)
	if err != nil {
		return err
	}
	var unreadOnly bool
	if err = echo.QueryParamsBinder(ctx).Bool("unread", &unreadOnly).BindError(); err != nil {
		return err
	}
	notifs, err := api.svc.Notifications(ctx.Request().Context(), ident, unreadOnly)
	if err != nil {
		return errors.Wrap(err, "querying notifications")
	}
	return ctx.JSON(http.StatusOK, notifs)
}

func (api *notificationApi) markRead(ctx echo.Context) error {
	ident, err := contextIdentity(ctx)
	if err != nil {
		return err
	}
	id, err := pathID(ctx, "id", lms.KindNotification)
	if err != nil {
		return err
	}
	n, err := api.svc.MarkNotificationRead(ctx.Request().Context(), ident, id)
	if err != nil {
		return errors.Wrap(err, "marking notification read")
	}
	return ctx.JSON(http.StatusOK, n)
}

// stream pushes the caller's new notifications over a websocket.
func (api *notificationApi) stream(ctx echo.Context) error {
	ident, err := contextIdentity(ctx)
	if err != nil {
		return err
	}
	if api.hub == nil {
		return errHttpNotFound
	}
	if err = api.hub.Serve(ctx.Response(), ctx.Request(), ident.ID); err != nil {
		// the upgrader already replied
		api.logger.Debug(fmt.Sprintf("streaming notifications: %v", err), err, ident)
	}
	return nil
}
