package echoapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/usajili/core"
	"github.com/trezcool/usajili/core/notify"
)

const defaultHistoryLimit = 20

type notificationApi struct {
	tray     *notify.Tray
	validate *validator.Validate
}

func registerNotificationAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := notificationApi{tray: deps.Tray, validate: deps.Validate}

	ng := g.Group("/notifications", jwt)
	ng.GET("", api.list)
	ng.DELETE("", api.dismissAll)
	ng.GET("/history", api.history)
	ng.DELETE("/:id", api.dismiss)
	ng.PATCH("/:id", api.reschedule)
	ng.POST("", api.push, adminMiddleware())
}

func recipient(ctx echo.Context) (string, error) {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return "", errors.Wrap(err, "getting context claims")
	}
	return claims.Subject, nil
}

// Handlers

func (api *notificationApi) list(ctx echo.Context) error {
	rcpt, err := recipient(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, api.tray.Active(rcpt))
}

func (api *notificationApi) dismiss(ctx echo.Context) error {
	rcpt, err := recipient(ctx)
	if err != nil {
		return err
	}
	if err := api.tray.Dismiss(rcpt, ctx.Param("id")); err != nil {
		if errors.Cause(err) == notify.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "dismissing notification")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *notificationApi) dismissAll(ctx echo.Context) error {
	rcpt, err := recipient(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, DismissAllResponse{Dismissed: api.tray.DismissAll(rcpt)})
}

func (api *notificationApi) reschedule(ctx echo.Context) error {
	rcpt, err := recipient(ctx)
	if err != nil {
		return err
	}

	var data RescheduleRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to RescheduleRequest")
	}
	if err := api.validate.Struct(data); err != nil {
		return err
	}

	item, err := api.tray.Reschedule(rcpt, ctx.Param("id"), time.Duration(*data.AutoDismissMs)*time.Millisecond)
	if err != nil {
		if errors.Cause(err) == notify.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "rescheduling notification")
	}
	return ctx.JSON(http.StatusOK, item)
}

func (api *notificationApi) history(ctx echo.Context) error {
	rcpt, err := recipient(ctx)
	if err != nil {
		return err
	}

	limit := defaultHistoryLimit
	if val := ctx.QueryParam("limit"); val != "" {
		limit, err = strconv.Atoi(val)
		if err != nil || limit <= 0 {
			return core.NewValidationError(nil, core.FieldError{Field: "limit", Error: "must be a positive integer"})
		}
	}

	recs, err := api.tray.History(ctx.Request().Context(), rcpt, limit)
	if err != nil {
		return errors.Wrap(err, "listing notification history")
	}
	if recs == nil {
		recs = []notify.Record{}
	}
	return ctx.JSON(http.StatusOK, recs)
}

func (api *notificationApi) push(ctx echo.Context) error {
	var data notify.NewItem
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewItem")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	item, err := api.tray.Push(data.Recipient, data.Notification())
	if err != nil {
		if errors.Cause(err) == notify.ErrClosed {
			return errServiceUnavailable
		}
		return errors.Wrap(err, "pushing notification")
	}
	return ctx.JSON(http.StatusCreated, item)
}

type (
	RescheduleRequest struct {
		AutoDismissMs *int64 `json:"auto_dismiss_ms" validate:"required,min=0"`
	}

	DismissAllResponse struct {
		Dismissed int `json:"dismissed"`
	}
)
