package echoapi

import (
	"net/http"
	"sort"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/usajili/core"
	"github.com/trezcool/usajili/core/notify"
	"github.com/trezcool/usajili/core/student"
)

const ProfileUpdatedMessage = "Profile updated"

type studentApi struct {
	svc        student.Service
	tray       *notify.Tray
	logger     core.Logger
	validate   *validator.Validate
	translator ut.Translator
}

func registerStudentAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := studentApi{
		svc:        deps.StudentSvc,
		tray:       deps.Tray,
		logger:     deps.Logger,
		validate:   deps.Validate,
		translator: deps.Translator,
	}

	sg := g.Group("/students")

	// un-authed endpoints
	sg.POST("/register", api.register, rateLimitMiddleware(deps.Conf.Server.RegisterRatePerMinute))
	sg.POST("/login", api.login)

	// authed endpoints
	ag := sg.Group("", jwt)
	ag.POST("/token-refresh", api.refreshToken)
	ag.GET("/me", api.me)
	ag.PATCH("/me", api.updateMe)
	ag.GET("", api.query, adminMiddleware())
	ag.DELETE("", api.destroyMultiple, adminMiddleware())
	ag.DELETE("/:id", api.destroy, adminMiddleware())
}

// Handlers

func (api *studentApi) register(ctx echo.Context) error {
	var data student.NewStudent
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewStudent")
	}
	reqCtx := ctx.Request().Context()
	if err := data.Validate(reqCtx, api.validate, api.svc); err != nil {
		return err
	}

	st, item, err := api.svc.Register(reqCtx, data)
	if err != nil {
		return errors.Wrap(err, "registering student")
	}
	return ctx.JSON(http.StatusCreated, RegisterResponse{Student: st, Notification: item})
}

func (api *studentApi) login(ctx echo.Context) error {
	var data LoginRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LoginRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	st, err := authenticate(ctx.Request().Context(), data.Email, data.Password, api.svc)
	if err != nil {
		return errors.Wrap(err, "authenticating")
	}
	token, err := GenerateToken(GetStudentClaims(st))
	if err != nil {
		return errors.Wrap(err, "generating token")
	}

	if _, err = api.tray.Push(st.ID, notify.New("Welcome back, "+st.Name+"!", notify.KindInfo)); err != nil {
		api.logger.Error("pushing login notification", errors.Wrap(err, "pushing login notification"), st)
	}
	return ctx.JSON(http.StatusOK, LoginResponse{Token: token})
}

func (api *studentApi) refreshToken(ctx echo.Context) error {
	token, err := refreshToken(ctx, api.svc)
	if err != nil {
		return errors.Wrap(err, "refreshing token")
	}
	return ctx.JSON(http.StatusOK, LoginResponse{Token: token})
}

func (api *studentApi) me(ctx echo.Context) error {
	st, err := getContextStudent(ctx, api.svc)
	if err != nil {
		return errors.Wrap(err, "getting context student")
	}
	return ctx.JSON(http.StatusOK, st)
}

func (api *studentApi) updateMe(ctx echo.Context) error {
	st, err := getContextStudent(ctx, api.svc)
	if err != nil {
		return errors.Wrap(err, "getting context student")
	}

	var data student.UpdateStudent
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateStudent")
	}
	// students cannot (de)activate or promote themselves
	data.IsActive = nil
	data.IsAdmin = nil
	if err = data.Validate(st, api.validate); err != nil {
		return err
	}

	st, err = api.svc.Update(ctx.Request().Context(), st.ID, data)
	if err != nil {
		return errors.Wrap(err, "updating student")
	}
	if _, err = api.tray.Push(st.ID, notify.New(ProfileUpdatedMessage, notify.KindSuccess)); err != nil {
		api.logger.Error("pushing profile notification", errors.Wrap(err, "pushing profile notification"), st)
	}
	return ctx.JSON(http.StatusOK, st)
}

func (api *studentApi) query(ctx echo.Context) error {
	filter, err := bindQueryFilter(ctx)
	if err != nil {
		return ctx.JSON(http.StatusOK, []student.Student{})
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	students, err := api.svc.Query(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying students")
	}
	if students == nil {
		students = []student.Student{}
	}
	return ctx.JSON(http.StatusOK, students)
}

func (api *studentApi) destroy(ctx echo.Context) error {
	reqCtx := ctx.Request().Context()
	st, err := api.svc.GetByID(reqCtx, ctx.Param("id"))
	if err != nil {
		if errors.Cause(err) == student.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "finding student by ID")
	}

	// ctxStudent cannot delete themselves
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	if st.ID == claims.Subject {
		return errHttpForbidden
	}

	if err := api.svc.Delete(reqCtx, st.ID); err != nil {
		return errors.Wrap(err, "deleting student")
	}
	api.tray.DismissAll(st.ID)
	return ctx.NoContent(http.StatusNoContent)
}

func (api *studentApi) destroyMultiple(ctx echo.Context) error {
	ids := ctx.QueryParams()["id"]
	if len(ids) == 0 {
		return ctx.NoContent(http.StatusNoContent)
	}

	// ctxStudent cannot delete themselves
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	sort.Strings(ids)
	if i := sort.SearchStrings(ids, claims.Subject); i < len(ids) {
		if match := ids[i]; claims.Subject == match {
			return errHttpForbidden
		}
	}

	if err := api.svc.Delete(ctx.Request().Context(), ids...); err != nil {
		return errors.Wrap(err, "deleting students")
	}
	for _, id := range ids {
		api.tray.DismissAll(id)
	}
	return ctx.NoContent(http.StatusNoContent)
}

type (
	RegisterResponse struct {
		Student      student.Student `json:"student"`
		Notification notify.Item     `json:"notification"`
	}

	LoginRequest struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required"`
	}

	LoginResponse struct {
		Token string `json:"token"`
	}
)

func (lr *LoginRequest) Validate(validate *validator.Validate) error {
	lr.Email = core.CleanString(lr.Email, true /* lower */)
	return validate.Struct(lr)
}
