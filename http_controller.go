package accounts

import (
	"errors"
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
)

// RouteRegistrar captures the router methods used by the controller.
type RouteRegistrar interface {
	Get(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
	Post(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
}

type AccountsControllerRoutes struct {
	Register             string
	ConfirmEmail         string
	Login                string
	PasswordReset        string
	PasswordResetConfirm string
}

// AccountsController exposes the account lifecycle as a JSON API.
type AccountsController struct {
	Debug         bool
	Logger        Logger
	Repo          RepositoryManager
	Auther        Authenticator
	Register      *RegisterUserHandler
	ConfirmEmail  *ConfirmEmailHandler
	ResetInit     *InitializePasswordResetHandler
	ResetFinalize *FinalizePasswordResetHandler
	Routes        *AccountsControllerRoutes
}

type AccountsControllerOption func(*AccountsController) *AccountsController

func NewAccountsController(opts ...AccountsControllerOption) *AccountsController {
	c := &AccountsController{
		Logger: defLogger{},
		Routes: &AccountsControllerRoutes{
			Register:             "/register",
			ConfirmEmail:         "/confirm-email/:key",
			Login:                "/login",
			PasswordReset:        "/password-reset",
			PasswordResetConfirm: "/password-reset/confirm",
		},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Repo == nil {
		panic("Missing RepositoryManager in accounts controller...")
	}

	if c.Register == nil || c.ConfirmEmail == nil || c.ResetInit == nil || c.ResetFinalize == nil {
		panic("Missing command handlers in accounts controller...")
	}

	if c.Auther == nil {
		panic("Missing Authenticator in accounts controller...")
	}

	return c
}

// RegisterAccountRoutes mounts the account lifecycle routes.
func RegisterAccountRoutes(app RouteRegistrar, opts ...AccountsControllerOption) *AccountsController {
	controller := NewAccountsController(opts...)

	app.Post(controller.Routes.Register, controller.RegistrationCreate)
	app.Get(controller.Routes.ConfirmEmail, controller.ConfirmEmailShow)
	app.Post(controller.Routes.Login, controller.LoginPost)
	app.Post(controller.Routes.PasswordReset, controller.PasswordResetPost)
	app.Post(controller.Routes.PasswordResetConfirm, controller.PasswordResetConfirm)

	return controller
}

// RegistrationCreatePayload is the registration request body
type RegistrationCreatePayload struct {
	FirstName       string `form:"first_name" json:"first_name"`
	LastName        string `form:"last_name" json:"last_name"`
	Email           string `form:"email" json:"email"`
	Phone           string `form:"phone_number" json:"phone_number"`
	Password        string `form:"password" json:"password"`
	ConfirmPassword string `form:"confirm_password" json:"confirm_password"`
	EmailMarketing  bool   `form:"email_marketing" json:"email_marketing"`
	SMSMarketing    bool   `form:"sms_marketing" json:"sms_marketing"`
	TOSAccepted     bool   `form:"tos_accepted" json:"tos_accepted"`
}

// Validate will validate the payload
func (r RegistrationCreatePayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.FirstName, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.LastName, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.Email, validation.Required, validation.Length(6, 100), is.Email),
		validation.Field(&r.Password, validation.Required, validation.Length(8, 128)),
		validation.Field(
			&r.ConfirmPassword,
			validation.Required,
			validation.By(ValidateStringEquals(r.Password)),
		),
	)
}

func (a *AccountsController) RegistrationCreate(ctx router.Context) error {
	payload := new(RegistrationCreatePayload)

	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("register account parse payload: %v", err)
		return ctx.JSON(fiber.StatusBadRequest, map[string]any{
			"error": "failed to parse request body",
		})
	}

	if err := payload.Validate(); err != nil {
		a.Logger.Error("register account validate payload: %v", err)
		return ctx.JSON(fiber.StatusBadRequest, map[string]any{
			"error":      "invalid registration payload",
			"validation": FormatValidationErrorToMap(err),
		})
	}

	if a.Debug {
		fmt.Println("======= ACCOUNT REGISTER ======")
		fmt.Println(print.MaybePrettyJSON(payload))
		fmt.Println("===============================")
	}

	var res *RegisterUserResponse

	req := RegisterUserMessage{
		FirstName:      payload.FirstName,
		LastName:       payload.LastName,
		Email:          payload.Email,
		Phone:          payload.Phone,
		Password:       payload.Password,
		EmailMarketing: payload.EmailMarketing,
		SMSMarketing:   payload.SMSMarketing,
		TOSAccepted:    payload.TOSAccepted,
		OnResponse: func(resp *RegisterUserResponse) {
			res = resp
		},
	}

	if err := a.Register.Execute(ctx.Context(), req); err != nil {
		a.Logger.Error("register account error: %v", err)
		return a.respondError(ctx, err)
	}

	return ctx.JSON(fiber.StatusCreated, map[string]any{
		"id":         res.User.ID,
		"email":      res.User.Email,
		"first_name": res.User.FirstName,
		"last_name":  res.User.LastName,
		"verified":   res.User.IsVerified,
	})
}

func (a *AccountsController) ConfirmEmailShow(ctx router.Context) error {
	key := ctx.Param("key")

	var res *ConfirmEmailResponse
	req := ConfirmEmailMessage{
		Key: key,
		OnResponse: func(resp *ConfirmEmailResponse) {
			res = resp
		},
	}

	if err := a.ConfirmEmail.Execute(ctx.Context(), req); err != nil {
		a.Logger.Error("confirm email error: %v", err)
		return a.respondError(ctx, err)
	}

	return ctx.Redirect(res.Redirect, fiber.StatusSeeOther)
}

// LoginRequest payload
type LoginRequest struct {
	Identifier string `form:"identifier" json:"identifier"`
	Password   string `form:"password" json:"password"`
}

// Validate will run validation rules
func (r LoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(
			&r.Identifier,
			validation.Required,
			is.Email,
		),
		validation.Field(
			&r.Password,
			validation.Required,
		),
	)
}

func (a *AccountsController) LoginPost(ctx router.Context) error {
	payload := new(LoginRequest)

	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("login parse payload: %v", err)
		return ctx.JSON(fiber.StatusBadRequest, map[string]any{
			"error": "failed to parse request body",
		})
	}

	if err := payload.Validate(); err != nil {
		return ctx.JSON(fiber.StatusBadRequest, map[string]any{
			"error":      "invalid login payload",
			"validation": FormatValidationErrorToMap(err),
		})
	}

	token, err := a.Auther.Login(ctx.Context(), payload.Identifier, payload.Password)
	if err != nil {
		a.Logger.Error("login error: %v", err)
		return ctx.JSON(fiber.StatusUnauthorized, map[string]any{
			"error": "Authentication Error",
		})
	}

	return ctx.JSON(fiber.StatusOK, map[string]any{
		"token": token,
	})
}

// PasswordResetRequestPayload holds values for password reset
type PasswordResetRequestPayload struct {
	Email string `form:"email" json:"email"`
	Stage string `form:"stage" json:"stage"`
}

// Validate will validate the payload
func (r PasswordResetRequestPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(
			&r.Stage,
			validation.Required,
			validation.In(
				ResetInit,
			),
		),
		validation.Field(
			&r.Email,
			validation.Required,
			is.Email,
		),
	)
}

func (a *AccountsController) PasswordResetPost(ctx router.Context) error {
	payload := new(PasswordResetRequestPayload)

	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("password reset parse payload: %v", err)
		return ctx.JSON(fiber.StatusBadRequest, map[string]any{
			"error": "failed to parse request body",
		})
	}

	if payload.Stage == "" {
		payload.Stage = ResetInit
	}

	if err := payload.Validate(); err != nil {
		return ctx.JSON(fiber.StatusBadRequest, map[string]any{
			"error":      "invalid password reset payload",
			"validation": FormatValidationErrorToMap(err),
		})
	}

	var res *InitializePasswordResetResponse

	req := InitializePasswordResetMessage{
		Stage: payload.Stage,
		Email: payload.Email,
		OnResponse: func(resp *InitializePasswordResetResponse) {
			res = resp
		},
	}

	if err := a.ResetInit.Execute(ctx.Context(), req); err != nil {
		a.Logger.Error("password reset error: %v", err)
		return a.respondError(ctx, err)
	}

	if a.Debug {
		fmt.Println("======= PASSWORD RESET ======")
		fmt.Println(print.MaybePrettyJSON(res))
		fmt.Println("=============================")
	}

	return ctx.JSON(fiber.StatusOK, map[string]any{
		"stage": res.Stage,
	})
}

// PasswordResetConfirmPayload carries the reset session and the new
// password pair.
type PasswordResetConfirmPayload struct {
	Session      string `form:"session" json:"session"`
	NewPassword1 string `form:"new_password1" json:"new_password1"`
	NewPassword2 string `form:"new_password2" json:"new_password2"`
}

// Validate will validate the payload
func (r PasswordResetConfirmPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Session, validation.Required, is.UUID),
		validation.Field(&r.NewPassword1, validation.Required, validation.Length(8, 128)),
		validation.Field(
			&r.NewPassword2,
			validation.Required,
			validation.By(ValidateStringEquals(r.NewPassword1)),
		),
	)
}

func (a *AccountsController) PasswordResetConfirm(ctx router.Context) error {
	payload := new(PasswordResetConfirmPayload)

	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("password reset confirm parse payload: %v", err)
		return ctx.JSON(fiber.StatusBadRequest, map[string]any{
			"error": "failed to parse request body",
		})
	}

	if err := payload.Validate(); err != nil {
		return ctx.JSON(fiber.StatusBadRequest, map[string]any{
			"error":      "invalid password reset payload",
			"validation": FormatValidationErrorToMap(err),
		})
	}

	req := FinalizePasswordResetMessage{
		Session:      payload.Session,
		NewPassword1: payload.NewPassword1,
		NewPassword2: payload.NewPassword2,
	}

	if err := a.ResetFinalize.Execute(ctx.Context(), req); err != nil {
		a.Logger.Error("password reset confirm error: %v", err)
		return a.respondError(ctx, err)
	}

	return ctx.JSON(fiber.StatusOK, map[string]any{
		"detail": "Password has been reset with the new password.",
	})
}

func (a *AccountsController) respondError(ctx router.Context, err error) error {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return ctx.JSON(fiber.StatusInternalServerError, map[string]any{
			"error": "internal server error",
		})
	}

	status := statusFromError(richErr)
	body := map[string]any{
		"error": richErr.Message,
	}

	if richErr.TextCode != "" {
		body["code"] = richErr.TextCode
	}

	if len(richErr.Metadata) > 0 && status < fiber.StatusInternalServerError {
		body["metadata"] = richErr.Metadata
	}

	return ctx.JSON(status, body)
}

func statusFromError(richErr *goerrors.Error) int {
	switch richErr.Code {
	case goerrors.CodeBadRequest:
		return fiber.StatusBadRequest
	case goerrors.CodeUnauthorized:
		return fiber.StatusUnauthorized
	case goerrors.CodeForbidden:
		return fiber.StatusForbidden
	case goerrors.CodeNotFound:
		return fiber.StatusNotFound
	case goerrors.CodeConflict:
		return fiber.StatusConflict
	}

	switch richErr.Category {
	case goerrors.CategoryValidation, goerrors.CategoryBadInput:
		return fiber.StatusBadRequest
	case goerrors.CategoryAuth:
		return fiber.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return fiber.StatusForbidden
	case goerrors.CategoryNotFound:
		return fiber.StatusNotFound
	case goerrors.CategoryConflict:
		return fiber.StatusConflict
	}

	return fiber.StatusInternalServerError
}

// ValidateStringEquals will check that both values match
func ValidateStringEquals(str string) validation.RuleFunc {
	return func(value any) error {
		s, _ := value.(string)
		if s != str {
			return errors.New("values must match")
		}
		return nil
	}
}

// FormatValidationErrorToMap flattens ozzo validation errors into a
// field -> message map for JSON responses.
func FormatValidationErrorToMap(err error) map[string]string {
	out := map[string]string{}
	if err == nil {
		return out
	}

	var verrs validation.Errors
	if errors.As(err, &verrs) {
		for field, ferr := range verrs {
			if ferr != nil {
				out[field] = ferr.Error()
			}
		}
		return out
	}

	out["error"] = err.Error()
	return out
}
