package social

import (
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/gofiber/fiber/v2"
	accounts "github.com/goliatone/go-accounts"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-router"
)

// RouteRegistrar captures the router methods used by the controller.
type RouteRegistrar interface {
	Get(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
	Post(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
}

// HTTPController handles social login HTTP routes.
type HTTPController struct {
	authenticator *SocialAuthenticator
	logger        accounts.Logger
}

// NewHTTPController creates a new social login HTTP controller.
func NewHTTPController(authenticator *SocialAuthenticator) *HTTPController {
	return &HTTPController{
		authenticator: authenticator,
	}
}

// WithLogger sets the logger used by the controller.
func (c *HTTPController) WithLogger(logger accounts.Logger) *HTTPController {
	if logger != nil {
		c.logger = logger
	}
	return c
}

// RegisterRoutes mounts the social login routes under the given registrar.
func (c *HTTPController) RegisterRoutes(group RouteRegistrar) {
	group.Get("/providers", c.ListProviders)
	group.Post("/:provider/token", c.TokenLogin)
	group.Post("/:provider", c.CodeLogin)
}

// ListProviders returns available social providers.
func (c *HTTPController) ListProviders(ctx router.Context) error {
	return ctx.JSON(fiber.StatusOK, map[string]any{
		"providers": c.authenticator.ListProviders(),
	})
}

// CodeLoginPayload carries an OAuth2 authorization code.
type CodeLoginPayload struct {
	Code string `form:"code" json:"code"`
}

// Validate will validate the payload
func (r CodeLoginPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Code, validation.Required),
	)
}

// CodeLogin exchanges an authorization code for a local session.
func (c *HTTPController) CodeLogin(ctx router.Context) error {
	providerName := ctx.Param("provider")

	payload := new(CodeLoginPayload)
	if err := ctx.Bind(payload); err != nil {
		return ctx.JSON(fiber.StatusBadRequest, map[string]any{
			"error": "failed to parse request body",
		})
	}

	if err := payload.Validate(); err != nil {
		return ctx.JSON(fiber.StatusBadRequest, map[string]any{
			"error": "No authorization code provided",
		})
	}

	result, err := c.authenticator.Login(ctx.Context(), AuthorizationCode(providerName, payload.Code))
	if err != nil {
		return c.respondError(ctx, err)
	}

	return ctx.JSON(fiber.StatusOK, map[string]any{
		"token":       result.Token,
		"message":     result.Message,
		"is_new_user": result.IsNewUser,
	})
}

// TokenLoginPayload carries a provider identity token, as produced by
// one-tap flows.
type TokenLoginPayload struct {
	IDToken string `form:"id_token" json:"id_token"`
}

// TokenLogin verifies a provider identity token and issues a local session.
func (c *HTTPController) TokenLogin(ctx router.Context) error {
	providerName := ctx.Param("provider")

	payload := new(TokenLoginPayload)
	if err := ctx.Bind(payload); err != nil {
		return ctx.JSON(fiber.StatusBadRequest, map[string]any{
			"error": "failed to parse request body",
		})
	}

	if payload.IDToken == "" {
		return ctx.JSON(fiber.StatusBadRequest, map[string]any{
			"error": "No id_token provided",
		})
	}

	result, err := c.authenticator.Login(ctx.Context(), IdentityToken(providerName, payload.IDToken))
	if err != nil {
		return c.respondError(ctx, err)
	}

	return ctx.JSON(fiber.StatusOK, map[string]any{
		"token":       result.Token,
		"message":     result.Message,
		"is_new_user": result.IsNewUser,
	})
}

func (c *HTTPController) respondError(ctx router.Context, err error) error {
	if c.logger != nil {
		c.logger.Error("social login error: %v", err)
	}

	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		// provider or storage trouble, not the caller's credential
		return ctx.JSON(fiber.StatusInternalServerError, map[string]any{
			"error": "internal server error",
		})
	}

	status := fiber.StatusBadRequest
	switch richErr.Code {
	case goerrors.CodeNotFound:
		status = fiber.StatusNotFound
	case goerrors.CodeForbidden:
		status = fiber.StatusForbidden
	case goerrors.CodeUnauthorized:
		status = fiber.StatusUnauthorized
	case goerrors.CodeInternal:
		status = fiber.StatusInternalServerError
	}

	body := map[string]any{
		"error": richErr.Message,
	}
	if richErr.TextCode != "" {
		body["code"] = richErr.TextCode
	}

	return ctx.JSON(status, body)
}
