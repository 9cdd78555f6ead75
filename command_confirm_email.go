package accounts

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type ConfirmEmailMessage struct {
	Key        string `json:"key"`
	OnResponse func(*ConfirmEmailResponse)
}

func (e ConfirmEmailMessage) Type() string { return "account.confirm_email" }

type ConfirmEmailResponse struct {
	Confirmed bool   `json:"confirmed"`
	Redirect  string `json:"redirect"`
	User      *User  `json:"user,omitempty"`
}

// ConfirmEmailHandler consumes a confirmation token and flips the account's
// verification flag. Bad keys of any kind resolve to the failure redirect,
// never an error page. The verified flag is persisted before the welcome
// email goes out: verification is the durable fact, the welcome email is
// best effort and a failure there is only logged.
//
// The send-once guard is the verified flag itself. A crash between the flag
// commit and the send loses the welcome email permanently; there is no
// retry and no separate sent marker.
type ConfirmEmailHandler struct {
	repo     RepositoryManager
	mailer   TemplateSender
	config   ConfirmationConfig
	activity ActivitySink
	logger   Logger
}

// NewConfirmEmailHandler creates a handler with sane defaults.
func NewConfirmEmailHandler(repo RepositoryManager, mailer TemplateSender, config ConfirmationConfig) *ConfirmEmailHandler {
	return &ConfirmEmailHandler{
		repo:     repo,
		mailer:   mailer,
		config:   config,
		activity: noopActivitySink{},
		logger:   defLogger{},
	}
}

// WithActivitySink sets the sink used to emit confirmation events.
func (h *ConfirmEmailHandler) WithActivitySink(sink ActivitySink) *ConfirmEmailHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

// WithLogger overrides the logger used by the handler.
func (h *ConfirmEmailHandler) WithLogger(logger Logger) *ConfirmEmailHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *ConfirmEmailHandler) Execute(ctx context.Context, event ConfirmEmailMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during email confirmation",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *ConfirmEmailHandler) execute(ctx context.Context, event ConfirmEmailMessage) error {
	resp := &ConfirmEmailResponse{Redirect: h.config.FailureRedirect}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	var userID *uuid.UUID
	var transitioned bool

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		confirmation, err := h.repo.Confirmations().ConsumeTx(ctx, tx, event.Key)
		if err != nil {
			// unknown, expired, and reused keys all land here; callers are
			// not told which
			if repository.IsRecordNotFound(err) || goerrors.IsNotFound(err) {
				return nil
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to consume confirmation token")
		}

		if confirmation.UserID == nil {
			return goerrors.New("confirmation token is not associated with a user", goerrors.CategoryInternal)
		}

		transitioned, err = h.repo.Users().MarkVerifiedTx(ctx, tx, *confirmation.UserID)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to mark user verified")
		}

		userID = confirmation.UserID
		resp.Confirmed = true
		resp.Redirect = h.config.SuccessRedirect
		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to confirm email")
	}

	if userID != nil {
		user, err := h.repo.Users().GetByID(ctx, userID.String())
		if err != nil {
			h.logger.Error("failed to load confirmed user %s: %v", userID, err)
		} else {
			resp.User = user
			if transitioned {
				h.sendWelcome(ctx, user)
				h.recordActivity(ctx, user)
			}
		}
	}

	if event.OnResponse != nil {
		event.OnResponse(resp)
	}

	return nil
}

func (h *ConfirmEmailHandler) sendWelcome(ctx context.Context, user *User) {
	if user == nil {
		return
	}

	err := h.mailer.SendTemplate(ctx, user.Email, "Welcome to Our Platform!", h.config.WelcomeTemplate, map[string]any{
		"user":         user,
		"current_year": time.Now().Year(),
	})
	if err != nil {
		h.logger.Error("failed to send welcome email to %s: %v", user.Email, err)
		return
	}

	h.logger.Info("welcome email sent to %s", user.Email)
}

func (h *ConfirmEmailHandler) recordActivity(ctx context.Context, user *User) {
	if user == nil {
		return
	}

	event := ActivityEvent{
		EventType: ActivityEventEmailConfirmed,
		Actor: ActorRef{
			ID:   user.ID.String(),
			Type: "user",
		},
		UserID:     user.ID.String(),
		OccurredAt: time.Now(),
	}

	if err := normalizeActivitySink(h.activity).Record(ctx, event); err != nil {
		h.logger.Warn("activity sink error during email confirmation: %v", err)
	}
}
