package accounts

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/uptrace/bun"
)

type RegisterUserMessage struct {
	FirstName      string `json:"first_name"`
	LastName       string `json:"last_name"`
	Email          string `json:"email"`
	Phone          string `json:"phone_number"`
	Password       string `json:"password"`
	EmailMarketing bool   `json:"email_marketing"`
	SMSMarketing   bool   `json:"sms_marketing"`
	TOSAccepted    bool   `json:"tos_accepted"`
	UseHashid      bool
	OnResponse     func(*RegisterUserResponse)
}

func (e RegisterUserMessage) Type() string { return "account.register" }

type RegisterUserResponse struct {
	User         *User
	Confirmation *EmailConfirmation
}

// RegisterUserHandler creates an unverified account and dispatches its
// confirmation token. Account creation and token issuance commit together;
// the email send happens after, and a send failure deletes the account
// again. The delete is a compensating action, not a rollback: the mail
// transport sits outside the transaction boundary.
type RegisterUserHandler struct {
	repo     RepositoryManager
	mailer   TemplateSender
	config   ConfirmationConfig
	policy   PasswordPolicy
	activity ActivitySink
	logger   Logger
}

// NewRegisterUserHandler creates a handler with sane defaults.
func NewRegisterUserHandler(repo RepositoryManager, mailer TemplateSender, config ConfirmationConfig) *RegisterUserHandler {
	return &RegisterUserHandler{
		repo:     repo,
		mailer:   mailer,
		config:   config,
		policy:   DefaultPasswordPolicy(),
		activity: noopActivitySink{},
		logger:   defLogger{},
	}
}

// WithPasswordPolicy overrides the password policy.
func (h *RegisterUserHandler) WithPasswordPolicy(policy PasswordPolicy) *RegisterUserHandler {
	h.policy = policy
	return h
}

// WithActivitySink sets the sink used to emit registration events.
func (h *RegisterUserHandler) WithActivitySink(sink ActivitySink) *RegisterUserHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

// WithLogger overrides the logger used by the handler.
func (h *RegisterUserHandler) WithLogger(logger Logger) *RegisterUserHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *RegisterUserHandler) Execute(ctx context.Context, event RegisterUserMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during user registration",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *RegisterUserHandler) execute(ctx context.Context, event RegisterUserMessage) error {
	user := &User{}
	confirmation := &EmailConfirmation{}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	if err := h.policy.Validate(event.Password, event.Email, event.FirstName, event.LastName); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid password provided").
			WithCode(goerrors.CodeBadRequest).
			WithMetadata(map[string]any{"password": err.Error()})
	}

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		hash, err := HashPassword(event.Password)
		if err != nil {
			var richErr *goerrors.Error
			if goerrors.As(err, &richErr) {
				return goerrors.Wrap(richErr, goerrors.CategoryValidation, "invalid password provided")
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
		}

		user.PasswordHash = hash
		user.Email = event.Email
		user.FirstName = event.FirstName
		user.LastName = event.LastName
		user.IsVerified = false
		user.IsActive = true
		user.EmailMarketing = event.EmailMarketing
		user.SMSMarketing = event.SMSMarketing
		user.TOSAccepted = event.TOSAccepted
		if event.UseHashid {
			if id, err := hashid.NewUUID(event.Email); err == nil {
				user.ID = id
			}
		}

		if user, err = h.repo.Users().CreateTx(ctx, tx, user); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryConflict, "could not create user").
				WithTextCode(TextCodeEmailTaken).
				WithCode(goerrors.CodeConflict)
		}

		confirmation = NewEmailConfirmation(user, h.config.expiry())
		if confirmation, err = h.repo.Confirmations().CreateTx(ctx, tx, confirmation); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "could not issue confirmation token")
		}

		if event.Phone != "" {
			phone := &Phone{
				OwnerType: PhoneOwnerUser,
				OwnerID:   user.ID,
				PhoneType: "mobile",
				Number:    event.Phone,
				IsPrimary: true,
			}
			if _, err = h.repo.Phones().CreateNormalizedTx(ctx, tx, phone); err != nil {
				return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid phone number provided").
					WithCode(goerrors.CodeBadRequest).
					WithMetadata(map[string]any{"phone_number": event.Phone})
			}
		}

		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "user registration transaction failed")
	}

	if err := h.sendConfirmation(ctx, user, confirmation); err != nil {
		h.compensate(ctx, user)
		return NewTransportError(err, "confirmation email could not be sent")
	}

	h.recordActivity(ctx, ActivityEventUserRegistered, user, map[string]any{
		"confirmation_id": confirmation.ID.String(),
	})

	if event.OnResponse != nil {
		event.OnResponse(&RegisterUserResponse{User: user, Confirmation: confirmation})
	}

	return nil
}

func (h *RegisterUserHandler) sendConfirmation(ctx context.Context, user *User, confirmation *EmailConfirmation) error {
	return h.mailer.SendTemplate(ctx, user.Email, "Confirm your email address", h.config.ConfirmationTemplate, map[string]any{
		"user": user,
		"link": h.config.confirmationLink(confirmation.Key),
	})
}

// compensate removes the account created in this request. Registration has
// no other side effects yet, which is the only reason a delete is enough.
func (h *RegisterUserHandler) compensate(ctx context.Context, user *User) {
	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := h.repo.Confirmations().DeleteByUserTx(ctx, tx, user.ID); err != nil {
			return err
		}
		return h.repo.Users().HardDeleteTx(ctx, tx, user.ID)
	})

	if err != nil {
		h.logger.Error("registration compensation failed for %s: %v", user.Email, err)
		return
	}

	h.recordActivity(ctx, ActivityEventRegistrationRollback, user, nil)
}

func (h *RegisterUserHandler) recordActivity(ctx context.Context, eventType ActivityEventType, user *User, metadata map[string]any) {
	if user == nil {
		return
	}

	event := ActivityEvent{
		EventType: eventType,
		Actor: ActorRef{
			ID:   user.ID.String(),
			Type: "user",
		},
		UserID:     user.ID.String(),
		Metadata:   metadata,
		OccurredAt: time.Now(),
	}

	if err := normalizeActivitySink(h.activity).Record(ctx, event); err != nil {
		h.logger.Warn("activity sink error during registration: %v", err)
	}
}
