package accounts

import (
	"bytes"
	"context"

	"github.com/gofiber/template/django/v3"
	"github.com/goliatone/go-errors"
)

// Message is a rendered transactional email ready for transport.
type Message struct {
	To      string
	Subject string
	HTML    string
}

// Mailer delivers transactional email. Send blocks, there is no retry at
// this layer: registration compensates on failure, the confirmation welcome
// email logs and moves on.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// TemplateSender renders a named template and delivers the result. The
// flows depend on this rather than on TemplateMailer so tests can observe
// outbound mail without a template directory.
type TemplateSender interface {
	SendTemplate(ctx context.Context, to, subject, template string, binding map[string]any) error
}

// MailerFunc adapts a function into a Mailer.
type MailerFunc func(ctx context.Context, msg Message) error

// Send implements Mailer.
func (f MailerFunc) Send(ctx context.Context, msg Message) error {
	if f == nil {
		return nil
	}
	return f(ctx, msg)
}

// TemplateMailer renders django-style templates and hands the result to an
// underlying transport.
type TemplateMailer struct {
	engine    *django.Engine
	transport Mailer
	logger    Logger
}

// NewTemplateMailer loads templates from dir (files with the given
// extension, e.g. ".html") and wraps the given transport.
func NewTemplateMailer(dir, ext string, transport Mailer) (*TemplateMailer, error) {
	engine := django.New(dir, ext)
	if err := engine.Load(); err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to load mail templates")
	}

	return &TemplateMailer{
		engine:    engine,
		transport: transport,
		logger:    defLogger{},
	}, nil
}

// WithLogger overrides the logger used when rendering fails.
func (m *TemplateMailer) WithLogger(logger Logger) *TemplateMailer {
	if logger != nil {
		m.logger = logger
	}
	return m
}

// Render produces the HTML body for the named template.
func (m *TemplateMailer) Render(template string, binding map[string]any) (string, error) {
	var buf bytes.Buffer
	if err := m.engine.Render(&buf, template, binding); err != nil {
		return "", errors.Wrap(err, errors.CategoryInternal, "failed to render mail template")
	}
	return buf.String(), nil
}

// SendTemplate renders the named template and delivers it.
func (m *TemplateMailer) SendTemplate(ctx context.Context, to, subject, template string, binding map[string]any) error {
	html, err := m.Render(template, binding)
	if err != nil {
		return err
	}

	return m.transport.Send(ctx, Message{
		To:      to,
		Subject: subject,
		HTML:    html,
	})
}

// Send implements Mailer by passing a pre-rendered message through.
func (m *TemplateMailer) Send(ctx context.Context, msg Message) error {
	return m.transport.Send(ctx, msg)
}
