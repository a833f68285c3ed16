package tui

import (
	"errors"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/hay-kot/parley/internal/coach"
	"github.com/hay-kot/parley/internal/styles"
)

// AuthMode selects between signing in and creating an account.
type AuthMode int

const (
	ModeLogin AuthMode = iota
	ModeRegister
)

// AuthForm wraps a huh.Form for the signed out screen.
type AuthForm struct {
	form *huh.Form

	mode     AuthMode
	username string
	email    string
	password string
	confirm  string
}

// AuthFormResult holds the submitted values.
type AuthFormResult struct {
	Mode     AuthMode
	Username string
	Password string
	Register coach.RegisterInput
}

// NewAuthForm creates the sign in form, keeping username from a previous
// attempt.
func NewAuthForm(mode AuthMode, username string) *AuthForm {
	f := &AuthForm{mode: mode, username: username}

	required := func(label string) func(string) error {
		return func(s string) error {
			if strings.TrimSpace(s) == "" {
				return errors.New(label + " is required")
			}
			return nil
		}
	}

	f.form = huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[AuthMode]().
				Title("Account").
				Options(
					huh.NewOption("Sign in", ModeLogin),
					huh.NewOption("Create account", ModeRegister),
				).
				Value(&f.mode),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Username").
				Value(&f.username).
				Validate(required("username")),
			huh.NewInput().
				Title("Password").
				EchoMode(huh.EchoModePassword).
				Value(&f.password).
				Validate(required("password")),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Email").
				Value(&f.email).
				Validate(required("email")),
			huh.NewInput().
				Title("Confirm password").
				EchoMode(huh.EchoModePassword).
				Value(&f.confirm).
				Validate(func(s string) error {
					if s != f.password {
						return errors.New("passwords do not match")
					}
					return nil
				}),
		).WithHideFunc(func() bool { return f.mode != ModeRegister }),
	).WithTheme(styles.FormTheme()).WithShowHelp(true)

	return f
}

// Form returns the underlying huh.Form for tea.Model integration.
func (f *AuthForm) Form() *huh.Form {
	return f.form
}

// SetForm stores the form returned by Update.
func (f *AuthForm) SetForm(form *huh.Form) {
	f.form = form
}

// Completed reports whether the form was submitted.
func (f *AuthForm) Completed() bool {
	return f.form.State == huh.StateCompleted
}

// Aborted reports whether the form was cancelled.
func (f *AuthForm) Aborted() bool {
	return f.form.State == huh.StateAborted
}

// Result returns the form result. Only valid once Completed() is true.
func (f *AuthForm) Result() AuthFormResult {
	return AuthFormResult{
		Mode:     f.mode,
		Username: strings.TrimSpace(f.username),
		Password: f.password,
		Register: coach.RegisterInput{
			Username:        f.username,
			Email:           f.email,
			Password:        f.password,
			ConfirmPassword: f.confirm,
		},
	}
}

// View renders the form.
func (f *AuthForm) View() string {
	return f.form.View()
}
