package login

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/patient-portal/internal/model"
	"github.com/nhle/patient-portal/internal/theme"
)

// LoginSubmitMsg is dispatched when the user submits the login form.
type LoginSubmitMsg struct {
	Username string
	Password string
}

// RegisterSubmitMsg is dispatched when the user submits the registration form.
type RegisterSubmitMsg struct {
	Username string
	Email    string
	Password string
	Role     model.Role
}

// Mode selects which form the view shows.
type Mode int

const (
	ModeLogin Mode = iota
	ModeRegister
)

// formBindings holds form field values on the heap so that huh's Value()
// pointers remain valid across Bubble Tea model copies.
type formBindings struct {
	username string
	email    string
	password string
	role     string
}

// Model is the Bubble Tea model for the login and registration forms.
type Model struct {
	form    *huh.Form
	fb      *formBindings
	mode    Mode
	errMsg  string
	infoMsg string
	busy    bool
	width   int
	height  int
}

// New creates the login view in login mode.
func New(width, height int) Model {
	m := Model{
		fb:     &formBindings{role: string(model.RolePatient)},
		mode:   ModeLogin,
		width:  width,
		height: height,
	}
	m.form = m.buildForm()
	return m
}

// Init starts the active form.
func (m Model) Init() tea.Cmd {
	return m.form.Init()
}

// SwitchMode toggles between login and registration, resetting the form.
func (m *Model) SwitchMode() tea.Cmd {
	if m.mode == ModeLogin {
		m.mode = ModeRegister
	} else {
		m.mode = ModeLogin
	}
	m.errMsg = ""
	m.infoMsg = ""
	m.fb.password = ""
	m.form = m.buildForm()
	return m.form.Init()
}

// SetError shows a user-visible failure message and re-arms the form so
// the user can retry.
func (m *Model) SetError(msg string) tea.Cmd {
	m.busy = false
	m.errMsg = msg
	m.form = m.buildForm()
	return m.form.Init()
}

// SetInfo shows a confirmation message (e.g. registration succeeded) and
// re-arms the form.
func (m *Model) SetInfo(msg string) tea.Cmd {
	m.busy = false
	m.infoMsg = msg
	m.form = m.buildForm()
	return m.form.Init()
}

// Update handles messages for the active form.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if m.form == nil || m.busy {
		return m, nil
	}

	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	if m.form.State == huh.StateCompleted {
		m.busy = true
		m.errMsg = ""
		return m, m.submit()
	}

	return m, cmd
}

// View renders the active form with any error or info banner.
func (m Model) View() string {
	titleText := "Sign in to HealthCare Portal"
	if m.mode == ModeRegister {
		titleText = "Create an account"
	}

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1)

	var b strings.Builder
	b.WriteString(titleStyle.Render(titleText))
	b.WriteString("\n")
	if m.errMsg != "" {
		b.WriteString(theme.ErrorStyle.Render(m.errMsg))
		b.WriteString("\n")
	}
	if m.infoMsg != "" {
		b.WriteString(theme.SuccessStyle.Render(m.infoMsg))
		b.WriteString("\n")
	}
	if m.busy {
		b.WriteString(theme.HelpStyle.Render("Signing in..."))
		b.WriteString("\n")
	}
	b.WriteString(m.form.View())
	b.WriteString("\n")
	b.WriteString(theme.HelpStyle.Render("ctrl+t: switch login/register"))

	return theme.FormStyle.Render(b.String())
}

// SetSize updates the view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}

func (m *Model) submit() tea.Cmd {
	fb := *m.fb
	mode := m.mode
	return func() tea.Msg {
		if mode == ModeRegister {
			return RegisterSubmitMsg{
				Username: fb.username,
				Email:    fb.email,
				Password: fb.password,
				Role:     model.Role(fb.role),
			}
		}
		return LoginSubmitMsg{
			Username: fb.username,
			Password: fb.password,
		}
	}
}

func (m *Model) buildForm() *huh.Form {
	fields := []huh.Field{
		huh.NewInput().
			Title("Username").
			Placeholder("Enter your username").
			Value(&m.fb.username).
			Validate(validateRequired("Username")),
	}

	if m.mode == ModeRegister {
		fields = append(fields,
			huh.NewInput().
				Title("Email").
				Placeholder("you@example.com").
				Value(&m.fb.email).
				Validate(validateRequired("Email")),
		)
	}

	fields = append(fields,
		huh.NewInput().
			Title("Password").
			EchoMode(huh.EchoModePassword).
			Value(&m.fb.password).
			Validate(validateRequired("Password")),
	)

	if m.mode == ModeRegister {
		fields = append(fields,
			huh.NewSelect[string]().
				Title("Role").
				Options(
					huh.NewOption("Patient", string(model.RolePatient)),
					huh.NewOption("Provider", string(model.RoleProvider)),
				).
				Value(&m.fb.role),
		)
	}

	return huh.NewForm(
		huh.NewGroup(fields...),
	).WithWidth(m.formWidth())
}

func (m *Model) formWidth() int {
	w := m.width - 8
	if w > 60 {
		w = 60
	}
	if w < 20 {
		w = 20
	}
	return w
}

func validateRequired(name string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return &requiredError{field: name}
		}
		return nil
	}
}

type requiredError struct {
	field string
}

func (e *requiredError) Error() string {
	return e.field + " is required"
}
