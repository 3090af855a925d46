// Package demo is the login screen: two input rows with a footer, and a
// login row that can only be selected once both inputs are filled in.
package demo

import (
	"context"
	"sync"

	"github.com/vango-dev/flix/pkg/builder"
	"github.com/vango-dev/flix/pkg/node"
	"github.com/vango-dev/flix/pkg/provider"
	"github.com/vango-dev/flix/pkg/stream"
)

// Heights of the demo rows and footer.
const (
	FieldHeight  = 44
	FooterHeight = 35
)

// Field is an input row.
type Field struct {
	Name        string `json:"name"`
	Placeholder string `json:"placeholder"`
	Secure      bool   `json:"secure,omitempty"`
}

// Button is the login row. Enabled follows whether both inputs are filled.
type Button struct {
	Title   string `json:"title"`
	Enabled bool   `json:"enabled"`
}

// Note is the footer under the inputs.
type Note struct {
	Text string `json:"text"`
}

// Login holds the input state of the screen.
type Login struct {
	Username *stream.Var[string]
	Password *stream.Var[string]

	mu      sync.Mutex
	logins  []string
	onLogin func(username string)
}

// NewLogin creates an empty login screen.
func NewLogin() *Login {
	return &Login{
		Username: stream.NewVar(""),
		Password: stream.NewVar(""),
	}
}

// OnLogin sets a callback run on every accepted login.
func (l *Login) OnLogin(fn func(username string)) {
	l.mu.Lock()
	l.onLogin = fn
	l.mu.Unlock()
}

// Logins returns the usernames of accepted logins, in order.
func (l *Login) Logins() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.logins...)
}

// Verified emits whether both inputs are non-empty.
func (l *Login) Verified() *stream.Stream[bool] {
	return stream.CombineLatest2(l.Username.Stream(), l.Password.Stream(), func(u, p string) bool {
		return u != "" && p != ""
	})
}

func (l *Login) login() {
	user := l.Username.Get()
	l.mu.Lock()
	l.logins = append(l.logins, user)
	fn := l.onLogin
	l.mu.Unlock()
	if fn != nil {
		fn(user)
	}
}

// Sections builds the provider tree of the screen.
func Sections(l *Login) []*provider.Section {
	fieldHeight := provider.WithHeight(func(node.IndexPath, Field) float64 { return FieldHeight })

	username := provider.NewStaticRow("username", Field{Name: "username", Placeholder: "Username"}, fieldHeight)
	password := provider.NewStaticRow("password", Field{Name: "password", Placeholder: "Password", Secure: true}, fieldHeight)
	footer := provider.NewFooter("input-footer", stream.Just(&Note{}),
		provider.WithHeight(func(node.IndexPath, Note) float64 { return FooterHeight }))

	button := stream.Map(l.Verified(), func(ok bool) *Button {
		return &Button{Title: "Log in", Enabled: ok}
	})
	loginRow := provider.NewRow("login", button,
		provider.WithCanEdit(func(node.IndexPath, Button) bool { return false }),
		provider.WithSelect(func(_ node.IndexPath, b Button) {
			// Selection only counts while the displayed row is enabled.
			if b.Enabled {
				l.login()
			}
		}),
	)

	return []*provider.Section{
		provider.NewSection("input-section", []provider.RowProvider{username, password}, provider.WithFooter(footer)),
		provider.NewSection("login-section", []provider.RowProvider{loginRow}),
	}
}

// LoginPath is the index path of the login row.
var LoginPath = node.IndexPath{Section: 1, Row: 0}

// Step is one scripted interaction with the screen.
type Step struct {
	Name string
	Do   func(ctx context.Context, l *Login, b *builder.Builder) error
}

// Steps is a scripted session: fill both inputs, log in, clear the password
// and try again.
func Steps() []Step {
	tap := func(ctx context.Context, _ *Login, b *builder.Builder) error {
		return b.Select(ctx, LoginPath)
	}
	return []Step{
		{Name: "type username", Do: func(_ context.Context, l *Login, _ *builder.Builder) error {
			l.Username.Set("dianqk")
			return nil
		}},
		{Name: "type password", Do: func(_ context.Context, l *Login, _ *builder.Builder) error {
			l.Password.Set("secret")
			return nil
		}},
		{Name: "tap login", Do: tap},
		{Name: "clear password", Do: func(_ context.Context, l *Login, _ *builder.Builder) error {
			l.Password.Set("")
			return nil
		}},
		{Name: "tap login while disabled", Do: tap},
	}
}
