package emails

import (
	"context"
	"io"

	"github.com/a-h/templ"

	"github.com/conneroisu/mailsmith/internal/registry"
	"github.com/conneroisu/mailsmith/internal/renderer"
)

const (
	titleStyle   = "font-size:1.25rem;font-weight:bold;margin:0;padding:0;color:#333;font-family:" + fontStack
	messageStyle = "font-size:1rem;line-height:1.6;color:#333;margin:0;padding:0;font-family:" + fontStack
	headerStyle  = "display:flex;justify-content:space-between;align-items:center;margin-bottom:24px"
	gridRow      = "display:flex;margin-bottom:12px"
	gridCell     = "flex:1;padding:12px 16px;border:none;margin:0;background-color:transparent;font-family:" + fontStack
	labelStyle   = "font-size:0.875rem;font-weight:bold;color:#666;margin:0 0 4px 0;padding:0;display:block;font-family:" + fontStack
	valueStyle   = "font-size:1rem;color:#333;margin:0;padding:0;display:block;font-family:" + fontStack
	linkStyle    = "color:#000;text-decoration:underline"
)

// Register wires every email component into catalog under the name the
// registry refers to.
func Register(catalog *renderer.Catalog) error {
	for name, fn := range map[string]renderer.RenderFunc{
		"new-signin":            renderNewSignIn,
		"one-time-access":       renderOneTimeAccess,
		"api-key-expiring-soon": renderAPIKeyExpiring,
		"email-verification":    renderEmailVerification,
		"test":                  renderTest,
	} {
		if err := catalog.Register(name, fn); err != nil {
			return err
		}
	}
	return nil
}

// SignInData describes a login from a new device. City and Country are
// optional at runtime.
type SignInData struct {
	City      string `mapstructure:"city"`
	Country   string `mapstructure:"country"`
	IPAddress string `mapstructure:"ipAddress"`
	Device    string `mapstructure:"device"`
	DateTime  string `mapstructure:"dateTime"`
}

type NewSignInProps struct {
	BaseProps `mapstructure:",squash"`
	Data      SignInData `mapstructure:"data"`
}

// NewSignIn warns about a sign-in from an unrecognised device or location.
func NewSignIn(p NewSignInProps) templ.Component {
	var location templ.Component
	if p.Data.City != "" && p.Data.Country != "" {
		location = cell("Approximate Location", p.Data.City+", "+p.Data.Country)
	}

	return Base(p.BaseProps, Group(
		Div(headerStyle,
			Text(titleStyle, "New Sign-In Detected"),
			WarningBadge("Warning"),
		),
		Div("margin-bottom:24px",
			Div(gridRow, location, cell("IP Address", p.Data.IPAddress)),
			Div(gridRow, cell("Device", p.Data.Device), cell("Sign-In Time", p.Data.DateTime)),
		),
		Text(messageStyle, "This sign-in was detected from a new device or location. If you recognize this activity, you can safely ignore this message. If not, please review your account and security settings."),
	))
}

func cell(label, value string) templ.Component {
	return Div(gridCell, Text(labelStyle, label), Text(valueStyle, value))
}

func renderNewSignIn(props registry.Props) (templ.Component, error) {
	var p NewSignInProps
	if err := decodeProps(props, &p); err != nil {
		return nil, err
	}
	return NewSignIn(p), nil
}

type OneTimeAccessData struct {
	Code             string `mapstructure:"code"`
	LoginLink        string `mapstructure:"loginLink"`
	ButtonCodeLink   string `mapstructure:"buttonCodeLink"`
	ExpirationString string `mapstructure:"expirationString"`
}

type OneTimeAccessProps struct {
	BaseProps `mapstructure:",squash"`
	Data      OneTimeAccessData `mapstructure:"data"`
}

// OneTimeAccess carries a login code and a one-click sign-in button.
func OneTimeAccess(p OneTimeAccessProps) templ.Component {
	body := templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		m := newMarkup(ctx, w)
		m.open("p", style(messageStyle))
		m.raw("Click the button below to sign in to ")
		m.text(p.AppName)
		m.raw(" with a login code.")
		m.void("br")
		m.raw("Or visit ")
		m.open("a", href(p.Data.LoginLink), style(linkStyle))
		m.text(p.Data.LoginLink)
		m.close("a")
		m.raw(" and enter the code ")
		m.textIn("strong", p.Data.Code)
		m.raw(".")
		m.void("br")
		m.void("br")
		m.raw("This code expires in ")
		m.text(p.Data.ExpirationString)
		m.raw(".")
		m.close("p")
		return m.err
	})

	return Base(p.BaseProps, Group(
		Text(titleStyle+";margin:0 0 16px 0", "Login Code"),
		body,
		Button(p.Data.ButtonCodeLink, "Sign In"),
	))
}

func renderOneTimeAccess(props registry.Props) (templ.Component, error) {
	var p OneTimeAccessProps
	if err := decodeProps(props, &p); err != nil {
		return nil, err
	}
	return OneTimeAccess(p), nil
}

type APIKeyExpiringData struct {
	Name       string `mapstructure:"name"`
	APIKeyName string `mapstructure:"apiKeyName"`
	ExpiresAt  string `mapstructure:"expiresAt"`
}

type APIKeyExpiringProps struct {
	BaseProps `mapstructure:",squash"`
	Data      APIKeyExpiringData `mapstructure:"data"`
}

// APIKeyExpiring reminds the owner that an API key is about to expire.
func APIKeyExpiring(p APIKeyExpiringProps) templ.Component {
	body := templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		m := newMarkup(ctx, w)
		m.open("p", style(messageStyle))
		m.raw("Hello ")
		m.text(p.Data.Name)
		m.raw(",")
		m.void("br")
		m.void("br")
		m.raw("This is a reminder that your API key ")
		m.textIn("strong", p.Data.APIKeyName)
		m.raw(" will expire on ")
		m.textIn("strong", p.Data.ExpiresAt)
		m.raw(".")
		m.void("br")
		m.void("br")
		m.raw("Please generate a new API key if you need continued access.")
		m.close("p")
		return m.err
	})

	return Base(p.BaseProps, Group(
		Div(headerStyle,
			Text(titleStyle, "API Key Expiring Soon"),
			WarningBadge("Warning"),
		),
		body,
	))
}

func renderAPIKeyExpiring(props registry.Props) (templ.Component, error) {
	var p APIKeyExpiringProps
	if err := decodeProps(props, &p); err != nil {
		return nil, err
	}
	return APIKeyExpiring(p), nil
}

type EmailVerificationData struct {
	UserFullName     string `mapstructure:"userFullName"`
	VerificationLink string `mapstructure:"verificationLink"`
}

type EmailVerificationProps struct {
	BaseProps `mapstructure:",squash"`
	Data      EmailVerificationData `mapstructure:"data"`
}

// EmailVerification asks the user to confirm their address.
func EmailVerification(p EmailVerificationProps) templ.Component {
	body := templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		m := newMarkup(ctx, w)
		m.open("p", style(messageStyle))
		m.raw("Hello ")
		m.text(p.Data.UserFullName)
		m.raw(",")
		m.void("br")
		m.raw("Click the button below to verify your email address for ")
		m.text(p.AppName)
		m.raw(". This link will expire in 24 hours.")
		m.void("br")
		m.close("p")
		return m.err
	})

	return Base(p.BaseProps, Group(
		Text(titleStyle+";margin:0 0 16px 0", "Email Verification"),
		body,
		Button(p.Data.VerificationLink, "Verify"),
	))
}

func renderEmailVerification(props registry.Props) (templ.Component, error) {
	var p EmailVerificationProps
	if err := decodeProps(props, &p); err != nil {
		return nil, err
	}
	return EmailVerification(p), nil
}

type TestProps struct {
	BaseProps `mapstructure:",squash"`
}

// Test is the minimal email sent from the admin settings page.
func Test(p TestProps) templ.Component {
	return Base(p.BaseProps, Text("font-size:1rem;line-height:1.5;margin:0;padding:0;color:#333", "This is a test email."))
}

func renderTest(props registry.Props) (templ.Component, error) {
	var p TestProps
	if err := decodeProps(props, &p); err != nil {
		return nil, err
	}
	return Test(p), nil
}
