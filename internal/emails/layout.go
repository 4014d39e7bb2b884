// Package emails contains the email components compiled into templates.
//
// Components are plain templ components. Each one decodes its typed props from
// the registry's props tree, so a sample prop the component does not know
// about fails the render instead of silently vanishing.
package emails

import (
	"context"
	"fmt"
	"io"

	"github.com/a-h/templ"
	"github.com/go-viper/mapstructure/v2"

	"github.com/conneroisu/mailsmith/internal/registry"
)

const defaultLogoURL = "/static/pocketid.png"

const fontStack = "-apple-system,BlinkMacSystemFont,Segoe UI,Helvetica,Arial,sans-serif,Apple Color Emoji,Segoe UI Emoji"

// BaseProps are shared by every email.
type BaseProps struct {
	LogoURL string `mapstructure:"logoURL"`
	AppName string `mapstructure:"appName"`
}

// decodeProps fills out from the props tree, rejecting unknown keys.
func decodeProps(props registry.Props, out interface{}) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		ErrorUnused: true,
		Result:      out,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(map[string]interface{}(props)); err != nil {
		return fmt.Errorf("decode props: %w", err)
	}
	return nil
}

// attr is one escaped name="value" pair.
type attr struct {
	name, value string
}

func style(v string) attr { return attr{"style", v} }

func href(u string) attr { return attr{"href", string(templ.URL(u))} }

// presentation are the attributes email clients need on a layout table.
func presentation(css string) []attr {
	return []attr{
		{"align", "center"}, {"width", "100%"}, {"border", "0"},
		{"cellpadding", "0"}, {"cellspacing", "0"}, {"role", "presentation"},
		style(css),
	}
}

// markup writes elements in order and keeps the first error.
type markup struct {
	ctx context.Context
	w   io.Writer
	err error
}

func newMarkup(ctx context.Context, w io.Writer) *markup {
	return &markup{ctx: ctx, w: w, err: ctx.Err()}
}

func (m *markup) raw(s string) {
	if m.err != nil {
		return
	}
	_, m.err = io.WriteString(m.w, s)
}

func (m *markup) text(s string) {
	m.raw(templ.EscapeString(s))
}

func (m *markup) attrs(attrs []attr) {
	for _, a := range attrs {
		m.raw(" " + a.name + "=\"" + templ.EscapeString(a.value) + "\"")
	}
}

// open writes a start tag.
func (m *markup) open(tag string, attrs ...attr) {
	m.raw("<" + tag)
	m.attrs(attrs)
	m.raw(">")
}

// void writes a self-closing element such as <br/>.
func (m *markup) void(tag string, attrs ...attr) {
	m.raw("<" + tag)
	m.attrs(attrs)
	m.raw("/>")
}

func (m *markup) close(tag string) {
	m.raw("</" + tag + ">")
}

// textIn writes an attribute-less element holding escaped text.
func (m *markup) textIn(tag, s string) {
	m.open(tag)
	m.text(s)
	m.close(tag)
}

func (m *markup) child(c templ.Component) {
	if m.err != nil || c == nil {
		return
	}
	m.err = c.Render(m.ctx, m.w)
}

const doctype = `<!DOCTYPE html PUBLIC "-//W3C//DTD XHTML 1.0 Transitional//EN" "http://www.w3.org/TR/xhtml1/DTD/xhtml1-transitional.dtd">`

// Base is the shared shell: logo, app name and a bordered card holding body.
func Base(p BaseProps, body templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		logo := p.LogoURL
		if logo == "" {
			logo = defaultLogoURL
		}

		m := newMarkup(ctx, w)
		m.raw(doctype)
		m.open("html", attr{"dir", "ltr"}, attr{"lang", "en"})
		m.open("head")
		m.void("meta", attr{"content", "text/html; charset=UTF-8"}, attr{"http-equiv", "Content-Type"})
		m.void("meta", attr{"name", "x-apple-disable-message-reformatting"})
		m.close("head")
		m.open("body", style("background-color:#ffffff;color:#24292e;font-family:"+fontStack))

		m.open("table", presentation("max-width:480px;margin:0 auto;padding:20px 0 48px")...)
		m.open("tbody")
		m.open("tr", style("width:100%"))
		m.open("td")

		m.void("img",
			attr{"alt", p.AppName},
			attr{"height", "32"},
			attr{"src", string(templ.URL(logo))},
			style("display:block;outline:none;border:none;text-decoration:none"),
			attr{"width", "32"},
		)
		m.open("p", style("font-size:24px;line-height:1.25;margin:16px 0"))
		m.textIn("strong", p.AppName)
		m.close("p")

		m.open("table", presentation("padding:24px;border:solid 1px #dedede;border-radius:5px;text-align:center")...)
		m.open("tbody")
		m.open("tr")
		m.open("td")
		m.child(body)
		m.close("td")
		m.close("tr")
		m.close("tbody")
		m.close("table")

		m.close("td")
		m.close("tr")
		m.close("tbody")
		m.close("table")
		m.close("body")
		m.close("html")
		return m.err
	})
}

// Text renders a paragraph with inline style.
func Text(css, content string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		m := newMarkup(ctx, w)
		m.open("p", style(css))
		m.text(content)
		m.close("p")
		return m.err
	})
}

// WarningBadge is the yellow pill shown next to security notices.
func WarningBadge(label string) templ.Component {
	return Text("background-color:#ffd966;color:#7f6000;padding:4px 12px;border-radius:50px;font-size:0.875rem;margin:auto 0 auto auto;display:inline-block", label)
}

// Button is a centred call-to-action link.
func Button(link, label string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		m := newMarkup(ctx, w)
		m.open("div", style("text-align:center;margin-top:24px"))
		m.open("a",
			href(link),
			style("background-color:#000000;color:#ffffff;padding:0.7rem 1.5rem;text-decoration:none;border-radius:4px;font-size:1rem;font-weight:500;display:inline-block;border:none;cursor:pointer"),
			attr{"target", "_blank"},
		)
		m.text(label)
		m.close("a")
		m.close("div")
		return m.err
	})
}

// Group renders children one after another.
func Group(children ...templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		m := newMarkup(ctx, w)
		for _, c := range children {
			m.child(c)
		}
		return m.err
	})
}

// Div wraps children in a styled div.
func Div(css string, children ...templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		m := newMarkup(ctx, w)
		m.open("div", style(css))
		for _, c := range children {
			m.child(c)
		}
		m.close("div")
		return m.err
	})
}
