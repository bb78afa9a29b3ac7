// Package notify formats run reports and delivers them to Telegram, a
// Markdown status file and the log.
package notify

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"time"
)

// Kind is the report type. It matches the renewal outcome names.
type Kind string

const (
	KindSuccess  Kind = "renew_success"
	KindMaxedOut Kind = "maxed_out"
	KindCooldown Kind = "cooldown"
	KindFailed   Kind = "renew_failed"
	KindError    Kind = "error"
)

var titles = map[Kind]string{
	KindSuccess:  "🎉 <b>GreatHost renewal succeeded</b>",
	KindMaxedOut: "🈵 <b>GreatHost entitlement is maxed out</b>",
	KindCooldown: "⏳ <b>GreatHost renewal is cooling down</b>",
	KindFailed:   "⚠️ <b>GreatHost renewal did not take effect</b>",
	KindError:    "🚨 <b>GreatHost renewal run failed</b>",
}

// Title is the bold header line for k.
func Title(k Kind) string {
	if t, ok := titles[k]; ok {
		return t
	}
	return "📢 <b>GreatHost notice</b>"
}

type Field struct {
	Icon  string
	Label string
	Value string
	Code  bool // render the value as <code>
}

type Message struct {
	Kind   Kind
	Fields []Field
	At     time.Time
}

// Sink delivers a message somewhere.
type Sink interface {
	Deliver(ctx context.Context, m Message) error
}

const timeLayout = "2006/01/02 15:04:05"

// FormatHTML renders m for Telegram's HTML parse mode. Values are escaped.
func FormatHTML(m Message, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	var b strings.Builder
	b.WriteString(Title(m.Kind))
	b.WriteString("\n\n")
	for _, f := range m.Fields {
		v := html.EscapeString(f.Value)
		if f.Code {
			v = "<code>" + v + "</code>"
		}
		fmt.Fprintf(&b, "%s %s: %s\n", f.Icon, f.Label, v)
	}
	fmt.Fprintf(&b, "📅 Time: %s", m.At.In(loc).Format(timeLayout))
	return b.String()
}

var markdownReplacer = strings.NewReplacer(
	"<b>", "**", "</b>", "**",
	"<code>", "`", "</code>", "`",
)

// HTMLToMarkdown converts the few tags FormatHTML emits and unescapes the rest.
func HTMLToMarkdown(s string) string {
	return html.UnescapeString(markdownReplacer.Replace(s))
}

// Multi delivers to every sink and joins their errors.
type Multi []Sink

func (m Multi) Deliver(ctx context.Context, msg Message) error {
	var errs []error
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.Deliver(ctx, msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Logger is satisfied by logrus.
type Logger interface {
	Infof(format string, args ...interface{})
}

// LogSink writes the message through a logger, one line per field.
type LogSink struct {
	Log Logger
}

func (s LogSink) Deliver(_ context.Context, m Message) error {
	if s.Log == nil {
		return nil
	}
	s.Log.Infof("%s", HTMLToMarkdown(Title(m.Kind)))
	for _, f := range m.Fields {
		s.Log.Infof("  %s %s: %s", f.Icon, f.Label, f.Value)
	}
	return nil
}
