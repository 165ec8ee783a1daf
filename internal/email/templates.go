package email

import (
	"errors"
	"fmt"
	"html"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/osteele/liquid"
)

// ErrUnknownTemplate is returned by Render for names with no template.
var ErrUnknownTemplate = errors.New("email: unknown template")

// Template names.
const (
	TemplateContactNotification = "contact_notification"
	TemplateContactAutoreply    = "contact_autoreply"
	TemplateBriefNotification   = "brief_notification"
	TemplateInvoiceSent         = "invoice_sent"
)

type source struct {
	subject, html, text string
}

type compiled struct {
	subject, html, text *liquid.Template
}

// Templates renders the built-in transactional emails with Liquid.
type Templates struct {
	engine *liquid.Engine

	mu    sync.RWMutex
	byKey map[string]*compiled
}

// NewTemplates parses the built-in templates.
func NewTemplates() (*Templates, error) {
	t := &Templates{
		engine: liquid.NewEngine(),
		byKey:  make(map[string]*compiled),
	}
	t.registerFilters()
	for name, src := range builtin {
		if err := t.Register(name, src.subject, src.html, src.text); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// Register adds or replaces a named template.
func (t *Templates) Register(name, subject, htmlBody, textBody string) error {
	c := &compiled{}
	var err error
	if c.subject, err = t.parse(subject); err != nil {
		return fmt.Errorf("template %s subject: %w", name, err)
	}
	if c.html, err = t.parse(htmlBody); err != nil {
		return fmt.Errorf("template %s html: %w", name, err)
	}
	if c.text, err = t.parse(textBody); err != nil {
		return fmt.Errorf("template %s text: %w", name, err)
	}
	t.mu.Lock()
	t.byKey[name] = c
	t.mu.Unlock()
	return nil
}

// Names lists the registered templates.
func (t *Templates) Names() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]string, 0, len(t.byKey))
	for k := range t.byKey {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Render produces the subject, HTML and text body of a named template.
func (t *Templates) Render(name string, vars map[string]any) (subject, htmlBody, textBody string, err error) {
	t.mu.RLock()
	c, ok := t.byKey[name]
	t.mu.RUnlock()
	if !ok {
		return "", "", "", fmt.Errorf("%w: %s", ErrUnknownTemplate, name)
	}
	if subject, err = render(c.subject, vars); err != nil {
		return "", "", "", fmt.Errorf("render %s subject: %w", name, err)
	}
	if htmlBody, err = render(c.html, vars); err != nil {
		return "", "", "", fmt.Errorf("render %s html: %w", name, err)
	}
	if textBody, err = render(c.text, vars); err != nil {
		return "", "", "", fmt.Errorf("render %s text: %w", name, err)
	}
	return strings.TrimSpace(subject), htmlBody, strings.TrimSpace(textBody), nil
}

// RenderMessage renders a template into a Message addressed to to.
func (t *Templates) RenderMessage(name, to string, vars map[string]any) (Message, error) {
	subject, htmlBody, textBody, err := t.Render(name, vars)
	if err != nil {
		return Message{}, err
	}
	return Message{
		To:      to,
		Subject: subject,
		HTML:    htmlBody,
		Text:    textBody,
		Tags:    map[string]string{"template": name},
	}, nil
}

func (t *Templates) parse(src string) (*liquid.Template, error) {
	tpl, err := t.engine.ParseString(src)
	if err != nil {
		return nil, err
	}
	return tpl, nil
}

func render(tpl *liquid.Template, vars map[string]any) (string, error) {
	out, err := tpl.RenderString(vars)
	if err != nil {
		return "", err
	}
	return out, nil
}

func (t *Templates) registerFilters() {
	// {{ user_input | escape }}
	t.engine.RegisterFilter("escape", func(value interface{}) string {
		if value == nil {
			return ""
		}
		return html.EscapeString(fmt.Sprintf("%v", value))
	})

	// {{ company | default: "your company" }}
	t.engine.RegisterFilter("default", func(value interface{}, defaultVal string) interface{} {
		if value == nil {
			return defaultVal
		}
		strVal := fmt.Sprintf("%v", value)
		if strVal == "" || strVal == "<nil>" {
			return defaultVal
		}
		return value
	})

	// {{ total_cents | currency }} -> $1,234.56
	t.engine.RegisterFilter("currency", func(value interface{}) string {
		var cents int64
		switch v := value.(type) {
		case int:
			cents = int64(v)
		case int64:
			cents = v
		case int32:
			cents = int64(v)
		case float64:
			cents = int64(v)
		case string:
			parsed, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return v
			}
			cents = parsed
		default:
			return fmt.Sprintf("%v", value)
		}
		return FormatCents(cents)
	})
}

// FormatCents renders an amount in cents as dollars with thousands separators.
func FormatCents(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	whole := strconv.FormatInt(cents/100, 10)
	var b strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return fmt.Sprintf("%s$%s.%02d", sign, b.String(), cents%100)
}

var builtin = map[string]source{
	TemplateContactNotification: {
		subject: `New inquiry from {{ name }}{% if company != "" %} ({{ company }}){% endif %}`,
		html: `<h2>New contact form submission</h2>
<table cellpadding="4">
<tr><td><strong>Name</strong></td><td>{{ name | escape }}</td></tr>
<tr><td><strong>Email</strong></td><td>{{ email | escape }}</td></tr>
<tr><td><strong>Company</strong></td><td>{{ company | default: "-" | escape }}</td></tr>
<tr><td><strong>Phone</strong></td><td>{{ phone | default: "-" | escape }}</td></tr>
<tr><td><strong>Service</strong></td><td>{{ service | default: "-" | escape }}</td></tr>
<tr><td><strong>Budget</strong></td><td>{{ budget | default: "-" | escape }}</td></tr>
</table>
<p>{{ message | escape }}</p>
<p><a href="{{ admin_url }}">Open in the portal</a></p>`,
		text: `New contact form submission

Name: {{ name }}
Email: {{ email }}
Company: {{ company | default: "-" }}
Phone: {{ phone | default: "-" }}
Service: {{ service | default: "-" }}
Budget: {{ budget | default: "-" }}

{{ message }}

{{ admin_url }}`,
	},
	TemplateContactAutoreply: {
		subject: `Thanks for reaching out to {{ agency_name }}`,
		html: `<p>Hi {{ name | escape }},</p>
<p>Thanks for getting in touch. We read every message and will reply within one business day.</p>
<p>{{ agency_name | escape }}</p>`,
		text: `Hi {{ name }},

Thanks for getting in touch. We read every message and will reply within one business day.

{{ agency_name }}`,
	},
	TemplateBriefNotification: {
		subject: `New project brief: {{ project_type | default: "project" }} for {{ company | default: contact_name }}`,
		html: `<h2>New project brief</h2>
<p><strong>{{ contact_name | escape }}</strong> &lt;{{ email | escape }}&gt;{% if company != "" %}, {{ company | escape }}{% endif %}</p>
<p><strong>Type:</strong> {{ project_type | escape }}<br>
<strong>Budget:</strong> {{ budget | default: "not given" | escape }}<br>
<strong>Timeline:</strong> {{ timeline | default: "not given" | escape }}</p>
<p><strong>Goals</strong><br>{{ goals | escape }}</p>
{% if features.size > 0 %}<ul>{% for f in features %}<li>{{ f | escape }}</li>{% endfor %}</ul>{% endif %}
<p>{{ summary | escape }}</p>
<p><a href="{{ admin_url }}">Review in the portal</a></p>`,
		text: `New project brief from {{ contact_name }} <{{ email }}>

Type: {{ project_type }}
Budget: {{ budget | default: "not given" }}
Timeline: {{ timeline | default: "not given" }}

Goals:
{{ goals }}
{% for f in features %}
- {{ f }}{% endfor %}

{{ summary }}

{{ admin_url }}`,
	},
	TemplateInvoiceSent: {
		subject: `Invoice {{ number }} from {{ agency_name }}`,
		html: `<p>Hi {{ client_name | default: "there" | escape }},</p>
<p>Invoice <strong>{{ number | escape }}</strong> for <strong>{{ total_cents | currency }}</strong> is ready{% if due_date != "" %} and due on {{ due_date }}{% endif %}.</p>
<p><a href="{{ portal_url }}">View the invoice in your portal</a></p>
<p>{{ agency_name | escape }}</p>`,
		text: `Hi {{ client_name | default: "there" }},

Invoice {{ number }} for {{ total_cents | currency }} is ready{% if due_date != "" %} and due on {{ due_date }}{% endif %}.

{{ portal_url }}

{{ agency_name }}`,
	},
}
