package dispatch

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/vallegrande/notification-engine/internal/domain"
)

var placeholderPattern = regexp.MustCompile(`\{([A-Za-z0-9_.\-]+)\}`)

// Content is the final subject and body handed to a provider.
type Content struct {
	Subject string
	Message string
}

// Renderer substitutes {name} placeholders in notification templates.
type Renderer struct {
	strict bool
}

// NewRenderer builds a renderer. In strict mode a declared placeholder without a parameter
// fails rendering; otherwise it renders as an empty string.
func NewRenderer(strict bool) *Renderer {
	return &Renderer{strict: strict}
}

// Render produces the content of tpl for channel. The subject is only kept for EMAIL.
func (r *Renderer) Render(tpl *domain.NotificationTemplate, params map[string]string, channel domain.Channel) (Content, error) {
	if tpl == nil {
		return Content{}, domain.ErrTemplateNotFound
	}
	if !tpl.CanBeUsed() {
		return Content{}, fmt.Errorf("%w: template %s is %s", domain.ErrTemplateNotActive, tpl.Code, tpl.Status)
	}

	missing := make(map[string]struct{})
	message := r.substitute(tpl, tpl.Body, params, missing)

	var subject string
	if channel == domain.ChannelEmail {
		subject = r.substitute(tpl, tpl.Subject, params, missing)
	}

	if r.strict && len(missing) > 0 {
		names := make([]string, 0, len(missing))
		for name := range missing {
			names = append(names, name)
		}
		sort.Strings(names)
		return Content{}, fmt.Errorf("%w: template %s needs %s",
			domain.ErrMissingTemplateParam, tpl.Code, strings.Join(names, ", "))
	}

	return Content{
		Subject: strings.TrimSpace(subject),
		Message: strings.TrimSpace(message),
	}, nil
}

func (r *Renderer) substitute(
	tpl *domain.NotificationTemplate,
	text string,
	params map[string]string,
	missing map[string]struct{},
) string {
	return placeholderPattern.ReplaceAllStringFunc(text, func(match string) string {
		name := match[1 : len(match)-1]
		if value, ok := params[name]; ok {
			return value
		}
		if tpl.Declares(name) {
			missing[name] = struct{}{}
			return ""
		}
		// Undeclared and unsupplied: leave the literal braces untouched.
		return match
	})
}
