package mailer

import (
	"log"
	"strings"
	"sync"

	"github.com/osteele/liquid"

	"github.com/insurancepro/marketing/internal/domain"
)

// Personalizer renders Liquid merge tags ({{ name }}, {{ email }}, ...) in
// campaign subjects and bodies. Content without tags passes through verbatim.
// Parsed templates are cached per source string; rendering falls back to the
// original content on any parse or render error so a bad tag can never take
// down a send.
type Personalizer struct {
	engine *liquid.Engine
	cache  sync.Map // map[string]*liquid.Template
}

// NewPersonalizer creates a personalizer with the default filter set.
func NewPersonalizer() *Personalizer {
	engine := liquid.NewEngine()

	// {{ name | default: "Friend" }}
	engine.RegisterFilter("default", func(value interface{}, defaultVal string) interface{} {
		if value == nil {
			return defaultVal
		}
		s, ok := value.(string)
		if ok && s == "" {
			return defaultVal
		}
		return value
	})

	return &Personalizer{engine: engine}
}

// Context builds the render bindings for one subscriber.
func (p *Personalizer) Context(sub *domain.Subscriber) map[string]interface{} {
	return map[string]interface{}{
		"email":          sub.Email,
		"name":           sub.Name,
		"insurance_type": sub.InsuranceType,
	}
}

// Render renders source against bindings. Returns source unchanged when it
// contains no tags or when parsing/rendering fails.
func (p *Personalizer) Render(source string, bindings map[string]interface{}) string {
	if !strings.Contains(source, "{{") && !strings.Contains(source, "{%") {
		return source
	}

	tmpl, err := p.template(source)
	if err != nil {
		log.Printf("[mailer] template parse failed, sending unpersonalized: %v", err)
		return source
	}

	out, err := tmpl.RenderString(bindings)
	if err != nil {
		log.Printf("[mailer] template render failed, sending unpersonalized: %v", err)
		return source
	}
	return out
}

func (p *Personalizer) template(source string) (*liquid.Template, error) {
	if cached, ok := p.cache.Load(source); ok {
		return cached.(*liquid.Template), nil
	}
	tmpl, err := p.engine.ParseString(source)
	if err != nil {
		return nil, err
	}
	p.cache.Store(source, tmpl)
	return tmpl, nil
}
