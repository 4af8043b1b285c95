package pages

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	apperrors "riskdash/internal/errors"
	"riskdash/internal/resolve"
	"riskdash/internal/schema"
)

// PageInputConfig declares one upload slot of a page.
type PageInputConfig struct {
	Key          string                      `json:"key" validate:"required"`
	Title        string                      `json:"title" validate:"required"`
	DatasetKey   string                      `json:"dataset_key" validate:"required"`
	Required     bool                        `json:"required"`
	Description  string                      `json:"description"`
	Quarter      string                      `json:"quarter,omitempty" validate:"omitempty,len=6"`
	Expectations []resolve.HeaderExpectation `json:"expectations" validate:"dive"`
}

// Check inspects a page whose required inputs are loaded and returns the
// problems it finds, in display order.
type Check func(ctx context.Context, state *PanelState, src ColumnSource) ([]string, error)

// Page is one dashboard page and its inputs.
type Page struct {
	Key     string            `json:"key" validate:"required"`
	Title   string            `json:"title" validate:"required"`
	Subject string            `json:"-"`
	Notice  string            `json:"notice,omitempty"`
	Inputs  []PageInputConfig `json:"inputs" validate:"dive"`
	Checks  []Check           `json:"-"`
}

// Input returns the slot with the given key.
func (p *Page) Input(key string) (PageInputConfig, bool) {
	for _, in := range p.Inputs {
		if in.Key == key {
			return in, true
		}
	}
	return PageInputConfig{}, false
}

// Catalog is the ordered set of pages.
type Catalog struct {
	pages []*Page
	byKey map[string]*Page
}

// NewCatalog builds a catalog, rejecting duplicate page or slot keys.
func NewCatalog(pages ...*Page) (*Catalog, error) {
	c := &Catalog{byKey: make(map[string]*Page, len(pages))}
	for _, p := range pages {
		if _, dup := c.byKey[p.Key]; dup {
			return nil, apperrors.NewDefinitionError(fmt.Sprintf("page %s declared twice", p.Key))
		}
		slots := make(map[string]struct{}, len(p.Inputs))
		for _, in := range p.Inputs {
			if _, dup := slots[in.Key]; dup {
				return nil, apperrors.NewDefinitionError(fmt.Sprintf("page %s declares slot %s twice", p.Key, in.Key))
			}
			slots[in.Key] = struct{}{}
		}
		c.byKey[p.Key] = p
		c.pages = append(c.pages, p)
	}
	return c, nil
}

// Pages returns the pages in display order.
func (c *Catalog) Pages() []*Page {
	return append([]*Page(nil), c.pages...)
}

// Lookup returns the page with the given key.
func (c *Catalog) Lookup(key string) (*Page, bool) {
	p, ok := c.byKey[key]
	return p, ok
}

// Validate checks every declaration against the registry. A slot must name a
// registered dataset and every expectation candidate must be a field that
// dataset declares. These are programming errors, so all of them are
// collected and returned together.
func (c *Catalog) Validate(reg *schema.Registry) error {
	validate := validator.New()
	var errs []error

	for _, p := range c.pages {
		if err := validate.Struct(p); err != nil {
			errs = append(errs, apperrors.NewDefinitionError(fmt.Sprintf("page %s: %v", p.Key, err)))
			continue
		}
		for _, in := range p.Inputs {
			spec, ok := reg.Lookup(in.DatasetKey)
			if !ok {
				errs = append(errs, apperrors.NewDefinitionError(
					fmt.Sprintf("page %s slot %s references unknown dataset %s", p.Key, in.Key, in.DatasetKey)))
				continue
			}
			for _, exp := range in.Expectations {
				for _, field := range exp.Candidates {
					if !spec.HasField(field) {
						errs = append(errs, apperrors.NewDefinitionError(
							fmt.Sprintf("page %s slot %s expectation %q references field %s absent from %s",
								p.Key, in.Key, exp.Name, field, in.DatasetKey)))
					}
				}
			}
		}
	}
	return errors.Join(errs...)
}
