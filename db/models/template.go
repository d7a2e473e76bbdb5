package models

import (
	"fmt"
	"time"

	"github.com/agnosto/autoposter/core"
)

// Template rows are keyed by registry name.
type Template struct {
	Key          string `gorm:"primaryKey;column:template_key"`
	Name         string `gorm:"not null"`
	Description  string
	Body         string   `gorm:"not null"`
	Hashtags     []string `gorm:"serializer:json"`
	Mentions     []string `gorm:"serializer:json"`
	Tone         string
	MaxLength    int
	ContentType  string `gorm:"not null"`
	IncludeLink  bool
	IncludeMedia bool
	Enabled      bool `gorm:"index"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// TableName overrides the table name
func (Template) TableName() string {
	return "templates"
}

func TemplateFromDomain(t *core.Template) Template {
	return Template{
		Key:          t.Key,
		Name:         t.Name,
		Description:  t.Description,
		Body:         t.Body,
		Hashtags:     t.Hashtags,
		Mentions:     t.Mentions,
		Tone:         t.Tone,
		MaxLength:    t.MaxLength,
		ContentType:  string(t.ContentType),
		IncludeLink:  t.IncludeLink,
		IncludeMedia: t.IncludeMedia,
		Enabled:      t.Enabled,
	}
}

func (r *Template) ToDomain() (*core.Template, error) {
	ct, err := core.ParseContentType(r.ContentType)
	if err != nil {
		return nil, fmt.Errorf("template %s: %w", r.Key, err)
	}
	return &core.Template{
		Key:          r.Key,
		Name:         r.Name,
		Description:  r.Description,
		Body:         r.Body,
		Hashtags:     r.Hashtags,
		Mentions:     r.Mentions,
		Tone:         r.Tone,
		MaxLength:    r.MaxLength,
		ContentType:  ct,
		IncludeLink:  r.IncludeLink,
		IncludeMedia: r.IncludeMedia,
		Enabled:      r.Enabled,
	}, nil
}
