package posts

import (
	"fmt"
	"slices"

	"github.com/agnosto/autoposter/core"
	"github.com/sirupsen/logrus"
)

// DefaultTemplates are seeded into an empty registry.
func DefaultTemplates() []core.Template {
	return []core.Template{
		{
			Key:         "trend_commentary",
			Name:        "トレンド解説",
			Description: "YouTubeトレンド動画の解説投稿",
			Body:        "🎬 {title}\n\n{commentary}\n\n#YouTube #トレンド",
			Hashtags:    []string{"YouTube", "トレンド", "解説"},
			Mentions:    []string{},
			Tone:        "casual",
			MaxLength:   280,
			ContentType: core.ContentTypeText,
			Enabled:     true,
		},
		{
			Key:         "funny_observation",
			Name:        "面白い発見",
			Description: "日常の面白い発見を投稿",
			Body:        "😄 {observation}\n\n{commentary}\n\n#面白い #発見",
			Hashtags:    []string{"面白い", "発見", "日常"},
			Mentions:    []string{},
			Tone:        "casual",
			MaxLength:   280,
			ContentType: core.ContentTypeText,
			Enabled:     true,
		},
		{
			Key:         "cultural_insight",
			Name:        "文化的洞察",
			Description: "外国人視点からの文化的洞察",
			Body:        "🌍 {insight}\n\n{commentary}\n\n#文化 #国際",
			Hashtags:    []string{"文化", "国際", "洞察"},
			Mentions:    []string{},
			Tone:        "casual",
			MaxLength:   280,
			ContentType: core.ContentTypeText,
			Enabled:     true,
		},
	}
}

// EnsureDefaultTemplates seeds DefaultTemplates when the registry is empty
// and returns how many were added.
func (m *Manager) EnsureDefaultTemplates() (int, error) {
	count, err := m.store.Templates.Count()
	if err != nil || count > 0 {
		return 0, err
	}
	defaults := DefaultTemplates()
	for i := range defaults {
		if err := m.store.Templates.Create(&defaults[i]); err != nil {
			return i, err
		}
	}
	m.log.WithField("count", len(defaults)).Info("Seeded default templates")
	return len(defaults), nil
}

func (m *Manager) AddTemplate(tmpl core.Template) error {
	if err := core.Validate(&tmpl); err != nil {
		return err
	}
	if _, err := m.store.Templates.Get(tmpl.Key); err == nil {
		return fmt.Errorf("%w: template %s already exists", core.ErrValidation, tmpl.Key)
	}
	if err := m.store.Templates.Create(&tmpl); err != nil {
		return err
	}
	m.log.WithField("template", tmpl.Key).Info("Template added")
	return nil
}

func (m *Manager) GetTemplate(name string) (*core.Template, error) {
	return m.store.Templates.Get(name)
}

func (m *Manager) ListTemplates() ([]core.Template, error) {
	return m.store.Templates.List(false)
}

func (m *Manager) EnabledTemplates() ([]core.Template, error) {
	return m.store.Templates.List(true)
}

// TemplateUpdate carries the fields to change; nil fields are left alone.
type TemplateUpdate struct {
	Name         *string
	Description  *string
	Body         *string
	Hashtags     *[]string
	Mentions     *[]string
	Tone         *string
	MaxLength    *int
	ContentType  *core.ContentType
	IncludeLink  *bool
	IncludeMedia *bool
	Enabled      *bool
}

func (m *Manager) UpdateTemplate(name string, upd TemplateUpdate) (*core.Template, error) {
	tmpl, err := m.store.Templates.Get(name)
	if err != nil {
		return nil, err
	}

	if upd.Name != nil {
		tmpl.Name = *upd.Name
	}
	if upd.Description != nil {
		tmpl.Description = *upd.Description
	}
	if upd.Body != nil {
		tmpl.Body = *upd.Body
	}
	if upd.Hashtags != nil {
		tmpl.Hashtags = slices.Clone(*upd.Hashtags)
	}
	if upd.Mentions != nil {
		tmpl.Mentions = slices.Clone(*upd.Mentions)
	}
	if upd.Tone != nil {
		tmpl.Tone = *upd.Tone
	}
	if upd.MaxLength != nil {
		tmpl.MaxLength = *upd.MaxLength
	}
	if upd.ContentType != nil {
		tmpl.ContentType = *upd.ContentType
	}
	if upd.IncludeLink != nil {
		tmpl.IncludeLink = *upd.IncludeLink
	}
	if upd.IncludeMedia != nil {
		tmpl.IncludeMedia = *upd.IncludeMedia
	}
	if upd.Enabled != nil {
		tmpl.Enabled = *upd.Enabled
	}

	if err := core.Validate(tmpl); err != nil {
		return nil, err
	}
	if err := m.store.Templates.Save(tmpl); err != nil {
		return nil, err
	}
	m.log.WithField("template", name).Info("Template updated")
	return tmpl, nil
}

// DeleteTemplate removes the template. Posts created from it keep their
// template name.
func (m *Manager) DeleteTemplate(name string) (bool, error) {
	ok, err := m.store.Templates.Delete(name)
	if err == nil && ok {
		m.log.WithFields(logrus.Fields{"template": name}).Info("Template deleted")
	}
	return ok, err
}
