package models

import (
	"fmt"
	"time"

	"github.com/agnosto/autoposter/core"
)

// Post is the stored form of core.Post. Times are written in UTC.
type Post struct {
	ID            string   `gorm:"primaryKey"`
	Text          string   `gorm:"not null"`
	ImageURL      string
	VideoURL      string
	Hashtags      []string `gorm:"serializer:json"`
	Mentions      []string `gorm:"serializer:json"`
	Links         []string `gorm:"serializer:json"`
	ScheduledTime *time.Time
	Status        string `gorm:"index;not null"`
	ContentType   string `gorm:"index;not null"`
	TemplateName  string
	CreatedAt     time.Time `gorm:"index;autoCreateTime:false"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime:false"`
	PostedAt      *time.Time
	ErrorMessage  string
	Engagement    map[string]any `gorm:"serializer:json"`
	Version       int            `gorm:"not null"`
}

// TableName overrides the table name
func (Post) TableName() string {
	return "posts"
}

func PostFromDomain(p *core.Post) Post {
	return Post{
		ID:            p.ID,
		Text:          p.Content.Text,
		ImageURL:      p.Content.ImageURL,
		VideoURL:      p.Content.VideoURL,
		Hashtags:      p.Content.Hashtags,
		Mentions:      p.Content.Mentions,
		Links:         p.Content.Links,
		ScheduledTime: utcPtr(p.ScheduledTime),
		Status:        string(p.Status),
		ContentType:   string(p.ContentType),
		TemplateName:  p.TemplateName,
		CreatedAt:     p.CreatedAt.UTC(),
		UpdatedAt:     p.UpdatedAt.UTC(),
		PostedAt:      utcPtr(p.PostedAt),
		ErrorMessage:  p.ErrorMessage,
		Engagement:    p.Engagement,
		Version:       p.Version,
	}
}

// ToDomain re-validates the stored enumerations.
func (r *Post) ToDomain() (*core.Post, error) {
	status, err := core.ParsePostStatus(r.Status)
	if err != nil {
		return nil, fmt.Errorf("post %s: %w", r.ID, err)
	}
	ct, err := core.ParseContentType(r.ContentType)
	if err != nil {
		return nil, fmt.Errorf("post %s: %w", r.ID, err)
	}
	return &core.Post{
		ID: r.ID,
		Content: core.PostContent{
			Text:     r.Text,
			ImageURL: r.ImageURL,
			VideoURL: r.VideoURL,
			Hashtags: r.Hashtags,
			Mentions: r.Mentions,
			Links:    r.Links,
		},
		ScheduledTime: localPtr(r.ScheduledTime),
		Status:        status,
		ContentType:   ct,
		TemplateName:  r.TemplateName,
		CreatedAt:     r.CreatedAt.Local(),
		UpdatedAt:     r.UpdatedAt.Local(),
		PostedAt:      localPtr(r.PostedAt),
		ErrorMessage:  r.ErrorMessage,
		Engagement:    r.Engagement,
		Version:       r.Version,
	}, nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

func localPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	l := t.Local()
	return &l
}
