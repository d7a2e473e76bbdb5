package core

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

type PostStatus string

const (
	PostStatusDraft     PostStatus = "draft"
	PostStatusScheduled PostStatus = "scheduled"
	PostStatusPosted    PostStatus = "posted"
	PostStatusFailed    PostStatus = "failed"
)

// ParsePostStatus accepts the lowercase tag form used in storage and on the CLI.
func ParsePostStatus(s string) (PostStatus, error) {
	switch st := PostStatus(strings.ToLower(strings.TrimSpace(s))); st {
	case PostStatusDraft, PostStatusScheduled, PostStatusPosted, PostStatusFailed:
		return st, nil
	}
	return "", fmt.Errorf("%w: unknown post status %q", ErrValidation, s)
}

type ContentType string

const (
	ContentTypeText  ContentType = "text"
	ContentTypeImage ContentType = "image"
	ContentTypeVideo ContentType = "video"
	ContentTypeMixed ContentType = "mixed"
)

func ParseContentType(s string) (ContentType, error) {
	switch ct := ContentType(strings.ToLower(strings.TrimSpace(s))); ct {
	case ContentTypeText, ContentTypeImage, ContentTypeVideo, ContentTypeMixed:
		return ct, nil
	}
	return "", fmt.Errorf("%w: unknown content type %q", ErrValidation, s)
}

// PostContent is the publishable body of a post.
type PostContent struct {
	Text     string   `json:"text" validate:"required"`
	ImageURL string   `json:"image_url,omitempty" validate:"omitempty,url"`
	VideoURL string   `json:"video_url,omitempty" validate:"omitempty,url"`
	Hashtags []string `json:"hashtags"`
	Mentions []string `json:"mentions"`
	Links    []string `json:"links"`
}

// Clone returns a copy that shares no slices with c.
func (c PostContent) Clone() PostContent {
	c.Hashtags = slices.Clone(c.Hashtags)
	c.Mentions = slices.Clone(c.Mentions)
	c.Links = slices.Clone(c.Links)
	return c
}

type Post struct {
	ID            string
	Content       PostContent
	ScheduledTime *time.Time
	Status        PostStatus
	ContentType   ContentType
	TemplateName  string
	CreatedAt     time.Time
	UpdatedAt     time.Time
	PostedAt      *time.Time
	ErrorMessage  string
	// Engagement is filled by the analytics side and carried through untouched.
	Engagement map[string]any
	Version    int
}

// IsDraft reports whether the post belongs to the draft view.
func (p *Post) IsDraft() bool {
	return p.Status == PostStatusDraft
}

// Preview is the read-only projection returned by PreviewPost.
type Preview struct {
	ID            string      `json:"id"`
	Content       PostContent `json:"content"`
	ContentType   ContentType `json:"post_type"`
	TemplateName  string      `json:"template_name,omitempty"`
	ScheduledTime *time.Time  `json:"scheduled_time"`
	Status        PostStatus  `json:"status"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

func (p *Post) Preview() Preview {
	return Preview{
		ID:            p.ID,
		Content:       p.Content.Clone(),
		ContentType:   p.ContentType,
		TemplateName:  p.TemplateName,
		ScheduledTime: p.ScheduledTime,
		Status:        p.Status,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
}
