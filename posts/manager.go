package posts

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/agnosto/autoposter/core"
	"github.com/agnosto/autoposter/db/repository"
	"github.com/agnosto/autoposter/logger"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	// RejectedMessage is stored on a post when the publisher answers false.
	RejectedMessage = "publisher rejected the post"

	defaultListLimit      = 50
	defaultPublishTimeout = 30 * time.Second
)

// Publisher performs the network post of a body text.
type Publisher interface {
	Publish(ctx context.Context, text string) (bool, error)
}

// Outcome is the result of one publish attempt as written to the store.
type Outcome struct {
	Post      *core.Post
	Published bool
	// Err is the publisher failure, nil when Published or merely rejected.
	Err error
	At  time.Time
}

// OutcomeHook runs inside the transaction that records a publish outcome, so
// anything it writes through tx commits together with the post.
type OutcomeHook func(tx *repository.Store, o Outcome) error

type Manager struct {
	store          *repository.Store
	publisher      Publisher
	log            logrus.FieldLogger
	now            func() time.Time
	publishTimeout time.Duration
}

type Option func(*Manager)

func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

func WithLogger(l logrus.FieldLogger) Option {
	return func(m *Manager) { m.log = l }
}

func WithPublishTimeout(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.publishTimeout = d
		}
	}
}

func NewManager(store *repository.Store, publisher Publisher, opts ...Option) *Manager {
	m := &Manager{
		store:          store,
		publisher:      publisher,
		now:            time.Now,
		publishTimeout: defaultPublishTimeout,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.log = logger.Or(m.log)
	return m
}

// Store exposes the backing store to collaborators that need to join a transaction.
func (m *Manager) Store() *repository.Store {
	return m.store
}

func (m *Manager) CreatePost(content core.PostContent, contentType core.ContentType, templateName string, scheduledTime *time.Time) (*core.Post, error) {
	return m.createPost(m.store, content, contentType, templateName, scheduledTime)
}

func (m *Manager) createPost(tx *repository.Store, content core.PostContent, contentType core.ContentType, templateName string, scheduledTime *time.Time) (*core.Post, error) {
	if strings.TrimSpace(content.Text) == "" {
		return nil, fmt.Errorf("%w: post text is empty", core.ErrValidation)
	}
	if err := core.Validate(&content); err != nil {
		return nil, err
	}
	ct, err := core.ParseContentType(string(contentType))
	if err != nil {
		return nil, err
	}

	now := m.now()
	post := &core.Post{
		ID:           uuid.NewString(),
		Content:      content.Clone(),
		Status:       core.PostStatusDraft,
		ContentType:  ct,
		TemplateName: templateName,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if scheduledTime != nil {
		t := *scheduledTime
		post.ScheduledTime = &t
		post.Status = core.PostStatusScheduled
	}

	if err := tx.Posts.Create(post); err != nil {
		return nil, err
	}
	m.log.WithFields(logrus.Fields{"post_id": post.ID, "status": post.Status}).Info("Post created")
	return post, nil
}

// PostUpdate carries the fields to change; nil fields are left alone.
type PostUpdate struct {
	Text          *string
	ImageURL      *string
	VideoURL      *string
	Hashtags      *[]string
	Mentions      *[]string
	Links         *[]string
	ContentType   *core.ContentType
	TemplateName  *string
	ScheduledTime *time.Time
}

// UpdatePost applies the supplied fields. The status is not changed here;
// use SchedulePost to move a post onto the schedule.
func (m *Manager) UpdatePost(id string, upd PostUpdate) (*core.Post, error) {
	var updated *core.Post
	err := m.store.Atomic(func(tx *repository.Store) error {
		post, err := tx.Posts.Get(id)
		if err != nil {
			return err
		}

		if upd.Text != nil {
			if strings.TrimSpace(*upd.Text) == "" {
				return fmt.Errorf("%w: post text is empty", core.ErrValidation)
			}
			post.Content.Text = *upd.Text
		}
		if upd.ImageURL != nil {
			post.Content.ImageURL = *upd.ImageURL
		}
		if upd.VideoURL != nil {
			post.Content.VideoURL = *upd.VideoURL
		}
		if upd.Hashtags != nil {
			post.Content.Hashtags = slices.Clone(*upd.Hashtags)
		}
		if upd.Mentions != nil {
			post.Content.Mentions = slices.Clone(*upd.Mentions)
		}
		if upd.Links != nil {
			post.Content.Links = slices.Clone(*upd.Links)
		}
		if upd.ContentType != nil {
			ct, err := core.ParseContentType(string(*upd.ContentType))
			if err != nil {
				return err
			}
			post.ContentType = ct
		}
		if upd.TemplateName != nil {
			post.TemplateName = *upd.TemplateName
		}
		if upd.ScheduledTime != nil {
			t := *upd.ScheduledTime
			post.ScheduledTime = &t
		}
		if err := core.Validate(&post.Content); err != nil {
			return err
		}

		post.UpdatedAt = m.now()
		if err := tx.Posts.Update(post); err != nil {
			return err
		}
		updated = post
		return nil
	})
	if err != nil {
		return nil, err
	}
	m.log.WithField("post_id", id).Info("Post updated")
	return updated, nil
}

// DeletePost reports false when the post does not exist.
func (m *Manager) DeletePost(id string) (bool, error) {
	ok, err := m.store.Posts.Delete(id)
	if err != nil {
		return false, err
	}
	if ok {
		m.log.WithField("post_id", id).Info("Post deleted")
	}
	return ok, nil
}

func (m *Manager) GetPost(id string) (*core.Post, error) {
	return m.store.Posts.Get(id)
}

// ListPosts returns posts newest first. A zero limit means 50.
func (m *Manager) ListPosts(filter repository.PostFilter) ([]core.Post, error) {
	if filter.Limit <= 0 {
		filter.Limit = defaultListLimit
	}
	return m.store.Posts.List(filter)
}

func (m *Manager) ListDrafts() ([]core.Post, error) {
	return m.store.Posts.List(repository.PostFilter{Status: core.PostStatusDraft})
}

func (m *Manager) ListScheduled() ([]core.Post, error) {
	return m.store.Posts.List(repository.PostFilter{Status: core.PostStatusScheduled})
}

// SchedulePost sets the post's time and moves it to scheduled. Posted posts
// cannot be rescheduled.
func (m *Manager) SchedulePost(id string, at time.Time) (*core.Post, error) {
	var post *core.Post
	err := m.store.Atomic(func(tx *repository.Store) error {
		var err error
		post, err = m.SchedulePostTx(tx, id, at)
		return err
	})
	return post, err
}

// SchedulePostTx is SchedulePost inside a caller's transaction.
func (m *Manager) SchedulePostTx(tx *repository.Store, id string, at time.Time) (*core.Post, error) {
	post, err := tx.Posts.Get(id)
	if err != nil {
		return nil, err
	}
	if post.Status == core.PostStatusPosted {
		return nil, fmt.Errorf("%w: post %s is already posted", core.ErrValidation, id)
	}
	post.ScheduledTime = &at
	post.Status = core.PostStatusScheduled
	post.ErrorMessage = ""
	post.UpdatedAt = m.now()
	if err := tx.Posts.Update(post); err != nil {
		return nil, err
	}
	m.log.WithFields(logrus.Fields{"post_id": id, "scheduled_time": at}).Info("Post scheduled")
	return post, nil
}

// CreateFromTemplate renders the named template with vars and stores the
// result as a new draft.
func (m *Manager) CreateFromTemplate(name string, vars map[string]string) (*core.Post, error) {
	return m.CreateFromTemplateTx(m.store, name, vars, nil)
}

// CreateFromTemplateTx is CreateFromTemplate inside a caller's transaction.
// A non-nil scheduledTime creates the post as scheduled.
func (m *Manager) CreateFromTemplateTx(tx *repository.Store, name string, vars map[string]string, scheduledTime *time.Time) (*core.Post, error) {
	tmpl, err := tx.Templates.Get(name)
	if err != nil {
		return nil, err
	}
	text, err := tmpl.Render(vars)
	if err != nil {
		return nil, err
	}
	content := core.PostContent{
		Text:     text,
		Hashtags: slices.Clone(tmpl.Hashtags),
		Mentions: slices.Clone(tmpl.Mentions),
	}
	return m.createPost(tx, content, tmpl.ContentType, name, scheduledTime)
}

// Publish sends the post's text through the publisher and records the result.
// It returns (true, nil) on success and (false, nil) when the publisher
// declined. A posted post is sent again and gets a new posted time. A
// publisher error or timeout marks the post failed and is returned wrapped in
// core.ErrPublish. Hooks run in the transaction that stores the outcome.
func (m *Manager) Publish(ctx context.Context, id string, hooks ...OutcomeHook) (bool, error) {
	post, err := m.store.Posts.Get(id)
	if err != nil {
		return false, err
	}
	started := m.now()
	ok, pubErr := m.callPublisher(ctx, post.Content.Text)
	log := m.log.WithFields(logrus.Fields{"post_id": id, "elapsed": m.now().Sub(started)})

	outcome := Outcome{Published: ok && pubErr == nil, Err: pubErr, At: m.now()}
	err = m.store.Atomic(func(tx *repository.Store) error {
		fresh, err := tx.Posts.Get(id)
		if err != nil {
			return err
		}
		applyOutcome(fresh, outcome)
		if err := tx.Posts.Update(fresh); err != nil {
			return err
		}
		outcome.Post = fresh
		for _, hook := range hooks {
			if err := hook(tx, outcome); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		log.WithError(err).Error("Failed to record publish outcome")
		if pubErr != nil {
			return false, errors.Join(pubErr, err)
		}
		return false, err
	}

	switch {
	case pubErr != nil:
		log.WithError(pubErr).Error("Publish failed")
		return false, pubErr
	case !outcome.Published:
		log.Warn("Publisher rejected the post")
		return false, nil
	}
	log.Info("Post published")
	return true, nil
}

func applyOutcome(post *core.Post, o Outcome) {
	post.UpdatedAt = o.At
	switch {
	case o.Published:
		at := o.At
		post.Status = core.PostStatusPosted
		post.PostedAt = &at
		post.ErrorMessage = ""
	case o.Err != nil:
		post.Status = core.PostStatusFailed
		post.ErrorMessage = o.Err.Error()
	default:
		post.Status = core.PostStatusFailed
		post.ErrorMessage = RejectedMessage
	}
}

// callPublisher bounds the publisher call by the publish timeout even when
// the publisher ignores its context.
func (m *Manager) callPublisher(ctx context.Context, text string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, m.publishTimeout)
	defer cancel()

	type result struct {
		ok  bool
		err error
	}
	done := make(chan result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- result{err: fmt.Errorf("publisher panic: %v", r)}
			}
		}()
		ok, err := m.publisher.Publish(ctx, text)
		done <- result{ok: ok, err: err}
	}()

	select {
	case res := <-done:
		if res.err == nil {
			return res.ok, nil
		}
		if errors.Is(res.err, context.DeadlineExceeded) {
			return false, fmt.Errorf("%w: %w: publisher did not answer within %s", core.ErrPublish, core.ErrTimeout, m.publishTimeout)
		}
		return false, fmt.Errorf("%w: %v", core.ErrPublish, res.err)
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return false, fmt.Errorf("%w: %w: publisher did not answer within %s", core.ErrPublish, core.ErrTimeout, m.publishTimeout)
		}
		return false, fmt.Errorf("%w: %v", core.ErrPublish, ctx.Err())
	}
}

// PreviewPost returns a read-only projection of the post.
func (m *Manager) PreviewPost(id string) (core.Preview, error) {
	post, err := m.store.Posts.Get(id)
	if err != nil {
		return core.Preview{}, err
	}
	return post.Preview(), nil
}
