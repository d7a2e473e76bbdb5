package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/agnosto/autoposter/core"
	"github.com/agnosto/autoposter/db/repository"
	"github.com/agnosto/autoposter/posts"
	"github.com/agnosto/autoposter/utils"
)

func runPost(ctx context.Context, app *App, args []string) error {
	if len(args) == 0 {
		return errors.New("usage: autoposter post <create|list|drafts|scheduled|show|preview|update|delete|publish|from-template>")
	}
	sub, rest := args[0], args[1:]
	switch sub {
	case "create":
		return postCreate(app, rest)
	case "list":
		return postList(app, rest)
	case "drafts":
		list, err := app.Manager.ListDrafts()
		if err != nil {
			return err
		}
		printPosts(app.Out, list)
		return nil
	case "scheduled":
		list, err := app.Manager.ListScheduled()
		if err != nil {
			return err
		}
		printPosts(app.Out, list)
		return nil
	case "show":
		id, err := singleArg("post show <id>", rest)
		if err != nil {
			return err
		}
		post, err := app.Manager.GetPost(id)
		if err != nil {
			return err
		}
		return printJSON(app.Out, post)
	case "preview":
		id, err := singleArg("post preview <id>", rest)
		if err != nil {
			return err
		}
		preview, err := app.Manager.PreviewPost(id)
		if err != nil {
			return err
		}
		return printJSON(app.Out, preview)
	case "update":
		return postUpdate(app, rest)
	case "delete":
		id, err := singleArg("post delete <id>", rest)
		if err != nil {
			return err
		}
		deleted, err := app.Manager.DeletePost(id)
		if err != nil {
			return err
		}
		if !deleted {
			warn(app.Out, "Post %s not found.", id)
			return nil
		}
		success(app.Out, "Deleted post %s.", id)
		return nil
	case "publish":
		id, err := singleArg("post publish <id>", rest)
		if err != nil {
			return err
		}
		ok, err := app.Manager.Publish(ctx, id)
		if err != nil {
			return err
		}
		if !ok {
			failure(app.Out, "Publisher rejected post %s.", id)
			return nil
		}
		success(app.Out, "Published post %s.", id)
		return nil
	case "from-template":
		return postFromTemplate(app, rest)
	}
	return fmt.Errorf("unknown post command %q", sub)
}

func singleArg(usage string, args []string) (string, error) {
	if len(args) != 1 || strings.TrimSpace(args[0]) == "" {
		return "", fmt.Errorf("usage: autoposter %s", usage)
	}
	return args[0], nil
}

// parseAt reads an optional time flag in local time.
func parseAt(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := utils.ParseTimeArg(s, time.Local)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrValidation, err)
	}
	return &t, nil
}

func postCreate(app *App, args []string) error {
	fs := newFlagSet("post create")
	text := fs.String("text", "", "Post text (required)")
	image := fs.String("image", "", "Image URL")
	video := fs.String("video", "", "Video URL")
	hashtags := fs.String("hashtags", "", "Comma separated hashtags")
	mentions := fs.String("mentions", "", "Comma separated mentions")
	links := fs.String("links", "", "Comma separated links")
	contentType := fs.String("type", string(core.ContentTypeText), "Content type: text, image, video or mixed")
	templateName := fs.String("template", "", "Template the text came from")
	at := fs.String("at", "", "Scheduled time, e.g. \"2026-06-01 08:00\"")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ct, err := core.ParseContentType(*contentType)
	if err != nil {
		return err
	}
	scheduled, err := parseAt(*at)
	if err != nil {
		return err
	}

	post, err := app.Manager.CreatePost(core.PostContent{
		Text:     *text,
		ImageURL: *image,
		VideoURL: *video,
		Hashtags: utils.SplitList(*hashtags),
		Mentions: utils.SplitList(*mentions),
		Links:    utils.SplitList(*links),
	}, ct, *templateName, scheduled)
	if err != nil {
		return err
	}
	success(app.Out, "Created %s post %s.", post.Status, post.ID)
	return nil
}

func postList(app *App, args []string) error {
	fs := newFlagSet("post list")
	status := fs.String("status", "", "Only posts with this status")
	contentType := fs.String("type", "", "Only posts of this content type")
	limit := fs.Int("limit", 50, "Maximum number of posts")
	if err := fs.Parse(args); err != nil {
		return err
	}

	filter := repository.PostFilter{Limit: *limit}
	if *status != "" {
		st, err := core.ParsePostStatus(*status)
		if err != nil {
			return err
		}
		filter.Status = st
	}
	if *contentType != "" {
		ct, err := core.ParseContentType(*contentType)
		if err != nil {
			return err
		}
		filter.ContentType = ct
	}

	list, err := app.Manager.ListPosts(filter)
	if err != nil {
		return err
	}
	printPosts(app.Out, list)
	return nil
}

func postUpdate(app *App, args []string) error {
	if len(args) == 0 {
		return errors.New("usage: autoposter post update <id> [flags]")
	}
	id := args[0]

	fs := newFlagSet("post update")
	text := fs.String("text", "", "Post text")
	image := fs.String("image", "", "Image URL")
	video := fs.String("video", "", "Video URL")
	hashtags := fs.String("hashtags", "", "Comma separated hashtags")
	mentions := fs.String("mentions", "", "Comma separated mentions")
	links := fs.String("links", "", "Comma separated links")
	contentType := fs.String("type", "", "Content type")
	templateName := fs.String("template", "", "Template name")
	at := fs.String("at", "", "Scheduled time")
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}

	set := visited(fs)
	var upd posts.PostUpdate
	if set["text"] {
		upd.Text = text
	}
	if set["image"] {
		upd.ImageURL = image
	}
	if set["video"] {
		upd.VideoURL = video
	}
	if set["hashtags"] {
		v := utils.SplitList(*hashtags)
		upd.Hashtags = &v
	}
	if set["mentions"] {
		v := utils.SplitList(*mentions)
		upd.Mentions = &v
	}
	if set["links"] {
		v := utils.SplitList(*links)
		upd.Links = &v
	}
	if set["type"] {
		ct, err := core.ParseContentType(*contentType)
		if err != nil {
			return err
		}
		upd.ContentType = &ct
	}
	if set["template"] {
		upd.TemplateName = templateName
	}
	if set["at"] {
		t, err := parseAt(*at)
		if err != nil {
			return err
		}
		upd.ScheduledTime = t
	}

	post, err := app.Manager.UpdatePost(id, upd)
	if err != nil {
		return err
	}
	success(app.Out, "Updated post %s.", post.ID)
	return nil
}

func postFromTemplate(app *App, args []string) error {
	if len(args) == 0 {
		return errors.New("usage: autoposter post from-template <name> [-var key=value]...")
	}
	name := args[0]

	fs := newFlagSet("post from-template")
	vars := keyValues{}
	fs.Var(vars, "var", "Template variable as key=value (repeatable)")
	at := fs.String("at", "", "Schedule the new post at this time")
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}
	scheduled, err := parseAt(*at)
	if err != nil {
		return err
	}

	var post *core.Post
	if scheduled == nil {
		post, err = app.Manager.CreateFromTemplate(name, vars)
	} else {
		err = app.Store.Atomic(func(tx *repository.Store) error {
			var err error
			post, err = app.Manager.CreateFromTemplateTx(tx, name, vars, scheduled)
			return err
		})
	}
	if err != nil {
		return err
	}
	success(app.Out, "Created %s post %s from template %s.", post.Status, post.ID, name)
	fmt.Fprintln(app.Out, post.Content.Text)
	return nil
}
