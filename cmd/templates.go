package cmd

import (
	"errors"
	"fmt"

	"github.com/agnosto/autoposter/core"
	"github.com/agnosto/autoposter/posts"
	"github.com/agnosto/autoposter/utils"
)

func runTemplate(app *App, args []string) error {
	if len(args) == 0 {
		return errors.New("usage: autoposter template <list|show|add|update|delete>")
	}
	sub, rest := args[0], args[1:]
	switch sub {
	case "list":
		fs := newFlagSet("template list")
		enabled := fs.Bool("enabled", false, "Only enabled templates")
		if err := fs.Parse(rest); err != nil {
			return err
		}
		var list []core.Template
		var err error
		if *enabled {
			list, err = app.Manager.EnabledTemplates()
		} else {
			list, err = app.Manager.ListTemplates()
		}
		if err != nil {
			return err
		}
		if len(list) == 0 {
			warn(app.Out, "No templates.")
			return nil
		}
		tw := newTable(app.Out, "KEY", "NAME", "TYPE", "ENABLED", "PLACEHOLDERS")
		for _, t := range list {
			row(tw, t.Key, t.Name, string(t.ContentType), fmt.Sprint(t.Enabled), fmt.Sprint(t.Placeholders()))
		}
		tw.Flush()
		return nil
	case "show":
		name, err := singleArg("template show <key>", rest)
		if err != nil {
			return err
		}
		t, err := app.Manager.GetTemplate(name)
		if err != nil {
			return err
		}
		return printJSON(app.Out, t)
	case "add":
		return templateAdd(app, rest)
	case "update":
		return templateUpdate(app, rest)
	case "delete":
		name, err := singleArg("template delete <key>", rest)
		if err != nil {
			return err
		}
		deleted, err := app.Manager.DeleteTemplate(name)
		if err != nil {
			return err
		}
		if !deleted {
			warn(app.Out, "Template %s not found.", name)
			return nil
		}
		success(app.Out, "Deleted template %s.", name)
		return nil
	}
	return fmt.Errorf("unknown template command %q", sub)
}

func templateAdd(app *App, args []string) error {
	if len(args) == 0 {
		return errors.New("usage: autoposter template add <key> -body <text> [flags]")
	}
	key := args[0]

	fs := newFlagSet("template add")
	name := fs.String("name", "", "Display name (default: the key)")
	description := fs.String("description", "", "Description")
	body := fs.String("body", "", "Body with {placeholders} (required)")
	hashtags := fs.String("hashtags", "", "Comma separated hashtags")
	mentions := fs.String("mentions", "", "Comma separated mentions")
	tone := fs.String("tone", "casual", "professional, casual, formal or friendly")
	maxLength := fs.Int("max-length", 280, "Maximum rendered length in characters, 0 for none")
	contentType := fs.String("type", string(core.ContentTypeText), "Content type")
	includeLink := fs.Bool("include-link", false, "Posts from this template carry a link")
	includeMedia := fs.Bool("include-media", false, "Posts from this template carry media")
	disabled := fs.Bool("disabled", false, "Add the template disabled")
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}

	ct, err := core.ParseContentType(*contentType)
	if err != nil {
		return err
	}
	if *name == "" {
		*name = key
	}

	tmpl := core.Template{
		Key:          key,
		Name:         *name,
		Description:  *description,
		Body:         *body,
		Hashtags:     utils.SplitList(*hashtags),
		Mentions:     utils.SplitList(*mentions),
		Tone:         *tone,
		MaxLength:    *maxLength,
		ContentType:  ct,
		IncludeLink:  *includeLink,
		IncludeMedia: *includeMedia,
		Enabled:      !*disabled,
	}
	if err := app.Manager.AddTemplate(tmpl); err != nil {
		return err
	}
	success(app.Out, "Added template %s with placeholders %v.", key, tmpl.Placeholders())
	return nil
}

func templateUpdate(app *App, args []string) error {
	if len(args) == 0 {
		return errors.New("usage: autoposter template update <key> [flags]")
	}
	key := args[0]

	fs := newFlagSet("template update")
	name := fs.String("name", "", "Display name")
	description := fs.String("description", "", "Description")
	body := fs.String("body", "", "Body")
	hashtags := fs.String("hashtags", "", "Comma separated hashtags")
	mentions := fs.String("mentions", "", "Comma separated mentions")
	tone := fs.String("tone", "", "Tone")
	maxLength := fs.Int("max-length", 0, "Maximum rendered length")
	contentType := fs.String("type", "", "Content type")
	includeLink := fs.Bool("include-link", false, "Posts carry a link")
	includeMedia := fs.Bool("include-media", false, "Posts carry media")
	enabled := fs.Bool("enabled", true, "Enable or disable the template")
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}

	set := visited(fs)
	var upd posts.TemplateUpdate
	if set["name"] {
		upd.Name = name
	}
	if set["description"] {
		upd.Description = description
	}
	if set["body"] {
		upd.Body = body
	}
	if set["hashtags"] {
		v := utils.SplitList(*hashtags)
		upd.Hashtags = &v
	}
	if set["mentions"] {
		v := utils.SplitList(*mentions)
		upd.Mentions = &v
	}
	if set["tone"] {
		upd.Tone = tone
	}
	if set["max-length"] {
		upd.MaxLength = maxLength
	}
	if set["type"] {
		ct, err := core.ParseContentType(*contentType)
		if err != nil {
			return err
		}
		upd.ContentType = &ct
	}
	if set["include-link"] {
		upd.IncludeLink = includeLink
	}
	if set["include-media"] {
		upd.IncludeMedia = includeMedia
	}
	if set["enabled"] {
		upd.Enabled = enabled
	}

	if _, err := app.Manager.UpdateTemplate(key, upd); err != nil {
		return err
	}
	success(app.Out, "Updated template %s.", key)
	return nil
}
