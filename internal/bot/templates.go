package bot

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"strings"
)

//go:embed templates
var templateFS embed.FS

// Template names, relative to the templates directory.
const (
	tplAuthorized         = "authorized.html"
	tplChooseBoard        = "choose_board.html"
	tplChooseList         = "choose_list.html"
	tplChooseCard         = "choose_card.html"
	tplShowCard           = "show_card.html"
	tplHelp               = "help.html"
	tplCanceled           = "canceled.html"
	tplAskComment         = "ask_comment.html"
	tplCommentAdded       = "comment_added.html"
	tplNotAuthorized      = "errors/not_authorized.html"
	tplUnknownCommand     = "errors/unknown_command.html"
	tplUnknownContentType = "errors/unknown_content_type.html"
	tplUnknownText        = "errors/unknown_text.html"
	tplCannotEditMessage  = "errors/cannot_edit_message.html"
	tplCannotForward      = "errors/cannot_forward.html"
)

// Templates renders the Telegram HTML messages of the bot.
type Templates struct {
	set map[string]*template.Template
}

// LoadTemplates parses every embedded template. Each file is parsed into its
// own set so base names may repeat across directories.
func LoadTemplates() (*Templates, error) {
	t := &Templates{set: make(map[string]*template.Template)}
	for _, pattern := range []string{"templates/*.html", "templates/errors/*.html"} {
		matches, err := fs.Glob(templateFS, pattern)
		if err != nil {
			return nil, err
		}
		for _, path := range matches {
			tpl, err := template.ParseFS(templateFS, path)
			if err != nil {
				return nil, fmt.Errorf("parse template %s: %w", path, err)
			}
			t.set[strings.TrimPrefix(path, "templates/")] = tpl
		}
	}
	return t, nil
}

// Render executes a template and trims surrounding whitespace.
func (t *Templates) Render(name string, data any) (string, error) {
	tpl, ok := t.set[name]
	if !ok {
		return "", fmt.Errorf("template %s not found", name)
	}
	var buf bytes.Buffer
	if err := tpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render template %s: %w", name, err)
	}
	return strings.TrimSpace(buf.String()), nil
}
