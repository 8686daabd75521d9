package pipeline

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"baton/internal/fileutil"
	"baton/internal/runctx"
	"baton/internal/services"
	"baton/internal/stagecontext"
)

// Fixture replays a run offline from static collaborator output.
type Fixture struct {
	Request       runctx.Request
	Collaborators Collaborators
	Channel       string
}

// Overrides returns the run-context overrides the fixture asks for.
func (f Fixture) Overrides() runctx.Overrides {
	var o runctx.Overrides
	if f.Channel != "" {
		o.Extensions = map[string]any{ExtensionChannel: f.Channel}
	}
	return o
}

type fixtureFile struct {
	Request struct {
		ID       string                `json:"id"`
		Brief    string                `json:"brief"`
		Campaign stagecontext.Campaign `json:"campaign"`
	} `json:"request"`
	Content     map[string]any       `json:"content"`
	Assets      []stagecontext.Asset `json:"assets"`
	Diagnostics []string             `json:"diagnostics"`
	Channel     string               `json:"channel"`
}

// LoadFixtures reads a fixture file and builds static collaborators from it.
func LoadFixtures(ctx context.Context, store *fileutil.Store, path string) (Fixture, error) {
	var file fixtureFile
	if err := store.ReadJSON(ctx, path, &file); err != nil {
		return Fixture{}, fmt.Errorf("load fixtures: %w", err)
	}
	if len(file.Content) == 0 {
		return Fixture{}, services.NewValidationError("content", nil, "object with generated copy",
			"fixture has no content: "+path)
	}
	return Fixture{
		Request: runctx.Request{
			ID:       file.Request.ID,
			Campaign: file.Request.Campaign,
			Brief:    file.Request.Brief,
		},
		Collaborators: Collaborators{
			Content:  StaticGenerator(file.Content),
			Compiler: MarkupCompiler(file.Diagnostics),
			Assets:   StaticSelector(file.Assets),
		},
		Channel: file.Channel,
	}, nil
}

// StaticGenerator always returns a copy of content.
func StaticGenerator(content map[string]any) ContentGenerator {
	return GeneratorFunc(func(context.Context, GenerationRequest) (map[string]any, error) {
		out := make(map[string]any, len(content))
		for k, v := range content {
			out[k] = v
		}
		return out, nil
	})
}

// StaticSelector returns the assets tagged with any requested tag or the
// campaign type. With no match it returns the whole catalog.
func StaticSelector(catalog []stagecontext.Asset) AssetSelector {
	return SelectorFunc(func(_ context.Context, tags []string, campaignType string) ([]stagecontext.Asset, error) {
		wanted := append(slices.Clone(tags), campaignType)
		var out []stagecontext.Asset
		for _, asset := range catalog {
			for _, tag := range asset.Tags {
				if slices.ContainsFunc(wanted, func(w string) bool { return strings.EqualFold(w, tag) }) {
					out = append(out, asset)
					break
				}
			}
		}
		if len(out) == 0 {
			out = slices.Clone(catalog)
		}
		return out, nil
	})
}

var markupTags = strings.NewReplacer(
	"<mj-template", "<div class=\"template\"",
	"</mj-template>", "</div>",
	"<mj-section", "<section",
	"</mj-section>", "</section>",
	"<mj-text", "<p",
	"</mj-text>", "</p>",
	"<mj-image", "<img",
	"<mj-button>", "<a class=\"button\">",
	"</mj-button>", "</a>",
)

// MarkupCompiler renders template markup to plain HTML and reports the given
// diagnostics.
func MarkupCompiler(diagnostics []string) TemplateCompiler {
	return CompilerFunc(func(_ context.Context, markup string) (Compiled, error) {
		if strings.TrimSpace(markup) == "" {
			return Compiled{}, fmt.Errorf("empty markup")
		}
		html := "<html><body>\n" + markupTags.Replace(markup) + "</body></html>\n"
		return Compiled{
			HTML:        html,
			SizeBytes:   len(html),
			Diagnostics: slices.Clone(diagnostics),
		}, nil
	})
}
