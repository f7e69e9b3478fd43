package content

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"text/template"
	"unicode"

	"github.com/google/uuid"

	"contentpilot/internal/external"
	"contentpilot/internal/types"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

// templateData is the struct passed into the content templates.
type templateData struct {
	Topic      string
	TopicTitle string
	Year       string
}

// ProducerConfig holds the parameters needed to construct a TemplateProducer.
type ProducerConfig struct {
	// Store receives every produced item. Optional.
	Store *Store
	// MediaBaseURL, when set, gives video content types a video_url of
	// <MediaBaseURL>/<content id>.mp4 for the render pipeline to fill.
	MediaBaseURL string
	Clock        types.Clock
	Logger       *slog.Logger
}

// TemplateProducer generates draft content from one embedded template per
// content type. It implements types.ContentProducer.
type TemplateProducer struct {
	templates    map[types.ContentType]*template.Template
	store        *Store
	mediaBaseURL string
	clock        types.Clock
	logger       *slog.Logger
}

var _ types.ContentProducer = (*TemplateProducer)(nil)

// NewTemplateProducer parses the embedded templates. Returns an error if any
// template fails to parse.
func NewTemplateProducer(cfg ProducerConfig) (*TemplateProducer, error) {
	clock := cfg.Clock
	if clock == nil {
		clock = types.RealClock{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	p := &TemplateProducer{
		templates:    make(map[types.ContentType]*template.Template),
		store:        cfg.Store,
		mediaBaseURL: strings.TrimSuffix(cfg.MediaBaseURL, "/"),
		clock:        clock,
		logger:       logger,
	}

	for _, ct := range []types.ContentType{
		types.ContentBlog,
		types.ContentYouTubeShort,
		types.ContentInstagramReel,
		types.ContentFacebookStory,
	} {
		tmpl, err := template.ParseFS(templateFS, "templates/"+string(ct)+".tmpl")
		if err != nil {
			return nil, fmt.Errorf("content: failed to parse template for %s: %w", ct, err)
		}
		p.templates[ct] = tmpl
	}
	return p, nil
}

// Produce renders a draft item for req and saves it to the store.
func (p *TemplateProducer) Produce(ctx context.Context, req types.ContentRequest) (types.ContentItem, error) {
	if err := ctx.Err(); err != nil {
		return types.ContentItem{}, err
	}

	topic := strings.TrimSpace(req.Topic)
	if topic == "" {
		return types.ContentItem{}, types.NewAppError(types.ErrCodeValidationMissingField,
			"topic is required", nil)
	}
	tmpl, ok := p.templates[req.Type]
	if !ok {
		return types.ContentItem{}, types.NewAppErrorWithDetails(types.ErrCodeValidationInvalidContent,
			fmt.Sprintf("unknown content type %q", req.Type), nil,
			map[string]any{"type": req.Type})
	}

	now := p.clock.Now()
	data := templateData{
		Topic:      topic,
		TopicTitle: titleCase(topic),
		Year:       strconv.Itoa(now.Year()),
	}

	title, err := render(tmpl, "title", data)
	if err != nil {
		return types.ContentItem{}, err
	}
	body, err := render(tmpl, "body", data)
	if err != nil {
		return types.ContentItem{}, err
	}
	tags, err := render(tmpl, "tags", data)
	if err != nil {
		return types.ContentItem{}, err
	}

	item := types.ContentItem{
		ID:        "cnt_" + uuid.New().String(),
		Title:     title,
		Content:   body,
		Type:      req.Type,
		Status:    types.ContentStatusDraft,
		Topic:     topic,
		Metadata:  map[string]string{external.MetaTags: tags},
		CreatedAt: now,
	}
	if p.mediaBaseURL != "" && req.Type != types.ContentBlog {
		item.Metadata[external.MetaVideoURL] = p.mediaBaseURL + "/" + item.ID + ".mp4"
	}

	if p.store != nil {
		if item, err = p.store.Save(item); err != nil {
			return types.ContentItem{}, err
		}
	}

	p.logger.InfoContext(ctx, "content produced",
		"content_id", item.ID,
		"type", item.Type,
		"topic", topic,
	)
	return item, nil
}

func render(tmpl *template.Template, name string, data templateData) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("content: failed to render %s: %w", name, err)
	}
	return strings.TrimSpace(buf.String()), nil
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		r := []rune(w)
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}
