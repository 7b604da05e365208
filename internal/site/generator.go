// Package site renders the published posts into a static HTML tree that can
// be served by any file server.
package site

import (
	"context"
	"embed"
	"fmt"
	"html/template"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/lmarchetti/inkwell/internal/blog"
	"github.com/lmarchetti/inkwell/internal/config"
	"github.com/lmarchetti/inkwell/internal/model"
	"github.com/lmarchetti/inkwell/internal/render"
	"github.com/lmarchetti/inkwell/internal/util"
)

//go:embed templates/*.html
var templateFS embed.FS

var siteLogger zerolog.Logger

func SetLogger(l zerolog.Logger) {
	siteLogger = l
}

const relatedPerPost = 3

type Generator struct {
	blog      *blog.Manager
	cfg       *config.Config
	templates *template.Template
}

func NewGenerator(blogManager *blog.Manager, cfg *config.Config) (*Generator, error) {
	templates, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("error parsing templates: %w", err)
	}

	return &Generator{
		blog:      blogManager,
		cfg:       cfg,
		templates: templates,
	}, nil
}

type indexData struct {
	Site  config.SiteConfig
	Posts []*model.Post
}

type postData struct {
	Site        config.SiteConfig
	Post        *model.Post
	Content     template.HTML
	ReadingTime string
	Related     []*model.Post
}

// Generate writes the index page and one page per published post under the
// configured output directory. Existing files are overwritten; stale pages
// for since-unpublished posts are not cleaned up.
func (g *Generator) Generate(ctx context.Context) error {
	posts, err := g.blog.ListPosts(ctx, true)
	if err != nil {
		return fmt.Errorf("error listing published posts: %w", err)
	}

	outDir := g.cfg.Content.SiteOutputDir
	if err := os.MkdirAll(filepath.Join(outDir, "posts"), 0755); err != nil {
		return fmt.Errorf("error creating output directory: %w", err)
	}

	if err := g.writeIndex(outDir, posts); err != nil {
		return err
	}

	for _, post := range posts {
		if err := g.writePost(ctx, outDir, post); err != nil {
			return err
		}
	}

	siteLogger.Info().
		Int("posts", len(posts)).
		Str("output_dir", outDir).
		Msg("Site generated")
	return nil
}

func (g *Generator) writeIndex(outDir string, posts []*model.Post) error {
	f, err := os.Create(filepath.Join(outDir, "index.html"))
	if err != nil {
		return fmt.Errorf("error creating index page: %w", err)
	}
	defer f.Close()

	return g.templates.ExecuteTemplate(f, "index.html", indexData{
		Site:  g.cfg.Site,
		Posts: posts,
	})
}

func (g *Generator) writePost(ctx context.Context, outDir string, post *model.Post) error {
	related, err := g.blog.RelatedPosts(ctx, post.ID, post.Tags, post.Category, relatedPerPost)
	if err != nil {
		return fmt.Errorf("error loading related posts for %s: %w", post.Slug, err)
	}

	html := render.RenderMarkdownCached(
		[]byte(post.Content), post.ContentHash, g.cfg.Content.HighlightTheme)

	f, err := os.Create(filepath.Join(outDir, "posts", post.Slug+".html"))
	if err != nil {
		return fmt.Errorf("error creating post page: %w", err)
	}
	defer f.Close()

	return g.templates.ExecuteTemplate(f, "post.html", postData{
		Site:        g.cfg.Site,
		Post:        post,
		Content:     template.HTML(html),
		ReadingTime: util.EstimateReadingTime(post.Content).String(),
		Related:     related,
	})
}
