// Command seed bulk-creates blog posts in the CMS from a directory of
// markdown files with front matter.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/joho/godotenv"

	"github.com/skyroutes/flightdeck/internal/cms"
	"github.com/skyroutes/flightdeck/internal/config"
	"github.com/skyroutes/flightdeck/internal/logger"
	"github.com/skyroutes/flightdeck/internal/model"
	"github.com/skyroutes/flightdeck/internal/util"
)

var (
	styleOK   = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	styleFail = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	styleDim  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	styleBox  = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			Padding(0, 1)
)

func main() {
	path := flag.String("path", "", "Path to the directory containing .md files")
	configPath := flag.String("config", "./config.yaml", "Path to the config file")
	dryRun := flag.Bool("dry-run", false, "Parse and report without creating anything")
	flag.Parse()

	if *path == "" {
		fmt.Fprintln(os.Stderr, "The --path flag is required")
		os.Exit(1)
	}

	godotenv.Load()

	if err := config.LoadConfig(*configPath); err != nil {
		fmt.Fprintln(os.Stderr, "Error loading config:", err)
		os.Exit(1)
	}
	cfg := config.AppConfig

	l := logger.New("warn", "console")
	cms.SetLogger(l)

	client := cms.NewClient(cfg.CMS.BaseURL, cfg.CMS.Dataset, cfg.CMS.APIVersion, cfg.CMSToken())

	entries, err := os.ReadDir(*path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error reading directory:", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	var created, failed int
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") {
			continue
		}

		if err := seedFile(ctx, client, filepath.Join(*path, entry.Name()), *dryRun); err != nil {
			failed++
			fmt.Println(styleFail.Render("✗"), entry.Name(), styleDim.Render(err.Error()))
			continue
		}
		created++
		fmt.Println(styleOK.Render("✓"), entry.Name())
	}

	verb := "created"
	if *dryRun {
		verb = "validated"
	}
	fmt.Println(styleBox.Render(fmt.Sprintf("%d posts %s, %d failed", created, verb, failed)))
	if failed > 0 {
		os.Exit(1)
	}
}

func seedFile(ctx context.Context, client *cms.Client, path string, dryRun bool) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	fm, body, err := util.ParseFrontMatter(raw)
	if err != nil {
		return err
	}

	draft := draftFromFrontMatter(fm, body, path)
	if dryRun {
		return nil
	}

	_, err = client.CreatePost(ctx, draft)
	return err
}

func draftFromFrontMatter(fm *util.FrontMatter, body []byte, path string) *model.PostDraft {
	slug := fm.Slug
	if slug == "" {
		slug = slugify(strings.TrimSuffix(filepath.Base(path), ".md"))
	}
	title := fm.Title
	if title == "" {
		title = slug
	}

	return &model.PostDraft{
		Title:         title,
		Slug:          slug,
		Body:          string(body),
		Excerpt:       fm.Excerpt,
		Category:      fm.Category,
		AuthorName:    fm.Author.Name,
		Tags:          fm.Tags,
		Featured:      fm.Featured,
		CoverImageURL: fm.CoverImage,
		SEO: model.SEO{
			MetaTitle:       fm.MetaTitle,
			MetaDescription: fm.Description,
		},
	}
}

func slugify(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '-' || r == '_' || r == ' ':
			b.WriteRune('-')
		}
	}
	return strings.Trim(b.String(), "-")
}
