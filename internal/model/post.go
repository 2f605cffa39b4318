// Package model defines core data structures and types for the content platform.
package model

import (
	"strings"
	"time"
)

type PostID string

// TempIDPrefix marks identifiers minted locally for optimistic creates.
// Server-issued identifiers never carry this prefix.
const TempIDPrefix = "temp-"

func (id PostID) IsTemp() bool {
	return strings.HasPrefix(string(id), TempIDPrefix)
}

type Author struct {
	Name      string `json:"name"`
	Slug      string `json:"slug,omitempty"`
	AvatarURL string `json:"avatarUrl,omitempty"`
}

type Category struct {
	Title string `json:"title"`
	Slug  string `json:"slug,omitempty"`
}

// SEO holds the per-post metadata rendered into the page head.
type SEO struct {
	MetaTitle       string   `json:"metaTitle,omitempty"`
	MetaDescription string   `json:"metaDescription,omitempty"`
	Keywords        []string `json:"keywords,omitempty"`
	OGImageURL      string   `json:"ogImageUrl,omitempty"`
}

// PostPreview is the listing-level summary of a blog post.
type PostPreview struct {
	ID            PostID    `json:"id"`
	Title         string    `json:"title"`
	Slug          string    `json:"slug"`
	PublishedAt   time.Time `json:"publishedAt"`
	Excerpt       string    `json:"excerpt,omitempty"`
	Category      Category  `json:"category"`
	Author        Author    `json:"author"`
	Tags          []string  `json:"tags,omitempty"`
	Featured      bool      `json:"featured"`
	CoverImageURL string    `json:"coverImageUrl,omitempty"`
}

// Post is the full record for a single post. Body is markdown.
type Post struct {
	PostPreview

	Body string `json:"body"`
	SEO  SEO    `json:"seo"`
}

func (p *PostPreview) URLPath() string {
	return "/blog/" + p.Slug
}

func (p *PostPreview) DisplayTitle() string {
	if p.Title != "" {
		return p.Title
	}
	return p.Slug
}

// PostDraft carries the fields an admin supplies when creating a post.
type PostDraft struct {
	Title         string   `json:"title"`
	Slug          string   `json:"slug"`
	Body          string   `json:"body"`
	Excerpt       string   `json:"excerpt,omitempty"`
	Category      string   `json:"category,omitempty"`
	AuthorName    string   `json:"authorName,omitempty"`
	Tags          []string `json:"tags,omitempty"`
	Featured      bool     `json:"featured"`
	CoverImageURL string   `json:"coverImageUrl,omitempty"`
	SEO           SEO      `json:"seo,omitempty"`
}

// PostPatch is a partial update. Nil fields are left untouched.
type PostPatch struct {
	Title         *string   `json:"title,omitempty"`
	Slug          *string   `json:"slug,omitempty"`
	Body          *string   `json:"body,omitempty"`
	Excerpt       *string   `json:"excerpt,omitempty"`
	Category      *string   `json:"category,omitempty"`
	Tags          *[]string `json:"tags,omitempty"`
	Featured      *bool     `json:"featured,omitempty"`
	CoverImageURL *string   `json:"coverImageUrl,omitempty"`
	SEO           *SEO      `json:"seo,omitempty"`
}

// ApplyToPreview patches the listing-level fields in place.
func (p *PostPatch) ApplyToPreview(dst *PostPreview) {
	if p.Title != nil {
		dst.Title = *p.Title
	}
	if p.Slug != nil {
		dst.Slug = *p.Slug
	}
	if p.Excerpt != nil {
		dst.Excerpt = *p.Excerpt
	}
	if p.Category != nil {
		dst.Category.Title = *p.Category
	}
	if p.Tags != nil {
		dst.Tags = *p.Tags
	}
	if p.Featured != nil {
		dst.Featured = *p.Featured
	}
	if p.CoverImageURL != nil {
		dst.CoverImageURL = *p.CoverImageURL
	}
}

// ApplyToPost patches the full record in place, including the detail-only fields.
func (p *PostPatch) ApplyToPost(dst *Post) {
	p.ApplyToPreview(&dst.PostPreview)
	if p.Body != nil {
		dst.Body = *p.Body
	}
	if p.SEO != nil {
		dst.SEO = *p.SEO
	}
}

// PreviewFromDraft builds the optimistic placeholder shown in the listing
// while a create is in flight. Category and author get placeholder labels
// until the server returns the resolved references.
func PreviewFromDraft(id PostID, d *PostDraft) PostPreview {
	category := d.Category
	if category == "" {
		category = "Uncategorized"
	}
	authorName := d.AuthorName
	if authorName == "" {
		authorName = "Staff"
	}

	return PostPreview{
		ID:            id,
		Title:         d.Title,
		Slug:          d.Slug,
		PublishedAt:   time.Now().UTC(),
		Excerpt:       d.Excerpt,
		Category:      Category{Title: category},
		Author:        Author{Name: authorName},
		Tags:          d.Tags,
		Featured:      d.Featured,
		CoverImageURL: d.CoverImageURL,
	}
}
