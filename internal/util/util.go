// Package util provides content hashing and front matter parsing.
package util

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

func ContentHash(content []byte) string {
	hash := sha256.Sum256(content)
	return hex.EncodeToString(hash[:])
}

func ContentHashString(content string) string {
	return ContentHash([]byte(content))
}

// FrontMatter is the metadata block at the top of a seed markdown file.
// Field names follow the CMS document shape.
type FrontMatter struct {
	Title       string    `yaml:"title" toml:"title"`
	Slug        string    `yaml:"slug" toml:"slug"`
	Date        time.Time `yaml:"date" toml:"date"`
	Excerpt     string    `yaml:"excerpt" toml:"excerpt"`
	Category    string    `yaml:"category" toml:"category"`
	CoverImage  string    `yaml:"coverImage" toml:"coverImage"`
	Featured    bool      `yaml:"featured" toml:"featured"`
	Tags        []string  `yaml:"tags" toml:"tags"`
	Author      Person    `yaml:"author" toml:"author"`
	MetaTitle   string    `yaml:"metaTitle" toml:"metaTitle"`
	Description string    `yaml:"metaDescription" toml:"metaDescription"`
}

type Person struct {
	Name  string `yaml:"name" toml:"name"`
	Image string `yaml:"image" toml:"image"`
}

var (
	yamlDelimiter = []byte("---")
	tomlDelimiter = []byte("+++")
)

// ParseFrontMatter splits md into its front matter and body. YAML ("---")
// and TOML ("+++") fences are both accepted. The front matter must be the
// first thing in the file.
func ParseFrontMatter(md []byte) (*FrontMatter, []byte, error) {
	md = bytes.TrimLeft(md, "\n \t\r")

	var delimiter []byte
	switch {
	case bytes.HasPrefix(md, yamlDelimiter):
		delimiter = yamlDelimiter
	case bytes.HasPrefix(md, tomlDelimiter):
		delimiter = tomlDelimiter
	default:
		return nil, nil, fmt.Errorf("no front matter fence found")
	}

	rest := md[len(delimiter):]
	end := bytes.Index(rest, append([]byte("\n"), delimiter...))
	if end == -1 {
		return nil, nil, fmt.Errorf("unterminated front matter fence")
	}

	block := rest[:end]
	body := rest[end+1+len(delimiter):]
	body = bytes.TrimLeft(body, "\n\r")

	info := &FrontMatter{}
	if bytes.Equal(delimiter, yamlDelimiter) {
		if err := yaml.Unmarshal(block, info); err != nil {
			return nil, nil, fmt.Errorf("failed to decode front matter: %w", err)
		}
	} else {
		if err := toml.Unmarshal(block, info); err != nil {
			return nil, nil, fmt.Errorf("failed to decode front matter: %w", err)
		}
	}

	return info, body, nil
}
