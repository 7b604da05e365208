package util

import (
	"bytes"
	"fmt"

	"github.com/BurntSushi/toml"
	"github.com/gomarkdown/markdown"

	"github.com/mmarkdown/mmark/v2/mast"
)

// PostMeta is the TOML front matter of an imported markdown file: the mmark
// title block plus blog-specific fields.
type PostMeta struct {
	*mast.TitleData
	Tags     []string `toml:"tags"`
	Category string   `toml:"category"`
	Excerpt  string   `toml:"excerpt"`
	Consumed int      `toml:"-"`
}

// GetFrontMatter parses a %%%-delimited TOML front matter block at the top of
// md. Consumed holds the byte offset where the post body starts.
func GetFrontMatter(md []byte) (*PostMeta, error) {
	md = markdown.NormalizeNewlines(md)
	md = bytes.TrimLeft(md, "\n \t\r")

	delimiter := []byte("%%%")

	// Check if md is long enough to contain the delimiter
	if len(md) < 2*len(delimiter) {
		return nil, fmt.Errorf("invalid front matter format")
	}

	first := bytes.Index(md[:len(delimiter)+1], delimiter)
	if first == -1 {
		return nil, fmt.Errorf("invalid front matter format")
	}

	second := bytes.Index(md[first+len(delimiter):], delimiter)
	if second == -1 {
		return nil, fmt.Errorf("invalid front matter format")
	}

	end := second + 2*len(delimiter) + 1
	if end > len(md) {
		return nil, fmt.Errorf("invalid front matter format")
	}

	frontMatter := md[len(delimiter) : end-len(delimiter)-1]
	meta := &PostMeta{
		TitleData: &mast.TitleData{},
	}

	if _, err := toml.Decode(string(frontMatter), meta); err != nil {
		return nil, fmt.Errorf("failed to decode front matter: %w", err)
	}

	if meta.Language == "" {
		meta.Language = "en"
	}
	meta.Consumed = end

	return meta, nil
}
