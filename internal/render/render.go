// Package render turns pipeline results into terminal text, Markdown or
// HTML. HTML is produced from the Markdown rendering.
package render

import (
	"bytes"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/gomarkdown/markdown"
	mdhtml "github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
	"github.com/rohmanhakim/parkfetch/internal/record"
)

type Format string

const (
	FormatText     Format = "text"
	FormatMarkdown Format = "markdown"
	FormatHTML     Format = "html"
)

func ParseFormat(name string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(name))) {
	case FormatText, "":
		return FormatText, nil
	case FormatMarkdown, "md":
		return FormatMarkdown, nil
	case FormatHTML:
		return FormatHTML, nil
	default:
		return "", fmt.Errorf("unknown format %q (want text, markdown or html)", name)
	}
}

const rule = "----------------------------------"

// States lists state names alphabetically.
func States(w io.Writer, format Format, states map[string]string) error {
	names := make([]string, 0, len(states))
	for name := range states {
		names = append(names, name)
	}
	sort.Strings(names)

	var b bytes.Buffer
	switch format {
	case FormatText:
		b.WriteString(banner("States"))
		for _, name := range names {
			fmt.Fprintf(&b, "%s\n", name)
		}
	default:
		b.WriteString("# States\n\n")
		for _, name := range names {
			fmt.Fprintf(&b, "- [%s](%s)\n", escape(name), states[name])
		}
	}
	return emit(w, format, b.Bytes())
}

// Sites lists sites numbered from 1, the numbers a caller selects by.
func Sites(w io.Writer, format Format, stateName string, sites []record.Site) error {
	title := fmt.Sprintf("List of national sites in %s", stateName)

	var b bytes.Buffer
	switch format {
	case FormatText:
		b.WriteString(banner(title))
		for i, site := range sites {
			fmt.Fprintf(&b, "[%d] %s\n", i+1, site.Describe())
		}
	default:
		fmt.Fprintf(&b, "# %s\n\n", escape(title))
		for i, site := range sites {
			fmt.Fprintf(&b, "%d. %s\n", i+1, escape(site.Describe()))
		}
	}
	return emit(w, format, b.Bytes())
}

// Places lists the points of interest near one site.
func Places(w io.Writer, format Format, site record.Site, places []record.NearbyPlace) error {
	title := fmt.Sprintf("Places near %s", site.Name())

	var b bytes.Buffer
	switch format {
	case FormatText:
		b.WriteString(banner(title))
		for _, place := range places {
			fmt.Fprintf(&b, "%s\n", place.Describe())
		}
		if len(places) == 0 {
			b.WriteString("no places found\n")
		}
	default:
		fmt.Fprintf(&b, "# %s\n\n", escape(title))
		for _, place := range places {
			fmt.Fprintf(&b, "%s\n", escape(place.Describe()))
		}
		if len(places) == 0 {
			b.WriteString("_no places found_\n")
		}
	}
	return emit(w, format, b.Bytes())
}

func banner(title string) string {
	return rule + "\n" + title + "\n" + rule + "\n"
}

func emit(w io.Writer, format Format, content []byte) error {
	if format == FormatHTML {
		content = toHTML(content)
	}
	_, err := w.Write(content)
	return err
}

func toHTML(md []byte) []byte {
	p := parser.NewWithExtensions(parser.CommonExtensions)
	r := mdhtml.NewRenderer(mdhtml.RendererOptions{Flags: mdhtml.CommonFlags})
	return markdown.ToHTML(md, p, r)
}

var markdownEscaper = strings.NewReplacer(
	`\`, `\\`,
	"`", "\\`",
	"*", `\*`,
	"_", `\_`,
	"[", `\[`,
	"]", `\]`,
	"<", `\<`,
)

// escape keeps scraped text from being read as Markdown syntax.
// A leading "- " list marker is left alone.
func escape(s string) string {
	if strings.HasPrefix(s, "- ") {
		return "- " + markdownEscaper.Replace(s[2:])
	}
	return markdownEscaper.Replace(s)
}
