package copydoc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradu/emailqc/internal/model"
)

func TestExtractLinksFromHTML(t *testing.T) {
	docHTML := `<p>Check the <a href=" https://www.tradu.com/cfd ">CFD page</a>
	and <a href="https://www.tradu.com/terms"> Terms </a>.
	<a href="">no href</a> <a>bare anchor</a></p>`

	links := ExtractLinksFromHTML(docHTML)

	require.Len(t, links, 2)
	assert.Equal(t, model.CopyDocLink{Href: "https://www.tradu.com/cfd", Label: "CFD page"}, links[0])
	assert.Equal(t, model.CopyDocLink{Href: "https://www.tradu.com/terms", Label: "Terms"}, links[1])
}

func TestExtractLinksFromHTML_Empty(t *testing.T) {
	assert.Nil(t, ExtractLinksFromHTML(""))
	assert.Nil(t, ExtractLinksFromHTML("   \n  "))
	assert.Empty(t, ExtractLinksFromHTML("<p>no anchors here</p>"))
}

func TestSanitizeLinks(t *testing.T) {
	links := []model.CopyDocLink{
		{Href: "  https://www.tradu.com  ", Label: " Home "},
		{Href: "   ", Label: "dropped"},
		{Href: "https://www.tradu.com/cfd"},
	}

	cleaned := SanitizeLinks(links)

	require.Len(t, cleaned, 2)
	assert.Equal(t, "https://www.tradu.com", cleaned[0].Href)
	assert.Equal(t, "Home", cleaned[0].Label)
	assert.Equal(t, "https://www.tradu.com/cfd", cleaned[1].Href)
}

func TestFallbackPreviewHTML_PrefersHTML(t *testing.T) {
	out := FallbackPreviewHTML("ignored text", `<p>From the <a href="/x">doc</a></p>`)

	assert.Contains(t, out, `<p>From the <a href="/x">doc</a></p>`)
	assert.NotContains(t, out, "ignored text")
	assert.Contains(t, out, "<!doctype html>")
}

func TestFallbackPreviewHTML_FromText(t *testing.T) {
	text := "First paragraph line one.\nLine two.\n\nSecond paragraph with <markup>.\r\n\r\nThird."

	out := FallbackPreviewHTML(text, "")

	assert.Contains(t, out, "<p>First paragraph line one.\nLine two.</p>")
	assert.Contains(t, out, "<p>Second paragraph with &lt;markup&gt;.</p>")
	assert.Contains(t, out, "<p>Third.</p>")
}

func TestFallbackPreviewHTML_NoContent(t *testing.T) {
	out := FallbackPreviewHTML("   ", "  ")
	assert.Contains(t, out, "(No preview content available)")
}

func TestSplitParagraphs(t *testing.T) {
	assert.Empty(t, splitParagraphs(""))
	assert.Equal(t, []string{"one"}, splitParagraphs("\n\none\n\n"))
	assert.Equal(t, []string{"a\nb", "c"}, splitParagraphs("a\nb\n\nc"))
}
