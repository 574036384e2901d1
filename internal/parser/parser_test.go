package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradu/emailqc/internal/model"
)

const sampleEmail = `<!DOCTYPE html>
<html>
<head>
	<title>  Trade smarter   this March </title>
	<meta name="preheader" content="CFD spreads from 0.5 points">
	<style>.btn { color: red; }</style>
</head>
<body>
	<div style="display:none; max-height:0;">Hidden preview text for inboxes</div>
	<table>
		<tr><td>Markets move fast. So should you.</td></tr>
		<tr><td><p>Trade CFDs on FX, indices, and commodities.</p></td></tr>
	</table>
	<a href="https://www.tradu.com/cfd">Start trading</a>
	<a href="https://www.tradu.com/cfd">Start trading</a>
	<a href="https://www.tradu.com/terms">Terms apply</a>
	<img src="pixel.gif" data-url="https://track.example.com/open">
	<a href="javascript:void(0)"><img src="arrow.gif"></a>
	<p>Your capital is at risk. 69% of retail accounts lose money.</p>
</body>
</html>`

func TestParse_FullDocument(t *testing.T) {
	preview := Parse(sampleEmail)

	assert.Equal(t, "Trade smarter this March", preview.Subject)
	assert.Equal(t, "CFD spreads from 0.5 points", preview.Preheader)

	assert.Contains(t, preview.BodyParagraphs, "Markets move fast. So should you.")
	assert.Contains(t, preview.BodyParagraphs, "Trade CFDs on FX, indices, and commodities.")
	assert.Contains(t, preview.BodyParagraphs, "Your capital is at risk. 69% of retail accounts lose money.")

	// Identical label+href pairs collapse into one CTA.
	assert.Equal(t, []model.CTA{
		{Label: "Start trading", Href: "https://www.tradu.com/cfd"},
		{Label: "Terms apply", Href: "https://www.tradu.com/terms"},
	}, preview.CTAs)

	assert.Contains(t, preview.Links, "https://www.tradu.com/cfd")
	assert.Contains(t, preview.Links, "https://www.tradu.com/terms")
	assert.Contains(t, preview.Links, "https://track.example.com/open")
	assert.NotContains(t, preview.Links, "javascript:void(0)")
}

func TestParse_SubjectFromMeta(t *testing.T) {
	preview := Parse(`<html><head>
		<title>fallback</title>
		<meta name="subject" content="The real subject">
	</head><body></body></html>`)

	assert.Equal(t, "The real subject", preview.Subject)
}

func TestParse_PreheaderFromHiddenElement(t *testing.T) {
	preview := Parse(`<html><body>
		<span style="font-size:1px;opacity:0">Limited time offer inside</span>
		<p>Visible content</p>
	</body></html>`)

	assert.Equal(t, "Limited time offer inside", preview.Preheader)
}

func TestParse_MalformedHTMLDegrades(t *testing.T) {
	preview := Parse(`<html><body><p>unclosed paragraph<td>stray cell`)

	assert.NotNil(t, preview.BodyParagraphs)
	assert.NotNil(t, preview.CTAs)
	assert.NotNil(t, preview.Links)
}

func TestParse_EmptyInput(t *testing.T) {
	preview := Parse("")

	assert.Empty(t, preview.Subject)
	assert.Empty(t, preview.Preheader)
	assert.Empty(t, preview.BodyParagraphs)
	assert.Empty(t, preview.CTAs)
	assert.Empty(t, preview.Links)
}

func TestParse_EmbeddedMessagePayload(t *testing.T) {
	page := `<html><head><title>Preview shell</title></head><body>
	<script>window.__INITIAL_PROPS__ = {"message":{"payload":{"subject":"March margin update","body":"<html><body><p>Margins change on 1 April.</p><a href=\"https://www.tradu.com/margin\">Details</a></body></html>"}}};</script>
	</body></html>`

	preview := Parse(page)

	assert.Equal(t, "March margin update", preview.Subject)
	assert.Contains(t, preview.BodyParagraphs, "Margins change on 1 April.")
	require.Len(t, preview.CTAs, 1)
	assert.Equal(t, "https://www.tradu.com/margin", preview.CTAs[0].Href)
}

func TestExtractInlineMessage(t *testing.T) {
	t.Run("no marker", func(t *testing.T) {
		_, ok := extractInlineMessage("<html><body>plain</body></html>")
		assert.False(t, ok)
	})

	t.Run("malformed payload", func(t *testing.T) {
		_, ok := extractInlineMessage(`<script>window.__INITIAL_PROPS__ = {not json};</script>`)
		assert.False(t, ok)
	})

	t.Run("empty body", func(t *testing.T) {
		_, ok := extractInlineMessage(`<script>window.__INITIAL_PROPS__ = {"message":{"payload":{"subject":"s","body":"  "}}};</script>`)
		assert.False(t, ok)
	})

	t.Run("valid", func(t *testing.T) {
		msg, ok := extractInlineMessage(`<script>window.__INITIAL_PROPS__ = {"message":{"payload":{"subject":"s","body":"<p>b</p>"}}};</script>`)
		require.True(t, ok)
		assert.Equal(t, "s", msg.subject)
		assert.Equal(t, "<p>b</p>", msg.body)
	})
}
