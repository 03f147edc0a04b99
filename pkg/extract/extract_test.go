package extract

import (
	"strings"
	"testing"

	"github.com/ledongthuc/pdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func word(s string, x, y, size float64, font string) pdf.Text {
	return pdf.Text{Font: font, FontSize: size, X: x, Y: y, W: float64(len(s)) * size * 0.5, S: s}
}

func TestGroupBlocks(t *testing.T) {
	texts := []pdf.Text{
		word("1.", 50, 700, 16, "Helvetica-Bold"),
		word("Parking", 70, 700, 16, "Helvetica-Bold"),
		word("Visitors", 50, 670, 11, "Helvetica"),
		word("park", 100, 670, 11, "Helvetica"),
		word("outside.", 50, 658, 11, "Helvetica"),
		word("Pets", 50, 600, 11, "Helvetica"),
	}

	blocks := groupBlocks(texts)
	require.Len(t, blocks, 3)

	assert.Equal(t, "1. Parking", blocks[0].Text())
	font, size := blocks[0].Font()
	assert.Equal(t, "Helvetica-Bold", font)
	assert.Equal(t, 16.0, size)

	assert.Equal(t, "Visitors park outside.", blocks[1].Text())
	assert.Len(t, blocks[1].Lines, 2)

	assert.Equal(t, "Pets", blocks[2].Text())
}

func TestGroupBlocks_MergesCharacterRuns(t *testing.T) {
	var texts []pdf.Text
	x := 10.0
	for _, r := range "Gym" {
		texts = append(texts, pdf.Text{Font: "Times", FontSize: 10, X: x, Y: 500, W: 5, S: string(r)})
		x += 5
	}

	blocks := groupBlocks(texts)
	require.Len(t, blocks, 1)
	assert.Equal(t, "Gym", blocks[0].Text())
}

func TestGroupBlocks_Empty(t *testing.T) {
	assert.Empty(t, groupBlocks(nil))
}

func TestHTMLPage(t *testing.T) {
	html := `
		<html>
			<head><title>Guidelines</title><script>var x = 1;</script></head>
			<body>
				<nav>Home</nav>
				<main>
					<h1>3. Amenities</h1>
					<p>The gym   opens at 6am.</p>
					<ul><li><p>Pool rules apply</p></li><li>Quiet hours</li></ul>
				</main>
			</body>
		</html>`

	page, err := HTMLPage(strings.NewReader(html), 2, "https://example.com/rules")
	require.NoError(t, err)

	assert.Equal(t, 2, page.Number)
	require.Len(t, page.Blocks, 4)

	assert.Equal(t, "3. Amenities", page.Blocks[0].Text())
	font, size := page.Blocks[0].Font()
	assert.Equal(t, "h1", font)
	assert.Equal(t, 24.0, size)

	assert.Equal(t, "The gym opens at 6am.", page.Blocks[1].Text())
	assert.Equal(t, "Pool rules apply", page.Blocks[2].Text())
	assert.Equal(t, "Quiet hours", page.Blocks[3].Text())
	_, size = page.Blocks[3].Font()
	assert.Equal(t, 11.0, size)
}
