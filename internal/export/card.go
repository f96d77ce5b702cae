package export

import (
	"image"
	"image/color"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/trunghafromvietnam/aegis-share/internal/model"
)

// Card geometry at scale 1. basicfont glyphs are 7x13.
const (
	cardWidth  = 420
	pad        = 24
	boxPad     = 16
	lineHeight = 18
	glyphW     = 7
	badgeH     = 28
	badgeMinW  = 100
)

var (
	colBackground = rgb(0x0f, 0x17, 0x2a)
	colBox        = rgb(0x1e, 0x29, 0x3b)
	colWhite      = rgb(0xff, 0xff, 0xff)
	colText       = rgb(0xf1, 0xf5, 0xf9)
	colMuted      = rgb(0x94, 0xa3, 0xb8)
	colFooter     = rgb(0x64, 0x74, 0x8b)
	colInk        = rgb(0x0f, 0x17, 0x2a)
)

type palette struct {
	badge  color.RGBA
	label  color.RGBA
	accent color.RGBA
}

func paletteFor(level model.RiskLevel) palette {
	switch level {
	case model.RiskRed:
		return palette{badge: rgb(0xdc, 0x26, 0x26), label: colWhite, accent: rgb(0xef, 0x44, 0x44)}
	case model.RiskYellow:
		return palette{badge: rgb(0xfb, 0xbf, 0x24), label: colInk, accent: rgb(0xf5, 0x9e, 0x0b)}
	default:
		return palette{badge: rgb(0x05, 0x96, 0x69), label: colWhite, accent: rgb(0x10, 0xb9, 0x81)}
	}
}

func rgb(r, g, b uint8) color.RGBA { return color.RGBA{R: r, G: g, B: b, A: 0xff} }

// cardLayout holds the wrapped text of a card and its height at scale 1.
type cardLayout struct {
	level   model.RiskLevel
	badge   string
	warning []string
	actions [][]string
	date    string
	boxH    int
	height  int
}

func layoutCard(r *model.RiskResult, now time.Time) cardLayout {
	textCols := (cardWidth - 2*pad) / glyphW
	actionCols := (cardWidth-2*pad-2*boxPad)/glyphW - 2

	l := cardLayout{
		level:   r.Level,
		badge:   string(r.Level) + " RISK",
		warning: wrap(asciiFold(r.Warning), textCols),
		date:    now.Format("Jan 2, 2006"),
	}
	actionLines := 0
	for _, a := range r.SafeActions {
		lines := wrap(asciiFold(a), actionCols)
		l.actions = append(l.actions, lines)
		actionLines += len(lines)
	}

	l.boxH = boxPad + lineHeight + 8 + actionLines*lineHeight + boxPad
	l.height = pad + badgeH + pad +
		len(l.warning)*lineHeight + pad +
		l.boxH + pad +
		16 + 13 + pad
	return l
}

// renderCard draws the verdict card at scale 1.
func renderCard(r *model.RiskResult, now time.Time) *image.RGBA {
	l := layoutCard(r, now)
	p := paletteFor(l.level)

	img := image.NewRGBA(image.Rect(0, 0, cardWidth, l.height))
	fill(img, img.Bounds(), colBackground)

	y := pad

	// Header: brand on the left, risk badge on the right.
	text(img, pad, y+18, "AEGIS SHARE", colWhite)
	bw := len(l.badge)*glyphW + 2*boxPad
	if bw < badgeMinW {
		bw = badgeMinW
	}
	badge := image.Rect(cardWidth-pad-bw, y, cardWidth-pad, y+badgeH)
	fill(img, badge, p.badge)
	text(img, badge.Min.X+(bw-len(l.badge)*glyphW)/2, y+18, l.badge, p.label)
	y += badgeH + pad

	for _, line := range l.warning {
		text(img, pad, y+13, line, colWhite)
		y += lineHeight
	}
	y += pad

	// Action plan box.
	fill(img, image.Rect(pad, y, cardWidth-pad, y+l.boxH), colBox)
	boxBottom := y + l.boxH
	y += boxPad
	text(img, pad+boxPad, y+13, "RECOMMENDED ACTIONS", colMuted)
	y += lineHeight + 8
	for _, lines := range l.actions {
		for i, line := range lines {
			if i == 0 {
				text(img, pad+boxPad, y+13, ">", p.accent)
			}
			text(img, pad+boxPad+2*glyphW, y+13, line, colText)
			y += lineHeight
		}
	}
	y = boxBottom + pad

	fill(img, image.Rect(pad, y, cardWidth-pad, y+1), colBox)
	y += 16
	text(img, pad, y+11, "Verified by Aegis Share", colFooter)
	text(img, cardWidth-pad-len(l.date)*glyphW, y+11, l.date, colFooter)

	return img
}

func fill(img draw.Image, r image.Rectangle, c color.Color) {
	draw.Draw(img, r, image.NewUniform(c), image.Point{}, draw.Src)
}

func text(img draw.Image, x, y int, s string, c color.Color) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(s)
}

// upscale enlarges src by an integer factor for a crisp high-density image.
func upscale(src *image.RGBA, scale int) *image.RGBA {
	if scale <= 1 {
		return src
	}
	b := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx()*scale, b.Dy()*scale))
	draw.NearestNeighbor.Scale(dst, dst.Bounds(), src, b, draw.Src, nil)
	return dst
}

// asciiFold maps s onto the glyphs Face7x13 has: diacritics are dropped,
// typographic punctuation is flattened and anything else outside ASCII
// becomes '?'.
func asciiFold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if folded, _, err := transform.String(t, s); err == nil {
		s = folded
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r < utf8.RuneSelf:
			return r
		case r == 'đ':
			return 'd'
		case r == 'Đ':
			return 'D'
		case r == '‘' || r == '’':
			return '\''
		case r == '“' || r == '”':
			return '"'
		case unicode.Is(unicode.Pd, r):
			return '-'
		case unicode.IsSpace(r):
			return ' '
		}
		return '?'
	}, s)
}

// wrap breaks s into lines of at most cols characters on word boundaries.
// Words longer than a line are split.
func wrap(s string, cols int) []string {
	if cols < 1 {
		cols = 1
	}
	var lines []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			lines = append(lines, cur.String())
			cur.Reset()
		}
	}
	for _, word := range strings.Fields(s) {
		for len([]rune(word)) > cols {
			flush()
			rs := []rune(word)
			lines = append(lines, string(rs[:cols]))
			word = string(rs[cols:])
		}
		n := len([]rune(word))
		switch {
		case cur.Len() == 0:
			cur.WriteString(word)
		case len([]rune(cur.String()))+1+n <= cols:
			cur.WriteByte(' ')
			cur.WriteString(word)
		default:
			flush()
			cur.WriteString(word)
		}
	}
	flush()
	return lines
}
