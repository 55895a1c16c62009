package renderer

import (
	"image"
	"image/color"

	"github.com/devblok/roast/core"
	"github.com/devblok/roast/gfx"
	"github.com/devblok/roast/model"
	glm "github.com/go-gl/mathgl/mgl32"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// guiDepth keeps GUI quads inside the orthographic depth range.
const guiDepth = -0.5

// The atlas holds the printable ASCII glyphs of labelFace in one row.
const (
	firstGlyph = ' '
	lastGlyph  = '~'
	glyphCount = lastGlyph - firstGlyph + 1
)

var labelFace = basicfont.Face7x13

// Widget is anything the GUI can paint and a Panel can lay out.
type Widget interface {
	// Size is the area the widget covers, in surface pixels.
	Size() (width, height float32)

	at(x, y float32) Widget
}

// Rect is a filled rectangle in surface pixels, origin at the top left.
type Rect struct {
	X, Y, Width, Height float32
	Color               glm.Vec4
}

// Size implements Widget
func (r Rect) Size() (float32, float32) {
	return r.Width, r.Height
}

func (r Rect) at(x, y float32) Widget {
	r.X, r.Y = x, y
	return r
}

// Label is a single line of text with its top left corner at X, Y. A zero
// Color paints white text, a Background with any alpha fills the area
// behind the text first.
type Label struct {
	X, Y       float32
	Text       string
	Color      glm.Vec4
	Background glm.Vec4
	// Scale multiplies the 7x13 pixel glyphs, zero means 1.
	Scale float32
}

func (l Label) scale() float32 {
	if l.Scale <= 0 {
		return 1
	}
	return l.Scale
}

// Size implements Widget
func (l Label) Size() (float32, float32) {
	s := l.scale()
	width := font.MeasureString(labelFace, l.Text).Ceil()
	return float32(width) * s, float32(labelFace.Height) * s
}

func (l Label) at(x, y float32) Widget {
	l.X, l.Y = x, y
	return l
}

// Direction is how a Panel places its items.
type Direction int

// Directions of a panel.
const (
	// Vertical stacks items top to bottom.
	Vertical Direction = iota
	// Horizontal puts items in a row from the left edge.
	Horizontal
	// HorizontalRight puts items in a row from the right edge, the first
	// item rightmost.
	HorizontalRight
)

// Panel groups widgets inside Bounds. The positions of the items are set by
// the panel, and a Bounds colour with any alpha is painted behind them.
// Panels nest; items are not clipped to the bounds.
type Panel struct {
	Bounds    Rect
	Direction Direction
	Padding   float32
	Spacing   float32
	Items     []Widget
}

// Size implements Widget
func (p Panel) Size() (float32, float32) {
	return p.Bounds.Size()
}

func (p Panel) at(x, y float32) Widget {
	p.Bounds.X, p.Bounds.Y = x, y
	return p
}

// Arrange returns the items moved to their place inside the panel.
func (p Panel) Arrange() []Widget {
	placed := make([]Widget, 0, len(p.Items))
	top := p.Bounds.Y + p.Padding
	left := p.Bounds.X + p.Padding
	right := p.Bounds.X + p.Bounds.Width - p.Padding
	for _, item := range p.Items {
		w, h := item.Size()
		switch p.Direction {
		case Horizontal:
			placed = append(placed, item.at(left, top))
			left += w + p.Spacing
		case HorizontalRight:
			right -= w
			placed = append(placed, item.at(right, top))
			right -= p.Spacing
		default:
			placed = append(placed, item.at(left, top))
			top += h + p.Spacing
		}
	}
	return placed
}

// glyphAtlas draws every printable ASCII glyph in white, one cell of
// labelFace.Advance pixels each.
func glyphAtlas() *image.RGBA {
	atlas := image.NewRGBA(image.Rect(0, 0, glyphCount*labelFace.Advance, labelFace.Height))
	glyphs := make([]rune, 0, glyphCount)
	for r := rune(firstGlyph); r <= lastGlyph; r++ {
		glyphs = append(glyphs, r)
	}
	d := font.Drawer{
		Dst:  atlas,
		Src:  image.White,
		Face: labelFace,
		Dot:  fixed.P(0, labelFace.Ascent),
	}
	d.DrawString(string(glyphs))
	return atlas
}

// GlyphCell is the atlas cell painted for r. Runes outside printable ASCII
// are painted as '?'.
func GlyphCell(r rune) int {
	if r < firstGlyph || r > lastGlyph {
		r = '?'
	}
	return int(r - firstGlyph)
}

// GlyphOffset is the texture offset selecting the cell of r.
func GlyphOffset(r rune) glm.Vec4 {
	return glm.Vec4{float32(GlyphCell(r)) / glyphCount, 0, 0, 0}
}

// NewImmediateGUI creates a painter for flat coloured rectangles and text.
func NewImmediateGUI(backend core.Backend) (*ImmediateGUI, error) {
	white := glm.Vec4{1, 1, 1, 1}
	quad, err := backend.CreateGeometry([]model.Vertex{
		{Pos: glm.Vec3{0, 0, 0}, ColorTex: white},
		{Pos: glm.Vec3{1, 0, 0}, ColorTex: white},
		{Pos: glm.Vec3{1, 1, 0}, ColorTex: white},
		{Pos: glm.Vec3{0, 1, 0}, ColorTex: white},
	}, []uint32{0, 1, 2, 2, 3, 0})
	if err != nil {
		return nil, err
	}

	// UVs cover one atlas cell, the push constants move them to a glyph
	cell := float32(1) / glyphCount
	glyph, err := backend.CreateGeometry([]model.Vertex{
		{Pos: glm.Vec3{0, 0, 0}, ColorTex: glm.Vec4{0, 0, 0, 0}},
		{Pos: glm.Vec3{1, 0, 0}, ColorTex: glm.Vec4{cell, 0, 0, 0}},
		{Pos: glm.Vec3{1, 1, 0}, ColorTex: glm.Vec4{cell, 1, 0, 0}},
		{Pos: glm.Vec3{0, 1, 0}, ColorTex: glm.Vec4{0, 1, 0, 0}},
	}, []uint32{0, 1, 2, 2, 3, 0})
	if err != nil {
		quad.Release()
		return nil, err
	}

	pixel := image.NewRGBA(image.Rect(0, 0, 1, 1))
	pixel.SetRGBA(0, 0, color.RGBA{R: 255, G: 255, B: 255, A: 255})
	blank, err := backend.CreateTexture(pixel, model.SamplingPixel, false)
	if err != nil {
		quad.Release()
		glyph.Release()
		return nil, err
	}

	atlas, err := backend.CreateTexture(glyphAtlas(), model.SamplingPixel, false)
	if err != nil {
		quad.Release()
		glyph.Release()
		blank.Release()
		return nil, err
	}

	return &ImmediateGUI{
		quad:  quad,
		glyph: glyph,
		white: blank,
		atlas: atlas,
	}, nil
}

// ImmediateGUI collects widgets between BeginFrame and Paint. Anything
// not added again after BeginFrame is gone.
type ImmediateGUI struct {
	quad          gfx.Geometry
	glyph         gfx.Geometry
	white         gfx.Texture
	atlas         gfx.Texture
	widgets       []Widget
	width, height uint32
}

// BeginFrame implements GUIPainter
func (g *ImmediateGUI) BeginFrame() {
	g.widgets = g.widgets[:0]
}

// Add queues a widget for the current frame. Widgets are painted in the
// order they were added.
func (g *ImmediateGUI) Add(w Widget) {
	g.widgets = append(g.widgets, w)
}

// CentralPanel queues a panel covering the whole surface.
func (g *ImmediateGUI) CentralPanel(direction Direction, padding float32, items ...Widget) {
	g.Add(Panel{
		Bounds:    Rect{Width: float32(g.width), Height: float32(g.height)},
		Direction: direction,
		Padding:   padding,
		Spacing:   padding,
		Items:     items,
	})
}

// Len is the number of widgets queued.
func (g *ImmediateGUI) Len() int {
	return len(g.widgets)
}

// Resize implements GUIPainter
func (g *ImmediateGUI) Resize(width, height uint32) {
	g.width, g.height = width, height
}

// Size is the surface size as of the last resize.
func (g *ImmediateGUI) Size() (uint32, uint32) {
	return g.width, g.height
}

// Paint implements GUIPainter
func (g *ImmediateGUI) Paint(frame core.Frame) error {
	p := &guiPainter{gui: g, frame: frame}
	for _, w := range g.widgets {
		if err := p.paint(w); err != nil {
			return err
		}
	}
	return nil
}

// Release frees the GPU resources of the painter.
func (g *ImmediateGUI) Release() {
	g.quad.Release()
	g.glyph.Release()
	g.white.Release()
	g.atlas.Release()
}

type guiPainter struct {
	gui   *ImmediateGUI
	frame core.Frame
	bound gfx.Texture
}

func (p *guiPainter) bind(t gfx.Texture) error {
	if p.bound == t {
		return nil
	}
	if err := p.frame.BindTextures(t, t); err != nil {
		return err
	}
	p.bound = t
	return nil
}

func (p *guiPainter) paint(w Widget) error {
	switch w := w.(type) {
	case Rect:
		return p.rect(w)
	case Label:
		return p.label(w)
	case Panel:
		if w.Bounds.Color[3] > 0 {
			if err := p.rect(w.Bounds); err != nil {
				return err
			}
		}
		for _, item := range w.Arrange() {
			if err := p.paint(item); err != nil {
				return err
			}
		}
	}
	return nil
}

func (p *guiPainter) rect(r Rect) error {
	if err := p.bind(p.gui.white); err != nil {
		return err
	}
	return p.frame.Draw(p.gui.quad, model.PushConstants{
		Model:        glm.Translate3D(r.X, r.Y, guiDepth).Mul4(glm.Scale3D(r.Width, r.Height, 1)),
		OverlayColor: r.Color,
		Opacity:      1,
		VertexType:   model.VertexTypeColor,
	})
}

func (p *guiPainter) label(l Label) error {
	if l.Background[3] > 0 {
		w, h := l.Size()
		if err := p.rect(Rect{X: l.X, Y: l.Y, Width: w, Height: h, Color: l.Background}); err != nil {
			return err
		}
	}

	textColor := l.Color
	if textColor == (glm.Vec4{}) {
		textColor = glm.Vec4{1, 1, 1, 1}
	}
	s := l.scale()
	advance := float32(labelFace.Advance) * s
	cell := glm.Scale3D(advance, float32(labelFace.Height)*s, 1)

	x := l.X
	for _, r := range l.Text {
		if r != ' ' {
			if err := p.bind(p.gui.atlas); err != nil {
				return err
			}
			if err := p.frame.Draw(p.gui.glyph, model.PushConstants{
				Model:        glm.Translate3D(x, l.Y, guiDepth).Mul4(cell),
				TexOffsets:   GlyphOffset(r),
				OverlayColor: textColor,
				Opacity:      1,
				VertexType:   model.VertexTypeTex1,
			}); err != nil {
				return err
			}
		}
		x += advance
	}
	return nil
}
