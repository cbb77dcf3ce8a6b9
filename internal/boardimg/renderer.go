package boardimg

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	imagedraw "image/draw"
	"image/png"
	"math"

	nchess "github.com/corentings/chess/v2"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const (
	DefaultSquareSize = 64
	boardFiles        = 8
)

var (
	backgroundColor = color.RGBA{R: 44, G: 40, B: 36, A: 255}
	lightSquare     = color.RGBA{R: 240, G: 217, B: 181, A: 255}
	darkSquare      = color.RGBA{R: 181, G: 136, B: 99, A: 255}
	lastMoveTint    = color.NRGBA{R: 155, G: 199, B: 0, A: 105}
	arrowColor      = color.NRGBA{R: 21, G: 122, B: 72, A: 200}
	labelColor      = color.NRGBA{R: 213, G: 205, B: 193, A: 255}
)

// Move is a from/to square pair to mark on the rendered board.
type Move struct {
	From nchess.Square
	To   nchess.Square
}

type Options struct {
	// LastMove tints the departure and arrival squares.
	LastMove *Move
	// BestMove is drawn as an arrow over the pieces.
	BestMove *Move
}

type Renderer interface {
	RenderPNG(ctx context.Context, board *nchess.Board, opts Options) ([]byte, error)
}

type renderer struct {
	square int
	margin int
	pieces *pieceSet
}

type Option func(*renderer)

// WithSquareSize overrides the square edge length in pixels.
func WithSquareSize(px int) Option {
	return func(r *renderer) {
		if px > 0 {
			r.square = px
		}
	}
}

func New(opts ...Option) Renderer {
	r := &renderer{square: DefaultSquareSize, pieces: newPieceSet()}
	for _, opt := range opts {
		opt(r)
	}
	r.margin = r.square / 2
	return r
}

func (r *renderer) RenderPNG(ctx context.Context, board *nchess.Board, opts Options) ([]byte, error) {
	if board == nil {
		return nil, errors.New("board is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	side := r.square*boardFiles + r.margin*2
	origin := image.Pt(r.margin, r.margin)

	img := image.NewRGBA(image.Rect(0, 0, side, side))
	imagedraw.Draw(img, img.Bounds(), image.NewUniform(backgroundColor), image.Point{}, imagedraw.Src)

	r.drawSquares(img, origin)
	if opts.LastMove != nil {
		r.tintSquare(img, origin, opts.LastMove.From)
		r.tintSquare(img, origin, opts.LastMove.To)
	}
	if err := r.drawPieces(img, board, origin); err != nil {
		return nil, err
	}
	if opts.BestMove != nil && opts.BestMove.From != opts.BestMove.To {
		r.drawArrow(img, origin, opts.BestMove.From, opts.BestMove.To)
	}
	r.drawLabels(img, origin)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode board png: %w", err)
	}
	return buf.Bytes(), nil
}

func (r *renderer) drawSquares(img *image.RGBA, origin image.Point) {
	for rank := 0; rank < boardFiles; rank++ {
		for file := 0; file < boardFiles; file++ {
			sq := nchess.NewSquare(nchess.File(file), nchess.Rank(rank))
			clr := lightSquare
			if (file+rank)%2 == 0 {
				clr = darkSquare
			}
			imagedraw.Draw(img, r.squareRect(origin, sq), image.NewUniform(clr), image.Point{}, imagedraw.Src)
		}
	}
}

func (r *renderer) tintSquare(img *image.RGBA, origin image.Point, sq nchess.Square) {
	imagedraw.Draw(img, r.squareRect(origin, sq), image.NewUniform(lastMoveTint), image.Point{}, imagedraw.Over)
}

func (r *renderer) drawPieces(img *image.RGBA, board *nchess.Board, origin image.Point) error {
	for sq, piece := range board.SquareMap() {
		if piece == nchess.NoPiece {
			continue
		}
		sprite, err := r.pieces.image(piece, r.square)
		if err != nil {
			return err
		}
		imagedraw.Draw(img, r.squareRect(origin, sq), sprite, image.Point{}, imagedraw.Over)
	}
	return nil
}

// drawArrow paints the arrow on its own layer first so the shaft and
// the head overlap without double-blending, then composites the layer
// once.
func (r *renderer) drawArrow(img *image.RGBA, origin image.Point, from, to nchess.Square) {
	fromRect := r.squareRect(origin, from)
	toRect := r.squareRect(origin, to)
	sq := float64(r.square)
	start := pointF{float64(fromRect.Min.X) + sq/2, float64(fromRect.Min.Y) + sq/2}
	tip := pointF{float64(toRect.Min.X) + sq/2, float64(toRect.Min.Y) + sq/2}

	length := math.Hypot(tip.X-start.X, tip.Y-start.Y)
	if length == 0 {
		return
	}
	ux := (tip.X - start.X) / length
	uy := (tip.Y - start.Y) / length
	px, py := -uy, ux

	headLen := sq * 0.38
	if headLen > length*0.5 {
		headLen = length * 0.5
	}
	shaftHalf := sq * 0.11
	headHalf := sq * 0.24

	// keep the tail off the departure square's center
	tail := pointF{start.X + ux*sq*0.22, start.Y + uy*sq*0.22}
	neck := pointF{tip.X - ux*headLen, tip.Y - uy*headLen}

	layer := image.NewRGBA(img.Bounds())
	solid := color.RGBAModel.Convert(arrowColor).(color.RGBA)

	tailLeft := pointF{tail.X - px*shaftHalf, tail.Y - py*shaftHalf}
	tailRight := pointF{tail.X + px*shaftHalf, tail.Y + py*shaftHalf}
	neckLeft := pointF{neck.X - px*shaftHalf, neck.Y - py*shaftHalf}
	neckRight := pointF{neck.X + px*shaftHalf, neck.Y + py*shaftHalf}
	fillTriangle(layer, tailLeft, tailRight, neckRight, solid)
	fillTriangle(layer, tailLeft, neckRight, neckLeft, solid)
	fillTriangle(layer, tip,
		pointF{neck.X - px*headHalf, neck.Y - py*headHalf},
		pointF{neck.X + px*headHalf, neck.Y + py*headHalf},
		solid)

	imagedraw.Draw(img, img.Bounds(), layer, image.Point{}, imagedraw.Over)
}

func (r *renderer) drawLabels(img *image.RGBA, origin image.Point) {
	drawer := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(labelColor),
		Face: basicfont.Face7x13,
	}
	ascent := basicfont.Face7x13.Metrics().Ascent.Ceil()
	boardPx := r.square * boardFiles

	for rank := 0; rank < boardFiles; rank++ {
		label := nchess.Rank(rank).String()
		width := drawer.MeasureString(label).Round()
		centerY := origin.Y + (7-rank)*r.square + r.square/2
		drawer.Dot = fixed.P(origin.X-r.margin/2-width/2, centerY+ascent/2)
		drawer.DrawString(label)
	}
	for file := 0; file < boardFiles; file++ {
		label := nchess.File(file).String()
		width := drawer.MeasureString(label).Round()
		centerX := origin.X + file*r.square + r.square/2
		drawer.Dot = fixed.P(centerX-width/2, origin.Y+boardPx+r.margin/2+ascent/2)
		drawer.DrawString(label)
	}
}

// squareRect maps a square to pixels with rank 8 at the top.
func (r *renderer) squareRect(origin image.Point, sq nchess.Square) image.Rectangle {
	col := int(sq.File())
	row := 7 - int(sq.Rank())
	x := origin.X + col*r.square
	y := origin.Y + row*r.square
	return image.Rect(x, y, x+r.square, y+r.square)
}

type pointF struct {
	X float64
	Y float64
}

func fillTriangle(dst *image.RGBA, a, b, c pointF, clr color.RGBA) {
	bounds := dst.Bounds()
	minX := int(math.Floor(min(a.X, b.X, c.X)))
	maxX := int(math.Ceil(max(a.X, b.X, c.X)))
	minY := int(math.Floor(min(a.Y, b.Y, c.Y)))
	maxY := int(math.Ceil(max(a.Y, b.Y, c.Y)))
	minX = max(minX, bounds.Min.X)
	maxX = min(maxX, bounds.Max.X-1)
	minY = max(minY, bounds.Min.Y)
	maxY = min(maxY, bounds.Max.Y-1)

	for y := minY; y <= maxY; y++ {
		for x := minX; x <= maxX; x++ {
			cx := float64(x) + 0.5
			cy := float64(y) + 0.5
			d1 := edge(a, b, cx, cy)
			d2 := edge(b, c, cx, cy)
			d3 := edge(c, a, cx, cy)
			hasNeg := d1 < 0 || d2 < 0 || d3 < 0
			hasPos := d1 > 0 || d2 > 0 || d3 > 0
			if !(hasNeg && hasPos) {
				dst.SetRGBA(x, y, clr)
			}
		}
	}
}

func edge(p, q pointF, x, y float64) float64 {
	return (q.X-p.X)*(y-p.Y) - (q.Y-p.Y)*(x-p.X)
}
