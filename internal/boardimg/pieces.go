package boardimg

import (
	"bytes"
	"embed"
	"fmt"
	"image"
	"sync"

	nchess "github.com/corentings/chess/v2"
	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
)

//go:embed assets/pieces/*.svg
var pieceFS embed.FS

type pieceKey struct {
	piece nchess.Piece
	size  int
}

// pieceSet rasterizes the embedded SVG piece art on demand and keeps
// the bitmaps per requested size.
type pieceSet struct {
	mu    sync.RWMutex
	cache map[pieceKey]image.Image
}

func newPieceSet() *pieceSet {
	return &pieceSet{cache: make(map[pieceKey]image.Image)}
}

func (s *pieceSet) image(piece nchess.Piece, size int) (image.Image, error) {
	key := pieceKey{piece: piece, size: size}
	s.mu.RLock()
	sprite, ok := s.cache[key]
	s.mu.RUnlock()
	if ok {
		return sprite, nil
	}

	name := assetName(piece)
	data, err := pieceFS.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("read piece asset %s: %w", name, err)
	}
	icon, err := oksvg.ReadIconStream(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parse piece asset %s: %w", name, err)
	}
	icon.SetTarget(0, 0, float64(size), float64(size))

	img := image.NewRGBA(image.Rect(0, 0, size, size))
	scanner := rasterx.NewScannerGV(size, size, img, img.Bounds())
	icon.Draw(rasterx.NewDasher(size, size, scanner), 1.0)

	s.mu.Lock()
	s.cache[key] = img
	s.mu.Unlock()
	return img, nil
}

func assetName(piece nchess.Piece) string {
	side := "b"
	if piece.Color() == nchess.White {
		side = "w"
	}
	var kind string
	switch piece.Type() {
	case nchess.King:
		kind = "K"
	case nchess.Queen:
		kind = "Q"
	case nchess.Rook:
		kind = "R"
	case nchess.Bishop:
		kind = "B"
	case nchess.Knight:
		kind = "N"
	case nchess.Pawn:
		kind = "P"
	}
	return "assets/pieces/" + side + kind + ".svg"
}
