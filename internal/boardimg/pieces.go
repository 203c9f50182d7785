package boardimg

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"strings"
	"sync"

	nchess "github.com/corentings/chess/v2"
	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
)

// Pieces are drawn from generated SVG geometry in a 45x45 viewbox and
// rasterized once per (piece, size).

type pieceCacheKey struct {
	piece nchess.Piece
	size  int
}

var (
	pieceCache   = map[pieceCacheKey]image.Image{}
	pieceCacheMu sync.RWMutex
)

func renderPieceImage(piece nchess.Piece, size int) (image.Image, error) {
	key := pieceCacheKey{piece: piece, size: size}

	pieceCacheMu.RLock()
	if img, ok := pieceCache[key]; ok {
		pieceCacheMu.RUnlock()
		return img, nil
	}
	pieceCacheMu.RUnlock()

	icon, err := oksvg.ReadIconStream(strings.NewReader(pieceSVG(piece)))
	if err != nil {
		return nil, fmt.Errorf("parse piece svg: %w", err)
	}
	icon.SetTarget(0, 0, float64(size), float64(size))

	img := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.Transparent), image.Point{}, draw.Src)

	scanner := rasterx.NewScannerGV(size, size, img, img.Bounds())
	raster := rasterx.NewDasher(size, size, scanner)
	icon.Draw(raster, 1.0)

	pieceCacheMu.Lock()
	pieceCache[key] = img
	pieceCacheMu.Unlock()

	return img, nil
}

func pieceSVG(piece nchess.Piece) string {
	fill := "#f8f8f4"
	if piece.Color() == nchess.Black {
		fill = "#2b2b2b"
	}
	var b strings.Builder
	b.WriteString(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 45 45">`)
	b.WriteString(pieceBody(piece.Type(), fill))
	b.WriteString(`</svg>`)
	return b.String()
}

func pieceBody(t nchess.PieceType, fill string) string {
	attrs := fmt.Sprintf(`fill="%s" stroke="#101010" stroke-width="1.5"`, fill)
	switch t {
	case nchess.Pawn:
		return fmt.Sprintf(
			`<circle cx="22.5" cy="14" r="6" %[1]s/>`+
				`<polygon points="18,20 27,20 31,36 14,36" %[1]s/>`+
				`<rect x="12" y="36" width="21" height="4" rx="1" %[1]s/>`, attrs)
	case nchess.Rook:
		return fmt.Sprintf(
			`<rect x="14" y="8" width="5" height="7" %[1]s/>`+
				`<rect x="20" y="8" width="5" height="7" %[1]s/>`+
				`<rect x="26" y="8" width="5" height="7" %[1]s/>`+
				`<rect x="15" y="14" width="15" height="20" %[1]s/>`+
				`<rect x="12" y="34" width="21" height="6" rx="1" %[1]s/>`, attrs)
	case nchess.Knight:
		return fmt.Sprintf(
			`<polygon points="15,39 31,39 31,26 27,10 19,13 13,21 18,23 13,30" %[1]s/>`+
				`<circle cx="22" cy="15" r="1.4" fill="#101010"/>`+
				`<rect x="12" y="37" width="21" height="4" rx="1" %[1]s/>`, attrs)
	case nchess.Bishop:
		return fmt.Sprintf(
			`<circle cx="22.5" cy="8" r="3" %[1]s/>`+
				`<ellipse cx="22.5" cy="21" rx="7" ry="11" %[1]s/>`+
				`<rect x="13" y="34" width="19" height="5" rx="1" %[1]s/>`, attrs)
	case nchess.Queen:
		return fmt.Sprintf(
			`<polygon points="12,33 33,33 37,13 28,21 22.5,9 17,21 8,13" %[1]s/>`+
				`<circle cx="8" cy="12" r="2.2" %[1]s/>`+
				`<circle cx="22.5" cy="8" r="2.2" %[1]s/>`+
				`<circle cx="37" cy="12" r="2.2" %[1]s/>`+
				`<rect x="12" y="35" width="21" height="5" rx="1" %[1]s/>`, attrs)
	case nchess.King:
		return fmt.Sprintf(
			`<rect x="21" y="4" width="3" height="11" %[1]s/>`+
				`<rect x="17" y="7" width="11" height="3" %[1]s/>`+
				`<polygon points="13,36 32,36 34,19 22.5,25 11,19" %[1]s/>`+
				`<rect x="12" y="36" width="21" height="5" rx="1" %[1]s/>`, attrs)
	default:
		return ""
	}
}
