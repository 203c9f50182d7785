// Package boardimg renders a position as a PNG board diagram, used by the
// HTTP board endpoint.
package boardimg

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	imagedraw "image/draw"
	"image/png"

	nchess "github.com/corentings/chess/v2"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Highlight marks the last move's squares.
type Highlight struct {
	From nchess.Square
	To   nchess.Square
}

type Options struct {
	Highlight *Highlight
}

const (
	squareSize   = 72
	boardSquares = 8
	boardSize    = squareSize * boardSquares
	margin       = 28
)

var (
	lightSquare    = color.RGBA{233, 207, 163, 255}
	darkSquare     = color.RGBA{187, 136, 96, 255}
	highlightFill  = color.NRGBA{R: 255, G: 228, B: 120, A: 140}
	backgroundFill = color.RGBA{40, 40, 48, 255}
	coordinateText = color.NRGBA{R: 236, G: 239, B: 255, A: 255}
)

type Renderer struct{}

func NewRenderer() *Renderer { return &Renderer{} }

// RenderFEN renders the position encoded in fen.
func (r *Renderer) RenderFEN(ctx context.Context, fen string, opts Options) ([]byte, error) {
	fenOpt, err := nchess.FEN(fen)
	if err != nil {
		return nil, fmt.Errorf("parse fen: %w", err)
	}
	game := nchess.NewGame(fenOpt)
	return r.RenderPNG(ctx, game.Position().Board(), opts)
}

func (r *Renderer) RenderPNG(ctx context.Context, board *nchess.Board, opts Options) ([]byte, error) {
	if board == nil {
		return nil, fmt.Errorf("board is nil")
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	totalWidth := boardSize + margin*2
	totalHeight := boardSize + margin*2
	origin := image.Point{X: margin, Y: margin}

	img := image.NewRGBA(image.Rect(0, 0, totalWidth, totalHeight))
	imagedraw.Draw(img, img.Bounds(), image.NewUniform(backgroundFill), image.Point{}, imagedraw.Src)

	drawSquares(img, origin)
	if opts.Highlight != nil {
		drawSquareOverlay(img, opts.Highlight.From, origin, highlightFill)
		drawSquareOverlay(img, opts.Highlight.To, origin, highlightFill)
	}
	if err := drawPieces(img, board, origin); err != nil {
		return nil, err
	}
	drawCoordinates(img, origin)

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

var (
	boardRanks = []nchess.Rank{nchess.Rank8, nchess.Rank7, nchess.Rank6, nchess.Rank5, nchess.Rank4, nchess.Rank3, nchess.Rank2, nchess.Rank1}
	boardFiles = []nchess.File{nchess.FileA, nchess.FileB, nchess.FileC, nchess.FileD, nchess.FileE, nchess.FileF, nchess.FileG, nchess.FileH}
)

func drawSquares(dst imagedraw.Image, origin image.Point) {
	for row := range boardRanks {
		for col := range boardFiles {
			x := origin.X + col*squareSize
			y := origin.Y + row*squareSize
			clr := lightSquare
			if (row+col)%2 == 1 {
				clr = darkSquare
			}
			imagedraw.Draw(dst, image.Rect(x, y, x+squareSize, y+squareSize), image.NewUniform(clr), image.Point{}, imagedraw.Src)
		}
	}
}

func drawPieces(dst imagedraw.Image, board *nchess.Board, origin image.Point) error {
	boardMap := board.SquareMap()
	for row, rank := range boardRanks {
		for col, file := range boardFiles {
			sq := nchess.NewSquare(file, rank)
			piece := boardMap[sq]
			if piece == nchess.NoPiece {
				continue
			}
			img, err := renderPieceImage(piece, squareSize)
			if err != nil {
				return err
			}
			x := origin.X + col*squareSize
			y := origin.Y + row*squareSize
			imagedraw.Draw(dst, image.Rect(x, y, x+squareSize, y+squareSize), img, image.Point{}, imagedraw.Over)
		}
	}
	return nil
}

func drawSquareOverlay(img *image.RGBA, sq nchess.Square, origin image.Point, clr color.Color) {
	col := int(sq.File())
	row := 7 - int(sq.Rank())
	x := origin.X + col*squareSize
	y := origin.Y + row*squareSize
	imagedraw.Draw(img, image.Rect(x, y, x+squareSize, y+squareSize), image.NewUniform(clr), image.Point{}, imagedraw.Over)
}

// SquareFromCoord parses a coordinate like "e4".
func SquareFromCoord(s string) (nchess.Square, bool) {
	if len(s) != 2 || s[0] < 'a' || s[0] > 'h' || s[1] < '1' || s[1] > '8' {
		return nchess.NoSquare, false
	}
	return nchess.NewSquare(nchess.File(s[0]-'a'), nchess.Rank(s[1]-'1')), true
}

func drawCoordinates(img *image.RGBA, origin image.Point) {
	d := font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(coordinateText),
		Face: basicfont.Face7x13,
	}

	for col := 0; col < boardSquares; col++ {
		label := string(rune('a' + col))
		x := origin.X + col*squareSize + squareSize/2 - 3
		y := origin.Y + boardSize + 18
		d.Dot = fixed.P(x, y)
		d.DrawString(label)
	}
	for row := 0; row < boardSquares; row++ {
		label := string(rune('8' - row))
		x := origin.X - 16
		y := origin.Y + row*squareSize + squareSize/2 + 4
		d.Dot = fixed.P(x, y)
		d.DrawString(label)
	}
}
