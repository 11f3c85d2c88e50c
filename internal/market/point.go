package market

import "fmt"

// Point is the exact location of a listing's container: one listing per point.
type Point struct {
	World   string
	X, Y, Z int
}

func (p Point) String() string {
	return fmt.Sprintf("%s:%d:%d:%d", p.World, p.X, p.Y, p.Z)
}

// Cell is the coarse spatial bucket used for neighborhood queries.
// 16x16 on the horizontal axes, matching the container grid.
type Cell struct {
	World string
	X, Z  int
}

func (p Point) Cell() Cell {
	return Cell{World: p.World, X: p.X >> 4, Z: p.Z >> 4}
}

func (c Cell) String() string {
	return fmt.Sprintf("%s:%d:%d", c.World, c.X, c.Z)
}
