// Package locator tags building bounds with H3 cells.
package locator

import (
	"fmt"

	"github.com/paulmach/orb"
	h3 "github.com/uber/h3-go/v4"
)

// DefaultResolution is roughly city-block sized.
const DefaultResolution = 9

// CellFor returns the H3 cell containing the centre of b.
func CellFor(b orb.Bound, res int) (string, error) {
	if err := validateRes(res); err != nil {
		return "", err
	}
	c := b.Center()
	if c[1] < -90 || c[1] > 90 || c[0] < -180 || c[0] > 180 {
		return "", fmt.Errorf("centre %v outside EPSG:4326 range", c)
	}
	cell, err := h3.LatLngToCell(h3.LatLng{Lat: c[1], Lng: c[0]}, res)
	if err != nil {
		return "", fmt.Errorf("h3 cell: %w", err)
	}
	return cell.String(), nil
}

// ToParent coarsens a cell, e.g. to group buildings by district.
func ToParent(cell string, parentRes int) (string, error) {
	if err := validateRes(parentRes); err != nil {
		return "", err
	}
	var c h3.Cell
	if err := c.UnmarshalText([]byte(cell)); err != nil {
		return "", fmt.Errorf("parse cell: %w", err)
	}
	if !c.IsValid() {
		return "", fmt.Errorf("invalid h3 cell %q", cell)
	}
	curRes := c.Resolution()
	if parentRes > curRes {
		return "", fmt.Errorf("parentRes %d must be <= cell resolution %d", parentRes, curRes)
	}
	if parentRes == curRes {
		return cell, nil
	}
	p, err := c.Parent(parentRes)
	if err != nil {
		return "", fmt.Errorf("h3 parent: %w", err)
	}
	return p.String(), nil
}

func validateRes(res int) error {
	if res < 0 || res > 15 {
		return fmt.Errorf("invalid H3 resolution %d (must be 0..15)", res)
	}
	return nil
}
