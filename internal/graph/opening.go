package graph

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"repertoire/internal/core"
	"repertoire/internal/storage"
)

type OpeningsByColor struct {
	White []core.Opening `json:"white"`
	Black []core.Opening `json:"black"`
}

// DeclareOpening returns the opening with this name and color, creating it on
// first declaration. The bool reports whether it was created.
func (g *Graph) DeclareOpening(ctx context.Context, name string, color core.Color) (core.Opening, bool, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return core.Opening{}, false, fmt.Errorf("%w: opening name is empty", core.ErrMalformedInput)
	}
	if !color.Valid() {
		return core.Opening{}, false, fmt.Errorf("%w: opening color", core.ErrMalformedInput)
	}

	var o core.Opening
	created := false
	err := g.store.Update(ctx, func(tx storage.Tx) error {
		existing, err := tx.OpeningByName(name, color)
		if err == nil {
			o, created = existing, false
			return nil
		}
		if !errors.Is(err, core.ErrNotFound) {
			return err
		}

		max, ok, err := tx.MaxOpeningID()
		if err != nil {
			return err
		}
		id := int64(0)
		if ok {
			id = max + 1
		}

		o = core.Opening{ID: id, Name: name, Color: color}
		created = true
		return tx.InsertOpening(o)
	})
	if err != nil {
		return core.Opening{}, false, fmt.Errorf("declare opening %q: %w", name, err)
	}

	if created {
		g.logger.Info("opening created", "opening", o.ID, "name", o.Name, "color", o.Color.Name())
	}
	return o, created, nil
}

func (g *Graph) Opening(ctx context.Context, id int64) (core.Opening, error) {
	var o core.Opening
	err := g.store.View(ctx, func(tx storage.Tx) error {
		var err error
		o, err = tx.OpeningByID(id)
		return err
	})
	return o, err
}

func (g *Graph) Openings(ctx context.Context) ([]core.Opening, error) {
	var openings []core.Opening
	err := g.store.View(ctx, func(tx storage.Tx) error {
		var err error
		openings, err = tx.Openings()
		return err
	})
	return openings, err
}

func (g *Graph) OpeningsByColor(ctx context.Context) (OpeningsByColor, error) {
	openings, err := g.Openings(ctx)
	if err != nil {
		return OpeningsByColor{}, err
	}

	grouped := OpeningsByColor{White: []core.Opening{}, Black: []core.Opening{}}
	for _, o := range openings {
		if o.Color == core.ColorWhite {
			grouped.White = append(grouped.White, o)
		} else {
			grouped.Black = append(grouped.Black, o)
		}
	}
	return grouped, nil
}
