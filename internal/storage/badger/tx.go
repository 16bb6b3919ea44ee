package badger

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"repertoire/internal/core"
	"repertoire/internal/storage"

	"github.com/dgraph-io/badger/v4"
)

type tx struct {
	txn     *badger.Txn
	moveSeq *badger.Sequence
}

var _ storage.Tx = (*tx)(nil)

func storeErr(op string, err error) error {
	if errors.Is(err, badger.ErrKeyNotFound) {
		return fmt.Errorf("%s: %w", op, core.ErrNotFound)
	}
	return fmt.Errorf("%s: %w: %w", op, core.ErrStoreFailure, err)
}

func (t *tx) getJSON(key []byte, v any) error {
	item, err := t.txn.Get(key)
	if err != nil {
		return err
	}
	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, v)
	})
}

func (t *tx) setJSON(key []byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return t.txn.Set(key, data)
}

func (t *tx) getID(key []byte) (int64, error) {
	item, err := t.txn.Get(key)
	if err != nil {
		return 0, err
	}
	var id int64
	err = item.Value(func(val []byte) error {
		id, err = strconv.ParseInt(string(val), 10, 64)
		return err
	})
	return id, err
}

func (t *tx) maxID(prefix string) (int64, bool, error) {
	opts := badger.DefaultIteratorOptions
	opts.Reverse = true
	opts.PrefetchValues = false
	opts.Prefix = []byte(prefix)
	it := t.txn.NewIterator(opts)
	defer it.Close()

	it.Seek(prefixEnd(opts.Prefix))
	if !it.ValidForPrefix(opts.Prefix) {
		return 0, false, nil
	}
	key := string(it.Item().Key())
	id, err := strconv.ParseInt(strings.TrimPrefix(key, prefix), 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("max id: %w: malformed key %q", core.ErrIntegrity, key)
	}
	return id, true, nil
}

// edgeKeys lists "<src>/<notation>" suffixes of every key under prefix
func (t *tx) edgeKeys(prefix []byte) ([]string, error) {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	opts.Prefix = prefix
	it := t.txn.NewIterator(opts)
	defer it.Close()

	var suffixes []string
	for it.Rewind(); it.Valid(); it.Next() {
		suffixes = append(suffixes, strings.TrimPrefix(string(it.Item().Key()), string(prefix)))
	}
	return suffixes, nil
}

// Positions

func (t *tx) PositionByState(state string) (core.Position, error) {
	id, err := t.getID(positionStateKey(state))
	if err != nil {
		return core.Position{}, storeErr("position by state", err)
	}
	return t.PositionByID(id)
}

func (t *tx) PositionByID(id int64) (core.Position, error) {
	var p core.Position
	if err := t.getJSON(positionIDKey(id), &p); err != nil {
		return p, storeErr(fmt.Sprintf("position %d", id), err)
	}
	return p, nil
}

func (t *tx) PositionsByIDs(ids []int64) ([]core.Position, error) {
	sorted := slices.Clone(ids)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)

	var positions []core.Position
	for _, id := range sorted {
		p, err := t.PositionByID(id)
		if errors.Is(err, core.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		positions = append(positions, p)
	}
	return positions, nil
}

func (t *tx) MaxPositionID() (int64, bool, error) {
	return t.maxID(prefixPositionID)
}

func (t *tx) InsertPosition(p core.Position) error {
	if err := storage.Validate(p); err != nil {
		return err
	}
	if _, err := t.txn.Get(positionStateKey(p.State)); err == nil {
		return fmt.Errorf("insert position: %w: state already stored", core.ErrIntegrity)
	}
	if err := t.setJSON(positionIDKey(p.ID), p); err != nil {
		return storeErr("insert position", err)
	}
	if err := t.txn.Set(positionStateKey(p.State), []byte(strconv.FormatInt(p.ID, 10))); err != nil {
		return storeErr("insert position", err)
	}
	return nil
}

func (t *tx) DeletePosition(id int64) error {
	p, err := t.PositionByID(id)
	if err != nil {
		return err
	}
	if err := t.txn.Delete(positionIDKey(id)); err != nil {
		return storeErr("delete position", err)
	}
	if err := t.txn.Delete(positionStateKey(p.State)); err != nil {
		return storeErr("delete position", err)
	}
	return nil
}

// Moves

func (t *tx) Move(sourceID int64, notation string) (core.Move, error) {
	var m core.Move
	if err := t.getJSON(moveKey(sourceID, notation), &m); err != nil {
		return m, storeErr(fmt.Sprintf("move (%d, %s)", sourceID, notation), err)
	}
	return m, nil
}

func (t *tx) MovesFrom(sourceID int64) ([]core.Move, error) {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = movesFromPrefix(sourceID)
	it := t.txn.NewIterator(opts)
	defer it.Close()

	var moves []core.Move
	for it.Rewind(); it.Valid(); it.Next() {
		var m core.Move
		err := it.Item().Value(func(val []byte) error {
			return json.Unmarshal(val, &m)
		})
		if err != nil {
			return nil, storeErr("moves from", err)
		}
		moves = append(moves, m)
	}
	sortByCreation(moves)
	return moves, nil
}

func (t *tx) CountMovesInto(destID int64) (int, error) {
	return countPrefix(t.txn, string(intoPrefix(destID))), nil
}

func (t *tx) MovesByOpening(openingID int64) ([]core.Move, error) {
	suffixes, err := t.edgeKeys(ownPrefix(openingID))
	if err != nil {
		return nil, storeErr("moves by opening", err)
	}

	moves := make([]core.Move, 0, len(suffixes))
	for _, s := range suffixes {
		src, notation, err := parseEdgeSuffix(s)
		if err != nil {
			return nil, fmt.Errorf("moves by opening: %w: %v", core.ErrIntegrity, err)
		}
		m, err := t.Move(src, notation)
		if errors.Is(err, core.ErrNotFound) {
			return nil, fmt.Errorf("moves by opening: %w: dangling ownership %s", core.ErrIntegrity, s)
		}
		if err != nil {
			return nil, err
		}
		moves = append(moves, m)
	}
	sortByCreation(moves)
	return moves, nil
}

func sortByCreation(moves []core.Move) {
	slices.SortFunc(moves, func(a, b core.Move) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		default:
			return 0
		}
	})
}

func (t *tx) InsertMove(m core.Move) (core.Move, error) {
	if err := storage.Validate(m); err != nil {
		return m, err
	}
	if _, err := t.txn.Get(moveKey(m.SourceID, m.Notation)); err == nil {
		return m, fmt.Errorf("insert move: %w: (%d, %s) already stored", core.ErrIntegrity, m.SourceID, m.Notation)
	}

	seq, err := t.moveSeq.Next()
	if err != nil {
		return m, storeErr("move sequence", err)
	}
	m = m.Clone()
	m.ID = int64(seq) + 1
	slices.Sort(m.Openings)
	m.Openings = slices.Compact(m.Openings)

	if err := t.setJSON(moveKey(m.SourceID, m.Notation), m); err != nil {
		return m, storeErr("insert move", err)
	}
	if err := t.txn.Set(intoKey(m.DestID, m.SourceID, m.Notation), nil); err != nil {
		return m, storeErr("insert move", err)
	}
	for _, owner := range m.Openings {
		if err := t.txn.Set(ownKey(owner, m.SourceID, m.Notation), nil); err != nil {
			return m, storeErr("insert move", err)
		}
	}
	return m, nil
}

func (t *tx) AddMoveOpening(sourceID int64, notation string, openingID int64) error {
	m, err := t.Move(sourceID, notation)
	if err != nil {
		return err
	}
	if m.HasOpening(openingID) {
		return nil
	}
	m.Openings = append(m.Openings, openingID)
	slices.Sort(m.Openings)

	if err := t.setJSON(moveKey(sourceID, notation), m); err != nil {
		return storeErr("add move opening", err)
	}
	if err := t.txn.Set(ownKey(openingID, sourceID, notation), nil); err != nil {
		return storeErr("add move opening", err)
	}
	return nil
}

func (t *tx) RemoveMoveOpening(sourceID int64, notation string, openingID int64) error {
	m, err := t.Move(sourceID, notation)
	if err != nil {
		return err
	}
	m.Openings = slices.DeleteFunc(m.Openings, func(id int64) bool { return id == openingID })

	if err := t.setJSON(moveKey(sourceID, notation), m); err != nil {
		return storeErr("remove move opening", err)
	}
	if err := t.txn.Delete(ownKey(openingID, sourceID, notation)); err != nil {
		return storeErr("remove move opening", err)
	}
	return nil
}

func (t *tx) UpdateMoveReview(sourceID int64, notation string, r core.Review) error {
	if err := storage.Validate(r); err != nil {
		return err
	}
	m, err := t.Move(sourceID, notation)
	if err != nil {
		return err
	}
	m.Review = r
	if err := t.setJSON(moveKey(sourceID, notation), m); err != nil {
		return storeErr("update review", err)
	}
	return nil
}

func (t *tx) DeleteMove(sourceID int64, notation string) error {
	m, err := t.Move(sourceID, notation)
	if err != nil {
		return err
	}

	keys := [][]byte{moveKey(sourceID, notation), intoKey(m.DestID, sourceID, notation)}
	for _, owner := range m.Openings {
		keys = append(keys, ownKey(owner, sourceID, notation))
	}
	for _, k := range keys {
		if err := t.txn.Delete(k); err != nil {
			return storeErr("delete move", err)
		}
	}
	return nil
}

// Openings

func (t *tx) OpeningByID(id int64) (core.Opening, error) {
	var o core.Opening
	if err := t.getJSON(openingIDKey(id), &o); err != nil {
		return o, storeErr(fmt.Sprintf("opening %d", id), err)
	}
	return o, nil
}

func (t *tx) OpeningByName(name string, color core.Color) (core.Opening, error) {
	id, err := t.getID(openingNameKey(color.String(), name))
	if err != nil {
		return core.Opening{}, storeErr(fmt.Sprintf("opening %q", name), err)
	}
	return t.OpeningByID(id)
}

func (t *tx) Openings() ([]core.Opening, error) {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = []byte(prefixOpeningID)
	it := t.txn.NewIterator(opts)
	defer it.Close()

	var openings []core.Opening
	for it.Rewind(); it.Valid(); it.Next() {
		var o core.Opening
		err := it.Item().Value(func(val []byte) error {
			return json.Unmarshal(val, &o)
		})
		if err != nil {
			return nil, storeErr("openings", err)
		}
		openings = append(openings, o)
	}
	return openings, nil
}

func (t *tx) MaxOpeningID() (int64, bool, error) {
	return t.maxID(prefixOpeningID)
}

func (t *tx) InsertOpening(o core.Opening) error {
	if err := storage.Validate(o); err != nil {
		return err
	}
	nameKey := openingNameKey(o.Color.String(), o.Name)
	if _, err := t.txn.Get(nameKey); err == nil {
		return fmt.Errorf("insert opening: %w: %q already stored", core.ErrIntegrity, o.Name)
	}
	if err := t.setJSON(openingIDKey(o.ID), o); err != nil {
		return storeErr("insert opening", err)
	}
	if err := t.txn.Set(nameKey, []byte(strconv.FormatInt(o.ID, 10))); err != nil {
		return storeErr("insert opening", err)
	}
	return nil
}

func (t *tx) DeleteOpening(id int64) error {
	o, err := t.OpeningByID(id)
	if err != nil {
		return err
	}
	if err := t.txn.Delete(openingIDKey(id)); err != nil {
		return storeErr("delete opening", err)
	}
	if err := t.txn.Delete(openingNameKey(o.Color.String(), o.Name)); err != nil {
		return storeErr("delete opening", err)
	}
	return nil
}
