package badger

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dgraph-io/badger/v4"
)

// Key layout. Ids are zero padded so lexical order is numeric order.
//
//	pos/id/<id>                     -> Position JSON
//	pos/state/<fen>                 -> id
//	move/<src>/<notation>           -> Move JSON
//	into/<dst>/<src>/<notation>     -> inbound edge index
//	own/<opening>/<src>/<notation>  -> ownership index
//	open/id/<id>                    -> Opening JSON
//	open/name/<color>/<name>        -> id
//	log/<seq>                       -> ReviewRecord JSON
const (
	prefixPositionID    = "pos/id/"
	prefixPositionState = "pos/state/"
	prefixMove          = "move/"
	prefixInto          = "into/"
	prefixOwn           = "own/"
	prefixOpeningID     = "open/id/"
	prefixOpeningName   = "open/name/"
	prefixLog           = "log/"

	seqMoveKey = "seq/move"
	seqLogKey  = "seq/log"
)

func pad(id int64) string {
	return fmt.Sprintf("%020d", id)
}

func positionIDKey(id int64) []byte {
	return []byte(prefixPositionID + pad(id))
}

func positionStateKey(state string) []byte {
	return []byte(prefixPositionState + state)
}

func moveKey(src int64, notation string) []byte {
	return []byte(prefixMove + pad(src) + "/" + notation)
}

func movesFromPrefix(src int64) []byte {
	return []byte(prefixMove + pad(src) + "/")
}

func intoKey(dst, src int64, notation string) []byte {
	return []byte(prefixInto + pad(dst) + "/" + pad(src) + "/" + notation)
}

func intoPrefix(dst int64) []byte {
	return []byte(prefixInto + pad(dst) + "/")
}

func ownKey(opening, src int64, notation string) []byte {
	return []byte(prefixOwn + pad(opening) + "/" + pad(src) + "/" + notation)
}

func ownPrefix(opening int64) []byte {
	return []byte(prefixOwn + pad(opening) + "/")
}

func openingIDKey(id int64) []byte {
	return []byte(prefixOpeningID + pad(id))
}

func openingNameKey(color, name string) []byte {
	return []byte(prefixOpeningName + color + "/" + name)
}

func logKey(seq uint64) []byte {
	return []byte(fmt.Sprintf("%s%020d", prefixLog, seq))
}

// prefixEnd is the seek target for reverse iteration over a prefix
func prefixEnd(prefix []byte) []byte {
	end := make([]byte, len(prefix)+1)
	copy(end, prefix)
	end[len(prefix)] = 0xFF
	return end
}

// parseEdgeSuffix splits "<src>/<notation>"
func parseEdgeSuffix(s string) (int64, string, error) {
	srcPart, notation, ok := strings.Cut(s, "/")
	if !ok {
		return 0, "", fmt.Errorf("malformed edge key %q", s)
	}
	src, err := strconv.ParseInt(srcPart, 10, 64)
	if err != nil {
		return 0, "", fmt.Errorf("malformed edge key %q: %w", s, err)
	}
	return src, notation, nil
}

func countPrefix(txn *badger.Txn, prefix string) int {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	opts.Prefix = []byte(prefix)
	it := txn.NewIterator(opts)
	defer it.Close()

	n := 0
	for it.Rewind(); it.Valid(); it.Next() {
		n++
	}
	return n
}
