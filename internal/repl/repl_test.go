package repl

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"repertoire/internal/board"
	"repertoire/internal/core"
	"repertoire/internal/graph"
	"repertoire/internal/processor"
	"repertoire/internal/review"
	"repertoire/internal/rules"
	"repertoire/internal/service"
	"repertoire/internal/storage/storagetest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptReader struct {
	lines   []string
	prompts []string
	closed  bool
}

func (s *scriptReader) Readline() (string, error) {
	if len(s.lines) == 0 {
		return "", io.EOF
	}
	line := s.lines[0]
	s.lines = s.lines[1:]
	return line, nil
}

func (s *scriptReader) SetPrompt(p string) { s.prompts = append(s.prompts, p) }

func (s *scriptReader) Close() error {
	s.closed = true
	return nil
}

func newTestREPL(t *testing.T, lines ...string) (*REPL, *scriptReader, *bytes.Buffer, *service.Service) {
	t.Helper()
	s := storagetest.SQLite(t)
	g := graph.New(s, rules.Standard{}, nil, nil)
	_, err := g.EnsureRoot(context.Background())
	require.NoError(t, err)

	svc := service.New(g, review.NewScheduler(s, nil, nil, nil), time.Hour, nil, nil)
	in := &scriptReader{lines: lines}
	var out bytes.Buffer
	return New(processor.New(svc, nil), in, &out, false), in, &out, svc
}

func TestExploreAndTrain(t *testing.T) {
	r, in, out, svc := newTestREPL(t,
		"new black Sicilian",
		"use 0",
		"e2e4",
		"c7c5",
		"line",
		"undo",
		"line",
		"redo",
		"board",
		"train full",
		"moves",
		"c7c5",
		"q",
		"never read",
	)

	require.NoError(t, r.Run(context.Background()))
	text := out.String()

	assert.Contains(t, text, "Black:\n    0  Sicilian")
	assert.Contains(t, text, "e4 (e2e4) White")
	assert.Contains(t, text, "c5 (c7c5) Black")
	assert.Contains(t, text, "1. e2e4 c7c5")
	assert.Contains(t, text, "1. e2e4 (+1 to redo)")
	assert.Contains(t, text, "repertoire: c5 (c7c5)")
	assert.Contains(t, text, "rnbqkbnr", "board drawn from the initial ranks")
	assert.Contains(t, text, "Training Sicilian (full)")
	assert.Contains(t, text, "Black to move")
	assert.Contains(t, text, "Correct")
	assert.Contains(t, text, "Nothing left to review")
	assert.Contains(t, text, "Back to the explorer")

	assert.Equal(t, []string{"never read"}, in.lines)
	assert.True(t, in.closed)
	assert.Contains(t, in.prompts, "Sicilian 2/2 > ")
	assert.Contains(t, in.prompts, "Sicilian 1/2 > ")
	assert.Contains(t, in.prompts, "train full [Sicilian] > ")
	assert.Zero(t, svc.SessionCount(), "sessions are closed on exit")
}

func TestWrongAnswerAndReveal(t *testing.T) {
	r, _, out, _ := newTestREPL(t,
		"new white Italian",
		"use 0",
		"e2e4", "e7e5", "g1f3", "b8c6", "f1c4",
		"train full",
		"d2d4",
		"reveal",
	)

	require.NoError(t, r.Run(context.Background()))
	text := out.String()

	assert.Contains(t, text, "Wrong, expected e4 (e2e4)")
	assert.Contains(t, text, "Answer: Nf3 (g1f3)")
}

func TestErrors(t *testing.T) {
	r, _, out, _ := newTestREPL(t,
		"e2e4",
		"frobnicate",
		"use x",
		"train",
		"reveal",
		"new purple Thing",
		"undo",
	)

	require.NoError(t, r.Run(context.Background()))
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")

	var errs []string
	for _, l := range lines {
		if strings.HasPrefix(l, "Error: ") {
			errs = append(errs, l)
		}
	}
	require.Len(t, errs, 7)
	assert.Contains(t, errs[1], "Unknown command: frobnicate")
	assert.Contains(t, errs[2], `invalid opening id "x"`)
	assert.Contains(t, errs[3], "select an opening first")
	assert.Contains(t, errs[4], "no training in progress")
}

func TestRemoveOpeningDuringTraining(t *testing.T) {
	r, _, out, svc := newTestREPL(t,
		"new white Scotch",
		"use 0",
		"e2e4",
		"train random",
		"rm 0",
		"ls",
	)

	require.NoError(t, r.Run(context.Background()))
	text := out.String()
	assert.Contains(t, text, "Opening 0 removed")
	assert.Contains(t, text, "No openings.")
	assert.Nil(t, r.training)
	assert.Zero(t, svc.SessionCount())
}

func TestRenderBoard(t *testing.T) {
	b, err := board.ParseFEN("rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b KQkq e3 0 1")
	require.NoError(t, err)

	var plain bytes.Buffer
	painter{}.renderBoard(&plain, b.ToASCII(core.ColorWhite))
	assert.Equal(t, b.ToASCII(core.ColorWhite)+"\n", plain.String())

	var colored bytes.Buffer
	painter{enabled: true}.renderBoard(&colored, b.ToASCII(core.ColorBlack))
	assert.Contains(t, colored.String(), Blue+"P"+Reset)
	assert.Contains(t, colored.String(), Red+"k"+Reset)
	assert.Contains(t, colored.String(), Cyan+"h"+Reset)
}

func TestPrompt(t *testing.T) {
	assert.Equal(t, "repertoire > ", painter{}.prompt("repertoire"))
	assert.Equal(t, Yellow+"x > "+Reset, painter{enabled: true}.prompt("x"))
	assert.Equal(t, "White", painter{}.side("w"))
	assert.Equal(t, "Black", painter{}.side("black"))
}
