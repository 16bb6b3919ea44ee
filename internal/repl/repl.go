// Package repl is the interactive terminal front end: a line editor driving
// an explorer session and, on demand, a training session.
package repl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"repertoire/internal/board"
	"repertoire/internal/core"
	"repertoire/internal/processor"
	"repertoire/internal/rules"

	"github.com/chzyer/readline"
)

// LineReader is the subset of *readline.Instance the loop needs
type LineReader interface {
	Readline() (string, error)
	SetPrompt(prompt string)
	Close() error
}

// Executor runs commands in process (*processor.Processor) or against a
// remote server (*client.Client)
type Executor interface {
	Execute(ctx context.Context, cmd processor.Command) processor.ProcessorResponse
}

type REPL struct {
	proc  Executor
	in    LineReader
	out   io.Writer
	paint painter

	explorer *core.ExplorerResponse
	training *core.CardResponse
}

func New(proc Executor, in LineReader, out io.Writer, color bool) *REPL {
	return &REPL{
		proc:  proc,
		in:    in,
		out:   out,
		paint: painter{enabled: color},
	}
}

// NewReadline opens a readline instance with a persistent history file
func NewReadline(historyFile string) (*readline.Instance, error) {
	return readline.NewEx(&readline.Config{
		Prompt:          "repertoire > ",
		HistoryFile:     historyFile,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
}

// Run starts an explorer session and reads commands until quit or EOF
func (r *REPL) Run(ctx context.Context) error {
	defer r.in.Close()
	defer r.closeSessions(ctx)

	var st core.ExplorerResponse
	if !r.exec(ctx, processor.NewCreateExplorerCommand(core.StartExplorerRequest{}), &st) {
		return errors.New("could not start explorer session")
	}
	r.explorer = &st

	fmt.Fprintln(r.out, r.paint.paint(Cyan, "Opening repertoire trainer. Type 'help' for commands."))

	for {
		r.in.SetPrompt(r.prompt())
		line, err := r.in.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			if line == "" {
				return nil
			}
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		if quit := r.Handle(ctx, line); quit {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

// Handle executes one input line and reports whether the loop should end
func (r *REPL) Handle(ctx context.Context, line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}
	cmd := strings.ToLower(fields[0])
	args := fields[1:]

	switch cmd {
	case "quit", "exit", "q":
		return true
	case "help", "?":
		r.help()
	case "openings", "ls":
		r.listOpenings(ctx)
	case "new":
		r.createOpening(ctx, args)
	case "rm", "remove":
		r.removeOpening(ctx, args)
	case "use":
		r.useOpening(ctx, args)
	case "board", "b":
		r.showBoard(ctx)
	case "moves", "m":
		r.showCandidates()
	case "line":
		r.showLine()
	case "undo", "u":
		r.navigate(ctx, processor.NewUndoMoveCommand(r.explorer.SessionID))
	case "redo", "r":
		r.navigate(ctx, processor.NewRedoMoveCommand(r.explorer.SessionID))
	case "del":
		r.navigate(ctx, processor.NewRemoveLastMoveCommand(r.explorer.SessionID))
	case "train":
		r.startTraining(ctx, args)
	case "reveal":
		r.answer(ctx, core.PerformanceRequest{Result: "wrong"})
	case "stop":
		r.stopTraining(ctx)
	default:
		move := strings.ToLower(cmd)
		if !rules.IsMoveSafe(move) {
			r.failf("Unknown command: %s (type 'help')", cmd)
			return false
		}
		if r.training != nil {
			r.answer(ctx, core.PerformanceRequest{Move: move})
		} else {
			r.navigate(ctx, processor.NewPushMoveCommand(r.explorer.SessionID, core.MoveRequest{Move: move}))
		}
	}
	return false
}

func (r *REPL) prompt() string {
	if r.training != nil {
		return r.paint.prompt(fmt.Sprintf("train %s [%s]", r.training.Mode, r.training.Opening.Name))
	}
	if r.explorer == nil || r.explorer.Opening == nil {
		return r.paint.prompt("repertoire")
	}
	return r.paint.prompt(fmt.Sprintf("%s %d/%d", r.explorer.Opening.Name, r.explorer.Cursor+1, r.explorer.Length))
}

// exec runs cmd and decodes its payload into out, printing any error
func (r *REPL) exec(ctx context.Context, cmd processor.Command, out any) bool {
	resp := r.proc.Execute(ctx, cmd)
	if !resp.Success {
		msg := "command failed"
		if resp.Error != nil {
			msg = resp.Error.Error
		}
		r.failf("%s", msg)
		return false
	}

	switch dst := out.(type) {
	case nil:
	case *core.ExplorerResponse:
		*dst = resp.Data.(core.ExplorerResponse)
	case *core.OpeningsResponse:
		*dst = resp.Data.(core.OpeningsResponse)
	case *core.CardResponse:
		*dst = resp.Data.(core.CardResponse)
	case *core.PerformanceResponse:
		*dst = resp.Data.(core.PerformanceResponse)
	case *core.BoardResponse:
		*dst = resp.Data.(core.BoardResponse)
	}
	return true
}

func (r *REPL) failf(format string, args ...any) {
	fmt.Fprintln(r.out, r.paint.paint(Red, "Error: "+fmt.Sprintf(format, args...)))
}

func (r *REPL) listOpenings(ctx context.Context) {
	var list core.OpeningsResponse
	if !r.exec(ctx, processor.NewListOpeningsCommand(), &list) {
		return
	}
	r.printOpenings(list)
}

func (r *REPL) printOpenings(list core.OpeningsResponse) {
	if len(list.White)+len(list.Black) == 0 {
		fmt.Fprintln(r.out, "No openings. Create one with: new <white|black> <name>")
		return
	}
	for _, side := range []struct {
		color string
		items []core.OpeningResponse
	}{{"white", list.White}, {"black", list.Black}} {
		if len(side.items) == 0 {
			continue
		}
		fmt.Fprintf(r.out, "%s:\n", r.paint.side(side.color))
		for _, o := range side.items {
			fmt.Fprintf(r.out, "  %3d  %s\n", o.ID, o.Name)
		}
	}
}

func (r *REPL) createOpening(ctx context.Context, args []string) {
	if len(args) < 2 {
		r.failf("usage: new <white|black> <name>")
		return
	}
	req := core.CreateOpeningRequest{
		Color: strings.ToLower(args[0]),
		Name:  strings.Join(args[1:], " "),
	}
	var list core.OpeningsResponse
	if r.exec(ctx, processor.NewCreateOpeningCommand(req), &list) {
		r.printOpenings(list)
	}
}

func (r *REPL) removeOpening(ctx context.Context, args []string) {
	id, ok := r.parseID(args)
	if !ok {
		return
	}
	var list core.OpeningsResponse
	if !r.exec(ctx, processor.NewDeleteOpeningCommand(id), &list) {
		return
	}
	if r.training != nil && r.training.Opening.ID == id {
		r.training = nil
	}
	r.refresh(ctx)
	fmt.Fprintf(r.out, "Opening %d removed\n", id)
}

func (r *REPL) useOpening(ctx context.Context, args []string) {
	var req core.SelectOpeningRequest
	if len(args) == 0 || args[0] != "none" {
		id, ok := r.parseID(args)
		if !ok {
			return
		}
		req.OpeningID = &id
	}
	r.navigate(ctx, processor.NewSelectOpeningCommand(r.explorer.SessionID, req))
}

func (r *REPL) parseID(args []string) (int64, bool) {
	if len(args) != 1 {
		r.failf("an opening id is required")
		return 0, false
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || id < 0 {
		r.failf("invalid opening id %q", args[0])
		return 0, false
	}
	return id, true
}

// refresh reloads the explorer after an out-of-band change
func (r *REPL) refresh(ctx context.Context) {
	var st core.ExplorerResponse
	if r.exec(ctx, processor.NewGetExplorerCommand(r.explorer.SessionID), &st) {
		r.explorer = &st
	}
}

func (r *REPL) navigate(ctx context.Context, cmd processor.Command) {
	if r.training != nil {
		r.failf("training in progress, 'stop' to return to the explorer")
		return
	}
	var st core.ExplorerResponse
	if !r.exec(ctx, cmd, &st) {
		return
	}
	r.explorer = &st
	if st.LastMove != nil && cmd.Type != processor.CmdSelectOpening {
		fmt.Fprintf(r.out, "%s %s\n", r.paint.paint(Green, moveLabel(*st.LastMove)), r.paint.side(st.LastMove.Color))
	}
	r.showCandidates()
}

func (r *REPL) showBoard(ctx context.Context) {
	if r.training != nil && r.training.Position != nil {
		r.renderFEN(r.training.Position.FEN, r.training.Opening.Color)
		return
	}
	var b core.BoardResponse
	if !r.exec(ctx, processor.NewGetBoardCommand(r.explorer.SessionID), &b) {
		return
	}
	r.paint.renderBoard(r.out, b.Board)
	fmt.Fprintln(r.out, b.FEN)
}

func (r *REPL) renderFEN(fen, orientation string) {
	b, err := board.ParseFEN(fen)
	if err != nil {
		r.failf("%v", err)
		return
	}
	color, err := core.ParseColor(orientation)
	if err != nil {
		color = core.ColorWhite
	}
	r.paint.renderBoard(r.out, b.ToASCII(color))
}

func (r *REPL) showCandidates() {
	st := r.explorer
	if st == nil || r.training != nil {
		return
	}
	if len(st.Major)+len(st.Minor) == 0 {
		fmt.Fprintln(r.out, "No known moves from here")
		return
	}
	if len(st.Major) > 0 {
		fmt.Fprintf(r.out, "%s %s\n", r.paint.paint(Green, "repertoire:"), joinMoves(st.Major))
	}
	if len(st.Minor) > 0 {
		fmt.Fprintf(r.out, "%s %s\n", r.paint.paint(Magenta, "other:"), joinMoves(st.Minor))
	}
}

func (r *REPL) showLine() {
	st := r.explorer
	if len(st.Line) == 0 {
		fmt.Fprintln(r.out, "(start position)")
		return
	}
	var sb strings.Builder
	for i, m := range st.Line {
		if i%2 == 0 {
			fmt.Fprintf(&sb, "%d. ", i/2+1)
		}
		sb.WriteString(m + " ")
	}
	if ahead := st.Length - len(st.Line); ahead > 0 {
		fmt.Fprintf(&sb, "(+%d to redo)", ahead)
	}
	fmt.Fprintln(r.out, strings.TrimSpace(sb.String()))
}

func (r *REPL) startTraining(ctx context.Context, args []string) {
	if r.training != nil {
		r.failf("training already in progress")
		return
	}
	if r.explorer.Opening == nil {
		r.failf("select an opening first: use <id>")
		return
	}
	mode := "random"
	if len(args) > 0 {
		mode = strings.ToLower(args[0])
	}

	id := r.explorer.Opening.ID
	var card core.CardResponse
	if !r.exec(ctx, processor.NewStartTrainingCommand(core.StartTrainingRequest{OpeningID: &id, Mode: mode}), &card) {
		return
	}
	r.training = &card
	fmt.Fprintf(r.out, "Training %s (%s). Enter your move, 'reveal' or 'stop'.\n", card.Opening.Name, card.Mode)
	r.showCard()
}

func (r *REPL) showCard() {
	card := r.training
	if card.Finished {
		fmt.Fprintln(r.out, r.paint.paint(Cyan, "Nothing left to review"))
		return
	}
	r.renderFEN(card.Position.FEN, card.Opening.Color)
	fmt.Fprintf(r.out, "%s to move\n", r.paint.side(card.Position.Turn))
}

func (r *REPL) answer(ctx context.Context, req core.PerformanceRequest) {
	if r.training == nil {
		r.failf("no training in progress, start one with: train <random|full>")
		return
	}
	if r.training.Finished {
		r.stopTraining(ctx)
		return
	}

	var perf core.PerformanceResponse
	if !r.exec(ctx, processor.NewRecordPerformanceCommand(r.training.SessionID, req), &perf) {
		return
	}
	switch {
	case req.Move == "":
		fmt.Fprintf(r.out, "Answer: %s\n", moveLabel(perf.Expected))
	case perf.Correct:
		fmt.Fprintln(r.out, r.paint.paint(Green, "Correct"))
	default:
		fmt.Fprintf(r.out, "%s expected %s\n", r.paint.paint(Red, "Wrong,"), moveLabel(perf.Expected))
	}

	var card core.CardResponse
	if !r.exec(ctx, processor.NewNextCardCommand(r.training.SessionID), &card) {
		return
	}
	r.training = &card
	r.showCard()
	if card.Finished {
		r.stopTraining(ctx)
	}
}

func (r *REPL) stopTraining(ctx context.Context) {
	if r.training == nil {
		return
	}
	// a finished session may already be gone
	r.proc.Execute(ctx, processor.NewDeleteTrainingCommand(r.training.SessionID))
	r.training = nil
	fmt.Fprintln(r.out, "Back to the explorer")
}

func (r *REPL) closeSessions(ctx context.Context) {
	if r.training != nil {
		r.proc.Execute(ctx, processor.NewDeleteTrainingCommand(r.training.SessionID))
		r.training = nil
	}
	if r.explorer != nil {
		r.proc.Execute(ctx, processor.NewDeleteExplorerCommand(r.explorer.SessionID))
	}
}

func (r *REPL) help() {
	fmt.Fprintln(r.out, `Commands:
  openings, ls              list openings by side
  new <white|black> <name>  create an opening
  rm <id>                   remove an opening and its exclusive moves
  use <id|none>             select the opening to edit
  <move>                    play a move in UCI notation (e2e4, e7e8q)
  undo, u / redo, r         step through the current line
  del                       remove the last move from the opening
  moves, m                  list known moves from here
  line                      show the current line
  board, b                  draw the board
  train [random|full]       review the selected opening
  reveal                    show the expected move (counts as wrong)
  stop                      end training
  quit, q                   leave`)
}

func moveLabel(m core.MoveResponse) string {
	if m.SAN == "" {
		return m.Move
	}
	return fmt.Sprintf("%s (%s)", m.SAN, m.Move)
}

func joinMoves(moves []core.MoveResponse) string {
	labels := make([]string, 0, len(moves))
	for _, m := range moves {
		labels = append(labels, moveLabel(m))
	}
	return strings.Join(labels, ", ")
}
