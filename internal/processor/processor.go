// Package processor executes API commands against the service layer and
// shapes their results into response types.
package processor

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"repertoire/internal/board"
	"repertoire/internal/core"
	"repertoire/internal/graph"
	"repertoire/internal/rules"
	"repertoire/internal/service"
)

// Processor handles command execution on top of the service layer
type Processor struct {
	svc    *service.Service
	rules  rules.Rules
	logger *slog.Logger
}

func New(svc *service.Service, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		svc:    svc,
		rules:  svc.Graph().Rules(),
		logger: logger.With("component", "processor"),
	}
}

func (p *Processor) Execute(ctx context.Context, cmd Command) ProcessorResponse {
	switch cmd.Type {
	case CmdListOpenings:
		return p.handleListOpenings(ctx)
	case CmdCreateOpening:
		return p.handleCreateOpening(ctx, cmd)
	case CmdDeleteOpening:
		return p.handleDeleteOpening(ctx, cmd)
	case CmdCreateExplorer:
		return p.handleCreateExplorer(ctx, cmd)
	case CmdGetExplorer, CmdSelectOpening, CmdPushMove, CmdUndoMove, CmdRedoMove, CmdRemoveLastMove:
		return p.handleExplorer(ctx, cmd)
	case CmdDeleteExplorer:
		if err := p.svc.CloseExplorer(cmd.SessionID); err != nil {
			return p.errorResponse(err)
		}
		return ProcessorResponse{Success: true}
	case CmdGetBoard:
		return p.handleGetBoard(ctx, cmd)
	case CmdStartTraining:
		return p.handleStartTraining(ctx, cmd)
	case CmdNextCard:
		return p.handleNextCard(ctx, cmd)
	case CmdRecordPerformance:
		return p.handleRecordPerformance(ctx, cmd)
	case CmdDeleteTraining:
		if err := p.svc.CloseTrainer(cmd.SessionID); err != nil {
			return p.errorResponse(err)
		}
		return ProcessorResponse{Success: true}
	default:
		return p.invalidRequest("unknown command")
	}
}

func (p *Processor) handleListOpenings(ctx context.Context) ProcessorResponse {
	byColor, err := p.svc.Openings(ctx)
	if err != nil {
		return p.errorResponse(err)
	}
	return ProcessorResponse{
		Success: true,
		Data:    buildOpeningsResponse(byColor),
	}
}

func (p *Processor) handleCreateOpening(ctx context.Context, cmd Command) ProcessorResponse {
	args, ok := cmd.Args.(core.CreateOpeningRequest)
	if !ok {
		return p.invalidRequest("invalid arguments")
	}
	color, err := core.ParseColor(args.Color)
	if err != nil {
		return p.errorResponse(err)
	}

	if _, _, err := p.svc.CreateOpening(ctx, args.Name, color); err != nil {
		return p.errorResponse(err)
	}
	// the listing is returned so a client can refresh its menus in one round trip
	return p.handleListOpenings(ctx)
}

func (p *Processor) handleDeleteOpening(ctx context.Context, cmd Command) ProcessorResponse {
	if err := p.svc.RemoveOpening(ctx, cmd.OpeningID); err != nil {
		return p.errorResponse(err)
	}
	return p.handleListOpenings(ctx)
}

func (p *Processor) handleCreateExplorer(ctx context.Context, cmd Command) ProcessorResponse {
	var args core.StartExplorerRequest
	if cmd.Args != nil {
		req, ok := cmd.Args.(core.StartExplorerRequest)
		if !ok {
			return p.invalidRequest("invalid arguments")
		}
		args = req
	}

	e, err := p.svc.CreateExplorer(ctx, args.OpeningID)
	if err != nil {
		return p.errorResponse(err)
	}
	st, err := e.State(ctx)
	if err != nil {
		return p.errorResponse(err)
	}
	return ProcessorResponse{
		Success: true,
		Data:    p.buildExplorerResponse(st),
	}
}

// handleExplorer runs the per-session navigation commands
func (p *Processor) handleExplorer(ctx context.Context, cmd Command) ProcessorResponse {
	e, err := p.svc.Explorer(cmd.SessionID)
	if err != nil {
		return p.errorResponse(err)
	}

	var st service.ExplorerState
	switch cmd.Type {
	case CmdGetExplorer:
		st, err = e.State(ctx)
	case CmdSelectOpening:
		args, ok := cmd.Args.(core.SelectOpeningRequest)
		if !ok {
			return p.invalidRequest("invalid arguments")
		}
		st, err = e.SelectOpening(ctx, args.OpeningID)
	case CmdPushMove:
		args, ok := cmd.Args.(core.MoveRequest)
		if !ok {
			return p.invalidRequest("invalid arguments")
		}
		move, ok := normalizeMove(args.Move)
		if !ok {
			return p.errorResponse(fmt.Errorf("%w: invalid move format %q", core.ErrMalformedInput, args.Move))
		}
		st, err = e.Push(ctx, move)
	case CmdUndoMove:
		st, err = e.Undo(ctx)
	case CmdRedoMove:
		st, err = e.Redo(ctx)
	case CmdRemoveLastMove:
		st, err = e.RemoveLast(ctx)
	}
	if err != nil {
		return p.errorResponse(err)
	}

	return ProcessorResponse{
		Success: true,
		Data:    p.buildExplorerResponse(st),
	}
}

// handleGetBoard returns board visualization, oriented for the active opening's side
func (p *Processor) handleGetBoard(ctx context.Context, cmd Command) ProcessorResponse {
	e, err := p.svc.Explorer(cmd.SessionID)
	if err != nil {
		return p.errorResponse(err)
	}
	st, err := e.State(ctx)
	if err != nil {
		return p.errorResponse(err)
	}

	b, err := board.ParseFEN(st.Position.State)
	if err != nil {
		return p.errorResponse(err)
	}
	orientation := core.ColorWhite
	if st.Opening != nil {
		orientation = st.Opening.Color
	}

	return ProcessorResponse{
		Success: true,
		Data: core.BoardResponse{
			FEN:   st.Position.State,
			Board: b.ToASCII(orientation),
		},
	}
}

func (p *Processor) handleStartTraining(ctx context.Context, cmd Command) ProcessorResponse {
	args, ok := cmd.Args.(core.StartTrainingRequest)
	if !ok || args.OpeningID == nil {
		return p.invalidRequest("invalid arguments")
	}

	t, err := p.svc.StartTraining(ctx, *args.OpeningID, service.Mode(args.Mode))
	if err != nil {
		return p.errorResponse(err)
	}
	return p.drawCard(ctx, t)
}

func (p *Processor) handleNextCard(ctx context.Context, cmd Command) ProcessorResponse {
	t, err := p.svc.Trainer(cmd.SessionID)
	if err != nil {
		return p.errorResponse(err)
	}
	return p.drawCard(ctx, t)
}

// drawCard advances the session and reports the new card
func (p *Processor) drawCard(ctx context.Context, t *service.Trainer) ProcessorResponse {
	resp := core.CardResponse{
		SessionID: t.ID(),
		Mode:      string(t.Mode()),
		Opening:   buildOpeningResponse(t.Opening()),
	}

	card, ok, err := t.Next(ctx)
	if err != nil {
		return p.errorResponse(err)
	}
	if !ok {
		resp.Finished = true
		return ProcessorResponse{Success: true, Data: resp}
	}

	pos := buildPositionResponse(card.Position)
	move := p.buildMoveResponse(card.Position, card.Move)
	resp.Position = &pos
	resp.Move = &move
	return ProcessorResponse{Success: true, Data: resp}
}

func (p *Processor) handleRecordPerformance(ctx context.Context, cmd Command) ProcessorResponse {
	args, ok := cmd.Args.(core.PerformanceRequest)
	if !ok {
		return p.invalidRequest("invalid arguments")
	}
	t, err := p.svc.Trainer(cmd.SessionID)
	if err != nil {
		return p.errorResponse(err)
	}

	var correct bool
	switch {
	case args.Move != "":
		move, ok := normalizeMove(args.Move)
		if !ok {
			return p.errorResponse(fmt.Errorf("%w: invalid move format %q", core.ErrMalformedInput, args.Move))
		}
		if correct, err = t.Check(move); err != nil {
			return p.errorResponse(err)
		}
	case args.Result == "correct":
		correct = true
	case args.Result == "wrong":
		correct = false
	default:
		return p.invalidRequest("result or move required")
	}

	card, updated, err := t.Record(ctx, correct, p.svc.Now())
	if err != nil {
		return p.errorResponse(err)
	}

	return ProcessorResponse{
		Success: true,
		Data: core.PerformanceResponse{
			SessionID: t.ID(),
			Correct:   correct,
			Updated:   updated,
			Expected:  p.buildMoveResponse(card.Position, card.Move),
		},
	}
}

// normalizeMove lower-cases and trims a coordinate move and checks its syntax
func normalizeMove(move string) (string, bool) {
	move = strings.ToLower(strings.TrimSpace(move))
	return move, rules.IsMoveSafe(move)
}

func buildOpeningResponse(o core.Opening) core.OpeningResponse {
	return core.OpeningResponse{
		ID:    o.ID,
		Name:  o.Name,
		Color: o.Color.Name(),
	}
}

func buildOpeningsResponse(byColor graph.OpeningsByColor) core.OpeningsResponse {
	resp := core.OpeningsResponse{
		White: make([]core.OpeningResponse, 0, len(byColor.White)),
		Black: make([]core.OpeningResponse, 0, len(byColor.Black)),
	}
	for _, o := range byColor.White {
		resp.White = append(resp.White, buildOpeningResponse(o))
	}
	for _, o := range byColor.Black {
		resp.Black = append(resp.Black, buildOpeningResponse(o))
	}
	return resp
}

func buildPositionResponse(pos core.Position) core.PositionResponse {
	return core.PositionResponse{
		ID:   pos.ID,
		FEN:  pos.State,
		Turn: pos.Turn.String(),
	}
}

// buildMoveResponse renders m played from its source position src
func (p *Processor) buildMoveResponse(src core.Position, m core.Move) core.MoveResponse {
	resp := core.MoveResponse{
		Move:         m.Notation,
		SourceID:     m.SourceID,
		DestID:       m.DestID,
		Color:        m.Color.String(),
		Openings:     m.Openings,
		Difficulty:   m.Difficulty,
		IntervalDays: m.IntervalDays,
		LastReviewed: m.LastReviewed,
	}
	if san, err := p.rules.SAN(src.State, m.Notation); err == nil {
		resp.SAN = san
	} else {
		p.logger.Debug("san rendering failed", "move", m.Notation, "error", err)
	}
	return resp
}

func (p *Processor) buildMovesResponse(src core.Position, moves []core.Move) []core.MoveResponse {
	out := make([]core.MoveResponse, 0, len(moves))
	for _, m := range moves {
		out = append(out, p.buildMoveResponse(src, m))
	}
	return out
}

// buildExplorerResponse constructs standard explorer response
func (p *Processor) buildExplorerResponse(st service.ExplorerState) core.ExplorerResponse {
	resp := core.ExplorerResponse{
		SessionID: st.ID,
		Position:  buildPositionResponse(st.Position),
		Major:     p.buildMovesResponse(st.Position, st.Candidates.Major),
		Minor:     p.buildMovesResponse(st.Position, st.Candidates.Minor),
		Line:      make([]string, 0, len(st.Line)),
		Cursor:    st.Cursor,
		Length:    st.Length,
	}
	if st.Opening != nil {
		o := buildOpeningResponse(*st.Opening)
		resp.Opening = &o
	}
	for _, m := range st.Line {
		resp.Line = append(resp.Line, m.Notation)
	}
	if st.LastMove != nil {
		lm := p.buildMoveResponse(st.LastSource, *st.LastMove)
		resp.LastMove = &lm
	}
	return resp
}

// errorResponse creates error response from a domain error
func (p *Processor) errorResponse(err error) ProcessorResponse {
	code := core.Code(err)
	if code == core.ErrCodeInternalError || code == core.ErrCodeStoreFailure {
		p.logger.Error("command failed", "error", err)
	}
	return ProcessorResponse{
		Success: false,
		Error: &core.ErrorResponse{
			Error: err.Error(),
			Code:  code,
		},
	}
}

func (p *Processor) invalidRequest(message string) ProcessorResponse {
	return ProcessorResponse{
		Success: false,
		Error: &core.ErrorResponse{
			Error: message,
			Code:  core.ErrCodeInvalidRequest,
		},
	}
}
