package processor

import (
	"repertoire/internal/core"
)

// CommandType defines the type of command being executed
type CommandType int

const (
	CmdListOpenings CommandType = iota
	CmdCreateOpening
	CmdDeleteOpening
	CmdCreateExplorer
	CmdGetExplorer
	CmdDeleteExplorer
	CmdSelectOpening
	CmdPushMove
	CmdUndoMove
	CmdRedoMove
	CmdRemoveLastMove
	CmdGetBoard
	CmdStartTraining
	CmdNextCard
	CmdRecordPerformance
	CmdDeleteTraining
)

// Command is a unified structure for all processor operations
type Command struct {
	Type      CommandType
	SessionID string // explorer or training session
	OpeningID int64  // for opening commands
	Args      any    // Command-specific arguments
}

// ProcessorResponse wraps the response with metadata
type ProcessorResponse struct {
	Success bool                `json:"success"`
	Data    any                 `json:"data,omitempty"`
	Error   *core.ErrorResponse `json:"error,omitempty"`
}

func NewListOpeningsCommand() Command {
	return Command{Type: CmdListOpenings}
}

func NewCreateOpeningCommand(req core.CreateOpeningRequest) Command {
	return Command{
		Type: CmdCreateOpening,
		Args: req,
	}
}

func NewDeleteOpeningCommand(openingID int64) Command {
	return Command{
		Type:      CmdDeleteOpening,
		OpeningID: openingID,
	}
}

func NewCreateExplorerCommand(req core.StartExplorerRequest) Command {
	return Command{
		Type: CmdCreateExplorer,
		Args: req,
	}
}

func NewGetExplorerCommand(sessionID string) Command {
	return Command{
		Type:      CmdGetExplorer,
		SessionID: sessionID,
	}
}

func NewDeleteExplorerCommand(sessionID string) Command {
	return Command{
		Type:      CmdDeleteExplorer,
		SessionID: sessionID,
	}
}

func NewSelectOpeningCommand(sessionID string, req core.SelectOpeningRequest) Command {
	return Command{
		Type:      CmdSelectOpening,
		SessionID: sessionID,
		Args:      req,
	}
}

func NewPushMoveCommand(sessionID string, req core.MoveRequest) Command {
	return Command{
		Type:      CmdPushMove,
		SessionID: sessionID,
		Args:      req,
	}
}

func NewUndoMoveCommand(sessionID string) Command {
	return Command{
		Type:      CmdUndoMove,
		SessionID: sessionID,
	}
}

func NewRedoMoveCommand(sessionID string) Command {
	return Command{
		Type:      CmdRedoMove,
		SessionID: sessionID,
	}
}

func NewRemoveLastMoveCommand(sessionID string) Command {
	return Command{
		Type:      CmdRemoveLastMove,
		SessionID: sessionID,
	}
}

func NewGetBoardCommand(sessionID string) Command {
	return Command{
		Type:      CmdGetBoard,
		SessionID: sessionID,
	}
}

func NewStartTrainingCommand(req core.StartTrainingRequest) Command {
	return Command{
		Type: CmdStartTraining,
		Args: req,
	}
}

func NewNextCardCommand(sessionID string) Command {
	return Command{
		Type:      CmdNextCard,
		SessionID: sessionID,
	}
}

func NewRecordPerformanceCommand(sessionID string, req core.PerformanceRequest) Command {
	return Command{
		Type:      CmdRecordPerformance,
		SessionID: sessionID,
		Args:      req,
	}
}

func NewDeleteTrainingCommand(sessionID string) Command {
	return Command{
		Type:      CmdDeleteTraining,
		SessionID: sessionID,
	}
}
