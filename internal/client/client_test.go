package client_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"repertoire/internal/client"
	"repertoire/internal/core"
	"repertoire/internal/graph"
	apihttp "repertoire/internal/http"
	"repertoire/internal/processor"
	"repertoire/internal/review"
	"repertoire/internal/rules"
	"repertoire/internal/service"
	"repertoire/internal/storage/storagetest"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fiberTransport serves requests from the app without opening a socket
type fiberTransport struct {
	app *fiber.App
}

func (f fiberTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	return f.app.Test(req, -1)
}

func newClient(t *testing.T) *client.Client {
	t.Helper()
	s := storagetest.Badger(t)
	g := graph.New(s, rules.Standard{}, nil, nil)
	_, err := g.EnsureRoot(context.Background())
	require.NoError(t, err)

	svc := service.New(g, review.NewScheduler(s, nil, nil, nil), time.Hour, nil, nil)
	app := apihttp.NewFiberApp(processor.New(svc, nil), svc, nil, apihttp.Config{RateLimit: 1000})

	c := client.New("http://repertoire.test/", nil)
	c.HTTPClient = &http.Client{Transport: fiberTransport{app: app}}
	return c
}

func exec[T any](t *testing.T, c *client.Client, cmd processor.Command) T {
	t.Helper()
	resp := c.Execute(context.Background(), cmd)
	require.True(t, resp.Success, "command failed: %+v", resp.Error)
	data, ok := resp.Data.(T)
	require.True(t, ok, "unexpected data type %T", resp.Data)
	return data
}

func TestHealth(t *testing.T) {
	c := newClient(t)
	h, err := c.Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "healthy", h.Status)
	assert.Equal(t, 1, h.Positions)
}

func TestExplorerRoundTrip(t *testing.T) {
	c := newClient(t)
	ctx := context.Background()

	list := exec[core.OpeningsResponse](t, c, processor.NewCreateOpeningCommand(core.CreateOpeningRequest{Name: "Vienna", Color: "white"}))
	require.Len(t, list.White, 1)
	id := list.White[0].ID

	st := exec[core.ExplorerResponse](t, c, processor.NewCreateExplorerCommand(core.StartExplorerRequest{OpeningID: &id}))
	require.NotNil(t, st.Opening)
	assert.Equal(t, "Vienna", st.Opening.Name)

	st = exec[core.ExplorerResponse](t, c, processor.NewPushMoveCommand(st.SessionID, core.MoveRequest{Move: "e2e4"}))
	require.NotNil(t, st.LastMove)
	assert.Equal(t, "e4", st.LastMove.SAN)
	assert.Equal(t, []int64{id}, st.LastMove.Openings)

	st = exec[core.ExplorerResponse](t, c, processor.NewUndoMoveCommand(st.SessionID))
	require.Len(t, st.Major, 1)
	assert.Equal(t, "e2e4", st.Major[0].Move)

	b := exec[core.BoardResponse](t, c, processor.NewGetBoardCommand(st.SessionID))
	assert.Contains(t, b.Board, "r n b q k b n r")

	resp := c.Execute(ctx, processor.NewUndoMoveCommand(st.SessionID))
	require.False(t, resp.Success)
	assert.Equal(t, core.ErrCodeInvalidState, resp.Error.Code)

	resp = c.Execute(ctx, processor.NewPushMoveCommand(st.SessionID, core.MoveRequest{Move: "e2"}))
	require.False(t, resp.Success)
	assert.Equal(t, core.ErrCodeInvalidRequest, resp.Error.Code)
	assert.Contains(t, resp.Error.Error, "validation failed")

	resp = c.Execute(ctx, processor.NewDeleteExplorerCommand(st.SessionID))
	require.True(t, resp.Success)
	assert.Nil(t, resp.Data)

	resp = c.Execute(ctx, processor.NewGetExplorerCommand(st.SessionID))
	require.False(t, resp.Success)
	assert.Equal(t, core.ErrCodeNotFound, resp.Error.Code)
}

func TestTrainingRoundTrip(t *testing.T) {
	c := newClient(t)

	list := exec[core.OpeningsResponse](t, c, processor.NewCreateOpeningCommand(core.CreateOpeningRequest{Name: "French", Color: "black"}))
	id := list.Black[0].ID
	st := exec[core.ExplorerResponse](t, c, processor.NewCreateExplorerCommand(core.StartExplorerRequest{OpeningID: &id}))
	exec[core.ExplorerResponse](t, c, processor.NewPushMoveCommand(st.SessionID, core.MoveRequest{Move: "e2e4"}))
	exec[core.ExplorerResponse](t, c, processor.NewPushMoveCommand(st.SessionID, core.MoveRequest{Move: "e7e6"}))

	card := exec[core.CardResponse](t, c, processor.NewStartTrainingCommand(core.StartTrainingRequest{OpeningID: &id, Mode: "full"}))
	require.False(t, card.Finished)
	require.NotNil(t, card.Move)
	assert.Equal(t, "e7e6", card.Move.Move)

	perf := exec[core.PerformanceResponse](t, c, processor.NewRecordPerformanceCommand(card.SessionID, core.PerformanceRequest{Move: "e7e6"}))
	assert.True(t, perf.Correct)

	card = exec[core.CardResponse](t, c, processor.NewNextCardCommand(card.SessionID))
	assert.True(t, card.Finished)

	resp := c.Execute(context.Background(), processor.NewDeleteTrainingCommand(card.SessionID))
	assert.True(t, resp.Success)
}

func TestUnreachableServer(t *testing.T) {
	c := client.New("http://127.0.0.1:1", nil)
	c.HTTPClient.Timeout = time.Second

	resp := c.Execute(context.Background(), processor.NewListOpeningsCommand())
	require.False(t, resp.Success)
	assert.Equal(t, core.ErrCodeInternalError, resp.Error.Code)

	_, err := c.Health(context.Background())
	assert.Error(t, err)
}
