package bot

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"

	"github.com/edmondantes/salary-bot/flow"
)

type opLog struct {
	mu  sync.Mutex
	ops []string
}

func (l *opLog) add(op string) {
	l.mu.Lock()
	l.ops = append(l.ops, op)
	l.mu.Unlock()
}

type fakeStates struct {
	log    *opLog
	state  *string
	getErr error
	putErr error

	putCalls []*string
}

func (f *fakeStates) Get(_ context.Context, _ int64) (*string, error) {
	f.log.add("get")
	return f.state, f.getErr
}

func (f *fakeStates) Put(_ context.Context, _ int64, state *string) error {
	f.log.add("put")
	f.putCalls = append(f.putCalls, state)
	return f.putErr
}

type fakeEngine struct {
	log  *opLog
	res  flow.Result
	reqs []flow.Request
}

func (f *fakeEngine) Handle(_ context.Context, req flow.Request) flow.Result {
	f.log.add("handle")
	f.reqs = append(f.reqs, req)
	return f.res
}

type fakeSender struct {
	log    *opLog
	texts  []string
	photos [][]byte
	err    error
}

func (f *fakeSender) SendText(_ context.Context, _ int64, text string, _ *tele.ReplyMarkup) error {
	f.log.add("send")
	f.texts = append(f.texts, text)
	return f.err
}

func (f *fakeSender) SendPhoto(_ context.Context, _ int64, image []byte, _ string) error {
	f.log.add("photo")
	f.photos = append(f.photos, image)
	return f.err
}

func privateUpdate(id int, text string) tele.Update {
	return tele.Update{
		ID: id,
		Message: &tele.Message{
			Sender: &tele.User{ID: 7},
			Chat:   &tele.Chat{ID: 7, Type: tele.ChatPrivate},
			Text:   text,
		},
	}
}

func newTestHandler(states *fakeStates, engine *fakeEngine, snd *fakeSender) *Handler {
	return NewHandler(states, engine, snd)
}

func TestHandlePersistsStateBeforeSending(t *testing.T) {
	log := &opLog{}
	next := "add|"
	states := &fakeStates{log: log}
	engine := &fakeEngine{log: log, res: flow.Result{
		NextState: &next,
		Actions:   []flow.Action{{Text: "pick a date"}},
	}}
	snd := &fakeSender{log: log}

	h := newTestHandler(states, engine, snd)
	err := h.HandleUpdate(context.Background(), privateUpdate(1, "/add"))
	require.NoError(t, err)

	require.Equal(t, []string{"get", "handle", "put", "send"}, log.ops)
	require.Equal(t, []*string{&next}, states.putCalls)
	require.Equal(t, []string{"pick a date"}, snd.texts)
}

func TestHandleSendsPhotoActions(t *testing.T) {
	log := &opLog{}
	states := &fakeStates{log: log}
	engine := &fakeEngine{log: log, res: flow.Result{
		Actions: []flow.Action{
			{Text: "report"},
			{Photo: []byte{9, 9}, Caption: "06.2023"},
		},
	}}
	snd := &fakeSender{log: log}

	h := newTestHandler(states, engine, snd)
	require.NoError(t, h.HandleUpdate(context.Background(), privateUpdate(1, "06.2023")))

	require.Equal(t, []string{"report"}, snd.texts)
	require.Equal(t, [][]byte{{9, 9}}, snd.photos)
}

func TestHandleSkipsNonActionableUpdates(t *testing.T) {
	log := &opLog{}
	states := &fakeStates{log: log}
	engine := &fakeEngine{log: log}
	h := newTestHandler(states, engine, &fakeSender{log: log})

	cases := []tele.Update{
		{ID: 1}, // no message
		{ID: 2, Message: &tele.Message{
			Sender: &tele.User{ID: 7, IsBot: true},
			Chat:   &tele.Chat{ID: 7, Type: tele.ChatPrivate},
			Text:   "hi",
		}},
		{ID: 3, Message: &tele.Message{
			Sender: &tele.User{ID: 7},
			Chat:   &tele.Chat{ID: -100, Type: tele.ChatGroup},
			Text:   "hi",
		}},
		{ID: 4, Message: &tele.Message{
			Sender: &tele.User{ID: 7},
			Chat:   &tele.Chat{ID: 7, Type: tele.ChatPrivate},
		}}, // empty text
	}
	for _, upd := range cases {
		require.NoError(t, h.HandleUpdate(context.Background(), upd))
	}
	require.Empty(t, log.ops)
}

func TestHandleStateLoadFailure(t *testing.T) {
	log := &opLog{}
	states := &fakeStates{log: log, getErr: errors.New("db down")}
	engine := &fakeEngine{log: log}

	h := newTestHandler(states, engine, &fakeSender{log: log})
	err := h.HandleUpdate(context.Background(), privateUpdate(1, "hi"))
	require.Error(t, err)
	require.Equal(t, []string{"get"}, log.ops)
}

func TestHandleStateSaveFailureSkipsReplies(t *testing.T) {
	log := &opLog{}
	states := &fakeStates{log: log, putErr: errors.New("db down")}
	engine := &fakeEngine{log: log, res: flow.Result{
		Actions: []flow.Action{{Text: "never sent"}},
	}}
	snd := &fakeSender{log: log}

	h := newTestHandler(states, engine, snd)
	require.Error(t, h.HandleUpdate(context.Background(), privateUpdate(1, "hi")))
	require.Empty(t, snd.texts)
}

type slowEngine struct {
	inFlight atomic.Int32
	overlap  atomic.Bool
}

func (e *slowEngine) Handle(_ context.Context, _ flow.Request) flow.Result {
	if e.inFlight.Add(1) > 1 {
		e.overlap.Store(true)
	}
	time.Sleep(10 * time.Millisecond)
	e.inFlight.Add(-1)
	return flow.Result{}
}

func TestHandleSerializesPerUser(t *testing.T) {
	log := &opLog{}
	engine := &slowEngine{}
	h := NewHandler(&fakeStates{log: log}, engine, &fakeSender{log: log})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			_ = h.HandleUpdate(context.Background(), privateUpdate(id, "hi"))
		}(i + 1)
	}
	wg.Wait()

	require.False(t, engine.overlap.Load(), "handles for one user must not overlap")
}
