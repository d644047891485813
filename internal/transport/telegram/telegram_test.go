package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"

	kit "homeworkbot/internal/transport"
	logx "homeworkbot/pkg/logx"
)

func TestSplitTelegramText(t *testing.T) {
	assert.Equal(t, []string{"short"}, splitTelegramText("short", 10))

	parts := splitTelegramText(strings.Repeat("a", 25), 10)
	assert.Equal(t, []string{strings.Repeat("a", 10), strings.Repeat("a", 10), strings.Repeat("a", 5)}, parts)

	// Newline inside the window wins over a hard cut.
	parts = splitTelegramText("aaaaaaa\nbbbbbbbbb", 10)
	assert.Equal(t, []string{"aaaaaaa", "bbbbbbbbb"}, parts)

	// Multi-byte runes are never split.
	parts = splitTelegramText(strings.Repeat("ж", 12), 5)
	require.Len(t, parts, 3)
	assert.Equal(t, strings.Repeat("ж", 5), parts[0])
}

type botAPI struct {
	mu    sync.Mutex
	texts []string
	chats []string
	fail  bool
}

func (b *botAPI) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		if !strings.HasSuffix(r.URL.Path, "/sendMessage") {
			_, _ = io.WriteString(w, `{"ok":true,"result":true}`)
			return
		}
		var params map[string]any
		if err := json.Unmarshal(body, &params); err != nil {
			t.Errorf("decode sendMessage params: %v", err)
		}

		b.mu.Lock()
		defer b.mu.Unlock()
		if b.fail {
			w.WriteHeader(http.StatusForbidden)
			_, _ = io.WriteString(w, `{"ok":false,"error_code":403,"description":"Forbidden: bot was blocked by the user"}`)
			return
		}
		text, _ := params["text"].(string)
		b.texts = append(b.texts, text)
		b.chats = append(b.chats, fmt.Sprint(params["chat_id"]))
		_, _ = io.WriteString(w, `{"ok":true,"result":{"message_id":7,"date":1714560000,"chat":{"id":42,"type":"private"},"text":"ok"}}`)
	}
}

func newTestAdapter(t *testing.T, api *botAPI) *Adapter {
	return newTestAdapterFor(t, api, kit.ChatTarget{ChatID: 42})
}

func newTestAdapterFor(t *testing.T, api *botAPI, chat kit.ChatTarget) *Adapter {
	t.Helper()
	srv := httptest.NewServer(api.handler(t))
	t.Cleanup(srv.Close)
	a, err := New(Config{Token: "123:abc", Endpoint: srv.URL, Chat: chat}, logx.Nop())
	require.NoError(t, err)
	return a
}

func TestSendText(t *testing.T) {
	api := &botAPI{}
	a := newTestAdapter(t, api)

	ref, err := a.SendText(context.Background(), kit.ChatTarget{ChatID: 42}, "hello", nil)
	require.NoError(t, err)
	assert.Equal(t, kit.MessageRef{ChatID: 42, MessageID: 7}, ref)
	assert.Equal(t, []string{"hello"}, api.texts)
	assert.Equal(t, []string{"42"}, api.chats)
}

func TestSendTextToChannelUsername(t *testing.T) {
	api := &botAPI{}
	a := newTestAdapterFor(t, api, kit.ChatTarget{Username: "@my_channel"})

	ref, err := a.SendText(context.Background(), kit.ChatTarget{Username: "@my_channel"}, "hello", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"@my_channel"}, api.chats)
	assert.Equal(t, int64(42), ref.ChatID, "numeric id comes from the API reply")

	_, err = a.SendText(context.Background(), kit.ChatTarget{}, "hello", nil)
	assert.Error(t, err)
	assert.Len(t, api.texts, 1)
}

func TestSendTextSplitsLongMessages(t *testing.T) {
	api := &botAPI{}
	a := newTestAdapter(t, api)

	_, err := a.SendText(context.Background(), kit.ChatTarget{ChatID: 42}, strings.Repeat("x", telegramTextLimit+10), nil)
	require.NoError(t, err)
	require.Len(t, api.texts, 2)
	assert.Len(t, api.texts[1], 10)
}

func TestSendTextFailure(t *testing.T) {
	a := newTestAdapter(t, &botAPI{fail: true})

	_, err := a.SendText(context.Background(), kit.ChatTarget{ChatID: 42}, "hello", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "blocked")
}

func TestSendTextCancelled(t *testing.T) {
	api := &botAPI{}
	a := newTestAdapter(t, api)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := a.SendText(ctx, kit.ChatTarget{ChatID: 42}, "hello", nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, api.texts)
}

func TestNewRequiresToken(t *testing.T) {
	_, err := New(Config{Token: " "}, logx.Nop())
	assert.Error(t, err)
}

func TestStartWithoutCommandsIsNoop(t *testing.T) {
	a := newTestAdapter(t, &botAPI{})
	require.NoError(t, a.Start(context.Background()))
	assert.False(t, a.running)
	assert.NoError(t, a.Stop(context.Background()))
}

func TestCommandsOnlyFromConfiguredChat(t *testing.T) {
	api := &botAPI{}
	a := newTestAdapter(t, api)

	var got []kit.Command
	a.Handle("/Status", "loop status", func(ctx context.Context, cmd kit.Command) (string, error) {
		got = append(got, cmd)
		return "all good", nil
	})

	foreign := a.bot.NewContext(tele.Update{Message: &tele.Message{
		Text: "/status", Payload: "", Chat: &tele.Chat{ID: 999}, Sender: &tele.User{ID: 5},
	}})
	require.NoError(t, a.onCommand("status", foreign))
	assert.Empty(t, got)
	assert.Empty(t, api.texts)

	own := a.bot.NewContext(tele.Update{Message: &tele.Message{
		Text: "/status now", Payload: " now ", Chat: &tele.Chat{ID: 42}, Sender: &tele.User{ID: 5},
	}})
	require.NoError(t, a.onCommand("status", own))
	require.Len(t, got, 1)
	assert.Equal(t, kit.Command{Name: "status", Args: "now", ChatID: 42, FromID: 5}, got[0])
	assert.Equal(t, []string{"all good"}, api.texts)
	assert.Equal(t, []kit.BotCommand{{Command: "status", Description: "loop status"}}, a.commands)
}

func TestCommandHandlerPanicIsReported(t *testing.T) {
	api := &botAPI{}
	a := newTestAdapter(t, api)
	a.Handle("history", "", func(ctx context.Context, cmd kit.Command) (string, error) {
		panic("bad")
	})

	c := a.bot.NewContext(tele.Update{Message: &tele.Message{Text: "/history", Chat: &tele.Chat{ID: 42}}})
	require.NoError(t, a.onCommand("history", c))
	assert.Equal(t, []string{"Command failed: panic: bad"}, api.texts)
}

func TestCommandsFromConfiguredChannel(t *testing.T) {
	api := &botAPI{}
	a := newTestAdapterFor(t, api, kit.ChatTarget{Username: "@My_Channel"})
	a.Handle("status", "", func(ctx context.Context, cmd kit.Command) (string, error) { return "ok", nil })

	other := a.bot.NewContext(tele.Update{Message: &tele.Message{Text: "/status", Chat: &tele.Chat{ID: -1001, Username: "someone_else"}}})
	require.NoError(t, a.onCommand("status", other))
	assert.Empty(t, api.texts)

	own := a.bot.NewContext(tele.Update{Message: &tele.Message{Text: "/status", Chat: &tele.Chat{ID: -1002, Username: "my_channel"}}})
	require.NoError(t, a.onCommand("status", own))
	assert.Equal(t, []string{"ok"}, api.texts)
	assert.Equal(t, []string{"-1002"}, api.chats)
}
