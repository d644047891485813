package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	tele "gopkg.in/telebot.v4"

	rtsup "homeworkbot/internal/runtime/supervisor"
	kit "homeworkbot/internal/transport"
	logx "homeworkbot/pkg/logx"
)

// Config for the Telegram adapter.
type Config struct {
	Token       string
	PollTimeout time.Duration
	// Chat is the only chat whose commands are answered.
	Chat kit.ChatTarget
	// CommandTimeout bounds a single command handler (default 10s).
	CommandTimeout time.Duration
	// Endpoint overrides the Bot API URL (tests).
	Endpoint string
}

// Adapter sends notifications through the Bot API and, when commands are
// registered, long-polls for them.
type Adapter struct {
	cfg Config
	log logx.Logger
	bot *tele.Bot

	runMu   sync.Mutex
	running bool
	sup     *rtsup.Supervisor
	runCtx  atomic.Value // context.Context

	cmdMu    sync.RWMutex
	commands []kit.BotCommand
	handlers map[string]kit.CommandHandler
}

// New builds the adapter without contacting Telegram, so a network outage at
// startup doesn't keep the poll loop from running.
func New(cfg Config, log logx.Logger) (*Adapter, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = 10 * time.Second
	}
	if cfg.CommandTimeout <= 0 {
		cfg.CommandTimeout = 10 * time.Second
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	a := &Adapter{cfg: cfg, log: log, handlers: map[string]kit.CommandHandler{}}

	b, err := tele.NewBot(tele.Settings{
		URL:     cfg.Endpoint,
		Token:   cfg.Token,
		Poller:  &tele.LongPoller{Timeout: cfg.PollTimeout},
		Offline: true,
		OnError: func(err error, c tele.Context) {
			a.log.Warn("telegram update failed", logx.Err(err))
		},
	})
	if err != nil {
		return nil, err
	}
	a.bot = b
	a.runCtx.Store(context.Background())
	return a, nil
}

// Handle registers a command (without the leading slash). Must be called
// before Start.
func (a *Adapter) Handle(name, description string, h kit.CommandHandler) {
	name = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(name), "/"))
	if name == "" || h == nil {
		return
	}
	a.cmdMu.Lock()
	a.handlers[name] = h
	a.commands = append(a.commands, kit.BotCommand{Command: name, Description: description})
	a.cmdMu.Unlock()

	a.bot.Handle("/"+name, func(c tele.Context) error { return a.onCommand(name, c) })
}

// Commands lists the registered commands in registration order.
func (a *Adapter) Commands() []kit.BotCommand {
	a.cmdMu.RLock()
	defer a.cmdMu.RUnlock()
	return append([]kit.BotCommand(nil), a.commands...)
}

func (a *Adapter) onCommand(name string, c tele.Context) error {
	m := c.Message()
	if m == nil || m.Chat == nil {
		return nil
	}
	if !a.cfg.Chat.Matches(m.Chat.ID, m.Chat.Username) {
		a.log.Debug("command from foreign chat ignored", logx.String("command", name), logx.Int64("chat_id", m.Chat.ID))
		return nil
	}

	a.cmdMu.RLock()
	h := a.handlers[name]
	a.cmdMu.RUnlock()
	if h == nil {
		return nil
	}

	cmd := kit.Command{
		Name:     name,
		Args:     strings.TrimSpace(m.Payload),
		ChatID:   m.Chat.ID,
		ThreadID: m.ThreadID,
	}
	if m.Sender != nil {
		cmd.FromID = m.Sender.ID
	}

	parent, _ := a.runCtx.Load().(context.Context)
	ctx, cancel := context.WithTimeout(parent, a.cfg.CommandTimeout)
	defer cancel()

	reply, err := a.dispatch(ctx, h, cmd)
	if err != nil {
		a.log.Warn("command failed", logx.String("command", name), logx.Err(err))
		reply = "Command failed: " + err.Error()
	}
	if reply == "" {
		return nil
	}
	_, err = a.SendText(ctx, kit.ChatTarget{ChatID: cmd.ChatID, ThreadID: cmd.ThreadID}, reply, &kit.SendOptions{DisablePreview: true})
	return err
}

func (a *Adapter) dispatch(ctx context.Context, h kit.CommandHandler, cmd kit.Command) (reply string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return h(ctx, cmd)
}

// Start begins long polling when at least one command is registered. It
// returns immediately.
func (a *Adapter) Start(ctx context.Context) error {
	a.cmdMu.RLock()
	cmds := append([]kit.BotCommand(nil), a.commands...)
	a.cmdMu.RUnlock()
	if len(cmds) == 0 {
		a.log.Debug("no commands registered; inbound polling disabled")
		return nil
	}

	a.runMu.Lock()
	if a.running {
		a.runMu.Unlock()
		return nil
	}
	a.running = true
	a.sup = rtsup.New(ctx, rtsup.WithLogger(a.log))
	sup := a.sup
	a.runCtx.Store(sup.Context())
	a.runMu.Unlock()

	sup.Go0("telegram.menu", func(c context.Context) {
		if err := a.setMenu(cmds); err != nil {
			a.log.Warn("menu commands update failed", logx.Err(err))
		}
	})
	sup.Go0("telegram.stop_on_cancel", func(c context.Context) {
		<-c.Done()
		a.bot.Stop()
	})
	// bot.Start blocks until Stop; restart it if it returns on its own.
	sup.GoRestart0("telegram.poll", func(c context.Context) {
		a.log.Info("polling started")
		a.bot.Start()
		a.log.Info("polling stopped")
	},
		rtsup.WithRestartBackoff(500*time.Millisecond, 10*time.Second),
		rtsup.WithStopOnCleanExit(false),
	)
	return nil
}

func (a *Adapter) setMenu(cmds []kit.BotCommand) error {
	out := make([]tele.Command, 0, len(cmds))
	for _, c := range cmds {
		d := c.Description
		if d == "" {
			d = c.Command
		}
		out = append(out, tele.Command{Text: c.Command, Description: truncateRunes(d, 256)})
	}
	if err := a.bot.SetCommands(out); err != nil {
		return err
	}
	a.log.Info("menu commands updated", logx.Int("count", len(out)))
	return nil
}

// Stop ends polling. It never blocks longer than ctx or two seconds.
func (a *Adapter) Stop(ctx context.Context) error {
	a.runMu.Lock()
	sup := a.sup
	a.sup = nil
	wasRunning := a.running
	a.running = false
	a.runMu.Unlock()
	if !wasRunning || sup == nil {
		return nil
	}

	sup.Cancel()
	wctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := sup.Wait(wctx); err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			a.log.Warn("telegram stop timed out", logx.Err(err))
			return nil
		}
		a.log.Debug("telegram stopped with error", logx.Err(err))
	}
	return nil
}

const telegramTextLimit = 4000

// SendText delivers text, split into several messages if it is too long. A
// nil error means every part was accepted by Telegram.
func (a *Adapter) SendText(ctx context.Context, to kit.ChatTarget, text string, opt *kit.SendOptions) (kit.MessageRef, error) {
	if opt == nil {
		opt = &kit.SendOptions{}
	}
	if to.IsZero() {
		return kit.MessageRef{}, errors.New("telegram send: no chat")
	}

	var first kit.MessageRef
	for i, chunk := range splitTelegramText(text, telegramTextLimit) {
		if err := ctx.Err(); err != nil {
			return first, err
		}
		msg, err := a.bot.Send(to, chunk, &tele.SendOptions{
			ParseMode:             opt.ParseMode,
			DisableWebPagePreview: opt.DisablePreview,
			ThreadID:              to.ThreadID,
		})
		if err != nil {
			return first, fmt.Errorf("telegram send: %w", err)
		}
		if i == 0 {
			first = kit.MessageRef{ChatID: to.ChatID, ThreadID: to.ThreadID, MessageID: msg.ID}
			if msg.Chat != nil {
				first.ChatID = msg.Chat.ID
			}
		}
	}
	return first, nil
}

// splitTelegramText cuts s into chunks of at most limit runes, preferring a
// newline in the last two thirds of each window.
func splitTelegramText(s string, limit int) []string {
	if limit <= 0 {
		limit = telegramTextLimit
	}
	rs := []rune(s)
	if len(rs) <= limit {
		return []string{s}
	}

	var out []string
	start := 0
	for start < len(rs) {
		end := min(start+limit, len(rs))
		if end < len(rs) {
			for i := end - 1; i-start >= limit/3; i-- {
				if rs[i] == '\n' {
					end = i + 1
					break
				}
			}
		}
		out = append(out, strings.TrimRight(string(rs[start:end]), "\n"))
		start = end
		for start < len(rs) && rs[start] == '\n' {
			start++
		}
	}
	return out
}

func truncateRunes(s string, n int) string {
	rs := []rune(s)
	if len(rs) <= n {
		return s
	}
	return string(rs[:n])
}
