package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/zhouzirui/codetutor/backend/internal/logging"
	"github.com/zhouzirui/codetutor/backend/internal/model/api"
	"github.com/zhouzirui/codetutor/backend/internal/model/broker"
	"github.com/zhouzirui/codetutor/backend/internal/model/chat"
	"github.com/zhouzirui/codetutor/backend/internal/model/mode"
)

var (
	// ErrTurnInFlight is returned by Send while a previous turn is unanswered.
	ErrTurnInFlight = errors.New("a turn is already in flight")
	// ErrConversationReset is returned by Send when the conversation was reset
	// (mode transition or Clear) before the reply arrived. The reply is discarded.
	ErrConversationReset = errors.New("conversation was reset while waiting for the reply")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("conversation is closed")
)

const (
	noReplyText           = "Không có phản hồi."
	practiceNeedsKeyText  = "Chế độ Luyện tập cần API key. Vui lòng nhập API key của bạn."
	defaultRevokeTimeout  = 5 * time.Second
	transitionNoticeTitle = "Đã chuyển sang chế độ: %s"
	transitionNoticeBody  = "Lịch sử trò chuyện đã được xóa"
)

// Broker is the server surface the conversation needs.
type Broker interface {
	HasCredential(ctx context.Context, identity string) (bool, error)
	TestCredential(ctx context.Context, credential string) (valid bool, reason string, err error)
	SaveCredential(ctx context.Context, identity, displayName, credential string) error
	IssueToken(ctx context.Context, identity string) (string, error)
	RevokeToken(ctx context.Context, token string) error
	Ask(ctx context.Context, m chat.Mode, prompt, token string, history []chat.Exchange) (api.AskResponse, error)
}

// UI renders what the conversation wants the caller to see.
type UI interface {
	// ShowNotice displays a system notice such as a mode transition.
	ShowNotice(text string)
	// ShowReply displays an assistant message, including greetings.
	ShowReply(text string)
	// ShowError displays a failed turn.
	ShowError(err error)
	// RequestCredential asks the caller for a (new) personal credential.
	RequestCredential(reason string)
	// SetConnected reflects whether the caller can currently send.
	SetConnected(connected bool)
}

// Config configures a Conversation.
type Config struct {
	Identity    string
	DisplayName string
	Mode        chat.Mode
	Role        Role

	Broker     Broker
	UI         UI
	Profiles   mode.Store
	Transcript TranscriptSink
	Problems   ProblemSource
	Logger     *zap.Logger

	// RevokeTimeout bounds the fire-and-forget revoke call.
	RevokeTimeout time.Duration
}

// Conversation holds the exchanges of the current mode epoch. Exchanges are
// appended only when a turn succeeds and are wiped on every transition or
// Clear.
type Conversation struct {
	identity      string
	displayName   string
	role          Role
	broker        Broker
	ui            UI
	profiles      mode.Store
	transcript    TranscriptSink
	problems      ProblemSource
	logger        *zap.Logger
	revokeTimeout time.Duration

	mu        sync.Mutex
	mode      chat.Mode
	epoch     uint64
	exchanges []chat.Exchange
	token     string
	inFlight  bool
	closed    bool
}

// New creates a conversation. Call Open to greet and acquire access.
func New(cfg Config) (*Conversation, error) {
	if cfg.Broker == nil {
		return nil, errors.New("broker is required")
	}
	if cfg.UI == nil {
		return nil, errors.New("ui is required")
	}
	if _, ok := chat.ParseMode(string(cfg.Mode)); !ok {
		return nil, fmt.Errorf("%w: unknown mode %q", broker.ErrInvalidArgument, cfg.Mode)
	}

	c := &Conversation{
		identity:      strings.TrimSpace(cfg.Identity),
		displayName:   strings.TrimSpace(cfg.DisplayName),
		role:          cfg.Role,
		broker:        cfg.Broker,
		ui:            cfg.UI,
		profiles:      cfg.Profiles,
		transcript:    cfg.Transcript,
		problems:      cfg.Problems,
		logger:        cfg.Logger,
		revokeTimeout: cfg.RevokeTimeout,
		mode:          cfg.Mode,
	}
	if c.displayName == "" {
		c.displayName = "User"
	}
	if c.role == "" {
		c.role = RoleOf(c.identity)
	}
	if c.profiles == nil {
		c.profiles = mode.NewMemoryStore(mode.Seed())
	}
	if c.transcript == nil {
		c.transcript = nopTranscript{}
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	c.logger = c.logger.Named("conversation")
	if c.revokeTimeout <= 0 {
		c.revokeTimeout = defaultRevokeTimeout
	}
	return c, nil
}

// Attach subscribes the conversation to the detector's transitions.
func (c *Conversation) Attach(d *Detector) {
	d.OnTransition(c.HandleTransition)
}

// Open greets the caller and acquires access for the current mode.
func (c *Conversation) Open(ctx context.Context) {
	c.ui.ShowReply(c.greeting(c.Mode()))
	c.acquireAccess(ctx)
}

// Mode returns the current mode.
func (c *Conversation) Mode() chat.Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

// Exchanges returns a copy of the current exchanges.
func (c *Conversation) Exchanges() []chat.Exchange {
	c.mu.Lock()
	defer c.mu.Unlock()
	return chat.CloneExchanges(c.exchanges)
}

// HasToken reports whether a personal token is cached.
func (c *Conversation) HasToken() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token != ""
}

// HandleTransition resets the conversation for t.To: exchanges are wiped,
// the cached token is revoked in the background, the caller is told and
// greeted, and access for the new mode is acquired.
func (c *Conversation) HandleTransition(ctx context.Context, t Transition) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.mode = t.To
	c.epoch++
	c.exchanges = nil
	oldToken := c.token
	c.token = ""
	c.mu.Unlock()

	c.revokeAsync(oldToken)
	c.clearTranscript()

	c.ui.ShowNotice(fmt.Sprintf(transitionNoticeTitle, c.profileName(t.To)) + "\n" + transitionNoticeBody)
	c.ui.ShowReply(c.greeting(t.To))
	c.logger.Info("conversation reset", zap.String("from", t.From.String()), zap.String("to", t.To.String()))

	c.acquireAccess(ctx)
}

// Clear wipes the exchanges and greets again. The token is kept.
func (c *Conversation) Clear() {
	c.mu.Lock()
	c.epoch++
	c.exchanges = nil
	m := c.mode
	c.mu.Unlock()

	c.clearTranscript()
	c.ui.ShowReply(c.greeting(m))
}

// Send runs one turn and returns the reply. On failure the caller's exchange
// is rolled back, so a failed turn never appears in later history.
func (c *Conversation) Send(ctx context.Context, text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("%w: prompt is required", broker.ErrInvalidArgument)
	}

	c.mu.Lock()
	switch {
	case c.closed:
		c.mu.Unlock()
		return "", ErrClosed
	case c.inFlight:
		c.mu.Unlock()
		return "", ErrTurnInFlight
	case c.mode == chat.ModePractice && c.token == "":
		c.mu.Unlock()
		c.ui.RequestCredential(practiceNeedsKeyText)
		return "", fmt.Errorf("%w: practice mode requires personal credential", broker.ErrUnauthorized)
	}

	m, token, epoch := c.mode, c.token, c.epoch
	prompt := c.contextPrompt(m, text)
	history := chat.CloneExchanges(c.exchanges)
	c.exchanges = append(c.exchanges, chat.UserExchange(prompt))
	c.inFlight = true
	c.mu.Unlock()

	resp, err := c.broker.Ask(ctx, m, prompt, token, history)

	c.mu.Lock()
	c.inFlight = false
	if c.epoch != epoch {
		// the exchanges were already wiped; nothing to roll back
		c.mu.Unlock()
		c.logger.Debug("discarding reply from previous epoch", zap.String("mode", m.String()))
		return "", ErrConversationReset
	}

	if err != nil {
		c.exchanges = c.exchanges[:len(c.exchanges)-1]
		c.mu.Unlock()

		c.ui.ShowError(err)
		if m == chat.ModePractice && broker.RequiresNewCredential(err) {
			c.ui.RequestCredential(err.Error())
		}
		return "", err
	}

	reply := resp.Reply
	if strings.TrimSpace(reply) == "" {
		reply = noReplyText
	}
	c.exchanges = append(c.exchanges, chat.AssistantExchange(reply))
	snapshot := chat.CloneExchanges(c.exchanges)
	c.mu.Unlock()

	c.ui.ShowReply(reply)
	if err := c.transcript.Save(m, snapshot); err != nil {
		c.logger.Warn("failed to persist transcript", zap.Error(err))
	}
	return reply, nil
}

// SubmitCredential checks, stores and activates a new personal credential:
// the format is checked by the broker, the credential is saved for this
// identity and a fresh token replaces the cached one.
func (c *Conversation) SubmitCredential(ctx context.Context, credential string) error {
	valid, reason, err := c.broker.TestCredential(ctx, credential)
	if err != nil {
		return err
	}
	if !valid {
		return fmt.Errorf("%w: %s", broker.ErrInvalidArgument, reason)
	}

	if err := c.broker.SaveCredential(ctx, c.identity, c.displayName, credential); err != nil {
		return err
	}
	c.logger.Info("credential saved", zap.String("identity", c.identity), logging.Secret("credential", credential))

	return c.refreshToken(ctx)
}

// Close revokes the cached token without waiting and rejects further turns.
func (c *Conversation) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	token := c.token
	c.token = ""
	c.mu.Unlock()

	c.revokeAsync(token)
}

// acquireAccess prepares the current mode: exam and teacher need nothing,
// practice silently issues a token when a credential is on file and asks for
// one otherwise.
func (c *Conversation) acquireAccess(ctx context.Context) {
	c.mu.Lock()
	m, epoch := c.mode, c.epoch
	c.mu.Unlock()

	if m.UsesSharedPool() {
		c.ui.SetConnected(true)
		return
	}

	has, err := c.broker.HasCredential(ctx, c.identity)
	if err != nil {
		c.ui.SetConnected(false)
		c.ui.ShowError(err)
		return
	}
	if !has {
		c.ui.SetConnected(false)
		c.ui.RequestCredential(practiceNeedsKeyText)
		return
	}

	token, err := c.broker.IssueToken(ctx, c.identity)
	if err != nil {
		c.ui.SetConnected(false)
		c.ui.ShowError(err)
		return
	}
	if !c.installToken(token, epoch) {
		return
	}
	c.ui.SetConnected(true)
}

func (c *Conversation) refreshToken(ctx context.Context) error {
	c.mu.Lock()
	epoch := c.epoch
	c.mu.Unlock()

	token, err := c.broker.IssueToken(ctx, c.identity)
	if err != nil {
		c.ui.SetConnected(false)
		return err
	}
	if !c.installToken(token, epoch) {
		return ErrConversationReset
	}
	c.ui.SetConnected(true)
	return nil
}

// installToken caches token unless the epoch moved on or the conversation
// closed meanwhile, in which case the token is revoked instead. A token
// replaced by a newer one is revoked too.
func (c *Conversation) installToken(token string, epoch uint64) bool {
	c.mu.Lock()
	if c.closed || c.epoch != epoch {
		c.mu.Unlock()
		c.revokeAsync(token)
		return false
	}
	old := c.token
	c.token = token
	c.mu.Unlock()

	if old != "" && old != token {
		c.revokeAsync(old)
	}
	return true
}

func (c *Conversation) revokeAsync(token string) {
	if token == "" {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), c.revokeTimeout)
		defer cancel()
		if err := c.broker.RevokeToken(ctx, token); err != nil {
			c.logger.Debug("revoke failed", zap.Error(err))
		}
	}()
}

func (c *Conversation) contextPrompt(m chat.Mode, text string) string {
	if m != chat.ModeExam || c.role != RoleLearner || c.problems == nil {
		return text
	}
	problem, ok := c.problems.CurrentProblem()
	if !ok {
		return text
	}
	return BuildContextPrompt(problem, text)
}

func (c *Conversation) clearTranscript() {
	if err := c.transcript.Clear(); err != nil {
		c.logger.Warn("failed to clear transcript", zap.Error(err))
	}
}

func (c *Conversation) greeting(m chat.Mode) string {
	if p, ok := c.profiles.Find(m); ok {
		return p.Greet(c.displayName)
	}
	return "Xin chào " + c.displayName + "!"
}

func (c *Conversation) profileName(m chat.Mode) string {
	if p, ok := c.profiles.Find(m); ok {
		return p.Name
	}
	return m.String()
}
