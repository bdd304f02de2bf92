package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/zhouzirui/codetutor/backend/internal/model/broker"
	"github.com/zhouzirui/codetutor/backend/internal/model/chat"
	"github.com/zhouzirui/codetutor/backend/internal/model/mode"
	"github.com/zhouzirui/codetutor/backend/internal/session"
)

func newAskCmd() *cobra.Command {
	var (
		modeFlag string
		token    string
	)

	cmd := &cobra.Command{
		Use:   "ask PROMPT",
		Short: "Send a single prompt without history",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, ok := chat.ParseMode(modeFlag)
			if !ok {
				return fmt.Errorf("%w: unknown mode %q", broker.ErrInvalidArgument, modeFlag)
			}
			resp, err := newClient().Ask(cmd.Context(), m, strings.Join(args, " "), token, nil)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, botStyle.Render(resp.Reply))
			fmt.Fprintln(out, mutedStyle.Render("model: "+resp.Model))
			return nil
		},
	}
	cmd.Flags().StringVar(&modeFlag, "mode", string(chat.ModeExam), "practice, exam or teacher")
	cmd.Flags().StringVar(&token, "token", "", "session token (practice mode)")
	return cmd
}

func newChatCmd() *cobra.Command {
	var (
		examOnStart    bool
		problemFile    string
		transcriptFile string
	)

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive conversation",
		Long: `Start an interactive conversation. Slash commands:
  /exam on|off   show or hide the exam indicator (switches practice and exam)
  /clear         wipe the conversation, keep the token
  /key VALUE     submit a personal credential
  /quit          leave`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var problems session.ProblemSource
			if problemFile != "" {
				p, err := loadProblem(problemFile)
				if err != nil {
					return err
				}
				problems = p
			}

			var transcript session.TranscriptSink
			if transcriptFile != "" {
				transcript = session.NewFileTranscript(transcriptFile)
			}

			return runChat(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout(), chatOptions{
				examOnStart: examOnStart,
				problems:    problems,
				transcript:  transcript,
			})
		},
	}
	cmd.Flags().BoolVar(&examOnStart, "exam", false, "start with the exam indicator present")
	cmd.Flags().StringVar(&problemFile, "problem", "", "YAML file describing the current problem")
	cmd.Flags().StringVar(&transcriptFile, "transcript", "", "file the conversation is saved to")
	return cmd
}

type chatOptions struct {
	examOnStart bool
	problems    session.ProblemSource
	transcript  session.TranscriptSink
}

func runChat(ctx context.Context, in io.Reader, out io.Writer, opts chatOptions) error {
	c := newClient()

	profiles, err := c.Modes(ctx)
	if err != nil {
		logger.Warn("fetch modes failed, using built-in profiles", zap.Error(err))
		profiles = mode.Seed()
	}
	store := mode.NewMemoryStore(profiles)

	var exam atomic.Bool
	exam.Store(opts.examOnStart)

	detector := session.NewDetector(identity, session.EnvironmentFunc(exam.Load),
		session.WithDetectorLogger(logger))

	ui := newTerminalUI(out, store, detector.Mode)
	conv, err := session.New(session.Config{
		Identity:    identity,
		DisplayName: displayName,
		Mode:        detector.Mode(),
		Role:        detector.Role(),
		Broker:      c,
		UI:          ui,
		Profiles:    store,
		Transcript:  opts.transcript,
		Problems:    opts.problems,
		Logger:      logger,
	})
	if err != nil {
		return err
	}
	defer conv.Close()

	conv.Attach(detector)
	detector.Start(ctx)
	defer detector.Stop()

	ui.showBadge()
	conv.Open(ctx)

	scanner := bufio.NewScanner(in)
	for {
		ui.prompt()
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			quit, err := handleCommand(ctx, line, conv, detector, &exam, ui)
			if err != nil {
				ui.ShowError(err)
			}
			if quit {
				return nil
			}
			continue
		}

		// 失败已经由 UI 展示
		_, _ = conv.Send(ctx, line)
	}
}

func handleCommand(ctx context.Context, line string, conv *session.Conversation, detector *session.Detector, exam *atomic.Bool, ui *terminalUI) (bool, error) {
	fields := strings.Fields(line)
	switch fields[0] {
	case "/quit", "/exit":
		return true, nil
	case "/clear":
		conv.Clear()
		ui.ShowNotice("Lịch sử trò chuyện đã được xóa")
	case "/key":
		if len(fields) < 2 {
			return false, errors.New("usage: /key VALUE")
		}
		if err := conv.SubmitCredential(ctx, fields[1]); err != nil {
			return false, err
		}
		ui.ShowNotice("API key đã được lưu")
	case "/exam":
		if len(fields) < 2 || (fields[1] != "on" && fields[1] != "off") {
			return false, errors.New("usage: /exam on|off")
		}
		exam.Store(fields[1] == "on")
		kind := session.NavigationPush
		if fields[1] == "off" {
			kind = session.NavigationPop
		}
		if _, changed := detector.Navigate(ctx, kind); !changed {
			ui.ShowNotice("Chế độ không thay đổi: " + string(conv.Mode()))
		}
	case "/mode":
		ui.showBadge()
	default:
		return false, fmt.Errorf("unknown command %s", fields[0])
	}
	return false, nil
}

type staticProblem struct {
	problem session.Problem
}

func (p staticProblem) CurrentProblem() (session.Problem, bool) {
	return p.problem, p.problem.Description != ""
}

func loadProblem(path string) (staticProblem, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return staticProblem{}, fmt.Errorf("read problem file: %w", err)
	}
	var p session.Problem
	if err := yaml.Unmarshal(data, &p); err != nil {
		return staticProblem{}, fmt.Errorf("parse problem file %s: %w", path, err)
	}
	return staticProblem{problem: p}, nil
}

// terminalUI renders conversation output with lipgloss.
type terminalUI struct {
	mu      sync.Mutex
	out     io.Writer
	store   mode.Store
	current func() chat.Mode
}

var _ session.UI = (*terminalUI)(nil)

func newTerminalUI(out io.Writer, store mode.Store, current func() chat.Mode) *terminalUI {
	return &terminalUI{out: out, store: store, current: current}
}

func (u *terminalUI) ShowNotice(text string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	fmt.Fprintln(u.out, noticeStyle.Render(text))
}

func (u *terminalUI) ShowReply(text string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	fmt.Fprintln(u.out, botStyle.Render(text))
	for _, link := range session.ExtractResourceLinks(text) {
		line := "▶ " + link.Title + " " + videoStyle.Render(link.URL)
		if link.VideoID != "" {
			line += mutedStyle.Render(" (" + link.VideoID + ")")
		}
		fmt.Fprintln(u.out, line)
	}
}

func (u *terminalUI) ShowError(err error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	fmt.Fprintln(u.out, errorStyle.Render("✗ "+err.Error()))
}

func (u *terminalUI) RequestCredential(reason string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	fmt.Fprintln(u.out, noticeStyle.Render(reason+"\n/key <API key>"))
}

func (u *terminalUI) SetConnected(connected bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if connected {
		fmt.Fprintln(u.out, okStyle.Render("● connected"))
		return
	}
	fmt.Fprintln(u.out, mutedStyle.Render("○ not connected"))
}

func (u *terminalUI) showBadge() {
	u.mu.Lock()
	defer u.mu.Unlock()
	if p, ok := u.store.Find(u.current()); ok {
		fmt.Fprintln(u.out, badge(p))
	}
}

func (u *terminalUI) prompt() {
	u.mu.Lock()
	defer u.mu.Unlock()
	fmt.Fprint(u.out, "> ")
}
