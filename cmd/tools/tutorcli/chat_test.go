package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/zhouzirui/codetutor/backend/internal/model/chat"
	"github.com/zhouzirui/codetutor/backend/internal/model/mode"
)

func TestLoadProblem(t *testing.T) {
	path := filepath.Join(t.TempDir(), "problem.yaml")
	body := "title: Tổng hai số\ndescription: Cho hai số nguyên a và b\nconstraints: 0 <= a, b <= 1000\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write problem: %v", err)
	}

	src, err := loadProblem(path)
	if err != nil {
		t.Fatalf("loadProblem returned error: %v", err)
	}
	p, ok := src.CurrentProblem()
	if !ok {
		t.Fatal("expected a problem page")
	}
	if p.Title != "Tổng hai số" || p.Constraints != "0 <= a, b <= 1000" {
		t.Fatalf("unexpected problem: %+v", p)
	}
}

func TestLoadProblemWithoutDescriptionIsNotAProblemPage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "problem.yaml")
	if err := os.WriteFile(path, []byte("title: only a title\n"), 0o600); err != nil {
		t.Fatalf("write problem: %v", err)
	}

	src, err := loadProblem(path)
	if err != nil {
		t.Fatalf("loadProblem returned error: %v", err)
	}
	if _, ok := src.CurrentProblem(); ok {
		t.Fatal("expected no problem without a description")
	}
}

func TestTerminalUIListsVideoLinks(t *testing.T) {
	var buf bytes.Buffer
	ui := newTerminalUI(&buf, mode.NewMemoryStore(mode.Seed()), func() chat.Mode { return chat.ModeTeacher })

	ui.ShowReply("Xem [VIDEO:Hướng dẫn tạo lớp](https://youtu.be/abc123XYZ_-) nhé")

	out := buf.String()
	if !strings.Contains(out, "Hướng dẫn tạo lớp") {
		t.Fatalf("missing link title: %q", out)
	}
	if !strings.Contains(out, "abc123XYZ_-") {
		t.Fatalf("missing video id: %q", out)
	}
}

func TestTerminalUIBadgeFollowsCurrentMode(t *testing.T) {
	var buf bytes.Buffer
	current := chat.ModePractice
	ui := newTerminalUI(&buf, mode.NewMemoryStore(mode.Seed()), func() chat.Mode { return current })

	ui.showBadge()
	current = chat.ModeExam
	ui.showBadge()

	out := buf.String()
	if !strings.Contains(out, "Luyện tập") || !strings.Contains(out, "Thực hành") {
		t.Fatalf("expected both badges, got %q", out)
	}
}

func TestRootCommandRegistersSubcommands(t *testing.T) {
	root := newRootCmd()
	for _, name := range []string{"health", "modes", "save-credential", "ask", "chat"} {
		if cmd, _, err := root.Find([]string{name}); err != nil || cmd.Name() != name {
			t.Fatalf("subcommand %s not registered: %v", name, err)
		}
	}
}
