package session

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/zhouzirui/codetutor/backend/internal/model/chat"
)

// TranscriptSink persists the transcript after every successful turn and
// forgets it when the conversation is reset.
type TranscriptSink interface {
	Save(m chat.Mode, exchanges []chat.Exchange) error
	Clear() error
}

type nopTranscript struct{}

func (nopTranscript) Save(chat.Mode, []chat.Exchange) error { return nil }
func (nopTranscript) Clear() error                          { return nil }

// Transcript is the on-disk form written by FileTranscript.
type Transcript struct {
	Mode      chat.Mode       `yaml:"mode"`
	SavedAt   time.Time       `yaml:"saved_at"`
	Exchanges []chat.Exchange `yaml:"exchanges"`
}

// FileTranscript keeps the latest transcript in a YAML file.
type FileTranscript struct {
	path string
	mu   sync.Mutex
}

// NewFileTranscript stores the transcript at path.
func NewFileTranscript(path string) *FileTranscript {
	return &FileTranscript{path: path}
}

// Save overwrites the file with exchanges.
func (f *FileTranscript) Save(m chat.Mode, exchanges []chat.Exchange) error {
	data, err := yaml.Marshal(Transcript{Mode: m, SavedAt: time.Now().UTC(), Exchanges: exchanges})
	if err != nil {
		return fmt.Errorf("encode transcript: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return fmt.Errorf("create transcript dir: %w", err)
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write transcript: %w", err)
	}
	return os.Rename(tmp, f.path)
}

// Clear removes the file.
func (f *FileTranscript) Clear() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove transcript: %w", err)
	}
	return nil
}

// Load reads the stored transcript. A missing file is an empty transcript.
func (f *FileTranscript) Load() (Transcript, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return Transcript{}, nil
	}
	if err != nil {
		return Transcript{}, fmt.Errorf("read transcript: %w", err)
	}
	var t Transcript
	if err := yaml.Unmarshal(data, &t); err != nil {
		return Transcript{}, fmt.Errorf("decode transcript: %w", err)
	}
	return t, nil
}
