// Package session persists conversation transcripts on disk. Each
// working directory gets its own slug directory under the store root,
// holding one JSONL transcript per session plus an index.json of
// summaries for fast listing.
package session

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ternlabs/tern/fsedit"
	"github.com/ternlabs/tern/llm"
)

var (
	// ErrNotFound means no session matched the given id or prefix.
	ErrNotFound = errors.New("session not found")

	// ErrAmbiguous means an id prefix matched more than one session.
	ErrAmbiguous = errors.New("session id prefix is ambiguous")
)

const previewLimit = 80

// Entry summarizes one stored session for listing and resolution.
type Entry struct {
	ID           string    `json:"id"`
	Preview      string    `json:"preview"`
	MessageCount int       `json:"message_count"`
	Created      time.Time `json:"created"`
	Modified     time.Time `json:"modified"`
	Branch       string    `json:"branch,omitempty"`
}

// Store reads and writes sessions for one working directory.
type Store struct {
	root    string
	workDir string
}

// NewStore creates a Store. root is the base directory for all slug
// directories; empty means ~/.local/share/tern/sessions. workDir is
// the working directory the sessions belong to.
func NewStore(root, workDir string) (*Store, error) {
	if root == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolve home directory: %w", err)
		}
		root = filepath.Join(home, ".local", "share", "tern", "sessions")
	}
	if workDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("resolve working directory: %w", err)
		}
		workDir = wd
	}
	return &Store{root: root, workDir: workDir}, nil
}

// NewID returns a fresh session id.
func NewID() string {
	return uuid.New().String()
}

// ShortID returns the first eight characters of a session id for
// display. Ids shorter than that, which a hand-edited index can
// contain, come back unchanged.
func ShortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}

// Dir returns the slug directory for the store's working directory.
func (s *Store) Dir() string {
	return filepath.Join(s.root, Slug(s.workDir))
}

// Slug converts a working directory path into a filesystem-safe
// directory name by replacing path separators with dashes.
func Slug(workDir string) string {
	slug := filepath.ToSlash(filepath.Clean(workDir))
	slug = strings.ReplaceAll(slug, "/", "-")
	slug = strings.Trim(slug, "-")
	if slug == "" {
		slug = "root"
	}
	return slug
}

// Save writes the transcript and updates the index. An existing
// session with the same id is replaced. Both files are written
// atomically.
func (s *Store) Save(id string, messages []llm.Message) error {
	if id == "" {
		return fmt.Errorf("session id must not be empty")
	}
	dir := s.Dir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create session directory: %w", err)
	}

	var sb strings.Builder
	for _, msg := range messages {
		line, err := json.Marshal(msg)
		if err != nil {
			return fmt.Errorf("encode message: %w", err)
		}
		sb.Write(line)
		sb.WriteString("\n")
	}
	if err := fsedit.WriteAtomic(filepath.Join(dir, id+".jsonl"), sb.String()); err != nil {
		return fmt.Errorf("write transcript: %w", err)
	}

	entries, err := s.readIndex()
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	entry := Entry{
		ID:           id,
		Preview:      firstPromptPreview(messages),
		MessageCount: len(messages),
		Created:      now,
		Modified:     now,
		Branch:       branchLabel(s.workDir),
	}
	replaced := false
	for i := range entries {
		if entries[i].ID == id {
			entry.Created = entries[i].Created
			entries[i] = entry
			replaced = true
			break
		}
	}
	if !replaced {
		entries = append(entries, entry)
	}

	return s.writeIndex(entries)
}

// List returns all sessions for the working directory, most recently
// modified first.
func (s *Store) List() ([]Entry, error) {
	entries, err := s.readIndex()
	if err != nil {
		return nil, err
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Modified.After(entries[j].Modified)
	})
	return entries, nil
}

// Resolve finds the unique session whose id starts with prefix.
func (s *Store) Resolve(prefix string) (*Entry, error) {
	if prefix == "" {
		return nil, fmt.Errorf("%w: empty id", ErrNotFound)
	}
	entries, err := s.readIndex()
	if err != nil {
		return nil, err
	}

	var matches []Entry
	for _, e := range entries {
		if strings.HasPrefix(e.ID, prefix) {
			matches = append(matches, e)
		}
	}
	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, prefix)
	case 1:
		m := matches[0]
		return &m, nil
	default:
		ids := make([]string, len(matches))
		for i, m := range matches {
			ids[i] = ShortID(m.ID)
		}
		return nil, fmt.Errorf("%w: %s matches %s", ErrAmbiguous, prefix, strings.Join(ids, ", "))
	}
}

// Load reads the transcript of the session with the given id prefix.
func (s *Store) Load(prefix string) (*Entry, []llm.Message, error) {
	entry, err := s.Resolve(prefix)
	if err != nil {
		return nil, nil, err
	}

	f, err := os.Open(filepath.Join(s.Dir(), entry.ID+".jsonl"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, fmt.Errorf("%w: transcript missing for %s", ErrNotFound, entry.ID)
		}
		return nil, nil, fmt.Errorf("open transcript: %w", err)
	}
	defer f.Close()

	var messages []llm.Message
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var msg llm.Message
		if err := json.Unmarshal([]byte(line), &msg); err != nil {
			return nil, nil, fmt.Errorf("decode transcript line: %w", err)
		}
		messages = append(messages, msg)
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, fmt.Errorf("read transcript: %w", err)
	}
	return entry, messages, nil
}

// Delete removes the session with the given id prefix.
func (s *Store) Delete(prefix string) error {
	entry, err := s.Resolve(prefix)
	if err != nil {
		return err
	}

	if err := os.Remove(filepath.Join(s.Dir(), entry.ID+".jsonl")); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove transcript: %w", err)
	}

	entries, err := s.readIndex()
	if err != nil {
		return err
	}
	kept := entries[:0]
	for _, e := range entries {
		if e.ID != entry.ID {
			kept = append(kept, e)
		}
	}
	return s.writeIndex(kept)
}

func (s *Store) indexPath() string {
	return filepath.Join(s.Dir(), "index.json")
}

func (s *Store) readIndex() ([]Entry, error) {
	data, err := os.ReadFile(s.indexPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read index: %w", err)
	}
	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("decode index: %w", err)
	}
	return entries, nil
}

func (s *Store) writeIndex(entries []Entry) error {
	if entries == nil {
		entries = []Entry{}
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encode index: %w", err)
	}
	if err := fsedit.WriteAtomic(s.indexPath(), string(data)+"\n"); err != nil {
		return fmt.Errorf("write index: %w", err)
	}
	return nil
}

// firstPromptPreview returns the first user message text, clipped for
// the index.
func firstPromptPreview(messages []llm.Message) string {
	for _, msg := range messages {
		if msg.Role != llm.RoleUser {
			continue
		}
		text := strings.TrimSpace(msg.TextContent())
		if text == "" {
			continue
		}
		text = strings.ReplaceAll(text, "\n", " ")
		if len(text) > previewLimit {
			text = text[:previewLimit] + "..."
		}
		return text
	}
	return ""
}

// branchLabel returns the current git branch of workDir, or empty if
// it is not a repository.
func branchLabel(workDir string) string {
	cmd := exec.Command("git", "rev-parse", "--abbrev-ref", "HEAD")
	cmd.Dir = workDir
	out, err := cmd.Output()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}
