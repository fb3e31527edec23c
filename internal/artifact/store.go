// Package artifact persists finalized interview results for the (excluded)
// results view.
package artifact

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/supabase-community/supabase-go"

	"github.com/yatharthsameer/ai-voice-interviewer-FE/internal/interview"
)

// Store saves one finalized result keyed by session id.
type Store interface {
	Save(sessionID string, r interview.Result) error
}

// SupabaseStore uploads result records as JSON objects to a Supabase
// storage bucket.
type SupabaseStore struct {
	client *supabase.Client
	bucket string
}

// NewSupabaseStore constructs the store.
func NewSupabaseStore(baseURL, serviceKey, bucket string) (*SupabaseStore, error) {
	client, err := supabase.NewClient(baseURL, serviceKey, &supabase.ClientOptions{})
	if err != nil {
		return nil, fmt.Errorf("artifact: create supabase client: %w", err)
	}
	return &SupabaseStore{client: client, bucket: bucket}, nil
}

func (s *SupabaseStore) Save(sessionID string, r interview.Result) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("artifact: marshal result: %w", err)
	}
	key := fmt.Sprintf("interviews/%s.json", sessionID)
	if _, err := s.client.Storage.UploadFile(s.bucket, key, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("artifact: upload %s: %w", key, err)
	}
	return nil
}

// FileStore writes result records to a local directory. Used for local
// development and tests.
type FileStore struct {
	Dir string
}

func (s FileStore) Save(sessionID string, r interview.Result) error {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return fmt.Errorf("artifact: create dir: %w", err)
	}
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("artifact: marshal result: %w", err)
	}
	path := filepath.Join(s.Dir, sessionID+".json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("artifact: write %s: %w", path, err)
	}
	return nil
}
