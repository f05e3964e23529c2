// Package storage holds the run's external persistence collaborators: the
// resume checkpoint sources and the captured-document/object stores.
package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"cloud.google.com/go/firestore"
	"github.com/use-agent/landrec/models"
)

// FileCheckpoint reads the resume checkpoint from a local JSON file of the
// shape {"lastProcessedDate": "06/30/2024"}. Read-only: this core never
// writes checkpoints.
type FileCheckpoint struct {
	Path string
}

func (f FileCheckpoint) Read(_ context.Context) (*models.Checkpoint, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, fmt.Errorf("checkpoint file %s: %w", f.Path, err)
	}
	var cp models.Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("checkpoint file %s: %w", f.Path, err)
	}
	return &cp, nil
}

// FirestoreCheckpoint reads the resume checkpoint from a Firestore
// document. The client lives only for the single read; the checkpoint is
// consumed exactly once per run.
type FirestoreCheckpoint struct {
	Project    string
	Collection string
	Doc        string
}

func (f FirestoreCheckpoint) Read(ctx context.Context) (*models.Checkpoint, error) {
	client, err := firestore.NewClient(ctx, f.Project)
	if err != nil {
		return nil, fmt.Errorf("firestore client: %w", err)
	}
	defer client.Close()

	snap, err := client.Collection(f.Collection).Doc(f.Doc).Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("checkpoint document %s/%s: %w", f.Collection, f.Doc, err)
	}
	var cp models.Checkpoint
	if err := snap.DataTo(&cp); err != nil {
		return nil, fmt.Errorf("checkpoint document %s/%s: %w", f.Collection, f.Doc, err)
	}
	return &cp, nil
}
