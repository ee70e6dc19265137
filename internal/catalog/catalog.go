// Package catalog manages the brain catalog: one vector collection per
// brain, addressed through aliases, plus a registry collection that maps
// ingested files to brains for listing and deduplication.
package catalog

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"dev.helix.brainbox/internal/apperrors"
	"dev.helix.brainbox/internal/vectordb"
)

// registryScrollLimit bounds one registry listing page.
const registryScrollLimit = 4000

// BrainInfo identifies a brain by alias and collection id.
type BrainInfo struct {
	BrainName string `json:"brain_name"`
	BrainID   string `json:"brain_id"`
}

// FileInfo identifies an ingested file.
type FileInfo struct {
	FileName string `json:"file_name"`
	FileID   string `json:"file_id"`
}

// Catalog is the brain/file registry over a vector store.
type Catalog struct {
	store      vectordb.Store
	registry   string
	denseDim   uint64
	logger     *logrus.Logger
}

// New creates a catalog. registry names the registry collection; denseDim is
// the dense dimensionality of brain collections.
func New(store vectordb.Store, registry string, denseDim uint64, logger *logrus.Logger) *Catalog {
	if logger == nil {
		logger = logrus.New()
	}
	return &Catalog{store: store, registry: registry, denseDim: denseDim, logger: logger}
}

// EnsureRegistry creates the registry collection if missing. Registry points
// carry payloads only, so the dense space is a one-dimensional placeholder.
func (c *Catalog) EnsureRegistry(ctx context.Context) error {
	if err := c.store.CreateCollection(ctx, c.registry, 1); err != nil {
		return fmt.Errorf("failed to ensure registry collection: %w", err)
	}
	return nil
}

// CreateBrain allocates a brain: a fresh collection named by a new UUID,
// aliased by the human-readable name. A failed alias step is retried once
// and then rolled back by deleting the collection.
func (c *Catalog) CreateBrain(ctx context.Context, brainName string) (string, error) {
	if brainName == "" {
		return "", apperrors.E(apperrors.KindInvalid, "brain name is required")
	}

	aliases, err := c.store.ListAliases(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to list aliases: %w", err)
	}
	for _, a := range aliases {
		if a.Name == brainName {
			return "", apperrors.E(apperrors.KindAlreadyExists,
				fmt.Sprintf("brain %q already exists", brainName))
		}
	}

	brainID := uuid.NewString()
	if err := c.store.CreateCollection(ctx, brainID, c.denseDim); err != nil {
		return "", fmt.Errorf("failed to create collection for brain %q: %w", brainName, err)
	}

	if err := c.store.CreateAlias(ctx, brainName, brainID); err != nil {
		c.logger.WithFields(logrus.Fields{
			"brain_name": brainName,
			"brain_id":   brainID,
		}).WithError(err).Warn("Alias creation failed, retrying once")

		if err = c.store.CreateAlias(ctx, brainName, brainID); err != nil {
			if delErr := c.store.DeleteCollection(ctx, brainID); delErr != nil {
				c.logger.WithField("brain_id", brainID).WithError(delErr).
					Error("Rollback of orphaned collection failed")
			}
			return "", fmt.Errorf("failed to create alias for brain %q: %w", brainName, err)
		}
	}

	c.logger.WithFields(logrus.Fields{
		"brain_name": brainName,
		"brain_id":   brainID,
	}).Info("Brain created")
	return brainID, nil
}

// ListBrains enumerates aliases as brains.
func (c *Catalog) ListBrains(ctx context.Context) ([]BrainInfo, error) {
	aliases, err := c.store.ListAliases(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list aliases: %w", err)
	}
	brains := make([]BrainInfo, 0, len(aliases))
	for _, a := range aliases {
		brains = append(brains, BrainInfo{BrainName: a.Name, BrainID: a.Collection})
	}
	return brains, nil
}

// ResolveBrain turns a brain name or id into a collection id.
func (c *Catalog) ResolveBrain(ctx context.Context, nameOrID string) (string, error) {
	aliases, err := c.store.ListAliases(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to list aliases: %w", err)
	}
	for _, a := range aliases {
		if a.Name == nameOrID {
			return a.Collection, nil
		}
	}

	exists, err := c.store.CollectionExists(ctx, nameOrID)
	if err != nil {
		return "", err
	}
	if !exists || nameOrID == c.registry {
		return "", apperrors.E(apperrors.KindNotFound, fmt.Sprintf("brain %q not found", nameOrID))
	}
	return nameOrID, nil
}

// ListFiles lists the registry entries of a brain, deduplicated by name.
func (c *Catalog) ListFiles(ctx context.Context, brainID string) ([]FileInfo, error) {
	filter := &vectordb.Filter{Must: []vectordb.FieldMatch{
		{Key: "metadata.brain_id", Values: []string{brainID}},
	}}
	entries, err := c.store.Scroll(ctx, c.registry, filter, registryScrollLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to scroll registry: %w", err)
	}

	seen := make(map[string]bool, len(entries))
	files := make([]FileInfo, 0, len(entries))
	for _, e := range entries {
		name := e.Payload.Metadata.FileName
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		files = append(files, FileInfo{FileName: name, FileID: e.Payload.Metadata.PDFID})
	}
	return files, nil
}

// CheckFile reports whether a file name is already registered in a brain.
func (c *Catalog) CheckFile(ctx context.Context, brainID, fileName string) (bool, error) {
	filter := &vectordb.Filter{Must: []vectordb.FieldMatch{
		{Key: "metadata.brain_id", Values: []string{brainID}},
		{Key: "metadata.file_name", Values: []string{fileName}},
	}}
	n, err := c.store.Count(ctx, c.registry, filter)
	if err != nil {
		return false, fmt.Errorf("failed to check registry for %q: %w", fileName, err)
	}
	return n > 0, nil
}

// RegisterFile writes the registry entry for an ingested file. Called only
// after the file's chunks have been upserted.
func (c *Catalog) RegisterFile(ctx context.Context, brainID, fileName, pdfID string) error {
	point := vectordb.Point{
		ID:    uuid.NewString(),
		Dense: []float32{0},
		Payload: vectordb.Payload{
			Metadata: vectordb.Metadata{
				PDFID:    pdfID,
				FileName: fileName,
				BrainID:  brainID,
			},
		},
	}
	if err := c.store.Upsert(ctx, c.registry, []vectordb.Point{point}); err != nil {
		return fmt.Errorf("failed to register file %q: %w", fileName, err)
	}
	c.logger.WithFields(logrus.Fields{
		"brain_id":  brainID,
		"file_name": fileName,
		"pdf_id":    pdfID,
	}).Info("File registered")
	return nil
}

// RegistryCollection exposes the registry collection name.
func (c *Catalog) RegistryCollection() string { return c.registry }
