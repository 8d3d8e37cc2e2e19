package gcp

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/Lllllllleong/documentpreview/internal/models"
)

// ErrDocumentNotFound is returned when no descriptor exists for an id.
var ErrDocumentNotFound = errors.New("document not found")

// NewFirestoreClient creates and returns a new Firestore client for the given project ID.
// It centralizes client creation for all services.
func NewFirestoreClient(ctx context.Context, projectID string) (*firestore.Client, error) {
	if projectID == "" {
		return nil, fmt.Errorf("projectID must be provided to create a firestore client")
	}

	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create Firestore client: %w", err)
	}

	return client, nil
}

// DescriptorRepository stores document descriptors in one Firestore collection.
type DescriptorRepository struct {
	client     *firestore.Client
	collection string
}

func NewDescriptorRepository(client *firestore.Client, collection string) *DescriptorRepository {
	return &DescriptorRepository{client: client, collection: collection}
}

// Get loads the descriptor with the given id.
func (r *DescriptorRepository) Get(ctx context.Context, id string) (*models.DocumentDescriptor, error) {
	snap, err := r.client.Collection(r.collection).Doc(id).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, fmt.Errorf("%w: %s", ErrDocumentNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document %s: %w", id, err)
	}
	return decodeDescriptor(snap)
}

// FindByHash returns the id of a descriptor whose content hash matches.
func (r *DescriptorRepository) FindByHash(ctx context.Context, fileHash string) (string, bool, error) {
	iter := r.client.Collection(r.collection).Where("fileHash", "==", fileHash).Limit(1).Documents(ctx)
	defer iter.Stop()

	snap, err := iter.Next()
	if errors.Is(err, iterator.Done) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to query for duplicates: %w", err)
	}
	return snap.Ref.ID, true, nil
}

// Create stores d under a generated id and sets d.ID.
func (r *DescriptorRepository) Create(ctx context.Context, d *models.DocumentDescriptor) (string, error) {
	ref, _, err := r.client.Collection(r.collection).Add(ctx, d)
	if err != nil {
		return "", fmt.Errorf("failed to create document: %w", err)
	}
	d.ID = ref.ID
	return ref.ID, nil
}

func decodeDescriptor(snap *firestore.DocumentSnapshot) (*models.DocumentDescriptor, error) {
	var d models.DocumentDescriptor
	if err := snap.DataTo(&d); err != nil {
		return nil, fmt.Errorf("failed to decode document %s: %w", snap.Ref.ID, err)
	}
	d.ID = snap.Ref.ID
	return &d, nil
}
