package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"decision-engine/internal/config"
	"decision-engine/internal/models"
)

// EvidenceArchive stores a durable JSON copy of every binding trigger
// decision in object storage for audit and dispute resolution. Archiving is
// best effort and must never block the payout path.
type EvidenceArchive struct {
	client *minio.Client
	bucket string
}

// NewEvidenceArchive initializes the MinIO client and ensures the evidence
// bucket exists.
func NewEvidenceArchive(cfg config.MinioConfig) (*EvidenceArchive, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.Secure,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize MinIO client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	exists, err := client.BucketExists(ctx, cfg.EvidenceBucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check evidence bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.EvidenceBucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create evidence bucket %s: %w", cfg.EvidenceBucket, err)
		}
		slog.Info("Created evidence bucket", "bucket", cfg.EvidenceBucket)
	}

	slog.Info("Connected to MinIO", "endpoint", cfg.Endpoint, "bucket", cfg.EvidenceBucket)

	return &EvidenceArchive{
		client: client,
		bucket: cfg.EvidenceBucket,
	}, nil
}

// archivedEvaluation is the stored document shape.
type archivedEvaluation struct {
	Evaluation *models.TriggerEvaluation     `json:"evaluation"`
	Snapshot   *models.EnvironmentalSnapshot `json:"snapshot"`
	ArchivedAt time.Time                     `json:"archived_at"`
}

// ArchiveEvaluation writes the evaluation and its source snapshot as one
// JSON object keyed by policy and evaluation ID.
func (a *EvidenceArchive) ArchiveEvaluation(ctx context.Context, evaluation *models.TriggerEvaluation, snapshot *models.EnvironmentalSnapshot) error {
	doc := archivedEvaluation{
		Evaluation: evaluation,
		Snapshot:   snapshot,
		ArchivedAt: time.Now(),
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal evidence document: %w", err)
	}

	objectName := fmt.Sprintf("evidence/%s/%s.json", evaluation.PolicyID, evaluation.ID)
	_, err = a.client.PutObject(ctx, a.bucket, objectName, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: "application/json"})
	if err != nil {
		return fmt.Errorf("failed to upload evidence %s: %w", objectName, err)
	}

	slog.Info("Evidence archived", "object", objectName, "bucket", a.bucket)
	return nil
}

// GetEvidence retrieves an archived evidence document.
func (a *EvidenceArchive) GetEvidence(ctx context.Context, policyID, evaluationID string) ([]byte, error) {
	objectName := fmt.Sprintf("evidence/%s/%s.json", policyID, evaluationID)

	object, err := a.client.GetObject(ctx, a.bucket, objectName, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get evidence %s: %w", objectName, err)
	}
	defer object.Close()

	data, err := io.ReadAll(object)
	if err != nil {
		return nil, fmt.Errorf("failed to read evidence %s: %w", objectName, err)
	}

	return data, nil
}
