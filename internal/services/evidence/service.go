package evidence

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
)

// Snapshot is the archived copy of a message removed by moderation. It is
// written before the delete goes out so appeals can be reviewed against
// what was actually said.
type Snapshot struct {
	GuildID     string    `json:"guild_id"`
	ChannelID   string    `json:"channel_id"`
	ThreadID    string    `json:"thread_id"`
	MessageID   string    `json:"message_id"`
	AuthorID    string    `json:"author_id"`
	Content     string    `json:"content"`
	Attachments []string  `json:"attachments,omitempty"`
	RemovedBy   string    `json:"removed_by"`
	Reason      string    `json:"reason,omitempty"`
	SentAt      time.Time `json:"sent_at"`
	RemovedAt   time.Time `json:"removed_at"`
}

type Archive struct {
	client *minio.Client
	bucket string
	now    func() time.Time

	ensureOnce sync.Once
	ensureErr  error
}

func NewArchive(client *minio.Client, bucket string) *Archive {
	return &Archive{
		client: client,
		bucket: strings.TrimSpace(bucket),
		now:    time.Now,
	}
}

func (a *Archive) EnsureBucket(ctx context.Context) error {
	if a.client == nil {
		return fmt.Errorf("s3 client is nil")
	}
	if a.bucket == "" {
		return fmt.Errorf("s3 bucket is empty")
	}

	a.ensureOnce.Do(func() {
		exists, err := a.client.BucketExists(ctx, a.bucket)
		if err != nil {
			a.ensureErr = err
			return
		}
		if exists {
			return
		}
		a.ensureErr = a.client.MakeBucket(ctx, a.bucket, minio.MakeBucketOptions{})
	})

	if a.ensureErr != nil {
		return fmt.Errorf("ensure s3 bucket %q: %w", a.bucket, a.ensureErr)
	}

	return nil
}

// Store serializes the snapshot and uploads it, returning the object key.
func (a *Archive) Store(ctx context.Context, snap Snapshot) (string, error) {
	if a.client == nil {
		return "", fmt.Errorf("s3 client is nil")
	}
	if snap.GuildID == "" || snap.MessageID == "" {
		return "", fmt.Errorf("invalid evidence snapshot")
	}

	if err := a.EnsureBucket(ctx); err != nil {
		return "", err
	}

	if snap.RemovedAt.IsZero() {
		snap.RemovedAt = a.now().UTC()
	}

	body, err := json.Marshal(snap)
	if err != nil {
		return "", fmt.Errorf("marshal evidence snapshot: %w", err)
	}

	key := objectKey(snap)
	_, err = a.client.PutObject(ctx, a.bucket, key, bytes.NewReader(body), int64(len(body)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return "", fmt.Errorf("put evidence object: %w", err)
	}

	return key, nil
}

func objectKey(snap Snapshot) string {
	thread := snap.ThreadID
	if thread == "" {
		thread = snap.ChannelID
	}
	return fmt.Sprintf("evidence/%s/%s/%s.json", snap.GuildID, thread, uuid.NewString())
}
