package mailbox

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/minio/minio-go/v7"
)

// ObjectArchiver 把邮件原文存入对象存储，返回对象键。
type ObjectArchiver interface {
	ArchiveMessage(ctx context.Context, msg Message) (string, error)
}

// MinioArchiver 是基于 MinIO 的 ObjectArchiver 实现。
type MinioArchiver struct {
	client *minio.Client
	bucket string
}

// NewMinioArchiver 创建一个新的 MinioArchiver。
func NewMinioArchiver(client *minio.Client, bucket string) *MinioArchiver {
	return &MinioArchiver{client: client, bucket: bucket}
}

// ArchiveMessage 以 JSON 形式保存一封邮件，键为 emails/<message id>.json。
func (a *MinioArchiver) ArchiveMessage(ctx context.Context, msg Message) (string, error) {
	data, err := json.MarshalIndent(msg, "", "  ")
	if err != nil {
		return "", err
	}

	key := fmt.Sprintf("emails/%s.json", msg.ID)
	_, err = a.client.PutObject(ctx, a.bucket, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: "application/json"})
	if err != nil {
		return "", fmt.Errorf("归档邮件到 MinIO 失败: %w", err)
	}
	return key, nil
}
