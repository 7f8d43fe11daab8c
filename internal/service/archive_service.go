package service

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
)

// ArchiveService 导入文件归档。原始工作簿存入对象存储，
// 对象键写进历史备注，审计时可回取原件。client为nil时跳过归档。
type ArchiveService struct {
	client *minio.Client
	bucket string
}

func NewArchiveService(client *minio.Client, bucket string) *ArchiveService {
	return &ArchiveService{client: client, bucket: bucket}
}

// Store 归档文件，返回对象键。未配置对象存储时返回空串。
func (s *ArchiveService) Store(ctx context.Context, prefix string, data []byte) (string, error) {
	if s == nil || s.client == nil || len(data) == 0 {
		return "", nil
	}
	key := fmt.Sprintf("%s/%s-%s.xlsx", prefix, time.Now().Format("20060102"), uuid.New().String()[:8])
	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"})
	if err != nil {
		return "", fmt.Errorf("%w: 归档失败: %v", ErrIOFailed, err)
	}
	return key, nil
}
