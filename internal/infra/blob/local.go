// Package blob 提供了 BlobStore 接口的本地磁盘实现。
package blob

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// LocalBlobStore 将上传文件保存到本地目录，返回 /static/uploads/ 下的
// 引用 URL。对调用方而言它是一个不透明的存储。
type LocalBlobStore struct {
	dir     string // 磁盘目录
	urlBase string // 引用 URL 前缀，例如 "/static/uploads"
}

// NewLocalBlobStore 创建 LocalBlobStore 实例，目录不存在时自动创建。
func NewLocalBlobStore(dir, urlBase string) (*LocalBlobStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("blob store directory cannot be empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("blob: create upload directory %s: %w", dir, err)
	}
	return &LocalBlobStore{
		dir:     dir,
		urlBase: strings.TrimRight(urlBase, "/"),
	}, nil
}

// Save 存储文件并返回引用 URL。
// 文件名会加上 uuid 前缀以避免冲突，并剥离路径分隔符保证安全。
func (s *LocalBlobStore) Save(ctx context.Context, filename string, r io.Reader) (string, error) {
	safeName := sanitizeFilename(filename)
	storedName := fmt.Sprintf("%s_%s", uuid.NewString(), safeName)
	path := filepath.Join(s.dir, storedName)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("blob: create file %s: %w", path, err)
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		// 写入失败时清理残留文件
		os.Remove(path)
		return "", fmt.Errorf("blob: write file %s: %w", path, err)
	}

	return s.urlBase + "/" + storedName, nil
}

// Dir 返回存储目录，供路由注册静态文件服务使用。
func (s *LocalBlobStore) Dir() string { return s.dir }

// sanitizeFilename 剥离路径成分，只保留最后的文件名部分
func sanitizeFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == ".." || name == "/" || name == "" {
		return "upload"
	}
	return name
}
