package repository

import (
	"context"
	"io"
)

// BlobStore 定义了上传文件的存储操作。
// 对核心逻辑而言它是一个不透明的存储，只需要返回一个稳定的引用 URL。
type BlobStore interface {
	// Save 存储一个文件并返回可供客户端访问的引用 URL。
	Save(ctx context.Context, filename string, r io.Reader) (string, error)
}
