package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"bpmn-backend/pkg/logger"

	"github.com/google/uuid"
)

// DiagramDisk 把渲染成功的流程图落盘：源文本和图片同名保存
type DiagramDisk struct {
	dir string
}

func NewDiagramDisk(dataDir string) *DiagramDisk {
	return &DiagramDisk{dir: filepath.Join(dataDir, "diagrams")}
}

func (d *DiagramDisk) Init() error {
	if err := os.MkdirAll(d.dir, 0755); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageInit, err)
	}
	logger.Infof("Diagram archive initialized at %s", d.dir)
	return nil
}

func (d *DiagramDisk) Dir() string {
	return d.dir
}

// SaveDiagram 返回图片文件路径
func (d *DiagramDisk) SaveDiagram(ctx context.Context, text string, image []byte, format string) (string, error) {
	if len(image) == 0 {
		return "", ErrInvalidData
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	format = strings.TrimPrefix(strings.ToLower(format), ".")
	if format == "" {
		format = "png"
	}

	name := "bpmn_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	imagePath := filepath.Join(d.dir, name+"."+format)

	if err := writeAtomic(filepath.Join(d.dir, name+".txt"), []byte(text)); err != nil {
		return "", err
	}
	if err := writeAtomic(imagePath, image); err != nil {
		return "", err
	}

	logger.Debugf("Diagram saved to %s", imagePath)
	return imagePath, nil
}

// writeAtomic 先写临时文件再重命名
func writeAtomic(path string, data []byte) error {
	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("%w: %v", ErrFileOperation, err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("%w: %v", ErrFileOperation, err)
	}
	return nil
}
