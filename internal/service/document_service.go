package service

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"crm-gateway-go/internal/apperror"
	"crm-gateway-go/pkg/generator"
	"crm-gateway-go/pkg/log"
)

var base64Text = regexp.MustCompile(`^[A-Za-z0-9+/=]+$`)

// DocumentService 接口定义了文档生成相关的业务操作。
type DocumentService interface {
	// Generate 调用外部生成程序，返回解码后的文档内容。
	Generate(ctx context.Context, locator, reportName, recordID string) ([]byte, error)
}

type documentService struct {
	runner generator.Runner
}

// NewDocumentService 创建一个新的 DocumentService 实例。
func NewDocumentService(runner generator.Runner) DocumentService {
	return &documentService{runner: runner}
}

func (s *documentService) Generate(ctx context.Context, locator, reportName, recordID string) ([]byte, error) {
	const op = "document.generate"

	if locator == "" || reportName == "" || recordID == "" {
		return nil, apperror.Validation(op, "database locator, reportName and recordId are required")
	}

	res, err := s.runner.Run(ctx, locator, reportName, recordID)
	if err != nil {
		var startErr *generator.StartError
		switch {
		case errors.Is(err, generator.ErrExecutableNotFound):
			log.Errorw("文档生成程序不存在", "error", err)
			return nil, apperror.Process(op, "generator executable not found", nil)
		case errors.As(err, &startErr):
			log.Errorw("文档生成程序启动失败", "error", err)
			return nil, apperror.Process(op, "failed to start generator", startErr.Err)
		case errors.Is(err, generator.ErrTimeout):
			log.Errorw("文档生成超时，进程已终止", "report", reportName, "recordId", recordID)
			return nil, apperror.Process(op, "generator timed out", nil)
		default:
			log.Errorw("文档生成进程异常结束", "error", err)
			return nil, apperror.Process(op, "generator failed", err)
		}
	}

	if res.ExitCode != 0 {
		stderr := strings.TrimSpace(res.Stderr)
		log.Errorw("文档生成程序返回非零退出码", "exitCode", res.ExitCode, "stderr", stderr, "report", reportName)
		return nil, apperror.Process(op, fmt.Sprintf("generator exited with code %d: %s", res.ExitCode, stderr), nil)
	}

	if strings.TrimSpace(res.Stdout) == "" {
		log.Errorw("文档生成程序没有输出", "report", reportName, "recordId", recordID)
		return nil, apperror.Process(op, "generator produced no output", nil)
	}

	doc, err := DecodeDocument(res.Stdout)
	if err != nil {
		log.Errorw("文档生成结果校验失败", "error", err, "report", reportName)
		return nil, err
	}
	log.Infow("文档生成成功", "report", reportName, "recordId", recordID, "bytes", len(doc), "duration", res.Duration.String())
	return doc, nil
}

// DecodeDocument 去掉首尾空白和所有 CR/LF 后校验 base64 字母表，校验通过才解码。
func DecodeDocument(output string) ([]byte, error) {
	const op = "document.decode"

	text := strings.TrimSpace(output)
	text = strings.NewReplacer("\r", "", "\n", "").Replace(text)
	if !base64Text.MatchString(text) {
		return nil, apperror.Validation(op, "generator output is not valid base64 text")
	}

	doc, err := base64.StdEncoding.DecodeString(text)
	if err != nil {
		return nil, apperror.Validation(op, "generator output is not valid base64 text: "+err.Error())
	}
	return doc, nil
}
