package handler

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"crm-gateway-go/internal/apperror"
	"crm-gateway-go/internal/config"
	"crm-gateway-go/internal/model"
	"crm-gateway-go/internal/service"
	"crm-gateway-go/pkg/log"
	"crm-gateway-go/pkg/metrics"
	"crm-gateway-go/pkg/tasks"
)

// FileHandler 负责文件下载接口。
type FileHandler struct {
	fileService service.FileService
	recorder    *service.AccessRecorder
	fbCfg       config.FirebirdConfig
}

// NewFileHandler 创建一个新的 FileHandler 实例。
func NewFileHandler(fileService service.FileService, recorder *service.AccessRecorder, fbCfg config.FirebirdConfig) *FileHandler {
	return &FileHandler{fileService: fileService, recorder: recorder, fbCfg: fbCfg}
}

// Fetch 把文件以附件形式流式返回给调用方。
func (h *FileHandler) Fetch(c *gin.Context) {
	start := time.Now()

	var req model.FileFetchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body", err)
		return
	}
	opts, err := req.Options(h.fbCfg)
	if err != nil {
		badRequest(c, "invalid connection descriptor", err)
		return
	}
	fileID := req.FileID.String()
	if fileID == "" {
		badRequest(c, "fileId is required", nil)
		return
	}

	ctx := c.Request.Context()
	download, err := h.fileService.Retrieve(ctx, opts, fileID)
	if err != nil {
		metrics.FileFetchTotal.WithLabelValues("unknown", string(apperror.KindOf(err))).Inc()
		h.recorder.Record(ctx, tasks.KindFileFetch, opts, fileID, start, err)
		respondError(c, err)
		return
	}
	defer download.Body.Close()

	mode := download.Location.String()
	body := &countingReader{r: download.Body}
	headers := map[string]string{"Content-Disposition": contentDisposition(download.Name)}
	c.DataFromReader(http.StatusOK, download.Size, "application/octet-stream", body, headers)
	metrics.FileBytesSent.Add(float64(body.n))

	// 响应头已经发出，传输中途的错误只能记录
	if body.err != nil && !errors.Is(body.err, io.EOF) {
		streamErr := apperror.Storage("file.stream", "stream interrupted", body.err)
		log.Errorw("文件传输中断", "fileId", fileID, "mode", mode, "sent", body.n, "error", body.err)
		metrics.FileFetchTotal.WithLabelValues(mode, string(apperror.KindStorage)).Inc()
		h.recorder.Record(ctx, tasks.KindFileFetch, opts, fileID, start, streamErr)
		return
	}
	metrics.FileFetchTotal.WithLabelValues(mode, tasks.OutcomeOK).Inc()
	h.recorder.Record(ctx, tasks.KindFileFetch, opts, fileID, start, nil)
}

// contentDisposition 生成附件头，非 ASCII 文件名按 RFC 2231 编码。
func contentDisposition(name string) string {
	if v := mime.FormatMediaType("attachment", map[string]string{"filename": name}); v != "" {
		return v
	}
	return "attachment"
}

// countingReader 统计已发送的字节数并保留第一个读错误。
type countingReader struct {
	r   io.Reader
	n   int64
	err error
}

func (r *countingReader) Read(p []byte) (int, error) {
	n, err := r.r.Read(p)
	r.n += int64(n)
	if err != nil && r.err == nil {
		r.err = err
	}
	return n, err
}
