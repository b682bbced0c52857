package handler

import (
	"encoding/base64"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"crm-gateway-go/internal/config"
	"crm-gateway-go/internal/model"
	"crm-gateway-go/internal/service"
	"crm-gateway-go/pkg/tasks"
)

// DocumentHandler 负责文档生成接口。
type DocumentHandler struct {
	docService service.DocumentService
	recorder   *service.AccessRecorder
	fbCfg      config.FirebirdConfig
}

// NewDocumentHandler 创建一个新的 DocumentHandler 实例。
func NewDocumentHandler(docService service.DocumentService, recorder *service.AccessRecorder, fbCfg config.FirebirdConfig) *DocumentHandler {
	return &DocumentHandler{docService: docService, recorder: recorder, fbCfg: fbCfg}
}

// Generate 调用外部生成程序并以 base64 返回文档。
func (h *DocumentHandler) Generate(c *gin.Context) {
	start := time.Now()

	var req model.GenerateDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body", err)
		return
	}
	opts, err := req.Options(h.fbCfg)
	if err != nil {
		badRequest(c, "invalid connection descriptor", err)
		return
	}

	locator := opts.Locator()
	reportName := strings.TrimSpace(req.ReportName)
	recordID := req.RecordID.String()
	if locator == "" || reportName == "" || recordID == "" {
		badRequest(c, "reportName, recordId, client__db_host and client__db_path are required", nil)
		return
	}

	doc, err := h.docService.Generate(c.Request.Context(), locator, reportName, recordID)
	h.recorder.Record(c.Request.Context(), tasks.KindDocumentGenerate, opts, reportName+"/"+recordID, start, err)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"document": base64.StdEncoding.EncodeToString(doc)})
}
