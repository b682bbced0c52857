package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"crm-gateway-go/internal/config"
	"crm-gateway-go/internal/model"
	"crm-gateway-go/internal/service"
	"crm-gateway-go/pkg/log"
	"crm-gateway-go/pkg/tasks"
)

// QueryHandler 负责 SQL 透传接口。
type QueryHandler struct {
	queryService service.QueryService
	recorder     *service.AccessRecorder
	fbCfg        config.FirebirdConfig
}

// NewQueryHandler 创建一个新的 QueryHandler 实例。
func NewQueryHandler(queryService service.QueryService, recorder *service.AccessRecorder, fbCfg config.FirebirdConfig) *QueryHandler {
	return &QueryHandler{queryService: queryService, recorder: recorder, fbCfg: fbCfg}
}

// Query 执行调用方提交的 SQL，返回结果行数组。
func (h *QueryHandler) Query(c *gin.Context) {
	start := time.Now()

	var req model.QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body", err)
		return
	}
	opts, err := req.Options(h.fbCfg)
	if err != nil {
		badRequest(c, "invalid connection descriptor", err)
		return
	}
	if strings.TrimSpace(req.SQL) == "" {
		badRequest(c, "sql is required", nil)
		return
	}
	if req.Params == nil {
		req.Params = []any{}
	}

	log.Debugf("[Query] host=%s path=%s sql=%s", opts.Host, opts.Path, req.SQL)
	rows, err := h.queryService.Execute(c.Request.Context(), opts, req.SQL, req.Params)
	h.recorder.Record(c.Request.Context(), tasks.KindQuery, opts, firstWord(req.SQL), start, err)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rows)
}

// firstWord 只把语句类型（SELECT/UPDATE ...）写入访问日志，不记录完整 SQL。
func firstWord(sql string) string {
	fields := strings.Fields(sql)
	if len(fields) == 0 {
		return ""
	}
	return strings.ToUpper(fields[0])
}
