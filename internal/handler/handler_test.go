package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crm-gateway-go/internal/apperror"
	"crm-gateway-go/internal/config"
	"crm-gateway-go/internal/model"
	"crm-gateway-go/internal/service"
	"crm-gateway-go/pkg/database"
	"crm-gateway-go/pkg/tasks"
)

type stubQueryService struct {
	rows []database.Row
	err  error
	sql  string
}

func (s *stubQueryService) Execute(_ context.Context, _ database.Options, sql string, _ []any) ([]database.Row, error) {
	s.sql = sql
	return s.rows, s.err
}

type trackedBody struct {
	io.Reader
	closed int
}

func (b *trackedBody) Close() error {
	b.closed++
	return nil
}

type stubFileService struct {
	download *service.FileDownload
	err      error
	opts     database.Options
}

func (s *stubFileService) Retrieve(_ context.Context, opts database.Options, _ string) (*service.FileDownload, error) {
	s.opts = opts
	return s.download, s.err
}

type stubDocumentService struct {
	doc     []byte
	err     error
	locator string
}

func (s *stubDocumentService) Generate(_ context.Context, locator, _, _ string) ([]byte, error) {
	s.locator = locator
	return s.doc, s.err
}

var testFirebird = config.FirebirdConfig{User: "SYSDBA", Password: "masterkey", DefaultPort: 3050}

func newTestRouter(q service.QueryService, f service.FileService, d service.DocumentService) *gin.Engine {
	return newRouterWithRecorder(service.NewAccessRecorder(nil), q, f, d)
}

func newRouterWithRecorder(recorder *service.AccessRecorder, q service.QueryService, f service.FileService, d service.DocumentService) *gin.Engine {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.GET("/health", Health)
	r.GET("/test", Health)
	api := r.Group("/api/dbase")
	api.POST("/query", NewQueryHandler(q, recorder, testFirebird).Query)
	api.POST("/files/fetch", NewFileHandler(f, recorder, testFirebird).Fetch)
	api.POST("/generate-document", NewDocumentHandler(d, recorder, testFirebird).Generate)
	return r
}

func post(r *gin.Engine, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

const descriptor = `"type":"crm","token":"abc","client__db_host":"db.local","client__db_port":"3050","client__db_path":"/data/crm.fdb"`

func TestHealth(t *testing.T) {
	r := newTestRouter(nil, nil, nil)
	for _, path := range []string{"/health", "/test"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "OK", w.Body.String())
	}
}

func TestQuery(t *testing.T) {
	q := &stubQueryService{rows: []database.Row{{"id": 1, "name": "ACME"}}}
	r := newTestRouter(q, nil, nil)

	w := post(r, "/api/dbase/query", `{`+descriptor+`,"sql":"SELECT ID, NAME FROM CUSTOMERS","params":[]}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[{"id":1,"name":"ACME"}]`, w.Body.String())
	assert.Equal(t, "SELECT ID, NAME FROM CUSTOMERS", q.sql)

	assert.Equal(t, http.StatusBadRequest, post(r, "/api/dbase/query", `{`+descriptor+`,"sql":"  "}`).Code)
	assert.Equal(t, http.StatusBadRequest, post(r, "/api/dbase/query", `{not json`).Code)
	assert.Equal(t, http.StatusBadRequest, post(r, "/api/dbase/query", `{"client__db_port":"abc","sql":"SELECT 1"}`).Code)
}

func TestQuery_Errors(t *testing.T) {
	testCases := []struct {
		err       error
		wantTitle string
	}{
		{err: apperror.Connection("db.connect", assert.AnError), wantTitle: "Database connection failed"},
		{err: apperror.Query("db.query", assert.AnError), wantTitle: "Query execution failed"},
	}

	for _, tc := range testCases {
		r := newTestRouter(&stubQueryService{err: tc.err}, nil, nil)
		w := post(r, "/api/dbase/query", `{`+descriptor+`,"sql":"SELECT 1 FROM RDB$DATABASE"}`)
		assert.Equal(t, http.StatusInternalServerError, w.Code)

		body := decode(t, w)
		assert.Equal(t, tc.wantTitle, body["error"])
		assert.Contains(t, body["details"], assert.AnError.Error())
	}
}

func TestFetch(t *testing.T) {
	payload := []byte("%PDF-1.4\x00\xff")
	body := &trackedBody{Reader: strings.NewReader(string(payload))}
	f := &stubFileService{download: &service.FileDownload{
		Name:     "report 2024.pdf",
		Size:     int64(len(payload)),
		Location: model.StorageInDatabase,
		Body:     body,
	}}
	r := newTestRouter(nil, f, nil)

	w := post(r, "/api/dbase/files/fetch", `{`+descriptor+`,"fileId":7}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, payload, w.Body.Bytes())
	assert.Equal(t, "application/octet-stream", w.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="report 2024.pdf"`, w.Header().Get("Content-Disposition"))
	assert.Equal(t, "10", w.Header().Get("Content-Length"))
	assert.Equal(t, 1, body.closed)
	assert.Equal(t, "db.local", f.opts.Host)
	assert.Equal(t, 3050, f.opts.Port)
}

func TestFetch_NonASCIIName(t *testing.T) {
	f := &stubFileService{download: &service.FileDownload{
		Name: "счёт.pdf",
		Size: -1,
		Body: &trackedBody{Reader: strings.NewReader("x")},
	}}
	r := newTestRouter(nil, f, nil)

	w := post(r, "/api/dbase/files/fetch", `{`+descriptor+`,"fileId":"7"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "filename*=utf-8''")
}

func TestFetch_Errors(t *testing.T) {
	testCases := []struct {
		name     string
		err      error
		wantCode int
	}{
		{name: "index miss", err: apperror.NotFound("file.blob", apperror.CauseIndex, "file not found"), wantCode: http.StatusNotFound},
		{name: "catalog miss", err: apperror.NotFound("file.catalog", apperror.CauseCatalog, "file is missing from catalog"), wantCode: http.StatusNotFound},
		{name: "storage", err: apperror.Storage("file.catalog", "catalog read failed", assert.AnError), wantCode: http.StatusInternalServerError},
		{name: "connection", err: apperror.Connection("db.connect", assert.AnError), wantCode: http.StatusInternalServerError},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			r := newTestRouter(nil, &stubFileService{err: tc.err}, nil)
			w := post(r, "/api/dbase/files/fetch", `{`+descriptor+`,"fileId":"7"}`)
			assert.Equal(t, tc.wantCode, w.Code)
			body := decode(t, w)
			assert.NotEmpty(t, body["error"])
			assert.Equal(t, string(apperror.KindOf(tc.err)), body["category"])
		})
	}

	r := newTestRouter(nil, &stubFileService{}, nil)
	assert.Equal(t, http.StatusBadRequest, post(r, "/api/dbase/files/fetch", `{`+descriptor+`}`).Code)
}

func TestGenerateDocument(t *testing.T) {
	d := &stubDocumentService{doc: []byte("abc")}
	r := newTestRouter(nil, nil, d)

	w := post(r, "/api/dbase/generate-document", `{`+descriptor+`,"reportName":"invoice","recordId":15}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "YWJj", decode(t, w)["document"])
	assert.Equal(t, "db.local/3050:/data/crm.fdb", d.locator)
}

func TestGenerateDocument_BadRequest(t *testing.T) {
	r := newTestRouter(nil, nil, &stubDocumentService{})

	assert.Equal(t, http.StatusBadRequest, post(r, "/api/dbase/generate-document", `{`+descriptor+`,"recordId":15}`).Code)
	assert.Equal(t, http.StatusBadRequest, post(r, "/api/dbase/generate-document", `{`+descriptor+`,"reportName":"invoice"}`).Code)
	assert.Equal(t, http.StatusBadRequest, post(r, "/api/dbase/generate-document", `{"reportName":"invoice","recordId":15}`).Code)
}

func TestGenerateDocument_Errors(t *testing.T) {
	testCases := []error{
		apperror.Process("document.generate", "generator exited with code 1: disk full", nil),
		apperror.Validation("document.decode", "generator output is not valid base64 text"),
	}

	for _, err := range testCases {
		r := newTestRouter(nil, nil, &stubDocumentService{err: err})
		w := post(r, "/api/dbase/generate-document", `{`+descriptor+`,"reportName":"invoice","recordId":"15"}`)
		assert.Equal(t, http.StatusInternalServerError, w.Code)
		e, _ := apperror.As(err)
		assert.Equal(t, e.Details(), decode(t, w)["details"])
	}
}

// blockingPublisher 模拟不可达的 broker，Publish 阻塞到 release 被关闭。
type blockingPublisher struct {
	release chan struct{}
	calls   chan tasks.AccessEvent
}

func (p *blockingPublisher) Publish(_ context.Context, event tasks.AccessEvent) error {
	<-p.release
	p.calls <- event
	return nil
}

func TestResponseNotDelayedByJournal(t *testing.T) {
	pub := &blockingPublisher{release: make(chan struct{}), calls: make(chan tasks.AccessEvent, 2)}
	recorder := service.NewAccessRecorder(pub)
	q := &stubQueryService{rows: []database.Row{{"id": 1}}}
	d := &stubDocumentService{doc: []byte("abc")}
	r := newRouterWithRecorder(recorder, q, nil, d)

	start := time.Now()
	w := post(r, "/api/dbase/query", `{`+descriptor+`,"sql":"SELECT ID FROM CUSTOMERS"}`)
	require.Equal(t, http.StatusOK, w.Code)
	w = post(r, "/api/dbase/generate-document", `{`+descriptor+`,"reportName":"invoice","recordId":15}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Less(t, time.Since(start), 500*time.Millisecond)

	close(pub.release)
	recorder.Wait()
	require.Len(t, pub.calls, 2)
	kinds := []string{(<-pub.calls).Kind, (<-pub.calls).Kind}
	assert.ElementsMatch(t, []string{tasks.KindQuery, tasks.KindDocumentGenerate}, kinds)
}
