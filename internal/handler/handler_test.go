package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/portal-api/internal/dto"
	"github.com/noah-isme/portal-api/internal/middleware"
	"github.com/noah-isme/portal-api/internal/models"
	"github.com/noah-isme/portal-api/internal/service"
	"github.com/noah-isme/portal-api/internal/timeline"
	appErrors "github.com/noah-isme/portal-api/pkg/errors"
)

func newGinContext(method, path string, body []byte) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	return c, w
}

func asUser(c *gin.Context, id string, role models.UserRole) {
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: id, Role: role})
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) map[string]json.RawMessage {
	t.Helper()
	var env map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

type scheduleServiceMock struct {
	query dto.ScheduleQuery
	resp  *dto.ScheduleResponse
	hit   bool
	err   error
}

func (m *scheduleServiceMock) Query(ctx context.Context, viewer models.Viewer, q dto.ScheduleQuery) (*dto.ScheduleResponse, bool, error) {
	m.query = q
	return m.resp, m.hit, m.err
}

func TestScheduleHandlerQuery(t *testing.T) {
	mockSvc := &scheduleServiceMock{
		resp: &dto.ScheduleResponse{Range: dto.ScheduleRange{From: "2024-09-02", To: "2024-09-08", Days: 7}, Total: 3},
		hit:  true,
	}
	handler := NewScheduleHandler(mockSvc)

	r := gin.New()
	r.Use(middleware.WithResponseMeta(), func(c *gin.Context) { asUser(c, "s1", models.RoleStudent) })
	r.GET("/schedules", handler.Query)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/schedules?startDate=2024-09-02&endDate=2024-09-08&courseId=c1", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "2024-09-02", mockSvc.query.StartDate)
	assert.Equal(t, "c1", mockSvc.query.CourseID)

	env := decodeEnvelope(t, w)
	assert.Contains(t, string(env["meta"]), `"cacheHit":true`)
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
}

func TestScheduleHandlerReportsSkippedEntries(t *testing.T) {
	mockSvc := &scheduleServiceMock{resp: &dto.ScheduleResponse{Issues: []timeline.ValidationIssue{{Field: "schedule", Index: 1}}}}
	handler := NewScheduleHandler(mockSvc)

	c, w := newGinContext(http.MethodGet, "/schedules/daily?date=2024-09-03", nil)
	asUser(c, "s1", models.RoleStudent)
	middleware.WithResponseMeta()(c)
	handler.Daily(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "2024-09-03", mockSvc.query.Date)
	assert.Contains(t, w.Body.String(), `"skippedEntries":1`)
}

func TestScheduleHandlerMonthlyRequiresMonth(t *testing.T) {
	mockSvc := &scheduleServiceMock{}
	handler := NewScheduleHandler(mockSvc)

	c, w := newGinContext(http.MethodGet, "/schedules/monthly?year=2024", nil)
	asUser(c, "s1", models.RoleStudent)
	handler.Monthly(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), `"field":"month"`)
}

func TestScheduleHandlerRequiresViewer(t *testing.T) {
	handler := NewScheduleHandler(&scheduleServiceMock{})
	c, w := newGinContext(http.MethodGet, "/schedules", nil)
	handler.Query(c)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestScheduleHandlerPropagatesValidation(t *testing.T) {
	verr := appErrors.Clone(appErrors.ErrMalformedDate, "date: not a calendar date")
	verr.Field = "date"
	handler := NewScheduleHandler(&scheduleServiceMock{err: verr})

	c, w := newGinContext(http.MethodGet, "/schedules?date=2024-02-30", nil)
	asUser(c, "s1", models.RoleStudent)
	handler.Query(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "MALFORMED_DATE")
}

type assignmentServiceMock struct {
	views      []timeline.AssignmentView
	query      dto.AssignmentQuery
	submitResp *dto.SubmitResponse
	submitErr  error
	graded     *models.Submission
	gradeArgs  [2]string
}

func (m *assignmentServiceMock) List(ctx context.Context, viewer models.Viewer, query dto.AssignmentQuery) ([]timeline.AssignmentView, *models.Pagination, error) {
	m.query = query
	return m.views, &models.Pagination{Page: 1, PageSize: 20, TotalCount: len(m.views)}, nil
}

func (m *assignmentServiceMock) Get(ctx context.Context, viewer models.Viewer, id string) (*timeline.AssignmentView, error) {
	return nil, appErrors.ErrNotFound
}

func (m *assignmentServiceMock) Create(ctx context.Context, actor models.Viewer, req dto.AssignmentRequest) (*models.Assignment, error) {
	return &models.Assignment{ID: "a1", Title: req.Title}, nil
}

func (m *assignmentServiceMock) Update(ctx context.Context, actor models.Viewer, id string, req dto.AssignmentUpdateRequest) (*models.Assignment, error) {
	return &models.Assignment{ID: id}, nil
}

func (m *assignmentServiceMock) Submit(ctx context.Context, student models.Viewer, id string, req dto.SubmitRequest) (*dto.SubmitResponse, error) {
	return m.submitResp, m.submitErr
}

func (m *assignmentServiceMock) Grade(ctx context.Context, actor models.Viewer, id, studentID string, req dto.GradeRequest) (*models.Submission, error) {
	m.gradeArgs = [2]string{id, studentID}
	return m.graded, nil
}

func (m *assignmentServiceMock) Summary(ctx context.Context, actor models.Viewer, id string) (*dto.AssignmentSummaryResponse, error) {
	return &dto.AssignmentSummaryResponse{Enrolled: 3}, nil
}

func TestAssignmentHandlerList(t *testing.T) {
	mockSvc := &assignmentServiceMock{views: []timeline.AssignmentView{
		{Assignment: timeline.Assignment{ID: "a1", Title: "Essay"}, Status: timeline.AssignmentOverdue},
	}}
	handler := NewAssignmentHandler(mockSvc)

	c, w := newGinContext(http.MethodGet, "/assignments?status=overdue&q=essay&page=1", nil)
	asUser(c, "s1", models.RoleStudent)
	handler.List(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "overdue", mockSvc.query.Status)
	assert.Equal(t, "essay", mockSvc.query.Search)
	env := decodeEnvelope(t, w)
	assert.Contains(t, string(env["data"]), `"status":"overdue"`)
	assert.Contains(t, string(env["pagination"]), `"totalCount":1`)
}

func TestAssignmentHandlerSubmitClosed(t *testing.T) {
	mockSvc := &assignmentServiceMock{submitErr: appErrors.Clone(appErrors.ErrSubmissionClosed, timeline.ReasonDeadlinePassed)}
	handler := NewAssignmentHandler(mockSvc)

	c, w := newGinContext(http.MethodPost, "/assignments/a1/submissions", []byte(`{"content":"late work"}`))
	c.Params = gin.Params{{Key: "id", Value: "a1"}}
	asUser(c, "s1", models.RoleStudent)
	handler.Submit(c)

	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "SUBMISSION_CLOSED")
}

func TestAssignmentHandlerSubmitCreated(t *testing.T) {
	mockSvc := &assignmentServiceMock{submitResp: &dto.SubmitResponse{
		Submission: models.Submission{ID: "sub-1", AttemptNumber: 1},
		View:       timeline.AssignmentView{Status: timeline.AssignmentSubmitted},
	}}
	handler := NewAssignmentHandler(mockSvc)

	c, w := newGinContext(http.MethodPost, "/assignments/a1/submissions", []byte(`{"content":"done"}`))
	c.Params = gin.Params{{Key: "id", Value: "a1"}}
	asUser(c, "s1", models.RoleStudent)
	handler.Submit(c)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"submitted"`)
}

func TestAssignmentHandlerRejectsMalformedBody(t *testing.T) {
	handler := NewAssignmentHandler(&assignmentServiceMock{})

	c, w := newGinContext(http.MethodPost, "/assignments", []byte(`{"title":`))
	asUser(c, "t1", models.RoleTeacher)
	handler.Create(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "VALIDATION_ERROR")
}

func TestAssignmentHandlerGradeUsesPathParams(t *testing.T) {
	mockSvc := &assignmentServiceMock{graded: &models.Submission{ID: "sub-1"}}
	handler := NewAssignmentHandler(mockSvc)

	c, w := newGinContext(http.MethodPut, "/assignments/a1/submissions/s1/grade", []byte(`{"score":88}`))
	c.Params = gin.Params{{Key: "id", Value: "a1"}, {Key: "studentId", Value: "s1"}}
	asUser(c, "t1", models.RoleTeacher)
	handler.Grade(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, [2]string{"a1", "s1"}, mockSvc.gradeArgs)
}

func TestAssignmentHandlerGetNotFound(t *testing.T) {
	handler := NewAssignmentHandler(&assignmentServiceMock{})

	c, w := newGinContext(http.MethodGet, "/assignments/zz", nil)
	c.Params = gin.Params{{Key: "id", Value: "zz"}}
	asUser(c, "s1", models.RoleStudent)
	handler.Get(c)

	require.Equal(t, http.StatusNotFound, w.Code)
}

type exportServiceMock struct {
	createResp  *dto.ExportJobResponse
	createErr   error
	statusResp  *dto.ExportJobResponse
	statusErr   error
	download    *service.ExportDownload
	downloadErr error
	token       string
}

func (m *exportServiceMock) CreateJob(ctx context.Context, viewer models.Viewer, req dto.ScheduleExportRequest) (*dto.ExportJobResponse, error) {
	return m.createResp, m.createErr
}

func (m *exportServiceMock) GetStatus(ctx context.Context, viewer models.Viewer, id string) (*dto.ExportJobResponse, error) {
	return m.statusResp, m.statusErr
}

func (m *exportServiceMock) ResolveDownload(ctx context.Context, token string) (*service.ExportDownload, error) {
	m.token = token
	return m.download, m.downloadErr
}

func TestExportHandlerCreate(t *testing.T) {
	mockSvc := &exportServiceMock{
		createResp: &dto.ExportJobResponse{ID: "job-1", Status: models.ExportStatusQueued, Format: models.ExportFormatCSV},
	}
	handler := NewExportHandler(mockSvc)

	payload, _ := json.Marshal(dto.ScheduleExportRequest{Format: models.ExportFormatCSV, ScheduleQuery: dto.ScheduleQuery{Year: 2024, Month: 9}})
	c, w := newGinContext(http.MethodPost, "/exports/schedules", payload)
	asUser(c, "t1", models.RoleTeacher)

	handler.Create(c)
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"QUEUED"`)
}

func TestExportHandlerCreateDisabled(t *testing.T) {
	handler := NewExportHandler(&exportServiceMock{createErr: appErrors.ErrExportsDisabled})

	c, w := newGinContext(http.MethodPost, "/exports/schedules", []byte(`{"format":"csv"}`))
	asUser(c, "t1", models.RoleTeacher)

	handler.Create(c)
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestExportHandlerStatus(t *testing.T) {
	mockSvc := &exportServiceMock{
		statusResp: &dto.ExportJobResponse{ID: "job-1", Status: models.ExportStatusFinished, Progress: 100, DownloadURL: "/api/v1/exports/download?token=abc"},
	}
	handler := NewExportHandler(mockSvc)

	c, w := newGinContext(http.MethodGet, "/exports/job-1", nil)
	c.Params = gin.Params{{Key: "id", Value: "job-1"}}
	asUser(c, "admin", models.RoleAdmin)

	handler.Status(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "downloadUrl")
}

func TestExportHandlerDownload(t *testing.T) {
	file, err := os.CreateTemp(t.TempDir(), "schedule*.csv")
	require.NoError(t, err)
	_, _ = file.WriteString("date,course\n")
	_, _ = file.Seek(0, 0)

	mockSvc := &exportServiceMock{
		download: &service.ExportDownload{
			File:        file,
			Filename:    "schedule.csv",
			ContentType: "text/csv",
			ExpiresAt:   time.Now().Add(time.Hour),
		},
	}
	handler := NewExportHandler(mockSvc)

	c, w := newGinContext(http.MethodGet, "/exports/download?token=tok", nil)
	handler.Download(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "tok", mockSvc.token)
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), `filename="schedule.csv"`)
	assert.Equal(t, "date,course\n", w.Body.String())
}

func TestExportHandlerDownloadRequiresToken(t *testing.T) {
	mockSvc := &exportServiceMock{}
	handler := NewExportHandler(mockSvc)

	c, w := newGinContext(http.MethodGet, "/exports/download", nil)
	handler.Download(c)

	require.Equal(t, http.StatusForbidden, w.Code)
	assert.Empty(t, mockSvc.token)
}

type authServiceMock struct {
	loginErr error
}

func (m *authServiceMock) Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	if m.loginErr != nil {
		return nil, m.loginErr
	}
	return &models.LoginResponse{AccessToken: "tok", User: models.UserInfo{Email: req.Email}}, nil
}

func (m *authServiceMock) Me(ctx context.Context, userID string) (*models.UserInfo, error) {
	return &models.UserInfo{ID: userID}, nil
}

func TestAuthHandlerLogin(t *testing.T) {
	handler := NewAuthHandler(&authServiceMock{})
	c, w := newGinContext(http.MethodPost, "/auth/login", []byte(`{"email":"a@b.c","password":"pw"}`))
	handler.Login(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"accessToken":"tok"`)

	handler = NewAuthHandler(&authServiceMock{loginErr: appErrors.ErrInvalidCredentials})
	c, w = newGinContext(http.MethodPost, "/auth/login", []byte(`{"email":"a@b.c","password":"bad"}`))
	handler.Login(c)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthHandlerMe(t *testing.T) {
	handler := NewAuthHandler(&authServiceMock{})
	c, w := newGinContext(http.MethodGet, "/auth/me", nil)
	asUser(c, "u1", models.RoleTeacher)
	handler.Me(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"id":"u1"`)
}

func TestMetricsHandlerReady(t *testing.T) {
	healthy := PingerFunc(func(ctx context.Context) error { return nil })
	down := PingerFunc(func(ctx context.Context) error { return errors.New("connection refused") })

	handler := NewMetricsHandler(service.NewMetricsService(), map[string]Pinger{"postgres": healthy, "redis": nil})
	c, w := newGinContext(http.MethodGet, "/ready", nil)
	handler.Ready(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "redis")

	handler = NewMetricsHandler(service.NewMetricsService(), map[string]Pinger{"postgres": healthy, "redis": down})
	c, w = newGinContext(http.MethodGet, "/ready", nil)
	handler.Ready(c)
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "connection refused")
}

func TestMetricsHandlerSystem(t *testing.T) {
	handler := NewMetricsHandler(service.NewMetricsService(), nil)
	c, w := newGinContext(http.MethodGet, "/system/metrics", nil)
	handler.System(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "requestsTotal")
}
