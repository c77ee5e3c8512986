package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/PrithiviPM2580/coaching-management-backend/internal/auth"
	"github.com/PrithiviPM2580/coaching-management-backend/internal/config"
	"github.com/PrithiviPM2580/coaching-management-backend/internal/model"
	"github.com/PrithiviPM2580/coaching-management-backend/internal/pdf"
	"github.com/PrithiviPM2580/coaching-management-backend/internal/service"
)

type Server struct {
	cfg      config.Config
	auth     *service.Auth
	batches  *service.Batches
	students *service.Students
	fees     *service.Fee
	redis    *redis.Client
}

func NewServer(cfg config.Config, authService *service.Auth, batches *service.Batches, students *service.Students, fees *service.Fee, redisClient *redis.Client) *Server {
	return &Server{
		cfg:      cfg,
		auth:     authService,
		batches:  batches,
		students: students,
		fees:     fees,
		redis:    redisClient,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Post("/auth/register", s.handleRegister)
	r.Post("/auth/login", s.handleLogin)
	r.Post("/auth/refresh", s.handleRefresh)
	r.Post("/auth/logout", s.handleLogout)

	r.Route("/batches", func(r chi.Router) {
		r.Use(s.authMiddleware)
		r.Get("/", s.handleListBatches)
		r.Get("/{batchId}", s.handleGetBatch)
		r.With(s.requireRole(model.RoleAdmin)).Post("/", s.handleCreateBatch)
		r.With(s.requireRole(model.RoleAdmin)).Patch("/{batchId}", s.handleUpdateBatch)
		r.With(s.requireRole(model.RoleAdmin)).Delete("/{batchId}", s.handleDeleteBatch)
	})

	r.Route("/students", func(r chi.Router) {
		r.Use(s.authMiddleware)
		r.Get("/", s.handleListStudents)
		r.Get("/{studentId}", s.handleGetStudent)
		r.Get("/{studentId}/fees", s.handleStudentFees)
		r.With(s.requireRole(model.RoleAdmin, model.RoleStaff)).Post("/", s.handleCreateStudent)
		r.With(s.requireRole(model.RoleAdmin, model.RoleStaff)).Patch("/{studentId}", s.handleUpdateStudent)
		r.With(s.requireRole(model.RoleAdmin)).Delete("/{studentId}", s.handleDeleteStudent)
	})

	r.Route("/fees", func(r chi.Router) {
		r.Use(s.authMiddleware)
		r.With(s.requireRole(model.RoleAdmin, model.RoleAccountant)).Post("/", s.handleCreateFee)
		r.Get("/report", s.handleFeeReport)
	})

	r.Route("/receipts", func(r chi.Router) {
		r.Use(s.authMiddleware)
		r.Get("/{paymentId}", s.handleGetReceipt)
		r.Get("/{paymentId}/pdf", s.handleReceiptPDF)
	})

	return r
}

// ---- auth handlers ----

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role,omitempty"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}

	result, err := s.auth.Register(r.Context(), service.RegisterInput{
		Name:     strings.TrimSpace(req.Name),
		Email:    req.Email,
		Password: req.Password,
		Role:     strings.TrimSpace(strings.ToLower(req.Role)),
	})
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}

	result, err := s.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}

	pair, err := s.auth.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pair)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}

	if err := s.auth.Logout(r.Context(), req.RefreshToken); err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "logged_out"})
}

// ---- batch handlers ----

type batchRequest struct {
	BatchName   string `json:"batch_name"`
	Subject     string `json:"subject"`
	Teacher     string `json:"teacher"`
	Timing      string `json:"timing"`
	MonthlyFees int64  `json:"monthly_fees"`
}

func (s *Server) handleCreateBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}

	batch, err := s.batches.Create(r.Context(), service.CreateBatchInput{
		BatchName:   strings.TrimSpace(req.BatchName),
		Subject:     strings.TrimSpace(req.Subject),
		Teacher:     strings.TrimSpace(req.Teacher),
		Timing:      strings.TrimSpace(req.Timing),
		MonthlyFees: req.MonthlyFees,
	})
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, mapBatch(batch))
}

func (s *Server) handleListBatches(w http.ResponseWriter, r *http.Request) {
	batches, err := s.batches.List(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	resp := make([]batchResponse, 0, len(batches))
	for _, batch := range batches {
		resp = append(resp, mapBatch(batch))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetBatch(w http.ResponseWriter, r *http.Request) {
	batch, err := s.batches.Get(r.Context(), chi.URLParam(r, "batchId"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, mapBatch(batch))
}

type batchUpdateRequest struct {
	BatchName   *string `json:"batch_name,omitempty"`
	Subject     *string `json:"subject,omitempty"`
	Teacher     *string `json:"teacher,omitempty"`
	Timing      *string `json:"timing,omitempty"`
	MonthlyFees *int64  `json:"monthly_fees,omitempty"`
}

func (s *Server) handleUpdateBatch(w http.ResponseWriter, r *http.Request) {
	var req batchUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}

	batch, err := s.batches.Update(r.Context(), chi.URLParam(r, "batchId"), service.BatchUpdate{
		BatchName:   req.BatchName,
		Subject:     req.Subject,
		Teacher:     req.Teacher,
		Timing:      req.Timing,
		MonthlyFees: req.MonthlyFees,
	})
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, mapBatch(batch))
}

func (s *Server) handleDeleteBatch(w http.ResponseWriter, r *http.Request) {
	if err := s.batches.Delete(r.Context(), chi.URLParam(r, "batchId")); err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// ---- student handlers ----

type studentRequest struct {
	Name          string  `json:"name"`
	Phone         string  `json:"phone"`
	Fees          int64   `json:"fees"`
	JoinDate      string  `json:"join_date,omitempty"`
	Address       *string `json:"address,omitempty"`
	GuardianName  *string `json:"guardian_name,omitempty"`
	GuardianPhone *string `json:"guardian_phone,omitempty"`
	BatchID       string  `json:"batch_id"`
}

func (s *Server) handleCreateStudent(w http.ResponseWriter, r *http.Request) {
	var req studentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}

	var joinDate time.Time
	if req.JoinDate != "" {
		parsed, err := time.Parse("2006-01-02", req.JoinDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_join_date")
			return
		}
		joinDate = parsed
	}

	student, err := s.students.Create(r.Context(), service.CreateStudentInput{
		Name:          strings.TrimSpace(req.Name),
		Phone:         strings.TrimSpace(req.Phone),
		Fees:          req.Fees,
		JoinDate:      joinDate,
		Address:       req.Address,
		GuardianName:  req.GuardianName,
		GuardianPhone: req.GuardianPhone,
		BatchID:       req.BatchID,
	})
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, mapStudent(student))
}

func (s *Server) handleListStudents(w http.ResponseWriter, r *http.Request) {
	students, err := s.students.List(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	resp := make([]studentResponse, 0, len(students))
	for _, entry := range students {
		item := mapStudent(entry.Student)
		batch := mapBatch(entry.Batch)
		item.Batch = &batch
		resp = append(resp, item)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetStudent(w http.ResponseWriter, r *http.Request) {
	entry, err := s.students.Get(r.Context(), chi.URLParam(r, "studentId"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	resp := mapStudent(entry.Student)
	batch := mapBatch(entry.Batch)
	resp.Batch = &batch
	writeJSON(w, http.StatusOK, resp)
}

type studentUpdateRequest struct {
	Name          *string `json:"name,omitempty"`
	Phone         *string `json:"phone,omitempty"`
	Address       *string `json:"address,omitempty"`
	GuardianName  *string `json:"guardian_name,omitempty"`
	GuardianPhone *string `json:"guardian_phone,omitempty"`
	BatchID       *string `json:"batch_id,omitempty"`
}

func (s *Server) handleUpdateStudent(w http.ResponseWriter, r *http.Request) {
	var req studentUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}

	student, err := s.students.Update(r.Context(), chi.URLParam(r, "studentId"), service.StudentUpdate{
		Name:          req.Name,
		Phone:         req.Phone,
		Address:       req.Address,
		GuardianName:  req.GuardianName,
		GuardianPhone: req.GuardianPhone,
		BatchID:       req.BatchID,
	})
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, mapStudent(student))
}

func (s *Server) handleDeleteStudent(w http.ResponseWriter, r *http.Request) {
	if err := s.students.Delete(r.Context(), chi.URLParam(r, "studentId")); err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleStudentFees(w http.ResponseWriter, r *http.Request) {
	fees, err := s.fees.StudentFees(r.Context(), chi.URLParam(r, "studentId"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, fees)
}

// ---- fee handlers ----

type createFeeRequest struct {
	StudentID  string `json:"student_id"`
	BatchID    string `json:"batch_id"`
	AmountPaid int64  `json:"amount_paid"`
	Mode       string `json:"mode"`
	Date       string `json:"date,omitempty"`
}

type createFeeResponse struct {
	Payment paymentResponse `json:"payment"`
	Student studentResponse `json:"student"`
}

func (s *Server) handleCreateFee(w http.ResponseWriter, r *http.Request) {
	var req createFeeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}

	var date time.Time
	if req.Date != "" {
		parsed, err := time.Parse("2006-01-02", req.Date)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date")
			return
		}
		date = parsed
	}

	result, err := s.fees.RecordPayment(r.Context(), service.RecordPaymentInput{
		StudentID:  req.StudentID,
		BatchID:    req.BatchID,
		AmountPaid: req.AmountPaid,
		Mode:       strings.TrimSpace(strings.ToLower(req.Mode)),
		Date:       date,
	})
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, createFeeResponse{
		Payment: mapPayment(result.Payment),
		Student: mapStudent(result.Student),
	})
}

func (s *Server) handleFeeReport(w http.ResponseWriter, r *http.Request) {
	reportType := r.URL.Query().Get("type")
	date := r.URL.Query().Get("date")
	if reportType == "" || date == "" {
		writeError(w, http.StatusBadRequest, "missing_type_or_date")
		return
	}

	if cached, ok := s.cachedReport(r.Context(), reportType, date); ok {
		writeJSON(w, http.StatusOK, cached)
		return
	}

	report, err := s.fees.Report(r.Context(), reportType, date)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	s.cacheReport(r.Context(), reportType, date, report)
	writeJSON(w, http.StatusOK, report)
}

// ---- receipt handlers ----

func (s *Server) handleGetReceipt(w http.ResponseWriter, r *http.Request) {
	detail, err := s.fees.Receipt(r.Context(), chi.URLParam(r, "paymentId"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	resp := mapPayment(detail.Payment)
	student := mapStudent(detail.Student)
	batch := mapBatch(detail.Batch)
	writeJSON(w, http.StatusOK, receiptResponse{Payment: resp, Student: student, Batch: batch})
}

func (s *Server) handleReceiptPDF(w http.ResponseWriter, r *http.Request) {
	paymentID := chi.URLParam(r, "paymentId")
	detail, err := s.fees.Receipt(r.Context(), paymentID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	// Render before touching the response so a failure can still produce
	// a clean 500 instead of a truncated document.
	var buf bytes.Buffer
	if err := pdf.RenderReceipt(&buf, detail); err != nil {
		log.Printf("http: receipt pdf render failed: %v", err)
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename=receipt-`+paymentID+`.pdf`)
	_, _ = w.Write(buf.Bytes())
}

// ---- report cache ----

func reportCacheKey(reportType, date string) string {
	return "feereport:" + reportType + ":" + date
}

func (s *Server) cachedReport(ctx context.Context, reportType, date string) (service.FeeReport, bool) {
	if s.redis == nil {
		return service.FeeReport{}, false
	}
	value, err := s.redis.Get(ctx, reportCacheKey(reportType, date)).Result()
	if err == redis.Nil {
		return service.FeeReport{}, false
	}
	if err != nil {
		log.Printf("http: report cache read failed: %v", err)
		return service.FeeReport{}, false
	}
	var report service.FeeReport
	if err := json.Unmarshal([]byte(value), &report); err != nil {
		return service.FeeReport{}, false
	}
	return report, true
}

func (s *Server) cacheReport(ctx context.Context, reportType, date string, report service.FeeReport) {
	if s.redis == nil {
		return
	}
	data, err := json.Marshal(report)
	if err != nil {
		return
	}
	if err := s.redis.Set(ctx, reportCacheKey(reportType, date), data, s.cfg.ReportCacheTTL).Err(); err != nil {
		log.Printf("http: report cache write failed: %v", err)
	}
}

// ---- middleware ----

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r.Header.Get("Authorization"))
		if token == "" {
			writeError(w, http.StatusUnauthorized, "missing_token")
			return
		}

		claims, err := auth.ParseToken(s.cfg.JWTAccessSecret, token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid_token")
			return
		}

		ctx := context.WithValue(r.Context(), claimsKey{}, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) requireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := claimsFromContext(r.Context())
			if claims == nil || !hasRole(claims, roles) {
				writeError(w, http.StatusForbidden, "forbidden")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type claimsKey struct{}

func claimsFromContext(ctx context.Context) *auth.Claims {
	value := ctx.Value(claimsKey{})
	claims, _ := value.(*auth.Claims)
	return claims
}

func hasRole(claims *auth.Claims, roles []string) bool {
	for _, role := range roles {
		if claims.Role == role {
			return true
		}
	}
	return false
}

func bearerToken(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// ---- response mapping ----

type batchResponse struct {
	ID          string `json:"id"`
	BatchName   string `json:"batch_name"`
	Subject     string `json:"subject"`
	Teacher     string `json:"teacher"`
	Timing      string `json:"timing"`
	MonthlyFees int64  `json:"monthly_fees"`
	CreatedAt   string `json:"created_at"`
}

type studentResponse struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	Phone         string         `json:"phone"`
	Fees          int64          `json:"fees"`
	DueAmount     int64          `json:"due_amount"`
	JoinDate      string         `json:"join_date"`
	Address       *string        `json:"address,omitempty"`
	GuardianName  *string        `json:"guardian_name,omitempty"`
	GuardianPhone *string        `json:"guardian_phone,omitempty"`
	BatchID       string         `json:"batch_id"`
	Batch         *batchResponse `json:"batch,omitempty"`
}

type paymentResponse struct {
	ID         string `json:"id"`
	ReceiptNo  string `json:"receipt_no"`
	StudentID  string `json:"student_id"`
	BatchID    string `json:"batch_id"`
	AmountPaid int64  `json:"amount_paid"`
	Mode       string `json:"mode"`
	Date       string `json:"date"`
}

type receiptResponse struct {
	Payment paymentResponse `json:"payment"`
	Student studentResponse `json:"student"`
	Batch   batchResponse   `json:"batch"`
}

func mapBatch(batch model.Batch) batchResponse {
	return batchResponse{
		ID:          batch.ID,
		BatchName:   batch.BatchName,
		Subject:     batch.Subject,
		Teacher:     batch.Teacher,
		Timing:      batch.Timing,
		MonthlyFees: batch.MonthlyFees,
		CreatedAt:   batch.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func mapStudent(student model.Student) studentResponse {
	return studentResponse{
		ID:            student.ID,
		Name:          student.Name,
		Phone:         student.Phone,
		Fees:          student.Fees,
		DueAmount:     student.DueAmount,
		JoinDate:      student.JoinDate.UTC().Format("2006-01-02"),
		Address:       student.Address,
		GuardianName:  student.GuardianName,
		GuardianPhone: student.GuardianPhone,
		BatchID:       student.BatchID,
	}
}

func mapPayment(payment model.FeePayment) paymentResponse {
	return paymentResponse{
		ID:         payment.ID,
		ReceiptNo:  payment.ReceiptNo,
		StudentID:  payment.StudentID,
		BatchID:    payment.BatchID,
		AmountPaid: payment.AmountPaid,
		Mode:       payment.Mode,
		Date:       payment.Date.UTC().Format("2006-01-02"),
	}
}

// ---- helpers ----

func (s *Server) writeServiceError(w http.ResponseWriter, err error) {
	var svcErr *service.Error
	if !errors.As(err, &svcErr) {
		log.Printf("http: internal error: %v", err)
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}

	switch svcErr.Kind {
	case service.KindValidation, service.KindDuplicateEmail, service.KindInvalidRequest:
		writeError(w, http.StatusBadRequest, svcErr.Code)
	case service.KindAuthentication, service.KindInvalidToken:
		writeError(w, http.StatusUnauthorized, svcErr.Code)
	case service.KindNotFound:
		writeError(w, http.StatusNotFound, svcErr.Code)
	default:
		writeError(w, http.StatusInternalServerError, "server_error")
	}
}

func decodeJSON(r *http.Request, out interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(out)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}
