package http

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/wyfcoding/cargotariff/internal/tariff/application"
	"github.com/wyfcoding/cargotariff/internal/tariff/domain"
	"github.com/wyfcoding/cargotariff/pkg/logger"
	"github.com/wyfcoding/cargotariff/pkg/middleware"
	"github.com/wyfcoding/cargotariff/pkg/response"
)

const (
	detailNotFound     = "Cargo tariff not found"
	detailQuoteMissing = "Cargo tariff was not found"
	detailUploadFailed = "Upload was failed."
	detailInvalidUID   = "Invalid cargo tariff uid"
	detailBadRequest   = "Bad Request"
	uploadField        = "upload_file"
	defaultUploadLimit = 10 << 20
)

// TariffHandler 费率 HTTP 处理器。
type TariffHandler struct {
	app         *application.TariffService
	auth        gin.HandlerFunc
	uploadLimit int64
}

// NewTariffHandler 创建处理器。auth 为写接口的鉴权中间件，uploadLimit 单位为字节。
func NewTariffHandler(app *application.TariffService, auth gin.HandlerFunc, uploadLimit int64) *TariffHandler {
	if uploadLimit <= 0 {
		uploadLimit = defaultUploadLimit
	}
	return &TariffHandler{app: app, auth: auth, uploadLimit: uploadLimit}
}

// RegisterRoutes 注册 /api/v1 下的路由。
func (h *TariffHandler) RegisterRoutes(router gin.IRouter) {
	api := router.Group("/api/v1")
	{
		cargos := api.Group("/cargos")
		cargos.GET("", h.ListTariffs)
		cargos.GET("/:uid", h.GetTariff)
		cargos.POST("/calculate", h.Calculate)
		cargos.POST("", h.auth, h.CreateTariff)
		cargos.PUT("/:uid", h.auth, h.UpdateTariff)
		cargos.DELETE("/:uid", h.auth, h.DeleteTariff)
		cargos.POST("/load", h.auth, h.LoadTariffs)

		types := api.Group("/cargo-types")
		types.GET("", h.ListCargoTypes)
		types.POST("", h.auth, h.CreateCargoType)

		api.GET("/audit-logs", h.auth, h.ListAuditLogs)
	}
}

// CalculateRequest 保险费计算请求。
type CalculateRequest struct {
	TariffDate    string           `json:"tariff_date" binding:"required"`
	CargoTypeName string           `json:"cargo_type_name" binding:"required"`
	TotalPrice    *decimal.Decimal `json:"total_price" binding:"required"`
}

// UpdateTariffRequest 修改费率请求。
type UpdateTariffRequest struct {
	Rate *decimal.Decimal `json:"rate" binding:"required"`
}

// CreateTariffRequest 直接创建费率请求。
type CreateTariffRequest struct {
	TariffDate    string           `json:"tariff_date" binding:"required"`
	CargoTypeName string           `json:"cargo_type_name" binding:"required"`
	Rate          *decimal.Decimal `json:"rate" binding:"required"`
}

// CreateCargoTypeRequest 创建货物类型请求。
type CreateCargoTypeRequest struct {
	Name string `json:"name" binding:"required"`
}

// ListTariffs 获取全部费率。
func (h *TariffHandler) ListTariffs(c *gin.Context) {
	tariffs, err := h.app.ListTariffs(c.Request.Context())
	if err != nil {
		h.fail(c, err, "Failed to list cargo tariffs")
		return
	}
	response.Raw(c, http.StatusOK, tariffs)
}

// GetTariff 按 uid 获取费率。
func (h *TariffHandler) GetTariff(c *gin.Context) {
	id, ok := parseUID(c)
	if !ok {
		return
	}
	t, err := h.app.GetTariff(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err, detailNotFound)
		return
	}
	response.Raw(c, http.StatusOK, t)
}

// UpdateTariff 修改费率，通知失败时返回 500 同时带回已提交的结果。
func (h *TariffHandler) UpdateTariff(c *gin.Context) {
	id, ok := parseUID(c)
	if !ok {
		return
	}
	var req UpdateTariffRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, detailBadRequest, err.Error())
		return
	}

	t, err := h.app.UpdateRate(c.Request.Context(), application.UpdateRateCommand{
		TariffID: id,
		Rate:     *req.Rate,
		UserID:   middleware.UserID(c),
	})
	if err != nil {
		h.fail(c, err, detailNotFound, t)
		return
	}
	response.Raw(c, http.StatusOK, t)
}

// DeleteTariff 删除费率。
func (h *TariffHandler) DeleteTariff(c *gin.Context) {
	id, ok := parseUID(c)
	if !ok {
		return
	}
	err := h.app.DeleteTariff(c.Request.Context(), application.DeleteTariffCommand{
		TariffID: id,
		UserID:   middleware.UserID(c),
	})
	if err != nil {
		h.fail(c, err, detailNotFound)
		return
	}
	response.Success(c, "Cargo tariff deleted successfully.", nil)
}

// CreateTariff 直接创建费率。
func (h *TariffHandler) CreateTariff(c *gin.Context) {
	var req CreateTariffRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, detailBadRequest, err.Error())
		return
	}
	date, err := domain.ParseDate(req.TariffDate)
	if err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, detailBadRequest, err.Error())
		return
	}

	t, err := h.app.CreateTariff(c.Request.Context(), application.CreateTariffCommand{
		CargoTypeName: req.CargoTypeName,
		Date:          date,
		Rate:          *req.Rate,
		UserID:        middleware.UserID(c),
	})
	if err != nil {
		h.fail(c, err, "Failed to create cargo tariff", t)
		return
	}
	response.Created(c, "Cargo tariff created successfully.", t)
}

// LoadTariffs 批量导入费率表，支持 multipart 字段 upload_file 或直接提交 JSON。
func (h *TariffHandler) LoadTariffs(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.uploadLimit)

	var body io.Reader = c.Request.Body
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		fh, err := c.FormFile(uploadField)
		if err != nil {
			response.ErrorWithStatus(c, uploadStatus(err), detailUploadFailed, err.Error())
			return
		}
		f, err := fh.Open()
		if err != nil {
			response.ErrorWithStatus(c, uploadStatus(err), detailUploadFailed, err.Error())
			return
		}
		defer f.Close()
		body = f
	}

	summary, err := h.app.LoadRateTable(c.Request.Context(), body)
	if err != nil {
		logger.Warn(c.Request.Context(), "rate table upload failed", "error", err)
		response.ErrorWithStatus(c, statusFor(err), detailUploadFailed, err.Error())
		return
	}
	response.Success(c, "Cargo tariffs successfully uploaded.", summary)
}

// Calculate 计算保险费。
func (h *TariffHandler) Calculate(c *gin.Context) {
	var req CalculateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, detailBadRequest, err.Error())
		return
	}
	date, err := domain.ParseDate(req.TariffDate)
	if err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, detailBadRequest, err.Error())
		return
	}

	quote, err := h.app.Calculate(c.Request.Context(), application.CalculateQuery{
		TariffDate:    date,
		CargoTypeName: req.CargoTypeName,
		DeclaredValue: *req.TotalPrice,
	})
	if err != nil {
		h.fail(c, err, detailQuoteMissing)
		return
	}
	response.Success(c, "Cargo tariffs was successfully calculated.", quote.Result)
}

// ListCargoTypes 获取全部货物类型。
func (h *TariffHandler) ListCargoTypes(c *gin.Context) {
	types, err := h.app.ListCargoTypes(c.Request.Context())
	if err != nil {
		h.fail(c, err, "Failed to list cargo types")
		return
	}
	response.Raw(c, http.StatusOK, types)
}

// CreateCargoType 创建货物类型。
func (h *TariffHandler) CreateCargoType(c *gin.Context) {
	var req CreateCargoTypeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, detailBadRequest, err.Error())
		return
	}
	ct, err := h.app.CreateCargoType(c.Request.Context(), req.Name)
	if err != nil {
		h.fail(c, err, "Failed to create cargo type")
		return
	}
	response.Created(c, "Cargo type created successfully.", ct)
}

// ListAuditLogs 最近的审计记录，limit 默认 100。
func (h *TariffHandler) ListAuditLogs(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "100"))
	if err != nil || limit <= 0 {
		response.ErrorWithStatus(c, http.StatusBadRequest, detailBadRequest, "limit must be a positive integer")
		return
	}
	logs, err := h.app.ListAuditLogs(c.Request.Context(), limit)
	if err != nil {
		h.fail(c, err, "Failed to list audit logs")
		return
	}
	response.Raw(c, http.StatusOK, logs)
}

// fail 将领域错误映射为 HTTP 响应。通知失败时 partial 为已提交的结果。
func (h *TariffHandler) fail(c *gin.Context, err error, detail string, partial ...any) {
	var nerr *domain.NotificationError
	if errors.As(err, &nerr) {
		var result any
		if len(partial) > 0 {
			result = partial[0]
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, response.Envelope{
			Detail: nerr.Error(),
			Error:  "notification_failed",
			Result: result,
		})
		return
	}

	status := statusFor(err)
	switch status {
	case http.StatusNotFound:
		if errors.Is(err, domain.ErrCargoTypeNotFound) {
			detail = "Cargo type not found"
		}
	case http.StatusInternalServerError:
		logger.Error(c.Request.Context(), detail, "error", err)
		detail = "Internal server error"
	default:
		detail = detailBadRequest
		if status == http.StatusConflict {
			detail = "Conflict"
		}
	}
	response.ErrorWithStatus(c, status, detail, err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrTariffNotFound), errors.Is(err, domain.ErrCargoTypeNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict
	default:
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			return http.StatusRequestEntityTooLarge
		}
		return http.StatusInternalServerError
	}
}

// uploadStatus multipart 解析失败时超限返回 413，其余返回 400。
func uploadStatus(err error) int {
	if status := statusFor(err); status == http.StatusRequestEntityTooLarge {
		return status
	}
	return http.StatusBadRequest
}

func parseUID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("uid"))
	if err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, detailInvalidUID, err.Error())
		return uuid.Nil, false
	}
	return id, true
}
