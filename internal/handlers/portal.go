package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"

	"diagnostic-lab-server/internal/access"
	"diagnostic-lab-server/internal/utils"
)

// PortalHandler serves the unauthenticated patient self-service endpoints.
// Access is granted by what the caller knows: a sample code, an invoice QR
// token, or a per-invoice credential pair.
type PortalHandler struct {
	Resolver *access.Resolver
}

// NewPortalHandler creates a new PortalHandler.
func NewPortalHandler(resolver *access.Resolver) *PortalHandler {
	return &PortalHandler{Resolver: resolver}
}

// GetResultBySampleCode looks up a single result by its sample code,
// applying the legacy digit-prefix fallback.
func (h *PortalHandler) GetResultBySampleCode(c *gin.Context) {
	code := c.Param("code")

	resolved, err := h.Resolver.BySampleCode(c.Request.Context(), code)
	if err != nil {
		if access.IsNotFound(err) {
			utils.NotFound(c, "Result not found with code: "+code)
		} else {
			utils.InternalServerError(c, "Failed to resolve sample code: "+err.Error())
		}
		return
	}

	response := gin.H{
		"result":  resolved.Result,
		"patient": resolved.Patient.Summary(),
	}
	if resolved.Invoice != nil {
		response["invoice"] = resolved.Invoice.Summary()
	}

	utils.Success(c, "Result fetched successfully", response)
}

// GetResultsByQR looks up an invoice by QR token and returns its summary
// plus the scoped result list. An empty list is a valid outcome, not an
// error.
func (h *PortalHandler) GetResultsByQR(c *gin.Context) {
	token := c.Param("token")

	resolved, err := h.Resolver.ByQRCode(c.Request.Context(), token)
	if err != nil {
		if access.IsNotFound(err) {
			utils.NotFound(c, "Invalid QR code or invoice not found: "+token)
		} else {
			utils.InternalServerError(c, "Failed to resolve QR code: "+err.Error())
		}
		return
	}

	scoped, err := h.Resolver.ScopedResults(c.Request.Context(), resolved.Scope)
	if err != nil {
		utils.InternalServerError(c, "Failed to fetch results: "+err.Error())
		return
	}

	utils.Success(c, "Results fetched successfully", gin.H{
		"invoice": resolved.Invoice.Summary(),
		"patient": resolved.Patient.Summary(),
		"count":   len(scoped),
		"results": scoped,
	})
}

// PatientAccessRequest represents the portal login payload printed on the
// invoice.
type PatientAccessRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// PatientAccess authenticates a per-invoice credential pair. Any mismatch is
// a 401; the response never says whether the username or the password was
// wrong.
func (h *PortalHandler) PatientAccess(c *gin.Context) {
	var req PatientAccessRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	resolved, err := h.Resolver.ByCredentials(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, access.ErrUnauthorized) {
			utils.Unauthorized(c, "Invalid credentials")
		} else {
			utils.InternalServerError(c, "Failed to verify credentials: "+err.Error())
		}
		return
	}

	scoped, err := h.Resolver.ScopedResults(c.Request.Context(), resolved.Scope)
	if err != nil {
		utils.InternalServerError(c, "Failed to fetch results: "+err.Error())
		return
	}

	utils.Success(c, "Access granted", gin.H{
		"invoice": resolved.Invoice.Summary(),
		"patient": resolved.Patient.Summary(),
		"count":   len(scoped),
		"results": scoped,
	})
}
