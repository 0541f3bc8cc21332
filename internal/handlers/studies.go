package handlers

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"diagnostic-lab-server/internal/models"
	"diagnostic-lab-server/internal/utils"
)

// StudyHandler handles study catalog requests.
type StudyHandler struct {
	DB *gorm.DB
}

// NewStudyHandler creates a new StudyHandler.
func NewStudyHandler(db *gorm.DB) *StudyHandler {
	return &StudyHandler{DB: db}
}

// CreateStudyRequest represents the request body for adding a catalog entry.
type CreateStudyRequest struct {
	Code      string  `json:"code" binding:"required"`
	Name      string  `json:"name" binding:"required"`
	Category  string  `json:"category"`
	BasePrice float64 `json:"basePrice" binding:"gte=0"`
}

// CreateStudy adds a study to the catalog.
func (h *StudyHandler) CreateStudy(c *gin.Context) {
	var req CreateStudyRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	var existing models.Study
	if err := h.DB.Where("code = ?", req.Code).First(&existing).Error; err == nil {
		utils.BadRequest(c, "Study with this code already exists")
		return
	} else if err != gorm.ErrRecordNotFound {
		utils.InternalServerError(c, "Database error: "+err.Error())
		return
	}

	study := models.Study{
		Code:      req.Code,
		Name:      req.Name,
		Category:  req.Category,
		BasePrice: req.BasePrice,
		IsActive:  true,
	}
	if err := h.DB.Create(&study).Error; err != nil {
		utils.InternalServerError(c, "Failed to create study: "+err.Error())
		return
	}

	utils.Created(c, "Study created successfully", study)
}

// GetStudies lists the catalog, optionally by category.
func (h *StudyHandler) GetStudies(c *gin.Context) {
	q := h.DB.Model(&models.Study{})
	if category := c.Query("category"); category != "" {
		q = q.Where("category = ?", category)
	}

	var studies []models.Study
	if err := q.Order("name").Find(&studies).Error; err != nil {
		utils.InternalServerError(c, "Failed to fetch studies: "+err.Error())
		return
	}

	utils.Success(c, "Studies fetched successfully", studies)
}

// GetStudyByID fetches a single catalog entry.
func (h *StudyHandler) GetStudyByID(c *gin.Context) {
	studyID := c.Param("id")

	var study models.Study
	if err := h.DB.First(&study, "id = ?", studyID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			utils.NotFound(c, "Study not found with id: "+studyID)
		} else {
			utils.InternalServerError(c, "Database error: "+err.Error())
		}
		return
	}

	utils.Success(c, "Study fetched successfully", study)
}

// UpdateStudyRequest represents the request body for updating a catalog entry.
// Price edits here never touch already-booked appointments: line items carry
// their own frozen copy.
type UpdateStudyRequest struct {
	Name      string   `json:"name"`
	Category  string   `json:"category"`
	BasePrice *float64 `json:"basePrice" binding:"omitempty,gte=0"`
	IsActive  *bool    `json:"isActive"`
}

// UpdateStudy updates a catalog entry.
func (h *StudyHandler) UpdateStudy(c *gin.Context) {
	studyID := c.Param("id")

	var req UpdateStudyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, "Invalid request payload: "+err.Error())
		return
	}

	var study models.Study
	if err := h.DB.First(&study, "id = ?", studyID).Error; err != nil {
		utils.NotFound(c, "Study not found with id: "+studyID)
		return
	}

	if req.Name != "" {
		study.Name = req.Name
	}
	if req.Category != "" {
		study.Category = req.Category
	}
	if req.BasePrice != nil {
		study.BasePrice = *req.BasePrice
	}
	if req.IsActive != nil {
		study.IsActive = *req.IsActive
	}

	if err := h.DB.Save(&study).Error; err != nil {
		utils.InternalServerError(c, "Failed to update study: "+err.Error())
		return
	}

	utils.Success(c, "Study updated successfully", study)
}
