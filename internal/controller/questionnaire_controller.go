package controller

import (
	"bizops_backend/internal/model"
	"bizops_backend/internal/service"
	"bizops_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type QuestionnaireController struct {
	Questionnaires *service.QuestionnaireService
	Conversion     *service.FormConversionService
	Sync           *service.ResponseSyncService
	Export         *service.SheetExportService
}

func NewQuestionnaireController(
	questionnaires *service.QuestionnaireService,
	conversion *service.FormConversionService,
	sync *service.ResponseSyncService,
	export *service.SheetExportService,
) *QuestionnaireController {
	return &QuestionnaireController{
		Questionnaires: questionnaires,
		Conversion:     conversion,
		Sync:           sync,
		Export:         export,
	}
}

// Create godoc
// @Summary Create a questionnaire
// @Description Creates a questionnaire with its questions in one transaction. Question positions are renumbered 0..n-1.
// @Tags Questionnaires
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body service.CreateQuestionnaireRequest true "Questionnaire"
// @Success 201 {object} util.Response{data=model.Questionnaire}
// @Failure 400 {object} util.Response
// @Failure 401 {object} util.Response
// @Router /api/questionnaires [post]
func (h *QuestionnaireController) Create(c *gin.Context) {
	caller, ok := callerFrom(c)
	if !ok {
		util.Unauthorized(c)
		return
	}
	var req service.CreateQuestionnaireRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.BadRequest(c, err.Error())
		return
	}

	q, err := h.Questionnaires.Create(c.Request.Context(), caller, req)
	if err != nil {
		respondError(c, err)
		return
	}
	util.Created(c, q)
}

// List godoc
// @Summary List questionnaires
// @Tags Questionnaires
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page" default(1)
// @Param limit query int false "Page size" default(20)
// @Success 200 {object} util.Response{data=util.PageResponse}
// @Router /api/questionnaires [get]
func (h *QuestionnaireController) List(c *gin.Context) {
	caller, ok := callerFrom(c)
	if !ok {
		util.Unauthorized(c)
		return
	}
	page, limit := util.Pagination(c)

	list, total, err := h.Questionnaires.List(c.Request.Context(), caller, page, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	util.Success(c, util.PageResponse{List: list, Total: total, Page: page, Limit: limit})
}

// Get godoc
// @Summary Get a questionnaire with its questions
// @Tags Questionnaires
// @Produce json
// @Security BearerAuth
// @Param id path int true "Questionnaire ID"
// @Success 200 {object} util.Response{data=model.Questionnaire}
// @Failure 404 {object} util.Response
// @Router /api/questionnaires/{id} [get]
func (h *QuestionnaireController) Get(c *gin.Context) {
	caller, id, ok := h.target(c)
	if !ok {
		return
	}
	q, err := h.Questionnaires.Get(c.Request.Context(), caller, id)
	if err != nil {
		respondError(c, err)
		return
	}
	util.Success(c, q)
}

// Delete godoc
// @Summary Delete a questionnaire
// @Description Removes the questionnaire with its questions, responses and sync logs.
// @Tags Questionnaires
// @Produce json
// @Security BearerAuth
// @Param id path int true "Questionnaire ID"
// @Success 200 {object} util.Response
// @Failure 404 {object} util.Response
// @Router /api/questionnaires/{id} [delete]
func (h *QuestionnaireController) Delete(c *gin.Context) {
	caller, id, ok := h.target(c)
	if !ok {
		return
	}
	if err := h.Questionnaires.Delete(c.Request.Context(), caller, id); err != nil {
		respondError(c, err)
		return
	}
	util.Success(c, nil)
}

// Convert godoc
// @Summary Convert to an external form
// @Description Creates the Google Form for the questionnaire. Runs at most once per questionnaire.
// @Tags Sync
// @Produce json
// @Security BearerAuth
// @Param id path int true "Questionnaire ID"
// @Success 200 {object} util.Response{data=service.ConversionResult}
// @Failure 401 {object} util.Response "data.authUrl carries the authorization link"
// @Failure 412 {object} util.Response
// @Failure 502 {object} util.Response
// @Router /api/questionnaires/{id}/convert [post]
func (h *QuestionnaireController) Convert(c *gin.Context) {
	caller, id, ok := h.target(c)
	if !ok {
		return
	}
	result, err := h.Conversion.Convert(c.Request.Context(), caller, id)
	if err != nil {
		respondError(c, err)
		return
	}
	util.Success(c, result)
}

// SyncResponses godoc
// @Summary Ingest form responses
// @Description Pulls every response of the external form and upserts it locally.
// @Tags Sync
// @Produce json
// @Security BearerAuth
// @Param id path int true "Questionnaire ID"
// @Param runType query string false "manual, automatic or scheduled" default(manual)
// @Success 200 {object} util.Response{data=service.SyncResult}
// @Failure 401 {object} util.Response "data.authUrl carries the authorization link"
// @Failure 412 {object} util.Response
// @Failure 502 {object} util.Response
// @Router /api/questionnaires/{id}/sync [post]
func (h *QuestionnaireController) SyncResponses(c *gin.Context) {
	caller, id, ok := h.target(c)
	if !ok {
		return
	}
	runType := model.SyncRunType(c.DefaultQuery("runType", string(model.RunManual)))

	result, err := h.Sync.Sync(c.Request.Context(), caller, id, runType)
	if err != nil {
		respondError(c, err)
		return
	}
	util.Success(c, result)
}

// ExportToSheet godoc
// @Summary Export responses to a spreadsheet
// @Tags Sync
// @Produce json
// @Security BearerAuth
// @Param id path int true "Questionnaire ID"
// @Success 200 {object} util.Response{data=service.ExportResult}
// @Failure 401 {object} util.Response "data.authUrl carries the authorization link"
// @Failure 412 {object} util.Response "no responses to export"
// @Failure 502 {object} util.Response
// @Router /api/questionnaires/{id}/export [post]
func (h *QuestionnaireController) ExportToSheet(c *gin.Context) {
	caller, id, ok := h.target(c)
	if !ok {
		return
	}
	result, err := h.Export.Export(c.Request.Context(), caller, id)
	if err != nil {
		respondError(c, err)
		return
	}
	util.Success(c, result)
}

// GetSyncStatus godoc
// @Summary Sync status
// @Tags Sync
// @Produce json
// @Security BearerAuth
// @Param id path int true "Questionnaire ID"
// @Success 200 {object} util.Response{data=service.SyncStatus}
// @Router /api/questionnaires/{id}/sync-status [get]
func (h *QuestionnaireController) GetSyncStatus(c *gin.Context) {
	caller, id, ok := h.target(c)
	if !ok {
		return
	}
	status, err := h.Questionnaires.GetSyncStatus(c.Request.Context(), caller, id)
	if err != nil {
		respondError(c, err)
		return
	}
	util.Success(c, status)
}

// ListResponses godoc
// @Summary List stored responses
// @Tags Questionnaires
// @Produce json
// @Security BearerAuth
// @Param id path int true "Questionnaire ID"
// @Param page query int false "Page" default(1)
// @Param limit query int false "Page size" default(20)
// @Success 200 {object} util.Response{data=util.PageResponse}
// @Router /api/questionnaires/{id}/responses [get]
func (h *QuestionnaireController) ListResponses(c *gin.Context) {
	caller, id, ok := h.target(c)
	if !ok {
		return
	}
	page, limit := util.Pagination(c)

	list, total, err := h.Questionnaires.ListResponses(c.Request.Context(), caller, id, page, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	util.Success(c, util.PageResponse{List: list, Total: total, Page: page, Limit: limit})
}

func (h *QuestionnaireController) target(c *gin.Context) (service.Caller, uint, bool) {
	caller, ok := callerFrom(c)
	if !ok {
		util.Unauthorized(c)
		return caller, 0, false
	}
	id, err := util.ParamID(c, "id")
	if err != nil {
		util.BadRequest(c, err.Error())
		return caller, 0, false
	}
	return caller, id, true
}
