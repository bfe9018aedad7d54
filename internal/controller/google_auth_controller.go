package controller

import (
	"bizops_backend/internal/service"
	"bizops_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type GoogleAuthController struct {
	Credentials *service.CredentialService
}

func NewGoogleAuthController(creds *service.CredentialService) *GoogleAuthController {
	return &GoogleAuthController{Credentials: creds}
}

// AuthURL godoc
// @Summary Google authorization URL
// @Description Issues a consent URL bound to a one-time state for the caller.
// @Tags Google
// @Produce json
// @Security BearerAuth
// @Success 200 {object} util.Response{data=map[string]string}
// @Router /api/google/auth-url [get]
func (h *GoogleAuthController) AuthURL(c *gin.Context) {
	caller, ok := callerFrom(c)
	if !ok {
		util.Unauthorized(c)
		return
	}
	url, err := h.Credentials.AuthURL(c.Request.Context(), caller.UserID)
	if err != nil {
		respondError(c, err)
		return
	}
	util.Success(c, gin.H{"authUrl": url})
}

// Callback godoc
// @Summary OAuth redirect target
// @Description Exchanges the authorization code and stores the credential of the user bound to state.
// @Tags Google
// @Produce json
// @Param state query string true "State issued with the authorization URL"
// @Param code query string true "Authorization code"
// @Success 200 {object} util.Response
// @Failure 400 {object} util.Response
// @Router /api/google/callback [get]
func (h *GoogleAuthController) Callback(c *gin.Context) {
	if errMsg := c.Query("error"); errMsg != "" {
		util.BadRequest(c, "authorization denied: "+errMsg)
		return
	}
	state, code := c.Query("state"), c.Query("code")
	if state == "" || code == "" {
		util.BadRequest(c, "state and code are required")
		return
	}

	if _, err := h.Credentials.HandleCallback(c.Request.Context(), state, code); err != nil {
		respondError(c, err)
		return
	}
	util.Success(c, gin.H{"connected": true})
}

// Status godoc
// @Summary Google connection status
// @Tags Google
// @Produce json
// @Security BearerAuth
// @Success 200 {object} util.Response{data=service.CredentialStatus}
// @Router /api/google/status [get]
func (h *GoogleAuthController) Status(c *gin.Context) {
	caller, ok := callerFrom(c)
	if !ok {
		util.Unauthorized(c)
		return
	}
	status, err := h.Credentials.Status(c.Request.Context(), caller.UserID)
	if err != nil {
		respondError(c, err)
		return
	}
	util.Success(c, status)
}

// Disconnect godoc
// @Summary Remove the stored Google credential
// @Tags Google
// @Produce json
// @Security BearerAuth
// @Success 200 {object} util.Response
// @Router /api/google/credential [delete]
func (h *GoogleAuthController) Disconnect(c *gin.Context) {
	caller, ok := callerFrom(c)
	if !ok {
		util.Unauthorized(c)
		return
	}
	if err := h.Credentials.Disconnect(c.Request.Context(), caller.UserID); err != nil {
		respondError(c, err)
		return
	}
	util.Success(c, nil)
}
