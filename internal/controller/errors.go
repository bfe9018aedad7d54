package controller

import (
	"bizops_backend/internal/repository"
	"bizops_backend/internal/service"
	"bizops_backend/internal/util"
	"bizops_backend/pkg/logger"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// respondError maps service errors onto the response envelope.
func respondError(c *gin.Context, err error) {
	var (
		precondition *service.PreconditionError
		credential   *service.CredentialRequiredError
		providerErr  *service.ProviderFailedError
	)
	switch {
	case errors.Is(err, service.ErrQuestionnaireNotFound):
		util.Error(c, http.StatusNotFound, err.Error())
	case errors.As(err, &precondition):
		util.Error(c, http.StatusPreconditionFailed, precondition.Reason)
	case errors.As(err, &credential):
		util.ErrorWithData(c, http.StatusUnauthorized, "Google authorization required", gin.H{"authUrl": credential.AuthURL})
	case errors.As(err, &providerErr):
		logger.Log.Error("Provider call failed", zap.String("op", providerErr.Op), zap.Error(err))
		util.Error(c, http.StatusBadGateway, providerErr.Error())
	case errors.Is(err, util.ErrPermissionDenied):
		util.Forbidden(c)
	case errors.Is(err, service.ErrInvalidQuestionnaire), errors.Is(err, service.ErrInvalidRunType):
		util.BadRequest(c, err.Error())
	case errors.Is(err, repository.ErrStateNotFound):
		util.BadRequest(c, err.Error())
	default:
		util.LogInternalError(c, err)
	}
}

func callerFrom(c *gin.Context) (service.Caller, bool) {
	claims := util.GetUserFromContext(c)
	if claims == nil {
		return service.Caller{}, false
	}
	return service.Caller{UserID: claims.UserID, Role: claims.Role}, true
}
